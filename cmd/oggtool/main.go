package main

import (
	"log"

	"github.com/midbel/cli"

	_ "ktkr.us/pkg/ogg/flac"
	_ "ktkr.us/pkg/ogg/opus"
	_ "ktkr.us/pkg/ogg/vorbis"
)

var commands = []*cli.Command{
	infoCommand,
	packetsCommand,
	scanCommand,
}

const helpText = `{{.Name}} inspects the contents of Ogg container files

Usage:

  {{.Name}} command [options] <arguments>

Available commands:

{{range .Commands}}{{if .Runnable}}{{printf "  %-12s %s" .String .Short}}{{if .Alias}} (alias: {{ join .Alias ", "}}){{end}}{{end}}
{{end}}
Use {{.Name}} [command] -h for more information about its usage.
`

func main() {
	defer func() {
		if err := recover(); err != nil {
			log.Fatalf("unexpected error: %s", err)
		}
	}()
	log.SetFlags(0)
	if err := cli.Run(commands, cli.Usage("oggtool", helpText, commands)); err != nil {
		log.Fatalln(err)
	}
}
