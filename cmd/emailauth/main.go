package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"
)

var (
	app = kingpin.New("emailauth", "Account service for email-identified users.")

	command_handlers []func(command string) bool
)

func main() {
	app.HelpFlag.Short('h')
	app.UsageTemplate(kingpin.CompactUsageTemplate)

	command := kingpin.MustParse(app.Parse(os.Args[1:]))
	for _, handler := range command_handlers {
		if handler(command) {
			return
		}
	}
	kingpin.Fatalf("unknown command %q", command)
}
