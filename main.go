// Factory operations assistant: a conversational agent over a synthetic
// production log. Subcommands: setup (generate the data store), chat
// (interactive assistant), stats (store summary), serve (dashboard API).
package main

import (
	"fmt"
	"os"

	"factoryops/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.LoadConfig()

	switch os.Args[1] {
	case "setup":
		runSetup(cfg)
	case "chat":
		runChat(cfg)
	case "stats":
		runStats(cfg)
	case "serve":
		runServe(cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: factoryops <command>

commands:
  setup   generate synthetic production data and write the store
  chat    start the interactive operations assistant
  stats   print a summary of the loaded store
  serve   serve the metrics dashboard API over HTTP`)
}
