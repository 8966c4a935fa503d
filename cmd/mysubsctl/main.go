// Command mysubsctl runs maintenance tasks against the configured backend.
package main

import (
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"

	"mysubs/internal/cli"
)

func main() {
	cli.LoadEnvFile()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&migrateCmd{}, "storage")
	commander.Register(&exportCmd{}, "data")
	commander.Register(&remindCmd{}, "jobs")
	commander.Register(&rateCmd{}, "jobs")

	flag.Parse()
	ctx, stop := cli.SignalContext()
	code := commander.Execute(ctx)
	stop()
	os.Exit(int(code))
}
