package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"

	"mysubs/internal/cli"
	"mysubs/internal/export"
)

type exportCmd struct {
	user   string
	format string
	out    string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export a user's subscriptions to a file" }
func (*exportCmd) Usage() string {
	return `mysubsctl export -user <id> [-format csv|xlsx|json] [-o <file>]

  Writes the user's subscriptions with their monthly KRW equivalent. The
  output defaults to mysubs_export_<date>.<format> in the working directory;
  use -o - for stdout.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "Owner id of the subscriptions.")
	f.StringVar(&c.format, "format", "csv", "Output format: csv, xlsx or json.")
	f.StringVar(&c.out, "o", "", "Output file, or - for stdout.")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.user == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		return subcommands.ExitUsageError
	}
	format, err := export.ParseFormat(c.format)
	if err != nil || format == export.Sheets {
		fmt.Fprintf(os.Stderr, "unsupported format %q\n", c.format)
		return subcommands.ExitUsageError
	}

	cfg, logger := cli.LoadAndValidateConfig(os.Stderr)
	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer store.Cleanup()

	subs, err := store.Backend.ListSubscriptions(ctx, c.user)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	rate := cli.NewRateProvider(cfg, logger).Rate(ctx)
	now := time.Now().In(cfg.Location())

	var w io.Writer = os.Stdout
	name := c.out
	if name == "" {
		name = format.FileName(now)
	}
	if name != "-" {
		f, err := os.Create(name)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		defer f.Close()
		w = f
	}
	if err := export.Write(w, format, subs, rate, now); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if name != "-" {
		logger.Info("Export written", "file", name, "subscriptions", len(subs), "rate", rate)
	}
	return subcommands.ExitSuccess
}
