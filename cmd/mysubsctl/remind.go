package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"mysubs/internal/cli"
	"mysubs/internal/core"
	"mysubs/internal/services"
)

type remindCmd struct {
	date string
}

func (*remindCmd) Name() string     { return "remind" }
func (*remindCmd) Synopsis() string { return "run a reminder job once" }
func (*remindCmd) Usage() string {
	return `mysubsctl remind [-date YYYY-MM-DD] <billing-reminder|trial-reminder|monthly-report>

  Runs one reminder job immediately, as the scheduler would, and prints the
  job result as JSON. -date pretends the job runs on that day.
`
}

func (c *remindCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "date", "", "Run as if today were this date.")
}

func (c *remindCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "exactly one job name is required")
		return subcommands.ExitUsageError
	}
	job := f.Arg(0)
	switch job {
	case services.JobBillingReminder, services.JobTrialReminder, services.JobMonthlyReport:
	default:
		fmt.Fprintf(os.Stderr, "unknown job %q\n", job)
		return subcommands.ExitUsageError
	}

	cfg, logger := cli.LoadAndValidateConfig(os.Stderr)
	now := time.Now().In(cfg.Location())
	if c.date != "" {
		d, err := core.ParseDate(c.date)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitUsageError
		}
		now = time.Date(d.Year(), d.Month(), d.Day(), now.Hour(), now.Minute(), 0, 0, cfg.Location())
	}

	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer store.Cleanup()

	notifier, closeNotifier, err := cli.Notifier(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeNotifier()

	reminders, err := cli.NewReminderService(cfg, store.Backend, cli.NewRateProvider(cfg, logger), notifier, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	res, err := reminders.Run(ctx, job, now)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(res)
	return subcommands.ExitSuccess
}
