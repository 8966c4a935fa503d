package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"mysubs/internal/cli"
	"mysubs/internal/core"
)

type rateCmd struct {
	usd float64
}

func (*rateCmd) Name() string     { return "rate" }
func (*rateCmd) Synopsis() string { return "fetch the current USD to KRW rate" }
func (*rateCmd) Usage() string {
	return `mysubsctl rate [-usd <amount>]

  Fetches the exchange rate the server would use, reporting whether the
  fallback rate was served. With -usd, also converts that amount.
`
}

func (c *rateCmd) SetFlags(f *flag.FlagSet) {
	f.Float64Var(&c.usd, "usd", 0, "USD amount to convert.")
}

func (c *rateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, logger := cli.LoadAndValidateConfig(os.Stderr)
	q := cli.NewRateProvider(cfg, logger).Quote(ctx)

	out := map[string]any{"quote": q}
	if c.usd > 0 {
		out["krw"] = core.FormatAmount(core.RoundAmount(c.usd*q.Rate), core.KRW)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if q.Fallback {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
