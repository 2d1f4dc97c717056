package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"pkt.systems/pslog"

	"github.com/seqgpt/helper-mcp/pkg/smoke"
)

const smokeBaseURLKey = "smoke.base_url"

func newSmokeCommand(baseLogger pslog.Logger) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run end-to-end checks against a helper backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			url := smokeBaseURL(local)
			runner, err := smoke.New(url, baseLogger)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			results := runner.Run(ctx)
			out := cmd.OutOrStdout()
			for _, res := range results {
				line := fmt.Sprintf("%-42s %s", res.Name, res.Status)
				if res.Detail != "" {
					line += "  " + res.Detail
				}
				fmt.Fprintln(out, line)
			}
			if smoke.Failed(results) {
				return fmt.Errorf("smoke checks failed against %s", url)
			}
			fmt.Fprintln(out, "all checks passed")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("base-url", "http://127.0.0.1:8000", "helper backend base URL")
	flags.BoolVar(&local, "local", false, "shorthand for --base-url http://127.0.0.1:8000")
	mustBindFlag(smokeBaseURLKey, "HELPER_BACKEND_URL", flags.Lookup("base-url"))

	return cmd
}

// smokeBaseURL resolves the target: --local wins, then the flag, then
// HELPER_BACKEND_URL, then the default.
func smokeBaseURL(local bool) string {
	if local {
		return "http://127.0.0.1:8000"
	}
	return strings.TrimSpace(viper.GetString(smokeBaseURLKey))
}
