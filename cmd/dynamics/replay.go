package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/entity-dynamics/internal/journal"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
	"github.com/danielpatrickdp/entity-dynamics/internal/replay"
)

func replayCmd(a *app) *cobra.Command {
	var (
		jsonOut     bool
		journalPath string
	)
	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Run a scripted scenario on a simulated clock and check its expectations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := replay.LoadScenario(args[0])
			if err != nil {
				return err
			}
			opts := []registry.Option{registry.WithLogger(a.logger)}
			if journalPath != "" {
				j, err := journal.Open(journalPath)
				if err != nil {
					return fmt.Errorf("open journal: %w", err)
				}
				defer j.Close()
				opts = append(opts, registry.WithSink(j))
			}

			results, reg := replay.Replay(s, opts...)
			sum := replay.Summarize(results, reg)
			out := cmd.OutOrStdout()
			if jsonOut {
				if err := printJSON(out, struct {
					Steps   []replay.StepResult `json:"steps"`
					Summary replay.Summary      `json:"summary"`
				}{results, sum}); err != nil {
					return err
				}
			} else {
				printReplay(out, s, results, sum)
			}
			if sum.Failed > 0 {
				return fmt.Errorf("%d of %d steps failed", sum.Failed, sum.TotalSteps)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	cmd.Flags().StringVar(&journalPath, "journal", "", "record the run into a SQLite journal")
	return cmd
}

// #region output
func printReplay(w io.Writer, s *replay.Scenario, results []replay.StepResult, sum replay.Summary) {
	if s.Description != "" {
		fmt.Fprintf(w, "%s\n\n", s.Description)
	}
	fmt.Fprintf(w, "%-5s| %-10s| %-14s| %-14s| %s\n", "Step", "Day", "Action", "Entity", "Result")
	fmt.Fprintf(w, "%-5s+%-11s+%-15s+%-15s+%s\n", "-----", "-----------", "---------------", "---------------", "--------")
	for _, r := range results {
		day := r.At.Sub(s.Start).Hours() / 24
		mark := "ok"
		if !r.Passed() {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "%-5d| %-10.2f| %-14s| %-14s| %s  %s\n", r.Index, day, r.Action, r.Entity, mark, r.Detail)
		for _, f := range r.Failures {
			fmt.Fprintf(w, "%5s|   - %s\n", "", f)
		}
	}
	fmt.Fprintf(w, "\nSummary: %d total, %d passed, %d failed\n", sum.TotalSteps, sum.Passed, sum.Failed)
	fmt.Fprintf(w, "Final: %d entities, %d critical, %d quarantined, %d alerts, %d sweeps\n",
		sum.Final.Entities, sum.Final.Critical, sum.Final.Quarantined, sum.Final.CascadeAlerts, sum.Final.LoopSweeps)
}

// #endregion output
