package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
	"github.com/danielpatrickdp/entity-dynamics/internal/rpc"
)

// statusCmd queries a running server.
func statusCmd(a *app) *cobra.Command {
	var (
		addr    string
		days    float64
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the global state of a running server and an optional forecast",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.GRPCAddr
			}
			c, err := rpc.NewClient(addr)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			sum, err := c.GlobalState(ctx)
			if err != nil {
				return err
			}
			report := struct {
				Summary  registry.Summary   `json:"summary"`
				Forecast *registry.Forecast `json:"forecast,omitempty"`
			}{Summary: sum}
			if days > 0 {
				f, err := c.Simulate(ctx, days)
				if err != nil {
					return err
				}
				report.Forecast = &f
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "server address (defaults to server.grpc_addr)")
	cmd.Flags().Float64Var(&days, "forecast", 0, "also simulate N days ahead")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}
