package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/entity-dynamics/internal/cascade"
	"github.com/danielpatrickdp/entity-dynamics/internal/journal"
	"github.com/danielpatrickdp/entity-dynamics/internal/loop"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

func inspectCmd(a *app) *cobra.Command {
	var (
		dbPath  string
		entity  string
		last    int
		alerts  bool
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Read a SQLite journal written by serve or replay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = a.cfg.Journal.Path
			}
			if dbPath == "" {
				return fmt.Errorf("no journal: pass --db or set journal.path")
			}
			j, err := journal.Open(dbPath)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer j.Close()

			out := cmd.OutOrStdout()
			switch {
			case entity != "":
				return inspectEntity(out, j, entity, last, jsonOut)
			case alerts:
				return inspectAlerts(out, j, last, jsonOut)
			default:
				return inspectOverview(out, j, jsonOut)
			}
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "journal path (defaults to journal.path)")
	cmd.Flags().StringVar(&entity, "entity", "", "show states and loop executions of one entity")
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent rows")
	cmd.Flags().BoolVar(&alerts, "alerts", false, "list cascade alerts")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

// #region overview
func inspectOverview(w io.Writer, j *journal.Journal, jsonOut bool) error {
	counts, err := j.Counts()
	if err != nil {
		return err
	}
	entities, err := j.Entities()
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(w, struct {
			Counts   journal.Counts    `json:"counts"`
			Entities []registry.Handle `json:"entities"`
		}{counts, entities})
	}
	fmt.Fprintf(w, "entities=%d states=%d loops=%d alerts=%d\n\n", counts.Entities, counts.States, counts.Loops, counts.Alerts)
	fmt.Fprintf(w, "%-20s| %-14s| %-24s| %s\n", "ID", "Category", "Name", "Created")
	for _, h := range entities {
		fmt.Fprintf(w, "%-20s| %-14s| %-24s| %s\n", h.ID, h.Category, h.Name, h.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// #endregion overview

// #region entity
func inspectEntity(w io.Writer, j *journal.Journal, id string, last int, jsonOut bool) error {
	states, err := j.States(id, 0)
	if err != nil {
		return err
	}
	if last > 0 && len(states) > last {
		states = states[len(states)-last:]
	}
	loops, err := j.Loops(id, last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(w, struct {
			States []state.Vector   `json:"states"`
			Loops  []loop.Execution `json:"loops"`
		}{states, loops})
	}
	if len(states) == 0 && len(loops) == 0 {
		fmt.Fprintf(w, "no journal rows for %s\n", id)
		return nil
	}

	fmt.Fprintf(w, "%-17s| %-8s| %-8s| %-9s| %-9s| %-8s| %s\n", "Timestamp", "Value", "Inter", "dV/dt", "d2V/dt2", "Entropy", "Conf")
	for _, v := range states {
		fmt.Fprintf(w, "%-17s| %-8.4f| %-8.4f| %-+9.4f| %-+9.4f| %-8.4f| %.4f\n",
			v.Timestamp.Format("2006-01-02 15:04"), v.Value, v.Interaction, v.DValueDt, v.D2ValueDt2, v.Entropy, v.Confidence)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-17s| %-10s| %-4s| %s\n", "Started", "Phase", "OK", "Actions")
	for _, e := range loops {
		ok := "yes"
		if !e.Success {
			ok = "no"
		}
		fmt.Fprintf(w, "%-17s| %-10s| %-4s| %s\n", e.StartedAt.Format("2006-01-02 15:04"), e.Phase, ok, strings.Join(e.ActionsTaken, "; "))
	}
	return nil
}

// #endregion entity

// #region alerts
func inspectAlerts(w io.Writer, j *journal.Journal, last int, jsonOut bool) error {
	alerts, err := j.Alerts(last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(w, struct {
			Alerts []cascade.Alert `json:"alerts"`
		}{alerts})
	}
	for _, a := range alerts {
		fmt.Fprintf(w, "%s  %s (%s) rate=%+.4f affected=%d\n",
			a.Timestamp.Format("2006-01-02 15:04"), a.TriggerEntityID, a.TriggerCategory, a.TriggerRateOfChange, len(a.Affected))
		for _, imp := range a.Affected {
			fmt.Fprintf(w, "    -> %-20s %-14s via %-14s impact=%+.4f\n", imp.EntityID, imp.Category, imp.Relation, imp.EstimatedImpact)
		}
	}
	return nil
}

// #endregion alerts
