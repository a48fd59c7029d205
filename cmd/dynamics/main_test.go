package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, config.LogConfig{Level: "info", Format: "json"}).Info("hello", "k", 1)
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("json handler output not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "hello" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestCatalogCommand(t *testing.T) {
	out, err := execute(t, "catalog", "--json")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	var table map[catalog.Category]catalog.Constants
	if err := json.Unmarshal([]byte(out), &table); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(table) != 8 || table[catalog.Venture].ReviewCadenceDays != 14 {
		t.Fatalf("unexpected table %+v", table)
	}

	out, err = execute(t, "catalog")
	if err != nil || !strings.Contains(out, "small_org") || !strings.Contains(out, "Interaction coefficients") {
		t.Fatalf("table output: %q err=%v", out, err)
	}
}

func TestReplayCommand(t *testing.T) {
	fixture := filepath.Join("..", "..", "internal", "replay", "testdata", "venture_decline.yaml")
	out, err := execute(t, "replay", fixture, "--log-level", "error")
	if err != nil {
		t.Fatalf("replay: %v\n%s", err, out)
	}
	if !strings.Contains(out, "failed") || strings.Contains(out, "FAIL") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	journalPath := filepath.Join(t.TempDir(), "run.db")
	if _, err := execute(t, "replay", fixture, "--journal", journalPath, "--log-level", "error"); err != nil {
		t.Fatalf("replay with journal: %v", err)
	}
	out, err = execute(t, "inspect", "--db", journalPath, "--json")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var overview struct {
		Counts struct {
			Entities int `json:"entities"`
			Alerts   int `json:"alerts"`
		} `json:"counts"`
	}
	if err := json.Unmarshal([]byte(out), &overview); err != nil {
		t.Fatalf("decode inspect: %v", err)
	}
	if overview.Counts.Entities != 2 || overview.Counts.Alerts != 2 {
		t.Fatalf("unexpected journal counts %+v", overview.Counts)
	}
}

func TestReplayCommandReportsFailures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "steps:\n  - {action: update, entity: ghost, value: 0.1}\n")
	_, err := execute(t, "replay", path, "--log-level", "error")
	if err == nil || !strings.Contains(err.Error(), "1 of 1 steps failed") {
		t.Fatalf("expected failure error, got %v", err)
	}
}

func TestInspectRequiresJournal(t *testing.T) {
	t.Setenv("DYNAMICS_JOURNAL", "")
	if _, err := execute(t, "inspect"); err == nil {
		t.Fatal("expected error without a journal path")
	}
}
