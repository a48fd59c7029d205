package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/loop"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

// #region helpers
func tempJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

var t0 = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

// #endregion helpers

func TestJournalRecordsRegistryActivity(t *testing.T) {
	j := tempJournal(t)
	reg := registry.New(registry.DefaultConfig(), registry.WithSink(j), registry.WithClock(func() time.Time { return t0 }))

	reg.Register("nation", "Republic", catalog.Nation)
	reg.Register("citizen", "", catalog.Individual)
	reg.Bind("nation", catalog.Bond, "citizen", nil)
	reg.UpdateAt("nation", 0.6, nil, t0)
	reg.UpdateAt("nation", 0.4, nil, t0.Add(24*time.Hour))
	reg.RunLoop("citizen", nil)

	c, err := j.Counts()
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if c.Entities != 2 || c.States != 2 || c.Loops != 5 || c.Alerts != 1 {
		t.Fatalf("unexpected counts %+v", c)
	}

	handles, err := j.Entities()
	if err != nil {
		t.Fatalf("Entities: %v", err)
	}
	if len(handles) != 2 || handles[1].ID != "nation" || handles[1].Name != "Republic" || handles[1].Category != catalog.Nation {
		t.Fatalf("unexpected handles %+v", handles)
	}
	if !handles[1].CreatedAt.Equal(t0) {
		t.Fatalf("created_at = %v, want %v", handles[1].CreatedAt, t0)
	}

	states, err := j.States("nation", 0)
	if err != nil {
		t.Fatalf("States: %v", err)
	}
	if len(states) != 2 || states[0].Value != 0.6 || states[1].Value != 0.4 {
		t.Fatalf("unexpected states %+v", states)
	}
	if latest, _ := j.States("nation", 1); len(latest) != 1 || latest[0].Value != 0.4 {
		t.Fatalf("limit should keep the newest state, got %+v", latest)
	}

	loops, err := j.Loops("citizen", 0)
	if err != nil {
		t.Fatalf("Loops: %v", err)
	}
	if len(loops) != 5 || loops[0].Phase != loop.Eliminate || loops[4].Phase != loop.Discovery {
		t.Fatalf("loops should be newest first, got %d", len(loops))
	}
	if all, _ := j.Loops("", 2); len(all) != 2 {
		t.Fatalf("expected 2 loops across entities, got %d", len(all))
	}

	alerts, err := j.Alerts(10)
	if err != nil {
		t.Fatalf("Alerts: %v", err)
	}
	if len(alerts) != 1 || alerts[0].TriggerEntityID != "nation" || alerts[0].Affected[0].EntityID != "citizen" {
		t.Fatalf("unexpected alerts %+v", alerts)
	}
	if alerts[0].ID != reg.Alerts(0)[0].ID {
		t.Fatal("alert id should round-trip")
	}
}

func TestSaveStateRequiresEntity(t *testing.T) {
	j := tempJournal(t)
	if err := j.SaveState("ghost", state.New(0.1, 0, t0)); err == nil {
		t.Fatal("expected foreign key violation for unknown entity")
	}
}

func TestEntitiesRejectsBadTimestamp(t *testing.T) {
	j := tempJournal(t)
	if _, err := j.DB().Exec(`INSERT INTO entities VALUES ('bad', 'Bad', 'venture', 'yesterday')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := j.Entities(); err == nil {
		t.Fatal("expected error for unparseable created_at")
	}
}

func TestSaveEntityIdempotent(t *testing.T) {
	j := tempJournal(t)
	h := registry.Handle{ID: "a", Name: "A", Category: catalog.Venture, CreatedAt: t0}
	if err := j.SaveEntity(h); err != nil {
		t.Fatal(err)
	}
	if err := j.SaveEntity(h); err != nil {
		t.Fatalf("second save should be a no-op: %v", err)
	}
	if c, _ := j.Counts(); c.Entities != 1 {
		t.Fatalf("expected 1 entity, got %d", c.Entities)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	j.SaveEntity(registry.Handle{ID: "a", Name: "A", Category: catalog.Venture, CreatedAt: t0})
	j.SaveState("a", state.New(0.3, 0.2, t0))
	j.Close()

	j2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j2.Close()
	states, err := j2.States("a", 0)
	if err != nil || len(states) != 1 || states[0].Interaction != 0.2 {
		t.Fatalf("expected persisted state, got %+v err=%v", states, err)
	}
}

func TestMemoryJournal(t *testing.T) {
	j, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	if err := j.SaveEntity(registry.Handle{ID: "m", Name: "M", Category: catalog.Ideology, CreatedAt: t0}); err != nil {
		t.Fatal(err)
	}
	if c, _ := j.Counts(); c.Entities != 1 {
		t.Fatalf("expected shared in-memory database, got %+v", c)
	}
}
