package rpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
	"github.com/danielpatrickdp/entity-dynamics/internal/relation"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// startServer serves a fresh registry over an in-memory listener.
func startServer(t *testing.T) (*Client, *testClock) {
	t.Helper()
	clk := &testClock{t: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	reg := registry.New(registry.DefaultConfig(), registry.WithClock(clk.Now))

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	NewServer(reg).Register(gs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	c, err := NewClient("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, clk
}

func wantCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	if got := status.Code(err); got != code {
		t.Fatalf("expected %s, got %s (%v)", code, got, err)
	}
}

func TestRoundTrip_CascadeFlow(t *testing.T) {
	c, clk := startServer(t)
	ctx := context.Background()

	h, err := c.Register(ctx, "E1", "Republic", "nation")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if h.Category != catalog.Nation || h.Name != "Republic" {
		t.Fatalf("unexpected handle %+v", h)
	}
	if _, err := c.Register(ctx, "E2", "", "individual"); err != nil {
		t.Fatalf("Register E2: %v", err)
	}

	initial := 0.8
	slot, ok, err := c.Bind(ctx, "E1", "bond", "E2", &initial)
	if err != nil || !ok {
		t.Fatalf("Bind: ok=%v err=%v", ok, err)
	}
	if slot != (relation.SlotKey{Category: catalog.Bond, Index: 0}) {
		t.Fatalf("unexpected slot %v", slot)
	}

	if _, err := c.Update(ctx, "E1", 0.5, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}
	clk.advance(24 * time.Hour)
	v, err := c.Update(ctx, "E1", 0.45, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if math.Abs(v.DValueDt+0.05) > 1e-9 {
		t.Fatalf("d_value_dt = %v, want -0.05", v.DValueDt)
	}

	alerts, err := c.Alerts(ctx, 0)
	if err != nil || len(alerts) != 1 {
		t.Fatalf("Alerts: %d err=%v", len(alerts), err)
	}
	if a := alerts[0]; a.TriggerEntityID != "E1" || len(a.Affected) != 1 || a.Affected[0].EntityID != "E2" {
		t.Fatalf("unexpected alert %+v", a)
	}

	applied, err := c.ApplyCascade(ctx, alerts[0].ID)
	if err != nil || len(applied) != 1 {
		t.Fatalf("ApplyCascade: %v err=%v", applied, err)
	}
	snap, err := c.Entity(ctx, "E2")
	if err != nil {
		t.Fatalf("Entity: %v", err)
	}
	if math.Abs(snap.Current.Value+0.06) > 1e-9 {
		t.Fatalf("E2 value = %v, want -0.06", snap.Current.Value)
	}
	_, err = c.ApplyCascade(ctx, alerts[0].ID)
	wantCode(t, err, codes.FailedPrecondition)

	sum, err := c.GlobalState(ctx)
	if err != nil || sum.Entities != 2 || sum.CascadeAlerts != 1 {
		t.Fatalf("GlobalState: %+v err=%v", sum, err)
	}
	if sum.ByCategory[catalog.Nation].Count != 1 {
		t.Fatalf("by category: %+v", sum.ByCategory)
	}
}

func TestRoundTrip_Loops(t *testing.T) {
	c, _ := startServer(t)
	ctx := context.Background()
	if _, err := c.Register(ctx, "a", "", "individual"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := c.Update(ctx, "a", 0.2, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}

	delta := 0.1
	execs, err := c.RunLoop(ctx, "a", &delta)
	if err != nil {
		t.Fatalf("RunLoop: %v", err)
	}
	if len(execs) != 5 {
		t.Fatalf("expected 5 phase executions, got %d", len(execs))
	}
	if execs[3].InjectedDelta == nil || *execs[3].InjectedDelta != 0.1 {
		t.Fatalf("optimize phase should carry the delta, got %+v", execs[3])
	}

	res, err := c.RunAllLoops(ctx)
	if err != nil {
		t.Fatalf("RunAllLoops: %v", err)
	}
	if res.Sweep != 1 || res.Ran+res.Skipped != 1 {
		t.Fatalf("unexpected sweep %+v", res)
	}

	f, err := c.Simulate(ctx, 7)
	if err != nil || f.Days != 7 || len(f.Predictions) != 1 {
		t.Fatalf("Simulate: %+v err=%v", f, err)
	}

	released, err := c.ReleaseQuarantine(ctx, "a")
	if err != nil || released {
		t.Fatalf("ReleaseQuarantine: %v err=%v", released, err)
	}
	ok, err := c.Unbind(ctx, "a", relation.SlotKey{Category: catalog.Supply, Index: 0})
	if err != nil || ok {
		t.Fatalf("Unbind empty slot: %v err=%v", ok, err)
	}
}

func TestErrorCodes(t *testing.T) {
	c, _ := startServer(t)
	ctx := context.Background()
	if _, err := c.Register(ctx, "a", "", "individual"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, err := c.Register(ctx, "a", "", "individual")
	wantCode(t, err, codes.AlreadyExists)

	_, err = c.Register(ctx, "b", "", "martian")
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.Entity(ctx, "ghost")
	wantCode(t, err, codes.NotFound)

	_, _, err = c.Bind(ctx, "a", "bond", "a", nil)
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.Unbind(ctx, "a", relation.SlotKey{Category: catalog.Bond, Index: 99})
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.Simulate(ctx, -1)
	wantCode(t, err, codes.InvalidArgument)

	_, err = c.ApplyCascade(ctx, "missing")
	wantCode(t, err, codes.NotFound)
}

func TestDispatchUnknownMethod(t *testing.T) {
	s := NewServer(registry.New(registry.DefaultConfig()))
	_, err := s.dispatch(context.Background(), "Explode", &structpb.Struct{})
	wantCode(t, err, codes.Unimplemented)
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("x: %w", registry.ErrNotFound), codes.NotFound},
		{registry.ErrAlertNotFound, codes.NotFound},
		{registry.ErrDuplicateEntity, codes.AlreadyExists},
		{registry.ErrQuarantined, codes.FailedPrecondition},
		{registry.ErrAlertApplied, codes.FailedPrecondition},
		{registry.ErrSelfRelation, codes.InvalidArgument},
		{catalog.ErrUnknownRelation, codes.InvalidArgument},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.InvalidArgument, "days must be >= 0"), codes.InvalidArgument},
		{status.Error(codes.Unavailable, "draining"), codes.Unavailable},
	}
	for _, tc := range cases {
		if got := status.Code(toStatus(tc.err)); got != tc.code {
			t.Errorf("%v: got %s, want %s", tc.err, got, tc.code)
		}
	}
	if toStatus(nil) != nil {
		t.Fatal("nil error should stay nil")
	}
	if got := status.Convert(toStatus(status.Error(codes.InvalidArgument, "bad days"))).Message(); got != "bad days" {
		t.Fatalf("status message rewritten to %q", got)
	}
}
