package rpc

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/entity-dynamics/internal/cascade"
	"github.com/danielpatrickdp/entity-dynamics/internal/loop"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
	"github.com/danielpatrickdp/entity-dynamics/internal/relation"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

// #region client
// Client wraps the gRPC connection to a dynamics server.
type Client struct {
	conn   *grpc.ClientConn
	invoke grpc.ClientConnInterface
}

// NewClient connects to the server at addr without transport security.
// Extra dial options are appended.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &Client{conn: conn, invoke: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, name string, req, resp any) error {
	op := strings.ToLower(name)
	in, err := encode(req)
	if err != nil {
		return fmt.Errorf("%s rpc: %w", op, err)
	}
	out := new(structpb.Struct)
	if err := c.invoke.Invoke(ctx, fullMethod(name), in, out); err != nil {
		return fmt.Errorf("%s rpc: %w", op, err)
	}
	if err := decode(out, resp); err != nil {
		return fmt.Errorf("%s rpc: %w", op, err)
	}
	return nil
}

// #endregion client

// #region calls
func (c *Client) Register(ctx context.Context, id, name, category string) (registry.Handle, error) {
	var h registry.Handle
	err := c.call(ctx, MethodRegister, RegisterRequest{ID: id, Name: name, Category: category}, &h)
	return h, err
}

func (c *Client) Update(ctx context.Context, id string, value float64, interaction *float64) (state.Vector, error) {
	var resp UpdateResponse
	err := c.call(ctx, MethodUpdate, UpdateRequest{ID: id, Value: value, Interaction: interaction}, &resp)
	return resp.State, err
}

func (c *Client) Bind(ctx context.Context, id, rel, target string, initial *float64) (relation.SlotKey, bool, error) {
	var resp BindResponse
	err := c.call(ctx, MethodBind, BindRequest{ID: id, Relation: rel, Target: target, Initial: initial}, &resp)
	return resp.Slot, resp.Bound, err
}

func (c *Client) Unbind(ctx context.Context, id string, slot relation.SlotKey) (bool, error) {
	var resp UnbindResponse
	err := c.call(ctx, MethodUnbind, UnbindRequest{ID: id, Slot: slot}, &resp)
	return resp.Unbound, err
}

func (c *Client) RunLoop(ctx context.Context, id string, delta *float64) ([]loop.Execution, error) {
	var resp RunLoopResponse
	err := c.call(ctx, MethodRunLoop, RunLoopRequest{ID: id, Delta: delta}, &resp)
	return resp.Executions, err
}

func (c *Client) RunAllLoops(ctx context.Context) (registry.SweepResult, error) {
	var res registry.SweepResult
	err := c.call(ctx, MethodRunAllLoops, empty{}, &res)
	return res, err
}

func (c *Client) Simulate(ctx context.Context, days float64) (registry.Forecast, error) {
	var f registry.Forecast
	err := c.call(ctx, MethodSimulate, SimulateRequest{Days: days}, &f)
	return f, err
}

func (c *Client) GlobalState(ctx context.Context) (registry.Summary, error) {
	var s registry.Summary
	err := c.call(ctx, MethodGlobalState, empty{}, &s)
	return s, err
}

func (c *Client) Alerts(ctx context.Context, limit int) ([]cascade.Alert, error) {
	var resp AlertsResponse
	err := c.call(ctx, MethodAlerts, AlertsRequest{Limit: limit}, &resp)
	return resp.Alerts, err
}

func (c *Client) Entity(ctx context.Context, id string) (registry.Snapshot, error) {
	var s registry.Snapshot
	err := c.call(ctx, MethodEntity, EntityRequest{ID: id}, &s)
	return s, err
}

func (c *Client) ApplyCascade(ctx context.Context, alertID string) ([]cascade.Suggestion, error) {
	var resp ApplyCascadeResponse
	err := c.call(ctx, MethodApplyCascade, ApplyCascadeRequest{AlertID: alertID}, &resp)
	return resp.Applied, err
}

func (c *Client) ReleaseQuarantine(ctx context.Context, id string) (bool, error) {
	var resp ReleaseResponse
	err := c.call(ctx, MethodReleaseQuarantine, EntityRequest{ID: id}, &resp)
	return resp.Released, err
}

// #endregion calls
