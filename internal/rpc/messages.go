package rpc

import (
	"github.com/danielpatrickdp/entity-dynamics/internal/cascade"
	"github.com/danielpatrickdp/entity-dynamics/internal/loop"
	"github.com/danielpatrickdp/entity-dynamics/internal/relation"
	"github.com/danielpatrickdp/entity-dynamics/internal/state"
)

// Requests and responses travel as google.protobuf.Struct. Their JSON shape
// is given by the tags below.

// #region requests
type RegisterRequest struct {
	ID       string `json:"id"`
	Name     string `json:"display_name,omitempty"`
	Category string `json:"category"`
}

type UpdateRequest struct {
	ID          string   `json:"id"`
	Value       float64  `json:"value"`
	Interaction *float64 `json:"interaction,omitempty"`
}

type BindRequest struct {
	ID       string   `json:"id"`
	Relation string   `json:"relation"`
	Target   string   `json:"target_id"`
	Initial  *float64 `json:"initial_interaction,omitempty"`
}

type UnbindRequest struct {
	ID   string           `json:"id"`
	Slot relation.SlotKey `json:"slot"`
}

type RunLoopRequest struct {
	ID    string   `json:"id"`
	Delta *float64 `json:"delta,omitempty"`
}

type SimulateRequest struct {
	Days float64 `json:"days"`
}

type AlertsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type EntityRequest struct {
	ID string `json:"id"`
}

type ApplyCascadeRequest struct {
	AlertID string `json:"alert_id"`
}

type empty struct{}

// #endregion requests

// #region responses
type UpdateResponse struct {
	State state.Vector `json:"state"`
}

type BindResponse struct {
	Slot  relation.SlotKey `json:"slot"`
	Bound bool             `json:"bound"`
}

type UnbindResponse struct {
	Unbound bool `json:"unbound"`
}

type RunLoopResponse struct {
	Executions []loop.Execution `json:"executions"`
}

type AlertsResponse struct {
	Alerts []cascade.Alert `json:"alerts"`
}

type ApplyCascadeResponse struct {
	Applied []cascade.Suggestion `json:"applied"`
}

type ReleaseResponse struct {
	Released bool `json:"released"`
}

// #endregion responses
