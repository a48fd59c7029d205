package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
	"github.com/danielpatrickdp/entity-dynamics/internal/registry"
)

// #region struct-codec
// encode converts a JSON-tagged value into a Struct message.
func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("to struct: %w", err)
	}
	return out, nil
}

// decode fills v from a Struct message.
func decode(in *structpb.Struct, v any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("from struct: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

// #endregion struct-codec

// #region status
// toStatus maps registry and catalog errors onto gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, registry.ErrAlertNotFound):
		code = codes.NotFound
	case errors.Is(err, registry.ErrDuplicateEntity):
		code = codes.AlreadyExists
	case errors.Is(err, registry.ErrQuarantined), errors.Is(err, registry.ErrAlertApplied):
		code = codes.FailedPrecondition
	case errors.Is(err, registry.ErrInvalidEntity),
		errors.Is(err, registry.ErrSelfRelation),
		errors.Is(err, registry.ErrInvalidSlot),
		errors.Is(err, catalog.ErrUnknownCategory),
		errors.Is(err, catalog.ErrUnknownRelation):
		code = codes.InvalidArgument
	}
	return status.Error(code, err.Error())
}

// #endregion status
