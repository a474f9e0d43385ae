package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/seantiz/topoctl/internal/model"
	"github.com/seantiz/topoctl/internal/orchestrator"
	"github.com/seantiz/topoctl/internal/store"
)

// Compile-time interface satisfaction check.
var _ TopologyOperationsServer = (*Service)(nil)

// Service implements TopologyOperationsServer on an orchestrator.
type Service struct {
	orch   *orchestrator.Orchestrator
	store  store.Store
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(orch *orchestrator.Orchestrator, logger *slog.Logger) *Service {
	return &Service{orch: orch, store: orch.Store().Store(), logger: logger}
}

// Invoke runs an operation. A "<module>:" prefix on the operation name
// is ignored.
func (s *Service) Invoke(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()
	op, _ := fields["operation"].(string)
	if i := strings.LastIndex(op, ":"); i >= 0 {
		op = op[i+1:]
	}
	if op == "" {
		return nil, status.Error(codes.InvalidArgument, "operation is required")
	}
	raw, _ := fields["input"].(map[string]any)
	input, err := model.Normalize(raw)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	resp, err := s.orch.Execute(ctx, op, input)
	if errors.Is(err, orchestrator.ErrUnknownOperation) {
		return nil, status.Errorf(codes.NotFound, "unknown operation %s", op)
	}
	if err != nil {
		s.logger.Error("execute operation", "operation", op, "error", err)
		return nil, status.Error(codes.Internal, "failed to execute operation")
	}

	out, err := structpb.NewStruct(resp.Output())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode output: %v", err)
	}
	return out, nil
}

// GetEntity returns one stored entity.
func (s *Service) GetEntity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	family := req.GetFields()["family"].GetStringValue()
	key := req.GetFields()["key"].GetStringValue()
	if family == "" || key == "" {
		return nil, status.Error(codes.InvalidArgument, "family and key are required")
	}
	partition, err := model.ParsePartition(req.GetFields()["partition"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	e, err := s.store.Get(ctx, partition, family, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "entity %s/%s not found in %s", family, key, partition)
	}
	if err != nil {
		s.logger.Error("get entity", "family", family, "key", key, "error", err)
		return nil, status.Error(codes.Internal, "failed to get entity")
	}
	return entityStruct(e)
}

// entityStruct converts e through its JSON form so the struct carries the
// same field names as the HTTP API.
func entityStruct(e *model.Entity) (*structpb.Struct, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode entity: %v", err)
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(data); err != nil {
		return nil, status.Errorf(codes.Internal, "encode entity: %v", err)
	}
	return out, nil
}
