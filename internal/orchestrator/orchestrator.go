package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/seantiz/topoctl/internal/logic"
	"github.com/seantiz/topoctl/internal/model"
	"github.com/seantiz/topoctl/internal/propbag"
	"github.com/seantiz/topoctl/internal/store"
)

// ErrUnknownOperation is returned by Execute for a name missing from the
// catalog.
var ErrUnknownOperation = errors.New("unknown operation")

// persistTimeout bounds the writes that follow a procedure run.
const persistTimeout = 30 * time.Second

// verdict is the part of a procedure response the workflow interprets.
type verdict struct {
	ErrorCode    string `mapstructure:"error-code"`
	ErrorMessage string `mapstructure:"error-message"`
	AckFinal     string `mapstructure:"ack-final"`
	SkipUpdate   string `mapstructure:"skip-mdsal-update"`
	SvcLogic     struct {
		Status string `mapstructure:"status"`
	} `mapstructure:"SvcLogic"`
}

// Orchestrator runs topology operations: it loads stored state, asks the
// logic engine for a verdict, persists the outcome and hands follow-up
// work to the continuation runner.
type Orchestrator struct {
	catalog *Catalog
	store   *store.Client
	logic   *logic.Client
	runner  *Runner
	broker  *StatusBroker
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// New creates an orchestrator. runner may be nil, in which case
// continuations are rejected.
func New(catalog *Catalog, st *store.Client, lc *logic.Client, runner *Runner, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		catalog: catalog,
		store:   st,
		logic:   lc,
		runner:  runner,
		broker:  NewStatusBroker(),
		logger:  logger,
		tracer:  otel.Tracer("github.com/seantiz/topoctl/internal/orchestrator"),
		now:     time.Now,
	}
}

// Catalog returns the operation catalog.
func (o *Orchestrator) Catalog() *Catalog {
	return o.catalog
}

// Broker returns the status broker entities' updates are published on.
func (o *Orchestrator) Broker() *StatusBroker {
	return o.broker
}

// Store returns the store client.
func (o *Orchestrator) Store() *store.Client {
	return o.store
}

// Execute runs operation name for input and returns the response. The
// only error is ErrUnknownOperation; every workflow failure is reported
// through the response code.
func (o *Orchestrator) Execute(ctx context.Context, name string, input model.Record) (*Response, error) {
	spec, ok := o.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.Execute", trace.WithAttributes(
		attribute.String("topoctl.operation", name),
	))
	defer span.End()

	req := o.newRequest(spec, input)
	resp := &Response{SvcRequestID: req.RequestID}

	if msg := spec.Validate(req.Input()); msg != "" {
		o.logger.Info("rejecting invalid request", "operation", name, "reason", msg)
		operationsTotal.WithLabelValues(name, outcomeInvalid).Inc()
		resp.ResponseCode = ValidationErrorCode
		resp.ResponseMessage = msg
		resp.AckFinalIndicator = model.FinalYes
		return resp, nil
	}
	span.SetAttributes(attribute.String("topoctl.key", req.PrimaryKey))

	res, outcome := o.run(ctx, spec, req, spec.Name, model.RequestSyncComplete)
	operationsTotal.WithLabelValues(name, outcome).Inc()

	resp.ResponseCode = res.ResponseCode
	resp.ResponseMessage = res.ResponseMessage
	resp.AckFinalIndicator = res.AckFinal
	if outcome != outcomeSuccess {
		span.SetStatus(codes.Error, res.ResponseMessage)
		return resp, nil
	}
	resp.Sections = spec.responseSections(req.Input(), res.Extra)

	if res.AckFinal == model.FinalNo {
		o.dispatch(spec, req)
	}
	return resp, nil
}

func (o *Orchestrator) newRequest(spec OperationSpec, input model.Record) *OperationRequest {
	input = input.Clone()
	if input == nil {
		input = model.Record{}
	}
	action, raw := spec.Action(input)
	if action == "" && raw != "" {
		o.logger.Warn("unknown action requested", "operation", spec.Name, "action", raw)
	}
	requestAction, _ := input.Lookup(spec.RequestActionPath)
	id, _ := input.Lookup(requestIDPath)
	if id == "" {
		id = model.NewID()
	}
	return &OperationRequest{
		Operation:     spec.Name,
		PrimaryKey:    spec.PrimaryKey(input),
		RequestID:     id,
		Action:        action,
		RequestAction: requestAction,
		Sections:      map[string]model.Record{SectionInput: input},
	}
}

// run performs the workflow from state load through persistence for one
// request and returns the result with its metric outcome.
func (o *Orchestrator) run(ctx context.Context, spec OperationSpec, req *OperationRequest, opName, requestStatus string) (OperationResult, string) {
	logger := o.logger.With("operation", opName, "key", req.PrimaryKey, "svc_request_id", req.RequestID)

	desired, sections := o.loadState(ctx, spec, req)
	working := model.Record{}
	if desired != nil && desired.Data != nil {
		working = desired.Data.Clone()
	}

	params := propbag.Bag{}
	for name, sec := range sections {
		prefix := name
		if name == SectionInput {
			prefix = ""
		}
		propbag.FlattenInto(params, sec, prefix)
	}

	res := o.invoke(ctx, spec, opName, working, params, logger)
	status := &model.Status{
		ResponseCode:      res.ResponseCode,
		ResponseMessage:   res.ResponseMessage,
		FinalIndicator:    res.AckFinal,
		ResponseTimestamp: model.Timestamp(o.now()),
		RequestStatus:     requestStatus,
		Action:            req.RequestAction,
		RPCAction:         req.Action,
		RPCName:           opName,
	}

	// The engine has acted; the outcome is stored even if the caller
	// goes away.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if !res.Success() {
		logger.Info("operation failed", "code", res.ResponseCode, "message", res.ResponseMessage)
		if err := o.writeStatus(pctx, spec, req, status); err != nil {
			logger.Error("persisting failure status", "error", err)
		}
		return res, outcomeFailure
	}

	if err := o.persist(pctx, spec, req, working, status, res.SkipUpdate); err != nil {
		logger.Error("persisting operation result", "action", req.Action, "error", err)
		res.ResponseCode = "500"
		res.ResponseMessage = err.Error()
		res.AckFinal = model.FinalYes
		status.ResponseCode = res.ResponseCode
		status.ResponseMessage = res.ResponseMessage
		status.FinalIndicator = res.AckFinal
		if err := o.writeStatus(pctx, spec, req, status); err != nil {
			logger.Error("persisting error status", "error", err)
		}
		return res, outcomeError
	}
	logger.Info("operation completed", "code", res.ResponseCode, "ack_final", res.AckFinal)
	return res, outcomeSuccess
}

// loadState reads the stored entity from both partitions and every
// related section concurrently. Reads are best-effort. The returned
// sections always contain the input.
func (o *Orchestrator) loadState(ctx context.Context, spec OperationSpec, req *OperationRequest) (*model.Entity, map[string]model.Record) {
	var (
		g        errgroup.Group
		desired  *model.Entity
		observed *model.Entity
		related  = make([]*model.Entity, len(spec.Related))
	)
	g.Go(func() error {
		desired, _ = o.store.Read(ctx, model.Desired, spec.Family, req.PrimaryKey)
		return nil
	})
	g.Go(func() error {
		observed, _ = o.store.Read(ctx, model.Observed, spec.Family, req.PrimaryKey)
		return nil
	})
	for i, rs := range spec.Related {
		key := rs.Key(req.Input())
		if key == "" {
			continue
		}
		partition := rs.Partition
		if partition == "" {
			partition = model.Desired
		}
		g.Go(func() error {
			related[i], _ = o.store.Read(ctx, partition, rs.Family, key)
			return nil
		})
	}
	_ = g.Wait()

	sections := map[string]model.Record{SectionInput: req.Input()}
	if observed != nil && len(observed.Data) > 0 {
		sections[SectionOperationalData] = observed.Data
	}
	for i, rs := range spec.Related {
		if related[i] != nil && len(related[i].Data) > 0 {
			sections[rs.Name] = related[i].Data
		}
	}
	return desired, sections
}

// invoke probes for and runs the procedure, folding every engine error
// into a result.
func (o *Orchestrator) invoke(ctx context.Context, spec OperationSpec, opName string, working model.Record, params propbag.Bag, logger *slog.Logger) OperationResult {
	start := time.Now()
	defer func() {
		engineDuration.WithLabelValues(opName).Observe(time.Since(start).Seconds())
	}()

	ref := o.logic.Ref(opName)
	ok, err := o.logic.HasProcedure(ctx, ref)
	if err != nil {
		logger.Error("probing logic engine", "procedure", ref.String(), "error", err)
		return failed("500", err.Error())
	}
	if !ok {
		logger.Warn("no procedure registered", "procedure", ref.String())
		return failed("503", fmt.Sprintf("No service logic active for %s: '%s'", ref.Module, ref.Operation))
	}

	resp, err := o.logic.Invoke(ctx, ref, working, spec.DataFields, params)
	if err != nil {
		if errors.Is(err, logic.ErrProcedureNotRegistered) {
			return failed("503", fmt.Sprintf("No service logic active for %s: '%s'", ref.Module, ref.Operation))
		}
		logger.Error("executing procedure", "procedure", ref.String(), "error", err)
		return failed("500", err.Error())
	}

	var v verdict
	if err := propbag.Decode(resp, "", &v); err != nil {
		logger.Error("decoding procedure response", "procedure", ref.String(), "error", err)
		return failed("500", err.Error())
	}

	res := OperationResult{
		ResponseCode:    v.ErrorCode,
		ResponseMessage: v.ErrorMessage,
		AckFinal:        v.AckFinal,
		SkipUpdate:      v.SkipUpdate == "Y",
		Extra:           resp,
	}
	if v.SvcLogic.Status == logic.StatusFailure && res.Success() {
		res.ResponseCode = "500"
	}
	if res.ResponseCode == "" {
		res.ResponseCode = "200"
	}
	if res.AckFinal == "" || !res.Success() {
		res.AckFinal = model.FinalYes
	}
	return res
}

func failed(code, message string) OperationResult {
	return OperationResult{ResponseCode: code, ResponseMessage: message, AckFinal: model.FinalYes}
}

// writeStatus merges status alone into the Desired entity and publishes it.
func (o *Orchestrator) writeStatus(ctx context.Context, spec OperationSpec, req *OperationRequest, status *model.Status) error {
	e := &model.Entity{Family: spec.Family, Key: req.PrimaryKey, Status: status}
	if err := o.store.Write(ctx, model.Desired, e, store.Merge); err != nil {
		return err
	}
	o.broker.Publish(Topic(spec.Family, req.PrimaryKey), status)
	return nil
}

// persist stores a successful result. Delete-class actions remove the
// entity from both partitions; otherwise the working record replaces the
// Desired entity and, for observed actions, the Observed one.
func (o *Orchestrator) persist(ctx context.Context, spec OperationSpec, req *OperationRequest, working model.Record, status *model.Status, skip bool) error {
	if skip {
		return o.writeStatus(ctx, spec, req, status)
	}

	topic := Topic(spec.Family, req.PrimaryKey)
	if spec.deletes(req.Action) {
		err := multierr.Combine(
			o.store.Delete(ctx, model.Observed, spec.Family, req.PrimaryKey),
			o.store.Delete(ctx, model.Desired, spec.Family, req.PrimaryKey),
		)
		if err != nil {
			return err
		}
		o.broker.Publish(topic, status)
		o.broker.Close(topic)
		return nil
	}

	e := &model.Entity{Family: spec.Family, Key: req.PrimaryKey, Data: working, Status: status}
	if err := o.store.Write(ctx, model.Desired, e, store.Replace); err != nil {
		return err
	}
	if spec.observes(req.Action) {
		if err := o.store.Write(ctx, model.Observed, e.Clone(), store.Replace); err != nil {
			return err
		}
	}
	o.broker.Publish(topic, status)
	return nil
}

// dispatch hands the request to the continuation runner. A rejected
// continuation is recorded as a 503 status so observers are not left
// waiting for it.
func (o *Orchestrator) dispatch(spec OperationSpec, req *OperationRequest) {
	asyncName := spec.AsyncName()
	err := ErrRunnerClosed
	if o.runner != nil {
		err = o.runner.Submit(asyncName+"/"+req.PrimaryKey, func(ctx context.Context) {
			o.continueOperation(ctx, spec, req)
		})
	}
	if err == nil {
		return
	}

	o.logger.Warn("continuation rejected", "operation", asyncName, "key", req.PrimaryKey, "error", err)
	status := &model.Status{
		ResponseCode:      "503",
		ResponseMessage:   "continuation rejected: " + err.Error(),
		FinalIndicator:    model.FinalYes,
		ResponseTimestamp: model.Timestamp(o.now()),
		RequestStatus:     model.RequestAsyncComplete,
		Action:            req.RequestAction,
		RPCAction:         req.Action,
		RPCName:           asyncName,
	}
	if err := o.writeStatus(context.Background(), spec, req, status); err != nil {
		o.logger.Error("persisting rejected continuation status", "operation", asyncName, "key", req.PrimaryKey, "error", err)
	}
}

// continueOperation re-runs the workflow with the async procedure. It
// never dispatches another continuation.
func (o *Orchestrator) continueOperation(ctx context.Context, spec OperationSpec, req *OperationRequest) {
	asyncName := spec.AsyncName()
	ctx, span := o.tracer.Start(ctx, "orchestrator.Continue", trace.WithAttributes(
		attribute.String("topoctl.operation", asyncName),
		attribute.String("topoctl.key", req.PrimaryKey),
	))
	defer span.End()

	res, outcome := o.run(ctx, spec, req, asyncName, model.RequestAsyncComplete)
	continuationsTotal.WithLabelValues(asyncName, outcome).Inc()
	if outcome != outcomeSuccess {
		span.SetStatus(codes.Error, res.ResponseMessage)
	}
}
