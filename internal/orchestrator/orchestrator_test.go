package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/seantiz/topoctl/internal/logic"
	"github.com/seantiz/topoctl/internal/model"
	"github.com/seantiz/topoctl/internal/propbag"
	"github.com/seantiz/topoctl/internal/store"
)

const testModule = "generic-resource-api"

var testSpec = OperationSpec{
	Name:            "test-topology-operation",
	Family:          FamilyService,
	KeyPaths:        []string{serviceInstanceIDPath},
	ObservedActions: []model.Action{model.ActionActivate},
	DeleteActions:   []model.Action{model.ActionDelete},
	DataFields:      serviceDataFields,
	Responses:       []ResponseSection{serviceResponse},
}

// recordingStore wraps a Store, counts writes and can fail them.
type recordingStore struct {
	store.Store

	mu         sync.Mutex
	puts       []model.Partition
	removes    []model.Partition
	putErrs    []error
	removeErrs []error
	beforePut  func()
}

// Put fails with the next queued error; a nil entry lets the write through.
func (s *recordingStore) Put(ctx context.Context, p model.Partition, e *model.Entity, mode store.WriteMode) error {
	s.mu.Lock()
	s.puts = append(s.puts, p)
	var err error
	if len(s.putErrs) > 0 {
		err, s.putErrs = s.putErrs[0], s.putErrs[1:]
	}
	hook := s.beforePut
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return err
	}
	return s.Store.Put(ctx, p, e, mode)
}

func (s *recordingStore) Remove(ctx context.Context, p model.Partition, family, key string) error {
	s.mu.Lock()
	s.removes = append(s.removes, p)
	var err error
	if len(s.removeErrs) > 0 {
		err, s.removeErrs = s.removeErrs[0], s.removeErrs[1:]
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.Store.Remove(ctx, p, family, key)
}

func (s *recordingStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts) + len(s.removes)
}

type harness struct {
	orch     *Orchestrator
	store    *recordingStore
	registry *logic.Registry
	runner   *Runner
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, runner *Runner, specs ...OperationSpec) *harness {
	t.Helper()
	backend, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { backend.Close() })

	rs := &recordingStore{Store: backend}
	reg := logic.NewRegistry()
	lc := logic.NewClient(reg, logic.Options{Module: testModule, Timeout: 5 * time.Second}, discardLogger())
	t.Cleanup(lc.Close)

	if runner != nil {
		t.Cleanup(func() { runner.Close(context.Background()) })
	}
	if len(specs) == 0 {
		specs = []OperationSpec{testSpec}
	}
	orch := New(NewCatalog(specs...), store.NewClient(rs, discardLogger()), lc, runner, discardLogger())
	return &harness{orch: orch, store: rs, registry: reg, runner: runner}
}

func (h *harness) register(operation string, fn logic.ProcedureFunc) {
	h.registry.Register(logic.ProcedureRef{Module: testModule, Operation: operation}, fn)
}

func (h *harness) entity(t *testing.T, p model.Partition, key string) *model.Entity {
	t.Helper()
	e, err := h.store.Get(context.Background(), p, FamilyService, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("Get(%s, %s): %v", p, key, err)
	}
	return e
}

func serviceRequest(key, action string) model.Record {
	return model.Record{
		"sdnc-request-header": map[string]any{
			"svc-request-id": "req-1",
			"svc-action":     action,
		},
		"request-information": map[string]any{
			"request-action": "CreateServiceInstance",
		},
		"service-information": map[string]any{
			"service-instance-id": key,
		},
	}
}

func reply(bag propbag.Bag) logic.ProcedureFunc {
	return func(context.Context, propbag.Bag) (propbag.Bag, error) {
		return bag.Clone(), nil
	}
}

func TestExecuteUnknownOperation(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.orch.Execute(context.Background(), "nope", model.Record{})
	if !errors.Is(err, ErrUnknownOperation) {
		t.Fatalf("Execute error = %v, want ErrUnknownOperation", err)
	}
}

func TestExecuteMissingKeyIsValidationError(t *testing.T) {
	for _, spec := range DefaultCatalog().Specs() {
		t.Run(spec.Name, func(t *testing.T) {
			h := newHarness(t, nil, spec)
			called := false
			h.register(spec.Name, func(context.Context, propbag.Bag) (propbag.Bag, error) {
				called = true
				return nil, nil
			})

			resp, err := h.orch.Execute(context.Background(), spec.Name, model.Record{})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if resp.ResponseCode != ValidationErrorCode || resp.AckFinalIndicator != model.FinalYes {
				t.Errorf("response = %+v, want code %s ack Y", resp, ValidationErrorCode)
			}
			if resp.ResponseMessage == "" {
				t.Error("expected a validation message")
			}
			if called {
				t.Error("procedure called for invalid request")
			}
			if n := h.store.writes(); n != 0 {
				t.Errorf("store writes = %d, want 0", n)
			}
		})
	}
}

func TestExecuteNoProcedureIsServiceUnavailable(t *testing.T) {
	h := newHarness(t, nil)

	resp, err := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.ResponseCode != "503" {
		t.Errorf("ResponseCode = %q, want 503", resp.ResponseCode)
	}
	want := "No service logic active for generic-resource-api: 'test-topology-operation'"
	if resp.ResponseMessage != want {
		t.Errorf("ResponseMessage = %q, want %q", resp.ResponseMessage, want)
	}
	for _, p := range h.store.puts {
		if p != model.Desired {
			t.Errorf("unexpected write to %s", p)
		}
	}
	if e := h.entity(t, model.Desired, "svc-1"); e == nil || e.Status.ResponseCode != "503" || len(e.Data) != 0 {
		t.Errorf("desired = %+v, want status-only 503", e)
	}
	if e := h.entity(t, model.Observed, "svc-1"); e != nil {
		t.Errorf("observed = %+v, want absent", e)
	}
}

func TestExecuteActivateUpdatesBothPartitions(t *testing.T) {
	h := newHarness(t, nil)
	var got propbag.Bag
	h.register(testSpec.Name, func(_ context.Context, params propbag.Bag) (propbag.Bag, error) {
		got = params.Clone()
		return propbag.Bag{
			"error-code":                             "200",
			"ack-final":                              "Y",
			"service-topology.service-name":          "svc-one",
			"service-object-path":                    "restconf/config/services/service/svc-1",
			"unknown-section.ignored":                "x",
			"service-level-oper-status.order-status": "Active",
		}, nil
	})

	resp, err := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := &Response{
		SvcRequestID:      "req-1",
		ResponseCode:      "200",
		AckFinalIndicator: "Y",
		Sections: map[string]ResponseInformation{
			"service-response-information": {
				InstanceID: "svc-1",
				ObjectPath: "restconf/config/services/service/svc-1",
			},
		},
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
	if got.Get("service-information.service-instance-id") != "svc-1" || got.Get("sdnc-request-header.svc-action") != "Activate" {
		t.Errorf("params missing input: %v", got)
	}

	wantData := model.Record{
		"service-topology":          map[string]any{"service-name": "svc-one"},
		"service-level-oper-status": map[string]any{"order-status": "Active"},
	}
	for _, p := range []model.Partition{model.Desired, model.Observed} {
		e := h.entity(t, p, "svc-1")
		if e == nil {
			t.Fatalf("%s entity missing", p)
		}
		if diff := cmp.Diff(wantData, e.Data); diff != "" {
			t.Errorf("%s data mismatch (-want +got):\n%s", p, diff)
		}
		if e.Status.ResponseCode != "200" || e.Status.RequestStatus != model.RequestSyncComplete ||
			e.Status.RPCAction != model.ActionActivate || e.Status.RPCName != testSpec.Name ||
			e.Status.Action != "CreateServiceInstance" {
			t.Errorf("%s status = %+v", p, e.Status)
		}
	}
}

func TestExecuteAssignSkipsObserved(t *testing.T) {
	h := newHarness(t, nil)
	h.register(testSpec.Name, reply(propbag.Bag{"service-topology.service-name": "svc-one"}))

	resp, err := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Assign"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.ResponseCode != "200" || resp.AckFinalIndicator != "Y" {
		t.Errorf("response = %+v, want 200/Y", resp)
	}
	if e := h.entity(t, model.Desired, "svc-1"); e == nil {
		t.Error("desired entity missing")
	}
	if e := h.entity(t, model.Observed, "svc-1"); e != nil {
		t.Errorf("observed = %+v, want absent", e)
	}
}

func TestExecuteBusinessFailurePersistsStatusOnly(t *testing.T) {
	h := newHarness(t, nil)
	h.register(testSpec.Name, reply(propbag.Bag{"service-topology.service-name": "before"}))
	if _, err := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate")); err != nil {
		t.Fatalf("seeding Execute: %v", err)
	}
	observedBefore := h.entity(t, model.Observed, "svc-1")

	h.register(testSpec.Name, reply(propbag.Bag{
		"error-code":                    "500",
		"error-message":                 "boom",
		"service-topology.service-name": "after",
	}))
	resp, err := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.ResponseCode != "500" || resp.ResponseMessage != "boom" || resp.AckFinalIndicator != "Y" {
		t.Errorf("response = %+v, want 500/boom/Y", resp)
	}
	if resp.Sections != nil {
		t.Errorf("Sections = %v, want none on failure", resp.Sections)
	}

	desired := h.entity(t, model.Desired, "svc-1")
	if v, _ := desired.Data.Lookup("service-topology.service-name"); v != "before" {
		t.Errorf("desired service-name = %q, want before", v)
	}
	if desired.Status.ResponseCode != "500" || desired.Status.ResponseMessage != "boom" {
		t.Errorf("desired status = %+v", desired.Status)
	}
	observedAfter := h.entity(t, model.Observed, "svc-1")
	if observedAfter.Version != observedBefore.Version {
		t.Errorf("observed version changed from %d to %d", observedBefore.Version, observedAfter.Version)
	}
}

func TestExecuteFailureStatusWithoutCode(t *testing.T) {
	h := newHarness(t, nil)
	h.register(testSpec.Name, reply(propbag.Bag{"SvcLogic.status": "failure"}))

	resp, _ := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate"))
	if resp.ResponseCode != "500" {
		t.Errorf("ResponseCode = %q, want 500", resp.ResponseCode)
	}
	if e := h.entity(t, model.Observed, "svc-1"); e != nil {
		t.Errorf("observed = %+v, want absent", e)
	}
}

func TestExecuteEngineErrorIsInternalError(t *testing.T) {
	h := newHarness(t, nil)
	h.register(testSpec.Name, func(context.Context, propbag.Bag) (propbag.Bag, error) {
		return nil, errors.New("script exploded")
	})

	resp, _ := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate"))
	if resp.ResponseCode != "500" || resp.AckFinalIndicator != "Y" {
		t.Errorf("response = %+v, want 500/Y", resp)
	}
	if resp.ResponseMessage == "" {
		t.Error("expected the engine error text")
	}
}

func TestExecuteDeleteRemovesBothPartitions(t *testing.T) {
	h := newHarness(t, nil)
	h.register(testSpec.Name, reply(propbag.Bag{"service-topology.service-name": "svc-one"}))
	if _, err := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate")); err != nil {
		t.Fatalf("seeding Execute: %v", err)
	}

	events, unsubscribe := h.orch.Broker().Subscribe(Topic(FamilyService, "svc-1"))
	defer unsubscribe()

	resp, err := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Delete"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.ResponseCode != "200" {
		t.Errorf("ResponseCode = %q, want 200", resp.ResponseCode)
	}
	for _, p := range []model.Partition{model.Desired, model.Observed} {
		if e := h.entity(t, p, "svc-1"); e != nil {
			t.Errorf("%s entity still present: %+v", p, e)
		}
	}

	if _, ok := <-events; !ok {
		t.Fatal("expected a final status event")
	}
	if _, ok := <-events; ok {
		t.Error("expected the stream to close after delete")
	}
}

func TestExecuteSkipUpdatePersistsStatusOnly(t *testing.T) {
	h := newHarness(t, nil)
	h.register(testSpec.Name, reply(propbag.Bag{
		"skip-mdsal-update":             "Y",
		"service-topology.service-name": "ignored",
	}))

	resp, _ := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate"))
	if resp.ResponseCode != "200" {
		t.Errorf("ResponseCode = %q, want 200", resp.ResponseCode)
	}
	e := h.entity(t, model.Desired, "svc-1")
	if e == nil || len(e.Data) != 0 || e.Status.ResponseCode != "200" {
		t.Errorf("desired = %+v, want status only", e)
	}
	if e := h.entity(t, model.Observed, "svc-1"); e != nil {
		t.Errorf("observed = %+v, want absent", e)
	}
}

func TestExecutePersistConflictTwiceIs500(t *testing.T) {
	tests := []struct {
		name     string
		putErrs  []error
		wantData bool
	}{
		{"desired write fails", []error{store.ErrConflict, store.ErrConflict}, false},
		{"observed write fails", []error{nil, store.ErrConflict, store.ErrConflict}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			h.register(testSpec.Name, reply(propbag.Bag{"service-topology.service-name": "svc-one"}))
			h.store.putErrs = tt.putErrs

			resp, err := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate"))
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if resp.ResponseCode != "500" || resp.AckFinalIndicator != "Y" {
				t.Errorf("response = %+v, want 500/Y", resp)
			}

			e := h.entity(t, model.Desired, "svc-1")
			if e == nil || e.Status == nil {
				t.Fatalf("desired = %+v, want the error status recorded", e)
			}
			if e.Status.ResponseCode != "500" || e.Status.ResponseMessage != resp.ResponseMessage || e.Status.FinalIndicator != "Y" {
				t.Errorf("desired status = %+v, want the 500 response", e.Status)
			}
			if _, ok := e.Data.Lookup("service-topology.service-name"); ok != tt.wantData {
				t.Errorf("desired data = %v, want data stored: %v", e.Data, tt.wantData)
			}
			if o := h.entity(t, model.Observed, "svc-1"); o != nil {
				t.Errorf("observed = %+v, want absent", o)
			}
		})
	}
}

func TestExecuteDeleteFailureRecordsStatus(t *testing.T) {
	h := newHarness(t, nil)
	h.register(testSpec.Name, reply(nil))
	if resp, _ := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate")); resp.ResponseCode != "200" {
		t.Fatalf("activate = %+v", resp)
	}

	h.store.removeErrs = []error{errors.New("disk full")}
	resp, err := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Delete"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.ResponseCode != "500" {
		t.Errorf("ResponseCode = %q, want 500", resp.ResponseCode)
	}
	e := h.entity(t, model.Desired, "svc-1")
	if e == nil || e.Status == nil || e.Status.ResponseCode != "500" {
		t.Errorf("desired = %+v, want the 500 status recorded", e)
	}
}

func TestExecutePersistsAfterCallerCancels(t *testing.T) {
	h := newHarness(t, nil)
	h.register(testSpec.Name, reply(propbag.Bag{"service-topology.service-name": "svc-one"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.store.beforePut = cancel

	resp, err := h.orch.Execute(ctx, testSpec.Name, serviceRequest("svc-1", "Activate"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.ResponseCode != "200" {
		t.Errorf("response = %+v, want 200", resp)
	}
	for _, p := range []model.Partition{model.Desired, model.Observed} {
		e := h.entity(t, p, "svc-1")
		if e == nil {
			t.Fatalf("%s entity missing after the caller canceled", p)
		}
		if v, _ := e.Data.Lookup("service-topology.service-name"); v != "svc-one" {
			t.Errorf("%s data = %v", p, e.Data)
		}
	}
}

func TestExecutePersistConflictOnceSucceeds(t *testing.T) {
	h := newHarness(t, nil)
	h.register(testSpec.Name, reply(propbag.Bag{"service-topology.service-name": "svc-one"}))
	h.store.putErrs = []error{store.ErrConflict}

	resp, _ := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate"))
	if resp.ResponseCode != "200" {
		t.Errorf("ResponseCode = %q, want 200", resp.ResponseCode)
	}
	if e := h.entity(t, model.Observed, "svc-1"); e == nil {
		t.Error("observed entity missing")
	}
}

func TestExecuteGeneratesRequestID(t *testing.T) {
	h := newHarness(t, nil)
	h.register(testSpec.Name, reply(nil))
	in := model.Record{"service-information": map[string]any{"service-instance-id": "svc-1"}}

	resp, _ := h.orch.Execute(context.Background(), testSpec.Name, in)
	if len(resp.SvcRequestID) != 26 {
		t.Errorf("SvcRequestID = %q, want a ULID", resp.SvcRequestID)
	}
}

func TestExecuteWorkingRecordStartsFromDesired(t *testing.T) {
	h := newHarness(t, nil)
	h.register(testSpec.Name, reply(propbag.Bag{"service-topology.service-name": "svc-one"}))
	h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate"))

	var got propbag.Bag
	h.register(testSpec.Name, func(_ context.Context, params propbag.Bag) (propbag.Bag, error) {
		got = params.Clone()
		return propbag.Bag{"service-topology.service-type": "vpn"}, nil
	})
	h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Assign"))

	if got.Get("service-topology.service-name") != "svc-one" {
		t.Errorf("params = %v, want stored desired data", got)
	}
	if got.Get("operational-data.service-topology.service-name") != "svc-one" {
		t.Errorf("params = %v, want operational-data section", got)
	}
	e := h.entity(t, model.Desired, "svc-1")
	want := model.Record{"service-topology": map[string]any{"service-name": "svc-one", "service-type": "vpn"}}
	if diff := cmp.Diff(want, e.Data); diff != "" {
		t.Errorf("desired data mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteLoadsRelatedPreloadData(t *testing.T) {
	catalog := DefaultCatalog()
	spec, _ := catalog.Lookup("vf-module-topology-operation")
	preloadSpec, _ := catalog.Lookup("preload-vf-module-topology-operation")
	h := newHarness(t, nil, spec, preloadSpec)

	h.register(preloadSpec.Name, reply(propbag.Bag{
		"preload-vf-module-topology-information.vf-module-topology.vf-module-parameters.param_length":   "1",
		"preload-vf-module-topology-information.vf-module-topology.vf-module-parameters.param[0].name":  "flavor",
		"preload-vf-module-topology-information.vf-module-topology.vf-module-parameters.param[0].value": "m1.small",
	}))
	preloadIn := model.Record{
		"preload-vf-module-topology-information": map[string]any{
			"vf-module-topology": map[string]any{
				"vf-module-topology-identifier": map[string]any{"vf-module-name": "vfm-a"},
			},
		},
	}
	if resp, _ := h.orch.Execute(context.Background(), preloadSpec.Name, preloadIn); resp.ResponseCode != "200" {
		t.Fatalf("preload response = %+v", resp)
	}

	var got propbag.Bag
	h.register(spec.Name, func(_ context.Context, params propbag.Bag) (propbag.Bag, error) {
		got = params.Clone()
		return nil, nil
	})
	in := model.Record{
		"service-information":     map[string]any{"service-instance-id": "svc-1"},
		"vnf-information":         map[string]any{"vnf-id": "vnf-1"},
		"vf-module-information":   map[string]any{"vf-module-id": "vfm-1"},
		"vf-module-request-input": map[string]any{"vf-module-name": "vfm-a"},
	}
	resp, _ := h.orch.Execute(context.Background(), spec.Name, in)
	if resp.ResponseCode != "200" {
		t.Fatalf("response = %+v", resp)
	}
	key := "preload-data.preload-vf-module-topology-information.vf-module-topology.vf-module-parameters.param[0].value"
	if got.Get(key) != "m1.small" {
		t.Errorf("params[%s] = %q, want m1.small", key, got.Get(key))
	}
}

func TestExecuteDispatchesContinuation(t *testing.T) {
	runner := NewRunner(2, 4, time.Minute, discardLogger())
	h := newHarness(t, runner)
	h.register(testSpec.Name, reply(propbag.Bag{
		"ack-final":                     "N",
		"service-topology.service-name": "pending",
	}))
	h.register(testSpec.AsyncName(), reply(propbag.Bag{
		"service-topology.service-name": "done",
	}))

	resp, err := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if resp.ResponseCode != "200" || resp.AckFinalIndicator != "N" {
		t.Errorf("response = %+v, want 200/N", resp)
	}

	runner.Wait()

	e := h.entity(t, model.Desired, "svc-1")
	if v, _ := e.Data.Lookup("service-topology.service-name"); v != "done" {
		t.Errorf("service-name = %q, want done", v)
	}
	if e.Status.RequestStatus != model.RequestAsyncComplete || e.Status.RPCName != testSpec.AsyncName() {
		t.Errorf("status = %+v, want asynccomplete from continuation", e.Status)
	}
	if e.Status.FinalIndicator != model.FinalYes {
		t.Errorf("FinalIndicator = %q, want Y", e.Status.FinalIndicator)
	}
}

func TestContinuationDoesNotRedispatch(t *testing.T) {
	runner := NewRunner(1, 4, time.Minute, discardLogger())
	h := newHarness(t, runner)
	h.register(testSpec.Name, reply(propbag.Bag{"ack-final": "N"}))
	var calls int
	var mu sync.Mutex
	h.register(testSpec.AsyncName(), func(context.Context, propbag.Bag) (propbag.Bag, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return propbag.Bag{"ack-final": "N"}, nil
	})

	h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate"))
	runner.Wait()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("async procedure calls = %d, want 1", calls)
	}
}

func TestRejectedContinuationRecordsStatus(t *testing.T) {
	runner := NewRunner(1, 1, time.Minute, discardLogger())
	h := newHarness(t, runner)
	runner.Close(context.Background())

	h.register(testSpec.Name, reply(propbag.Bag{"ack-final": "N"}))
	resp, _ := h.orch.Execute(context.Background(), testSpec.Name, serviceRequest("svc-1", "Activate"))
	if resp.ResponseCode != "200" || resp.AckFinalIndicator != "N" {
		t.Errorf("response = %+v, want 200/N", resp)
	}

	e := h.entity(t, model.Desired, "svc-1")
	if e.Status.ResponseCode != "503" || e.Status.FinalIndicator != model.FinalYes ||
		e.Status.RequestStatus != model.RequestAsyncComplete {
		t.Errorf("status = %+v, want rejected continuation", e.Status)
	}
}

func TestResponseOutput(t *testing.T) {
	r := &Response{
		SvcRequestID:      "req-1",
		ResponseCode:      "200",
		AckFinalIndicator: "Y",
		Sections: map[string]ResponseInformation{
			"vnf-response-information": {InstanceID: "vnf-1"},
		},
	}
	want := map[string]any{
		"svc-request-id":           "req-1",
		"response-code":            "200",
		"ack-final-indicator":      "Y",
		"vnf-response-information": map[string]any{"instance-id": "vnf-1"},
	}
	if diff := cmp.Diff(want, r.Output()); diff != "" {
		t.Errorf("Output mismatch (-want +got):\n%s", diff)
	}
}
