// topoctl-dev starts topoctl with an in-memory store and stub procedures
// for every catalog operation, for end-to-end testing.
// Usage: go run ./cmd/topoctl-dev
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/seantiz/topoctl/internal/api"
	"github.com/seantiz/topoctl/internal/config"
	"github.com/seantiz/topoctl/internal/logic"
	"github.com/seantiz/topoctl/internal/orchestrator"
	"github.com/seantiz/topoctl/internal/propbag"
	"github.com/seantiz/topoctl/internal/store"
)

// stubProcedure answers every call after delay. Requests carrying
// sdnc-request-header.svc-notification-url are acknowledged with
// ack-final N so a continuation follows.
type stubProcedure struct {
	delay time.Duration
	async bool
}

func (s stubProcedure) Execute(ctx context.Context, params propbag.Bag) (propbag.Bag, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	action := params.Get("sdnc-request-header.svc-action")
	resp := propbag.Bag{
		logic.KeyErrorCode:                          "200",
		logic.KeyAckFinal:                           "Y",
		"service-level-oper-status.last-rpc-action": action,
		"service-level-oper-status.order-status":    "Active",
		"preload-oper-status.last-rpc-action":       action,
		"configuration-oper-status.last-rpc-action": action,
	}
	if !s.async && params.Get("sdnc-request-header.svc-notification-url") != "" {
		resp.Set(logic.KeyAckFinal, "N")
	}
	return resp, nil
}

func main() {
	addr := ":8080"
	if v := os.Getenv("TOPOCTL_LISTEN_ADDR"); v != "" {
		addr = v
	}
	logger := config.NewLogger(os.Stdout, config.ParseLogLevel(os.Getenv("TOPOCTL_LOG_LEVEL")))

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	engine := config.DefaultEngine()
	catalog := orchestrator.DefaultCatalog()
	reg := logic.NewRegistry()
	for _, spec := range catalog.Specs() {
		reg.Register(logic.ProcedureRef{Module: engine.Module, Operation: spec.Name},
			stubProcedure{delay: 50 * time.Millisecond})
		reg.Register(logic.ProcedureRef{Module: engine.Module, Operation: spec.AsyncName()},
			stubProcedure{delay: 500 * time.Millisecond, async: true})
	}

	lc := logic.NewClient(reg, engine.Options(), logger)
	defer lc.Close()
	runner := orchestrator.NewRunner(4, 16, time.Minute, logger)
	orch := orchestrator.New(catalog, store.NewClient(db, logger), lc, runner, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(addr, orch, reg, logger)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runner.Close(drainCtx); err != nil {
		log.Printf("draining continuations: %v", err)
	}
}
