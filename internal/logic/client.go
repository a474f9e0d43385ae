package logic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/seantiz/topoctl/internal/model"
	"github.com/seantiz/topoctl/internal/propbag"
)

// Options holds engine addressing defaults and call limits.
type Options struct {
	Module        string
	Version       string
	Mode          string
	Timeout       time.Duration
	ProbeCacheTTL time.Duration
}

// Client probes and invokes procedures on an Engine.
type Client struct {
	engine Engine
	opts   Options
	probes *ttlcache.Cache[string, bool]
	logger *slog.Logger
}

// NewClient returns a Client for engine. When opts.ProbeCacheTTL is
// positive, successful existence probes are cached for that long.
func NewClient(engine Engine, opts Options, logger *slog.Logger) *Client {
	if opts.Mode == "" {
		opts.Mode = ModeSync
	}
	c := &Client{engine: engine, opts: opts, logger: logger}
	if opts.ProbeCacheTTL > 0 {
		c.probes = ttlcache.New(
			ttlcache.WithTTL[string, bool](opts.ProbeCacheTTL),
			ttlcache.WithDisableTouchOnHit[string, bool](),
		)
		go c.probes.Start()
	}
	return c
}

// Close stops the probe cache janitor.
func (c *Client) Close() {
	if c.probes != nil {
		c.probes.Stop()
	}
}

// Module returns the default module name.
func (c *Client) Module() string {
	return c.opts.Module
}

// Ref returns the reference for operation using the configured defaults.
func (c *Client) Ref(operation string) ProcedureRef {
	return ProcedureRef{
		Module:    c.opts.Module,
		Operation: operation,
		Version:   c.opts.Version,
		Mode:      c.opts.Mode,
	}
}

// HasProcedure reports whether ref is registered. A failing probe is
// returned as an ErrEngineUnreachable error.
func (c *Client) HasProcedure(ctx context.Context, ref ProcedureRef) (bool, error) {
	key := ref.String()
	if c.probes != nil && c.probes.Has(key) {
		return true, nil
	}
	ok, err := c.engine.HasProcedure(ctx, ref)
	if err != nil {
		return false, &Error{Kind: ErrEngineUnreachable, Ref: ref, Err: err}
	}
	if ok && c.probes != nil {
		c.probes.Set(key, true, ttlcache.DefaultTTL)
	}
	return ok, nil
}

// Invoke runs ref with the flattened working record overlaid by input.
// Unless the procedure reports failure or asks to skip the update, its
// response is applied onto working, restricted to fields. The response
// bag is returned either way.
func (c *Client) Invoke(ctx context.Context, ref ProcedureRef, working model.Record, fields propbag.Schema, input propbag.Bag) (propbag.Bag, error) {
	params := propbag.Flatten(working, "").Overlay(input)
	c.logger.DebugContext(ctx, "invoking procedure", "procedure", ref.String(), "params", params)

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	type result struct {
		bag propbag.Bag
		err error
	}
	done := make(chan result, 1)
	go func() {
		bag, err := c.engine.Execute(ctx, ref, params)
		done <- result{bag, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, &Error{Kind: ErrExecutionFailed, Ref: ref, Err: fmt.Errorf("did not complete: %w", ctx.Err())}
	case res = <-done:
	}

	if res.err != nil {
		var lerr *Error
		if errors.As(res.err, &lerr) {
			return nil, lerr
		}
		return nil, &Error{Kind: ErrExecutionFailed, Ref: ref, Err: res.err}
	}

	resp := res.bag
	if resp == nil {
		resp = propbag.Bag{}
	}
	c.logger.DebugContext(ctx, "procedure returned", "procedure", ref.String(), "response", resp)

	if resp.Get(KeyStatus) == StatusFailure || resp.Get(KeySkipUpdate) == "Y" {
		return resp, nil
	}
	propbag.Unflatten(resp, "", working, fields)
	return resp, nil
}
