package logic

import (
	"context"
	"sort"
	"sync"

	"github.com/seantiz/topoctl/internal/propbag"
)

// Compile-time interface satisfaction check.
var _ Engine = (*Registry)(nil)

// ProcedureInfo describes a registered procedure.
type ProcedureInfo struct {
	ProcedureRef
	Active bool `json:"active"`
}

type procedureKey struct {
	module    string
	operation string
	mode      string
}

type procedureVersions struct {
	active   string
	versions map[string]Procedure
}

// Registry holds registered procedures and runs them in process. A
// reference without a version resolves to the active version, which is
// the one registered last.
type Registry struct {
	mu    sync.RWMutex
	procs map[procedureKey]*procedureVersions
}

// NewRegistry creates an empty procedure registry.
func NewRegistry() *Registry {
	return &Registry{
		procs: make(map[procedureKey]*procedureVersions),
	}
}

// Register adds p under ref and makes ref.Version the active version.
func (r *Registry) Register(ref ProcedureRef, p Procedure) {
	if ref.Mode == "" {
		ref.Mode = ModeSync
	}
	key := procedureKey{ref.Module, ref.Operation, ref.Mode}

	r.mu.Lock()
	defer r.mu.Unlock()
	pv, ok := r.procs[key]
	if !ok {
		pv = &procedureVersions{versions: make(map[string]Procedure)}
		r.procs[key] = pv
	}
	pv.versions[ref.Version] = p
	pv.active = ref.Version
}

// Resolve returns the procedure for ref.
func (r *Registry) Resolve(ref ProcedureRef) (Procedure, error) {
	if ref.Mode == "" {
		ref.Mode = ModeSync
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	pv, ok := r.procs[procedureKey{ref.Module, ref.Operation, ref.Mode}]
	if !ok {
		return nil, &Error{Kind: ErrProcedureNotRegistered, Ref: ref}
	}
	version := ref.Version
	if version == "" {
		version = pv.active
	}
	p, ok := pv.versions[version]
	if !ok {
		return nil, &Error{Kind: ErrProcedureNotRegistered, Ref: ref}
	}
	return p, nil
}

// HasProcedure reports whether ref resolves.
func (r *Registry) HasProcedure(_ context.Context, ref ProcedureRef) (bool, error) {
	_, err := r.Resolve(ref)
	return err == nil, nil
}

// Execute resolves ref and runs the procedure.
func (r *Registry) Execute(ctx context.Context, ref ProcedureRef, params propbag.Bag) (propbag.Bag, error) {
	p, err := r.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, params)
}

// List returns every registered procedure version, sorted for a stable
// API response.
func (r *Registry) List() []ProcedureInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []ProcedureInfo
	for key, pv := range r.procs {
		for version := range pv.versions {
			infos = append(infos, ProcedureInfo{
				ProcedureRef: ProcedureRef{Module: key.module, Operation: key.operation, Version: version, Mode: key.mode},
				Active:       version == pv.active,
			})
		}
	}
	sort.Slice(infos, func(i, j int) bool {
		a, b := infos[i], infos[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Operation != b.Operation {
			return a.Operation < b.Operation
		}
		if a.Mode != b.Mode {
			return a.Mode < b.Mode
		}
		return a.Version < b.Version
	})
	return infos
}
