package orchestrator

import (
	"sort"
	"strings"

	"github.com/seantiz/topoctl/internal/model"
	"github.com/seantiz/topoctl/internal/propbag"
)

// Entity families.
const (
	FamilyService       = "service"
	FamilyPreload       = "preload"
	FamilyConfiguration = "configuration"
)

// Section names used when building the parameter bag.
const (
	SectionInput           = "input"
	SectionOperationalData = "operational-data"
	SectionPreloadData     = "preload-data"
)

// ValidationErrorCode is the response code for a request missing a
// required field. It is the same for every operation.
const ValidationErrorCode = "404"

const (
	defaultActionPath        = "sdnc-request-header.svc-action"
	defaultRequestActionPath = "request-information.request-action"
	requestIDPath            = "sdnc-request-header.svc-request-id"
	keySeparator             = ":"
)

// Field is a required input field and the message reported when it is
// missing.
type Field struct {
	Path    string
	Message string
}

// RelatedSection loads another entity and passes its data to the
// procedure under Name.
type RelatedSection struct {
	Name      string
	Family    string
	Partition model.Partition
	KeyPaths  []string
	KeySuffix string
}

// Key returns the related entity's key, or "" when input lacks a key field.
func (r RelatedSection) Key(input model.Record) string {
	return compositeKey(input, r.KeyPaths, r.KeySuffix)
}

// ResponseSection describes a named section of the response. The
// instance id comes from InstanceIDPath in the input, falling back to
// InstanceIDKey in the procedure's response; the object path comes from
// ObjectPathKey in the procedure's response.
type ResponseSection struct {
	Name           string
	InstanceIDPath string
	InstanceIDKey  string
	ObjectPathKey  string
}

// OperationSpec parameterizes the workflow for one operation.
type OperationSpec struct {
	Name              string
	Family            string
	KeyPaths          []string
	KeySuffix         string
	RequiredFields    []Field
	ActionPath        string
	RequestActionPath string
	ObservedActions   []model.Action
	ObserveAlways     bool
	DeleteActions     []model.Action
	DataFields        propbag.Schema
	Related           []RelatedSection
	Responses         []ResponseSection
	AsyncOperation    string
}

// PrimaryKey extracts the entity key from input. Multi-part keys are
// joined with ":".
func (s OperationSpec) PrimaryKey(input model.Record) string {
	return compositeKey(input, s.KeyPaths, s.KeySuffix)
}

// Validate returns the message for the first missing required field, or
// "" when the request is valid.
func (s OperationSpec) Validate(input model.Record) string {
	for _, f := range s.RequiredFields {
		if v, _ := input.Lookup(f.Path); v == "" {
			return f.Message
		}
	}
	if s.PrimaryKey(input) == "" {
		return "invalid input, null or empty " + strings.Join(s.KeyPaths, ", ")
	}
	return ""
}

// Action returns the requested lifecycle action. The raw value is
// returned too so unknown actions can be reported.
func (s OperationSpec) Action(input model.Record) (model.Action, string) {
	raw, _ := input.Lookup(s.ActionPath)
	a, _ := model.ParseAction(raw)
	return a, raw
}

// AsyncName is the operation run by a continuation.
func (s OperationSpec) AsyncName() string {
	if s.AsyncOperation != "" {
		return s.AsyncOperation
	}
	return s.Name + "-async"
}

func (s OperationSpec) observes(a model.Action) bool {
	return s.ObserveAlways || a.In(s.ObservedActions)
}

func (s OperationSpec) deletes(a model.Action) bool {
	return a.In(s.DeleteActions)
}

func (s OperationSpec) responseSections(input model.Record, extra propbag.Bag) map[string]ResponseInformation {
	if len(s.Responses) == 0 {
		return nil
	}
	out := make(map[string]ResponseInformation, len(s.Responses))
	for _, rs := range s.Responses {
		id, _ := input.Lookup(rs.InstanceIDPath)
		if id == "" && rs.InstanceIDKey != "" {
			id = extra.Get(rs.InstanceIDKey)
		}
		info := ResponseInformation{InstanceID: id}
		if rs.ObjectPathKey != "" {
			info.ObjectPath = extra.Get(rs.ObjectPathKey)
		}
		if info != (ResponseInformation{}) {
			out[rs.Name] = info
		}
	}
	return out
}

func compositeKey(input model.Record, paths []string, suffix string) string {
	if len(paths) == 0 {
		return ""
	}
	parts := make([]string, 0, len(paths)+1)
	for _, p := range paths {
		v, _ := input.Lookup(p)
		if v == "" {
			return ""
		}
		parts = append(parts, v)
	}
	if suffix != "" {
		parts = append(parts, suffix)
	}
	return strings.Join(parts, keySeparator)
}

// Catalog maps operation names to their specs.
type Catalog struct {
	specs map[string]OperationSpec
}

// NewCatalog builds a catalog, filling default action paths.
func NewCatalog(specs ...OperationSpec) *Catalog {
	c := &Catalog{specs: make(map[string]OperationSpec, len(specs))}
	for _, s := range specs {
		if s.ActionPath == "" {
			s.ActionPath = defaultActionPath
		}
		if s.RequestActionPath == "" {
			s.RequestActionPath = defaultRequestActionPath
		}
		c.specs[s.Name] = s
	}
	return c
}

// Lookup returns the spec for name.
func (c *Catalog) Lookup(name string) (OperationSpec, bool) {
	s, ok := c.specs[name]
	return s, ok
}

// Specs returns every spec sorted by name.
func (c *Catalog) Specs() []OperationSpec {
	out := make([]OperationSpec, 0, len(c.specs))
	for _, s := range c.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
