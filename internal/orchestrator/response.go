package orchestrator

import (
	"encoding/json"

	"github.com/seantiz/topoctl/internal/model"
	"github.com/seantiz/topoctl/internal/propbag"
)

// OperationRequest is one validated request as seen by the workflow.
type OperationRequest struct {
	Operation     string
	PrimaryKey    string
	RequestID     string
	Action        model.Action
	RequestAction string
	Sections      map[string]model.Record
}

// Input returns the raw input section.
func (r *OperationRequest) Input() model.Record {
	return r.Sections[SectionInput]
}

// OperationResult is the interpreted outcome of a procedure call.
type OperationResult struct {
	ResponseCode    string
	ResponseMessage string
	AckFinal        string
	SkipUpdate      bool
	Extra           propbag.Bag
}

// Success reports whether the result is not a failure.
func (r OperationResult) Success() bool {
	return isSuccessCode(r.ResponseCode)
}

func isSuccessCode(code string) bool {
	return code == "" || code == "0" || code == "200"
}

// ResponseInformation is a named response section.
type ResponseInformation struct {
	InstanceID string `json:"instance-id,omitempty"`
	ObjectPath string `json:"object-path,omitempty"`
}

// Response is returned to the caller of an operation.
type Response struct {
	SvcRequestID      string
	ResponseCode      string
	ResponseMessage   string
	AckFinalIndicator string
	Sections          map[string]ResponseInformation
}

// Output renders the response as a plain nested map.
func (r *Response) Output() map[string]any {
	out := map[string]any{
		"response-code":       r.ResponseCode,
		"ack-final-indicator": r.AckFinalIndicator,
	}
	if r.SvcRequestID != "" {
		out["svc-request-id"] = r.SvcRequestID
	}
	if r.ResponseMessage != "" {
		out["response-message"] = r.ResponseMessage
	}
	for name, s := range r.Sections {
		sec := map[string]any{}
		if s.InstanceID != "" {
			sec["instance-id"] = s.InstanceID
		}
		if s.ObjectPath != "" {
			sec["object-path"] = s.ObjectPath
		}
		out[name] = sec
	}
	return out
}

// MarshalJSON encodes Output.
func (r *Response) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Output())
}
