package model

import (
	"fmt"
	"time"
)

// Partition names one of the two logical views of an entity.
type Partition string

// Partitions of the state store.
const (
	Desired  Partition = "desired"
	Observed Partition = "observed"
)

// ParsePartition maps a partition name to a Partition. An empty name
// defaults to Desired.
func ParsePartition(s string) (Partition, error) {
	switch Partition(s) {
	case "", Desired:
		return Desired, nil
	case Observed:
		return Observed, nil
	}
	return "", fmt.Errorf("unknown partition %q", s)
}

// Final indicator values.
const (
	FinalYes = "Y"
	FinalNo  = "N"
)

// Request status values recorded on Status.
const (
	RequestSyncComplete  = "synccomplete"
	RequestAsyncComplete = "asynccomplete"
)

// TimestampLayout is the ISO-8601 UTC layout used for status timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Status is the outcome record written after every completed workflow run.
type Status struct {
	ResponseCode      string `json:"response-code"`
	ResponseMessage   string `json:"response-message,omitempty"`
	FinalIndicator    string `json:"final-indicator"`
	ResponseTimestamp string `json:"response-timestamp"`
	RequestStatus     string `json:"request-status,omitempty"`
	Action            string `json:"action,omitempty"`
	RPCAction         Action `json:"rpc-action,omitempty"`
	RPCName           string `json:"rpc-name"`
}

// Entity is a stored record for one family/key in one partition.
type Entity struct {
	Family    string    `json:"family"`
	Key       string    `json:"key"`
	Data      Record    `json:"data,omitempty"`
	Status    *Status   `json:"status,omitempty"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of e.
func (e *Entity) Clone() *Entity {
	if e == nil {
		return nil
	}
	c := *e
	c.Data = e.Data.Clone()
	if e.Status != nil {
		s := *e.Status
		c.Status = &s
	}
	return &c
}
