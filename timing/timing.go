// Package timing implements the append-only pipeline timing envelope
// attached to inference requests, so a peer can see where time was
// spent without the node correcting for clock skew between hosts.
package timing

import (
	"encoding/json"
	"time"
)

// Stage is one named span in a request's processing timeline.
type Stage struct {
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Finish marks the stage complete at now.
func (s *Stage) Finish(now time.Time) {
	s.EndedAt = now
}

// Timing is an ordered, append-only list of stages for one request.
type Timing struct {
	Stages []*Stage `json:"stages"`
}

// New returns an empty timing envelope.
func New() *Timing {
	return &Timing{}
}

// AddStage appends and returns a new in-progress stage.
func (t *Timing) AddStage(name string, now time.Time) *Stage {
	s := &Stage{Name: name, StartedAt: now}
	t.Stages = append(t.Stages, s)
	return s
}

// FromValue decodes a timing envelope out of an already-JSON-decoded
// value, the shape a peer's metadata.timing_data arrives in after the
// challenge envelope itself has been unmarshaled into map[string]any.
func FromValue(v any) (*Timing, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var t Timing
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
