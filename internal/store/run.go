package store

import (
	"bytes"
	"encoding/json"

	"github.com/StevenZev/ExpressDiff/internal/pkg/clock"
	"github.com/StevenZev/ExpressDiff/internal/stage"
)

// Status is a stage's lifecycle state, per spec §3.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// RunStatus is a run's derived lifecycle state, per spec §3.
type RunStatus string

const (
	RunCreated   RunStatus = "created"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// validTransitions enforces the stage state machine described in spec
// §4.6: pending→running, running→{completed,failed,cancelled}, and a
// re-entry from any terminal state back to running only through a
// confirmed rerun (encoded the same way — the confirmation itself is the
// controller's concern, not the state machine's).
//
// Grounded on the validTransitions map[string]map[string]bool pattern
// used by the job-control state machine in the retrieval pack
// (ElhamDevelopmentStudio-entropy/internal/hdcf/types.go).
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusRunning: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
		StatusRunning:   true, // reconciliation re-asserting the same state
	},
	StatusCompleted: {
		StatusRunning:   true, // confirmed rerun
		StatusCompleted: true,
	},
	StatusFailed: {
		StatusRunning: true, // confirmed rerun
		StatusFailed:  true,
	},
	StatusCancelled: {
		StatusRunning:   true, // confirmed rerun
		StatusCancelled: true,
	},
}

// IsValidTransition reports whether a stage may move from one status to another.
func IsValidTransition(from, to Status) bool {
	nexts, ok := validTransitions[from]
	if !ok {
		return false
	}
	return nexts[to]
}

// StageState is the persisted state of one stage within a run.
type StageState struct {
	Status    Status     `json:"status"`
	JobID     string     `json:"job_id"`
	UpdatedAt clock.Time `json:"updated_at"`
}

// StageMap is a run's per-stage state, keyed by stage name. Its
// MarshalJSON writes stages in stage.Names() canonical pipeline order
// (qc_raw, trim, qc_trimmed, star, featurecounts, deseq2): encoding/json's
// default map handling sorts keys alphabetically, which would put deseq2
// ahead of qc_raw on the wire and violate spec §3's ordered-mapping
// guarantee. The underlying representation stays a plain map so every
// existing run.Stages[name] lookup and range elsewhere in the codebase is
// unaffected.
type StageMap map[stage.Name]*StageState

// MarshalJSON emits the map's entries as a JSON object with keys ordered
// by stage.Names() rather than Go's default alphabetical map-key order.
func (m StageMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, name := range stage.Names() {
		st, ok := m[name]
		if !ok {
			continue
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false

		key, err := json.Marshal(string(name))
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(st)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Run is the authoritative, persisted state of one run (spec §3).
type Run struct {
	RunID       string            `json:"run_id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Account     string            `json:"account"`
	Parameters  map[string]string `json:"parameters"`
	Status      RunStatus         `json:"status"`
	CreatedAt   clock.Time        `json:"created_at"`
	UpdatedAt   clock.Time        `json:"updated_at"`
	Stages      StageMap          `json:"stages"`

	// Diagnostic is set only for entries list() synthesizes for a run
	// directory whose state file could not be parsed (spec §4.2). It is
	// never written by create/save for a healthy run.
	Diagnostic string `json:"diagnostic,omitempty"`
}

// NewStages builds the initial, all-pending stage map for a fresh run.
func NewStages(now clock.Time) StageMap {
	m := make(StageMap, len(stage.Names()))
	for _, n := range stage.Names() {
		m[n] = &StageState{Status: StatusPending, UpdatedAt: now}
	}
	return m
}

// DeriveRunStatus implements spec §4.6 step 4: any stage failed → failed;
// all stages completed → completed; any stage running → running; else created.
func DeriveRunStatus(stages StageMap) RunStatus {
	anyFailed, anyRunning, allCompleted := false, false, true
	for _, n := range stage.Names() {
		st, ok := stages[n]
		if !ok {
			allCompleted = false
			continue
		}
		switch st.Status {
		case StatusFailed:
			anyFailed = true
			allCompleted = false
		case StatusRunning:
			anyRunning = true
			allCompleted = false
		case StatusCompleted:
			// stays allCompleted
		default:
			allCompleted = false
		}
	}
	switch {
	case anyFailed:
		return RunFailed
	case allCompleted:
		return RunCompleted
	case anyRunning:
		return RunRunning
	default:
		return RunCreated
	}
}
