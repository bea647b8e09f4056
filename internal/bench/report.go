package bench

import (
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/coachpo/syncpool/internal/poolmgr"
)

// VariantReport summarises one workload against one pool.
type VariantReport struct {
	Pool            string `json:"pool"`
	Variant         string `json:"variant"`
	Capacity        int    `json:"capacity"`
	Workers         int    `json:"workers"`
	Acquired        int64  `json:"acquired"`
	Released        int64  `json:"released"`
	Created         int64  `json:"created"`
	Refused         int64  `json:"refused"`
	Retried         int64  `json:"retried"`
	DoubleDispensed int64  `json:"double_dispensed"`
	Stored          int    `json:"stored"`
	// Conserved holds when stored == released - (acquired - created).
	Conserved bool `json:"conserved"`
}

// OK reports whether the run upheld both pool invariants.
func (v VariantReport) OK() bool {
	return v.Conserved && v.DoubleDispensed == 0
}

// Report aggregates every workload of a bench invocation.
type Report struct {
	Environment string          `json:"environment"`
	StartedAt   time.Time       `json:"started_at"`
	Elapsed     string          `json:"elapsed"`
	Runs        []VariantReport `json:"runs"`
	Pools       []poolmgr.Stats `json:"pools"`
}

// OK reports whether every run upheld the pool invariants.
func (r Report) OK() bool {
	for _, run := range r.Runs {
		if !run.OK() {
			return false
		}
	}
	return true
}

// WriteJSON writes the indented report to w.
func (r Report) WriteJSON(w io.Writer) error {
	payload, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	payload = append(payload, '\n')
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
