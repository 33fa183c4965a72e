package agent

import (
	"fmt"

	"go.uber.org/zap"
)

// TraceEntry is one orchestration decision.
type TraceEntry struct {
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
}

// Trace is the audit log of one command. It is append-only and only meant for observability.
type Trace struct {
	Entries []TraceEntry `json:"entries"`
	log     *zap.Logger
}

func newTrace(log *zap.Logger) *Trace { return &Trace{log: log} }

// Add appends an entry, mirrored to the debug log.
func (t *Trace) Add(label, format string, args ...any) {
	detail := fmt.Sprintf(format, args...)
	t.Entries = append(t.Entries, TraceEntry{Label: label, Detail: detail})
	if t.log != nil {
		t.log.Debug(label, zap.String("detail", detail))
	}
}

// Labels returns the labels of the entries, in order.
func (t *Trace) Labels() []string {
	labels := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		labels[i] = e.Label
	}
	return labels
}
