package prom

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/KamdynS/go-swarm/observability"
)

// Exporter implements observability.Metrics and exposes a Prometheus text
// endpoint without external dependencies. It aggregates counters and simple
// latency sums.
type Exporter struct {
	mu      sync.Mutex
	calls   map[string]float64
	latency map[string]float64
	errors  map[string]float64
	active  float64
	turns   float64
}

// New creates a new in-process exporter.
func New() *Exporter {
	return &Exporter{
		calls:   make(map[string]float64),
		latency: make(map[string]float64),
		errors:  make(map[string]float64),
	}
}

// Handler returns an HTTP handler for a simple /metrics endpoint.
func Handler(e *Exporter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		e.mu.Lock()
		defer e.mu.Unlock()
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMap(w, "goswarm_calls_total", e.calls)
		writeMap(w, "goswarm_call_latency_seconds_sum", e.latency)
		writeMap(w, "goswarm_errors_total", e.errors)
		_, _ = w.Write([]byte("goswarm_active_instances " + formatFloat(e.active) + "\n"))
		_, _ = w.Write([]byte("goswarm_turns_total " + formatFloat(e.turns) + "\n"))
	})
}

func writeMap(w http.ResponseWriter, name string, m map[string]float64) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		_, _ = w.Write([]byte(name + "{label=\"" + k + "\"} " + formatFloat(m[k]) + "\n"))
	}
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func (e *Exporter) IncrementCalls(labels map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[labelKey(labels)]++
}

func (e *Exporter) RecordLatency(d time.Duration, labels map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.latency[labelKey(labels)] += d.Seconds()
}

func (e *Exporter) RecordError(errorType string, labels map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := errorType
	if len(labels) > 0 {
		key = key + "|" + labelKey(labels)
	}
	e.errors[key]++
}

func (e *Exporter) SetActiveInstances(count int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = float64(count)
}

func (e *Exporter) IncrementTurns() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns++
}

func labelKey(labels map[string]string) string {
	if v, ok := labels["route"]; ok {
		return v + "|" + labels["method"] + "|" + labels["status_code"]
	}
	if v, ok := labels["endpoint"]; ok {
		return v + "|" + labels["model_type"]
	}
	return "generic"
}

// Ensure interface compliance
var _ observability.Metrics = (*Exporter)(nil)
