// Package swarm owns the live session state: the mother planning instance
// and the worker instances it creates, with their statuses, connections, and
// append-only output histories.
package swarm

import (
	"sort"
	"strings"
	"time"

	"github.com/KamdynS/go-swarm/llm"
)

// Status is an instance's lifecycle state. Instances are never deleted; they
// are marked errored or swept away by a network clear.
type Status string

const (
	StatusCreated Status = "created"
	StatusBusy    Status = "busy"
	StatusIdle    Status = "idle"
	StatusErrored Status = "errored"
)

// MotherRole is the fixed role of the planning instance.
const MotherRole = "scrum_master"

// Instance is one agent in the network, worker or mother.
type Instance struct {
	ID             string        `json:"id"`
	Role           string        `json:"role"`
	ModelType      llm.ModelType `json:"model_type"`
	Responsibility string        `json:"responsibility,omitempty"`
	Status         Status        `json:"status"`
	ConnectedTo    []string      `json:"connected_to,omitempty"`
	OutputHistory  []string      `json:"output_history,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`

	connected map[string]struct{}
}

// snapshot returns a copy safe to hand outside the registry lock.
func (i *Instance) snapshot() Instance {
	out := *i
	out.connected = nil
	out.ConnectedTo = make([]string, 0, len(i.connected))
	for id := range i.connected {
		out.ConnectedTo = append(out.ConnectedTo, id)
	}
	sort.Strings(out.ConnectedTo)
	out.OutputHistory = make([]string, len(i.OutputHistory))
	copy(out.OutputHistory, i.OutputHistory)
	return out
}

// Active reports whether the instance can still take work.
func (i *Instance) Active() bool {
	return i.Status != StatusErrored
}

// NormalizeRef normalizes a role or id reference the way directive text
// tends to write them: lowercased with spaces collapsed to dashes.
func NormalizeRef(ref string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(ref), " ", "-"))
}
