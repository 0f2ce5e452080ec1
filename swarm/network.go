package swarm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/KamdynS/go-swarm/llm"
	"github.com/KamdynS/go-swarm/memory"
	"github.com/KamdynS/go-swarm/memory/inmemory"
)

var (
	// ErrDuplicateRole means a follow-up turn tried to re-declare an active
	// role; the caller should reuse the existing instance instead.
	ErrDuplicateRole = errors.New("active instance with role already exists")

	// ErrUnknownInstance means a reference matched neither a role nor an id.
	ErrUnknownInstance = errors.New("unknown instance")
)

// Network is the live session: exactly one lazily created mother plus the
// ordered set of worker instances. A Network exclusively owns its instances.
type Network struct {
	mu          sync.RWMutex
	mother      *Instance
	instances   map[string]*Instance // by id
	order       []string             // insertion order for listing
	byRole      map[string][]string  // normalized role -> ids, in creation order
	turnCount   int
	firstTask   string
	totalOutput int
	createdAt   time.Time

	transcripts memory.TranscriptStore
}

// NewNetwork creates an empty network. A nil store gets the in-memory
// default, keeping all session state process-local.
func NewNetwork(store memory.TranscriptStore) *Network {
	if store == nil {
		store = inmemory.NewTranscriptStore()
	}
	return &Network{
		instances:   make(map[string]*Instance),
		byRole:      make(map[string][]string),
		createdAt:   time.Now(),
		transcripts: store,
	}
}

func newInstanceID() string {
	return "inst-" + uuid.NewString()[:8]
}

// GetOrCreateMother returns the planning instance, creating it on first use.
func (n *Network) GetOrCreateMother() Instance {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.mother == nil {
		n.mother = &Instance{
			ID:        "mother-" + uuid.NewString()[:8],
			Role:      MotherRole,
			ModelType: llm.ModelTypeNormal,
			Status:    StatusCreated,
			CreatedAt: time.Now(),
			connected: make(map[string]struct{}),
		}
	}
	return n.mother.snapshot()
}

// Create adds a worker instance. On a follow-up turn (first task context
// already set) an active instance with the same role must be reused, so
// Create fails with ErrDuplicateRole; on the very first turn duplicate roles
// are created in declared order.
func (n *Network) Create(role string, modelType llm.ModelType, responsibility string) (Instance, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	normalized := NormalizeRef(role)
	if n.firstTask != "" {
		for _, id := range n.byRole[normalized] {
			if inst := n.instances[id]; inst != nil && inst.Active() {
				return inst.snapshot(), fmt.Errorf("%w: %s", ErrDuplicateRole, normalized)
			}
		}
	}

	inst := &Instance{
		ID:             newInstanceID(),
		Role:           normalized,
		ModelType:      modelType,
		Responsibility: responsibility,
		Status:         StatusCreated,
		CreatedAt:      time.Now(),
		connected:      make(map[string]struct{}),
	}

	n.instances[inst.ID] = inst
	n.order = append(n.order, inst.ID)
	n.byRole[normalized] = append(n.byRole[normalized], inst.ID)

	return inst.snapshot(), nil
}

// Resolve looks a reference up by role first, then by id.
func (n *Network) Resolve(ref string) (Instance, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	inst, err := n.resolveLocked(ref)
	if err != nil {
		return Instance{}, err
	}
	return inst.snapshot(), nil
}

func (n *Network) resolveLocked(ref string) (*Instance, error) {
	normalized := NormalizeRef(ref)

	if n.mother != nil && (normalized == MotherRole || normalized == n.mother.ID) {
		return n.mother, nil
	}

	// Role match prefers the most recent active instance.
	ids := n.byRole[normalized]
	for i := len(ids) - 1; i >= 0; i-- {
		if inst := n.instances[ids[i]]; inst != nil && inst.Active() {
			return inst, nil
		}
	}
	if len(ids) > 0 {
		return n.instances[ids[len(ids)-1]], nil
	}

	if inst, ok := n.instances[normalized]; ok {
		return inst, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownInstance, ref)
}

// MarkStatus updates an instance's lifecycle state.
func (n *Network) MarkStatus(id string, status Status) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	inst, err := n.resolveLocked(id)
	if err != nil {
		return err
	}
	inst.Status = status
	return nil
}

// RecordOutput appends to an instance's output history and transcript.
// Histories are append-only; nothing here ever truncates.
func (n *Network) RecordOutput(ctx context.Context, id string, output string) error {
	n.mu.Lock()
	inst, err := n.resolveLocked(id)
	if err != nil {
		n.mu.Unlock()
		return err
	}
	inst.OutputHistory = append(inst.OutputHistory, output)
	n.totalOutput++
	role := inst.Role
	instID := inst.ID
	store := n.transcripts
	n.mu.Unlock()

	return store.Append(ctx, instID, memory.Entry{Role: role, Content: output})
}

// Connect records that two instances exchanged messages.
func (n *Network) Connect(aRef, bRef string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	a, err := n.resolveLocked(aRef)
	if err != nil {
		return err
	}
	b, err := n.resolveLocked(bRef)
	if err != nil {
		return err
	}
	if a.ID == b.ID {
		return nil
	}
	a.connected[b.ID] = struct{}{}
	b.connected[a.ID] = struct{}{}
	return nil
}

// Get returns a single instance by id or role.
func (n *Network) Get(ref string) (Instance, error) {
	return n.Resolve(ref)
}

// List returns the mother (if created) and workers in insertion order.
func (n *Network) List() (*Instance, []Instance) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var mother *Instance
	if n.mother != nil {
		m := n.mother.snapshot()
		mother = &m
	}

	workers := make([]Instance, 0, len(n.order))
	for _, id := range n.order {
		workers = append(workers, n.instances[id].snapshot())
	}
	return mother, workers
}

// SetFirstTaskContext records the original task description. It is set once;
// later calls are ignored until an explicit Clear. This is what routes
// follow-up turns to existing instances instead of spawning new ones.
func (n *Network) SetFirstTaskContext(task string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.firstTask == "" {
		n.firstTask = task
	}
}

// FirstTaskContext returns the original task, or "" before the first turn.
func (n *Network) FirstTaskContext() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.firstTask
}

// BeginTurn increments and returns the turn counter.
func (n *Network) BeginTurn() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.turnCount++
	return n.turnCount
}

// Clear resets the network to empty: instances dropped, first task context
// cleared, a fresh mother on next use.
func (n *Network) Clear(ctx context.Context) error {
	n.mu.Lock()
	ids := make([]string, 0, len(n.order)+1)
	ids = append(ids, n.order...)
	if n.mother != nil {
		ids = append(ids, n.mother.ID)
	}
	store := n.transcripts

	n.mother = nil
	n.instances = make(map[string]*Instance)
	n.order = nil
	n.byRole = make(map[string][]string)
	n.firstTask = ""
	n.turnCount = 0
	n.totalOutput = 0
	n.mu.Unlock()

	for _, id := range ids {
		if err := store.ClearInstance(ctx, id); err != nil {
			return fmt.Errorf("clear transcript for %s: %w", id, err)
		}
	}
	return nil
}

// Stats summarizes the network for monitoring.
type Stats struct {
	InstanceCount int           `json:"instance_count"`
	TotalMessages int           `json:"total_messages"`
	TurnCount     int           `json:"turn_count"`
	Uptime        time.Duration `json:"uptime"`
}

// Stats returns instance and message counts plus process uptime.
func (n *Network) Stats() Stats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return Stats{
		InstanceCount: len(n.order),
		TotalMessages: n.totalOutput,
		TurnCount:     n.turnCount,
		Uptime:        time.Since(n.createdAt),
	}
}

// Transcript returns an instance's stored transcript entries.
func (n *Network) Transcript(ctx context.Context, ref string) ([]memory.Entry, error) {
	inst, err := n.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return n.transcripts.Transcript(ctx, inst.ID)
}
