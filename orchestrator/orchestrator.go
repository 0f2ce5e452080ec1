// Package orchestrator drives the turn loop: it prompts the planning
// instance, parses its directives, fans work out to worker instances, and
// synthesizes their outputs into one response.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KamdynS/go-swarm/directive"
	"github.com/KamdynS/go-swarm/llm"
	"github.com/KamdynS/go-swarm/memory"
	"github.com/KamdynS/go-swarm/observability"
	"github.com/KamdynS/go-swarm/ratelimit"
	"github.com/KamdynS/go-swarm/swarm"
)

// State is the phase a turn is in. The zero value before any turn is
// StateIdle; after a turn the last terminal state remains observable.
type State string

const (
	StateIdle                  State = "idle"
	StateAwaitingDirectives    State = "awaiting_directives"
	StateExecutingCommands     State = "executing_commands"
	StateAwaitingWorkerOutputs State = "awaiting_worker_outputs"
	StateSynthesizing          State = "synthesizing"
	StateComplete              State = "complete"
	StateFailed                State = "failed"
)

// ErrMotherUnavailable marks a turn that failed because the planning
// instance could not be reached at all. Worker failures never produce it.
var ErrMotherUnavailable = errors.New("mother instance unavailable")

// Endpoint names used with the rate limiter. Each class of outbound call
// draws from its own bucket.
const (
	EndpointMother    = "mother"
	EndpointWorkers   = "workers"
	EndpointSynthesis = "synthesis"
)

// Config holds orchestration tunables.
type Config struct {
	// MaxConcurrency bounds parallel worker calls. Defaults to 4.
	MaxConcurrency int
	// CallTimeout bounds a single worker call. Defaults to 2 minutes.
	CallTimeout time.Duration
	// TurnTimeout bounds a whole turn. Defaults to 10 minutes.
	TurnTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 2 * time.Minute
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = 10 * time.Minute
	}
	return c
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics swaps the metrics collector. Defaults to NoOpMetrics.
func WithMetrics(m observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTracer swaps the tracer. Defaults to NoOpTracer.
func WithTracer(t observability.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// Orchestrator owns one network and serializes turns against it.
type Orchestrator struct {
	network *swarm.Network
	client  llm.Client
	limiter *ratelimit.Limiter
	synth   *SynthesisEngine
	metrics observability.Metrics
	tracer  observability.Tracer
	cfg     Config

	turnMu sync.Mutex

	stateMu sync.RWMutex
	state   State
}

// New creates an Orchestrator. A nil limiter gets default per-endpoint
// buckets; a nil network gets a fresh in-memory one.
func New(network *swarm.Network, client llm.Client, limiter *ratelimit.Limiter, cfg Config, opts ...Option) *Orchestrator {
	if network == nil {
		network = swarm.NewNetwork(nil)
	}
	if limiter == nil {
		limiter = ratelimit.NewLimiter()
		limiter.ConfigureEndpoint(EndpointMother, 10, 0.5, 3)
		limiter.ConfigureEndpoint(EndpointWorkers, 20, 2.0, 3)
		limiter.ConfigureEndpoint(EndpointSynthesis, 5, 0.5, 3)
	}

	o := &Orchestrator{
		network: network,
		client:  client,
		limiter: limiter,
		metrics: &observability.NoOpMetrics{},
		tracer:  &observability.NoOpTracer{},
		cfg:     cfg.withDefaults(),
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.synth = NewSynthesisEngine(client, limiter)
	return o
}

// TurnResult is what one user message produced.
type TurnResult struct {
	Response  string           `json:"response"`
	Analysis  string           `json:"analysis,omitempty"`
	Actions   []string         `json:"actions,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
	Mother    *swarm.Instance  `json:"mother,omitempty"`
	Instances []swarm.Instance `json:"instances"`
	Turn      int              `json:"turn"`
}

// State returns the current turn phase.
func (o *Orchestrator) State() State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.stateMu.Lock()
	o.state = s
	o.stateMu.Unlock()
}

// SubmitUserMessage runs one full turn. Turns are serialized; a second
// caller blocks until the first turn finishes.
func (o *Orchestrator) SubmitUserMessage(ctx context.Context, message string) (*TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, fmt.Errorf("empty message")
	}

	o.turnMu.Lock()
	defer o.turnMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, o.cfg.TurnTimeout)
	defer cancel()

	turn := o.network.BeginTurn()
	span, ctx := o.tracer.StartSpan(ctx, "turn")
	span.SetAttribute(observability.AttrTurn, turn)
	defer span.End()

	result, err := o.runTurn(ctx, message, turn)
	if err != nil {
		o.setState(StateFailed)
		span.SetStatus(observability.StatusCodeError, err.Error())
		return nil, err
	}
	o.setState(StateComplete)
	span.SetStatus(observability.StatusCodeOk, "")
	o.metrics.IncrementTurns()

	mother, instances := o.network.List()
	result.Mother = mother
	result.Instances = instances
	result.Turn = turn
	return result, nil
}

func (o *Orchestrator) runTurn(ctx context.Context, message string, turn int) (*TurnResult, error) {
	o.setState(StateAwaitingDirectives)

	mother := o.network.GetOrCreateMother()
	firstTask := o.network.FirstTaskContext()
	_, workers := o.network.List()

	raw, err := o.callModel(ctx, EndpointMother, buildMotherPrompt(message, workers, firstTask), llm.ModelTypeNormal)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMotherUnavailable, err)
	}
	result := &TurnResult{}
	o.recordOutput(ctx, mother.ID, raw, result)

	block, err := directive.Parse(raw)
	if err != nil {
		// One corrective re-prompt before the turn fails.
		raw, err = o.callModel(ctx, EndpointMother, buildCorrectivePrompt(raw), llm.ModelTypeNormal)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMotherUnavailable, err)
		}
		o.recordOutput(ctx, mother.ID, raw, result)
		block, err = directive.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("directives unparseable after corrective retry: %w", err)
		}
		result.Warnings = append(result.Warnings, "planner response required a corrective re-prompt")
	}
	result.Warnings = append(result.Warnings, block.Warnings...)

	o.setState(StateExecutingCommands)
	dispatches := o.executeCommands(ctx, block, result)

	if firstTask == "" {
		o.network.SetFirstTaskContext(message)
	}

	o.setState(StateAwaitingWorkerOutputs)
	outputs := o.dispatch(ctx, dispatches, result)
	o.updateActiveGauge()

	o.setState(StateSynthesizing)
	result.Response = o.synthesize(ctx, raw, outputs, result)
	o.recordOutput(ctx, mother.ID, result.Response, result)
	return result, nil
}

// executeCommands runs Create commands synchronously in declared order and
// collects RouteTo commands for dispatch. Analyze text is kept verbatim.
func (o *Orchestrator) executeCommands(ctx context.Context, block *directive.Block, result *TurnResult) []directive.RouteTo {
	var dispatches []directive.RouteTo
	for _, cmd := range block.Commands {
		switch c := cmd.(type) {
		case directive.Analyze:
			result.Analysis = c.Text
		case directive.Create:
			inst, err := o.network.Create(c.Role, c.ModelType, c.Responsibility)
			switch {
			case errors.Is(err, swarm.ErrDuplicateRole):
				result.Actions = append(result.Actions,
					fmt.Sprintf("reused existing %s (%s)", inst.Role, inst.ID))
			case err != nil:
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("create %s failed: %v", c.Role, err))
			default:
				result.Actions = append(result.Actions,
					fmt.Sprintf("created %s (%s, %s)", inst.Role, inst.ID, inst.ModelType))
			}
		case directive.RouteTo:
			dispatches = append(dispatches, c)
		case directive.Synthesize:
			// Terminal marker; synthesis runs after dispatch.
		}
	}
	return dispatches
}

// dispatch fans routed messages out to workers. Messages for the same
// instance run in declared order; distinct instances run concurrently up to
// MaxConcurrency. A worker failure marks that instance errored and leaves a
// failure entry in the outputs; it never aborts the turn.
func (o *Orchestrator) dispatch(ctx context.Context, dispatches []directive.RouteTo, result *TurnResult) []RoleOutput {
	type call struct {
		slot     int
		instance swarm.Instance
		message  string
	}

	outputs := make([]RoleOutput, 0, len(dispatches))
	perInstance := make(map[string][]call)
	var instanceOrder []string

	for _, d := range dispatches {
		inst, err := o.network.Resolve(d.Ref)
		if err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("skipping message to unknown instance %q", d.Ref))
			continue
		}
		// Routing a message is an exchange; record the edge.
		_ = o.network.Connect(swarm.MotherRole, inst.ID)
		slot := len(outputs)
		outputs = append(outputs, RoleOutput{Role: inst.Role})
		if _, seen := perInstance[inst.ID]; !seen {
			instanceOrder = append(instanceOrder, inst.ID)
		}
		perInstance[inst.ID] = append(perInstance[inst.ID], call{slot: slot, instance: inst, message: d.Message})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrency)
	for _, id := range instanceOrder {
		calls := perInstance[id]
		g.Go(func() error {
			for _, c := range calls {
				outputs[c.slot] = o.callWorker(gctx, c.instance, c.message)
			}
			return nil
		})
	}
	// Worker goroutines never return errors, so Wait only joins them.
	_ = g.Wait()

	result.Actions = append(result.Actions,
		fmt.Sprintf("dispatched %d message(s) to %d instance(s)", len(outputs), len(instanceOrder)))
	return outputs
}

// callWorker runs one routed message against one worker instance.
func (o *Orchestrator) callWorker(ctx context.Context, inst swarm.Instance, message string) RoleOutput {
	span, ctx := o.tracer.StartSpan(ctx, "worker_call")
	span.SetAttribute(observability.AttrInstanceID, inst.ID)
	span.SetAttribute(observability.AttrRole, inst.Role)
	defer span.End()

	_ = o.network.MarkStatus(inst.ID, swarm.StatusBusy)

	// Refresh the snapshot so prompts see outputs from earlier messages in
	// this turn.
	if fresh, err := o.network.Get(inst.ID); err == nil {
		inst = fresh
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	content, err := o.callModel(callCtx, EndpointWorkers, buildWorkerPrompt(inst, message), inst.ModelType)
	if err != nil {
		_ = o.network.MarkStatus(inst.ID, swarm.StatusErrored)
		span.SetStatus(observability.StatusCodeError, err.Error())
		return RoleOutput{Role: inst.Role, Err: err}
	}

	_ = o.network.RecordOutput(ctx, inst.ID, content)
	_ = o.network.MarkStatus(inst.ID, swarm.StatusIdle)
	span.SetStatus(observability.StatusCodeOk, "")
	return RoleOutput{Role: inst.Role, Content: content}
}

// synthesize merges worker outputs, degrading to concatenation when the
// synthesis call fails. With no routed work the planner's own analysis is
// the response.
func (o *Orchestrator) synthesize(ctx context.Context, rawMother string, outputs []RoleOutput, result *TurnResult) string {
	if len(outputs) == 0 {
		if result.Analysis != "" {
			return result.Analysis
		}
		return rawMother
	}

	final, err := o.synth.Synthesize(ctx, outputs)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("synthesis failed, concatenating worker outputs: %v", err))
		return Fallback(outputs)
	}
	return final
}

// callModel performs one rate-limited completion and records metrics for it.
func (o *Orchestrator) callModel(ctx context.Context, endpoint, prompt string, modelType llm.ModelType) (string, error) {
	labels := map[string]string{"endpoint": endpoint, "model_type": string(modelType)}
	start := time.Now()
	resp, err := ratelimit.Do(o.limiter, ctx, endpoint, func(ctx context.Context) (*llm.Response, error) {
		return o.client.Complete(ctx, prompt, modelType)
	})
	o.metrics.IncrementCalls(labels)
	o.metrics.RecordLatency(time.Since(start), labels)
	if err != nil {
		if lerr, ok := llm.AsError(err); ok {
			o.metrics.RecordError(string(lerr.Type), labels)
		} else {
			o.metrics.RecordError("unknown", labels)
		}
		return "", err
	}
	return resp.Content, nil
}

func (o *Orchestrator) recordOutput(ctx context.Context, id, output string, result *TurnResult) {
	if err := o.network.RecordOutput(ctx, id, output); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("transcript write failed: %v", err))
	}
}

func (o *Orchestrator) updateActiveGauge() {
	_, workers := o.network.List()
	active := 0
	for i := range workers {
		if workers[i].Active() {
			active++
		}
	}
	o.metrics.SetActiveInstances(active)
}

// ListInstances returns the mother (if created) and all workers in
// creation order.
func (o *Orchestrator) ListInstances() (*swarm.Instance, []swarm.Instance) {
	return o.network.List()
}

// GetInstance resolves a role or id reference to an instance snapshot.
func (o *Orchestrator) GetInstance(ref string) (swarm.Instance, error) {
	return o.network.Get(ref)
}

// Transcript returns an instance's stored transcript.
func (o *Orchestrator) Transcript(ctx context.Context, ref string) ([]memory.Entry, error) {
	return o.network.Transcript(ctx, ref)
}

// Clear resets the network. The next turn starts from scratch with a fresh
// mother instance.
func (o *Orchestrator) Clear(ctx context.Context) error {
	o.turnMu.Lock()
	defer o.turnMu.Unlock()
	if err := o.network.Clear(ctx); err != nil {
		return err
	}
	o.setState(StateIdle)
	o.metrics.SetActiveInstances(0)
	return nil
}

// Stats reports network-level counters.
func (o *Orchestrator) Stats() swarm.Stats {
	return o.network.Stats()
}

// Diagram renders the current network as a Mermaid graph.
func (o *Orchestrator) Diagram() string {
	return o.network.MermaidDiagram()
}

// RateMetrics exposes per-endpoint limiter counters.
func (o *Orchestrator) RateMetrics() map[string]ratelimit.CallMetrics {
	return o.limiter.AllMetrics()
}
