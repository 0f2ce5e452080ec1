package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KamdynS/go-swarm/directive"
	"github.com/KamdynS/go-swarm/llm"
	"github.com/KamdynS/go-swarm/ratelimit"
	"github.com/KamdynS/go-swarm/swarm"
)

// fakeClient scripts model responses by prompt class. Mother responses are
// consumed in order; worker responses come from workerFn.
type fakeClient struct {
	mu          sync.Mutex
	motherResps []string
	synthResp   string
	synthErr    error
	workerFn    func(prompt string) (string, error)
	prompts     []string
}

func (f *fakeClient) Complete(ctx context.Context, prompt string, modelType llm.ModelType) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	isMother := strings.Contains(prompt, "Scrum Master") || strings.Contains(prompt, "could not be parsed")
	isSynth := strings.Contains(prompt, "Synthesize these into ONE")
	var motherResp string
	if isMother {
		if len(f.motherResps) == 0 {
			f.mu.Unlock()
			return nil, llm.NewError("fake", llm.ErrorTypeProviderError, "no scripted mother response")
		}
		motherResp = f.motherResps[0]
		f.motherResps = f.motherResps[1:]
	}
	f.mu.Unlock()

	switch {
	case isMother:
		return &llm.Response{Content: motherResp, Provider: "fake"}, nil
	case isSynth:
		if f.synthErr != nil {
			return nil, f.synthErr
		}
		return &llm.Response{Content: f.synthResp, Provider: "fake"}, nil
	default:
		fn := f.workerFn
		if fn == nil {
			fn = func(string) (string, error) { return "worker output", nil }
		}
		content, err := fn(prompt)
		if err != nil {
			return nil, err
		}
		return &llm.Response{Content: content, Provider: "fake"}, nil
	}
}

func (f *fakeClient) Provider() llm.Provider { return "fake" }
func (f *fakeClient) Validate() error        { return nil }

func (f *fakeClient) recordedPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.prompts))
	copy(out, f.prompts)
	return out
}

func (f *fakeClient) synthesisPrompt() (string, bool) {
	for _, p := range f.recordedPrompts() {
		if strings.Contains(p, "Synthesize these into ONE") {
			return p, true
		}
	}
	return "", false
}

var _ llm.Client = (*fakeClient)(nil)

func newTestOrchestrator(fc *fakeClient) *Orchestrator {
	limiter := ratelimit.NewLimiter()
	limiter.SetBackoff(time.Millisecond, 2*time.Millisecond)
	cfg := Config{
		MaxConcurrency: 4,
		CallTimeout:    2 * time.Second,
		TurnTimeout:    10 * time.Second,
	}
	return New(swarm.NewNetwork(nil), fc, limiter, cfg)
}

const basicPlan = `ANALYZE: split the work
CREATE: researcher | normal | find sources
CREATE: writer | thinking | draft the answer
TO researcher: dig up the facts
TO writer: draft two paragraphs
SYNTHESIZE`

func TestSubmitUserMessage_FullTurn(t *testing.T) {
	fc := &fakeClient{
		motherResps: []string{basicPlan},
		synthResp:   "the final answer",
		workerFn: func(prompt string) (string, error) {
			if strings.Contains(prompt, "You are a researcher") {
				return "facts", nil
			}
			return "draft", nil
		},
	}
	o := newTestOrchestrator(fc)

	result, err := o.SubmitUserMessage(context.Background(), "write a report")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	if result.Response != "the final answer" {
		t.Errorf("response = %q", result.Response)
	}
	if result.Analysis != "split the work" {
		t.Errorf("analysis = %q", result.Analysis)
	}
	if result.Mother == nil {
		t.Fatal("expected mother in result")
	}
	if len(result.Instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(result.Instances))
	}
	if result.Instances[0].Role != "researcher" || result.Instances[1].Role != "writer" {
		t.Errorf("roles = %s, %s", result.Instances[0].Role, result.Instances[1].Role)
	}
	for _, inst := range result.Instances {
		if inst.Status != swarm.StatusIdle {
			t.Errorf("%s status = %s, want idle", inst.Role, inst.Status)
		}
		if len(inst.OutputHistory) != 1 {
			t.Errorf("%s history len = %d", inst.Role, len(inst.OutputHistory))
		}
	}
	if o.State() != StateComplete {
		t.Errorf("state = %s", o.State())
	}

	sp, ok := fc.synthesisPrompt()
	if !ok {
		t.Fatal("no synthesis prompt recorded")
	}
	if !strings.Contains(sp, "researcher: facts") || !strings.Contains(sp, "writer: draft") {
		t.Errorf("synthesis prompt missing outputs:\n%s", sp)
	}
}

func TestSubmitUserMessage_PartialWorkerFailure(t *testing.T) {
	fc := &fakeClient{
		motherResps: []string{`ANALYZE: three-way split
CREATE: alpha | normal | a
CREATE: beta | normal | b
CREATE: gamma | normal | c
TO alpha: task a
TO beta: task b
TO gamma: task c
SYNTHESIZE`},
		synthResp: "merged",
		workerFn: func(prompt string) (string, error) {
			if strings.Contains(prompt, "You are a beta") {
				return "", llm.NewError("fake", llm.ErrorTypeAuthentication, "key revoked")
			}
			return "ok", nil
		},
	}
	o := newTestOrchestrator(fc)

	result, err := o.SubmitUserMessage(context.Background(), "do three things")
	if err != nil {
		t.Fatalf("worker failure must not fail the turn: %v", err)
	}
	if result.Response != "merged" {
		t.Errorf("response = %q", result.Response)
	}

	beta, err := o.GetInstance("beta")
	if err != nil {
		t.Fatalf("GetInstance(beta): %v", err)
	}
	if beta.Status != swarm.StatusErrored {
		t.Errorf("beta status = %s, want errored", beta.Status)
	}

	sp, _ := fc.synthesisPrompt()
	if !strings.Contains(sp, "beta: "+failureMarker) {
		t.Errorf("synthesis prompt missing failure marker:\n%s", sp)
	}
	if !strings.Contains(sp, "alpha: ok") || !strings.Contains(sp, "gamma: ok") {
		t.Errorf("synthesis prompt missing surviving outputs:\n%s", sp)
	}
}

func TestSubmitUserMessage_SynthesisOrderSurvivesSlowWorker(t *testing.T) {
	fc := &fakeClient{
		motherResps: []string{basicPlan},
		synthResp:   "done",
		workerFn: func(prompt string) (string, error) {
			if strings.Contains(prompt, "You are a researcher") {
				time.Sleep(50 * time.Millisecond)
				return "slow facts", nil
			}
			return "fast draft", nil
		},
	}
	o := newTestOrchestrator(fc)

	if _, err := o.SubmitUserMessage(context.Background(), "report"); err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}

	sp, ok := fc.synthesisPrompt()
	if !ok {
		t.Fatal("no synthesis prompt recorded")
	}
	ri := strings.Index(sp, "researcher: slow facts")
	wi := strings.Index(sp, "writer: fast draft")
	if ri < 0 || wi < 0 {
		t.Fatalf("outputs missing from synthesis prompt:\n%s", sp)
	}
	if ri > wi {
		t.Errorf("outputs out of declared order:\n%s", sp)
	}
}

func TestSubmitUserMessage_SynthesisFallback(t *testing.T) {
	fc := &fakeClient{
		motherResps: []string{basicPlan},
		synthErr:    llm.NewError("fake", llm.ErrorTypeInvalidRequest, "too long"),
		workerFn: func(prompt string) (string, error) {
			if strings.Contains(prompt, "You are a researcher") {
				return "facts", nil
			}
			return "draft", nil
		},
	}
	o := newTestOrchestrator(fc)

	result, err := o.SubmitUserMessage(context.Background(), "report")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	if !strings.Contains(result.Response, "[researcher]\nfacts") {
		t.Errorf("fallback missing researcher output: %q", result.Response)
	}
	if !strings.Contains(result.Response, "[writer]\ndraft") {
		t.Errorf("fallback missing writer output: %q", result.Response)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "synthesis failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected synthesis warning, got %v", result.Warnings)
	}
}

func TestSubmitUserMessage_NoRoutedWork(t *testing.T) {
	fc := &fakeClient{
		motherResps: []string{"ANALYZE: trivial question, answering directly\nSYNTHESIZE"},
	}
	o := newTestOrchestrator(fc)

	result, err := o.SubmitUserMessage(context.Background(), "what is 2+2")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	if result.Response != "trivial question, answering directly" {
		t.Errorf("response = %q", result.Response)
	}
	if len(result.Instances) != 0 {
		t.Errorf("expected no workers, got %d", len(result.Instances))
	}
	if _, ok := fc.synthesisPrompt(); ok {
		t.Error("synthesis must be skipped with no routed work")
	}
}

func TestSubmitUserMessage_CorrectiveReprompt(t *testing.T) {
	fc := &fakeClient{
		motherResps: []string{
			"Sure! I will gladly help you with that.",
			basicPlan,
		},
		synthResp: "recovered",
	}
	o := newTestOrchestrator(fc)

	result, err := o.SubmitUserMessage(context.Background(), "report")
	if err != nil {
		t.Fatalf("expected recovery after corrective re-prompt: %v", err)
	}
	if result.Response != "recovered" {
		t.Errorf("response = %q", result.Response)
	}

	corrective := false
	for _, p := range fc.recordedPrompts() {
		if strings.Contains(p, "could not be parsed") {
			corrective = true
		}
	}
	if !corrective {
		t.Error("corrective prompt never sent")
	}
}

func TestSubmitUserMessage_FailsAfterSecondParseError(t *testing.T) {
	fc := &fakeClient{
		motherResps: []string{"still chatting", "chatting again"},
	}
	o := newTestOrchestrator(fc)

	_, err := o.SubmitUserMessage(context.Background(), "report")
	if err == nil {
		t.Fatal("expected turn failure")
	}
	var perr *directive.ParseError
	if !errors.As(err, &perr) {
		t.Errorf("expected ParseError, got %v", err)
	}
	if o.State() != StateFailed {
		t.Errorf("state = %s", o.State())
	}
}

func TestSubmitUserMessage_MotherUnavailable(t *testing.T) {
	fc := &fakeClient{} // no scripted responses: mother call errors
	o := newTestOrchestrator(fc)

	_, err := o.SubmitUserMessage(context.Background(), "report")
	if !errors.Is(err, ErrMotherUnavailable) {
		t.Fatalf("expected ErrMotherUnavailable, got %v", err)
	}
	if o.State() != StateFailed {
		t.Errorf("state = %s", o.State())
	}
}

func TestSubmitUserMessage_FollowUpReusesRole(t *testing.T) {
	fc := &fakeClient{
		motherResps: []string{
			basicPlan,
			"CREATE: researcher | normal | more digging\nTO researcher: go deeper\nSYNTHESIZE",
		},
		synthResp: "out",
	}
	o := newTestOrchestrator(fc)
	ctx := context.Background()

	if _, err := o.SubmitUserMessage(ctx, "first task"); err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	result, err := o.SubmitUserMessage(ctx, "follow up")
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}

	if len(result.Instances) != 2 {
		t.Fatalf("expected 2 instances after follow-up, got %d", len(result.Instances))
	}
	reused := false
	for _, a := range result.Actions {
		if strings.Contains(a, "reused existing researcher") {
			reused = true
		}
	}
	if !reused {
		t.Errorf("expected reuse action, got %v", result.Actions)
	}

	researcher, err := o.GetInstance("researcher")
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if len(researcher.OutputHistory) != 2 {
		t.Errorf("researcher history len = %d, want 2", len(researcher.OutputHistory))
	}
}

func TestSubmitUserMessage_RecordsConnections(t *testing.T) {
	fc := &fakeClient{
		motherResps: []string{basicPlan},
		synthResp:   "out",
	}
	o := newTestOrchestrator(fc)

	result, err := o.SubmitUserMessage(context.Background(), "report")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	if result.Mother == nil {
		t.Fatal("expected mother in result")
	}

	for _, inst := range result.Instances {
		if len(inst.ConnectedTo) == 0 {
			t.Fatalf("%s exchanged messages but ConnectedTo is empty", inst.Role)
		}
		found := false
		for _, id := range inst.ConnectedTo {
			if id == result.Mother.ID {
				found = true
			}
		}
		if !found {
			t.Errorf("%s connections %v missing mother %s", inst.Role, inst.ConnectedTo, result.Mother.ID)
		}
	}
	if len(result.Mother.ConnectedTo) != 2 {
		t.Errorf("mother connections = %v, want both workers", result.Mother.ConnectedTo)
	}
}

func TestSubmitUserMessage_UnknownRefSkipped(t *testing.T) {
	fc := &fakeClient{
		motherResps: []string{`ANALYZE: a
CREATE: researcher | normal | r
TO researcher: task
TO ghost: haunt
SYNTHESIZE`},
		synthResp: "ok",
	}
	o := newTestOrchestrator(fc)

	result, err := o.SubmitUserMessage(context.Background(), "report")
	if err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	skipped := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "ghost") {
			skipped = true
		}
	}
	if !skipped {
		t.Errorf("expected unknown-instance warning, got %v", result.Warnings)
	}

	sp, _ := fc.synthesisPrompt()
	if strings.Contains(sp, "ghost") {
		t.Errorf("ghost leaked into synthesis prompt:\n%s", sp)
	}
}

func TestClearResetsNetwork(t *testing.T) {
	fc := &fakeClient{
		motherResps: []string{basicPlan, basicPlan},
		synthResp:   "out",
	}
	o := newTestOrchestrator(fc)
	ctx := context.Background()

	result, err := o.SubmitUserMessage(ctx, "first")
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	firstMotherID := result.Mother.ID

	if err := o.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if o.State() != StateIdle {
		t.Errorf("state after clear = %s", o.State())
	}
	if mother, workers := o.ListInstances(); mother != nil || len(workers) != 0 {
		t.Fatalf("network not empty after clear: %v, %d", mother, len(workers))
	}

	result, err = o.SubmitUserMessage(ctx, "fresh start")
	if err != nil {
		t.Fatalf("turn after clear: %v", err)
	}
	if result.Mother.ID == firstMotherID {
		t.Error("mother id must change after clear")
	}
	if len(result.Instances) != 2 {
		t.Errorf("expected fresh workers, got %d", len(result.Instances))
	}
	if o.Stats().TurnCount != 1 {
		t.Errorf("turn count after clear = %d, want 1", o.Stats().TurnCount)
	}
}

func TestSubmitUserMessage_EmptyMessage(t *testing.T) {
	o := newTestOrchestrator(&fakeClient{})
	if _, err := o.SubmitUserMessage(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestDiagramIncludesWorkers(t *testing.T) {
	fc := &fakeClient{motherResps: []string{basicPlan}, synthResp: "out"}
	o := newTestOrchestrator(fc)

	if _, err := o.SubmitUserMessage(context.Background(), "report"); err != nil {
		t.Fatalf("SubmitUserMessage: %v", err)
	}
	d := o.Diagram()
	if !strings.Contains(d, "researcher") || !strings.Contains(d, "writer") {
		t.Errorf("diagram missing workers:\n%s", d)
	}
}
