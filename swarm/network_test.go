package swarm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/KamdynS/go-swarm/llm"
)

func TestGetOrCreateMother_Idempotent(t *testing.T) {
	n := NewNetwork(nil)

	first := n.GetOrCreateMother()
	second := n.GetOrCreateMother()

	if first.ID != second.ID {
		t.Errorf("Expected same mother id, got %q and %q", first.ID, second.ID)
	}
	if first.Role != MotherRole {
		t.Errorf("Expected role %q, got %q", MotherRole, first.Role)
	}
}

func TestCreate_FirstTurnAllowsDuplicates(t *testing.T) {
	n := NewNetwork(nil)

	a, err := n.Create("researcher", llm.ModelTypeNormal, "dig")
	if err != nil {
		t.Fatalf("First create failed: %v", err)
	}
	b, err := n.Create("researcher", llm.ModelTypeNormal, "dig more")
	if err != nil {
		t.Fatalf("Second create on first turn failed: %v", err)
	}
	if a.ID == b.ID {
		t.Error("Expected distinct instances for duplicate roles on first turn")
	}

	_, workers := n.List()
	if len(workers) != 2 {
		t.Errorf("Expected 2 workers, got %d", len(workers))
	}
}

func TestCreate_FollowUpRejectsDuplicateRole(t *testing.T) {
	n := NewNetwork(nil)

	existing, err := n.Create("researcher", llm.ModelTypeNormal, "dig")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	n.SetFirstTaskContext("original task")

	inst, err := n.Create("researcher", llm.ModelTypeNormal, "dig again")
	if !errors.Is(err, ErrDuplicateRole) {
		t.Fatalf("Expected ErrDuplicateRole, got %v", err)
	}
	if inst.ID != existing.ID {
		t.Errorf("Expected existing instance returned with error, got %q want %q", inst.ID, existing.ID)
	}

	_, workers := n.List()
	if len(workers) != 1 {
		t.Errorf("Expected no new instance, got %d workers", len(workers))
	}
}

func TestCreate_FollowUpAllowsRoleAfterError(t *testing.T) {
	n := NewNetwork(nil)

	existing, _ := n.Create("researcher", llm.ModelTypeNormal, "dig")
	n.SetFirstTaskContext("original task")
	if err := n.MarkStatus(existing.ID, StatusErrored); err != nil {
		t.Fatalf("MarkStatus failed: %v", err)
	}

	replacement, err := n.Create("researcher", llm.ModelTypeNormal, "dig again")
	if err != nil {
		t.Fatalf("Expected errored role to be replaceable, got %v", err)
	}
	if replacement.ID == existing.ID {
		t.Error("Expected a fresh instance")
	}
}

func TestResolve_RoleThenID(t *testing.T) {
	n := NewNetwork(nil)

	inst, _ := n.Create("Data Analyst", llm.ModelTypeThinking, "numbers")

	byRole, err := n.Resolve("data analyst")
	if err != nil {
		t.Fatalf("Resolve by role failed: %v", err)
	}
	if byRole.ID != inst.ID {
		t.Errorf("Resolve by role got %q, want %q", byRole.ID, inst.ID)
	}

	byID, err := n.Resolve(inst.ID)
	if err != nil {
		t.Fatalf("Resolve by id failed: %v", err)
	}
	if byID.ID != inst.ID {
		t.Errorf("Resolve by id got %q, want %q", byID.ID, inst.ID)
	}

	if _, err := n.Resolve("nobody"); !errors.Is(err, ErrUnknownInstance) {
		t.Errorf("Expected ErrUnknownInstance, got %v", err)
	}
}

func TestResolve_Mother(t *testing.T) {
	n := NewNetwork(nil)
	mother := n.GetOrCreateMother()

	got, err := n.Resolve(MotherRole)
	if err != nil {
		t.Fatalf("Resolve mother failed: %v", err)
	}
	if got.ID != mother.ID {
		t.Errorf("Expected mother %q, got %q", mother.ID, got.ID)
	}
}

func TestRecordOutput_AppendOnly(t *testing.T) {
	ctx := context.Background()
	n := NewNetwork(nil)
	inst, _ := n.Create("writer", llm.ModelTypeNormal, "write")

	for _, out := range []string{"one", "two", "three"} {
		if err := n.RecordOutput(ctx, inst.ID, out); err != nil {
			t.Fatalf("RecordOutput failed: %v", err)
		}
	}

	got, err := n.Resolve(inst.ID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(got.OutputHistory) != 3 {
		t.Fatalf("Expected 3 outputs, got %d", len(got.OutputHistory))
	}
	if got.OutputHistory[0] != "one" || got.OutputHistory[2] != "three" {
		t.Errorf("Output order wrong: %v", got.OutputHistory)
	}

	transcript, err := n.Transcript(ctx, inst.ID)
	if err != nil {
		t.Fatalf("Transcript failed: %v", err)
	}
	if len(transcript) != 3 {
		t.Errorf("Expected 3 transcript entries, got %d", len(transcript))
	}
}

func TestFirstTaskContext_SetOnce(t *testing.T) {
	n := NewNetwork(nil)

	n.SetFirstTaskContext("the original task")
	n.SetFirstTaskContext("an attempted overwrite")

	if got := n.FirstTaskContext(); got != "the original task" {
		t.Errorf("Expected first task context to be immutable, got %q", got)
	}
}

func TestClear_ResetsEverything(t *testing.T) {
	ctx := context.Background()
	n := NewNetwork(nil)

	oldMother := n.GetOrCreateMother()
	n.Create("researcher", llm.ModelTypeNormal, "dig")
	n.SetFirstTaskContext("task")
	n.BeginTurn()

	if err := n.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	mother, workers := n.List()
	if mother != nil {
		t.Error("Expected no mother after clear")
	}
	if len(workers) != 0 {
		t.Errorf("Expected no workers after clear, got %d", len(workers))
	}
	if n.FirstTaskContext() != "" {
		t.Error("Expected first task context cleared")
	}

	newMother := n.GetOrCreateMother()
	if newMother.ID == oldMother.ID {
		t.Error("Expected a fresh mother id after clear")
	}
}

func TestConnect_TracksBothSides(t *testing.T) {
	n := NewNetwork(nil)
	a, _ := n.Create("researcher", llm.ModelTypeNormal, "")
	b, _ := n.Create("writer", llm.ModelTypeNormal, "")

	if err := n.Connect(a.ID, b.ID); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	gotA, _ := n.Resolve(a.ID)
	gotB, _ := n.Resolve(b.ID)
	if len(gotA.ConnectedTo) != 1 || gotA.ConnectedTo[0] != b.ID {
		t.Errorf("Expected a connected to b, got %v", gotA.ConnectedTo)
	}
	if len(gotB.ConnectedTo) != 1 || gotB.ConnectedTo[0] != a.ID {
		t.Errorf("Expected b connected to a, got %v", gotB.ConnectedTo)
	}
}

func TestMermaidDiagram(t *testing.T) {
	n := NewNetwork(nil)
	n.GetOrCreateMother()
	n.Create("researcher", llm.ModelTypeNormal, "")
	n.Create("writer", llm.ModelTypeNormal, "")

	diagram := n.MermaidDiagram(WithDirection("LR"))
	if !strings.HasPrefix(diagram, "graph LR\n") {
		t.Errorf("Expected graph LR header, got %q", diagram)
	}
	if !strings.Contains(diagram, "scrum_master") {
		t.Error("Expected mother node in diagram")
	}
	if !strings.Contains(diagram, "researcher") || !strings.Contains(diagram, "writer") {
		t.Error("Expected worker nodes in diagram")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	n := NewNetwork(nil)
	inst, _ := n.Create("researcher", llm.ModelTypeNormal, "")
	n.RecordOutput(ctx, inst.ID, "output")
	n.BeginTurn()

	stats := n.Stats()
	if stats.InstanceCount != 1 {
		t.Errorf("Expected 1 instance, got %d", stats.InstanceCount)
	}
	if stats.TotalMessages != 1 {
		t.Errorf("Expected 1 message, got %d", stats.TotalMessages)
	}
	if stats.TurnCount != 1 {
		t.Errorf("Expected 1 turn, got %d", stats.TurnCount)
	}
	if stats.Uptime <= 0 {
		t.Error("Expected positive uptime")
	}
}
