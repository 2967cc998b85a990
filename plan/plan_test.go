package plan

import (
	"testing"

	"github.com/vinayprograms/taskwire/errors"
)

func TestSynthesizeMath(t *testing.T) {
	p, err := Synthesize("T1", "Calculate: 2+2")
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}

	if len(p.Steps) != 1 {
		t.Fatalf("got %d steps, want 1", len(p.Steps))
	}
	step := p.Steps[0]
	if step.Tool != "math" {
		t.Errorf("tool = %q, want math", step.Tool)
	}
	if step.Params["expr"] != "2+2" {
		t.Errorf("expr = %v, want 2+2", step.Params["expr"])
	}
}

func TestSynthesizeArchetypes(t *testing.T) {
	tests := []struct {
		goal      string
		wantTool  string
		wantSteps int
		paramKey  string
		paramVal  string
	}{
		{"Calculate: 10*4", "math", 1, "expr", "10*4"},
		{"compute 7-3", "math", 1, "expr", "7-3"},
		{"read file: /tmp/notes.txt", "file", 1, "path", "/tmp/notes.txt"},
		{"write file /tmp/out.txt", "file", 1, "path", "/tmp/out.txt"},
		{"list directory /var/log", "file", 1, "path", "/var/log"},
		{"search for: golang event bus", "web_search", 2, "query", "golang event bus"},
		{"echo: hello world", "echo", 1, "message", "hello world"},
		{"Write a haiku about locks", "llm", 1, "prompt", "Write a haiku about locks"},
	}

	for _, tt := range tests {
		p, err := Synthesize("T1", tt.goal)
		if err != nil {
			t.Errorf("Synthesize(%q) error: %v", tt.goal, err)
			continue
		}
		if len(p.Steps) != tt.wantSteps {
			t.Errorf("Synthesize(%q) = %d steps, want %d", tt.goal, len(p.Steps), tt.wantSteps)
			continue
		}
		step := p.Steps[0]
		if step.Tool != tt.wantTool {
			t.Errorf("Synthesize(%q) tool = %q, want %q", tt.goal, step.Tool, tt.wantTool)
		}
		if step.Params[tt.paramKey] != tt.paramVal {
			t.Errorf("Synthesize(%q) %s = %v, want %q", tt.goal, tt.paramKey, step.Params[tt.paramKey], tt.paramVal)
		}
	}
}

func TestSynthesizeEmptyGoal(t *testing.T) {
	for _, goal := range []string{"", "   ", "\t\n"} {
		_, err := Synthesize("T1", goal)
		if !errors.Is(err, errors.CodePlanGeneration) {
			t.Errorf("Synthesize(%q) = %v, want PLAN_GENERATION_FAILURE", goal, err)
		}
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	p, _ := Synthesize("T1", "Calculate: 2+2")

	payload, err := p.ToPayload()
	if err != nil {
		t.Fatalf("ToPayload error: %v", err)
	}

	steps, err := StepsFromPayload(payload)
	if err != nil {
		t.Fatalf("StepsFromPayload error: %v", err)
	}

	if len(steps) != 1 || steps[0].Tool != "math" || steps[0].Params["expr"] != "2+2" {
		t.Errorf("round trip lost data: %+v", steps)
	}
}
