// Package plan synthesizes execution plans from free-text task goals.
//
// Synthesis is pattern matching against known task archetypes (search,
// file, compute, echo) with a generic fallback that hands the whole goal
// to the llm tool. Tools themselves are opaque collaborators; a plan only
// names them and their parameters.
package plan

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/vinayprograms/taskwire/errors"
)

// Step is a single tool invocation in a plan.
type Step struct {
	Tool        string                 `json:"tool"`
	Params      map[string]interface{} `json:"params"`
	Description string                 `json:"description,omitempty"`
}

// Plan is an ordered sequence of steps synthesized for one task.
type Plan struct {
	TaskID string `json:"task_id"`
	Goal   string `json:"goal"`
	Steps  []Step `json:"steps"`
}

// Goal archetype patterns. Order matters: the first match wins, and the
// generic fallback catches everything else.
var (
	mathPattern   = regexp.MustCompile(`(?i)(?:calculate|compute)\s*:?\s*(.+)`)
	searchPattern = regexp.MustCompile(`(?i)(?:search for|search|find|look up)\s*:?\s*(.+)`)
	readPattern   = regexp.MustCompile(`(?i)read\s+file\s*:?\s*(\S+)`)
	writePattern  = regexp.MustCompile(`(?i)(?:write|create)\s+file\s*:?\s*(\S+)`)
	listPattern   = regexp.MustCompile(`(?i)list\s+(?:directory|dir|files)\s*:?\s*(\S+)`)
	echoPattern   = regexp.MustCompile(`(?i)echo\s*:?\s*(.+)`)
)

// Synthesize builds a plan from goal text. Returns a
// PLAN_GENERATION_FAILURE error for an empty goal; retrying an
// unparseable goal cannot succeed, so callers fail the task immediately.
func Synthesize(taskID, goal string) (Plan, error) {
	trimmed := strings.TrimSpace(goal)
	if trimmed == "" {
		return Plan{}, errors.New(errors.CodePlanGeneration, "goal is empty",
			errors.WithTaskID(taskID))
	}

	p := Plan{TaskID: taskID, Goal: goal}

	switch {
	case mathPattern.MatchString(trimmed):
		expr := strings.TrimSpace(mathPattern.FindStringSubmatch(trimmed)[1])
		p.Steps = []Step{{
			Tool:        "math",
			Params:      map[string]interface{}{"expr": expr},
			Description: "evaluate expression " + expr,
		}}

	case readPattern.MatchString(trimmed):
		path := readPattern.FindStringSubmatch(trimmed)[1]
		p.Steps = []Step{{
			Tool:        "file",
			Params:      map[string]interface{}{"operation": "read", "path": path},
			Description: "read file " + path,
		}}

	case writePattern.MatchString(trimmed):
		path := writePattern.FindStringSubmatch(trimmed)[1]
		p.Steps = []Step{{
			Tool:        "file",
			Params:      map[string]interface{}{"operation": "write", "path": path, "description": goal},
			Description: "write file " + path,
		}}

	case listPattern.MatchString(trimmed):
		path := listPattern.FindStringSubmatch(trimmed)[1]
		p.Steps = []Step{{
			Tool:        "file",
			Params:      map[string]interface{}{"operation": "list", "path": path},
			Description: "list directory " + path,
		}}

	case searchPattern.MatchString(trimmed):
		query := strings.TrimSpace(searchPattern.FindStringSubmatch(trimmed)[1])
		p.Steps = []Step{
			{
				Tool:        "web_search",
				Params:      map[string]interface{}{"query": query},
				Description: "search the web for " + query,
			},
			{
				Tool:        "llm",
				Params:      map[string]interface{}{"prompt": "Summarize the search results for: " + query},
				Description: "summarize search results",
			},
		}

	case echoPattern.MatchString(trimmed):
		message := strings.TrimSpace(echoPattern.FindStringSubmatch(trimmed)[1])
		p.Steps = []Step{{
			Tool:        "echo",
			Params:      map[string]interface{}{"message": message},
			Description: "echo message",
		}}

	default:
		// Unrecognized goals go to the llm tool wholesale.
		p.Steps = []Step{{
			Tool:        "llm",
			Params:      map[string]interface{}{"prompt": goal},
			Description: "generate response for goal",
		}}
	}

	return p, nil
}

// ToPayload converts a plan to the generic map form events carry.
func (p Plan) ToPayload() ([]map[string]interface{}, error) {
	data, err := json.Marshal(p.Steps)
	if err != nil {
		return nil, err
	}
	var out []map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StepsFromPayload decodes plan steps from an event payload value.
func StepsFromPayload(v interface{}) ([]Step, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var steps []Step
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, err
	}
	return steps, nil
}
