package bridge

import "github.com/flowsmith/flowsmith/internal/memory"

// toolActions maps workflow-service tool names to the memory action they
// imply for the touched workflow.
var toolActions = map[string]memory.Action{
	"create_workflow_from_description": memory.ActionCreated,
	"create_workflow_from_template":    memory.ActionCreated,
	"update_workflow_actions":          memory.ActionModified,
	"add_workflow_state":               memory.ActionModified,
	"get_workflow":                     memory.ActionViewed,
	"get_workflow_states":              memory.ActionViewed,
	"get_workflow_actions":             memory.ActionViewed,
	"list_workflows":                   memory.ActionDiscussed,
	"get_workflow_templates":           memory.ActionDiscussed,
}

// MemoryAction returns the workflow-memory action implied by a tool
// call, and whether the tool touches workflows at all.
func MemoryAction(toolName string) (memory.Action, bool) {
	a, ok := toolActions[toolName]
	return a, ok
}
