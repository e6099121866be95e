package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowsmith/flowsmith/internal/bridge"
	"github.com/flowsmith/flowsmith/internal/conversation"
	"github.com/flowsmith/flowsmith/internal/memory"
	"github.com/flowsmith/flowsmith/internal/provider"
)

// ChatRequest is the JSON body of POST /chat. ConversationID is optional;
// a fresh conversation is created when it is absent. WorkflowID pins the
// turn to a workflow whose specification is fetched for context.
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	WorkflowID     string `json:"workflow_id,omitempty"`
}

// ChatResponse is the JSON body of a successful chat turn.
type ChatResponse struct {
	Response       string   `json:"response"`
	ConversationID string   `json:"conversation_id"`
	Mode           string   `json:"mode"`
	ToolsUsed      []string `json:"tools_used,omitempty"`
}

// handleChat runs one conversational turn: infer the prompt mode, gather
// history, workflow, and memory context, call the model, then record the
// completed exchange.
func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
			return
		}

		conversationID := req.ConversationID
		if conversationID == "" {
			conversationID = uuid.NewString()
		}

		instructions, mode := g.composer.ComposeForMessage(
			req.Message,
			g.previousTools(conversationID),
			req.WorkflowID != "",
		)

		historyContext := g.manager.GetContextString(conversationID)

		workflowContext, err := g.workflowContext(r, req.WorkflowID)
		if err != nil {
			g.metrics.RecordChatError()
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "workflow not found: " + req.WorkflowID})
			return
		}

		memoryContext := g.memoryContext(conversationID)

		sample := g.meter.Measure(conversationID, instructions, historyContext, workflowContext+memoryContext)
		g.history.Record(sample)

		historySection := historyContext
		if historySection != "" {
			historySection = "Previous conversation:\n" + historySection
		}

		resp, err := g.provider.Complete(r.Context(), provider.CompletionRequest{
			Instructions: assembleInstructions(instructions, workflowContext, memoryContext, historySection),
			Messages: []provider.LLMMessage{
				{Role: provider.MessageRoleUser, Content: req.Message},
			},
			Tools: g.toolDefinitions(r),
		})
		if err != nil {
			g.metrics.RecordChatError()
			g.logger.Error("completion failed", "conversation_id", conversationID, "error", err)
			writeJSON(w, completionStatus(err), map[string]string{"error": "completion failed"})
			return
		}

		toolsUsed := resp.ToolNames()
		if err := g.manager.AddTurn(r.Context(), conversation.AddTurnRequest{
			ConversationID: conversationID,
			UserMessage:    req.Message,
			AgentResponse:  resp.Content,
			ToolsUsed:      toolsUsed,
		}); err != nil {
			g.metrics.RecordChatError()
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}

		g.trackToolCalls(conversationID, req.WorkflowID, resp.ToolCalls)
		g.metrics.RecordChat(string(mode), time.Since(started), sample.Total)

		writeJSON(w, http.StatusOK, ChatResponse{
			Response:       resp.Content,
			ConversationID: conversationID,
			Mode:           string(mode),
			ToolsUsed:      toolsUsed,
		})
	}
}

// previousTools returns the tools-used set of the conversation's latest
// turn, which biases mode inference toward modification.
func (g *Gateway) previousTools(conversationID string) []string {
	turns := g.manager.GetConversationHistory(conversationID)
	if len(turns) == 0 {
		return nil
	}
	return turns[len(turns)-1].ToolsUsed
}

// workflowContext fetches the workflow specification through the bridge,
// serving repeats from the spec cache. An empty workflowID or a missing
// bridge yields an empty section.
func (g *Gateway) workflowContext(r *http.Request, workflowID string) (string, error) {
	if workflowID == "" || g.bridge == nil {
		return "", nil
	}

	cache := g.manager.Cache()
	spec, ok := cache.GetSpec(workflowID)
	if !ok {
		var err error
		spec, err = g.bridge.FetchWorkflow(r.Context(), workflowID)
		if err != nil {
			if errors.Is(err, bridge.ErrWorkflowNotFound) {
				return "", err
			}
			// Transient bridge failures degrade to a turn without
			// workflow context instead of failing the chat.
			g.logger.Warn("workflow fetch failed", "workflow_id", workflowID, "error", err)
			return "", nil
		}
		cache.PutSpec(workflowID, spec)
	}

	return "Current workflow:\n" + spec, nil
}

// memoryContext renders the conversation's recent workflow references.
func (g *Gateway) memoryContext(conversationID string) string {
	return memory.FormatForContext(g.memory.ConversationWorkflows(conversationID, 0))
}

// toolDefinitions exposes the bridge's tools to the model.
func (g *Gateway) toolDefinitions(r *http.Request) []provider.ToolDefinition {
	if g.bridge == nil {
		return nil
	}
	tools, err := g.bridge.ListTools(r.Context())
	if err != nil {
		g.logger.Warn("tool listing failed", "error", err)
		return nil
	}
	defs := make([]provider.ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = provider.ToolDefinition{Name: t.Name, Description: t.Description}
	}
	return defs
}

// trackToolCalls records workflow references for every tool call whose
// tool maps to a memory action. The workflow id and name are read from
// the call arguments, falling back to the request's workflow id.
func (g *Gateway) trackToolCalls(conversationID, requestWorkflowID string, calls []provider.ToolCall) {
	for _, call := range calls {
		action, ok := bridge.MemoryAction(call.Name)
		if !ok {
			continue
		}

		var args struct {
			WorkflowID string `json:"workflow_id"`
			Name       string `json:"name"`
		}
		_ = json.Unmarshal(call.Arguments, &args)

		workflowID := args.WorkflowID
		if workflowID == "" {
			workflowID = requestWorkflowID
		}
		if workflowID == "" {
			continue
		}

		name := args.Name
		if name == "" {
			name = workflowID
		}
		g.memory.Track(conversationID, workflowID, name, action)
	}
}

// assembleInstructions joins the non-empty prompt sections.
func assembleInstructions(sections ...string) string {
	var parts []string
	for _, s := range sections {
		if s == "" {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n\n")
}

// completionStatus maps provider sentinel errors to HTTP status codes.
func completionStatus(err error) int {
	switch {
	case errors.Is(err, provider.ErrRateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, provider.ErrContextLength):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, provider.ErrAuthentication):
		return http.StatusBadGateway
	case errors.Is(err, provider.ErrProviderDown):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
