// Package serenity is an HTTP client for the Serenity agent API.
package serenity

import "encoding/json"

// Param is one entry of the key/value list the agent API takes as input.
// Value is a string or a []string.
type Param struct {
	Key   string `json:"Key"`
	Value any    `json:"Value"`
}

// Agent is an entry of the agent directory.
type Agent struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	AgentType int    `json:"agentType"`
}

// InitConversationRequest seeds a new conversation. Both fields are optional.
type InitConversationRequest struct {
	InputParameters []Param `json:"inputParameters,omitempty"`
	UserIdentifier  string  `json:"userIdentifier,omitempty"`
}

// InitConversationResponse carries the new chat id and the agent's greeting.
type InitConversationResponse struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content"`
}

// ExecuteRequest is one user message sent to a conversation.
type ExecuteRequest struct {
	ChatID               string
	Message              string
	VolatileKnowledgeIDs []string
	FileIDs              []string
}

// Params renders the request as the body of the execute endpoint.
func (r ExecuteRequest) Params() []Param {
	params := []Param{
		{Key: "chatId", Value: r.ChatID},
		{Key: "message", Value: r.Message},
		{Key: "stream", Value: "true"},
	}
	if len(r.VolatileKnowledgeIDs) > 0 {
		params = append(params, Param{Key: "volatileKnowledgeIds", Value: r.VolatileKnowledgeIDs})
	}
	if len(r.FileIDs) > 0 {
		params = append(params, Param{Key: "fileIds", Value: r.FileIDs})
	}
	return params
}

// StartPayload is the data of a "start" frame.
type StartPayload struct {
	StartTimeUTC string `json:"start_time_utc"`
}

// ContentPayload is the data of a "content" frame: one text delta.
type ContentPayload struct {
	Text string `json:"text"`
}

// StopPayload is the data of a "stop" frame.
type StopPayload struct {
	Result *Result `json:"result"`
}

// ErrorPayload is the data of an "error" frame.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Result holds the terminal fields of a completed turn. All are optional.
type Result struct {
	MetaAnalysis     map[string]any          `json:"meta_analysis,omitempty"`
	CompletionUsage  *CompletionUsage        `json:"completion_usage,omitempty"`
	TimeToFirstToken *float64                `json:"time_to_first_token,omitempty"`
	ExecutorTaskLogs []TaskLog               `json:"executor_task_logs,omitempty"`
	ActionResults    map[string]ActionResult `json:"action_results,omitempty"`
}

// CompletionUsage counts the tokens spent on a turn.
type CompletionUsage struct {
	CompletionTokens int `json:"completion_tokens"`
	PromptTokens     int `json:"prompt_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TaskLog is one executor step with its duration.
type TaskLog struct {
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
}

// ActionResult is the output of a plugin executed during the turn.
type ActionResult struct {
	Content      string          `json:"content"`
	FinishReason string          `json:"finish_reason,omitempty"`
	Usage        json.RawMessage `json:"usage,omitempty"`
}

// Merge returns a copy of r with every field set in other taking precedence.
// Either side may be nil.
func (r *Result) Merge(other *Result) *Result {
	if r == nil && other == nil {
		return nil
	}

	merged := &Result{}
	if r != nil {
		*merged = *r
	}
	if other == nil {
		return merged
	}

	if other.MetaAnalysis != nil {
		merged.MetaAnalysis = other.MetaAnalysis
	}
	if other.CompletionUsage != nil {
		merged.CompletionUsage = other.CompletionUsage
	}
	if other.TimeToFirstToken != nil {
		merged.TimeToFirstToken = other.TimeToFirstToken
	}
	if other.ExecutorTaskLogs != nil {
		merged.ExecutorTaskLogs = other.ExecutorTaskLogs
	}
	if other.ActionResults != nil {
		merged.ActionResults = other.ActionResults
	}
	return merged
}

// legacyExecuteResponse is the body of the non-streaming execute endpoint.
type legacyExecuteResponse struct {
	Content string `json:"content"`
}

type agentPage struct {
	Items []Agent `json:"items"`
}
