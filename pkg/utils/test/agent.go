// Package testutils provides an httptest stand-in for the Serenity agent API
// shared by the client, bridge and MCP tests.
package testutils

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/papercomputeco/serenity/pkg/serenity"
)

// Greeting is the content returned by every conversation the fake opens.
const Greeting = "Hi, I am **Coder**."

// Frame formats one event-stream frame.
func Frame(event, data string) string {
	return "event: " + event + "\ndata: " + data + "\n\n"
}

// FakeAgent serves the agent directory, conversation, streaming execute and
// legacy execute endpoints. Streaming responses are flushed chunk by chunk.
type FakeAgent struct {
	Server *httptest.Server

	mu       sync.Mutex
	agents   []serenity.Agent
	nextChat int
	chunks   []string
	legacy   string
	gate     chan struct{}
	messages []string
	opened   []string
	runs     [][]serenity.Param
}

func NewFakeAgent(agents ...serenity.Agent) *FakeAgent {
	a := &FakeAgent{agents: agents}
	a.Server = httptest.NewServer(http.HandlerFunc(a.serve))
	return a
}

// Client returns a serenity client pointed at the fake.
func (a *FakeAgent) Client() *serenity.Client {
	c, err := serenity.NewClient(serenity.Config{APIKey: APIKey, BaseURL: a.Server.URL})
	if err != nil {
		panic(err)
	}
	return c
}

func (a *FakeAgent) Close() {
	a.Server.Close()
}

// Respond sets the chunks written by later execute responses.
func (a *FakeAgent) Respond(chunks ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.chunks = chunks
}

// RespondLegacy sets the content of later legacy execute responses.
func (a *FakeAgent) RespondLegacy(content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.legacy = content
}

// Hold makes execute responses wait for the returned release function after
// the first chunk has been written.
func (a *FakeAgent) Hold() (release func()) {
	gate := make(chan struct{})
	a.mu.Lock()
	a.gate = gate
	a.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Messages returns the user messages received so far.
func (a *FakeAgent) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.messages...)
}

// Opened returns the agent codes conversations were opened with.
func (a *FakeAgent) Opened() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.opened...)
}

// Runs returns the input of every legacy execute call.
func (a *FakeAgent) Runs() [][]serenity.Param {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([][]serenity.Param(nil), a.runs...)
}

func (a *FakeAgent) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/api/v2/agent":
		a.mu.Lock()
		agents := a.agents
		a.mu.Unlock()
		if agents == nil {
			agents = []serenity.Agent{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": agents})

	case strings.HasSuffix(path, "/conversation"):
		a.mu.Lock()
		a.nextChat++
		chatID := "chat-" + strconv.Itoa(a.nextChat)
		a.opened = append(a.opened, agentCode(path))
		a.mu.Unlock()
		_ = json.NewEncoder(w).Encode(serenity.InitConversationResponse{ChatID: chatID, Content: Greeting})

	case strings.HasPrefix(path, "/api/agent/") && strings.HasSuffix(path, "/execute"):
		var params []serenity.Param
		_ = json.NewDecoder(r.Body).Decode(&params)

		a.mu.Lock()
		a.runs = append(a.runs, params)
		content := a.legacy
		a.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"content": content})

	case strings.HasSuffix(path, "/execute"):
		raw, _ := io.ReadAll(r.Body)
		var params []serenity.Param
		_ = json.Unmarshal(raw, &params)

		a.mu.Lock()
		for _, p := range params {
			if p.Key == "message" {
				if s, ok := p.Value.(string); ok {
					a.messages = append(a.messages, s)
				}
			}
		}
		chunks, gate := a.chunks, a.gate
		a.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for i, c := range chunks {
			_, _ = io.WriteString(w, c)
			if flusher != nil {
				flusher.Flush()
			}
			if i == 0 && gate != nil {
				select {
				case <-gate:
				case <-r.Context().Done():
					return
				}
			}
		}

	default:
		http.NotFound(w, r)
	}
}

// agentCode extracts the code from /api/v2/agent/{code}/conversation.
func agentCode(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}
