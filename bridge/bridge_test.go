package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/serenity/pkg/assembler"
	"github.com/papercomputeco/serenity/pkg/chat"
	"github.com/papercomputeco/serenity/pkg/config"
	"github.com/papercomputeco/serenity/pkg/history"
	"github.com/papercomputeco/serenity/pkg/serenity"
	"github.com/papercomputeco/serenity/pkg/sse"
	"github.com/papercomputeco/serenity/pkg/storage"
	"github.com/papercomputeco/serenity/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/serenity/pkg/utils/test"
)

var _ = Describe("Bridge server", func() {
	var (
		ctx     context.Context
		agent   *testutils.FakeAgent
		session *chat.Session
		driver  *inmemory.Driver
		cfger   *config.Configer
		explain string
		server  *Server
	)

	do := func(method, path string, body any) (*http.Response, []byte) {
		var r io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			r = bytes.NewReader(raw)
		}
		req := httptest.NewRequest(method, path, r)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := server.app.Test(req, 5000)
		Expect(err).NotTo(HaveOccurred())
		raw, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		return resp, raw
	}

	chatState := func(raw []byte) ChatResponse {
		var out ChatResponse
		Expect(json.Unmarshal(raw, &out)).To(Succeed())
		return out
	}

	idle := func() bool { return !server.Busy() }

	BeforeEach(func() {
		ctx = context.Background()
		agent = testutils.NewFakeAgent(
			serenity.Agent{Code: "coder", Name: "Coder"},
			serenity.Agent{Code: "explainer", Name: "Explainer"},
		)
		agent.Respond(
			testutils.Frame("start", `{}`),
			testutils.Frame("content", `{"text":"**Hello**"}`),
			testutils.Frame("stop", `{}`),
		)

		var err error
		session, err = chat.New(chat.Config{
			API:       agent.Client(),
			AgentID:   "coder",
			Converter: assembler.NewHTMLConverter(),
		})
		Expect(err).NotTo(HaveOccurred())

		driver = inmemory.NewDriver()
		rec := history.NewRecorder(driver)
		session.Subscribe(func(n chat.Notification) {
			_ = rec.Record(ctx, n)
		})

		cfger, err = config.NewConfiger(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		explain = ""
		server, err = NewServer(Config{
			Session:      session,
			Agents:       agent.Client(),
			History:      driver,
			Converter:    assembler.NewHTMLConverter(),
			Configer:     cfger,
			ExplainAgent: func() string { return explain },
			MCP: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, "mcp")
			}),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = server.Shutdown()
		agent.Close()
	})

	Describe("NewServer", func() {
		It("requires a session", func() {
			_, err := NewServer(Config{Agents: agent.Client()})
			Expect(err).To(MatchError(ContainSubstring("session is required")))
		})

		It("requires an agent lister", func() {
			_, err := NewServer(Config{Session: session})
			Expect(err).To(MatchError(ContainSubstring("agent lister is required")))
		})
	})

	It("answers ping", func() {
		resp, body := do(http.MethodGet, "/ping", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	It("mounts the MCP handler", func() {
		resp, body := do(http.MethodPost, "/mcp", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(Equal("mcp"))
	})

	It("lists agents with the active one", func() {
		resp, body := do(http.MethodGet, "/v1/agents", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var out struct {
			Active string           `json:"active"`
			Agents []serenity.Agent `json:"agents"`
		}
		Expect(json.Unmarshal(body, &out)).To(Succeed())
		Expect(out.Active).To(Equal("coder"))
		Expect(out.Agents).To(HaveLen(2))
	})

	Describe("messages", func() {
		It("refuses messages without a conversation", func() {
			resp, _ := do(http.MethodPost, "/v1/chat/messages", MessageRequest{Message: "hi"})
			Expect(resp.StatusCode).To(Equal(http.StatusPreconditionFailed))
			Expect(agent.Messages()).To(BeEmpty())
		})

		It("rejects empty messages", func() {
			resp, _ := do(http.MethodPost, "/v1/chat/messages", MessageRequest{Message: " "})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("accepts a message and streams it in the background", func() {
			resp, body := do(http.MethodPost, "/v1/chat/new", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(chatState(body).ChatID).To(Equal("chat-1"))

			resp, _ = do(http.MethodPost, "/v1/chat/messages", MessageRequest{Message: "hi"})
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			Eventually(idle).Should(BeTrue())
			Expect(agent.Messages()).To(Equal([]string{"hi"}))

			resp, body = do(http.MethodGet, "/v1/chat", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			out := chatState(body)
			Expect(out.State).To(Equal("idle"))
			Expect(out.Entries).To(HaveLen(3))
			Expect(out.Entries[0].Role).To(Equal(storage.RoleBot))
			Expect(out.Entries[1].Role).To(Equal(storage.RoleUser))
			Expect(out.Entries[1].Message).To(Equal("hi"))
			Expect(out.Entries[2].Message).To(Equal("**Hello**"))
			Expect(out.Entries[2].Rendered).To(ContainSubstring("<strong>Hello</strong>"))
		})

		It("answers 409 while a turn streams", func() {
			do(http.MethodPost, "/v1/chat/new", nil)
			release := agent.Hold()
			defer release()

			resp, _ := do(http.MethodPost, "/v1/chat/messages", MessageRequest{Message: "first"})
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
			Eventually(session.State).Should(Equal(chat.StateStreaming))

			resp, _ = do(http.MethodPost, "/v1/chat/messages", MessageRequest{Message: "second"})
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))

			resp, _ = do(http.MethodPost, "/v1/chat/new", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))

			release()
			Eventually(idle).Should(BeTrue())
			Expect(agent.Messages()).To(Equal([]string{"first"}))
		})
	})

	Describe("chat management", func() {
		It("reports an uninitialized session", func() {
			resp, body := do(http.MethodGet, "/v1/chat", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			out := chatState(body)
			Expect(out.ChatID).To(BeEmpty())
			Expect(out.Agent).To(Equal("coder"))
			Expect(out.State).To(Equal("uninitialized"))
		})

		It("adopts a chat id", func() {
			resp, _ := do(http.MethodPut, "/v1/chat/id", ChatIDRequest{ChatID: "restored"})
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(session.SessionID()).To(Equal("restored"))
			Expect(session.State()).To(Equal(chat.StateIdle))
		})

		It("requires a chat id", func() {
			resp, _ := do(http.MethodPut, "/v1/chat/id", ChatIDRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("switches agents and saves the choice", func() {
			resp, body := do(http.MethodPost, "/v1/chat/agent", AgentRequest{Agent: "explainer"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			out := chatState(body)
			Expect(out.Agent).To(Equal("explainer"))
			Expect(out.ChatID).NotTo(BeEmpty())
			Expect(agent.Opened()).To(Equal([]string{"explainer"}))

			cfg, err := cfger.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Agents.Active).To(Equal("explainer"))
		})

		It("does not reopen the conversation for the current agent", func() {
			Expect(server.FollowAgent(ctx, "coder")).To(Succeed())
			Expect(agent.Opened()).To(BeEmpty())
		})
	})

	Describe("explain", func() {
		It("sends the code to the explain agent", func() {
			explain = "explainer"
			resp, _ := do(http.MethodPost, "/v1/explain", ExplainRequest{Code: "x := 1"})
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			Eventually(idle).Should(BeTrue())
			Expect(session.AgentID()).To(Equal("explainer"))
			Expect(agent.Messages()).To(Equal([]string{"Explain the following code:\n\nx := 1"}))
		})

		It("opens a conversation with the current agent when none is configured", func() {
			resp, _ := do(http.MethodPost, "/v1/explain", ExplainRequest{Code: "y := 2"})
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			Eventually(idle).Should(BeTrue())
			Expect(agent.Opened()).To(Equal([]string{"coder"}))
			Expect(agent.Messages()).To(HaveLen(1))
		})

		It("requires code", func() {
			resp, _ := do(http.MethodPost, "/v1/explain", ExplainRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})
})

var _ = Describe("writeEvents", func() {
	It("writes the state frame and one frame per notification", func() {
		events := make(chan chat.Notification, 2)
		events <- chat.Notification{Kind: chat.TurnStarted, SessionID: "chat-1"}
		events <- chat.Notification{Kind: chat.TurnUpdate, SessionID: "chat-1", Rendered: "<p>Hi</p>", IsComplete: true}
		close(events)

		var buf bytes.Buffer
		err := writeEvents(context.Background(), &buf, ChatResponse{Agent: "coder", ChatID: "chat-1", State: "idle"}, events, time.Hour)
		Expect(err).NotTo(HaveOccurred())

		frames := sse.NewDecoder(nil).Feed(buf.Bytes())

		Expect(frames).To(HaveLen(3))
		Expect(frames[0].Event).To(Equal("state"))
		Expect(frames[1].Event).To(Equal("turn-started"))
		Expect(frames[2].Event).To(Equal("turn-update"))

		var view NotificationView
		Expect(json.Unmarshal([]byte(frames[2].Data), &view)).To(Succeed())
		Expect(view.Rendered).To(Equal("<p>Hi</p>"))
		Expect(view.IsComplete).To(BeTrue())
		Expect(view.ChatID).To(Equal("chat-1"))
	})

	It("stops when the context ends", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var buf bytes.Buffer
		err := writeEvents(ctx, &buf, ChatResponse{}, make(chan chat.Notification), time.Hour)
		Expect(err).To(MatchError(context.Canceled))
		Expect(buf.String()).To(HavePrefix("event: state\n"))
	})

	It("sends keep-alive comments on idle streams", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		var buf bytes.Buffer
		_ = writeEvents(ctx, &buf, ChatResponse{}, make(chan chat.Notification), 10*time.Millisecond)
		Expect(buf.String()).To(ContainSubstring(": keep-alive"))
	})
})
