package serenity_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/serenity/pkg/serenity"
)

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		client   *serenity.Client
		ctx      context.Context
		handler  http.HandlerFunc
		lastReq  *http.Request
		lastBody []byte
	)

	BeforeEach(func() {
		ctx = context.Background()
		handler = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastReq = r
			lastBody, _ = io.ReadAll(r.Body)
			handler(w, r)
		}))

		var err error
		client, err = serenity.NewClient(serenity.Config{APIKey: "sk-test", BaseURL: server.URL + "/"})
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("NewClient", func() {
		It("requires an api key", func() {
			_, err := serenity.NewClient(serenity.Config{BaseURL: "https://example.test"})
			Expect(err).To(MatchError(serenity.ErrMissingConfig))
		})

		It("requires a base url", func() {
			_, err := serenity.NewClient(serenity.Config{APIKey: "k"})
			Expect(err).To(MatchError(serenity.ErrMissingConfig))
		})

		It("trims a trailing slash from the base url", func() {
			Expect(client.BaseURL()).To(Equal(server.URL))
		})
	})

	Describe("InitConversation", func() {
		It("posts to the conversation endpoint with the api key", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"chatId":"chat-1","content":"Hi! How can I help?"}`))
			}

			res, err := client.InitConversation(ctx, "coder", &serenity.InitConversationRequest{UserIdentifier: "u1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ChatID).To(Equal("chat-1"))
			Expect(res.Content).To(Equal("Hi! How can I help?"))

			Expect(lastReq.Method).To(Equal(http.MethodPost))
			Expect(lastReq.URL.Path).To(Equal("/api/v2/agent/coder/conversation"))
			Expect(lastReq.Header.Get(serenity.APIKeyHeader)).To(Equal("sk-test"))
			Expect(lastReq.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(string(lastBody)).To(MatchJSON(`{"userIdentifier":"u1"}`))
		})

		It("sends no body without a seed", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"chatId":"c","content":""}`))
			}

			_, err := client.InitConversation(ctx, "coder", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(lastBody).To(BeEmpty())
		})

		It("returns a RemoteError with the status text", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "agent not found", http.StatusNotFound)
			}

			_, err := client.InitConversation(ctx, "missing", nil)
			var remote *serenity.RemoteError
			Expect(errors.As(err, &remote)).To(BeTrue())
			Expect(remote.StatusCode).To(Equal(http.StatusNotFound))
			Expect(remote.Status).To(Equal("404 Not Found"))
			Expect(remote.Body).To(Equal("agent not found"))
			Expect(err.Error()).To(ContainSubstring("404 Not Found"))
		})

		It("returns a ProtocolError for an undecodable body", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`not json`))
			}

			_, err := client.InitConversation(ctx, "coder", nil)
			var protocol *serenity.ProtocolError
			Expect(errors.As(err, &protocol)).To(BeTrue())
		})

		It("returns a TransportError when the server is unreachable", func() {
			server.Close()

			_, err := client.InitConversation(ctx, "coder", nil)
			var transport *serenity.TransportError
			Expect(errors.As(err, &transport)).To(BeTrue())
			Expect(transport.Op).To(Equal("POST /api/v2/agent/coder/conversation"))
		})
	})

	Describe("Execute", func() {
		It("posts the key/value body and returns the raw response", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				_, _ = w.Write([]byte("event: start\ndata: {}\n\n"))
			}

			resp, err := client.Execute(ctx, "coder", serenity.ExecuteRequest{ChatID: "chat-1", Message: "hello"})
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(lastReq.URL.Path).To(Equal("/api/v2/agent/coder/execute"))
			Expect(string(lastBody)).To(MatchJSON(`[
				{"Key":"chatId","Value":"chat-1"},
				{"Key":"message","Value":"hello"},
				{"Key":"stream","Value":"true"}
			]`))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))
		})

		It("appends attachment ids when present", func() {
			resp, err := client.Execute(ctx, "coder", serenity.ExecuteRequest{
				ChatID:               "chat-1",
				Message:              "summarize",
				VolatileKnowledgeIDs: []string{"vk-1"},
				FileIDs:              []string{"f-1", "f-2"},
			})
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			var params []serenity.Param
			Expect(json.Unmarshal(lastBody, &params)).To(Succeed())
			Expect(params).To(HaveLen(5))
			Expect(params[3].Key).To(Equal("volatileKnowledgeIds"))
			Expect(params[4].Value).To(ConsistOf("f-1", "f-2"))
		})

		It("leaves non-2xx responses to CheckResponse", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid key"}`))
			}

			resp, err := client.Execute(ctx, "coder", serenity.ExecuteRequest{ChatID: "c", Message: "m"})
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			err = serenity.CheckResponse(resp)
			var remote *serenity.RemoteError
			Expect(errors.As(err, &remote)).To(BeTrue())
			Expect(remote.Body).To(Equal(`{"error":"invalid key"}`))
		})
	})

	Describe("ListAgents", func() {
		It("reads one page of the directory", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"items":[
					{"id":"1","code":"coder","name":"Coder","agentType":4,"extra":true},
					{"id":"2","code":"writer","name":"Writer","agentType":4}
				]}`))
			}

			agents, err := client.ListAgents(ctx, serenity.DefaultListAgentsOptions)
			Expect(err).NotTo(HaveOccurred())
			Expect(agents).To(Equal([]serenity.Agent{
				{ID: "1", Code: "coder", Name: "Coder", AgentType: 4},
				{ID: "2", Code: "writer", Name: "Writer", AgentType: 4},
			}))

			Expect(lastReq.Method).To(Equal(http.MethodGet))
			Expect(lastReq.URL.Path).To(Equal("/api/v2/agent"))
			Expect(lastReq.URL.Query().Get("page")).To(Equal("1"))
			Expect(lastReq.URL.Query().Get("pageSize")).To(Equal("50"))
			Expect(lastReq.URL.Query().Get("type")).To(Equal("4"))
			Expect(lastReq.Header.Get(serenity.APIKeyHeader)).To(Equal("sk-test"))
		})

		It("wraps remote failures", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}

			_, err := client.ListAgents(ctx, serenity.DefaultListAgentsOptions)
			Expect(err).To(MatchError(ContainSubstring("retrieving agents")))
		})
	})

	Describe("Run", func() {
		It("decodes the JSON document carried in content", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"content":"{\"title\":\"Fix bug\",\"score\":3}"}`))
			}

			var out struct {
				Title string `json:"title"`
				Score int    `json:"score"`
			}
			Expect(client.Run(ctx, "summarizer", []serenity.Param{{Key: "text", Value: "diff"}}, &out)).To(Succeed())
			Expect(out.Title).To(Equal("Fix bug"))
			Expect(out.Score).To(Equal(3))
			Expect(lastReq.URL.Path).To(Equal("/api/agent/summarizer/execute"))
			Expect(string(lastBody)).To(MatchJSON(`[{"Key":"text","Value":"diff"}]`))
		})

		It("stores plain content into a string", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"content":"just text"}`))
			}

			var out string
			Expect(client.Run(ctx, "echo", nil, &out)).To(Succeed())
			Expect(out).To(Equal("just text"))
		})

		It("includes status and body on failure", func() {
			handler = func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "bad input", http.StatusBadRequest)
			}

			var out string
			err := client.Run(ctx, "echo", nil, &out)
			Expect(err).To(MatchError(ContainSubstring("400 Bad Request | bad input")))
		})
	})
})

var _ = Describe("Payload decoding", func() {
	It("decodes content deltas", func() {
		p, err := serenity.DecodeContent(`{"text":"Hel"}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Text).To(Equal("Hel"))
	})

	It("decodes stop results", func() {
		p, err := serenity.DecodeStop(`{"result":{"completion_usage":{"completion_tokens":3,"prompt_tokens":5,"total_tokens":8},"time_to_first_token":120,"executor_task_logs":[{"description":"search","duration":40}],"action_results":{"web":{"content":"ok"}},"meta_analysis":{"ethics":{"score":1}}}}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Result.CompletionUsage.TotalTokens).To(Equal(8))
		Expect(*p.Result.TimeToFirstToken).To(BeNumerically("==", 120))
		Expect(p.Result.ExecutorTaskLogs).To(HaveLen(1))
		Expect(p.Result.ActionResults["web"].Content).To(Equal("ok"))
		Expect(p.Result.MetaAnalysis).To(HaveKey("ethics"))
	})

	It("returns a ProtocolError naming the frame", func() {
		_, err := serenity.DecodeContent(`{"text":`)
		var protocol *serenity.ProtocolError
		Expect(errors.As(err, &protocol)).To(BeTrue())
		Expect(protocol.Event).To(Equal("content"))
		Expect(err.Error()).To(ContainSubstring(`malformed "content" frame`))
	})
})

var _ = Describe("Result", func() {
	It("merges set fields over existing ones", func() {
		ttft := 10.0
		base := &serenity.Result{TimeToFirstToken: &ttft}
		merged := base.Merge(&serenity.Result{CompletionUsage: &serenity.CompletionUsage{TotalTokens: 4}})

		Expect(*merged.TimeToFirstToken).To(Equal(10.0))
		Expect(merged.CompletionUsage.TotalTokens).To(Equal(4))
	})

	It("tolerates nil on either side", func() {
		var r *serenity.Result
		Expect(r.Merge(nil)).To(BeNil())
		Expect(r.Merge(&serenity.Result{})).NotTo(BeNil())
	})
})
