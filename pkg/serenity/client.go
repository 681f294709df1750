package serenity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/serenity/pkg/logger"
)

const (
	// DefaultBaseURL is the hosted Serenity API.
	DefaultBaseURL = "https://api.serenitystar.ai"

	// APIKeyHeader authenticates every request.
	APIKeyHeader = "X-API-KEY"

	// defaultTimeout bounds a whole request, streamed body included.
	// Agent turns can be slow.
	defaultTimeout = 5 * time.Minute

	// legacyTimeout bounds the non-streaming execute endpoint.
	legacyTimeout = 30 * time.Second
)

// Config is everything a Client needs. It is passed by value so tests and
// multiple sessions can build isolated clients.
type Config struct {
	// APIKey is sent as X-API-KEY on every request. Required.
	APIKey string

	// BaseURL is the API root, e.g. https://api.serenitystar.ai. Required.
	BaseURL string

	// HTTPClient overrides the default client with a five minute timeout.
	HTTPClient *http.Client

	// Logger defaults to a no-op logger.
	Logger *slog.Logger
}

// Client talks to the agent API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient validates c and returns a Client.
func NewClient(c Config) (*Client, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrMissingConfig)
	}
	if c.BaseURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrMissingConfig)
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", c.BaseURL, err)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Client{
		apiKey:  c.APIKey,
		baseURL: strings.TrimRight(c.BaseURL, "/"),
		http:    httpClient,
		logger:  log,
	}, nil
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// InitConversation creates a conversation with agentID and returns its chat
// id and greeting. req may be nil.
func (c *Client) InitConversation(ctx context.Context, agentID string, req *InitConversationRequest) (*InitConversationResponse, error) {
	path := "/api/v2/agent/" + url.PathEscape(agentID) + "/conversation"

	var body any
	if req != nil {
		body = req
	}

	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := CheckResponse(resp); err != nil {
		return nil, err
	}

	out := &InitConversationResponse{}
	if err := decodeBody(resp.Body, out); err != nil {
		return nil, err
	}

	c.logger.Debug("conversation initialized", "agent", agentID, "chat_id", out.ChatID)
	return out, nil
}

// Execute sends one message to a conversation and returns the raw response,
// normally an event stream. Non-2xx responses are returned as well; check
// them with CheckResponse. The caller must close the body.
func (c *Client) Execute(ctx context.Context, agentID string, req ExecuteRequest) (*http.Response, error) {
	path := "/api/v2/agent/" + url.PathEscape(agentID) + "/execute"

	c.logger.Debug("executing agent",
		"agent", agentID,
		"chat_id", req.ChatID,
		"message_len", len(req.Message),
	)

	return c.do(ctx, http.MethodPost, path, req.Params())
}

// ListAgentsOptions pages through the agent directory.
type ListAgentsOptions struct {
	Page     int
	PageSize int
	Type     int
}

// DefaultListAgentsOptions is the single page the setup flows read.
var DefaultListAgentsOptions = ListAgentsOptions{Page: 1, PageSize: 50, Type: 4}

// ListAgents returns one page of the agent directory.
func (c *Client) ListAgents(ctx context.Context, opts ListAgentsOptions) ([]Agent, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(opts.Page))
	q.Set("pageSize", strconv.Itoa(opts.PageSize))
	q.Set("type", strconv.Itoa(opts.Type))

	resp, err := c.do(ctx, http.MethodGet, "/api/v2/agent?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("retrieving agents: %w", err)
	}

	var page agentPage
	if err := decodeBody(resp.Body, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Run calls the non-streaming execute endpoint of the agent with the given
// code. The response content is itself a JSON document, decoded into out.
// When out is a *string the content is stored verbatim.
func (c *Client) Run(ctx context.Context, code string, input []Param, out any) error {
	ctx, cancel := context.WithTimeout(ctx, legacyTimeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodPost, "/api/agent/"+url.PathEscape(code)+"/execute", input)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := CheckResponse(resp); err != nil {
		return err
	}

	var res legacyExecuteResponse
	if err := decodeBody(resp.Body, &res); err != nil {
		return err
	}

	if s, ok := out.(*string); ok {
		*s = res.Content
		return nil
	}
	if err := json.Unmarshal([]byte(res.Content), out); err != nil {
		return &ProtocolError{Data: res.Content, Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(APIKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + strings.SplitN(path, "?", 2)[0], Err: err}
	}
	return resp, nil
}

func decodeBody(r io.Reader, v any) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return &TransportError{Op: "reading response", Err: err}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &ProtocolError{Data: string(raw), Err: err}
	}
	return nil
}
