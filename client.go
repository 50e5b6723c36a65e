package freeplay

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"
)

// DefaultEnvironment selects the latest deployed template version when no
// environment is named.
const DefaultEnvironment = "latest"

// Client exposes the Freeplay observability operations: template fetching
// and completion/trace recording. It holds no per-call state and is safe to
// reuse across sequential calls; it makes no concurrency guarantees.
type Client struct {
	cfg       Config
	transport *Transport
}

// New validates cfg and constructs a Client. Validation failures are
// reported before any network activity, listing every missing setting.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var cc clientConfig
	for _, opt := range opts {
		opt(&cc)
	}

	transport := cc.transport
	if transport == nil {
		transport = NewTransport(TransportConfig{
			APIKey:     cfg.APIKey,
			HTTPClient: cc.httpClient,
			Logger:     cc.logger,
			Verbose:    cc.verbose,
		})
	}

	return &Client{cfg: cfg, transport: transport}, nil
}

// Config returns the configuration the client was built with.
func (c *Client) Config() Config {
	return c.cfg
}

// TemplateQuery identifies a prompt template either by TemplateID+VersionID
// or by Name. Exactly one of the two forms must be set. Environment, Format
// and FlavorName apply to name lookups only; Environment defaults to
// DefaultEnvironment.
type TemplateQuery struct {
	TemplateID  string
	VersionID   string
	Name        string
	Environment string
	Format      string
	FlavorName  string
}

// FetchTemplate retrieves a prompt template version. An invalid selector
// combination is reported as an error before any request is issued; every
// network or HTTP failure is returned as data in the Result.
func (c *Client) FetchTemplate(ctx context.Context, q TemplateQuery) (Result, error) {
	byID := q.TemplateID != "" && q.VersionID != ""
	byName := q.Name != ""

	switch {
	case byID && byName:
		return Result{}, ErrAmbiguousTemplateSelector
	case byID:
		endpoint := fmt.Sprintf("%s/projects/%s/prompt-templates/id/%s/versions/%s",
			c.cfg.APIURL, c.cfg.ProjectID, url.PathEscape(q.TemplateID), url.PathEscape(q.VersionID))
		return c.transport.Get(ctx, endpoint), nil
	case byName:
		environment := q.Environment
		if environment == "" {
			environment = DefaultEnvironment
		}
		params := url.Values{}
		params.Set("environment", environment)
		if q.Format != "" {
			params.Set("format", q.Format)
		}
		if q.FlavorName != "" {
			params.Set("flavor_name", q.FlavorName)
		}
		// PathEscape keeps spaces as %20; the name route rejects "+".
		endpoint := fmt.Sprintf("%s/projects/%s/prompt-templates/name/%s?%s",
			c.cfg.APIURL, c.cfg.ProjectID, url.PathEscape(q.Name), params.Encode())
		return c.transport.Get(ctx, endpoint), nil
	default:
		return Result{}, ErrNoTemplateSelector
	}
}

// TemplateList is the decoded body of a ListTemplates response.
type TemplateList struct {
	Data       []PromptTemplate `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// Pagination describes the page window of a list response.
type Pagination struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
}

// ListTemplates retrieves one page of the project's prompt templates.
// Non-positive page or pageSize values are left to the service's defaults.
func (c *Client) ListTemplates(ctx context.Context, page, pageSize int) Result {
	params := url.Values{}
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		params.Set("page_size", strconv.Itoa(pageSize))
	}

	endpoint := fmt.Sprintf("%s/projects/%s/prompt-templates", c.cfg.APIURL, c.cfg.ProjectID)
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	return c.transport.Get(ctx, endpoint)
}

// Usage records token accounting for one model call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// CallInfo describes one model invocation, simulated or real. Times are
// unix seconds with a fractional part.
type CallInfo struct {
	Model     string  `json:"model"`
	Provider  string  `json:"provider"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Usage     Usage   `json:"usage"`
}

// NewCallInfo converts wall-clock start and end times into a CallInfo.
func NewCallInfo(model, provider string, start, end time.Time, usage Usage) *CallInfo {
	return &CallInfo{
		Model:     model,
		Provider:  provider,
		StartTime: unixSeconds(start),
		EndTime:   unixSeconds(end),
		Usage:     usage,
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// CompletionOptions carries the optional parts of a completion record. Zero
// values mean "omit from the payload" rather than "send empty".
type CompletionOptions struct {
	CallInfo        *CallInfo
	TraceID         string
	PromptVersionID string
	Environment     string
	Metadata        map[string]any
}

type promptInfo struct {
	PromptTemplateVersionID string `json:"prompt_template_version_id"`
	Environment             string `json:"environment"`
}

type traceInfo struct {
	TraceID string `json:"trace_id"`
}

type sessionInfo struct {
	CustomMetadata map[string]any `json:"custom_metadata"`
}

type completionRecord struct {
	Messages    []Message      `json:"messages"`
	Inputs      map[string]any `json:"inputs"`
	PromptInfo  *promptInfo    `json:"prompt_info,omitempty"`
	TraceInfo   *traceInfo     `json:"trace_info,omitempty"`
	CallInfo    *CallInfo      `json:"call_info,omitempty"`
	SessionInfo *sessionInfo   `json:"session_info,omitempty"`
}

type traceRecord struct {
	Input          string         `json:"input"`
	Output         string         `json:"output"`
	AgentName      string         `json:"agent_name,omitempty"`
	CustomMetadata map[string]any `json:"custom_metadata,omitempty"`
}

// RecordCompletion reports one model interaction under sessionID. Optional
// payload parts follow the service's presence rules: prompt_info is attached
// when an explicit PromptVersionID or the configured default exists, with
// the explicit value winning; trace_info and call_info only when supplied;
// session_info only for non-empty metadata. Omitted parts are absent from
// the JSON, never null or empty.
func (c *Client) RecordCompletion(ctx context.Context, sessionID string, messages []Message, inputs map[string]any, opts CompletionOptions) Result {
	record := completionRecord{Messages: messages, Inputs: inputs}
	if record.Messages == nil {
		record.Messages = []Message{}
	}
	if record.Inputs == nil {
		record.Inputs = map[string]any{}
	}

	versionID := opts.PromptVersionID
	if versionID == "" {
		versionID = c.cfg.PromptVersionID
	}
	if versionID != "" {
		environment := opts.Environment
		if environment == "" {
			environment = DefaultEnvironment
		}
		record.PromptInfo = &promptInfo{
			PromptTemplateVersionID: versionID,
			Environment:             environment,
		}
	}

	if opts.TraceID != "" {
		record.TraceInfo = &traceInfo{TraceID: opts.TraceID}
	}
	record.CallInfo = opts.CallInfo
	if len(opts.Metadata) > 0 {
		record.SessionInfo = &sessionInfo{CustomMetadata: opts.Metadata}
	}

	endpoint := fmt.Sprintf("%s/projects/%s/sessions/%s/completions",
		c.cfg.APIURL, c.cfg.ProjectID, url.PathEscape(sessionID))
	return c.transport.Post(ctx, endpoint, record)
}

// TraceOptions carries the optional parts of a trace record.
type TraceOptions struct {
	AgentName string
	Metadata  map[string]any
}

// RecordTrace reports a higher-level grouping of interactions keyed by
// (sessionID, traceID). AgentName and Metadata are omitted from the payload
// when unset.
func (c *Client) RecordTrace(ctx context.Context, sessionID, traceID, input, output string, opts TraceOptions) Result {
	record := traceRecord{
		Input:     input,
		Output:    output,
		AgentName: opts.AgentName,
	}
	if len(opts.Metadata) > 0 {
		record.CustomMetadata = opts.Metadata
	}

	endpoint := fmt.Sprintf("%s/projects/%s/sessions/%s/traces/id/%s",
		c.cfg.APIURL, c.cfg.ProjectID, url.PathEscape(sessionID), url.PathEscape(traceID))
	return c.transport.Post(ctx, endpoint, record)
}

// EstimateTokens approximates the token count of text as ceil(len/4). It is
// a crude heuristic, not a tokenizer; callers must not treat it as exact.
func EstimateTokens(text string) int {
	return int(math.Ceil(float64(len(text)) / 4.0))
}
