// Package proxy drives a single upstream LLM call per invocation: resolve the
// agent configuration, pick the adapter for the upstream API family, issue
// one HTTP request, and deliver canonical events (streaming) or a single
// extracted result (blocking). Retry policy belongs to callers; this layer
// never retries.
package proxy

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/tutorgate/tutorgate/internal/config"
	"github.com/tutorgate/tutorgate/internal/registry"
	"github.com/tutorgate/tutorgate/internal/upstream"
)

const (
	defaultConnectTimeout = 30 * time.Second
	defaultCallTimeout    = 240 * time.Second
	defaultIdleTimeout    = 240 * time.Second

	// Cap on upstream error bodies kept for diagnostics.
	errorBodyLimit = 500
)

// Sink receives canonical events in arrival order. Implementations must not
// be shared between concurrent streams.
type Sink func(upstream.Event)

// CallResult is the outcome of a blocking (non-streaming) upstream call.
type CallResult struct {
	Text       string
	RawBody    []byte
	StatusCode int
}

type Orchestrator struct {
	resolver    *registry.Resolver
	logger      *slog.Logger
	streamHTTP  *http.Client
	callHTTP    *http.Client
	idleTimeout time.Duration
}

type Option func(*Orchestrator)

// WithIdleTimeout overrides the inactivity window after which a streaming
// call is finalized with whatever content has been accumulated.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.idleTimeout = d }
}

// WithHTTPClients overrides both HTTP clients; used by tests.
func WithHTTPClients(stream, call *http.Client) Option {
	return func(o *Orchestrator) {
		o.streamHTTP = stream
		o.callHTTP = call
	}
}

func New(resolver *registry.Resolver, logger *slog.Logger, opts ...Option) *Orchestrator {
	transport := &http.Transport{
		ResponseHeaderTimeout: defaultConnectTimeout,
	}

	o := &Orchestrator{
		resolver: resolver,
		logger:   logger,
		// Streaming connections stay open for the life of the generation;
		// only the connect phase is bounded here.
		streamHTTP:  &http.Client{Transport: transport},
		callHTTP:    &http.Client{Transport: transport, Timeout: defaultCallTimeout},
		idleTimeout: defaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StreamCall resolves the agent function, opens one upstream streaming
// connection and forwards every canonical event to sink in arrival order.
// All failure modes terminate the sink with Error then Done; nothing is ever
// thrown past the sink boundary. Cancelling ctx (downstream disconnect)
// aborts the upstream request promptly.
func (o *Orchestrator) StreamCall(ctx context.Context, agentKey, functionName string, req *upstream.Request, sink Sink) {
	emit := newGuardedSink(sink)
	defer emit.finish()

	ep, err := o.resolver.Resolve(agentKey, functionName)
	if err != nil {
		o.logger.Error("Agent resolution failed", "agent", agentKey, "function", functionName, "error", err)
		emit.send(upstream.ErrorEvent(err.Error(), nil))
		return
	}

	adapter := upstream.ForEndpoint(ep, o.logger)
	req = prepareRequest(req, ep, true)

	body, err := adapter.BuildRequestBody(req)
	if err != nil {
		emit.send(upstream.ErrorEvent("failed to build upstream request", nil))
		return
	}

	// The idle watchdog cancels the upstream call when no bytes arrive
	// within the inactivity window.
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchdog := time.AfterFunc(o.idleTimeout, cancel)
	defer watchdog.Stop()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, adapter.URL(ep), bytes.NewReader(body))
	if err != nil {
		emit.send(upstream.ErrorEvent(fmt.Sprintf("failed to create upstream request: %v", err), nil))
		return
	}
	setUpstreamHeaders(httpReq, ep.APIKey)

	o.logger.Info("Opening upstream stream",
		"agent", agentKey,
		"function", functionName,
		"kind", adapter.Kind().String(),
		"model", req.Model,
	)

	resp, err := o.streamHTTP.Do(httpReq)
	if err != nil {
		emit.send(upstream.ErrorEvent(fmt.Sprintf("upstream connection failed: %v", err), nil))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		o.logger.Error("Upstream HTTP error", "status", resp.StatusCode, "body", string(errBody))
		emit.send(upstream.ErrorEvent("HTTP error", map[string]any{
			"status_code": resp.StatusCode,
			"body":        string(errBody),
		}))
		return
	}

	reader, err := decompressReader(resp)
	if err != nil {
		emit.send(upstream.ErrorEvent(fmt.Sprintf("decompression error: %v", err), nil))
		return
	}
	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}

	normalizer := upstream.NewNormalizer(adapter, o.logger)
	buf := make([]byte, 4096)
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			watchdog.Reset(o.idleTimeout)
			for _, ev := range normalizer.Feed(buf[:n]) {
				emit.send(ev)
			}
			if normalizer.Done() {
				return
			}
		}
		if readErr != nil {
			if readErr != io.EOF {
				if ctx.Err() != nil {
					// Downstream went away; nothing left to deliver.
					o.logger.Info("Stream cancelled by caller", "agent", agentKey)
					return
				}
				emit.send(upstream.ErrorEvent(fmt.Sprintf("upstream read error: %v", readErr), nil))
			}
			for _, ev := range normalizer.Finish() {
				emit.send(ev)
			}
			return
		}
	}
}

// Call issues one blocking upstream request and returns the adapter-extracted
// assistant text plus the raw body for callers that need upstream metadata.
func (o *Orchestrator) Call(ctx context.Context, agentKey, functionName string, req *upstream.Request) (*CallResult, error) {
	ep, err := o.resolver.Resolve(agentKey, functionName)
	if err != nil {
		return nil, err
	}

	adapter := upstream.ForEndpoint(ep, o.logger)
	req = prepareRequest(req, ep, false)

	body, err := adapter.BuildRequestBody(req)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}

	respBody, status, err := o.post(ctx, adapter.URL(ep), ep.APIKey, body)
	if err != nil {
		return nil, err
	}

	text, ok := adapter.ExtractText(respBody)
	if !ok || text == "" {
		return nil, ErrEmptyContent
	}

	return &CallResult{Text: text, RawBody: respBody, StatusCode: status}, nil
}

// CallRaw posts an arbitrary JSON payload to the resolved endpoint and
// returns the upstream body verbatim. Used by the passthrough functions
// (websearch, youtube_summarize) whose request and response shapes belong to
// the upstream service, not this proxy.
func (o *Orchestrator) CallRaw(ctx context.Context, agentKey, functionName string, payload any) ([]byte, error) {
	ep, err := o.resolver.Resolve(agentKey, functionName)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	respBody, _, err := o.post(ctx, ep.Endpoint, ep.APIKey, body)
	return respBody, err
}

func (o *Orchestrator) post(ctx context.Context, url, apiKey string, body []byte) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create upstream request: %w", err)
	}
	setUpstreamHeaders(httpReq, apiKey)

	resp, err := o.callHTTP.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	reader, err := decompressReader(resp)
	if err != nil {
		return nil, 0, fmt.Errorf("decompression error: %w", err)
	}
	if closer, ok := reader.(io.Closer); ok {
		defer closer.Close()
	}

	respBody, err := io.ReadAll(reader)
	if err != nil {
		return nil, 0, fmt.Errorf("read upstream response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := respBody
		if len(snippet) > errorBodyLimit {
			snippet = snippet[:errorBodyLimit]
		}
		return nil, resp.StatusCode, &UpstreamHTTPError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	return respBody, resp.StatusCode, nil
}

// prepareRequest applies endpoint defaults the caller left open. It works on
// a copy so repeated calls with the same request stay identical.
func prepareRequest(req *upstream.Request, ep config.FunctionEndpoint, stream bool) *upstream.Request {
	out := *req
	out.Stream = stream
	if out.Model == "" {
		out.Model = ep.Model
	}
	return &out
}

func setUpstreamHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
}

func decompressReader(resp *http.Response) (io.Reader, error) {
	var reader io.Reader = resp.Body

	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		reader = gzipReader
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	return reader, nil
}

// guardedSink enforces the delivery invariant: exactly one Done per
// invocation and no events after it.
type guardedSink struct {
	sink     Sink
	doneSent bool
}

func newGuardedSink(sink Sink) *guardedSink {
	return &guardedSink{sink: sink}
}

func (g *guardedSink) send(ev upstream.Event) {
	if g.doneSent {
		return
	}
	if ev.Type == upstream.EventDone {
		g.doneSent = true
	}
	g.sink(ev)
}

func (g *guardedSink) finish() {
	if !g.doneSent {
		g.doneSent = true
		g.sink(upstream.DoneEvent())
	}
}
