package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/torosent/flexconnect/internal/tracing"
)

// ErrMalformedBody is returned when a response announced JSON but did not carry valid JSON.
var ErrMalformedBody = errors.New("malformed JSON response body")

// Recorder receives the outcome of every exchange. status is 0 when no
// response was received.
type Recorder interface {
	RecordRequest(latency time.Duration, status int, err error)
}

// RequestOptions are the optional parts of a request.
type RequestOptions struct {
	// SecurityToken is a previously issued X-CSRF-Token.
	SecurityToken string
	// Body is sent when non-nil; otherwise the request body is empty.
	Body         []byte
	ContentType  string
	ResponseType ResponseType
}

// Authorizer attaches credentials to an outgoing request.
type Authorizer interface {
	InjectHeader(ctx context.Context, req *http.Request) error
}

// Sender executes single HTTP exchanges with the CSRF handshake.
// A Sender holds no per-request state and is safe for concurrent use.
type Sender struct {
	client    *http.Client
	tracer    trace.Tracer
	propagate bool
	logger    *slog.Logger
	recorder  Recorder
	auth      Authorizer
	limiter   *rate.Limiter
}

// Option configures a Sender.
type Option func(*Sender)

// WithTracing records a client span per request and, when the provider asks
// for it, injects W3C trace headers.
func WithTracing(p *tracing.Provider) Option {
	return WithTracer(p.Tracer(), p.ShouldPropagate())
}

// WithTracer uses tracer for request spans.
func WithTracer(tracer trace.Tracer, propagate bool) Option {
	return func(s *Sender) {
		if tracer != nil {
			s.tracer = tracer
		}
		s.propagate = propagate
	}
}

// WithLogger sets the logger used for per-request debug records.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecorder reports every exchange to r.
func WithRecorder(r Recorder) Option {
	return func(s *Sender) {
		s.recorder = r
	}
}

// WithAuth authorizes every request through a.
func WithAuth(a Authorizer) Option {
	return func(s *Sender) {
		s.auth = a
	}
}

// WithRateLimit caps the request rate of s and every Sender derived from it
// with With. rps <= 0 leaves requests unthrottled.
func WithRateLimit(rps float64) Option {
	return func(s *Sender) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		burst := max(int(rps), 1)
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewSender wraps client. A nil client uses NewClient(0).
func NewSender(client *http.Client, opts ...Option) *Sender {
	if client == nil {
		client = NewClient(0)
	}
	s := &Sender{
		client: client,
		tracer: noop.NewTracerProvider().Tracer("flexconnect"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// With returns a copy of s with opts applied. Connectors use it to attach
// their own Recorder to a shared Sender.
func (s *Sender) With(opts ...Option) *Sender {
	clone := *s
	for _, opt := range opts {
		opt(&clone)
	}
	return &clone
}

// SendRequest performs one exchange. method defaults to GET and is
// upper-cased. Responses with a status in [200, 400) resolve to an Envelope;
// every other status yields a *StatusError. SendRequest never retries.
func (s *Sender) SendRequest(ctx context.Context, rawURL, method string, opts *RequestOptions) (*Envelope, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}

	requestID := ulid.Make().String()
	ctx, span := tracing.StartRequestSpan(ctx, s.tracer, method, rawURL)
	span.SetAttributes(attribute.String("flex.request_id", requestID))

	req, err := s.newRequest(ctx, method, rawURL, opts)
	if err != nil {
		s.finish(span, requestID, method, rawURL, 0, 0, err)
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			err = fmt.Errorf("rate limit: %w", err)
			s.finish(span, requestID, method, rawURL, 0, 0, err)
			return nil, err
		}
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		latency := time.Since(start)
		s.finish(span, requestID, method, rawURL, latency, 0, err)
		return nil, fmt.Errorf("%s %s: %w", method, rawURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		err = fmt.Errorf("read response body: %w", err)
		s.finish(span, requestID, method, rawURL, latency, resp.StatusCode, err)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		statusErr := &StatusError{Status: resp.StatusCode, Message: reasonPhrase(resp)}
		s.finish(span, requestID, method, rawURL, latency, resp.StatusCode, statusErr)
		return nil, statusErr
	}

	env, err := materialize(resp, raw, opts.ResponseType)
	s.finish(span, requestID, method, rawURL, latency, resp.StatusCode, err)
	if err != nil {
		return nil, err
	}
	return env, nil
}

func (s *Sender) newRequest(ctx context.Context, method, rawURL string, opts *RequestOptions) (*http.Request, error) {
	body := NewBodySource(opts.Body)
	reader, err := body.NewReader()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("build request: %w", err)
	}
	if length, ok := body.ContentLength(); ok {
		req.ContentLength = length
	}
	req.GetBody = body.NewReader

	applyCSRFHeader(req.Header, method, opts.SecurityToken)
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	if s.auth != nil {
		if err := s.auth.InjectHeader(ctx, req); err != nil {
			return nil, fmt.Errorf("authorize request: %w", err)
		}
	}
	if s.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}
	return req, nil
}

func (s *Sender) finish(span trace.Span, requestID, method, rawURL string, latency time.Duration, status int, err error) {
	if s.recorder != nil {
		s.recorder.RecordRequest(latency, status, err)
	}

	var attrs []attribute.KeyValue
	if status > 0 {
		attrs = append(attrs, attribute.Int("http.response.status_code", status))
	}
	tracing.EndSpan(span, err, attrs...)

	s.logger.Debug("connector request",
		"request_id", requestID,
		"method", method,
		"url", rawURL,
		"status", status,
		"latency", latency,
		"error", err,
	)
}

// materialize builds the Envelope for a successful response.
func materialize(resp *http.Response, raw []byte, responseType ResponseType) (*Envelope, error) {
	env := &Envelope{
		Status:        resp.StatusCode,
		SecurityToken: resp.Header.Get(CSRFTokenHeader),
		Raw:           raw,
	}

	switch responseType {
	case ResponseTypeDefault, ResponseTypeText:
		env.Text = string(raw)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	wantsJSON := strings.HasPrefix(contentType, "application/json") || responseType == ResponseTypeJSON
	if wantsJSON && len(raw) > 0 {
		if !gjson.ValidBytes(raw) {
			return nil, fmt.Errorf("%w (status %d)", ErrMalformedBody, resp.StatusCode)
		}
		env.Response = raw
	}
	return env, nil
}

// reasonPhrase prefers the canonical text and falls back to the status line.
func reasonPhrase(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
}

// NewClient returns an http.Client for connector traffic. timeout 0 disables
// the client-side timeout.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
