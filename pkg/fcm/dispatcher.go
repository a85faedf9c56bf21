// --- File: pkg/fcm/dispatcher.go ---
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

type options struct {
	httpClient  *http.Client
	tokenSource oauth2.TokenSource
	metrics     *Metrics
}

// Option customises a Dispatcher.
type Option func(*options)

// WithHTTPClient makes the dispatcher send through client's transport. The
// dispatcher still layers its own authentication and timeout on top.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithTokenSource replaces service account / ADC loading with ts (v1 only).
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(o *options) { o.tokenSource = ts }
}

// WithMetrics records provider calls into m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Dispatcher sends Messages to FCM and manages topic membership. It is safe
// for concurrent use; the only state shared between calls is the cached v1
// access token.
type Dispatcher struct {
	settings    Settings
	client      *http.Client
	credentials *CredentialProvider
	metrics     *Metrics
	logger      *slog.Logger
}

// NewDispatcher validates settings and builds the authenticated HTTP client
// for the selected API version.
func NewDispatcher(ctx context.Context, settings Settings, logger *slog.Logger, opts ...Option) (*Dispatcher, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	base := http.DefaultTransport
	if o.httpClient != nil && o.httpClient.Transport != nil {
		base = o.httpClient.Transport
	}

	d := &Dispatcher{
		settings: settings,
		metrics:  o.metrics,
		logger:   logger.With("component", "FCMDispatcher", "api_version", string(settings.API.Version())),
	}

	switch api := settings.API.(type) {
	case LegacyAPI:
		d.client = &http.Client{
			Transport: &serverKeyTransport{key: api.ServerKey, base: base},
			Timeout:   settings.timeout(),
		}
	case V1API:
		provider := NewCredentialProvider(api.ServiceAccountKeyPath, settings.timeout(), logger)
		provider.base = base
		provider.metrics = o.metrics
		if o.tokenSource != nil {
			ts := o.tokenSource
			provider.loadSource = func(context.Context) (oauth2.TokenSource, error) { return ts, nil }
		}
		client, err := provider.CreateAuthenticatedClient(ctx)
		if err != nil {
			return nil, err
		}
		d.client = client
		d.credentials = provider
	default:
		return nil, newError(ErrConfig, "fcm.NewDispatcher", fmt.Sprintf("unsupported api configuration %T", api))
	}

	if settings.RetryAttempts > 0 {
		d.logger.Debug("Retry settings are reserved and not applied",
			"retry_attempts", settings.RetryAttempts,
			"retry_interval", settings.RetryInterval,
		)
	}
	return d, nil
}

// APIVersion reports which FCM API the dispatcher talks to.
func (d *Dispatcher) APIVersion() APIVersion {
	return d.settings.API.Version()
}

// SendToDevices delivers msg to every token it carries. The legacy API is a
// single multicast request; the v1 API is one request per token.
func (d *Dispatcher) SendToDevices(ctx context.Context, msg *Message) (*Result, error) {
	if msg == nil || len(msg.Tokens()) == 0 {
		return nil, newError(ErrValidation, "fcm.SendToDevices", "no tokens provided for device notification")
	}
	switch api := d.settings.API.(type) {
	case LegacyAPI:
		return d.sendToDevicesLegacy(ctx, api, msg)
	case V1API:
		return d.sendToDevicesV1(ctx, api, msg)
	}
	return nil, newError(ErrConfig, "fcm.SendToDevices", "unsupported api configuration")
}

// SendToTopic delivers msg to its topic.
func (d *Dispatcher) SendToTopic(ctx context.Context, msg *Message) (*Result, error) {
	if msg == nil || msg.Topic() == "" {
		return nil, newError(ErrValidation, "fcm.SendToTopic", "no topic provided for topic notification")
	}
	switch api := d.settings.API.(type) {
	case LegacyAPI:
		return d.sendToTopicLegacy(ctx, api, msg)
	case V1API:
		return d.sendToTopicV1(ctx, api, msg)
	}
	return nil, newError(ErrConfig, "fcm.SendToTopic", "unsupported api configuration")
}

// --- Transport ---

// call posts payload and decodes the reply. Transport failures and non-2xx
// statuses become errors carrying whatever body the provider returned.
func (d *Dispatcher) call(ctx context.Context, op, metricOp, url string, payload any, failMsg string) (Response, error) {
	status, resp, err := d.post(ctx, metricOp, url, payload)
	if err != nil {
		return nil, wrapTransport(op, failMsg, err)
	}
	if status < 200 || status >= 300 {
		return nil, &Error{
			Kind:     ErrDispatch,
			Op:       op,
			Message:  fmt.Sprintf("%s: provider returned status %d", failMsg, status),
			Response: resp,
		}
	}
	return resp, nil
}

func (d *Dispatcher) post(ctx context.Context, metricOp, url string, payload any) (int, Response, error) {
	start := time.Now()
	status, resp, err := d.doPost(ctx, url, payload)

	metricErr := err
	if metricErr == nil && (status < 200 || status >= 300) {
		metricErr = fmt.Errorf("status %d", status)
	}
	d.metrics.observeRequest(d.APIVersion(), metricOp, start, metricErr)
	d.logger.Debug("FCM request complete", "operation", metricOp, "status", status, "duration", time.Since(start), "err", err)
	return status, resp, err
}

func (d *Dispatcher) doPost(ctx context.Context, url string, payload any) (int, Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := d.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return res.StatusCode, decodeResponse(raw), nil
}

// decodeResponse keeps numbers as json.Number so ids survive untouched.
// Bodies that are not a JSON object are kept verbatim under "body".
func decodeResponse(raw []byte) Response {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Response{}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var resp Response
	if err := dec.Decode(&resp); err != nil || resp == nil {
		return Response{"body": string(raw)}
	}
	return resp
}

// serverKeyTransport authenticates legacy API requests.
type serverKeyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *serverKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "key="+t.key)
	return t.base.RoundTrip(r)
}

// --- Response helpers ---

func intField(r Response, key string) int {
	switch v := r[key].(type) {
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// stringField reports a present, non-null field rendered as text.
func stringField(r Response, key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}
	return stringifyValue(v), true
}
