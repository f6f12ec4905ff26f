package pubsub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/autoshop/backend/internal/domain/shared"
	"github.com/autoshop/backend/internal/infrastructure/correlation"
	"github.com/autoshop/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// DefaultPublishTimeout bounds one publish request to the sidecar
const DefaultPublishTimeout = 5 * time.Second

// SidecarPublisher publishes through the local sidecar's HTTP publish API.
// Delivery is best effort: transport errors and non-2xx responses are
// logged and dropped, and nothing is retried.
type SidecarPublisher struct {
	baseURL    string
	pubsubName string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// SidecarOption configures a SidecarPublisher
type SidecarOption func(*SidecarPublisher)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) SidecarOption {
	return func(p *SidecarPublisher) {
		p.httpClient = c
	}
}

// WithPublishTimeout sets the per-publish timeout
func WithPublishTimeout(d time.Duration) SidecarOption {
	return func(p *SidecarPublisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewSidecarPublisher creates a publisher posting to
// {baseURL}/v1.0/publish/{pubsubName}/{topic}
func NewSidecarPublisher(baseURL, pubsubName string, log *zap.Logger, opts ...SidecarOption) *SidecarPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	p := &SidecarPublisher{
		baseURL:    strings.TrimRight(baseURL, "/"),
		pubsubName: pubsubName,
		timeout:    DefaultPublishTimeout,
		httpClient: &http.Client{},
		logger:     log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish posts payload as JSON to topic. It never returns a delivery error.
func (p *SidecarPublisher) Publish(ctx context.Context, topic string, payload any) error {
	log := logger.ForContext(ctx, p.logger).With(
		zap.String("pubsub", p.pubsubName),
		zap.String("topic", topic),
	)

	if err := p.Send(ctx, topic, payload); err != nil {
		log.Warn("event publish failed", zap.Error(err))
		return nil
	}
	log.Debug("event published")
	return nil
}

// Send posts payload as JSON to topic and reports any failure. The outbox
// relay uses it to decide whether an entry needs another attempt.
func (p *SidecarPublisher) Send(ctx context.Context, topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(topic), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id := correlation.FromContext(ctx); id != "" {
		req.Header.Set(correlation.HeaderName, id)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to sidecar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sidecar rejected publish with status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

func (p *SidecarPublisher) endpoint(topic string) string {
	return fmt.Sprintf("%s/v1.0/publish/%s/%s", p.baseURL, url.PathEscape(p.pubsubName), url.PathEscape(topic))
}

var _ shared.MessagePublisher = (*SidecarPublisher)(nil)
