package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"engagement-controlplane/pkg/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// Gateway pushes a message to the chat platform.
type Gateway interface {
	Send(ctx context.Context, p DeliverPayload) error
}

// HTTPGateway posts messages as JSON to the chat gateway endpoint.
type HTTPGateway struct {
	url    string
	token  string
	client *http.Client
}

func NewHTTPGateway(url, token string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (g *HTTPGateway) Send(ctx context.Context, p DeliverPayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chat gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}

// LogGateway only logs. Used when no gateway URL is configured.
type LogGateway struct{}

func (LogGateway) Send(ctx context.Context, p DeliverPayload) error {
	zap.L().Info("notification",
		zap.Int64("to", p.To),
		zap.String("text", p.Text),
		zap.String("photo_ref", p.PhotoRef),
		zap.Int("buttons", len(p.Buttons)),
	)
	return nil
}

func NewGateway(cfg *config.Config) Gateway {
	if cfg.ChatGateway.URL == "" {
		zap.L().Warn("[Notification] CHAT_GATEWAY.URL not set, messages are only logged")
		return LogGateway{}
	}
	return NewHTTPGateway(cfg.ChatGateway.URL, cfg.ChatGateway.Token, cfg.ChatGateway.Timeout)
}
