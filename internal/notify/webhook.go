package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"profmon/internal/models"
	"profmon/internal/structures"
)

const signatureHeader = "X-Profmon-Signature-256"

type webhookPayload struct {
	models.ChangeEvent
	Text string `json:"text"`
}

type WebhookSink struct {
	client  *http.Client
	url     string
	secret  []byte
	timeout time.Duration
}

func NewWebhookSink(client *http.Client, conf structures.WebhookSinkConfig) *WebhookSink {
	return &WebhookSink{
		client:  client,
		url:     conf.URL,
		secret:  []byte(conf.Secret),
		timeout: conf.Timeout,
	}
}

func (w *WebhookSink) Name() string { return "webhook" }

func (w *WebhookSink) Send(ctx context.Context, ev models.ChangeEvent) error {
	body, err := json.Marshal(webhookPayload{ChangeEvent: ev, Text: Render(ev)})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", ev.ID)
	if len(w.secret) > 0 {
		req.Header.Set(signatureHeader, "sha256="+Sign(w.secret, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
