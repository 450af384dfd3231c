package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/camtower/camtower/pkg/models"
)

var (
	ErrWebhookDisabled   = errors.New("webhook sink is disabled")
	ErrWebhookCooldown   = errors.New("alert is within cooldown period")
	ErrInvalidJSON       = errors.New("invalid JSON generated")
	ErrWebhookStatus     = errors.New("webhook returned non-2xx status")
	ErrTemplateParse     = errors.New("template parsing failed")
	ErrTemplateExecution = errors.New("template execution failed")
)

// WebhookConfig configures the webhook sink.
type WebhookConfig struct {
	Enabled  bool          `json:"enabled" env:"CAMTOWER_WEBHOOK_ENABLED"`
	URL      string        `json:"url" env:"CAMTOWER_WEBHOOK_URL"`
	Headers  []Header      `json:"headers,omitempty"`
	Template string        `json:"template,omitempty"` // Optional JSON template
	Cooldown time.Duration `json:"cooldown,omitempty"`
}

type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (w *WebhookConfig) UnmarshalJSON(data []byte) error {
	type Alias WebhookConfig

	aux := &struct {
		Cooldown string `json:"cooldown"`
		*Alias
	}{
		Alias: (*Alias)(w),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Cooldown != "" {
		duration, err := time.ParseDuration(aux.Cooldown)
		if err != nil {
			return fmt.Errorf("invalid cooldown format: %w", err)
		}

		w.Cooldown = duration
	}

	return nil
}

// AlertPayload is the default JSON body posted to the webhook.
type AlertPayload struct {
	Level     models.HealthState `json:"level"`
	Message   string             `json:"message"`
	DeviceID  int64              `json:"device_id"`
	MgmtIP    string             `json:"mgmt_ip"`
	Site      string             `json:"site,omitempty"`
	Count     int                `json:"count"`
	FirstSeen string             `json:"first_seen"`
	LastSeen  string             `json:"last_seen"`
	Notes     string             `json:"notes,omitempty"`
}

// WebhookSink posts alert notifications to a configured URL. The
// cooldown is a transport-level guard keyed by (device, level); the
// alert engine's suppression window is the primary anti-spam
// mechanism and runs above this.
type WebhookSink struct {
	config        WebhookConfig
	client        *http.Client
	lastSendTimes map[string]time.Time
	mu            sync.Mutex
	bufferPool    *sync.Pool
}

func NewWebhookSink(config WebhookConfig) *WebhookSink {
	return &WebhookSink{
		config: config,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		lastSendTimes: make(map[string]time.Time),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

func (w *WebhookSink) IsEnabled() bool {
	return w.config.Enabled
}

// SendAlert implements Sink.
func (w *WebhookSink) SendAlert(ctx context.Context, device *models.Device, alert *models.Alert) error {
	if !w.IsEnabled() {
		return ErrWebhookDisabled
	}

	key := fmt.Sprintf("%d/%s", alert.DeviceID, alert.Level)
	if err := w.checkCooldown(key); err != nil {
		return err
	}

	payload, err := w.preparePayload(device, alert)
	if err != nil {
		return fmt.Errorf("failed to prepare payload: %w", err)
	}

	return w.sendRequest(ctx, payload)
}

func (w *WebhookSink) checkCooldown(key string) error {
	if w.config.Cooldown <= 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	lastSend, exists := w.lastSendTimes[key]
	if exists && time.Since(lastSend) < w.config.Cooldown {
		return ErrWebhookCooldown
	}

	w.lastSendTimes[key] = time.Now()

	return nil
}

func (w *WebhookSink) preparePayload(device *models.Device, alert *models.Alert) ([]byte, error) {
	if w.config.Template == "" {
		payload := &AlertPayload{
			Level:     alert.Level,
			Message:   alert.Message,
			DeviceID:  alert.DeviceID,
			MgmtIP:    device.MgmtIP,
			Site:      device.SiteName,
			Count:     alert.Count,
			FirstSeen: alert.FirstSeen.UTC().Format(time.RFC3339),
			LastSeen:  alert.LastSeen.UTC().Format(time.RFC3339),
			Notes:     device.Notes,
		}

		buf := w.bufferPool.Get().(*bytes.Buffer)
		buf.Reset()
		defer w.bufferPool.Put(buf)

		enc := json.NewEncoder(buf)
		if err := enc.Encode(payload); err != nil {
			return nil, fmt.Errorf("failed to marshal alert: %w", err)
		}

		return append([]byte(nil), buf.Bytes()...), nil
	}

	return w.executeTemplate(device, alert)
}

func (w *WebhookSink) getTemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"json": func(v interface{}) (string, error) {
			buf := w.bufferPool.Get().(*bytes.Buffer)
			buf.Reset()
			defer w.bufferPool.Put(buf)

			enc := json.NewEncoder(buf)
			if err := enc.Encode(v); err != nil {
				return "", fmt.Errorf("JSON marshaling failed: %w", err)
			}

			return strings.TrimRight(buf.String(), "\n"), nil
		},
	}
}

func (w *WebhookSink) executeTemplate(device *models.Device, alert *models.Alert) ([]byte, error) {
	tmpl, err := template.New("webhook").
		Funcs(w.getTemplateFuncs()).
		Parse(w.config.Template)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplateParse, err)
	}

	buf := w.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer w.bufferPool.Put(buf)

	if err := tmpl.Execute(buf, map[string]interface{}{
		"device": device,
		"alert":  alert,
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplateExecution, err)
	}

	if !json.Valid(buf.Bytes()) {
		return nil, ErrInvalidJSON
	}

	return append([]byte(nil), buf.Bytes()...), nil
}

func (w *WebhookSink) sendRequest(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	w.setHeaders(req)

	resp, err := w.client.Do(req) //nolint:bodyclose // Response body is closed later
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close response body")
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("%w: status=%d body=%s", ErrWebhookStatus, resp.StatusCode, string(errBody))
	}

	return nil
}

func (w *WebhookSink) setHeaders(req *http.Request) {
	hasContentType := false

	for _, header := range w.config.Headers {
		if strings.EqualFold(header.Key, "content-type") {
			hasContentType = true
		}

		req.Header.Set(header.Key, header.Value)
	}

	if !hasContentType {
		req.Header.Set("Content-Type", "application/json")
	}
}
