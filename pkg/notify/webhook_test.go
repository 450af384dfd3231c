package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camtower/camtower/pkg/models"
)

func testAlertPair() (*models.Device, *models.Alert) {
	device := &models.Device{
		ID:       7,
		Type:     models.TypeIPCam,
		MgmtIP:   "10.20.0.41",
		SiteName: "Warehouse North",
		Notes:    "mounted on dock door",
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	alert := &models.Alert{
		ID:        3,
		DeviceID:  7,
		Level:     models.StateRed,
		Message:   "RED: Axis P3265 (10.20.0.41) at Warehouse North",
		FirstSeen: now,
		LastSeen:  now,
		Count:     1,
	}

	return device, alert
}

func TestWebhookSendsDefaultPayload(t *testing.T) {
	var (
		mu          sync.Mutex
		gotBody     []byte
		gotHeaders  http.Header
		requestSeen bool
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		requestSeen = true
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(WebhookConfig{
		Enabled: true,
		URL:     srv.URL,
		Headers: []Header{{Key: "X-Token", Value: "secret"}},
	})

	device, alert := testAlertPair()

	require.NoError(t, sink.SendAlert(context.Background(), device, alert))

	mu.Lock()
	defer mu.Unlock()

	require.True(t, requestSeen)
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "secret", gotHeaders.Get("X-Token"))

	var payload AlertPayload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, models.StateRed, payload.Level)
	assert.Equal(t, alert.Message, payload.Message)
	assert.Equal(t, device.ID, payload.DeviceID)
	assert.Equal(t, device.MgmtIP, payload.MgmtIP)
	assert.Equal(t, device.SiteName, payload.Site)
	assert.Equal(t, 1, payload.Count)
	assert.Equal(t, "2025-06-01T12:00:00Z", payload.FirstSeen)
}

func TestWebhookDisabled(t *testing.T) {
	sink := NewWebhookSink(WebhookConfig{Enabled: false})
	device, alert := testAlertPair()

	err := sink.SendAlert(context.Background(), device, alert)
	assert.ErrorIs(t, err, ErrWebhookDisabled)
}

func TestWebhookCooldown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(WebhookConfig{
		Enabled:  true,
		URL:      srv.URL,
		Cooldown: time.Hour,
	})

	device, alert := testAlertPair()

	require.NoError(t, sink.SendAlert(context.Background(), device, alert))

	err := sink.SendAlert(context.Background(), device, alert)
	assert.ErrorIs(t, err, ErrWebhookCooldown)

	// A different level is a different cooldown key.
	yellow := *alert
	yellow.Level = models.StateYellow
	require.NoError(t, sink.SendAlert(context.Background(), device, &yellow))
}

func TestWebhookNon2xxStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewWebhookSink(WebhookConfig{Enabled: true, URL: srv.URL})
	device, alert := testAlertPair()

	err := sink.SendAlert(context.Background(), device, alert)
	assert.ErrorIs(t, err, ErrWebhookStatus)
}

func TestWebhookTemplate(t *testing.T) {
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(WebhookConfig{
		Enabled:  true,
		URL:      srv.URL,
		Template: `{"text": {{json .alert.Message}}, "ip": "{{.device.MgmtIP}}"}`,
	})

	device, alert := testAlertPair()

	require.NoError(t, sink.SendAlert(context.Background(), device, alert))

	var body map[string]string
	require.NoError(t, json.Unmarshal(gotBody, &body))
	assert.Equal(t, alert.Message, body["text"])
	assert.Equal(t, device.MgmtIP, body["ip"])
}

func TestWebhookTemplateMustProduceJSON(t *testing.T) {
	sink := NewWebhookSink(WebhookConfig{
		Enabled:  true,
		URL:      "http://127.0.0.1:1",
		Template: `not json at all`,
	})

	device, alert := testAlertPair()

	err := sink.SendAlert(context.Background(), device, alert)
	assert.ErrorIs(t, err, ErrInvalidJSON)
}

func TestWebhookConfigCooldownString(t *testing.T) {
	var cfg WebhookConfig

	require.NoError(t, json.Unmarshal([]byte(`{
		"enabled": true,
		"url": "https://hooks.example.com/x",
		"cooldown": "15m"
	}`), &cfg))

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 15*time.Minute, cfg.Cooldown)

	err := json.Unmarshal([]byte(`{"cooldown": "soon"}`), &cfg)
	assert.Error(t, err)
}
