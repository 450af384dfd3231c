package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camtower/camtower/pkg/models"
)

func dialHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		require.NoError(t, resp.Body.Close())
	}

	return conn
}

func TestHubStreamsChecks(t *testing.T) {
	s, _ := newTestServer(t)

	srv := httptest.NewServer(s)
	defer srv.Close()

	conn := dialHub(t, srv)
	defer func() { _ = conn.Close() }()

	// Registration happens just after the handshake; wait for it.
	require.Eventually(t, func() bool {
		s.Hub().mu.Lock()
		defer s.Hub().mu.Unlock()

		return len(s.Hub().clients) == 1
	}, 2*time.Second, 10*time.Millisecond)

	device := &models.Device{ID: 7, Type: models.TypeIPCam, MgmtIP: "10.0.0.7"}
	check := &models.CheckResult{
		DeviceID: 7,
		State:    models.StateYellow,
		Score:    70,
		Reason:   "ONVIF service unavailable",
	}

	s.Hub().ProcessCheck(context.Background(), device, check)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var event CheckEvent
	require.NoError(t, conn.ReadJSON(&event))
	require.NotNil(t, event.Device)
	require.NotNil(t, event.Check)
	assert.Equal(t, device.ID, event.Device.ID)
	assert.Equal(t, models.StateYellow, event.Check.State)
	assert.Equal(t, 70, event.Check.Score)
}

func TestHubSurvivesClosedClient(t *testing.T) {
	s, _ := newTestServer(t)

	srv := httptest.NewServer(s)
	defer srv.Close()

	conn := dialHub(t, srv)
	require.NoError(t, conn.Close())

	device := &models.Device{ID: 7, MgmtIP: "10.0.0.7"}
	check := &models.CheckResult{DeviceID: 7, State: models.StateGreen, Score: 100}

	// A dead client is dropped, not fatal.
	s.Hub().ProcessCheck(context.Background(), device, check)
	s.Hub().ProcessCheck(context.Background(), device, check)
}
