package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nrgkick-panel/internal/config"
	"nrgkick-panel/internal/models"
	"nrgkick-panel/internal/proxy"
	"nrgkick-panel/internal/session"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func newFakeDevice(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/info":
			_, _ = w.Write([]byte(`{"general": {"serial_number": "NK1"}}`))
		case "/control":
			_, _ = w.Write([]byte(`{"current_set": 16}`))
		case "/values":
			_, _ = w.Write([]byte(`{"general": {"status": 1}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestServer(t *testing.T, sess *session.Controller, device models.DeviceConfig) *httptest.Server {
	t.Helper()
	cfg := &config.Config{}
	srv := NewServer(cfg, sess, proxy.NewForwarder(device, testLogger()), nil, testLogger())
	if sess != nil {
		sess.Subscribe(srv.Broadcast)
	}
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil, models.DeviceConfig{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusWithoutSession(t *testing.T) {
	ts := newTestServer(t, nil, models.DeviceConfig{})

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStatusWithSession(t *testing.T) {
	device := newFakeDevice(t)
	deviceCfg := models.DeviceConfig{Host: strings.TrimPrefix(device.URL, "http://")}

	sess, err := session.NewController(deviceCfg, time.Hour, testLogger())
	require.NoError(t, err)
	t.Cleanup(sess.Disconnect)
	require.NoError(t, sess.Connect(context.Background()))

	ts := newTestServer(t, sess, deviceCfg)

	resp, err := http.Get(ts.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap session.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "connected", snap.State)
	require.NotNil(t, snap.Info)
	assert.Equal(t, "NK1", snap.Info.SerialNumber)
}

func TestProxyMountedUnderAPI(t *testing.T) {
	device := newFakeDevice(t)
	deviceCfg := models.DeviceConfig{Host: strings.TrimPrefix(device.URL, "http://")}

	ts := newTestServer(t, nil, deviceCfg)

	resp, err := http.Get(ts.URL + "/api/control")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStaticPanelServed(t *testing.T) {
	ts := newTestServer(t, nil, models.DeviceConfig{})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestWebSocketReceivesSnapshots(t *testing.T) {
	device := newFakeDevice(t)
	deviceCfg := models.DeviceConfig{Host: strings.TrimPrefix(device.URL, "http://")}

	sess, err := session.NewController(deviceCfg, time.Hour, testLogger())
	require.NoError(t, err)
	t.Cleanup(sess.Disconnect)

	ts := newTestServer(t, sess, deviceCfg)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, sess.Connect(context.Background()))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(payload, &snap))
	assert.NotEmpty(t, snap.State)
}

func TestDismissAlert(t *testing.T) {
	ts := newTestServer(t, nil, models.DeviceConfig{})

	resp, err := http.Post(ts.URL+"/alert/dismiss", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
