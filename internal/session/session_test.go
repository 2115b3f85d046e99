package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nrgkick-panel/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

// fakeDevice is a minimal in-memory charger speaking the /info,/control,
// /values API.
type fakeDevice struct {
	server      *httptest.Server
	infoCalls   int64
	valuesCalls int64
	failValues  atomic.Bool
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	d := &fakeDevice{}
	d.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/info":
			atomic.AddInt64(&d.infoCalls, 1)
			_, _ = w.Write([]byte(`{"general": {"serial_number": "NK1", "model_type": "NRGKick"}, "versions": {"sw_sm": "2.0"}}`))
		case "/control":
			_, _ = w.Write([]byte(`{"current_set": 16, "phase_count": 3}`))
		case "/values":
			atomic.AddInt64(&d.valuesCalls, 1)
			if d.failValues.Load() {
				_, _ = w.Write([]byte(`{"message": "internal sensor failure"}`))
				return
			}
			_, _ = w.Write([]byte(`{"general": {"status": 3}, "powerflow": {"total_active_power": 7360}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(d.server.Close)
	return d
}

func (d *fakeDevice) host() string {
	return strings.TrimPrefix(d.server.URL, "http://")
}

func newTestController(t *testing.T, d *fakeDevice, interval time.Duration) *Controller {
	t.Helper()
	c, err := NewController(models.DeviceConfig{Host: d.host()}, interval, testLogger())
	require.NoError(t, err)
	t.Cleanup(c.Disconnect)
	return c
}

func TestNewControllerRequiresAddress(t *testing.T) {
	_, err := NewController(models.DeviceConfig{}, time.Second, testLogger())

	assert.Error(t, err)
}

func TestConnectTransitionsToConnected(t *testing.T) {
	device := newFakeDevice(t)
	c := newTestController(t, device, time.Hour)

	assert.Equal(t, models.Disconnected, c.State())

	require.NoError(t, c.Connect(context.Background()))

	assert.Equal(t, models.Connected, c.State())

	snap := c.Snapshot()
	require.NotNil(t, snap.Info)
	assert.Equal(t, "NK1", snap.Info.SerialNumber)
	require.NotNil(t, snap.Status)
	require.NotNil(t, snap.Status.PowerW)
	assert.Equal(t, 7360.0, *snap.Status.PowerW)
	require.NotNil(t, snap.Display)
	assert.Equal(t, "Charging", snap.Display.State)
	assert.Equal(t, int64(1), atomic.LoadInt64(&device.infoCalls))
}

func TestConnectFailureReturnsToDisconnected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c, err := NewController(models.DeviceConfig{
		Host: strings.TrimPrefix(server.URL, "http://"),
	}, time.Hour, testLogger())
	require.NoError(t, err)

	assert.Error(t, c.Connect(context.Background()))
	assert.Equal(t, models.Disconnected, c.State())

	snap := c.Snapshot()
	require.NotNil(t, snap.Alert)
	assert.Equal(t, models.AlertNetwork, snap.Alert.Kind)
}

func TestPollingUpdatesStatus(t *testing.T) {
	device := newFakeDevice(t)
	c := newTestController(t, device, 20*time.Millisecond)

	require.NoError(t, c.Connect(context.Background()))
	initial := atomic.LoadInt64(&device.valuesCalls)

	time.Sleep(120 * time.Millisecond)

	assert.Greater(t, atomic.LoadInt64(&device.valuesCalls), initial+2)
}

func TestDisconnectStopsPolling(t *testing.T) {
	device := newFakeDevice(t)
	c := newTestController(t, device, 20*time.Millisecond)

	require.NoError(t, c.Connect(context.Background()))
	time.Sleep(50 * time.Millisecond)

	c.Disconnect()
	assert.Equal(t, models.Disconnected, c.State())

	frozen := atomic.LoadInt64(&device.valuesCalls)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, frozen, atomic.LoadInt64(&device.valuesCalls))
}

func TestDisconnectFromListenerStopsPolling(t *testing.T) {
	device := newFakeDevice(t)
	c := newTestController(t, device, 20*time.Millisecond)

	// Disconnect as soon as the connected snapshot is delivered, before
	// Connect has started the poll scheduler.
	c.Subscribe(func(snap Snapshot) {
		if snap.State == models.Connected.String() {
			c.Disconnect()
		}
	})

	require.NoError(t, c.Connect(context.Background()))

	assert.Equal(t, models.Disconnected, c.State())
	assert.False(t, c.scheduler.Running())

	frozen := atomic.LoadInt64(&device.valuesCalls)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, frozen, atomic.LoadInt64(&device.valuesCalls))
}

func TestLateFailedRefreshAfterDisconnectRaisesNoAlert(t *testing.T) {
	device := newFakeDevice(t)
	c := newTestController(t, device, time.Hour)

	require.NoError(t, c.Connect(context.Background()))
	c.Disconnect()
	device.failValues.Store(true)

	require.NoError(t, c.refreshStatus(context.Background()))

	assert.Nil(t, c.Snapshot().Alert)
}

func TestPollFailureRaisesAlertAndKeepsPolling(t *testing.T) {
	device := newFakeDevice(t)
	c := newTestController(t, device, 20*time.Millisecond)

	require.NoError(t, c.Connect(context.Background()))
	device.failValues.Store(true)

	time.Sleep(60 * time.Millisecond)

	snap := c.Snapshot()
	require.NotNil(t, snap.Alert)
	assert.Equal(t, models.AlertDevice, snap.Alert.Kind)
	// Stale values survive a failed refresh.
	require.NotNil(t, snap.Status)
	assert.NotNil(t, snap.Status.PowerW)
	assert.Equal(t, models.Connected, c.State())

	before := atomic.LoadInt64(&device.valuesCalls)
	time.Sleep(60 * time.Millisecond)
	assert.Greater(t, atomic.LoadInt64(&device.valuesCalls), before)
}

func TestCommandSchedulesOneRefresh(t *testing.T) {
	device := newFakeDevice(t)
	c := newTestController(t, device, time.Hour)

	require.NoError(t, c.Connect(context.Background()))
	baseline := atomic.LoadInt64(&device.valuesCalls)

	require.NoError(t, c.SetCurrentLimit(context.Background(), 16))

	// No refresh before the fixed delay elapses.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, baseline, atomic.LoadInt64(&device.valuesCalls))

	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, baseline+1, atomic.LoadInt64(&device.valuesCalls))
}

func TestDisconnectCancelsPendingRefresh(t *testing.T) {
	device := newFakeDevice(t)
	c := newTestController(t, device, time.Hour)

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.SetChargePause(context.Background(), true))

	c.Disconnect()
	baseline := atomic.LoadInt64(&device.valuesCalls)

	time.Sleep(700 * time.Millisecond)

	assert.Equal(t, baseline, atomic.LoadInt64(&device.valuesCalls))
}

func TestClearAlert(t *testing.T) {
	device := newFakeDevice(t)
	c := newTestController(t, device, time.Hour)

	require.NoError(t, c.Connect(context.Background()))
	c.raiseAlert(models.AlertNetwork, "test failure")
	require.NotNil(t, c.Snapshot().Alert)

	c.ClearAlert()

	assert.Nil(t, c.Snapshot().Alert)
}

func TestListenersReceiveSnapshots(t *testing.T) {
	device := newFakeDevice(t)
	c := newTestController(t, device, time.Hour)

	var updates int64
	c.Subscribe(func(snap Snapshot) {
		atomic.AddInt64(&updates, 1)
	})

	require.NoError(t, c.Connect(context.Background()))

	// Connecting and connected both notify.
	assert.GreaterOrEqual(t, atomic.LoadInt64(&updates), int64(2))
}

func TestConnectIsIdempotentWhileConnected(t *testing.T) {
	device := newFakeDevice(t)
	c := newTestController(t, device, time.Hour)

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Connect(context.Background()))

	assert.Equal(t, int64(1), atomic.LoadInt64(&device.infoCalls))
}
