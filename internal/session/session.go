package session

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"nrgkick-panel/internal/models"
	"nrgkick-panel/internal/nrgkick"
	"nrgkick-panel/internal/poller"
)

const (
	// refreshDelay is how long after a successful command the follow-up
	// status refresh fires.
	refreshDelay = 500 * time.Millisecond
	// alertTTL is how long a user-visible alert stays up before it
	// auto-dismisses.
	alertTTL = 5 * time.Second
)

// Snapshot is the JSON-ready view of a session at one point in time.
type Snapshot struct {
	State     string                 `json:"state"`
	Info      *models.DeviceInfo     `json:"info,omitempty"`
	Status    *models.LiveStatus     `json:"status,omitempty"`
	Display   *nrgkick.DisplayStatus `json:"display,omitempty"`
	Alert     *models.Alert          `json:"alert,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Listener receives a snapshot after every state change.
type Listener func(Snapshot)

// Controller owns all mutable session state: connection state, cached device
// info, the latest live status and the current alert. Each controller is
// independently constructible; there are no package-level globals.
type Controller struct {
	device    models.DeviceConfig
	client    *nrgkick.Client
	scheduler *poller.Scheduler
	logger    *logrus.Logger

	mu           sync.RWMutex
	state        models.ConnectionState
	info         models.DeviceInfo
	status       models.LiveStatus
	hasInfo      bool
	hasStatus    bool
	alert        *models.Alert
	alertTimer   *time.Timer
	refreshTimer *time.Timer
	listeners    []Listener
}

func NewController(device models.DeviceConfig, pollInterval time.Duration, logger *logrus.Logger) (*Controller, error) {
	client, err := nrgkick.NewClient(device, logger)
	if err != nil {
		return nil, err
	}

	return &Controller{
		device:    device,
		client:    client,
		scheduler: poller.NewScheduler(pollInterval, logger),
		logger:    logger,
		state:     models.Disconnected,
		info:      models.NewDeviceInfo(),
	}, nil
}

// Subscribe registers a listener for snapshot updates.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// Connect fetches device info and an initial status, then starts the poll
// scheduler. On any fetch failure the session returns to disconnected.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != models.Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = models.Connecting
	c.mu.Unlock()
	c.notify()

	c.logger.Infof("Connecting to NRGKick at %s", c.device.Host)

	info, err := c.client.FetchDeviceInfo(ctx)
	if err != nil {
		c.failConnect(err)
		return err
	}

	status, err := c.client.FetchLiveStatus(ctx)
	if err != nil {
		c.failConnect(err)
		return err
	}

	c.mu.Lock()
	c.info = info
	c.hasInfo = true
	c.status = status
	c.hasStatus = true
	c.state = models.Connected
	c.mu.Unlock()
	c.notify()

	c.scheduler.Start(c.refreshStatus)

	// A Disconnect issued between the state change and the scheduler start
	// (a listener may disconnect from the connected notification) found
	// nothing to stop; shut the scheduler back down here.
	if c.State() != models.Connected {
		c.scheduler.Stop()
		return nil
	}

	c.logger.Infof("Connected to %s (serial %s)", info.ModelName, info.SerialNumber)

	return nil
}

// Disconnect stops the poll scheduler and invalidates any pending follow-up
// refresh. Cached values are kept but no longer updated.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
	c.state = models.Disconnected
	c.mu.Unlock()

	// Stop after the state change so a Connect racing past the transition
	// above observes the disconnect and shuts down its own scheduler.
	c.scheduler.Stop()
	c.notify()

	c.logger.Info("Disconnected from device")
}

func (c *Controller) State() models.ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) Device() models.DeviceConfig {
	return c.device
}

// Snapshot returns a copy of the current session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:     c.state.String(),
		Alert:     c.alert,
		UpdatedAt: time.Now(),
	}
	if c.hasInfo {
		info := c.info
		snap.Info = &info
	}
	if c.hasStatus {
		status := c.status
		display := nrgkick.NewDisplayStatus(status)
		snap.Status = &status
		snap.Display = &display
	}
	return snap
}

// ClearAlert dismisses the current alert, if any.
func (c *Controller) ClearAlert() {
	c.mu.Lock()
	if c.alert == nil {
		c.mu.Unlock()
		return
	}
	c.alert = nil
	if c.alertTimer != nil {
		c.alertTimer.Stop()
		c.alertTimer = nil
	}
	c.mu.Unlock()
	c.notify()
}

// refreshStatus is the poll tick. A failed refresh leaves the previous
// values stale and raises an alert; the scheduler keeps running.
func (c *Controller) refreshStatus(ctx context.Context) error {
	status, err := c.client.FetchLiveStatus(ctx)

	// A late fetch may resolve after disconnect; drop the outcome either
	// way, including the failure alert.
	if c.State() != models.Connected {
		return nil
	}
	if err != nil {
		c.raiseAlertFromError(err)
		return err
	}

	c.mu.Lock()
	if c.state != models.Connected {
		c.mu.Unlock()
		return nil
	}
	c.status = status
	c.hasStatus = true
	c.mu.Unlock()
	c.notify()

	return nil
}

func (c *Controller) failConnect(err error) {
	c.mu.Lock()
	c.state = models.Disconnected
	c.mu.Unlock()
	c.raiseAlertFromError(err)
	c.logger.Errorf("Connect failed: %v", err)
}

func (c *Controller) raiseAlertFromError(err error) {
	kind := models.AlertNetwork
	if nrgkick.IsDeviceError(err) {
		kind = models.AlertDevice
	}
	c.raiseAlert(kind, err.Error())
}

func (c *Controller) raiseAlert(kind models.AlertKind, message string) {
	c.mu.Lock()
	c.alert = &models.Alert{Kind: kind, Message: message, Raised: time.Now()}
	if c.alertTimer != nil {
		c.alertTimer.Stop()
	}
	c.alertTimer = time.AfterFunc(alertTTL, c.ClearAlert)
	c.mu.Unlock()
	c.notify()
}

// notify fans the current snapshot out to all listeners. Listeners are
// called outside the lock.
func (c *Controller) notify() {
	c.mu.RLock()
	snap := c.snapshotLocked()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()

	for _, l := range listeners {
		l(snap)
	}
}
