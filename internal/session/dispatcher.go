package session

import (
	"context"
	"time"

	"nrgkick-panel/internal/models"
)

// Commands are fire-and-forget with respect to each other: a second command
// issued while the first is in flight is allowed. Each successful command
// schedules exactly one follow-up status refresh after a short delay; a
// newer command replaces a still-pending refresh.

// SetChargePause pauses or resumes charging.
func (c *Controller) SetChargePause(ctx context.Context, paused bool) error {
	return c.dispatch(func() error {
		return c.client.SetChargePause(ctx, paused)
	})
}

// SetCurrentLimit sets the charging current limit in amps. Range checking is
// left to the device; a rejection surfaces as an alert.
func (c *Controller) SetCurrentLimit(ctx context.Context, amps int) error {
	return c.dispatch(func() error {
		return c.client.SetCurrentLimit(ctx, amps)
	})
}

// SetPhaseCount switches between 1- and 3-phase charging.
func (c *Controller) SetPhaseCount(ctx context.Context, phases int) error {
	return c.dispatch(func() error {
		return c.client.SetPhaseCount(ctx, phases)
	})
}

func (c *Controller) dispatch(send func() error) error {
	if err := send(); err != nil {
		c.raiseAlertFromError(err)
		return err
	}
	c.scheduleRefresh()
	return nil
}

// scheduleRefresh arms the one-shot post-command refresh. The handle is
// replaced by newer commands and invalidated on disconnect.
func (c *Controller) scheduleRefresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
	}
	c.refreshTimer = time.AfterFunc(refreshDelay, func() {
		if c.State() != models.Connected {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := c.refreshStatus(ctx); err != nil {
			c.logger.Warnf("Post-command refresh failed: %v", err)
		}
	})
}
