package beacon

import (
	"context"
	"time"
)

// autoEvents holds the state for the daily-active check goroutine.
type autoEvents struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Taxonomy of the events produced by the trigger.
const (
	autoKingdom   = "beacon"
	phylumInstall = "install"
	phylumDAU     = "dau"
)

// startAutoEvents enqueues the install event on first run and starts the
// periodic daily-active check. The first check runs before returning.
func (c *Client) startAutoEvents() {
	c.checkInstall()
	c.checkDAU()

	ctx, cancel := context.WithCancel(context.Background())
	c.auto = &autoEvents{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go c.runDAUCheck(ctx, c.auto)
}

// runDAUCheck re-evaluates the daily-active rule every DAUCheckInterval.
func (c *Client) runDAUCheck(ctx context.Context, state *autoEvents) {
	defer close(state.done)

	ticker := c.clock.NewTicker(c.cfg.DAUCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.mu.RLock()
			if !c.closed {
				c.checkDAU()
			}
			c.mu.RUnlock()
		}
	}
}

// checkInstall enqueues the install event once per storage. A marker
// that cannot be read skips the check rather than repeat the event.
func (c *Client) checkInstall() {
	marked, err := c.identity.installMarked()
	if err != nil {
		c.report(err)
		return
	}
	if marked {
		return
	}
	now := c.clock.Now()
	c.enqueueAuto(TypeInstall, phylumInstall, now)
	c.identity.markInstall(now)
	c.logger.Info("install event enqueued")
}

// checkDAU enqueues a dau event when none was sent within DAUWindow.
func (c *Client) checkDAU() {
	now := c.clock.Now()
	last, ok, err := c.identity.lastDAU()
	if err != nil {
		c.report(err)
		return
	}
	if ok && now.Sub(last) <= c.cfg.DAUWindow {
		return
	}
	c.enqueueAuto(TypeDAU, phylumDAU, now)
	c.identity.markDAU(now)
	c.logger.Debug("dau event enqueued")
}

func (c *Client) enqueueAuto(kind EventType, phylum string, now time.Time) {
	rec, err := c.normalizer.event(kind, Props{
		"kingdom":        autoKingdom,
		"phylum":         phylum,
		"event_datetime": now,
	})
	if err != nil {
		c.report(err)
		return
	}
	c.enqueueEvent(rec)
}
