// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recorder

import (
	"context"
	"time"

	xglog "github.com/ManuGH/canvasrec/internal/log"
	"github.com/ManuGH/canvasrec/internal/metrics"
)

// OnStatus registers fn to receive status lines. Callbacks run on the
// notifier goroutine or on the goroutine that changed state, so they must
// not block and must not call back into Start or Stop.
func (c *Controller) OnStatus(fn StatusFunc) {
	if fn == nil {
		return
	}
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// RunStatusNotifier publishes the status line every StatusInterval while a
// session is active, until ctx is cancelled.
func (c *Controller) RunStatusNotifier(ctx context.Context) error {
	t := time.NewTicker(c.cfg.StatusInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			st := c.Status()
			if st.State == StateIdle {
				continue
			}
			metrics.SetQueueDepth(st.QueueDepth)
			c.publish(st.Text)
		}
	}
}

// transitioned publishes the new state right away instead of waiting for
// the next notifier tick.
func (c *Controller) transitioned() {
	st := c.Status()
	metrics.SetRecordingState(string(st.State))
	c.logger.Debug().
		Str(xglog.FieldEvent, "recording.state").
		Str(xglog.FieldNewState, string(st.State)).
		Msg("recording state changed")
	c.publish(st.Text)
}

func (c *Controller) publish(text string) {
	c.listenersMu.RLock()
	fns := make([]StatusFunc, len(c.listeners))
	copy(fns, c.listeners)
	c.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(text)
	}
}
