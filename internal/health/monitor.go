package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/anonto42/nano-social/backend/internal/apperrors"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Pinger checks connectivity to a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor pings the store in the background and keeps the last result.
type Monitor struct {
	pinger   Pinger
	interval time.Duration
	up       atomic.Bool
}

func NewMonitor(pinger Pinger, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Monitor{pinger: pinger, interval: interval}
}

// Check pings once and records the outcome.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	err := m.pinger.Ping(ctx)
	up := err == nil
	if was := m.up.Swap(up); was != up {
		if up {
			log.Info("Store connection is up")
		} else {
			log.Errorf("Store connection is down: %s", err)
		}
	}
	return up
}

// Run pings until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

func (m *Monitor) Up() bool {
	return m.up.Load()
}

// Middleware rejects requests with 503 while the store is unreachable.
func (m *Monitor) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !m.Up() {
				return apperrors.ServiceUnavailable("database is not connected")
			}
			return next(c)
		}
	}
}
