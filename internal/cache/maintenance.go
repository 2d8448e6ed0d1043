package cache

import (
	"log/slog"
	"time"
)

// Default maintenance schedule: one early pass shortly after startup, then
// an hourly cadence.
const (
	DefaultMaintenanceDelay    = 5 * time.Second
	DefaultMaintenanceInterval = time.Hour
)

// Maintainer runs Service.Maintain on a schedule. The delay and interval are
// explicit so tests can drive the schedule instead of waiting on wall-clock
// time.
type Maintainer struct {
	svc      *Service
	logger   *slog.Logger
	delay    time.Duration
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// StartMaintenance schedules maintenance: the first run fires after delay,
// later runs every interval. Stop cancels the schedule.
func StartMaintenance(svc *Service, delay, interval time.Duration, logger *slog.Logger) *Maintainer {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Maintainer{
		svc:      svc,
		logger:   logger,
		delay:    delay,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Maintainer) run() {
	defer close(m.done)

	timer := time.NewTimer(m.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		m.svc.Maintain()
	case <-m.stop:
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.svc.Maintain()
		case <-m.stop:
			return
		}
	}
}

// Stop cancels the schedule and waits for any in-flight run to finish.
func (m *Maintainer) Stop() {
	close(m.stop)
	<-m.done
}
