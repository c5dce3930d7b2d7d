package printer

import (
	"context"
	"log/slog"
	"time"

	"printlapse/internal/logging"
)

// Monitor wraps a Client with unreachable classification and bounded
// exponential backoff. A failed poll never returns an error; it returns
// StateUnreachable so callers hold session state steady and retry.
type Monitor struct {
	client     Client
	logger     *slog.Logger
	base       time.Duration
	max        time.Duration
	failures   int
	lastStatus Status
}

// NewMonitor constructs a Monitor. base is the normal poll interval; max caps
// the backoff applied after consecutive unreachable polls.
func NewMonitor(client Client, logger *slog.Logger, base, max time.Duration) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if base <= 0 {
		base = 30 * time.Second
	}
	if max < base {
		max = base
	}
	return &Monitor{
		client: client,
		logger: logger.With(logging.String(logging.FieldComponent, "printer-monitor")),
		base:   base,
		max:    max,
	}
}

// Poll performs one status query and classifies failures as unreachable.
func (m *Monitor) Poll(ctx context.Context) Status {
	status, err := m.client.Status(ctx)
	if err != nil {
		m.failures++
		m.logger.Warn("printer unreachable",
			logging.Error(err),
			logging.Int("consecutive_failures", m.failures),
			logging.Duration("next_poll_in", m.Delay()),
		)
		m.lastStatus = Status{State: StateUnreachable}
		return m.lastStatus
	}
	if m.failures > 0 {
		m.logger.Info("printer reachable again", logging.Int("failed_polls", m.failures))
	}
	m.failures = 0
	m.lastStatus = status
	return status
}

// Delay returns how long the caller should wait before the next poll. The
// first failure keeps the base interval; each further consecutive failure
// doubles it, capped at max.
func (m *Monitor) Delay() time.Duration {
	if m.failures == 0 {
		return m.base
	}
	delay := m.base
	for i := 1; i < m.failures; i++ {
		delay *= 2
		if delay >= m.max {
			return m.max
		}
	}
	if delay > m.max {
		return m.max
	}
	return delay
}

// ConsecutiveFailures reports how many polls in a row have been unreachable.
func (m *Monitor) ConsecutiveFailures() int {
	return m.failures
}
