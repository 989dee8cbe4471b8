package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/tapstand/kiosk/internal/adapter/logger"
	"github.com/tapstand/kiosk/internal/interfaces"
)

// Monitor polls the dispense status of a started pour until a terminal
// state, cancellation, or the check budget runs out. Only one poll loop is
// active at a time; starting a new one disposes the previous handle.
type Monitor struct {
	gateway    interfaces.DispenseGateway
	logger     logger.Logger
	interval   time.Duration
	errBackoff time.Duration
	maxChecks  int

	mu      sync.Mutex
	current *Handle
}

// Handle is a cancellable subscription to one poll loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the loop and waits for it to exit.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

// Done is closed when the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func New(gateway interfaces.DispenseGateway, lgr logger.Logger, interval, errBackoff time.Duration, maxChecks int) *Monitor {
	if lgr == nil {
		lgr = logger.Noop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	if errBackoff <= 0 {
		errBackoff = 2 * time.Second
	}
	if maxChecks < 1 {
		maxChecks = 30
	}

	return &Monitor{
		gateway:    gateway,
		logger:     lgr,
		interval:   interval,
		errBackoff: errBackoff,
		maxChecks:  maxChecks,
	}
}

// Start launches a poll loop for orderNumber. apply receives every fetched
// update and returns true once the update is terminal; onTimeout fires if
// the check budget is exhausted first. A previously running loop is
// cancelled before the new one starts.
func (m *Monitor) Start(ctx context.Context, orderNumber string, apply func(interfaces.DispenseUpdate) bool, onTimeout func()) *Handle {
	m.mu.Lock()
	if m.current != nil {
		m.current.cancel()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	handle := &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.current = handle
	m.mu.Unlock()

	go m.run(loopCtx, orderNumber, apply, onTimeout, handle)
	return handle
}

// Cancel stops the active loop, if any.
func (m *Monitor) Cancel() {
	m.mu.Lock()
	current := m.current
	m.current = nil
	m.mu.Unlock()

	if current != nil {
		current.cancel()
	}
}

func (m *Monitor) run(ctx context.Context, orderNumber string, apply func(interfaces.DispenseUpdate) bool, onTimeout func(), handle *Handle) {
	defer close(handle.done)
	defer m.clear(handle)

	wait := m.interval
	for checks := 0; checks < m.maxChecks; checks++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		update, err := m.gateway.PourStatus(ctx, orderNumber)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn("status_poll_failed", "Dispense status fetch failed", orderNumber, map[string]interface{}{
				"error": err.Error(),
			})
			wait = m.errBackoff
			continue
		}
		wait = m.interval

		if apply(*update) {
			return
		}
	}

	m.logger.Error("status_poll_timeout", "Dispense status poll exhausted", orderNumber, map[string]interface{}{
		"checks": m.maxChecks,
	}, nil)
	onTimeout()
}

func (m *Monitor) clear(handle *Handle) {
	m.mu.Lock()
	if m.current == handle {
		m.current = nil
	}
	m.mu.Unlock()
}
