package agent

import (
	"context"
	"sync"

	"github.com/tapstand/kiosk/internal/app/monitor"
	"github.com/tapstand/kiosk/internal/app/session"
	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

// Agent wires the session machine, the dispense monitor and a renderer for
// one kiosk run. The machine's methods must run on a single goroutine;
// front-flow operations and monitor callbacks both mutate it, so the agent
// serializes every machine call behind one mutex and hands only snapshots
// to the renderer.
type Agent struct {
	machine  *session.Machine
	monitor  *monitor.Monitor
	renderer interfaces.Renderer

	mu       sync.Mutex
	pourOnce sync.Once
	pourDone chan struct{}
}

// New registers the agent as the machine's dispense callback. The agent
// drives one pour per run; PourDone reports its completion.
func New(ctx context.Context, machine *session.Machine, mon *monitor.Monitor, renderer interfaces.Renderer) *Agent {
	a := &Agent{
		machine:  machine,
		monitor:  mon,
		renderer: renderer,
		pourDone: make(chan struct{}),
	}
	machine.OnDispenseStarted(func(orderNumber string, generation int) {
		a.startPoll(ctx, orderNumber, generation)
	})
	return a
}

// Do runs one machine operation under the agent lock and renders the
// resulting snapshot.
func (a *Agent) Do(op func(m *session.Machine) error) error {
	a.mu.Lock()
	err := op(a.machine)
	snap := a.machine.Snapshot()
	a.mu.Unlock()

	a.renderer.Render(snap)
	return err
}

// Snapshot returns the session under the agent lock.
func (a *Agent) Snapshot() domain.OrderSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.machine.Snapshot()
}

// PourDone is closed once the status poll for the run's pour has finished,
// by completion, error or timeout.
func (a *Agent) PourDone() <-chan struct{} {
	return a.pourDone
}

// startPoll runs inside Do with the lock already held, so it only arms the
// monitor; the callbacks take the lock themselves when updates arrive.
func (a *Agent) startPoll(ctx context.Context, orderNumber string, generation int) {
	handle := a.monitor.Start(ctx, orderNumber, func(update interfaces.DispenseUpdate) bool {
		a.mu.Lock()
		terminal := a.machine.ApplyDispenseUpdate(ctx, generation, update)
		snap := a.machine.Snapshot()
		a.mu.Unlock()

		a.renderer.Render(snap)
		return terminal
	}, func() {
		a.mu.Lock()
		a.machine.ApplyDispenseTimeout(ctx, generation)
		snap := a.machine.Snapshot()
		a.mu.Unlock()

		a.renderer.Render(snap)
	})

	go func() {
		<-handle.Done()
		a.pourOnce.Do(func() { close(a.pourDone) })
	}()
}
