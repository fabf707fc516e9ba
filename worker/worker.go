// Package worker owns the process-level lifecycle of this module's
// background loops: the escalation scheduler and the notification
// dispatcher's delivery goroutine. Each loop is owned by its component
// (internal/escalation.Scheduler, internal/notify.Dispatcher); this
// package is just the single place a binary starts and stops both
// together.
package worker

import (
	"log"

	"github.com/civictech/grievance-core/internal/escalation"
	"github.com/civictech/grievance-core/internal/notify"
)

// Manager starts and stops every background loop the module runs.
type Manager struct {
	scheduler  *escalation.Scheduler
	dispatcher *notify.Dispatcher
}

func NewManager(scheduler *escalation.Scheduler, dispatcher *notify.Dispatcher) *Manager {
	return &Manager{scheduler: scheduler, dispatcher: dispatcher}
}

// Start launches the escalation scheduler's ticker loop and the
// notification dispatcher's delivery worker.
func (m *Manager) Start() {
	log.Println("[WORKER] starting background loops")
	m.dispatcher.Start()
	m.scheduler.Start()
}

// Stop halts both loops. Safe to call once per Start.
func (m *Manager) Stop() {
	log.Println("[WORKER] stopping background loops")
	m.scheduler.Stop()
	m.dispatcher.Stop()
}
