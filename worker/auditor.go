package worker

import (
	"github.com/vinayprograms/taskwire/event"
	"github.com/vinayprograms/taskwire/logging"
)

// Auditor is a universal listener that logs every event crossing the
// bus. It holds no locks and mutates nothing; removing it changes no
// task outcome.
type Auditor struct {
	log *logging.Logger
}

// NewAuditor creates an auditor.
func NewAuditor(log *logging.Logger) *Auditor {
	return &Auditor{log: log.WithComponent("audit")}
}

// Handle logs one event.
func (a *Auditor) Handle(evt event.Event) error {
	fields := map[string]interface{}{
		"topic": evt.Topic,
	}
	if id := evt.TaskID(); id != "" {
		fields["task_id"] = id
	}
	a.log.Info("event", fields)
	return nil
}
