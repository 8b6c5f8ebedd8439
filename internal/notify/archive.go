package notify

import (
	"context"
	"time"

	"github.com/polyinsider/tracker/internal/store"
)

// ArchiveSink persists every event to the alert log.
type ArchiveSink struct {
	log *store.AlertLog
	now func() time.Time
}

// NewArchiveSink creates a sink writing to log.
func NewArchiveSink(log *store.AlertLog) *ArchiveSink {
	return &ArchiveSink{log: log, now: time.Now}
}

func (a *ArchiveSink) Name() string { return "archive" }

func (a *ArchiveSink) Notify(ctx context.Context, ev store.Event) error {
	alert, err := store.NewAlert(ev, a.now())
	if err != nil {
		return err
	}
	return a.log.Record(ctx, alert)
}
