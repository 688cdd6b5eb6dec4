package notify

import (
	"context"
	"log"

	"armada/internal/domain"
)

// Notifier delivers out-of-band notifications. Delivery failures are the
// notifier's problem; callers treat notification as fire-and-forget.
type Notifier interface {
	RekapCreated(ctx context.Context, rekap domain.Rekap, recipients []domain.Actor) error
}

// LogNotifier writes notifications to the process log. It is the default
// when no webhook is configured.
type LogNotifier struct{}

func (LogNotifier) RekapCreated(_ context.Context, rekap domain.Rekap, recipients []domain.Actor) error {
	for _, a := range recipients {
		log.Printf("notify: rekap %s (%s .. %s, %d inspections) for %s (%s)",
			rekap.ID, rekap.StartDate, rekap.EndDate, rekap.TotalInspections, a.ID, a.Role)
	}
	return nil
}
