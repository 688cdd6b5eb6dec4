package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"armada/internal/domain"
	"armada/internal/engine/auth"
	"armada/internal/events"
)

// RekapInput describes the period an aggregate report should cover. Any
// receiver hint from the caller is ignored; rekaps always go to
// operational managers.
type RekapInput struct {
	PeriodType      domain.PeriodType
	StartDate       string
	EndDate         string
	VehicleCategory *domain.VehicleCategory
}

func (in RekapInput) validate() error {
	if !in.PeriodType.IsValid() {
		return PreconditionError{Reason: fmt.Sprintf("unknown period type %q", in.PeriodType)}
	}
	start, err := time.Parse("2006-01-02", in.StartDate)
	if err != nil {
		return PreconditionError{Reason: fmt.Sprintf("start date %q is not YYYY-MM-DD", in.StartDate)}
	}
	end, err := time.Parse("2006-01-02", in.EndDate)
	if err != nil {
		return PreconditionError{Reason: fmt.Sprintf("end date %q is not YYYY-MM-DD", in.EndDate)}
	}
	if end.Before(start) {
		return PreconditionError{Reason: "end date is before start date"}
	}
	if in.VehicleCategory != nil && !in.VehicleCategory.IsValid() {
		return PreconditionError{Reason: fmt.Sprintf("unknown vehicle category %q", *in.VehicleCategory)}
	}
	return nil
}

// CreateRekap snapshots the count of approved inspections in the period.
// An inspection counts when either approval timestamp falls inside the
// range; the end date is inclusive through end of day.
func (e Engine) CreateRekap(ctx context.Context, actor auth.Actor, in RekapInput) (domain.Rekap, error) {
	if err := auth.Require(auth.OpCreateRekap, actor); err != nil {
		return domain.Rekap{}, err
	}
	if err := in.validate(); err != nil {
		return domain.Rekap{}, err
	}
	startTS := in.StartDate + "T00:00:00Z"
	endTS := in.EndDate + "T23:59:59Z"
	total, err := e.Repo.CountApprovedInRange(ctx, startTS, endTS, in.VehicleCategory)
	if err != nil {
		return domain.Rekap{}, fmt.Errorf("count approved: %w", err)
	}
	stats, err := e.Repo.ApprovedStatsByCategory(ctx, startTS, endTS, in.VehicleCategory)
	if err != nil {
		return domain.Rekap{}, fmt.Errorf("aggregate stats: %w", err)
	}
	rk := domain.Rekap{
		ID:               uuid.NewString(),
		PeriodType:       in.PeriodType,
		StartDate:        in.StartDate,
		EndDate:          in.EndDate,
		VehicleCategory:  in.VehicleCategory,
		TotalInspections: total,
		Statistics:       stats,
		SenderID:         actor.ID,
		SenderName:       actor.Name,
		ReceiverRole:     domain.RoleManagerOperational,
		CreatedAt:        e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Rekap{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, domain.Actor{ID: actor.ID, Name: actor.Name, Role: actor.Role}); err != nil {
		return domain.Rekap{}, err
	}
	if err := e.Repo.InsertRekap(ctx, tx, rk); err != nil {
		return domain.Rekap{}, fmt.Errorf("insert rekap: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "rekap.created", "", actor.ID, events.EventPayload{"rekap_id": rk.ID, "total": total}); err != nil {
		return domain.Rekap{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Rekap{}, err
	}
	e.notifyRekap(ctx, rk)
	return rk, nil
}

// notifyRekap is fire-and-forget: a failed delivery never fails the
// create that triggered it.
func (e Engine) notifyRekap(ctx context.Context, rk domain.Rekap) {
	if e.Notify == nil {
		return
	}
	recipients, err := e.Repo.ListActorsByRole(ctx, rk.ReceiverRole)
	if err != nil {
		log.Printf("rekap %s: resolve recipients failed: %v", rk.ID, err)
		return
	}
	if err := e.Notify.RekapCreated(ctx, rk, recipients); err != nil {
		log.Printf("rekap %s: notify failed: %v", rk.ID, err)
	}
}

// MarkRekapRead marks a rekap as read. Repeat calls are no-ops that keep
// the original read timestamp.
func (e Engine) MarkRekapRead(ctx context.Context, actor auth.Actor, id string) (domain.Rekap, error) {
	if err := auth.Require(auth.OpMarkRekapRead, actor); err != nil {
		return domain.Rekap{}, err
	}
	rk, err := e.Repo.GetRekap(ctx, id)
	if err != nil {
		return domain.Rekap{}, err
	}
	if rk.IsRead {
		return rk, nil
	}
	now := e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Rekap{}, err
	}
	defer tx.Rollback()

	affected, err := e.Repo.MarkRekapRead(ctx, tx, id, now)
	if err != nil {
		return domain.Rekap{}, fmt.Errorf("mark read: %w", err)
	}
	if affected > 0 {
		if err := e.Events.Append(ctx, tx, "rekap.read", "", actor.ID, events.EventPayload{"rekap_id": id}); err != nil {
			return domain.Rekap{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Rekap{}, err
	}
	return e.Repo.GetRekap(ctx, id)
}

func (e Engine) ListRekaps(ctx context.Context, actor auth.Actor, isRead *bool, limit int) ([]domain.Rekap, error) {
	if err := auth.Require(auth.OpListRekaps, actor); err != nil {
		return nil, err
	}
	return e.Repo.ListRekaps(ctx, string(domain.RoleManagerOperational), isRead, limit)
}
