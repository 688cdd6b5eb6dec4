package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"armada/internal/config"
	"armada/internal/domain"
	"armada/internal/engine/auth"
	"armada/internal/events"
	"armada/internal/notify"
	"armada/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Notify notify.Notifier
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Notify: notify.LogNotifier{},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// PreconditionError is a business-rule failure: the record exists and the
// actor is allowed, but current state or input does not permit the
// operation. Always recoverable by the caller.
type PreconditionError struct {
	Reason string
}

func (e PreconditionError) Error() string {
	return e.Reason
}

// ensureStatusTransition validates a status change independent of who
// requests it. Per-operation checks re-read status from the store.
func ensureStatusTransition(from, to domain.Status) error {
	switch {
	case from == domain.StatusDraft && to == domain.StatusSubmitted:
		return nil
	case from == domain.StatusSubmitted && to == domain.StatusApprovedByTraffic:
		return nil
	case from == domain.StatusApprovedByTraffic && to == domain.StatusApprovedByOperational:
		return nil
	case from == domain.StatusSubmitted && to == domain.StatusRejected:
		return nil
	}
	return PreconditionError{Reason: fmt.Sprintf("cannot move inspection from %s to %s", from, to)}
}

// InspectionInput carries the content fields a field officer controls.
type InspectionInput struct {
	VehicleCategory    domain.VehicleCategory
	VehicleNumber      string
	InspectionLocation string
	InspectionDate     string
	Documents          domain.Documents
	Special            domain.SpecialData
	EquipmentChecklist map[string]bool
	Notes              string
	Submit             bool
}

func (in InspectionInput) validate() error {
	if !in.VehicleCategory.IsValid() {
		return PreconditionError{Reason: fmt.Sprintf("unknown vehicle category %q", in.VehicleCategory)}
	}
	if strings.TrimSpace(in.VehicleNumber) == "" {
		return PreconditionError{Reason: "vehicle number is required"}
	}
	if _, err := time.Parse("2006-01-02", in.InspectionDate); err != nil {
		return PreconditionError{Reason: fmt.Sprintf("inspection date %q is not YYYY-MM-DD", in.InspectionDate)}
	}
	return in.validateSpecial()
}

// validateSpecial rejects variant data that does not match the declared
// vehicle category.
func (in InspectionInput) validateSpecial() error {
	mismatch := func(set string) error {
		return PreconditionError{Reason: fmt.Sprintf("special data %s does not match category %s", set, in.VehicleCategory)}
	}
	if in.Special.Tow != nil && in.VehicleCategory != domain.CategoryTow {
		return mismatch("tow")
	}
	if in.Special.Plaza != nil && in.VehicleCategory != domain.CategoryPlaza {
		return mismatch("plaza")
	}
	if in.Special.Security != nil && in.VehicleCategory != domain.CategorySecurity {
		return mismatch("security")
	}
	if in.Special.Rescue != nil && in.VehicleCategory != domain.CategoryRescue {
		return mismatch("rescue")
	}
	return nil
}

// checklistFor seeds an unticked checklist from the configured template
// when the caller did not supply one.
func (e Engine) checklistFor(in InspectionInput) map[string]bool {
	if in.EquipmentChecklist != nil {
		return in.EquipmentChecklist
	}
	if e.Config == nil {
		return nil
	}
	template := e.Config.ChecklistTemplate(string(in.VehicleCategory))
	if len(template) == 0 {
		return nil
	}
	checklist := make(map[string]bool, len(template))
	for _, item := range template {
		checklist[item] = false
	}
	return checklist
}

// CreateInspection files a new inspection as DRAFT, or directly as
// SUBMITTED when the payload requests it.
func (e Engine) CreateInspection(ctx context.Context, actor auth.Actor, in InspectionInput) (domain.Inspection, error) {
	if err := auth.Require(auth.OpCreateInspection, actor); err != nil {
		return domain.Inspection{}, err
	}
	if err := in.validate(); err != nil {
		return domain.Inspection{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	status := domain.StatusDraft
	if in.Submit {
		status = domain.StatusSubmitted
	}
	ins := domain.Inspection{
		ID:                 uuid.NewString(),
		OwnerID:            actor.ID,
		OwnerName:          actor.Name,
		VehicleCategory:    in.VehicleCategory,
		VehicleNumber:      strings.TrimSpace(in.VehicleNumber),
		InspectionLocation: in.InspectionLocation,
		InspectionDate:     in.InspectionDate,
		Documents:          in.Documents,
		Special:            in.Special,
		EquipmentChecklist: e.checklistFor(in),
		Notes:              in.Notes,
		Status:             status,
		NeedsApproval:      in.Submit,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Inspection{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, domain.Actor{ID: actor.ID, Name: actor.Name, Role: actor.Role}); err != nil {
		return domain.Inspection{}, err
	}
	if err := e.Repo.InsertInspection(ctx, tx, ins); err != nil {
		return domain.Inspection{}, fmt.Errorf("insert inspection: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "inspection.created", ins.ID, actor.ID, events.EventPayload{"status": ins.Status, "vehicle_category": ins.VehicleCategory}); err != nil {
		return domain.Inspection{}, err
	}
	if in.Submit {
		if err := e.Events.Append(ctx, tx, "inspection.submitted", ins.ID, actor.ID, nil); err != nil {
			return domain.Inspection{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Inspection{}, err
	}
	return ins, nil
}

// GetInspection returns one inspection. Existence is checked before any
// ownership concern, so unknown ids are NotFound for every caller.
func (e Engine) GetInspection(ctx context.Context, actor auth.Actor, id string) (domain.Inspection, error) {
	if err := auth.Require(auth.OpViewInspection, actor); err != nil {
		return domain.Inspection{}, err
	}
	return e.Repo.GetInspection(ctx, id)
}

func (e Engine) ListInspections(ctx context.Context, actor auth.Actor, filter repo.InspectionFilter, limit int, cursorCreatedAt, cursorID string) ([]domain.Inspection, error) {
	if err := auth.Require(auth.OpViewInspection, actor); err != nil {
		return nil, err
	}
	return e.Repo.ListInspections(ctx, filter, limit, cursorCreatedAt, cursorID)
}

// UpdateDraft rewrites the content fields of a draft owned by the actor,
// optionally submitting it in the same call. The gate is re-evaluated
// here on every call and again inside the conditional UPDATE.
func (e Engine) UpdateDraft(ctx context.Context, actor auth.Actor, id string, in InspectionInput) (domain.Inspection, error) {
	if err := auth.Require(auth.OpEditDraft, actor); err != nil {
		return domain.Inspection{}, err
	}
	ins, err := e.Repo.GetInspection(ctx, id)
	if err != nil {
		return domain.Inspection{}, err
	}
	if ins.OwnerID != actor.ID {
		return domain.Inspection{}, auth.OwnershipError{Operation: auth.OpEditDraft}
	}
	if ins.Status != domain.StatusDraft {
		return domain.Inspection{}, PreconditionError{Reason: fmt.Sprintf("inspection is %s, only drafts can be edited", ins.Status)}
	}
	if err := in.validate(); err != nil {
		return domain.Inspection{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	ins.VehicleCategory = in.VehicleCategory
	ins.VehicleNumber = strings.TrimSpace(in.VehicleNumber)
	ins.InspectionLocation = in.InspectionLocation
	ins.InspectionDate = in.InspectionDate
	ins.Documents = in.Documents
	ins.Special = in.Special
	if in.EquipmentChecklist != nil {
		ins.EquipmentChecklist = in.EquipmentChecklist
	}
	ins.Notes = in.Notes
	ins.UpdatedAt = now
	if in.Submit {
		if err := ensureStatusTransition(domain.StatusDraft, domain.StatusSubmitted); err != nil {
			return domain.Inspection{}, err
		}
		ins.Status = domain.StatusSubmitted
	}
	ins.NeedsApproval = ins.Status == domain.StatusSubmitted

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Inspection{}, err
	}
	defer tx.Rollback()

	affected, err := e.Repo.UpdateDraftContent(ctx, tx, ins)
	if err != nil {
		return domain.Inspection{}, fmt.Errorf("update draft: %w", err)
	}
	if affected == 0 {
		return domain.Inspection{}, PreconditionError{Reason: "inspection was modified concurrently"}
	}
	if err := e.Events.Append(ctx, tx, "inspection.updated", ins.ID, actor.ID, events.EventPayload{"status": ins.Status}); err != nil {
		return domain.Inspection{}, err
	}
	if in.Submit {
		if err := e.Events.Append(ctx, tx, "inspection.submitted", ins.ID, actor.ID, nil); err != nil {
			return domain.Inspection{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Inspection{}, err
	}
	return ins, nil
}

// ApproveTraffic signs off the traffic stage on a submitted inspection.
func (e Engine) ApproveTraffic(ctx context.Context, actor auth.Actor, id string, signature *string) (domain.Inspection, error) {
	if err := auth.Require(auth.OpApproveTraffic, actor); err != nil {
		return domain.Inspection{}, err
	}
	ins, err := e.Repo.GetInspection(ctx, id)
	if err != nil {
		return domain.Inspection{}, err
	}
	if err := ensureStatusTransition(ins.Status, domain.StatusApprovedByTraffic); err != nil {
		return domain.Inspection{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Inspection{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, domain.Actor{ID: actor.ID, Name: actor.Name, Role: actor.Role}); err != nil {
		return domain.Inspection{}, err
	}
	affected, err := e.Repo.MarkApprovedByTraffic(ctx, tx, id, actor.ID, now, signature, now)
	if err != nil {
		return domain.Inspection{}, fmt.Errorf("approve traffic: %w", err)
	}
	if affected == 0 {
		return domain.Inspection{}, PreconditionError{Reason: "inspection is no longer awaiting traffic approval"}
	}
	if err := e.Events.Append(ctx, tx, "inspection.approved_traffic", id, actor.ID, events.EventPayload{"approved_at": now}); err != nil {
		return domain.Inspection{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Inspection{}, err
	}
	return e.Repo.GetInspection(ctx, id)
}

// ApproveOperational signs off the final stage. The traffic stage is
// re-checked against the store, never trusted from the caller.
func (e Engine) ApproveOperational(ctx context.Context, actor auth.Actor, id string, signature *string) (domain.Inspection, error) {
	if err := auth.Require(auth.OpApproveOperational, actor); err != nil {
		return domain.Inspection{}, err
	}
	ins, err := e.Repo.GetInspection(ctx, id)
	if err != nil {
		return domain.Inspection{}, err
	}
	if err := ensureStatusTransition(ins.Status, domain.StatusApprovedByOperational); err != nil {
		return domain.Inspection{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Inspection{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, domain.Actor{ID: actor.ID, Name: actor.Name, Role: actor.Role}); err != nil {
		return domain.Inspection{}, err
	}
	affected, err := e.Repo.MarkApprovedByOperational(ctx, tx, id, actor.ID, now, signature, now)
	if err != nil {
		return domain.Inspection{}, fmt.Errorf("approve operational: %w", err)
	}
	if affected == 0 {
		return domain.Inspection{}, PreconditionError{Reason: "must be approved by Traffic first"}
	}
	if err := e.Events.Append(ctx, tx, "inspection.approved_operational", id, actor.ID, events.EventPayload{"approved_at": now}); err != nil {
		return domain.Inspection{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Inspection{}, err
	}
	return e.Repo.GetInspection(ctx, id)
}

// RejectTraffic rejects a submitted inspection with a mandatory note.
// There is no operational-stage rejection; once traffic approves, the
// only way forward is operational approval.
func (e Engine) RejectTraffic(ctx context.Context, actor auth.Actor, id, note string) (domain.Inspection, error) {
	if err := auth.Require(auth.OpRejectTraffic, actor); err != nil {
		return domain.Inspection{}, err
	}
	if strings.TrimSpace(note) == "" {
		return domain.Inspection{}, PreconditionError{Reason: "rejection note is required"}
	}
	ins, err := e.Repo.GetInspection(ctx, id)
	if err != nil {
		return domain.Inspection{}, err
	}
	if err := ensureStatusTransition(ins.Status, domain.StatusRejected); err != nil {
		return domain.Inspection{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Inspection{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, domain.Actor{ID: actor.ID, Name: actor.Name, Role: actor.Role}); err != nil {
		return domain.Inspection{}, err
	}
	affected, err := e.Repo.MarkRejected(ctx, tx, id, note, domain.StageTraffic, now, now)
	if err != nil {
		return domain.Inspection{}, fmt.Errorf("reject: %w", err)
	}
	if affected == 0 {
		return domain.Inspection{}, PreconditionError{Reason: "inspection is no longer awaiting traffic approval"}
	}
	if err := e.Events.Append(ctx, tx, "inspection.rejected", id, actor.ID, events.EventPayload{"stage": domain.StageTraffic, "note": note}); err != nil {
		return domain.Inspection{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Inspection{}, err
	}
	return e.Repo.GetInspection(ctx, id)
}

// DeleteDraft removes a draft owned by the actor.
func (e Engine) DeleteDraft(ctx context.Context, actor auth.Actor, id string) error {
	if err := auth.Require(auth.OpDeleteDraft, actor); err != nil {
		return err
	}
	ins, err := e.Repo.GetInspection(ctx, id)
	if err != nil {
		return err
	}
	if ins.OwnerID != actor.ID {
		return auth.OwnershipError{Operation: auth.OpDeleteDraft}
	}
	if ins.Status != domain.StatusDraft {
		return PreconditionError{Reason: fmt.Sprintf("inspection is %s, only drafts can be deleted", ins.Status)}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	affected, err := e.Repo.DeleteDraft(ctx, tx, id, actor.ID)
	if err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if affected == 0 {
		return PreconditionError{Reason: "inspection was modified concurrently"}
	}
	if err := e.Events.Append(ctx, tx, "inspection.deleted", id, actor.ID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// AttachPDF stores the reference to a rendered report. Only fully
// approved inspections accept one; repeat calls overwrite the reference
// so reports can be regenerated.
func (e Engine) AttachPDF(ctx context.Context, actor auth.Actor, id, ref string) (domain.Inspection, error) {
	if err := auth.Require(auth.OpAttachPDF, actor); err != nil {
		return domain.Inspection{}, err
	}
	if strings.TrimSpace(ref) == "" {
		return domain.Inspection{}, PreconditionError{Reason: "pdf reference is required"}
	}
	ins, err := e.Repo.GetInspection(ctx, id)
	if err != nil {
		return domain.Inspection{}, err
	}
	if ins.Status != domain.StatusApprovedByOperational {
		return domain.Inspection{}, PreconditionError{Reason: fmt.Sprintf("inspection is %s, report requires APPROVED_BY_OPERATIONAL", ins.Status)}
	}
	now := e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Inspection{}, err
	}
	defer tx.Rollback()

	affected, err := e.Repo.SetPDFReference(ctx, tx, id, ref, now, now)
	if err != nil {
		return domain.Inspection{}, fmt.Errorf("attach pdf: %w", err)
	}
	if affected == 0 {
		return domain.Inspection{}, PreconditionError{Reason: "inspection was modified concurrently"}
	}
	if err := e.Events.Append(ctx, tx, "inspection.pdf_attached", id, actor.ID, events.EventPayload{"reference": ref}); err != nil {
		return domain.Inspection{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Inspection{}, err
	}
	return e.Repo.GetInspection(ctx, id)
}

// AddComment appends to the inspection's comment log. Comments are
// append-only; there is no edit or delete.
func (e Engine) AddComment(ctx context.Context, actor auth.Actor, inspectionID, body string) (domain.Komentar, error) {
	if err := auth.Require(auth.OpAddComment, actor); err != nil {
		return domain.Komentar{}, err
	}
	if strings.TrimSpace(body) == "" {
		return domain.Komentar{}, PreconditionError{Reason: "comment body is required"}
	}
	if _, err := e.Repo.GetInspection(ctx, inspectionID); err != nil {
		return domain.Komentar{}, err
	}
	k := domain.Komentar{
		ID:           uuid.NewString(),
		InspectionID: inspectionID,
		SenderID:     actor.ID,
		SenderName:   actor.Name,
		SenderRole:   actor.Role,
		Body:         body,
		CreatedAt:    e.now().UTC().Format(time.RFC3339),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Komentar{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.EnsureActor(ctx, tx, domain.Actor{ID: actor.ID, Name: actor.Name, Role: actor.Role}); err != nil {
		return domain.Komentar{}, err
	}
	if err := e.Repo.InsertKomentar(ctx, tx, k); err != nil {
		return domain.Komentar{}, fmt.Errorf("insert comment: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "comment.added", inspectionID, actor.ID, events.EventPayload{"comment_id": k.ID}); err != nil {
		return domain.Komentar{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Komentar{}, err
	}
	return k, nil
}

func (e Engine) ListComments(ctx context.Context, actor auth.Actor, inspectionID string) ([]domain.Komentar, error) {
	if err := auth.Require(auth.OpViewInspection, actor); err != nil {
		return nil, err
	}
	if _, err := e.Repo.GetInspection(ctx, inspectionID); err != nil {
		return nil, err
	}
	return e.Repo.ListKomentar(ctx, inspectionID)
}

func (e Engine) TailEvents(ctx context.Context, limit int, inspectionID string) ([]domain.Event, error) {
	return e.Repo.ListEvents(ctx, limit, inspectionID)
}
