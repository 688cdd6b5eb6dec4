package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"armada/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const inspectionColumns = `id,owner_id,owner_name,vehicle_category,vehicle_number,inspection_location,inspection_date,documents_json,special_json,checklist_json,notes,status,needs_approval,approved_by_traffic_id,approved_at_traffic,traffic_signature,approved_by_operational_id,approved_at_operational,operational_signature,rejection_note,rejected_by_stage,rejected_at,pdf_reference,pdf_generated_at,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInspection(row rowScanner) (domain.Inspection, error) {
	var (
		ins                                          domain.Inspection
		ownerName, location, checklist, notes        sql.NullString
		trafficID, trafficAt, trafficSig             sql.NullString
		operationalID, operationalAt, operationalSig sql.NullString
		rejectionNote, rejectedStage, rejectedAt     sql.NullString
		pdfRef, pdfAt                                sql.NullString
		documentsJSON, specialJSON                   string
		needsApproval                                int
	)
	err := row.Scan(&ins.ID, &ins.OwnerID, &ownerName, &ins.VehicleCategory, &ins.VehicleNumber, &location,
		&ins.InspectionDate, &documentsJSON, &specialJSON, &checklist, &notes, &ins.Status, &needsApproval,
		&trafficID, &trafficAt, &trafficSig, &operationalID, &operationalAt, &operationalSig,
		&rejectionNote, &rejectedStage, &rejectedAt, &pdfRef, &pdfAt, &ins.CreatedAt, &ins.UpdatedAt)
	if err == sql.ErrNoRows {
		return ins, ErrNotFound
	}
	if err != nil {
		return ins, err
	}
	if ownerName.Valid {
		ins.OwnerName = ownerName.String
	}
	if location.Valid {
		ins.InspectionLocation = location.String
	}
	if notes.Valid {
		ins.Notes = notes.String
	}
	ins.NeedsApproval = needsApproval != 0
	if err := json.Unmarshal([]byte(documentsJSON), &ins.Documents); err != nil {
		return ins, fmt.Errorf("decode documents for %s: %w", ins.ID, err)
	}
	if err := json.Unmarshal([]byte(specialJSON), &ins.Special); err != nil {
		return ins, fmt.Errorf("decode special data for %s: %w", ins.ID, err)
	}
	if checklist.Valid && checklist.String != "" {
		if err := json.Unmarshal([]byte(checklist.String), &ins.EquipmentChecklist); err != nil {
			return ins, fmt.Errorf("decode checklist for %s: %w", ins.ID, err)
		}
	}
	ins.ApprovedByTrafficID = stringPtr(trafficID)
	ins.ApprovedAtTraffic = stringPtr(trafficAt)
	ins.TrafficSignature = stringPtr(trafficSig)
	ins.ApprovedByOperationalID = stringPtr(operationalID)
	ins.ApprovedAtOperational = stringPtr(operationalAt)
	ins.OperationalSignature = stringPtr(operationalSig)
	ins.RejectionNote = stringPtr(rejectionNote)
	if rejectedStage.Valid {
		stage := domain.RejectionStage(rejectedStage.String)
		ins.RejectedByStage = &stage
	}
	ins.RejectedAt = stringPtr(rejectedAt)
	ins.PDFReference = stringPtr(pdfRef)
	ins.PDFGeneratedAt = stringPtr(pdfAt)
	return ins, nil
}

func encodeInspectionBlobs(ins domain.Inspection) (documents, special string, checklist *string, err error) {
	docs, err := json.Marshal(ins.Documents)
	if err != nil {
		return "", "", nil, fmt.Errorf("encode documents: %w", err)
	}
	spec, err := json.Marshal(ins.Special)
	if err != nil {
		return "", "", nil, fmt.Errorf("encode special data: %w", err)
	}
	if ins.EquipmentChecklist != nil {
		data, err := json.Marshal(ins.EquipmentChecklist)
		if err != nil {
			return "", "", nil, fmt.Errorf("encode checklist: %w", err)
		}
		s := string(data)
		checklist = &s
	}
	return string(docs), string(spec), checklist, nil
}

func (r Repo) InsertInspection(ctx context.Context, tx *sql.Tx, ins domain.Inspection) error {
	documents, special, checklist, err := encodeInspectionBlobs(ins)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO inspections(`+inspectionColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		ins.ID, ins.OwnerID, nullable(ins.OwnerName), ins.VehicleCategory, ins.VehicleNumber, nullable(ins.InspectionLocation),
		ins.InspectionDate, documents, special, nullableStringPtr(checklist), nullable(ins.Notes), ins.Status, boolInt(ins.NeedsApproval),
		nullableStringPtr(ins.ApprovedByTrafficID), nullableStringPtr(ins.ApprovedAtTraffic), nullableStringPtr(ins.TrafficSignature),
		nullableStringPtr(ins.ApprovedByOperationalID), nullableStringPtr(ins.ApprovedAtOperational), nullableStringPtr(ins.OperationalSignature),
		nullableStringPtr(ins.RejectionNote), nullableStagePtr(ins.RejectedByStage), nullableStringPtr(ins.RejectedAt),
		nullableStringPtr(ins.PDFReference), nullableStringPtr(ins.PDFGeneratedAt), ins.CreatedAt, ins.UpdatedAt)
	return err
}

func (r Repo) GetInspection(ctx context.Context, id string) (domain.Inspection, error) {
	return scanInspection(r.DB.QueryRowContext(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id=?`, id))
}

func (r Repo) GetInspectionTx(ctx context.Context, tx *sql.Tx, id string) (domain.Inspection, error) {
	return scanInspection(tx.QueryRowContext(ctx, `SELECT `+inspectionColumns+` FROM inspections WHERE id=?`, id))
}

// UpdateDraftContent rewrites the editable fields of a draft. The WHERE
// clause re-checks status and ownership so a concurrent submit loses the
// race cleanly; zero rows affected means the draft is gone or no longer
// editable.
func (r Repo) UpdateDraftContent(ctx context.Context, tx *sql.Tx, ins domain.Inspection) (int64, error) {
	documents, special, checklist, err := encodeInspectionBlobs(ins)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE inspections SET vehicle_category=?, vehicle_number=?, inspection_location=?, inspection_date=?, documents_json=?, special_json=?, checklist_json=?, notes=?, status=?, needs_approval=?, updated_at=?
WHERE id=? AND status=? AND owner_id=?`,
		ins.VehicleCategory, ins.VehicleNumber, nullable(ins.InspectionLocation), ins.InspectionDate,
		documents, special, nullableStringPtr(checklist), nullable(ins.Notes), ins.Status, boolInt(ins.NeedsApproval), ins.UpdatedAt,
		ins.ID, domain.StatusDraft, ins.OwnerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkApprovedByTraffic advances SUBMITTED to APPROVED_BY_TRAFFIC.
func (r Repo) MarkApprovedByTraffic(ctx context.Context, tx *sql.Tx, id, approverID, approvedAt string, signature *string, updatedAt string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE inspections SET status=?, needs_approval=0, approved_by_traffic_id=?, approved_at_traffic=?, traffic_signature=?, updated_at=?
WHERE id=? AND status=?`,
		domain.StatusApprovedByTraffic, approverID, approvedAt, nullableStringPtr(signature), updatedAt,
		id, domain.StatusSubmitted)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkApprovedByOperational advances APPROVED_BY_TRAFFIC to APPROVED_BY_OPERATIONAL.
func (r Repo) MarkApprovedByOperational(ctx context.Context, tx *sql.Tx, id, approverID, approvedAt string, signature *string, updatedAt string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE inspections SET status=?, approved_by_operational_id=?, approved_at_operational=?, operational_signature=?, updated_at=?
WHERE id=? AND status=?`,
		domain.StatusApprovedByOperational, approverID, approvedAt, nullableStringPtr(signature), updatedAt,
		id, domain.StatusApprovedByTraffic)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkRejected moves SUBMITTED to REJECTED at the traffic stage.
func (r Repo) MarkRejected(ctx context.Context, tx *sql.Tx, id, note string, stage domain.RejectionStage, rejectedAt, updatedAt string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE inspections SET status=?, needs_approval=0, rejection_note=?, rejected_by_stage=?, rejected_at=?, updated_at=?
WHERE id=? AND status=?`,
		domain.StatusRejected, note, stage, rejectedAt, updatedAt,
		id, domain.StatusSubmitted)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SetPDFReference stores the rendered report reference. Only fully
// approved inspections accept one; overwriting is allowed.
func (r Repo) SetPDFReference(ctx context.Context, tx *sql.Tx, id, ref, generatedAt, updatedAt string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE inspections SET pdf_reference=?, pdf_generated_at=?, updated_at=?
WHERE id=? AND status=?`,
		ref, generatedAt, updatedAt, id, domain.StatusApprovedByOperational)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteDraft removes a draft owned by the given actor.
func (r Repo) DeleteDraft(ctx context.Context, tx *sql.Tx, id, ownerID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM inspections WHERE id=? AND status=? AND owner_id=?`,
		id, domain.StatusDraft, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type InspectionFilter struct {
	Status          string
	VehicleCategory string
	OwnerID         string
	NeedsApproval   *bool
}

func (r Repo) ListInspections(ctx context.Context, filter InspectionFilter, limit int, cursorCreatedAt, cursorID string) ([]domain.Inspection, error) {
	clauses := []string{"1=1"}
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, filter.Status)
	}
	if filter.VehicleCategory != "" {
		clauses = append(clauses, "vehicle_category=?")
		args = append(args, filter.VehicleCategory)
	}
	if filter.OwnerID != "" {
		clauses = append(clauses, "owner_id=?")
		args = append(args, filter.OwnerID)
	}
	if filter.NeedsApproval != nil {
		clauses = append(clauses, "needs_approval=?")
		args = append(args, boolInt(*filter.NeedsApproval))
	}
	if cursorCreatedAt != "" && cursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, cursorCreatedAt, cursorCreatedAt, cursorID)
	}
	query := `SELECT ` + inspectionColumns + ` FROM inspections WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Inspection
	for rows.Next() {
		ins, err := scanInspection(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, ins)
	}
	return res, rows.Err()
}

func (r Repo) ListEvents(ctx context.Context, limit int, inspectionID string) ([]domain.Event, error) {
	query := `SELECT id,ts,type,COALESCE(inspection_id,''),actor_id,payload_json FROM events`
	var args []any
	if inspectionID != "" {
		query += ` WHERE inspection_id=?`
		args = append(args, inspectionID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.InspectionID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// EventsAfter returns up to limit events with id greater than afterID, oldest first.
func (r Repo) EventsAfter(ctx context.Context, limit int, afterID int64) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,COALESCE(inspection_id,''),actor_id,payload_json FROM events WHERE id>? ORDER BY id ASC LIMIT ?`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.InspectionID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) LatestEventID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM events`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func (r Repo) GetWebhookCursor(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(ctx, `SELECT last_event_id FROM webhook_cursors WHERE name=?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return id, err
}

func (r Repo) SetWebhookCursor(ctx context.Context, name string, lastEventID int64) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO webhook_cursors(name,last_event_id) VALUES (?,?)
ON CONFLICT(name) DO UPDATE SET last_event_id=excluded.last_event_id`, name, lastEventID)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableStagePtr(v *domain.RejectionStage) any {
	if v == nil {
		return nil
	}
	return string(*v)
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
