package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"armada/internal/domain"
)

func (r Repo) InsertRekap(ctx context.Context, tx *sql.Tx, rk domain.Rekap) error {
	stats, err := json.Marshal(rk.Statistics)
	if err != nil {
		return fmt.Errorf("encode statistics: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO rekaps(id,period_type,start_date,end_date,vehicle_category,total_inspections,statistics_json,sender_id,sender_name,receiver_role,is_read,read_at,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rk.ID, rk.PeriodType, rk.StartDate, rk.EndDate, nullableCategoryPtr(rk.VehicleCategory), rk.TotalInspections, string(stats),
		rk.SenderID, nullable(rk.SenderName), rk.ReceiverRole, boolInt(rk.IsRead), nullableStringPtr(rk.ReadAt), rk.CreatedAt)
	return err
}

func scanRekap(row rowScanner) (domain.Rekap, error) {
	var (
		rk             domain.Rekap
		category, name sql.NullString
		readAt         sql.NullString
		statsJSON      string
		isRead         int
	)
	err := row.Scan(&rk.ID, &rk.PeriodType, &rk.StartDate, &rk.EndDate, &category, &rk.TotalInspections, &statsJSON,
		&rk.SenderID, &name, &rk.ReceiverRole, &isRead, &readAt, &rk.CreatedAt)
	if err == sql.ErrNoRows {
		return rk, ErrNotFound
	}
	if err != nil {
		return rk, err
	}
	if category.Valid {
		c := domain.VehicleCategory(category.String)
		rk.VehicleCategory = &c
	}
	if name.Valid {
		rk.SenderName = name.String
	}
	rk.IsRead = isRead != 0
	rk.ReadAt = stringPtr(readAt)
	if err := json.Unmarshal([]byte(statsJSON), &rk.Statistics); err != nil {
		return rk, fmt.Errorf("decode statistics for %s: %w", rk.ID, err)
	}
	return rk, nil
}

const rekapColumns = `id,period_type,start_date,end_date,vehicle_category,total_inspections,statistics_json,sender_id,sender_name,receiver_role,is_read,read_at,created_at`

func (r Repo) GetRekap(ctx context.Context, id string) (domain.Rekap, error) {
	return scanRekap(r.DB.QueryRowContext(ctx, `SELECT `+rekapColumns+` FROM rekaps WHERE id=?`, id))
}

// MarkRekapRead stamps read_at once. A rekap already read is left
// untouched so the first read timestamp survives repeat calls.
func (r Repo) MarkRekapRead(ctx context.Context, tx *sql.Tx, id, readAt string) (int64, error) {
	res, err := tx.ExecContext(ctx, `UPDATE rekaps SET is_read=1, read_at=? WHERE id=? AND is_read=0`, readAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) ListRekaps(ctx context.Context, receiverRole string, isRead *bool, limit int) ([]domain.Rekap, error) {
	query := `SELECT ` + rekapColumns + ` FROM rekaps WHERE 1=1`
	var args []any
	if receiverRole != "" {
		query += ` AND receiver_role=?`
		args = append(args, receiverRole)
	}
	if isRead != nil {
		query += ` AND is_read=?`
		args = append(args, boolInt(*isRead))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Rekap
	for rows.Next() {
		rk, err := scanRekap(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rk)
	}
	return res, rows.Err()
}

// approvedRangePredicate matches inspections whose traffic or operational
// approval time falls inside [start, end]. An inspection approved at both
// stages counts once.
const approvedRangePredicate = `status IN (?,?)
AND ((approved_at_traffic IS NOT NULL AND approved_at_traffic>=? AND approved_at_traffic<=?)
  OR (approved_at_operational IS NOT NULL AND approved_at_operational>=? AND approved_at_operational<=?))`

func approvedRangeArgs(start, end string) []any {
	return []any{domain.StatusApprovedByTraffic, domain.StatusApprovedByOperational, start, end, start, end}
}

func (r Repo) CountApprovedInRange(ctx context.Context, start, end string, category *domain.VehicleCategory) (int, error) {
	query := `SELECT COUNT(*) FROM inspections WHERE ` + approvedRangePredicate
	args := approvedRangeArgs(start, end)
	if category != nil {
		query += ` AND vehicle_category=?`
		args = append(args, *category)
	}
	var n int
	err := r.DB.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// ApprovedStatsByCategory returns the per-category breakdown for the same
// date-range predicate used by CountApprovedInRange.
func (r Repo) ApprovedStatsByCategory(ctx context.Context, start, end string, category *domain.VehicleCategory) (map[string]int, error) {
	query := `SELECT vehicle_category, COUNT(*) FROM inspections WHERE ` + approvedRangePredicate
	args := approvedRangeArgs(start, end)
	if category != nil {
		query += ` AND vehicle_category=?`
		args = append(args, *category)
	}
	query += ` GROUP BY vehicle_category`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	stats := map[string]int{}
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		stats[cat] = n
	}
	return stats, rows.Err()
}

func nullableCategoryPtr(v *domain.VehicleCategory) any {
	if v == nil {
		return nil
	}
	return string(*v)
}
