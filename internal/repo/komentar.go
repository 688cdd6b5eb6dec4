package repo

import (
	"context"
	"database/sql"

	"armada/internal/domain"
)

func (r Repo) InsertKomentar(ctx context.Context, tx *sql.Tx, k domain.Komentar) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO komentar(id,inspection_id,sender_id,sender_name,sender_role,body,created_at) VALUES (?,?,?,?,?,?,?)`,
		k.ID, k.InspectionID, k.SenderID, nullable(k.SenderName), k.SenderRole, k.Body, k.CreatedAt)
	return err
}

func (r Repo) ListKomentar(ctx context.Context, inspectionID string) ([]domain.Komentar, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,inspection_id,sender_id,COALESCE(sender_name,''),sender_role,body,created_at FROM komentar WHERE inspection_id=? ORDER BY created_at ASC, id ASC`, inspectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Komentar
	for rows.Next() {
		var k domain.Komentar
		if err := rows.Scan(&k.ID, &k.InspectionID, &k.SenderID, &k.SenderName, &k.SenderRole, &k.Body, &k.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, k)
	}
	return res, rows.Err()
}
