package persistence

import (
	"context"
	"database/sql"
	"time"

	"social-agent/domain/model"
)

// PublishRepository persists one row per platform outcome using PostgreSQL.
type PublishRepository struct {
	db *sql.DB
}

func NewPublishRepository(db *sql.DB) *PublishRepository { return &PublishRepository{db: db} }

func (r *PublishRepository) InsertRecord(ctx context.Context, rec *model.PublishRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	q := `INSERT INTO publish_records (platform, asset_name, asset_kind, success, message, post_id, url, created_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`
	return r.db.QueryRowContext(ctx, q,
		rec.Platform, rec.AssetName, rec.AssetKind, rec.Success, rec.Message, rec.PostID, rec.URL, rec.CreatedAt,
	).Scan(&rec.ID)
}

func (r *PublishRepository) ListRecent(ctx context.Context, limit int) ([]*model.PublishRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, platform, asset_name, asset_kind, success, message, post_id, url, created_at
		 FROM publish_records ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*model.PublishRecord
	for rows.Next() {
		rec := &model.PublishRecord{}
		var postID, postURL sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Platform, &rec.AssetName, &rec.AssetKind, &rec.Success, &rec.Message, &postID, &postURL, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if postID.Valid {
			v := postID.String
			rec.PostID = &v
		}
		if postURL.Valid {
			v := postURL.String
			rec.URL = &v
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}
