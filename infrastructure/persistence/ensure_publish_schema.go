package persistence

import "database/sql"

// EnsurePublishSchema creates the publish history table when missing.
func EnsurePublishSchema(db *sql.DB) error {
	q := `CREATE TABLE IF NOT EXISTS publish_records (
		id BIGSERIAL PRIMARY KEY,
		platform TEXT NOT NULL,
		asset_name TEXT NOT NULL,
		asset_kind TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		post_id TEXT,
		url TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_publish_records_created_at ON publish_records (created_at DESC);`
	_, err := db.Exec(q)
	return err
}
