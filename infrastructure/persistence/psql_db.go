package persistence

import (
	"database/sql"
	"fmt"

	"social-agent/infrastructure/configuration"

	_ "github.com/lib/pq"
)

// NewPostgreSQLDB opens the publish-history database. Callers treat a nil DB as
// "history disabled" and the service keeps running without it.
func NewPostgreSQLDB() (*sql.DB, error) {
	cfg := configuration.C.Database.Psql
	if cfg.Host == "" || cfg.Name == "" {
		return nil, fmt.Errorf("postgres not configured")
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
