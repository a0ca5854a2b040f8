package status

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS chippy_status (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chippy_client_status (
	instance   TEXT NOT NULL,
	client_id  INTEGER NOT NULL,
	status     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (instance, client_id)
);`

// Postgres stores the same records as Redis in two tables.
type Postgres struct {
	db       *sql.DB
	instance string
}

// NewPostgres opens dsn and creates the tables if needed.
func NewPostgres(ctx context.Context, dsn, instance string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if instance == "" {
		instance = DefaultInstance()
	}
	return &Postgres{db: db, instance: instance}, nil
}

func (p *Postgres) setServer(ctx context.Context, value string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO chippy_status (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, Key, value)
	return err
}

func (p *Postgres) SetOnline(ctx context.Context) error {
	return p.setServer(ctx, Online)
}

func (p *Postgres) SetOffline(ctx context.Context) error {
	return p.setServer(ctx, Offline)
}

func (p *Postgres) SetClientStatus(ctx context.Context, clientID int, status string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO chippy_client_status (instance, client_id, status, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (instance, client_id)
		DO UPDATE SET status = EXCLUDED.status, updated_at = now()`,
		p.instance, clientID, status)
	return err
}

func (p *Postgres) IsClientInitialized(ctx context.Context, clientID int) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM chippy_client_status WHERE instance = $1 AND client_id = $2)`,
		p.instance, clientID).Scan(&exists)
	return exists, err
}

func (p *Postgres) ClientStatuses(ctx context.Context) (map[int]string, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT client_id, status FROM chippy_client_status WHERE instance = $1`, p.instance)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]string)
	for rows.Next() {
		var id int
		var s string
		if err := rows.Scan(&id, &s); err != nil {
			return nil, err
		}
		out[id] = s
	}
	return out, rows.Err()
}

func (p *Postgres) ServerStatus(ctx context.Context) (string, error) {
	var v string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM chippy_status WHERE key = $1`, Key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
func (p *Postgres) Close() error                   { return p.db.Close() }
