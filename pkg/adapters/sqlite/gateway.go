// Package sqlite implements ports.Gateway on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/domain"
)

// Every catalog field has its own typed column. Lists are stored as JSON
// arrays. A NULL column is a field that was never provided.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	id                  TEXT PRIMARY KEY,
	owner_id            TEXT NOT NULL,
	status              TEXT NOT NULL,
	budget_currency     TEXT NOT NULL,
	title               TEXT,
	organization        TEXT,
	registration_date   TIMESTAMP,
	hacking_start       TIMESTAMP,
	submission_deadline TIMESTAMP,
	total_budget        REAL,
	challenge_count     INTEGER,
	logo                TEXT,
	banner              TEXT,
	created_at          TIMESTAMP NOT NULL,
	updated_at          TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS challenges (
	event_id         TEXT NOT NULL REFERENCES events(id),
	order_index      INTEGER NOT NULL,
	prize_currency   TEXT NOT NULL,
	title            TEXT,
	description      TEXT,
	prize_amount     REAL,
	sponsors         TEXT,
	judging_criteria TEXT,
	resources        TEXT,
	updated_at       TIMESTAMP NOT NULL,
	PRIMARY KEY (event_id, order_index)
);
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	event_id   TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	phase      TEXT NOT NULL,
	data       BLOB,
	updated_at TIMESTAMP NOT NULL
);`

// Gateway implements ports.Gateway on SQLite.
// All access goes through a single connection, so transactions are serialized.
type Gateway struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// Open opens (or creates) the database at dsn and applies the schema.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, dsn string, opts ...Option) (*Gateway, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	g := &Gateway{
		db:     db,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Close releases the database.
func (g *Gateway) Close() error {
	return g.db.Close()
}

func (g *Gateway) CreateDraft(ctx context.Context, event *domain.Event, session *domain.SessionRecord) error {
	values, err := eventColumns.values(event.Fields)
	if err != nil {
		return err
	}
	status := event.Status
	if status == "" {
		status = domain.EventDraft
	}
	currency := event.BudgetCurrency
	if currency == "" {
		currency = domain.BudgetCurrency
	}

	args := append([]any{event.ID, event.OwnerID, string(status), currency}, values...)
	args = append(args, event.CreatedAt.UTC(), event.UpdatedAt.UTC())
	return g.tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, owner_id, status, budget_currency, `+eventColumns.names()+`, created_at, updated_at)
			 VALUES (?, ?, ?, ?, `+eventColumns.placeholders()+`, ?, ?)`,
			args...,
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return upsertSession(ctx, tx, session)
	})
}

func (g *Gateway) CommitParentFields(ctx context.Context, eventID string, fields domain.Fields) error {
	return g.tx(ctx, func(tx *sql.Tx) error {
		current, err := loadFields(ctx, tx, eventID)
		if err != nil {
			return err
		}
		current.Merge(fields)
		values, err := eventColumns.values(current)
		if err != nil {
			return err
		}
		args := append(values, g.now().UTC(), eventID)
		_, err = tx.ExecContext(ctx,
			`UPDATE events SET `+eventColumns.assignments()+`, updated_at = ? WHERE id = ?`,
			args...,
		)
		return err
	})
}

func (g *Gateway) UpsertChild(ctx context.Context, eventID string, orderIndex int, fields domain.Fields) error {
	values, err := challengeColumns.values(fields)
	if err != nil {
		return err
	}
	prize, _ := fields.Amount(domain.FieldPrizeAmount)

	return g.tx(ctx, func(tx *sql.Tx) error {
		parent, err := loadFields(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if budget, ok := parent.Amount(domain.FieldTotalBudget); ok {
			var others float64
			if err := tx.QueryRowContext(ctx,
				`SELECT COALESCE(SUM(prize_amount), 0) FROM challenges WHERE event_id = ? AND order_index <> ?`,
				eventID, orderIndex,
			).Scan(&others); err != nil {
				return fmt.Errorf("sum prizes: %w", err)
			}
			if others+prize > budget {
				return domain.ErrBudgetExceeded
			}
		}

		args := append([]any{eventID, orderIndex, domain.BudgetCurrency}, values...)
		args = append(args, g.now().UTC())
		_, err = tx.ExecContext(ctx,
			`INSERT INTO challenges (event_id, order_index, prize_currency, `+challengeColumns.names()+`, updated_at)
			 VALUES (?, ?, ?, `+challengeColumns.placeholders()+`, ?)
			 ON CONFLICT (event_id, order_index) DO UPDATE SET
			   prize_currency = excluded.prize_currency, `+challengeColumns.excluded()+`,
			   updated_at = excluded.updated_at`,
			args...,
		)
		if err != nil {
			return fmt.Errorf("upsert challenge: %w", err)
		}
		return nil
	})
}

func (g *Gateway) SaveSession(ctx context.Context, session *domain.SessionRecord) error {
	return upsertSession(ctx, g.db, session)
}

func (g *Gateway) LoadSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	var (
		rec   domain.SessionRecord
		phase string
	)
	err := g.db.QueryRowContext(ctx,
		`SELECT id, event_id, owner_id, phase, data, updated_at FROM sessions WHERE id = ?`, sessionID,
	).Scan(&rec.ID, &rec.EventID, &rec.OwnerID, &phase, &rec.Data, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	rec.Phase = domain.Phase(phase)
	return &rec, nil
}

func (g *Gateway) LoadEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	var (
		ev     domain.Event
		status string
	)
	cols := eventColumns.dests()
	dest := append([]any{&ev.ID, &ev.OwnerID, &status, &ev.BudgetCurrency}, cols...)
	dest = append(dest, &ev.CreatedAt, &ev.UpdatedAt)
	err := g.db.QueryRowContext(ctx,
		`SELECT id, owner_id, status, budget_currency, `+eventColumns.names()+`, created_at, updated_at
		 FROM events WHERE id = ?`, eventID,
	).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	ev.Status = domain.EventStatus(status)
	if ev.Fields, err = eventColumns.fields(cols); err != nil {
		return nil, err
	}

	rows, err := g.db.QueryContext(ctx,
		`SELECT order_index, prize_currency, `+challengeColumns.names()+`, updated_at
		 FROM challenges WHERE event_id = ? ORDER BY order_index`, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("load challenges: %w", err)
	}
	defer rows.Close()

	ev.Challenges = []domain.Challenge{}
	for rows.Next() {
		c := domain.Challenge{EventID: eventID}
		cols := challengeColumns.dests()
		dest := append([]any{&c.OrderIndex, &c.PrizeCurrency}, cols...)
		dest = append(dest, &c.UpdatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan challenge: %w", err)
		}
		if c.Fields, err = challengeColumns.fields(cols); err != nil {
			return nil, err
		}
		ev.Challenges = append(ev.Challenges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return &ev, nil
}

func (g *Gateway) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			g.logger.Warn("Rollback failed", "err", rbErr)
		}
		return err
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSession(ctx context.Context, db execer, s *domain.SessionRecord) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO sessions (id, event_id, owner_id, phase, data, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   event_id = excluded.event_id,
		   owner_id = excluded.owner_id,
		   phase = excluded.phase,
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		s.ID, s.EventID, s.OwnerID, string(s.Phase), s.Data, s.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func loadFields(ctx context.Context, tx *sql.Tx, eventID string) (domain.Fields, error) {
	cols := eventColumns.dests()
	err := tx.QueryRowContext(ctx, `SELECT `+eventColumns.names()+` FROM events WHERE id = ?`, eventID).Scan(cols...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load event fields: %w", err)
	}
	return eventColumns.fields(cols)
}
