package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

type Postgres struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// OpenPostgres opens dsn through the pgx driver.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return NewPostgres(db, logger), nil
}

func NewPostgres(db *sql.DB, logger *zap.SugaredLogger) *Postgres {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Postgres{
		db:     db,
		logger: logger,
	}
}

func (r *Postgres) DB() *sql.DB {
	return r.db
}

// Migrate brings the schema up to date.
func (r *Postgres) Migrate(ctx context.Context) error {
	goose.SetBaseFS(Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, r.db, MigrationsDir); err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

func (r *Postgres) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	query := `
		INSERT INTO journal (id, program, op, actor, tier, entry_index, amount, reward, at)
		VALUES ($1::text::uuid, $2, $3, $4, $5, $6, $7::text::numeric, $8::text::numeric, $9::text::numeric)
		RETURNING seq, recorded_at
	`

	err := r.db.QueryRowContext(ctx, query,
		e.ID.String(),
		e.Program,
		e.Op,
		e.Actor,
		e.Tier,
		e.Index,
		strconv.FormatUint(e.Amount, 10),
		strconv.FormatUint(e.Reward, 10),
		strconv.FormatUint(e.At, 10),
	).Scan(&e.Seq, &e.RecordedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to append journal entry: %w", err)
	}
	return e, nil
}

func (r *Postgres) List(ctx context.Context, f Filter) ([]Entry, string, error) {
	before, err := f.before()
	if err != nil {
		return nil, "", err
	}
	limit := f.limit()

	query := `
		SELECT seq, id::text, program, op, actor, tier, entry_index, amount::text, reward::text, at::text, recorded_at
		FROM journal
		WHERE ($1 = '' OR program = $1)
		AND ($2 = '' OR actor = $2)
		AND ($3 = 0 OR seq < $3)
		ORDER BY seq DESC
		LIMIT $4
	`

	rows, err := r.db.QueryContext(ctx, query, f.Program, f.Actor, before, limit+1) // +1 to check if there are more
	if err != nil {
		return nil, "", fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	var hasMore bool

	for rows.Next() {
		if len(entries) >= limit {
			hasMore = true
			break
		}

		var (
			e                      Entry
			id, amount, reward, at string
		)
		err := rows.Scan(
			&e.Seq,
			&id,
			&e.Program,
			&e.Op,
			&e.Actor,
			&e.Tier,
			&e.Index,
			&amount,
			&reward,
			&at,
			&e.RecordedAt,
		)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan journal entry: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, "", fmt.Errorf("journal entry %d: %w", e.Seq, err)
		}
		if e.Amount, err = strconv.ParseUint(amount, 10, 64); err != nil {
			return nil, "", fmt.Errorf("journal entry %d amount: %w", e.Seq, err)
		}
		if e.Reward, err = strconv.ParseUint(reward, 10, 64); err != nil {
			return nil, "", fmt.Errorf("journal entry %d reward: %w", e.Seq, err)
		}
		if e.At, err = strconv.ParseUint(at, 10, 64); err != nil {
			return nil, "", fmt.Errorf("journal entry %d time: %w", e.Seq, err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("row iteration error: %w", err)
	}

	r.logger.Debugw("listed journal", "program", f.Program, "actor", f.Actor, "count", len(entries))
	return entries, cursorOf(entries, hasMore), nil
}

// Health check
func (r *Postgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Postgres) Close() error {
	return r.db.Close()
}
