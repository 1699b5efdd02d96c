package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Expected schema:
//
//	CREATE TABLE students (
//	    id          BIGSERIAL PRIMARY KEY,
//	    student_id  TEXT UNIQUE NOT NULL,
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
//	CREATE TABLE attendance (
//	    id          BIGSERIAL PRIMARY KEY,
//	    student_id  TEXT NOT NULL,
//	    timestamp   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//	    marked_by   TEXT DEFAULT 'self'
//	);
//	CREATE INDEX idx_att_student   ON attendance(student_id);
//	CREATE INDEX idx_att_timestamp ON attendance(timestamp);
//
//	CREATE TABLE admins (
//	    id            BIGSERIAL PRIMARY KEY,
//	    username      TEXT UNIQUE NOT NULL,
//	    password_hash TEXT NOT NULL
//	);

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

// Postgres implements Subjects, Presence, and Admins against one pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database at dsn and verifies the connection
// with a ping.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("registry: can't create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("registry: can't ping postgres: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (p *Postgres) Exists(ctx context.Context, subjectID string) (bool, error) {
	var one int
	err := p.pool.QueryRow(ctx,
		`SELECT 1 FROM students WHERE student_id = $1`,
		subjectID,
	).Scan(&one)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("registry: can't look up subject: %w", err)
	default:
		return true, nil
	}
}

func (p *Postgres) Register(ctx context.Context, subjectID string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO students (student_id, created_at) VALUES ($1, NOW())`,
		subjectID,
	)

	switch {
	case isDuplicate(err):
		return fmt.Errorf("%w: %q", ErrDuplicate, subjectID)
	case err != nil:
		return fmt.Errorf("registry: can't register subject: %w", err)
	default:
		return nil
	}
}

func (p *Postgres) List(ctx context.Context) ([]Subject, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT student_id, created_at FROM students ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("registry: can't list subjects: %w", err)
	}
	defer rows.Close()

	var result []Subject
	for rows.Next() {
		var subject Subject
		if err := rows.Scan(&subject.SubjectID, &subject.CreatedAt); err != nil {
			return nil, fmt.Errorf("registry: can't scan subject: %w", err)
		}
		result = append(result, subject)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: can't read subjects: %w", err)
	}

	return result, nil
}

func (p *Postgres) Record(ctx context.Context, subjectID string, at time.Time, markedBy string) error {
	if markedBy == "" {
		markedBy = "self"
	}

	if _, err := p.pool.Exec(ctx,
		`INSERT INTO attendance (student_id, timestamp, marked_by) VALUES ($1, $2, $3)`,
		subjectID, at, markedBy,
	); err != nil {
		return fmt.Errorf("registry: can't record presence: %w", err)
	}

	return nil
}

func (p *Postgres) Analytics(ctx context.Context) (Analytics, error) {
	todayStart := time.Now().UTC().Truncate(24 * time.Hour)

	var result Analytics
	if err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(DISTINCT student_id),
		        COUNT(*) FILTER (WHERE timestamp >= $1)
		 FROM attendance`,
		todayStart,
	).Scan(&result.TotalRecords, &result.UniqueSubjects, &result.TodayCount); err != nil {
		return Analytics{}, fmt.Errorf("registry: can't aggregate analytics: %w", err)
	}

	return result, nil
}

func (p *Postgres) Create(ctx context.Context, username, passwordHash string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO admins (username, password_hash) VALUES ($1, $2)`,
		username, passwordHash,
	)

	switch {
	case isDuplicate(err):
		return fmt.Errorf("%w: %q", ErrDuplicate, username)
	case err != nil:
		return fmt.Errorf("registry: can't create admin: %w", err)
	default:
		return nil
	}
}

func (p *Postgres) PasswordHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := p.pool.QueryRow(ctx,
		`SELECT password_hash FROM admins WHERE username = $1`,
		username,
	).Scan(&hash)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return "", fmt.Errorf("%w: %q", ErrNotFound, username)
	case err != nil:
		return "", fmt.Errorf("registry: can't look up admin: %w", err)
	default:
		return hash, nil
	}
}
