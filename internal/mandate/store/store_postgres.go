package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"bureau/internal/mandate/models"
	"bureau/pkg/platform/sentinel"
)

const (
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

const mandateColumns = `id, member_id, role, start_date, end_date, is_active, created_at, updated_at`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists mandates in PostgreSQL.
type PostgresStore struct {
	db querier
}

// NewPostgres constructs a PostgreSQL-backed mandate store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

func (s *PostgresStore) MemberExists(ctx context.Context, memberID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM members WHERE id = $1)`, memberID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check member: %w", err)
	}
	return exists, nil
}

// LockMember takes a row lock on the member so concurrent mandate writes for
// the same member serialize until the surrounding transaction ends.
func (s *PostgresStore) LockMember(ctx context.Context, memberID int64) error {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM members WHERE id = $1 FOR UPDATE`, memberID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock member: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindMandate(ctx context.Context, memberID, mandateID int64) (*models.RoleMandate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+mandateColumns+` FROM role_mandates WHERE id = $1 AND member_id = $2`,
		mandateID, memberID)
	m, err := scanMandate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find mandate: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]*models.RoleMandate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mandateColumns+`
		FROM role_mandates
		WHERE member_id = $1
		  AND role = $2
		  AND is_active
		  AND id <> $3
		  AND start_date <= $5
		  AND end_date >= $4
		ORDER BY id`,
		q.MemberID, string(q.Role), q.ExcludeID, q.StartDate.String(), q.EndDate.String())
	if err != nil {
		return nil, fmt.Errorf("find overlapping mandates: %w", err)
	}
	defer rows.Close()
	return scanMandates(rows)
}

func (s *PostgresStore) CreateMandate(ctx context.Context, m *models.RoleMandate) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO role_mandates (member_id, role, start_date, end_date, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		m.MemberID, string(m.Role), m.StartDate.String(), m.EndDate.String(), m.IsActive, m.CreatedAt, m.UpdatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("create mandate: %w", translatePQ(err))
	}
	return nil
}

func (s *PostgresStore) UpdateMandate(ctx context.Context, m *models.RoleMandate) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE role_mandates
		SET role = $3, start_date = $4, end_date = $5, is_active = $6, updated_at = $7
		WHERE id = $1 AND member_id = $2`,
		m.ID, m.MemberID, string(m.Role), m.StartDate.String(), m.EndDate.String(), m.IsActive, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update mandate: %w", translatePQ(err))
	}
	return requireAffected(res)
}

func (s *PostgresStore) DeleteMandate(ctx context.Context, memberID, mandateID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM role_mandates WHERE id = $1 AND member_id = $2`, mandateID, memberID)
	if err != nil {
		return fmt.Errorf("delete mandate: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) ListMandates(ctx context.Context, q models.ListQuery) ([]*models.RoleMandate, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM role_mandates WHERE member_id = $1`, q.MemberID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count mandates: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+mandateColumns+`
		FROM role_mandates
		WHERE member_id = $1
		ORDER BY start_date DESC, id
		LIMIT $2 OFFSET $3`,
		q.MemberID, q.Limit, q.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list mandates: %w", err)
	}
	defer rows.Close()

	mandates, err := scanMandates(rows)
	if err != nil {
		return nil, 0, err
	}
	return mandates, total, nil
}

// Ping verifies the database connection when the store is not bound to a transaction.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if db, ok := s.db.(*sql.DB); ok {
		return db.PingContext(ctx)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMandate(row rowScanner) (*models.RoleMandate, error) {
	var (
		m          models.RoleMandate
		role       string
		start, end time.Time
	)
	if err := row.Scan(&m.ID, &m.MemberID, &role, &start, &end, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.Role = models.Role(role)
	m.StartDate = models.DateOf(start)
	m.EndDate = models.DateOf(end)
	return &m, nil
}

func scanMandates(rows *sql.Rows) ([]*models.RoleMandate, error) {
	out := []*models.RoleMandate{}
	for rows.Next() {
		m, err := scanMandate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan mandate: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mandates: %w", err)
	}
	return out, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// translatePQ maps constraint violations onto sentinels.
func translatePQ(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqForeignKeyViolation:
		return fmt.Errorf("%w: %s", sentinel.ErrNotFound, pqErr.Constraint)
	case pqCheckViolation:
		return fmt.Errorf("%w: %s", sentinel.ErrConflict, pqErr.Constraint)
	}
	return err
}
