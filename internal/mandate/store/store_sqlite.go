package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bureau/internal/mandate/models"
	"bureau/pkg/platform/sentinel"
)

// memberRow is the minimal member record this service needs for ownership checks.
type memberRow struct {
	ID        int64 `gorm:"primaryKey;autoIncrement"`
	FirstName string
	LastName  string
	Email     *string `gorm:"uniqueIndex"`
	CreatedAt time.Time
}

func (memberRow) TableName() string { return "members" }

// mandateRow stores dates as ISO-8601 text so range predicates compare lexically.
type mandateRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	MemberID  int64     `gorm:"not null;index:idx_role_mandates_member_role,priority:1"`
	Member    memberRow `gorm:"foreignKey:MemberID;constraint:OnDelete:CASCADE"`
	Role      string    `gorm:"not null;index:idx_role_mandates_member_role,priority:2"`
	StartDate string    `gorm:"type:text;not null"`
	EndDate   string    `gorm:"type:text;not null"`
	IsActive  bool      `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (mandateRow) TableName() string { return "role_mandates" }

// SQLiteStore persists mandates through GORM on an embedded SQLite database.
// SQLite allows one writer at a time, so Transaction serializes callers.
type SQLiteStore struct {
	db *gorm.DB
	mu *sync.Mutex
}

// OpenSQLite opens (or creates) the database at path and migrates the schema.
// Use ":memory:" for an ephemeral database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=foreign_keys(1)"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// a single connection keeps ":memory:" databases alive and writes serialized
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&memberRow{}, &mandateRow{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db, mu: &sync.Mutex{}}, nil
}

// Transaction runs fn with a store bound to a single GORM transaction.
func (s *SQLiteStore) Transaction(ctx context.Context, fn func(tx *SQLiteStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SQLiteStore{db: tx, mu: s.mu})
	})
}

// AddMember inserts a member row and returns its id.
func (s *SQLiteStore) AddMember(ctx context.Context, firstName, lastName string) (int64, error) {
	row := memberRow{FirstName: firstName, LastName: lastName}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, fmt.Errorf("add member: %w", err)
	}
	return row.ID, nil
}

func (s *SQLiteStore) MemberExists(ctx context.Context, memberID int64) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&memberRow{}).Where("id = ?", memberID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check member: %w", err)
	}
	return count > 0, nil
}

// LockMember verifies the member still exists; write serialization comes from Transaction.
func (s *SQLiteStore) LockMember(ctx context.Context, memberID int64) error {
	ok, err := s.MemberExists(ctx, memberID)
	if err != nil {
		return err
	}
	if !ok {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) FindMandate(ctx context.Context, memberID, mandateID int64) (*models.RoleMandate, error) {
	var row mandateRow
	err := s.db.WithContext(ctx).
		Where("id = ? AND member_id = ?", mandateID, memberID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find mandate: %w", err)
	}
	return row.toModel()
}

func (s *SQLiteStore) FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]*models.RoleMandate, error) {
	var rows []mandateRow
	err := s.db.WithContext(ctx).
		Where("member_id = ? AND role = ? AND is_active = ?", q.MemberID, string(q.Role), true).
		Where("id <> ?", q.ExcludeID).
		Where("start_date <= ? AND end_date >= ?", q.EndDate.String(), q.StartDate.String()).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find overlapping mandates: %w", err)
	}
	return toModels(rows)
}

func (s *SQLiteStore) CreateMandate(ctx context.Context, m *models.RoleMandate) error {
	row := fromModel(m)
	if err := s.db.WithContext(ctx).Omit("Member").Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) || strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("create mandate: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("create mandate: %w", err)
	}
	m.ID = row.ID
	return nil
}

func (s *SQLiteStore) UpdateMandate(ctx context.Context, m *models.RoleMandate) error {
	res := s.db.WithContext(ctx).Model(&mandateRow{}).
		Where("id = ? AND member_id = ?", m.ID, m.MemberID).
		Updates(map[string]any{
			"role":       string(m.Role),
			"start_date": m.StartDate.String(),
			"end_date":   m.EndDate.String(),
			"is_active":  m.IsActive,
			"updated_at": m.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update mandate: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteMandate(ctx context.Context, memberID, mandateID int64) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND member_id = ?", mandateID, memberID).
		Delete(&mandateRow{})
	if res.Error != nil {
		return fmt.Errorf("delete mandate: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListMandates(ctx context.Context, q models.ListQuery) ([]*models.RoleMandate, int, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&mandateRow{}).
		Where("member_id = ?", q.MemberID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count mandates: %w", err)
	}

	var rows []mandateRow
	if err := s.db.WithContext(ctx).
		Where("member_id = ?", q.MemberID).
		Order("start_date DESC").Order("id").
		Limit(q.Limit).Offset(q.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list mandates: %w", err)
	}
	mandates, err := toModels(rows)
	if err != nil {
		return nil, 0, err
	}
	return mandates, int(total), nil
}

// Ping verifies the underlying database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func fromModel(m *models.RoleMandate) mandateRow {
	return mandateRow{
		ID:        m.ID,
		MemberID:  m.MemberID,
		Role:      string(m.Role),
		StartDate: m.StartDate.String(),
		EndDate:   m.EndDate.String(),
		IsActive:  m.IsActive,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (r mandateRow) toModel() (*models.RoleMandate, error) {
	start, err := models.ParseDate(r.StartDate)
	if err != nil {
		return nil, fmt.Errorf("mandate %d start date: %w", r.ID, err)
	}
	end, err := models.ParseDate(r.EndDate)
	if err != nil {
		return nil, fmt.Errorf("mandate %d end date: %w", r.ID, err)
	}
	return &models.RoleMandate{
		ID:        r.ID,
		MemberID:  r.MemberID,
		Role:      models.Role(r.Role),
		StartDate: start,
		EndDate:   end,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}, nil
}

func toModels(rows []mandateRow) ([]*models.RoleMandate, error) {
	out := make([]*models.RoleMandate, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
