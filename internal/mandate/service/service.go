package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"bureau/internal/mandate/metrics"
	"bureau/internal/mandate/models"
	"bureau/internal/platform/middleware"
	dErrors "bureau/pkg/domain-errors"
	"bureau/pkg/platform/sentinel"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Store is the persistence contract for members' mandates. Methods return
// sentinel.ErrNotFound for missing rows.
type Store interface {
	MemberExists(ctx context.Context, memberID int64) (bool, error)
	// LockMember serializes concurrent writers of one member's mandates for
	// the rest of the enclosing transaction.
	LockMember(ctx context.Context, memberID int64) error
	FindMandate(ctx context.Context, memberID, mandateID int64) (*models.RoleMandate, error)
	FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]*models.RoleMandate, error)
	CreateMandate(ctx context.Context, m *models.RoleMandate) error
	UpdateMandate(ctx context.Context, m *models.RoleMandate) error
	DeleteMandate(ctx context.Context, memberID, mandateID int64) error
	ListMandates(ctx context.Context, q models.ListQuery) ([]*models.RoleMandate, int, error)
}

// CacheInvalidator removes cached read responses after a write.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) (int, error)
}

// Service orchestrates validation, the overlap check and cache invalidation
// around transactional mandate writes.
type Service struct {
	store   Store
	tx      MandateStoreTx
	cache   CacheInvalidator
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCache(c CacheInvalidator) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithClock overrides the timestamp source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New constructs a Service. store serves reads outside transactions; tx runs writes.
func New(store Store, tx MandateStoreTx, opts ...Option) *Service {
	s := &Service{store: store, tx: tx, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// MandateListPath is the URI fragment every cached listing of memberID contains.
func MandateListPath(memberID int64) string {
	return fmt.Sprintf("/members/%d/mandates", memberID)
}

// CheckOverlap reports whether an active mandate of the same member and role
// shares at least one day with [q.StartDate, q.EndDate], ignoring q.ExcludeID.
func CheckOverlap(ctx context.Context, store Store, q models.OverlapQuery) (bool, error) {
	found, err := store.FindOverlapping(ctx, q)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// List returns one page of a member's mandates, newest start date first.
func (s *Service) List(ctx context.Context, memberID int64, page, limit int) (*models.MandatePage, error) {
	if err := validatePaging(page, limit); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, memberID); err != nil {
		return nil, err
	}

	mandates, total, err := s.store.ListMandates(ctx, models.ListQuery{
		MemberID: memberID,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list mandates")
	}
	return &models.MandatePage{Mandates: mandates, Total: total, Page: page, Limit: limit}, nil
}

// Add validates input and inserts a mandate for memberID unless it overlaps an
// active mandate of the same role.
func (s *Service) Add(ctx context.Context, memberID int64, input models.MandateInput) (*models.RoleMandate, error) {
	start := time.Now()
	defer s.observe("create", start)

	validated, err := models.ValidateMandate(input)
	if err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, memberID); err != nil {
		return nil, err
	}

	var created *models.RoleMandate
	err = s.tx.RunInTx(WithTxMember(ctx, memberID), func(ctx context.Context, store Store) error {
		if err := store.LockMember(ctx, memberID); err != nil {
			return translateNotFound(err, "member not found")
		}

		conflict, err := CheckOverlap(ctx, store, models.OverlapQuery{
			MemberID:  memberID,
			Role:      validated.Role,
			StartDate: validated.StartDate,
			EndDate:   validated.EndDate,
		})
		if err != nil {
			return err
		}
		if conflict {
			s.incrementOverlapRejected()
			return dErrors.New(dErrors.CodeConflict, "mandate overlaps an existing active mandate")
		}

		now := s.now()
		m := &models.RoleMandate{
			MemberID:  memberID,
			Role:      validated.Role,
			StartDate: validated.StartDate,
			EndDate:   validated.EndDate,
			IsActive:  validated.IsActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := store.CreateMandate(ctx, m); err != nil {
			return translateNotFound(err, "member not found")
		}
		created = m
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, err, "failed to create mandate", "member_id", memberID)
	}

	s.afterWrite(ctx, "create", memberID, created.ID, "role", created.Role)
	return created, nil
}

// Update applies a partial update. A change of dates, role or a reactivation
// re-runs the overlap check against the mandate's other active mandates.
func (s *Service) Update(ctx context.Context, memberID, mandateID int64, input models.MandateInput) (*models.RoleMandate, error) {
	start := time.Now()
	defer s.observe("update", start)

	patch, err := models.ValidateMandateUpdate(input)
	if err != nil {
		return nil, err
	}

	var updated *models.RoleMandate
	err = s.tx.RunInTx(WithTxMember(ctx, memberID), func(ctx context.Context, store Store) error {
		if err := store.LockMember(ctx, memberID); err != nil {
			return translateNotFound(err, "mandate not found")
		}
		existing, err := store.FindMandate(ctx, memberID, mandateID)
		if err != nil {
			return translateNotFound(err, "mandate not found")
		}

		next := *existing
		next.Apply(patch)
		if err := models.CheckInterval(next.StartDate, next.EndDate); err != nil {
			return err
		}

		if needsOverlapCheck(existing, &next, patch) {
			conflict, err := CheckOverlap(ctx, store, models.OverlapQuery{
				MemberID:  memberID,
				Role:      next.Role,
				StartDate: next.StartDate,
				EndDate:   next.EndDate,
				ExcludeID: existing.ID,
			})
			if err != nil {
				return err
			}
			if conflict {
				s.incrementOverlapRejected()
				return dErrors.New(dErrors.CodeConflict, "update would overlap an existing active mandate")
			}
		}

		next.UpdatedAt = s.now()
		if err := store.UpdateMandate(ctx, &next); err != nil {
			return translateNotFound(err, "mandate not found")
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, err, "failed to update mandate", "member_id", memberID, "mandate_id", mandateID)
	}

	s.afterWrite(ctx, "update", memberID, updated.ID, "is_active", updated.IsActive)
	return updated, nil
}

// Delete removes a member's mandate.
func (s *Service) Delete(ctx context.Context, memberID, mandateID int64) error {
	start := time.Now()
	defer s.observe("delete", start)

	err := s.tx.RunInTx(WithTxMember(ctx, memberID), func(ctx context.Context, store Store) error {
		if err := store.LockMember(ctx, memberID); err != nil {
			return translateNotFound(err, "mandate not found")
		}
		if _, err := store.FindMandate(ctx, memberID, mandateID); err != nil {
			return translateNotFound(err, "mandate not found")
		}
		if err := store.DeleteMandate(ctx, memberID, mandateID); err != nil {
			return translateNotFound(err, "mandate not found")
		}
		return nil
	})
	if err != nil {
		return s.fail(ctx, err, "failed to delete mandate", "member_id", memberID, "mandate_id", mandateID)
	}

	s.afterWrite(ctx, "delete", memberID, mandateID)
	return nil
}

// needsOverlapCheck is true when the update can create a new overlap. Only an
// active result can conflict; it does when its interval moved, its role
// changed or it was reactivated.
func needsOverlapCheck(existing, next *models.RoleMandate, patch *models.MandatePatch) bool {
	if !next.IsActive {
		return false
	}
	if patch.TouchesDates() {
		return true
	}
	if patch.Role != nil && *patch.Role != existing.Role {
		return true
	}
	return patch.IsActive != nil && *patch.IsActive && !existing.IsActive
}

func validatePaging(page, limit int) error {
	var fields []dErrors.FieldError
	if page < 1 {
		fields = append(fields, dErrors.FieldError{Field: "page", Message: "page must be a positive integer"})
	}
	if limit < 1 || limit > MaxPageSize {
		fields = append(fields, dErrors.FieldError{Field: "limit", Message: fmt.Sprintf("limit must be between 1 and %d", MaxPageSize)})
	}
	// the offset (page-1)*limit must fit in an int
	if len(fields) == 0 && page-1 > math.MaxInt/limit {
		fields = append(fields, dErrors.FieldError{Field: "page", Message: "page is out of range"})
	}
	if len(fields) > 0 {
		return dErrors.NewValidation("invalid pagination", fields)
	}
	return nil
}

func (s *Service) requireMember(ctx context.Context, memberID int64) error {
	ok, err := s.store.MemberExists(ctx, memberID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load member")
	}
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "member not found")
	}
	return nil
}

// translateNotFound converts a store's not-found sentinel into a 404 domain error.
func translateNotFound(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, msg)
	}
	return err
}

// fail passes domain errors through and wraps everything else as internal.
// The transaction has already been rolled back when this runs.
func (s *Service) fail(ctx context.Context, err error, msg string, attrs ...any) error {
	if _, ok := dErrors.As(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out")
	}
	args := append([]any{"error", err, "request_id", middleware.GetRequestID(ctx)}, attrs...)
	s.logger.ErrorContext(ctx, msg, args...)
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// afterWrite runs once a write has committed: invalidate cached listings, then
// record the outcome.
func (s *Service) afterWrite(ctx context.Context, operation string, memberID, mandateID int64, attrs ...any) {
	s.invalidate(ctx, memberID)
	if s.metrics != nil {
		s.metrics.IncrementWrite(operation)
	}
	args := append([]any{
		"operation", operation,
		"member_id", memberID,
		"mandate_id", mandateID,
		"user_id", middleware.GetUserID(ctx),
		"request_id", middleware.GetRequestID(ctx),
	}, attrs...)
	s.logger.InfoContext(ctx, "mandate "+operation+"d", args...)
}

func (s *Service) invalidate(ctx context.Context, memberID int64) {
	if s.cache == nil {
		return
	}
	// The write is already committed; a failure here leaves stale entries
	// until they expire, so it is reported but not returned.
	removed, err := s.cache.Invalidate(ctx, MandateListPath(memberID))
	if err != nil {
		s.logger.ErrorContext(ctx, "mandate cache invalidation failed",
			"member_id", memberID,
			"error", err,
			"request_id", middleware.GetRequestID(ctx),
		)
		if s.metrics != nil {
			s.metrics.IncrementInvalidationFailure()
		}
		return
	}
	if s.metrics != nil {
		s.metrics.AddInvalidated(removed)
	}
}

func (s *Service) incrementOverlapRejected() {
	if s.metrics != nil {
		s.metrics.IncrementOverlapRejected()
	}
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveWorkflow(operation, start)
	}
}
