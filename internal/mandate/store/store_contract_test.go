package store

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"bureau/internal/mandate/models"
	"bureau/pkg/platform/sentinel"
)

// mandateStore is the method set every store implementation shares.
type mandateStore interface {
	MemberExists(ctx context.Context, memberID int64) (bool, error)
	LockMember(ctx context.Context, memberID int64) error
	FindMandate(ctx context.Context, memberID, mandateID int64) (*models.RoleMandate, error)
	FindOverlapping(ctx context.Context, q models.OverlapQuery) ([]*models.RoleMandate, error)
	CreateMandate(ctx context.Context, m *models.RoleMandate) error
	UpdateMandate(ctx context.Context, m *models.RoleMandate) error
	DeleteMandate(ctx context.Context, memberID, mandateID int64) error
	ListMandates(ctx context.Context, q models.ListQuery) ([]*models.RoleMandate, int, error)
	Ping(ctx context.Context) error
}

// storeContractSuite runs the same behavioural checks against each store.
// Concrete suites set store and seedMember in SetupTest.
type storeContractSuite struct {
	suite.Suite
	ctx        context.Context
	store      mandateStore
	seedMember func() int64
}

func (s *storeContractSuite) newMandate(memberID int64, role models.Role, start, end string) *models.RoleMandate {
	now := time.Now().UTC().Truncate(time.Second)
	m := &models.RoleMandate{
		MemberID:  memberID,
		Role:      role,
		StartDate: models.MustParseDate(start),
		EndDate:   models.MustParseDate(end),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.store.CreateMandate(s.ctx, m))
	s.Require().NotZero(m.ID)
	return m
}

func (s *storeContractSuite) TestMembers() {
	member := s.seedMember()

	ok, err := s.store.MemberExists(s.ctx, member)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.MemberExists(s.ctx, member+1000)
	s.Require().NoError(err)
	s.False(ok)

	s.NoError(s.store.LockMember(s.ctx, member))
	s.ErrorIs(s.store.LockMember(s.ctx, member+1000), sentinel.ErrNotFound)
	s.NoError(s.store.Ping(s.ctx))
}

func (s *storeContractSuite) TestCreateAndFind() {
	member := s.seedMember()
	other := s.seedMember()
	m := s.newMandate(member, models.RolePresident, "2024-01-01", "2024-12-31")

	found, err := s.store.FindMandate(s.ctx, member, m.ID)
	s.Require().NoError(err)
	s.Equal(m.Role, found.Role)
	s.Equal("2024-01-01", found.StartDate.String())
	s.Equal("2024-12-31", found.EndDate.String())
	s.True(found.IsActive)

	_, err = s.store.FindMandate(s.ctx, other, m.ID)
	s.ErrorIs(err, sentinel.ErrNotFound, "lookups are scoped to the owning member")

	err = s.store.CreateMandate(s.ctx, &models.RoleMandate{
		MemberID:  member + 1000,
		Role:      models.RoleMember,
		StartDate: models.MustParseDate("2024-01-01"),
		EndDate:   models.MustParseDate("2024-01-31"),
		IsActive:  true,
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *storeContractSuite) TestFindOverlapping() {
	member := s.seedMember()
	stored := s.newMandate(member, models.RoleTreasurer, "2024-01-01", "2024-12-31")
	inactive := s.newMandate(member, models.RoleTreasurer, "2024-03-01", "2024-03-31")
	inactive.IsActive = false
	s.Require().NoError(s.store.UpdateMandate(s.ctx, inactive))
	s.newMandate(member, models.RoleSecretary, "2024-01-01", "2024-12-31")

	query := func(start, end string, exclude int64) []*models.RoleMandate {
		found, err := s.store.FindOverlapping(s.ctx, models.OverlapQuery{
			MemberID:  member,
			Role:      models.RoleTreasurer,
			StartDate: models.MustParseDate(start),
			EndDate:   models.MustParseDate(end),
			ExcludeID: exclude,
		})
		s.Require().NoError(err)
		return found
	}

	s.Run("shared end day", func() {
		found := query("2024-12-31", "2025-06-30", 0)
		s.Require().Len(found, 1)
		s.Equal(stored.ID, found[0].ID)
	})
	s.Run("shared start day", func() {
		s.Len(query("2023-06-01", "2024-01-01", 0), 1)
	})
	s.Run("nested", func() {
		s.Len(query("2024-06-01", "2024-06-30", 0), 1)
	})
	s.Run("disjoint", func() {
		s.Empty(query("2025-01-01", "2025-12-31", 0))
	})
	s.Run("excluded id is ignored", func() {
		s.Empty(query("2024-06-01", "2024-06-30", stored.ID))
	})
}

func (s *storeContractSuite) TestUpdateAndDelete() {
	member := s.seedMember()
	m := s.newMandate(member, models.RoleMember, "2024-01-01", "2024-12-31")

	m.EndDate = models.MustParseDate("2024-06-30")
	m.IsActive = false
	m.UpdatedAt = m.UpdatedAt.Add(time.Hour)
	s.Require().NoError(s.store.UpdateMandate(s.ctx, m))

	found, err := s.store.FindMandate(s.ctx, member, m.ID)
	s.Require().NoError(err)
	s.Equal("2024-06-30", found.EndDate.String())
	s.False(found.IsActive)

	s.Require().NoError(s.store.DeleteMandate(s.ctx, member, m.ID))
	s.ErrorIs(s.store.DeleteMandate(s.ctx, member, m.ID), sentinel.ErrNotFound)
	_, err = s.store.FindMandate(s.ctx, member, m.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	missing := *m
	missing.ID = m.ID + 1000
	s.ErrorIs(s.store.UpdateMandate(s.ctx, &missing), sentinel.ErrNotFound)
}

func (s *storeContractSuite) TestListMandates() {
	member := s.seedMember()
	s.newMandate(member, models.RoleMember, "2022-01-01", "2022-12-31")
	s.newMandate(member, models.RoleMember, "2024-01-01", "2024-12-31")
	s.newMandate(member, models.RoleMember, "2023-01-01", "2023-12-31")
	s.newMandate(s.seedMember(), models.RoleMember, "2025-01-01", "2025-12-31")

	page, total, err := s.store.ListMandates(s.ctx, models.ListQuery{MemberID: member, Limit: 2})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Require().Len(page, 2)
	s.Equal("2024-01-01", page[0].StartDate.String())
	s.Equal("2023-01-01", page[1].StartDate.String())

	page, total, err = s.store.ListMandates(s.ctx, models.ListQuery{MemberID: member, Limit: 2, Offset: 2})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Require().Len(page, 1)
	s.Equal("2022-01-01", page[0].StartDate.String())

	page, total, err = s.store.ListMandates(s.ctx, models.ListQuery{MemberID: member, Limit: 2, Offset: 10})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Empty(page)
}
