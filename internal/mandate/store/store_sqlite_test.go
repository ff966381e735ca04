package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"bureau/internal/mandate/models"
)

type SQLiteStoreSuite struct {
	storeContractSuite
	sqlite *SQLiteStore
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) SetupTest() {
	st, err := OpenSQLite(":memory:")
	s.Require().NoError(err)
	s.sqlite = st
	s.ctx = context.Background()
	s.store = st
	s.seedMember = func() int64 {
		id, err := st.AddMember(s.ctx, "Ada", "Lovelace")
		s.Require().NoError(err)
		return id
	}
}

func (s *SQLiteStoreSuite) TearDownTest() {
	s.NoError(s.sqlite.Close())
}

func (s *SQLiteStoreSuite) TestTransactionRollsBack() {
	member := s.seedMember()

	err := s.sqlite.Transaction(s.ctx, func(tx *SQLiteStore) error {
		m := &models.RoleMandate{
			MemberID:  member,
			Role:      models.RoleSecretary,
			StartDate: models.MustParseDate("2024-01-01"),
			EndDate:   models.MustParseDate("2024-12-31"),
			IsActive:  true,
		}
		s.Require().NoError(tx.CreateMandate(s.ctx, m))
		return context.Canceled
	})
	s.ErrorIs(err, context.Canceled)

	_, total, err := s.sqlite.ListMandates(s.ctx, models.ListQuery{MemberID: member, Limit: 10})
	s.Require().NoError(err)
	s.Zero(total)
}
