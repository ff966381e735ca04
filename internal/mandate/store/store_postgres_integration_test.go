//go:build integration

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bureau/internal/mandate/models"
	"bureau/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	storeContractSuite
	postgres *containers.PostgresContainer
	members  atomic.Int64
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "role_mandates", "members"))
	s.store = NewPostgres(s.postgres.DB)
	s.seedMember = func() int64 {
		n := s.members.Add(1)
		var id int64
		err := s.postgres.DB.QueryRowContext(s.ctx,
			`INSERT INTO members (first_name, last_name, email) VALUES ($1, $2, $3) RETURNING id`,
			"Member", fmt.Sprint(n), fmt.Sprintf("member%d@example.org", n),
		).Scan(&id)
		s.Require().NoError(err)
		return id
	}
}

// TestLockMemberSerializesWriters verifies a second transaction blocks on the
// member row until the first commits.
func (s *PostgresStoreSuite) TestLockMemberSerializesWriters() {
	member := s.seedMember()

	first, err := s.postgres.DB.BeginTx(s.ctx, nil)
	s.Require().NoError(err)
	s.Require().NoError(NewPostgresTx(first).LockMember(s.ctx, member))

	var (
		wg      sync.WaitGroup
		granted atomic.Bool
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, err := s.postgres.DB.BeginTx(s.ctx, nil)
		if err != nil {
			return
		}
		defer func() { _ = second.Rollback() }()
		if err := NewPostgresTx(second).LockMember(s.ctx, member); err == nil {
			granted.Store(true)
		}
	}()

	time.Sleep(200 * time.Millisecond)
	s.False(granted.Load(), "second writer must wait for the member lock")

	s.Require().NoError(first.Commit())
	wg.Wait()
	s.True(granted.Load())
}

func (s *PostgresStoreSuite) TestRollbackDiscardsWrites() {
	member := s.seedMember()

	tx, err := s.postgres.DB.BeginTx(s.ctx, &sql.TxOptions{})
	s.Require().NoError(err)
	err = NewPostgresTx(tx).CreateMandate(s.ctx, &models.RoleMandate{
		MemberID:  member,
		Role:      models.RoleTreasurer,
		StartDate: models.MustParseDate("2024-01-01"),
		EndDate:   models.MustParseDate("2024-12-31"),
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	})
	s.Require().NoError(err)
	s.Require().NoError(tx.Rollback())

	_, total, err := s.store.ListMandates(s.ctx, models.ListQuery{MemberID: member, Limit: 10})
	s.Require().NoError(err)
	s.Zero(total)
}
