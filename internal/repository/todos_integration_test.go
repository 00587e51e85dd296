//go:build integration

package repository

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"todo-lifecycle/internal/database"
)

type PostgresStoreSuite struct {
	suite.Suite
	db *sql.DB
}

func (s *PostgresStoreSuite) SetupSuite() {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		s.T().Skip("skipping postgres suite: DATABASE_URL is not set")
	}
	db, err := sql.Open("postgres", url)
	s.Require().NoError(err)
	if err := db.PingContext(context.Background()); err != nil {
		s.T().Skipf("skipping postgres suite: could not connect: %v", err)
	}
	s.db = db
	s.Require().NoError(database.MigrateOrCreateSchema(context.Background(), db))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.db != nil {
		_, _ = s.db.Exec(`TRUNCATE todos RESTART IDENTITY`)
		s.Require().NoError(s.db.Close())
	}
}

func (s *PostgresStoreSuite) TestContract() {
	runStoreContract(s.T(), func(t *testing.T) Store {
		_, err := s.db.Exec(`TRUNCATE todos RESTART IDENTITY`)
		require.NoError(t, err)
		return NewPostgresStore(s.db)
	})
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}
