//go:build integration

package profile

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"ghostauth/internal/platform/postgres"
	"ghostauth/internal/trust/ports"
	"ghostauth/pkg/testutil/containers"
)

func TestPostgresProfileStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	require.NoError(t, postgres.Migrate(pg.DB))

	suite.Run(t, &ProfileStoreSuite{newStore: func(t *testing.T) ports.ProfileStore {
		_, err := pg.DB.Exec(`TRUNCATE profiles`)
		require.NoError(t, err)
		return NewPostgres(pg.DB)
	}})
}

func TestRedisProfileStoreAgainstRealRedis(t *testing.T) {
	rc := containers.NewRedisContainer(t)

	suite.Run(t, &ProfileStoreSuite{newStore: func(t *testing.T) ports.ProfileStore {
		require.NoError(t, rc.FlushAll(t.Context()))
		return NewRedisStore(rc.Client)
	}})
}
