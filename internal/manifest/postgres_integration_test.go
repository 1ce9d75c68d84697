//go:build integration

package manifest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/spherical/pdf-fidelity/internal/config"
)

func TestStore_Postgres(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("pdf_fidelity_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	store, err := Open(ctx, config.DatabaseConfig{
		Driver: "postgres",
		Postgres: config.PostgresConfig{
			DSN:          fmt.Sprintf("postgres://test:test@%s:%s/pdf_fidelity_test?sslmode=disable", host, port.Port()),
			MaxOpenConns: 4,
			MaxIdleConns: 2,
		},
	})
	require.NoError(t, err)
	defer store.Close()

	first := sampleEntry("doc-pg")
	require.NoError(t, store.Put(ctx, first))
	second := sampleEntry("doc-pg")
	require.NoError(t, store.Put(ctx, second))

	latest, err := store.Latest(ctx, "doc-pg", testEngine)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)
	assert.Len(t, latest.Images, 2)

	records := AuditRecords("run-pg", testEngine, sampleOutcome())
	require.NoError(t, store.AppendAudit(ctx, records))
	got, err := store.AuditByRun(ctx, "run-pg")
	require.NoError(t, err)
	assert.Len(t, got, len(records))
}
