package snapshot

import (
	"cmp"
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docqa/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docqa/pkg/postgres"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	host := os.Getenv("TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("skipping integration test: TEST_POSTGRES_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("TEST_POSTGRES_PORT"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, config.PostgresConfig{
		Host:         host,
		Port:         cmp.Or(port, 5432),
		Database:     cmp.Or(os.Getenv("TEST_POSTGRES_DB"), "docqa_test"),
		User:         cmp.Or(os.Getenv("TEST_POSTGRES_USER"), "docqa"),
		Password:     cmp.Or(os.Getenv("TEST_POSTGRES_PASSWORD"), "localdev"),
		SSLMode:      "disable",
		MaxOpenConns: 2,
	})
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, _ = db.DB.Exec(`DROP TABLE IF EXISTS analytics_snapshots`)
	s := NewStore(db)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	latest, err := s.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	for i := range 3 {
		require.NoError(t, s.SaveSnapshot(ctx, analytics.AggregatedStats{TotalQueries: int64(i + 1)}))
		time.Sleep(5 * time.Millisecond)
	}

	latest, err = s.LatestSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, int64(3), latest.TotalQueries)

	snaps, err := s.ListSnapshots(ctx, 2)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, int64(3), snaps[0].TotalQueries)
	assert.Equal(t, int64(2), snaps[1].TotalQueries)
}

type staticStats struct{ n int64 }

func (s staticStats) Stats() analytics.AggregatedStats {
	return analytics.AggregatedStats{TotalQueries: s.n}
}

func TestPeriodicSaveWritesFinalSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	s.StartPeriodicSave(ctx, staticStats{n: 7}, time.Hour)
	cancel()

	require.Eventually(t, func() bool {
		latest, err := s.LatestSnapshot(context.Background())
		return err == nil && latest != nil && latest.TotalQueries == 7
	}, 5*time.Second, 20*time.Millisecond)
}
