package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coordcheck/internal/geodesy"
	"github.com/sells-group/coordcheck/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestRun(t *testing.T, st *SQLiteStore) *model.Run {
	t.Helper()
	run, err := st.CreateRun(context.Background(), model.Run{
		ConfigPath: "/etc/coordcheck.yml",
		DataPath:   "points.tsv",
		CenterName: "Origin",
		Format:     "wgs84",
	})
	require.NoError(t, err)
	return run
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := newTestRun(t, st)
	assert.Len(t, run.ID, 36)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.False(t, run.StartedAt.IsZero())

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "Origin", got.CenterName)
	assert.Equal(t, "wgs84", got.Format)
	assert.Equal(t, model.RunStatusRunning, got.Status)
	assert.Nil(t, got.FinishedAt)
}

func TestSQLite_CreateRun_UniqueIDs(t *testing.T) {
	st := newTestSQLiteStore(t)
	a := newTestRun(t, st)
	b := newTestRun(t, st)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSQLite_FinishRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	run := newTestRun(t, st)

	sum := model.Summary{LinesRead: 4, LinesParsed: 3, LinesOK: 1, LinesError: 1, LinesSkipped: 1}
	require.NoError(t, st.FinishRun(ctx, run.ID, model.RunStatusComplete, sum))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, sum, got.Summary)
	require.NotNil(t, got.FinishedAt)
}

func TestSQLite_FinishRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.FinishRun(context.Background(), "nonexistent", model.RunStatusFailed, model.Summary{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetRun(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first, err := st.CreateRun(ctx, model.Run{ConfigPath: "a.yml", DataPath: "a.tsv", CenterName: "A", Format: "utm",
		StartedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	second, err := st.CreateRun(ctx, model.Run{ConfigPath: "b.yml", DataPath: "b.tsv", CenterName: "B", Format: "wgs84",
		StartedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.NoError(t, st.FinishRun(ctx, first.ID, model.RunStatusFailed, model.Summary{LinesRead: 1}))

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, model.RunStatusFailed, runs[1].Status)
	assert.NotNil(t, runs[1].FinishedAt)
	assert.Nil(t, runs[0].FinishedAt)

	limited, err := st.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "B", limited[0].CenterName)
}

func TestSQLite_RecordAndListPoints(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	run := newTestRun(t, st)

	rec := ForRun(st, run.ID)
	points := []model.PointResult{
		{Line: 2, Name: "Pt2", X: "0.0", Y: "0.02", Location: geodesy.LatLon{Lat: 0.02}, Distance: 2211.47, MaxDistance: 1000},
		{Line: 1, Name: "Pt1", X: "13.404954", Y: "52.520007", Location: geodesy.LatLon{Lat: 52.520007, Lon: 13.404954}, Distance: 552.87, MaxDistance: 1000},
	}
	for _, p := range points {
		require.NoError(t, rec.Record(ctx, p))
	}

	got, err := st.ListPoints(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, points[1], got[0])
	assert.Equal(t, points[0], got[1])
	assert.True(t, got[1].Exceeded())
}

func TestSQLite_ListPoints_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	run := newTestRun(t, st)

	got, err := st.ListPoints(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_RecordPoint_UnknownRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.RecordPoint(context.Background(), "nonexistent", model.PointResult{Line: 1, Name: "x"})
	assert.Error(t, err)
}
