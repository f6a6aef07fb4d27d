//go:build !integration

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coordcheck/internal/config"
	"github.com/sells-group/coordcheck/internal/model"
	"github.com/sells-group/coordcheck/internal/store"
)

const wgs84Config = `coordinates:
  format: wgs84
center location:
  name: Origin
  lat: 0
  lon: 0
  max distance: 1000
input:
  name: 1
  x: 2
  y: 3
  header: false
`

const pointsData = "Pt1\t0.0\t0.005\nPt2\t0.0\t0.02\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	require.NoError(t, os.Chmod(path, 0o600))
	return path
}

func TestRunCheck_WGS84(t *testing.T) {
	var stdout bytes.Buffer
	summary, err := runCheck(context.Background(), checkOptions{
		ConfigPath: writeFile(t, "config.yml", wgs84Config),
		DataPath:   writeFile(t, "points.tsv", pointsData),
	}, &stdout)
	require.NoError(t, err)

	assert.Equal(t, model.Summary{LinesRead: 2, LinesParsed: 2, LinesOK: 1, LinesError: 1}, summary)
	assert.Equal(t, "\n\n\n", stdout.String())
}

func TestRunCheck_UTMWithoutZone(t *testing.T) {
	cfg := `coordinates:
  format: utm
  hemisphere: N
center location:
  name: Origin
  lat: 0
  lon: 0
  max distance: 1000
input:
  name: 1
  x: 2
  y: 3
  header: false
`
	_, err := runCheck(context.Background(), checkOptions{
		ConfigPath: writeFile(t, "config.yml", cfg),
		DataPath:   writeFile(t, "points.tsv", pointsData),
	}, &bytes.Buffer{})

	var cerr *config.Error
	require.ErrorAs(t, err, &cerr)
	assert.False(t, cerr.Usage)

	var out bytes.Buffer
	reportError(&out, rootCmd, err)
	assert.Contains(t, out.String(), "'zone'")
}

func TestRunCheck_ConfigWorldReadable(t *testing.T) {
	path := writeFile(t, "config.yml", wgs84Config)
	require.NoError(t, os.Chmod(path, 0o644))

	_, err := runCheck(context.Background(), checkOptions{
		ConfigPath: path,
		DataPath:   writeFile(t, "points.tsv", pointsData),
	}, &bytes.Buffer{})

	var cerr *config.Error
	require.ErrorAs(t, err, &cerr)
	assert.True(t, cerr.Usage)
}

func TestRunCheck_MissingDataFile(t *testing.T) {
	_, err := runCheck(context.Background(), checkOptions{
		ConfigPath: writeFile(t, "config.yml", wgs84Config),
		DataPath:   filepath.Join(t.TempDir(), "missing.tsv"),
	}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open data file")
}

func TestRunCheck_UnsupportedOutput(t *testing.T) {
	_, err := runCheck(context.Background(), checkOptions{
		ConfigPath: writeFile(t, "config.yml", wgs84Config),
		DataPath:   writeFile(t, "points.tsv", pointsData),
		OutputPath: filepath.Join(t.TempDir(), "out.txt"),
	}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestRunCheck_CSVOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	_, err := runCheck(context.Background(), checkOptions{
		ConfigPath: writeFile(t, "config.yml", wgs84Config),
		DataPath:   writeFile(t, "points.tsv", pointsData),
		OutputPath: out,
	}, &bytes.Buffer{})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "line,name,latitude")
	assert.Contains(t, content, "Pt1")
	assert.Contains(t, content, "Pt2")
}

func TestRunCheck_Store(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	summary, err := runCheck(ctx, checkOptions{
		ConfigPath: writeFile(t, "config.yml", wgs84Config),
		DataPath:   writeFile(t, "points.tsv", pointsData),
		StorePath:  dbPath,
	}, &bytes.Buffer{})
	require.NoError(t, err)

	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, summary, runs[0].Summary)
	assert.Equal(t, "Origin", runs[0].CenterName)
	assert.Equal(t, "wgs84", runs[0].Format)

	points, err := st.ListPoints(ctx, runs[0].ID)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "Pt1", points[0].Name)
	assert.False(t, points[0].Exceeded())
	assert.True(t, points[1].Exceeded())
}

func TestRunCheck_StoreMarksFailedRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	// A directory opens fine but fails on the first read.
	_, err := runCheck(ctx, checkOptions{
		ConfigPath: writeFile(t, "config.yml", wgs84Config),
		DataPath:   t.TempDir(),
		StorePath:  dbPath,
	}, &bytes.Buffer{})
	require.Error(t, err)

	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.NotNil(t, runs[0].FinishedAt)
}

func TestExecute_EndToEnd(t *testing.T) {
	resetFlags(t)
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"-q",
		"-c", writeFile(t, "config.yml", wgs84Config),
		"-d", writeFile(t, "points.tsv", pointsData),
	})

	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	assert.Equal(t, "\n\n\n", out.String())
}
