package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	_ "modernc.org/sqlite"

	"github.com/sells-group/coordcheck/internal/geodesy"
	"github.com/sells-group/coordcheck/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Per-connection pragmas (foreign_keys) only hold on a single connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	config_path   TEXT NOT NULL,
	data_path     TEXT NOT NULL,
	center_name   TEXT NOT NULL,
	format        TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'running',
	lines_read    INTEGER NOT NULL DEFAULT 0,
	lines_parsed  INTEGER NOT NULL DEFAULT 0,
	lines_ok      INTEGER NOT NULL DEFAULT 0,
	lines_error   INTEGER NOT NULL DEFAULT 0,
	lines_skipped INTEGER NOT NULL DEFAULT 0,
	started_at    DATETIME NOT NULL,
	finished_at   DATETIME
);

CREATE TABLE IF NOT EXISTS points (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id         TEXT NOT NULL REFERENCES runs(id),
	line           INTEGER NOT NULL,
	name           TEXT NOT NULL,
	x              TEXT NOT NULL,
	y              TEXT NOT NULL,
	latitude       REAL NOT NULL,
	longitude      REAL NOT NULL,
	distance_m     REAL NOT NULL,
	max_distance_m REAL NOT NULL,
	exceeded       INTEGER NOT NULL,
	geom           BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_points_run_id ON points(run_id);
CREATE INDEX IF NOT EXISTS idx_points_exceeded ON points(run_id, exceeded);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	run.ID = uuid.New().String()
	run.Status = model.RunStatusRunning
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, config_path, data_path, center_name, format, status, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ConfigPath, run.DataPath, run.CenterName, run.Format, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &run, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, summary model.Summary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, lines_read = ?, lines_parsed = ?, lines_ok = ?, lines_error = ?, lines_skipped = ?, finished_at = ? WHERE id = ?`,
		string(status), summary.LinesRead, summary.LinesParsed, summary.LinesOK, summary.LinesError, summary.LinesSkipped,
		time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var (
		run        model.Run
		status     string
		finishedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, config_path, data_path, center_name, format, status,
		        lines_read, lines_parsed, lines_ok, lines_error, lines_skipped,
		        started_at, finished_at
		 FROM runs WHERE id = ?`, runID,
	).Scan(
		&run.ID, &run.ConfigPath, &run.DataPath, &run.CenterName, &run.Format, &status,
		&run.Summary.LinesRead, &run.Summary.LinesParsed, &run.Summary.LinesOK,
		&run.Summary.LinesError, &run.Summary.LinesSkipped,
		&run.StartedAt, &finishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("sqlite: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	run.Status = model.RunStatus(status)
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}

// ListRuns returns the most recently started runs first. A limit of zero
// or less returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	query := `SELECT id, config_path, data_path, center_name, format, status,
	                 lines_read, lines_parsed, lines_ok, lines_error, lines_skipped,
	                 started_at, finished_at
	          FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var (
			run        model.Run
			status     string
			finishedAt sql.NullTime
		)
		if err := rows.Scan(
			&run.ID, &run.ConfigPath, &run.DataPath, &run.CenterName, &run.Format, &status,
			&run.Summary.LinesRead, &run.Summary.LinesParsed, &run.Summary.LinesOK,
			&run.Summary.LinesError, &run.Summary.LinesSkipped,
			&run.StartedAt, &finishedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		run.Status = model.RunStatus(status)
		if finishedAt.Valid {
			t := finishedAt.Time
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate runs")
	}
	return runs, nil
}

func (s *SQLiteStore) RecordPoint(ctx context.Context, runID string, res model.PointResult) error {
	wkb, err := ewkb.Marshal(res.Location.Point(), ewkb.NDR)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode point")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO points (run_id, line, name, x, y, latitude, longitude, distance_m, max_distance_m, exceeded, geom)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, res.Line, res.Name, res.X, res.Y, res.Location.Lat, res.Location.Lon,
		res.Distance, res.MaxDistance, res.Exceeded(), wkb,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert point line %d", res.Line)
	}
	return nil
}

// ListPoints returns the points of a run in input order. Locations are
// decoded from the stored geometry.
func (s *SQLiteStore) ListPoints(ctx context.Context, runID string) ([]model.PointResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT line, name, x, y, distance_m, max_distance_m, geom FROM points WHERE run_id = ? ORDER BY line`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list points %s", runID)
	}
	defer rows.Close()

	var points []model.PointResult
	for rows.Next() {
		var (
			p    model.PointResult
			blob []byte
		)
		if err := rows.Scan(&p.Line, &p.Name, &p.X, &p.Y, &p.Distance, &p.MaxDistance, &blob); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan point")
		}
		p.Location, err = decodeLocation(blob)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate points")
	}
	return points, nil
}

func decodeLocation(blob []byte) (geodesy.LatLon, error) {
	g, err := ewkb.Unmarshal(blob)
	if err != nil {
		return geodesy.LatLon{}, eris.Wrap(err, "sqlite: decode point")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return geodesy.LatLon{}, eris.Errorf("sqlite: unexpected geometry %T", g)
	}
	return geodesy.LatLon{Lat: pt.Y(), Lon: pt.X()}, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", entity, id)
	}
	return nil
}
