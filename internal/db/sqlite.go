package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)
)

// migrations define the history schema. Version is tracked in the
// schema_versions table.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS reports (
    id                TEXT PRIMARY KEY,
    source            TEXT NOT NULL DEFAULT '',
    focus             TEXT NOT NULL DEFAULT 'HSE',
    tag               TEXT NOT NULL,
    rule              TEXT NOT NULL DEFAULT '',
    report            TEXT NOT NULL,
    anomaly_count     INTEGER NOT NULL DEFAULT 0,
    cluster_confirmed INTEGER NOT NULL DEFAULT 0,
    online_count      INTEGER NOT NULL DEFAULT 0,
    offline_count     INTEGER NOT NULL DEFAULT 0,
    mean_temp         REAL NOT NULL DEFAULT 0.0,
    max_temp          REAL NOT NULL DEFAULT 0.0,
    min_temp          REAL NOT NULL DEFAULT 0.0,
    std_temp          REAL NOT NULL DEFAULT 0.0,
    trend             TEXT NOT NULL DEFAULT 'Stable',
    analyzed_at       DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_analyzed_at ON reports(analyzed_at DESC);
CREATE INDEX IF NOT EXISTS idx_reports_tag ON reports(tag);
`,
	},
	// Migration 2: per-sensor anomaly rows for fault-frequency queries
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS report_anomalies (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    report_id  TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
    sensor_id  TEXT NOT NULL,
    position   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_report_anomalies_report ON report_anomalies(report_id);
CREATE INDEX IF NOT EXISTS idx_report_anomalies_sensor ON report_anomalies(sensor_id);
`,
	},
}

// sqliteStore is the SQLite-backed implementation of Store.
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path and
// runs all pending schema migrations. Pass ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// PRAGMAs apply per connection and each ":memory:" connection is its
	// own database, so keep a single one.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency and performance.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	// Enable foreign-key constraints.
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate applies any unapplied migrations in order.
func (s *sqliteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue // already applied
		}

		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}

		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ─── Reports ─────────────────────────────────────────────────────────────────

func (s *sqliteStore) SaveReport(ctx context.Context, rec *ReportRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO reports(id, source, focus, tag, rule, report, anomaly_count, cluster_confirmed,
                            online_count, offline_count, mean_temp, max_temp, min_temp, std_temp, trend, analyzed_at)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
    `,
		rec.ID, rec.Source, rec.Focus, rec.Tag, rec.Rule, rec.Report,
		rec.AnomalyCount, boolToInt(rec.ClusterConfirmed),
		rec.OnlineCount, rec.OfflineCount,
		rec.MeanTemp, rec.MaxTemp, rec.MinTemp, rec.StdDevTemp, rec.Trend,
		formatTime(rec.AnalyzedAt),
	)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", rec.ID, err)
	}

	for i, sensor := range rec.AnomalySensors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO report_anomalies(report_id, sensor_id, position) VALUES(?,?,?)`,
			rec.ID, sensor, i); err != nil {
			return fmt.Errorf("insert anomaly for report %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

const reportColumns = `id,source,focus,tag,rule,report,anomaly_count,cluster_confirmed,online_count,offline_count,mean_temp,max_temp,min_temp,std_temp,trend,analyzed_at`

func (s *sqliteStore) GetReport(ctx context.Context, id string) (*ReportRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id=?`, id)
	rec, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadSensors(ctx, []*ReportRecord{rec}); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *sqliteStore) QueryReports(ctx context.Context, q ReportQuery) ([]*ReportRecord, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE 1=1`
	args := []any{}

	if q.Tag != "" {
		query += ` AND tag = ?`
		args = append(args, q.Tag)
	}
	if q.Focus != "" {
		query += ` AND focus = ?`
		args = append(args, q.Focus)
	}
	if q.Source != "" {
		query += ` AND source = ?`
		args = append(args, q.Source)
	}
	if !q.From.IsZero() {
		query += ` AND analyzed_at >= ?`
		args = append(args, formatTime(q.From))
	}
	if !q.To.IsZero() {
		query += ` AND analyzed_at <= ?`
		args = append(args, formatTime(q.To))
	}
	query += ` ORDER BY analyzed_at DESC, rowid DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, q.Limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*ReportRecord
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadSensors(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *sqliteStore) TagSummary(ctx context.Context, from, to time.Time) (map[string]int, error) {
	query := `SELECT tag, COUNT(*) FROM reports WHERE 1=1`
	args := []any{}
	if !from.IsZero() {
		query += ` AND analyzed_at >= ?`
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		query += ` AND analyzed_at <= ?`
		args = append(args, formatTime(to))
	}
	query += ` GROUP BY tag`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var tag string
		var count int
		if err := rows.Scan(&tag, &count); err != nil {
			return nil, err
		}
		result[tag] = count
	}
	return result, rows.Err()
}

func (s *sqliteStore) SensorAnomalyCounts(ctx context.Context, limit int) (map[string]int, error) {
	query := `SELECT sensor_id, COUNT(*) AS n FROM report_anomalies GROUP BY sensor_id ORDER BY n DESC, sensor_id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var sensor string
		var count int
		if err := rows.Scan(&sensor, &count); err != nil {
			return nil, err
		}
		result[sensor] = count
	}
	return result, rows.Err()
}

func (s *sqliteStore) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
        DELETE FROM reports WHERE id NOT IN (
            SELECT id FROM reports ORDER BY analyzed_at DESC, rowid DESC LIMIT ?
        )`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune reports: %w", err)
	}
	return res.RowsAffected()
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*ReportRecord, error) {
	rec := &ReportRecord{}
	var cluster int
	var ts string
	if err := row.Scan(&rec.ID, &rec.Source, &rec.Focus, &rec.Tag, &rec.Rule, &rec.Report,
		&rec.AnomalyCount, &cluster, &rec.OnlineCount, &rec.OfflineCount,
		&rec.MeanTemp, &rec.MaxTemp, &rec.MinTemp, &rec.StdDevTemp, &rec.Trend, &ts); err != nil {
		return nil, err
	}
	rec.ClusterConfirmed = cluster != 0
	rec.AnalyzedAt, _ = parseTime(ts)
	rec.AnomalySensors = []string{}
	return rec, nil
}

// loadSensors fills AnomalySensors for recs in one query.
func (s *sqliteStore) loadSensors(ctx context.Context, recs []*ReportRecord) error {
	if len(recs) == 0 {
		return nil
	}
	byID := make(map[string]*ReportRecord, len(recs))
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		byID[r.ID] = r
		ids = append(ids, r.ID)
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return err
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT report_id, sensor_id FROM report_anomalies
        WHERE report_id IN (SELECT value FROM json_each(?))
        ORDER BY report_id, position`, string(idsJSON))
	if err != nil {
		return fmt.Errorf("load anomaly sensors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var reportID, sensor string
		if err := rows.Scan(&reportID, &sensor); err != nil {
			return err
		}
		if r, ok := byID[reportID]; ok {
			r.AnomalySensors = append(r.AnomalySensors, sensor)
		}
	}
	return rows.Err()
}

// timeLayout is fixed width so lexical order matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// parseTime handles multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	layouts := []string{
		timeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999 -0700 MST",
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}
