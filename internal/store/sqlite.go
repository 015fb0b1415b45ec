package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"github.com/gridsight/gridsight-ai/internal/detection"
)

// Schema versions are tracked in the schema_versions table.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS signals (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp           TEXT NOT NULL,
    asset_id            TEXT NOT NULL,
    voltage_kv          REAL NOT NULL,
    current_a           REAL NOT NULL,
    frequency_hz        REAL NOT NULL,
    scenario            TEXT NOT NULL,
    relay_undervoltage  INTEGER NOT NULL DEFAULT 0,
    relay_overvoltage   INTEGER NOT NULL DEFAULT 0,
    relay_overcurrent   INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_signals_selection ON signals(scenario, asset_id, timestamp);

CREATE TABLE IF NOT EXISTS scenarios (
    name        TEXT PRIMARY KEY,
    description TEXT NOT NULL DEFAULT ''
);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS tickets (
    id          TEXT PRIMARY KEY,
    scenario    TEXT NOT NULL,
    asset_id    TEXT NOT NULL,
    severity    TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'open',
    document    TEXT NOT NULL DEFAULT '{}',
    created_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tickets_created_at ON tickets(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tickets_scenario   ON tickets(scenario);
`,
	},
}

type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if necessary) the signal database at path
// and applies any pending migrations. Use ":memory:" for tests.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// WAL for concurrent readers during ingest.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
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
		if err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := s.db.Exec(`INSERT INTO schema_versions (version) VALUES (?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ─── Signals ──────────────────────────────────────────────────────────────────

func (s *sqliteStore) AppendSignals(ctx context.Context, rows []SignalRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO signals
        (timestamp, asset_id, voltage_kv, current_a, frequency_hz, scenario,
         relay_undervoltage, relay_overvoltage, relay_overcurrent)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.Timestamp, r.AssetID, r.VoltageKV, r.CurrentA, r.FrequencyHz, r.Scenario,
			boolToInt(r.RelayUndervoltage), boolToInt(r.RelayOvervoltage), boolToInt(r.RelayOvercurrent),
		); err != nil {
			return fmt.Errorf("insert signal %s/%s@%s: %w", r.Scenario, r.AssetID, r.Timestamp, err)
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) LoadSignals(ctx context.Context, q SignalQuery) ([]SignalRow, error) {
	query, args := buildSignalQuery(`SELECT timestamp, asset_id, voltage_kv, current_a,
        frequency_hz, scenario, relay_undervoltage, relay_overvoltage, relay_overcurrent
        FROM signals`, q)
	query += ` ORDER BY timestamp ASC, asset_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}
	defer rows.Close()

	var out []SignalRow
	for rows.Next() {
		var r SignalRow
		var uv, ov, oc int
		if err := rows.Scan(&r.Timestamp, &r.AssetID, &r.VoltageKV, &r.CurrentA,
			&r.FrequencyHz, &r.Scenario, &uv, &ov, &oc); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		r.RelayUndervoltage = uv != 0
		r.RelayOvervoltage = ov != 0
		r.RelayOvercurrent = oc != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("scenario %q asset %q [%s, %s]: %w",
			q.Scenario, q.AssetID, q.Start, q.End, detection.ErrDataNotFound)
	}
	return out, nil
}

func (s *sqliteStore) CountSignals(ctx context.Context, q SignalQuery) (int, error) {
	query, args := buildSignalQuery(`SELECT COUNT(*) FROM signals`, q)
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count signals: %w", err)
	}
	return n, nil
}

// buildSignalQuery appends the WHERE clause for a selection. Timestamp
// bounds compare as text, which is correct for the single stored layout.
func buildSignalQuery(base string, q SignalQuery) (string, []any) {
	var conds []string
	var args []any
	if q.Scenario != "" {
		conds = append(conds, `scenario = ?`)
		args = append(args, q.Scenario)
	}
	if q.AssetID != "" {
		conds = append(conds, `asset_id = ?`)
		args = append(args, q.AssetID)
	}
	if q.Start != "" {
		conds = append(conds, `timestamp >= ?`)
		args = append(args, q.Start)
	}
	if q.End != "" {
		conds = append(conds, `timestamp <= ?`)
		args = append(args, q.End)
	}
	if len(conds) > 0 {
		base += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	return base, args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ─── Scenarios ────────────────────────────────────────────────────────────────

func (s *sqliteStore) UpsertScenario(ctx context.Context, name, description string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO scenarios (name, description) VALUES (?, ?)
        ON CONFLICT(name) DO UPDATE SET description = excluded.description`, name, description)
	if err != nil {
		return fmt.Errorf("upsert scenario %q: %w", name, err)
	}
	return nil
}

func (s *sqliteStore) ListScenarios(ctx context.Context) ([]Scenario, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sc.name, sc.description,
        (SELECT COUNT(*) FROM signals sg WHERE sg.scenario = sc.name)
        FROM scenarios sc ORDER BY sc.name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	defer rows.Close()

	var out []Scenario
	for rows.Next() {
		var sc Scenario
		if err := rows.Scan(&sc.Name, &sc.Description, &sc.NRows); err != nil {
			return nil, fmt.Errorf("scan scenario: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// ─── Tickets ──────────────────────────────────────────────────────────────────

func (s *sqliteStore) SaveTicket(ctx context.Context, rec *TicketRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO tickets
        (id, scenario, asset_id, severity, status, document, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            severity = excluded.severity,
            status = excluded.status,
            document = excluded.document`,
		rec.ID, rec.Scenario, rec.AssetID, rec.Severity, rec.Status,
		string(rec.Document), rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save ticket %s: %w", rec.ID, err)
	}
	return nil
}

func (s *sqliteStore) GetTicket(ctx context.Context, id string) (*TicketRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, scenario, asset_id, severity, status,
        document, created_at FROM tickets WHERE id = ?`, id)
	rec, err := scanTicket(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ticket %q: %w", id, detection.ErrDataNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}
	return rec, nil
}

func (s *sqliteStore) ListTickets(ctx context.Context, limit, offset int) ([]*TicketRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, scenario, asset_id, severity, status,
        document, created_at FROM tickets ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	defer rows.Close()

	var out []*TicketRecord
	for rows.Next() {
		rec, err := scanTicket(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanTicket(scan func(...any) error) (*TicketRecord, error) {
	var rec TicketRecord
	var doc, createdAt string
	if err := scan(&rec.ID, &rec.Scenario, &rec.AssetID, &rec.Severity, &rec.Status, &doc, &createdAt); err != nil {
		return nil, err
	}
	rec.Document = []byte(doc)
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = t
	return &rec, nil
}

// parseTime tolerates the text layouts SQLite hands back for DATETIME
// columns written by different writers.
func parseTime(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
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
