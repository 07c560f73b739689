package relational

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"memguard/internal/engine"
	"memguard/internal/monitor"
)

const SchemaSQL = `
CREATE SEQUENCE IF NOT EXISTS memory_snapshot_seq;

CREATE TABLE IF NOT EXISTS memory_snapshots (
  snapshot_id     BIGINT PRIMARY KEY DEFAULT nextval('memory_snapshot_seq'),
  agent_id        VARCHAR NOT NULL,
  collected_at    TIMESTAMP NOT NULL,
  total_mb        DOUBLE,
  available_mb    DOUBLE,
  used_mb         DOUBLE,
  percent_used    DOUBLE,
  pressure_level  VARCHAR NOT NULL,
  gc_cycles       BIGINT,
  gc_forced       BIGINT,
  gc_pause_ms     BIGINT,
  live_objects    BIGINT,
  rss_mb          DOUBLE,
  vms_mb          DOUBLE,
  synthetic       BOOLEAN NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS recovery_sessions (
  session_id       VARCHAR PRIMARY KEY,
  agent_id         VARCHAR NOT NULL,
  started_at       TIMESTAMP NOT NULL,
  duration_us      BIGINT,
  trigger_level    VARCHAR NOT NULL,
  trigger_percent  DOUBLE,
  final_level      VARCHAR NOT NULL,
  improved         BOOLEAN NOT NULL,
  forced           BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS recovery_results (
  session_id   VARCHAR NOT NULL,
  seq          INTEGER NOT NULL,
  strategy     VARCHAR NOT NULL,
  action       VARCHAR NOT NULL,
  duration_us  BIGINT,
  details      VARCHAR,
  errors       VARCHAR,
  error_count  INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (session_id, seq)
);
`

var _ monitor.Recorder = (*Repo)(nil)

// Repo stores snapshots and recovery sessions in DuckDB.
type Repo struct {
	db      *sql.DB
	agentID string
}

func NewRepo(db *sql.DB, agentID string) *Repo {
	return &Repo{
		db:      db,
		agentID: agentID,
	}
}

func (r *Repo) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, SchemaSQL)
	return err
}

// RecordSnapshot appends one snapshot row.
func (r *Repo) RecordSnapshot(ctx context.Context, s engine.Snapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO memory_snapshots(
		  agent_id, collected_at,
		  total_mb, available_mb, used_mb, percent_used, pressure_level,
		  gc_cycles, gc_forced, gc_pause_ms, live_objects,
		  rss_mb, vms_mb, synthetic
		) VALUES (?,?, ?,?,?,?,?, ?,?,?,?, ?,?,?)`,
		r.agentID, s.Timestamp.UTC(),
		nullFloat(s.TotalMB), nullFloat(s.AvailableMB), nullFloat(s.UsedMB), nullFloat(s.PercentUsed), s.Level.String(),
		int64(s.GCCounts[0]), int64(s.GCCounts[1]), int64(s.GCCounts[2]), int64(s.LiveObjects),
		nullFloat(s.ResidentSetMB), nullFloat(s.VirtualMemoryMB), s.Synthetic,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// RecordRecovery stores a session and its strategy results in one transaction.
func (r *Repo) RecordRecovery(ctx context.Context, s monitor.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO recovery_sessions(
		  session_id, agent_id, started_at, duration_us,
		  trigger_level, trigger_percent, final_level, improved, forced
		) VALUES (?,?,?,?, ?,?,?,?,?)`,
		s.ID, r.agentID, s.StartedAt.UTC(), s.Duration.Microseconds(),
		s.Trigger.Level.String(), nullFloat(s.Trigger.PercentUsed), s.FinalLevel.String(), s.Improved, s.Forced(),
	)
	if err != nil {
		return fmt.Errorf("insert recovery session: %w", err)
	}

	for i, res := range s.Results {
		details, err := json.Marshal(res.Details)
		if err != nil {
			return fmt.Errorf("encode details of %s: %w", res.Strategy, err)
		}
		errs, err := json.Marshal(res.Errors)
		if err != nil {
			return fmt.Errorf("encode errors of %s: %w", res.Strategy, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO recovery_results(
			  session_id, seq, strategy, action, duration_us, details, errors, error_count
			) VALUES (?,?,?,?,?,?,?,?)`,
			s.ID, i, res.Strategy, res.Action, res.Duration.Microseconds(),
			string(details), string(errs), len(res.Errors),
		)
		if err != nil {
			return fmt.Errorf("insert recovery result %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// RecentSnapshots returns up to limit snapshots, newest first.
func (r *Repo) RecentSnapshots(ctx context.Context, limit int) ([]engine.Snapshot, error) {
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx, `
		SELECT
		  collected_at, total_mb, available_mb, used_mb, percent_used, pressure_level,
		  gc_cycles, gc_forced, gc_pause_ms, live_objects, rss_mb, vms_mb, synthetic
		FROM memory_snapshots
		WHERE agent_id = ?
		ORDER BY collected_at DESC, snapshot_id DESC
		LIMIT ?`, r.agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots failed: %w", err)
	}
	defer rows.Close()

	snapshots := []engine.Snapshot{}
	for rows.Next() {
		var (
			s                          engine.Snapshot
			level                      string
			total, avail, used, pct    sql.NullFloat64
			rss, vms                   sql.NullFloat64
			cycles, forced, pause, obj sql.NullInt64
		)
		err := rows.Scan(
			&s.Timestamp, &total, &avail, &used, &pct, &level,
			&cycles, &forced, &pause, &obj, &rss, &vms, &s.Synthetic,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot failed: %w", err)
		}

		if s.Level, err = engine.ParseLevel(level); err != nil {
			return nil, err
		}
		s.TotalMB = total.Float64
		s.AvailableMB = avail.Float64
		s.UsedMB = used.Float64
		s.PercentUsed = pct.Float64
		s.ResidentSetMB = rss.Float64
		s.VirtualMemoryMB = vms.Float64
		s.GCCounts = [3]uint64{uint64(cycles.Int64), uint64(forced.Int64), uint64(pause.Int64)}
		s.LiveObjects = uint64(obj.Int64)

		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return snapshots, nil
}

// RecoverySummary is one stored session with its result counts.
type RecoverySummary struct {
	SessionID      string        `json:"session_id"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	TriggerLevel   engine.Level  `json:"trigger_level"`
	TriggerPercent float64       `json:"trigger_percent"`
	FinalLevel     engine.Level  `json:"final_level"`
	Improved       bool          `json:"improved"`
	Forced         bool          `json:"forced"`
	Results        int           `json:"results"`
	Errors         int           `json:"errors"`
}

// RecentRecoveries returns up to limit sessions, newest first.
func (r *Repo) RecentRecoveries(ctx context.Context, limit int) ([]RecoverySummary, error) {
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx, `
		SELECT
		  s.session_id, s.started_at, s.duration_us,
		  s.trigger_level, s.trigger_percent, s.final_level, s.improved, s.forced,
		  COUNT(res.seq) AS results,
		  CAST(COALESCE(SUM(res.error_count), 0) AS BIGINT) AS errors
		FROM recovery_sessions s
		LEFT JOIN recovery_results res ON res.session_id = s.session_id
		WHERE s.agent_id = ?
		GROUP BY s.session_id, s.started_at, s.duration_us,
		  s.trigger_level, s.trigger_percent, s.final_level, s.improved, s.forced
		ORDER BY s.started_at DESC
		LIMIT ?`, r.agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recoveries failed: %w", err)
	}
	defer rows.Close()

	out := []RecoverySummary{}
	for rows.Next() {
		var (
			sum             RecoverySummary
			durationUS      sql.NullInt64
			pct             sql.NullFloat64
			trigger, final  string
			results, errCnt int64
		)
		err := rows.Scan(
			&sum.SessionID, &sum.StartedAt, &durationUS,
			&trigger, &pct, &final, &sum.Improved, &sum.Forced,
			&results, &errCnt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan recovery failed: %w", err)
		}
		if sum.TriggerLevel, err = engine.ParseLevel(trigger); err != nil {
			return nil, err
		}
		if sum.FinalLevel, err = engine.ParseLevel(final); err != nil {
			return nil, err
		}
		sum.Duration = time.Duration(durationUS.Int64) * time.Microsecond
		sum.TriggerPercent = pct.Float64
		sum.Results = int(results)
		sum.Errors = int(errCnt)

		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	if limit > 1000 {
		return 1000 // Safety limit
	}
	return limit
}
