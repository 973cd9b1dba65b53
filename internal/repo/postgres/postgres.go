package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/domain"
	"github.com/hamed0406/uptimeguard/internal/repo"
)

var _ repo.Store = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS owners (
  id           TEXT PRIMARY KEY,
  role         TEXT NOT NULL DEFAULT '',
  plan         TEXT NOT NULL DEFAULT 'free',
  plan_ends_at TIMESTAMPTZ NULL
);

CREATE TABLE IF NOT EXISTS targets (
  id                 TEXT PRIMARY KEY,
  name               TEXT NOT NULL DEFAULT '',
  address            TEXT NOT NULL,
  type               TEXT NOT NULL,
  owner_id           TEXT NOT NULL DEFAULT '',
  owner_role         TEXT NOT NULL DEFAULT '',
  owner_plan         TEXT NOT NULL DEFAULT '',
  monitoring         JSONB NULL,
  contacts           JSONB NOT NULL DEFAULT '{}',
  status             TEXT NOT NULL DEFAULT 'unknown',
  last_response_ms   INTEGER NULL,
  last_error         TEXT NOT NULL DEFAULT '',
  last_checked_at    TIMESTAMPTZ NULL,
  last_status_change TIMESTAMPTZ NULL,
  trial_ends_at      TIMESTAMPTZ NULL,
  created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS check_records (
  id               TEXT PRIMARY KEY,
  target_id        TEXT NOT NULL,
  status           TEXT NOT NULL,
  response_time_ms INTEGER NULL,
  error_message    TEXT NULL,
  ts               TIMESTAMPTZ NOT NULL,
  date             TEXT NOT NULL,
  hour             SMALLINT NOT NULL,
  minute           SMALLINT NOT NULL,
  slot15           SMALLINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_target_ts   ON check_records (target_id, ts);
CREATE INDEX IF NOT EXISTS idx_records_target_date ON check_records (target_id, date);

CREATE TABLE IF NOT EXISTS daily_summaries (
  target_id       TEXT NOT NULL,
  date            TEXT NOT NULL,
  total_checks    INTEGER NOT NULL,
  up_checks       INTEGER NOT NULL,
  uptime_percent  DOUBLE PRECISION NOT NULL,
  avg_response_ms DOUBLE PRECISION NOT NULL,
  min_response_ms INTEGER NOT NULL,
  max_response_ms INTEGER NOT NULL,
  created_at      TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (target_id, date)
);
`

const targetColumns = `id, name, address, type, owner_id, owner_role, owner_plan, monitoring, contacts,
       status, last_response_ms, last_error, last_checked_at, last_status_change, trial_ends_at, created_at`

const updateStatusSQL = `
UPDATE targets
   SET status = $2,
       last_response_ms = $3,
       last_error = $4,
       last_checked_at = $5,
       last_status_change = COALESCE($6, last_status_change)
 WHERE id = $1`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ---- Seeder ----

func (s *Store) AddTarget(ctx context.Context, t *domain.MonitoredTarget) error {
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = domain.StatusUnknown
	}
	monitoring, err := jsonOrNull(t.Monitoring)
	if err != nil {
		return err
	}
	contacts, err := json.Marshal(t.Contacts)
	if err != nil {
		return fmt.Errorf("encode contacts: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO targets (id, name, address, type, owner_id, owner_role, owner_plan, monitoring, contacts,
		                      status, last_response_ms, last_error, last_checked_at, last_status_change, trial_ends_at, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		string(t.ID), t.Name, t.Address, string(t.Type), t.OwnerID, t.OwnerRole, t.OwnerPlan, monitoring, string(contacts),
		string(t.Status), t.LastResponseMs, t.LastError, t.LastCheckedAt, t.LastStatusChange, t.TrialEndsAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert target: %w", err)
	}
	return nil
}

func (s *Store) PutOwner(ctx context.Context, o domain.Owner) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO owners (id, role, plan, plan_ends_at) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role, plan = EXCLUDED.plan, plan_ends_at = EXCLUDED.plan_ends_at`,
		o.ID, o.Role, o.Plan, o.PlanEndsAt)
	if err != nil {
		return fmt.Errorf("upsert owner: %w", err)
	}
	return nil
}

// ---- TargetStore ----

func (s *Store) List(ctx context.Context) ([]*domain.MonitoredTarget, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+targetColumns+` FROM targets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var out []*domain.MonitoredTarget
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.MonitoredTarget, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+targetColumns+` FROM targets WHERE id = $1`, string(id))
	t, err := scanTarget(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repo.ErrNotFound
	}
	return t, err
}

func (s *Store) UpdateStatus(ctx context.Context, p domain.StatusPatch) error {
	tag, err := s.pool.Exec(ctx, updateStatusSQL, patchArgs(p)...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ApplyStatusBatch sends every patch in one batch inside one transaction.
func (s *Store) ApplyStatusBatch(ctx context.Context, ps []domain.StatusPatch) error {
	if len(ps) == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, p := range ps {
			b.Queue(updateStatusSQL, patchArgs(p)...)
		}
		br := tx.SendBatch(ctx, b)
		for range ps {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("batch status update: %w", err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return err
	}
	s.log.Debug("status_batch_committed", zap.Int("patches", len(ps)))
	return nil
}

// ---- RecordStore ----

func (s *Store) Append(ctx context.Context, r domain.CheckRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO check_records
		   (id, target_id, status, response_time_ms, error_message, ts, date, hour, minute, slot15)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ID, string(r.TargetID), string(r.Status), r.ResponseTimeMs, r.ErrorMessage,
		r.Timestamp, r.Date, r.Hour, r.Minute, r.Slot15,
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *Store) Range(ctx context.Context, id domain.TargetID, from, to time.Time) ([]domain.CheckRecord, error) {
	return s.queryRecords(ctx,
		`SELECT id, target_id, status, response_time_ms, error_message, ts, date, hour, minute, slot15
		   FROM check_records
		  WHERE target_id = $1 AND ts >= $2 AND ts < $3
		  ORDER BY ts`, string(id), from, to)
}

func (s *Store) ByDate(ctx context.Context, id domain.TargetID, date string) ([]domain.CheckRecord, error) {
	return s.queryRecords(ctx,
		`SELECT id, target_id, status, response_time_ms, error_message, ts, date, hour, minute, slot15
		   FROM check_records
		  WHERE target_id = $1 AND date = $2
		  ORDER BY ts`, string(id), date)
}

func (s *Store) Delete(ctx context.Context, recs []domain.CheckRecord) error {
	if len(recs) == 0 {
		return nil
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM check_records WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

func (s *Store) queryRecords(ctx context.Context, q string, args ...any) ([]domain.CheckRecord, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckRecord
	for rows.Next() {
		var (
			r            domain.CheckRecord
			targetID     string
			status       string
			hour, minute int16
			slot15       int16
		)
		if err := rows.Scan(&r.ID, &targetID, &status, &r.ResponseTimeMs, &r.ErrorMessage,
			&r.Timestamp, &r.Date, &hour, &minute, &slot15); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.TargetID = domain.TargetID(targetID)
		r.Status = domain.Status(status)
		r.Hour, r.Minute, r.Slot15 = int(hour), int(minute), int(slot15)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- SummaryStore ----

func (s *Store) HasSummary(ctx context.Context, id domain.TargetID, date string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM daily_summaries WHERE target_id = $1 AND date = $2)`,
		string(id), date).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("summary exists: %w", err)
	}
	return exists, nil
}

func (s *Store) PutSummary(ctx context.Context, d domain.DailySummary) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO daily_summaries
		   (target_id, date, total_checks, up_checks, uptime_percent, avg_response_ms, min_response_ms, max_response_ms, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		 ON CONFLICT (target_id, date) DO NOTHING`,
		string(d.TargetID), d.Date, d.TotalChecks, d.UpChecks, d.UptimePercent,
		d.AvgResponseMs, d.MinResponseMs, d.MaxResponseMs, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert summary: %w", err)
	}
	return nil
}

// ---- OwnerStore ----

func (s *Store) GetOwner(ctx context.Context, ownerID string) (*domain.Owner, error) {
	var o domain.Owner
	err := s.pool.QueryRow(ctx,
		`SELECT id, role, plan, plan_ends_at FROM owners WHERE id = $1`, ownerID).
		Scan(&o.ID, &o.Role, &o.Plan, &o.PlanEndsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get owner: %w", err)
	}
	return &o, nil
}

// ---- helpers ----

func scanTarget(row pgx.Row) (*domain.MonitoredTarget, error) {
	var (
		t                    domain.MonitoredTarget
		id, typ, status      string
		monitoring, contacts []byte
	)
	err := row.Scan(&id, &t.Name, &t.Address, &typ, &t.OwnerID, &t.OwnerRole, &t.OwnerPlan,
		&monitoring, &contacts, &status, &t.LastResponseMs, &t.LastError,
		&t.LastCheckedAt, &t.LastStatusChange, &t.TrialEndsAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan target: %w", err)
	}
	t.ID = domain.TargetID(id)
	t.Type = domain.TargetType(typ)
	t.Status = domain.Status(status)
	if len(monitoring) > 0 {
		var mc domain.MonitoringConfig
		if err := json.Unmarshal(monitoring, &mc); err != nil {
			return nil, fmt.Errorf("decode monitoring of %s: %w", id, err)
		}
		t.Monitoring = &mc
	}
	if len(contacts) > 0 {
		if err := json.Unmarshal(contacts, &t.Contacts); err != nil {
			return nil, fmt.Errorf("decode contacts of %s: %w", id, err)
		}
	}
	return &t, nil
}

func patchArgs(p domain.StatusPatch) []any {
	return []any{string(p.TargetID), string(p.Status), p.ResponseTimeMs, p.ErrorMessage, p.CheckedAt, p.StatusChangedAt}
}

func jsonOrNull(v *domain.MonitoringConfig) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode monitoring: %w", err)
	}
	s := string(b)
	return &s, nil
}
