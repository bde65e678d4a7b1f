package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"classtrack/internal/model"
)

// Postgres persists sessions and attendance records in Postgres.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open connection and applies the schema.
func NewPostgres(db *sql.DB) (*Postgres, error) {
	p := &Postgres{db: db}
	if err := p.migrate(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id              TEXT PRIMARY KEY,
		title           TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		valid_from      TIMESTAMPTZ NOT NULL,
		valid_to        TIMESTAMPTZ NOT NULL,
		status          TEXT NOT NULL DEFAULT 'new',
		subject_code    TEXT NOT NULL,
		batch_id        TEXT NOT NULL,
		class_config_id TEXT NOT NULL,
		creator_id      TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (valid_from < valid_to)
	);

	CREATE TABLE IF NOT EXISTS attendance_records (
		session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		student_id  TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'absent',
		marked_at   TIMESTAMPTZ,
		marked_by   TEXT,
		PRIMARY KEY (session_id, student_id)
	);

	CREATE TABLE IF NOT EXISTS attendance_audit (
		id              TEXT PRIMARY KEY,
		session_id      TEXT NOT NULL,
		student_id      TEXT NOT NULL,
		marked_by       TEXT NOT NULL,
		distance_meters DOUBLE PRECISION,
		occurred_at     TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_creator ON sessions(creator_id);
	CREATE INDEX IF NOT EXISTS idx_records_student  ON attendance_records(student_id);
	`
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

// CreateSession inserts the session and its absent roster records in one
// transaction; no partial roster materialization.
func (p *Postgres) CreateSession(ctx context.Context, s *model.Session, roster []string) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	if s.Status == "" {
		s.Status = model.StatusNew
	}
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, title, description, valid_from, valid_to, status, subject_code, batch_id, class_config_id, creator_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, s.ID, s.Title, s.Description, s.ValidFrom, s.ValidTo, s.Status, s.SubjectCode, s.BatchID, s.ClassConfigID, s.CreatorID, s.CreatedAt)
	if err != nil {
		return err
	}
	for _, studentID := range roster {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attendance_records (session_id, student_id, status)
			VALUES ($1, $2, 'absent')
			ON CONFLICT (session_id, student_id) DO NOTHING
		`, s.ID, studentID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, title, description, valid_from, valid_to, status, subject_code, batch_id, class_config_id, creator_id, created_at
		FROM sessions WHERE id = $1
	`, id)
	var s model.Session
	if err := scanSession(row, &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner, s *model.Session) error {
	return row.Scan(&s.ID, &s.Title, &s.Description, &s.ValidFrom, &s.ValidTo, &s.Status, &s.SubjectCode, &s.BatchID, &s.ClassConfigID, &s.CreatorID, &s.CreatedAt)
}

func (p *Postgres) ListSessionsByCreator(ctx context.Context, creatorID string, status model.SessionStatus) ([]model.Session, error) {
	query := `
		SELECT id, title, description, valid_from, valid_to, status, subject_code, batch_id, class_config_id, creator_id, created_at
		FROM sessions WHERE creator_id = $1`
	args := []any{creatorID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`
	return p.querySessions(ctx, query, args...)
}

func (p *Postgres) ListSessionsByStudent(ctx context.Context, studentID string, status model.SessionStatus) ([]model.Session, error) {
	query := `
		SELECT s.id, s.title, s.description, s.valid_from, s.valid_to, s.status, s.subject_code, s.batch_id, s.class_config_id, s.creator_id, s.created_at
		FROM sessions s
		JOIN attendance_records r ON r.session_id = s.id
		WHERE r.student_id = $1`
	args := []any{studentID}
	if status != "" {
		query += ` AND s.status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY s.created_at DESC`
	return p.querySessions(ctx, query, args...)
}

func (p *Postgres) querySessions(ctx context.Context, query string, args ...any) ([]model.Session, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Session
	for rows.Next() {
		var s model.Session
		if err := scanSession(rows, &s); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (p *Postgres) UpdateSession(ctx context.Context, s *model.Session) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE sessions
		SET title = $2, description = $3, valid_from = $4, valid_to = $5, subject_code = $6, batch_id = $7, class_config_id = $8
		WHERE id = $1
	`, s.ID, s.Title, s.Description, s.ValidFrom, s.ValidTo, s.SubjectCode, s.BatchID, s.ClassConfigID)
	if err != nil {
		return err
	}
	return noneMeansMissing(res, ErrSessionNotFound)
}

// TransitionSession is a compare-and-swap on status: zero rows affected
// means the stored status no longer equals from.
func (p *Postgres) TransitionSession(ctx context.Context, id string, from, to model.SessionStatus) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE sessions SET status = $3 WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := p.GetSession(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

func (p *Postgres) DeleteSession(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return noneMeansMissing(res, ErrSessionNotFound)
}

func (p *Postgres) AddRosterMembers(ctx context.Context, sessionID string, studentIDs []string) error {
	for _, studentID := range studentIDs {
		if _, err := p.db.ExecContext(ctx, `
			INSERT INTO attendance_records (session_id, student_id, status)
			VALUES ($1, $2, 'absent')
			ON CONFLICT (session_id, student_id) DO NOTHING
		`, sessionID, studentID); err != nil {
			return err
		}
	}
	return nil
}

// MarkPresent updates only a still-absent record, so concurrent marks for
// the same (session, student) resolve to one winner.
func (p *Postgres) MarkPresent(ctx context.Context, sessionID, studentID string, by model.MarkedBy, at time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET status = 'present', marked_at = $3, marked_by = $4
		WHERE session_id = $1 AND student_id = $2 AND status = 'absent'
	`, sessionID, studentID, at, by)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		rec, err := p.GetRecord(ctx, sessionID, studentID)
		if err != nil {
			return err
		}
		if rec.Status == model.MarkPresent {
			return ErrAlreadyPresent
		}
		return ErrNoRecord
	}
	return nil
}

func (p *Postgres) GetRecord(ctx context.Context, sessionID, studentID string) (*model.AttendanceRecord, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT session_id, student_id, status, marked_at, marked_by
		FROM attendance_records WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID)
	var rec model.AttendanceRecord
	var markedBy sql.NullString
	if err := row.Scan(&rec.SessionID, &rec.StudentID, &rec.Status, &rec.MarkedAt, &markedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoRecord
		}
		return nil, err
	}
	rec.MarkedBy = model.MarkedBy(markedBy.String)
	return &rec, nil
}

func (p *Postgres) ListRoster(ctx context.Context, sessionID string) ([]model.AttendanceRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT session_id, student_id, status, marked_at, marked_by
		FROM attendance_records WHERE session_id = $1
		ORDER BY student_id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.AttendanceRecord
	for rows.Next() {
		var rec model.AttendanceRecord
		var markedBy sql.NullString
		if err := rows.Scan(&rec.SessionID, &rec.StudentID, &rec.Status, &rec.MarkedAt, &markedBy); err != nil {
			return nil, err
		}
		rec.MarkedBy = model.MarkedBy(markedBy.String)
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (p *Postgres) AppendAudit(ctx context.Context, evt AuditEvent) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO attendance_audit (id, session_id, student_id, marked_by, distance_meters, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, evt.ID, evt.SessionID, evt.StudentID, evt.MarkedBy, evt.DistanceMeters, evt.OccurredAt)
	return err
}

func noneMeansMissing(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
