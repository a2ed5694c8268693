package state

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/drsholding/pkg/failure"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	proquest_id TEXT NOT NULL,
	directory_id TEXT NOT NULL DEFAULT '',
	school_alma_dropbox TEXT NOT NULL DEFAULT '',
	alma_submission_status TEXT NOT NULL,
	indash INTEGER NOT NULL DEFAULT 0,
	insertion_date DATETIME NOT NULL,
	last_modified_date DATETIME NOT NULL,
	alma_dropbox_submission_date DATETIME
);
CREATE INDEX IF NOT EXISTS idx_records_lookup ON records (proquest_id, alma_submission_status);
`

// 🗃️ SQLiteStore keeps records in a local file, for development and integration runs
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the database at path
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Errorf("opening sqlite: %w: %w", failure.ErrStore, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Errorf("migrating sqlite: %w: %w", failure.ErrStore, err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (q Query) where() (string, []any) {
	var clauses []string
	var args []any
	if q.ExternalID != "" {
		clauses = append(clauses, FieldExternalID+" = ?")
		args = append(args, q.ExternalID)
	}
	if q.DirectoryID != "" {
		clauses = append(clauses, FieldDirectoryID+" = ?")
		args = append(args, q.DirectoryID)
	}
	if q.Status != "" {
		clauses = append(clauses, FieldStatus+" = ?")
		args = append(args, string(q.Status))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *SQLiteStore) Query(ctx context.Context, q Query) ([]Record, error) {
	where, args := q.where()
	rows, err := s.db.QueryContext(ctx, `SELECT proquest_id, directory_id, school_alma_dropbox, alma_submission_status,
		indash, insertion_date, last_modified_date, alma_dropbox_submission_date FROM records`+where+` ORDER BY rowid`, args...)
	if err != nil {
		return nil, errors.Errorf("querying records: %w: %w", failure.ErrStore, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var status string
		var dropbox sql.NullTime
		if err := rows.Scan(&r.ExternalID, &r.DirectoryID, &r.School, &status, &r.InDash,
			&r.InsertionDate, &r.LastModifiedDate, &dropbox); err != nil {
			return nil, errors.Errorf("scanning record: %w: %w", failure.ErrStore, err)
		}
		r.Status = Status(status)
		if dropbox.Valid {
			t := dropbox.Time
			r.DropboxSubmission = &t
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("iterating records: %w: %w", failure.ErrStore, err)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateStatus(ctx context.Context, q Query, status Status) (int64, error) {
	if q.IsEmpty() {
		return 0, errors.Errorf("updating status: %w: refusing unconstrained update", failure.ErrStore)
	}
	where, args := q.where()
	now := s.now().UTC()

	set := FieldStatus + " = ?, " + FieldLastModifiedDate + " = ?"
	setArgs := []any{string(status), now}
	if status == StatusDropboxSubmitted {
		set += ", " + FieldDropboxDate + " = ?"
		setArgs = append(setArgs, now)
	}

	res, err := s.db.ExecContext(ctx, "UPDATE records SET "+set+where, append(setArgs, args...)...)
	if err != nil {
		return 0, errors.Errorf("updating status: %w: %w", failure.ErrStore, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Errorf("updating status: %w: %w", failure.ErrStore, err)
	}
	return n, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, records ...Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Errorf("inserting records: %w: %w", failure.ErrStore, err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	for _, r := range records {
		if r.InsertionDate.IsZero() {
			r.InsertionDate = now
		}
		if r.LastModifiedDate.IsZero() {
			r.LastModifiedDate = now
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO records (proquest_id, directory_id, school_alma_dropbox,
			alma_submission_status, indash, insertion_date, last_modified_date, alma_dropbox_submission_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ExternalID, r.DirectoryID, r.School, string(r.Status), r.InDash,
			r.InsertionDate.UTC(), r.LastModifiedDate.UTC(), r.DropboxSubmission); err != nil {
			return errors.Errorf("inserting %s: %w: %w", r.ExternalID, failure.ErrStore, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Errorf("committing records: %w: %w", failure.ErrStore, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, q Query) (int64, error) {
	if q.IsEmpty() {
		return 0, errors.Errorf("deleting records: %w: refusing unconstrained delete", failure.ErrStore)
	}
	where, args := q.where()
	res, err := s.db.ExecContext(ctx, "DELETE FROM records"+where, args...)
	if err != nil {
		return 0, errors.Errorf("deleting records: %w: %w", failure.ErrStore, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Errorf("deleting records: %w: %w", failure.ErrStore, err)
	}
	return n, nil
}

func (s *SQLiteStore) Close(ctx context.Context) error {
	if err := s.db.Close(); err != nil {
		return errors.Errorf("closing sqlite: %w", err)
	}
	return nil
}
