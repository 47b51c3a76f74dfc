package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"tally/internal/books"
)

// SQLiteRepository persists every collection in one records table keyed
// by (collection, id), each row holding the JSON document plus a version
// counter for optimistic locking. Apply maps a books.Transaction onto a
// single sql transaction, so the all-or-nothing contract is the
// database's, not ours.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ books.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, collection string) ([]books.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT data FROM records WHERE collection = ?
		 ORDER BY record_date DESC, created_at DESC`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []books.Record
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", collection, err)
		}
		rec, err := decodeRecord(data)
		if err != nil {
			// A hand-edited row must degrade, not break the dashboard.
			slog.WarnContext(ctx, "Skipping undecodable record",
				"collection", collection, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Get(ctx context.Context, collection, id string) (books.Record, error) {
	if id == "" {
		return nil, books.ErrMissingID
	}
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM records WHERE collection = ? AND id = ?`, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, books.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decodeRecord(data)
}

func (r *SQLiteRepository) Create(ctx context.Context, collection string, rec books.Record) (string, error) {
	changes, err := r.Apply(ctx, books.NewTransaction().Create(collection, rec))
	if err != nil {
		return "", err
	}
	return changes[0].ID, nil
}

func (r *SQLiteRepository) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := r.Apply(ctx, books.NewTransaction().Update(collection, id, 0, fields))
	return err
}

func (r *SQLiteRepository) Delete(ctx context.Context, collection, id string) error {
	_, err := r.Apply(ctx, books.NewTransaction().Delete(collection, id))
	return err
}

// Apply commits every op inside one sql transaction. A version mismatch
// or missing record rolls the whole batch back.
func (r *SQLiteRepository) Apply(ctx context.Context, tx *books.Transaction) ([]books.Change, error) {
	if tx.Empty() {
		return nil, nil
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	changes := make([]books.Change, 0, len(tx.Ops))
	for _, op := range tx.Ops {
		var change books.Change
		switch op.Kind {
		case books.OpCreate:
			change, err = r.applyCreate(ctx, sqlTx, op)
		case books.OpUpdate:
			change, err = r.applyUpdate(ctx, sqlTx, op)
		case books.OpDelete:
			change, err = r.applyDelete(ctx, sqlTx, op)
		default:
			err = fmt.Errorf("unknown op kind %q", op.Kind)
		}
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return changes, nil
}

func (r *SQLiteRepository) applyCreate(ctx context.Context, tx *sql.Tx, op books.Op) (books.Change, error) {
	if op.Record == nil {
		return books.Change{}, fmt.Errorf("create in %s: nil record", op.Collection)
	}
	rec := op.Record.Clone()
	id := uuid.NewString()
	createdAt := r.now().UTC().Format(time.RFC3339)
	rec[books.FieldID] = id
	rec[books.FieldCreatedAt] = createdAt
	rec[books.FieldVersion] = int64(1)

	data, err := json.Marshal(rec)
	if err != nil {
		return books.Change{}, fmt.Errorf("encode %s record: %w", op.Collection, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO records (collection, id, data, version, record_date, created_at)
		 VALUES (?, ?, ?, 1, ?, ?)`,
		op.Collection, id, data, orderDate(rec, createdAt), createdAt)
	if err != nil {
		return books.Change{}, fmt.Errorf("insert %s record: %w", op.Collection, err)
	}
	return books.Change{Collection: op.Collection, ID: id, Kind: books.OpCreate}, nil
}

func (r *SQLiteRepository) applyUpdate(ctx context.Context, tx *sql.Tx, op books.Op) (books.Change, error) {
	if op.ID == "" {
		return books.Change{}, books.ErrMissingID
	}

	var data []byte
	var version int64
	var createdAt string
	err := tx.QueryRowContext(ctx,
		`SELECT data, version, created_at FROM records WHERE collection = ? AND id = ?`,
		op.Collection, op.ID).Scan(&data, &version, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return books.Change{}, fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, books.ErrNotFound)
	}
	if err != nil {
		return books.Change{}, fmt.Errorf("read %s/%s for update: %w", op.Collection, op.ID, err)
	}
	if op.ExpectedVersion != 0 && version != op.ExpectedVersion {
		return books.Change{}, fmt.Errorf("%s/%s at version %d, expected %d: %w",
			op.Collection, op.ID, version, op.ExpectedVersion, books.ErrConflict)
	}

	rec, err := decodeRecord(data)
	if err != nil {
		return books.Change{}, fmt.Errorf("decode %s/%s: %w", op.Collection, op.ID, err)
	}
	for k, v := range op.Fields {
		if k == books.FieldID || k == books.FieldCreatedAt || k == books.FieldVersion {
			continue
		}
		rec[k] = v
	}
	rec[books.FieldVersion] = version + 1

	merged, err := json.Marshal(rec)
	if err != nil {
		return books.Change{}, fmt.Errorf("encode %s/%s: %w", op.Collection, op.ID, err)
	}

	// The version predicate catches writers that slipped between our
	// read and this write.
	res, err := tx.ExecContext(ctx,
		`UPDATE records SET data = ?, version = version + 1, record_date = ?
		 WHERE collection = ? AND id = ? AND version = ?`,
		merged, orderDate(rec, createdAt), op.Collection, op.ID, version)
	if err != nil {
		return books.Change{}, fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return books.Change{}, fmt.Errorf("update %s/%s: %w", op.Collection, op.ID, books.ErrConflict)
	}
	return books.Change{Collection: op.Collection, ID: op.ID, Kind: books.OpUpdate}, nil
}

func (r *SQLiteRepository) applyDelete(ctx context.Context, tx *sql.Tx, op books.Op) (books.Change, error) {
	if op.ID == "" {
		return books.Change{}, books.ErrMissingID
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM records WHERE collection = ? AND id = ?`, op.Collection, op.ID)
	if err != nil {
		return books.Change{}, fmt.Errorf("delete %s/%s: %w", op.Collection, op.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return books.Change{}, fmt.Errorf("delete %s/%s: %w", op.Collection, op.ID, books.ErrNotFound)
	}
	return books.Change{Collection: op.Collection, ID: op.ID, Kind: books.OpDelete}, nil
}

func decodeRecord(data []byte) (books.Record, error) {
	var rec books.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// orderDate is the denormalized sort key: the record's date field when
// parseable, otherwise its creation time.
func orderDate(rec books.Record, createdAt string) string {
	if d := books.TimeOf(rec[books.FieldDate]); !d.IsZero() {
		return d.Format("2006-01-02")
	}
	if t := books.TimeOf(createdAt); !t.IsZero() {
		return t.Format("2006-01-02")
	}
	return ""
}
