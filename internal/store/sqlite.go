package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/seantiz/topoctl/internal/model"
	"github.com/seantiz/topoctl/internal/store/migrations"
)

const memoryPath = ":memory:"

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite. Each row carries a version
// that is compared on update, so a write that lost a race with another
// commit fails with ErrConflict instead of overwriting it.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
// The special path ":memory:" opens a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != memoryPath {
		dsn = dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == memoryPath {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get retrieves the entity stored for family and key in partition p.
func (s *SQLiteStore) Get(ctx context.Context, p model.Partition, family, key string) (*model.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT family, entity_key, data, status, version, updated_at
		FROM entities WHERE partition = ? AND family = ? AND entity_key = ?`,
		string(p), family, key,
	)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", classify(err))
	}
	return e, nil
}

// Put stores e in partition p. The stored version is incremented on
// every write; an update whose version check fails reports ErrConflict.
func (s *SQLiteStore) Put(ctx context.Context, p model.Partition, e *model.Entity, mode WriteMode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write tx: %w", classify(err))
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT family, entity_key, data, status, version, updated_at
		FROM entities WHERE partition = ? AND family = ? AND entity_key = ?`,
		string(p), e.Family, e.Key,
	)
	current, err := scanEntity(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read current entity: %w", classify(err))
	}

	data, status := e.Data, e.Status
	if current != nil && mode == Merge {
		data = current.Data.Merge(e.Data)
		if status == nil {
			status = current.Status
		}
	}
	dataJSON, statusJSON, err := encodeEntity(data, status)
	if err != nil {
		return err
	}
	now := s.now().UTC().UnixMilli()

	if current == nil {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entities (partition, family, entity_key, data, status, version, updated_at)
			VALUES (?, ?, ?, ?, ?, 1, ?)`,
			string(p), e.Family, e.Key, dataJSON, statusJSON, now,
		); err != nil {
			return fmt.Errorf("insert entity: %w", classify(err))
		}
	} else {
		result, err := tx.ExecContext(ctx,
			`UPDATE entities SET data = ?, status = ?, version = version + 1, updated_at = ?
			WHERE partition = ? AND family = ? AND entity_key = ? AND version = ?`,
			dataJSON, statusJSON, now, string(p), e.Family, e.Key, current.Version,
		)
		if err != nil {
			return fmt.Errorf("update entity: %w", classify(err))
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("update entity version %d: %w", current.Version, ErrConflict)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit entity: %w", classify(err))
	}
	return nil
}

// Remove deletes the entity for family and key from partition p.
func (s *SQLiteStore) Remove(ctx context.Context, p model.Partition, family, key string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM entities WHERE partition = ? AND family = ? AND entity_key = ?",
		string(p), family, key,
	)
	if err != nil {
		return fmt.Errorf("delete entity: %w", classify(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns a page of entities of one family ordered by most recent
// update, along with the total count for that family.
func (s *SQLiteStore) List(ctx context.Context, p model.Partition, family string, limit, offset int) ([]*model.Entity, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entities WHERE partition = ? AND family = ?",
		string(p), family,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entities: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT family, entity_key, data, status, version, updated_at
		FROM entities WHERE partition = ? AND family = ?
		ORDER BY updated_at DESC, entity_key LIMIT ? OFFSET ?`,
		string(p), family, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate entities: %w", err)
	}
	return entities, total, nil
}

// Stats returns entity counts per partition and per family.
func (s *SQLiteStore) Stats(ctx context.Context) (*EntityStats, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT partition, family, COUNT(*) FROM entities GROUP BY partition, family")
	if err != nil {
		return nil, fmt.Errorf("count entities: %w", err)
	}
	defer rows.Close()

	stats := &EntityStats{
		CountByPartition: make(map[string]int),
		CountByFamily:    make(map[string]int),
	}
	for rows.Next() {
		var partition, family string
		var n int
		if err := rows.Scan(&partition, &family, &n); err != nil {
			return nil, fmt.Errorf("scan entity count: %w", err)
		}
		stats.Total += n
		stats.CountByPartition[partition] += n
		stats.CountByFamily[family] += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entity counts: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*model.Entity, error) {
	var (
		e          model.Entity
		dataJSON   sql.NullString
		statusJSON sql.NullString
		updatedAt  int64
	)
	if err := row.Scan(&e.Family, &e.Key, &dataJSON, &statusJSON, &e.Version, &updatedAt); err != nil {
		return nil, err
	}
	if dataJSON.Valid && dataJSON.String != "" {
		if err := json.Unmarshal([]byte(dataJSON.String), &e.Data); err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
	}
	if statusJSON.Valid && statusJSON.String != "" {
		e.Status = &model.Status{}
		if err := json.Unmarshal([]byte(statusJSON.String), e.Status); err != nil {
			return nil, fmt.Errorf("decode status: %w", err)
		}
	}
	e.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &e, nil
}

func encodeEntity(data model.Record, status *model.Status) (sql.NullString, sql.NullString, error) {
	var dataJSON, statusJSON sql.NullString
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return dataJSON, statusJSON, fmt.Errorf("encode data: %w", err)
		}
		dataJSON = sql.NullString{String: string(b), Valid: true}
	}
	if status != nil {
		b, err := json.Marshal(status)
		if err != nil {
			return dataJSON, statusJSON, fmt.Errorf("encode status: %w", err)
		}
		statusJSON = sql.NullString{String: string(b), Valid: true}
	}
	return dataJSON, statusJSON, nil
}

// classify maps SQLite lock contention and key collisions to ErrConflict.
func classify(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case sqlite3.SQLITE_CONSTRAINT:
		if code := sqliteErr.Code(); code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	}
	return err
}
