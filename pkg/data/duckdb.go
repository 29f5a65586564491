package data

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/marcboeker/go-duckdb/v2"
)

var ErrSchemaMigration = errors.New("schema migration failed")

// SchemaMigrationError is returned by OpenKeyStore when the store schema
// cannot be brought up to date. The store is left at version From.
type SchemaMigrationError struct {
	From int
	To   int
	Err  error
}

func (e *SchemaMigrationError) Error() string {
	return fmt.Sprintf("schema migration %d -> %d: %v", e.From, e.To, e.Err)
}

func (e *SchemaMigrationError) Unwrap() error { return e.Err }

func (e *SchemaMigrationError) Is(target error) bool { return target == ErrSchemaMigration }

func InitDuckDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// KeyStore persists imported chapter keys and division linear flags.
type KeyStore struct {
	db *sql.DB
}

// OpenKeyStore opens (or creates) the store at path and brings its schema up
// to the current version.
func OpenKeyStore(path string) (*KeyStore, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open key store: %w", err)
	}
	s := &KeyStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *KeyStore) Close() error {
	return s.db.Close()
}

// SchemaVersion reports the version recorded in the marker row.
func (s *KeyStore) SchemaVersion() (int, error) {
	v, _, err := s.schemaVersion()
	return v, err
}

func (s *KeyStore) schemaVersion() (int, bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'schema_version'`).Scan(&n)
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}

	var raw string
	err = s.db.QueryRow(`SELECT version FROM schema_version WHERE id = ?`, versionMarkerID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid schema version %q: %w", raw, err)
	}
	return v, true, nil
}

func (s *KeyStore) migrate() error {
	from, ok, err := s.schemaVersion()
	if err != nil {
		return &SchemaMigrationError{From: from, To: currentSchemaVersion, Err: err}
	}

	if !ok {
		if err := s.apply(currentSchema, currentSchemaVersion); err != nil {
			return &SchemaMigrationError{From: 0, To: currentSchemaVersion, Err: err}
		}
		return nil
	}

	if from > currentSchemaVersion {
		return &SchemaMigrationError{From: from, To: currentSchemaVersion,
			Err: fmt.Errorf("store was created by a newer version")}
	}

	for _, m := range migrations {
		if m.version <= from {
			continue
		}
		if err := s.apply(m.statements, m.version); err != nil {
			return &SchemaMigrationError{From: from, To: m.version, Err: err}
		}
		from = m.version
	}
	return nil
}

// apply runs statements and records version in one transaction.
func (s *KeyStore) apply(statements []string, version int) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for _, stmt := range append([]string{createVersionTable}, statements...) {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return err
		}
	}
	_, err = tx.Exec(`
		INSERT INTO schema_version (id, version) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET version = excluded.version
	`, versionMarkerID, strconv.Itoa(version))
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func upsertKey(e execer, chapterID, userID int64, key string) error {
	_, err := e.Exec(`
		INSERT INTO chapter_key (chapter_id, user_id, key_text) VALUES (?, ?, ?)
		ON CONFLICT (chapter_id, user_id) DO UPDATE SET key_text = excluded.key_text
	`, chapterID, userID, key)
	return err
}

// UpsertKey stores key for (chapterID, userID), replacing an existing value.
func (s *KeyStore) UpsertKey(chapterID, userID int64, key string) error {
	if err := upsertKey(s.db, chapterID, userID, key); err != nil {
		return fmt.Errorf("failed to save key: %w", err)
	}
	return nil
}

// KeysFor returns the keys of a chapter in the order they were first stored.
func (s *KeyStore) KeysFor(chapterID int64) ([]string, error) {
	rows, err := s.db.Query(`SELECT key_text FROM chapter_key WHERE chapter_id = ? ORDER BY seq`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// AllKeys returns every stored key indexed by origin id.
func (s *KeyStore) AllKeys() (map[string]string, error) {
	rows, err := s.db.Query(`SELECT chapter_id, user_id, key_text FROM chapter_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]string)
	for rows.Next() {
		var rec KeyRecord
		if err := rows.Scan(&rec.ChapterID, &rec.UserID, &rec.Key); err != nil {
			return nil, err
		}
		keys[rec.OriginID()] = rec.Key
	}
	return keys, rows.Err()
}

// LookupLinear returns the persisted flag of a division and whether one was set.
func (s *KeyStore) LookupLinear(divisionID int64) (linear bool, ok bool, err error) {
	err = s.db.QueryRow(`SELECT is_linear FROM division WHERE division_id = ?`, divisionID).Scan(&linear)
	if errors.Is(err, sql.ErrNoRows) {
		return true, false, nil
	}
	if err != nil {
		return true, false, fmt.Errorf("failed to query division: %w", err)
	}
	return linear, true, nil
}

// GetLinear returns the linear flag of a division, true when never set.
func (s *KeyStore) GetLinear(divisionID int64) (bool, error) {
	linear, _, err := s.LookupLinear(divisionID)
	return linear, err
}

func (s *KeyStore) SetLinear(divisionID int64, linear bool) error {
	_, err := s.db.Exec(`
		INSERT INTO division (division_id, is_linear) VALUES (?, ?)
		ON CONFLICT (division_id) DO UPDATE SET is_linear = excluded.is_linear
	`, divisionID, linear)
	if err != nil {
		return fmt.Errorf("failed to save division: %w", err)
	}
	return nil
}

// Begin starts a batch of key writes committed together.
func (s *KeyStore) Begin() (*KeyTx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &KeyTx{tx: tx}, nil
}

type KeyTx struct {
	tx *sql.Tx
}

func (t *KeyTx) UpsertKey(chapterID, userID int64, key string) error {
	return upsertKey(t.tx, chapterID, userID, key)
}

func (t *KeyTx) Commit() error { return t.tx.Commit() }

func (t *KeyTx) Rollback() error { return t.tx.Rollback() }
