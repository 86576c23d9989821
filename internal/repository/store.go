package repository

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// dialect captures the few places sqlite and mysql SQL diverge: the DDL and
// the row-locking clause. Everything else runs through ?-placeholder SQL
// shared by both drivers.
type dialect struct {
	name      string
	forUpdate string
	schema    []string
}

var sqliteDialect = dialect{
	name:      "sqlite",
	forUpdate: "", // single writer, transactions serialize
	schema: []string{
		`CREATE TABLE IF NOT EXISTS card_templates (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			rarity TEXT NOT NULL,
			variant TEXT NOT NULL DEFAULT '',
			set_name TEXT NOT NULL DEFAULT '',
			energy INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_templates_rarity ON card_templates(rarity)`,
		`CREATE TABLE IF NOT EXISTS cards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			template_id INTEGER NOT NULL,
			rarity TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'available',
			owner TEXT NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cards_template_status ON cards(template_id, status)`,
		`CREATE TABLE IF NOT EXISTS pack_sessions (
			id TEXT PRIMARY KEY,
			wallet TEXT NOT NULL,
			pack_type TEXT NOT NULL,
			currency TEXT NOT NULL,
			caller_seed TEXT NOT NULL,
			commitment TEXT NOT NULL,
			nonce TEXT NOT NULL,
			proof TEXT NOT NULL,
			rarities TEXT NOT NULL,
			card_ids TEXT NOT NULL,
			state TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_wallet_state ON pack_sessions(wallet, state)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_state_expires ON pack_sessions(state, expires_at)`,
	},
}

var mysqlDialect = dialect{
	name:      "mysql",
	forUpdate: " FOR UPDATE",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS card_templates (
			id BIGINT PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			rarity VARCHAR(64) NOT NULL,
			variant VARCHAR(64) NOT NULL DEFAULT '',
			set_name VARCHAR(128) NOT NULL DEFAULT '',
			energy TINYINT NOT NULL DEFAULT 0,
			INDEX idx_templates_rarity (rarity)
		)`,
		`CREATE TABLE IF NOT EXISTS cards (
			id BIGINT PRIMARY KEY AUTO_INCREMENT,
			template_id BIGINT NOT NULL,
			rarity VARCHAR(64) NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'available',
			owner VARCHAR(128) NOT NULL DEFAULT '',
			updated_at DATETIME NOT NULL,
			INDEX idx_cards_template_status (template_id, status)
		)`,
		`CREATE TABLE IF NOT EXISTS pack_sessions (
			id VARCHAR(64) PRIMARY KEY,
			wallet VARCHAR(128) NOT NULL,
			pack_type VARCHAR(64) NOT NULL,
			currency VARCHAR(32) NOT NULL,
			caller_seed TEXT NOT NULL,
			commitment VARCHAR(64) NOT NULL,
			nonce VARCHAR(32) NOT NULL,
			proof VARCHAR(64) NOT NULL,
			rarities TEXT NOT NULL,
			card_ids TEXT NOT NULL,
			state VARCHAR(32) NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			INDEX idx_sessions_wallet_state (wallet, state),
			INDEX idx_sessions_state_expires (state, expires_at)
		)`,
	},
}

// Store is the SQL-backed catalog, card inventory, and session ledger. All
// state transitions that touch shared rows run inside a single transaction.
type Store struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQLite opens (and if needed creates) a SQLite-backed store.
// dbPath is the path to the database file (e.g., "./data/packs.db").
func OpenSQLite(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, dialect: sqliteDialect}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[Store] SQLite store initialized: %s", dbPath)
	return s, nil
}

// OpenMySQL opens a MySQL-backed store using the given DSN.
func OpenMySQL(dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &Store{db: db, dialect: mysqlDialect}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[Store] MySQL store initialized")
	return s, nil
}

func (s *Store) createTables() error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// placeholders builds a "?, ?, ?" list for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// int64Args widens ids for variadic query arguments.
func int64Args(ids []int64) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
