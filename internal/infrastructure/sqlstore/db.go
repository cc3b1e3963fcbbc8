package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	SQLite Dialect = "sqlite"
	MySQL  Dialect = "mysql"
)

// DB is a database handle that knows which SQL dialect it speaks.
type DB struct {
	*sql.DB
	dialect Dialect
}

// Open connects and creates the tables. For sqlite dsn is a file path; for
// mysql it is a go-sql-driver DSN.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	d := Dialect(strings.ToLower(strings.TrimSpace(driver)))
	var (
		db  *sql.DB
		err error
	)
	switch d {
	case SQLite, "":
		d = SQLite
		db, err = sql.Open("sqlite", dsn+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
		if err != nil {
			return nil, fmt.Errorf("sqlstore: open sqlite: %w", err)
		}
		// SQLite only supports 1 writer
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	case MySQL:
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: open mysql: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", d, err)
	}
	out := &DB{DB: db, dialect: d}
	if err := out.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return out, nil
}

func (db *DB) Dialect() Dialect { return db.dialect }

func (db *DB) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS giveaways (
			message_id VARCHAR(64) NOT NULL PRIMARY KEY,
			channel_id VARCHAR(64) NOT NULL,
			guild_id VARCHAR(64) NOT NULL DEFAULT '',
			prize TEXT NOT NULL,
			description TEXT NOT NULL,
			ends_at_ms BIGINT NOT NULL,
			winner_count INTEGER NOT NULL,
			color VARCHAR(16) NOT NULL DEFAULT '',
			thumbnail TEXT NOT NULL,
			footer TEXT NOT NULL,
			required_role_id VARCHAR(64) NOT NULL DEFAULT '',
			author_id VARCHAR(64) NOT NULL DEFAULT '',
			forced_winner_id VARCHAR(64) NOT NULL DEFAULT '',
			entrants TEXT NOT NULL,
			status VARCHAR(16) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			amount_cents BIGINT NOT NULL,
			product TEXT NOT NULL,
			method VARCHAR(32) NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL,
			created_at_ms BIGINT NOT NULL
		)`,
	}
	if db.dialect == SQLite {
		stmts = append(stmts,
			`CREATE INDEX IF NOT EXISTS idx_giveaways_status ON giveaways(status)`,
			`CREATE INDEX IF NOT EXISTS idx_sales_created ON sales(created_at_ms)`,
		)
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// upsert renders an insert that updates the given columns on key conflict.
func (db *DB) upsert(table, key string, cols []string, update []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), placeholders)
	sets := make([]string, len(update))
	if db.dialect == MySQL {
		for i, c := range update {
			sets[i] = fmt.Sprintf("%s = VALUES(%s)", c, c)
		}
		return q + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
	}
	for i, c := range update {
		sets[i] = fmt.Sprintf("%s = excluded.%s", c, c)
	}
	return q + fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET ", key) + strings.Join(sets, ", ")
}
