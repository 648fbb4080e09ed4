package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if needed) the SQLite file at path and brings its
// schema up to date. The returned handle is meant to be opened once per
// process and closed on shutdown.
func Open(path string) (db *sql.DB, err error) {
	db, err = sql.Open("sqlite3", dsn(path))
	if err != nil {
		return
	}

	// db tuning options
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(2 * time.Hour)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database: open %s: %w", path, err)
	}

	err = migrateDB(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("database: migrate: %w", err)
	}

	return
}

func dsn(path string) string {
	params := url.Values{
		"_busy_timeout": {"5000"},
		"_journal_mode": {"WAL"},
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + params.Encode()
}
