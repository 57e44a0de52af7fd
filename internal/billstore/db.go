package billstore

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"strings"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

func isRemote(dsn string) bool {
	for _, scheme := range []string{"libsql://", "https://", "http://", "wss://", "ws://"} {
		if strings.HasPrefix(dsn, scheme) {
			return true
		}
	}
	return false
}

// OpenDB opens the bill database and makes sure its schema exists. `dsn` is
// either a libsql url (ex. libsql://bills.turso.io?authToken=...), ":memory:"
// or the path of a local sqlite file which is created if missing.
func OpenDB(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("a database was not specified")
	}

	var db *sql.DB
	var err error
	if isRemote(dsn) {
		db, err = sql.Open("libsql", dsn)
		if err != nil {
			return nil, err
		}
	} else {
		if dsn != ":memory:" {
			_, statErr := os.Stat(dsn)
			if os.IsNotExist(statErr) {
				f, err := os.Create(dsn)
				if err != nil {
					return nil, err
				}
				f.Close()
			}
		}

		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, err
		}
		// a single connection keeps ":memory:" databases alive and avoids
		// concurrent writers on files
		db.SetMaxOpenConns(1)
		if dsn != ":memory:" {
			_, err = db.Exec("PRAGMA journal_mode=WAL")
			if err != nil {
				db.Close()
				return nil, err
			}
		}
	}

	_, err = db.Exec(Schema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}
