package db

import (
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// InitPostgres connects with a short retry loop so the daemon survives the
// database coming up after it, and bounds the shared pool.
func InitPostgres(dsn string, maxConns int) (*sqlx.DB, error) {
	var (
		conn *sqlx.DB
		err  error
	)

	for i := 0; i < 10; i++ {
		conn, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			conn.SetMaxOpenConns(maxConns)
			conn.SetMaxIdleConns(maxConns / 2)
			conn.SetConnMaxLifetime(30 * time.Minute)
			return conn, nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return nil, err
}
