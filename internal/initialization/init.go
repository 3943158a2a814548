// The initialization package contains functions that set up optional dependencies such as the SQLite database
// backing the deferral queue.
package initialization

import (
	"database/sql"
	"time"

	"github.com/mikestefanello/backlite"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

func OpenDB(connString string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", connString)
	if err != nil {
		log.Error().Err(err).Str("connection string", connString).Msg("failed to open database")
		return nil, err
	}
	if err = db.Ping(); err != nil {
		log.Error().Err(err).Str("connection string", connString).Msg("failed to reach database")
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitQueue creates the backlite client on db and installs its schema, which is a no-op when the tables already
// exist. The client is not started.
func InitQueue(db *sql.DB, workers int) (*backlite.Client, error) {
	if workers < 1 {
		workers = 1
	}
	client, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		Logger:          queueLogger{},
		NumWorkers:      workers,
		ReleaseAfter:    time.Minute,
		CleanupInterval: time.Hour,
	})
	if err != nil {
		return nil, err
	}

	if err = client.Install(); err != nil {
		log.Error().Err(err).Msg("failed to install queue schema")
		return nil, err
	}
	return client, nil
}

// queueLogger forwards backlite's key/value logging to zerolog.
type queueLogger struct{}

func (queueLogger) Info(message string, params ...any) {
	log.Debug().Fields(params).Msg(message)
}

func (queueLogger) Error(message string, params ...any) {
	log.Error().Fields(params).Msg(message)
}
