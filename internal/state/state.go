package state

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/golivefyre/internal/config"
	"github.com/sidereusnuntius/golivefyre/internal/initialization"
	"github.com/sidereusnuntius/golivefyre/internal/queue"
	"github.com/sidereusnuntius/golivefyre/livefyre"
)

// State holds everything built from a configuration. It is passed explicitly instead of being kept in a
// package-level client.
type State struct {
	Config config.Configuration
	Client *livefyre.Client
	// DB and Queue are nil unless a queue database is configured.
	DB    *sql.DB
	Queue *queue.Queue
}

func New(cfg config.Configuration) (*State, error) {
	client, err := livefyre.New(cfg.ClientOptions())
	if err != nil {
		return nil, err
	}
	s := &State{
		Config: cfg,
		Client: client,
	}

	if cfg.QueueDB == "" {
		return s, nil
	}

	s.DB, err = initialization.OpenDB(cfg.QueueDB)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("queue database connection established")

	tasks, err := initialization.InitQueue(s.DB, cfg.Workers)
	if err != nil {
		s.DB.Close()
		return nil, err
	}
	s.Queue = queue.New(client, tasks)
	return s, nil
}

// Site returns the configured default site.
func (s *State) Site() (*livefyre.Site, error) {
	if s.Client.SiteID() == "" {
		return nil, &livefyre.ConfigurationError{Field: "site_id"}
	}
	return s.Client.Site(s.Client.SiteID(), nil), nil
}

// Reset rebuilds the state from cfg, closing the current one. On failure the current state is kept.
func (s *State) Reset(ctx context.Context, cfg config.Configuration) error {
	next, err := New(cfg)
	if err != nil {
		return err
	}
	err = s.Close(ctx)
	*s = *next
	return err
}

// Close stops the queue, if any, and closes its database.
func (s *State) Close(ctx context.Context) error {
	if s.Queue != nil {
		s.Queue.Stop(ctx)
	}
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
