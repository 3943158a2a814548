// Package queue defers profile pushes and ping-to-pull refreshes to a backlite task queue, so callers do not
// block on the network.
package queue

import (
	"context"
	"sync/atomic"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/golivefyre/livefyre"
)

// Deferrer enqueues profile work to be carried out later.
type Deferrer interface {
	Refresh(ctx context.Context, userID string) error
	Push(ctx context.Context, userID string, profile map[string]any) error
}

var _ Deferrer = (*Queue)(nil)

type Queue struct {
	client  *livefyre.Client
	tasks   *backlite.Client
	started atomic.Bool
}

// New registers the profile queues on tasks. Tasks are only processed once Start is called.
func New(client *livefyre.Client, tasks *backlite.Client) *Queue {
	q := &Queue{
		client: client,
		tasks:  tasks,
	}
	q.register()
	return q
}

func (q *Queue) Start(ctx context.Context) {
	if q.started.Swap(true) {
		return
	}
	q.tasks.Start(ctx)
	log.Info().Msg("started task queue")
}

// Stop waits for running tasks to finish or for ctx to be done.
func (q *Queue) Stop(ctx context.Context) {
	if !q.started.Swap(false) {
		return
	}
	q.tasks.Stop(ctx)
	log.Info().Msg("stopped task queue")
}

func (q *Queue) Refresh(ctx context.Context, userID string) error {
	if userID == "" {
		return &livefyre.InvalidArgumentError{Argument: "user", Reason: "empty user id"}
	}
	log.Debug().Str("user", userID).Msg("enqueuing refresh task")
	_, err := q.tasks.Add(RefreshJob{UserID: userID}).Ctx(ctx).Save()
	return err
}

func (q *Queue) Push(ctx context.Context, userID string, profile map[string]any) error {
	if userID == "" {
		return &livefyre.InvalidArgumentError{Argument: "user", Reason: "empty user id"}
	}
	log.Debug().Str("user", userID).Msg("enqueuing push task")
	_, err := q.tasks.Add(PushJob{UserID: userID, Profile: profile}).Ctx(ctx).Save()
	return err
}
