package queue

import (
	"context"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/golivefyre/livefyre"
)

func (q *Queue) register() {
	q.tasks.Register(backlite.NewQueue[RefreshJob](refresh(q.client)))
	q.tasks.Register(backlite.NewQueue[PushJob](push(q.client)))
}

func refresh(client *livefyre.Client) func(context.Context, RefreshJob) error {
	return func(ctx context.Context, task RefreshJob) error {
		log.Debug().Str("user", task.UserID).Msg("refreshing profile")
		err := client.User(task.UserID, "").Refresh(ctx)
		if err != nil {
			log.Error().Err(err).Str("user", task.UserID).Msg("refresh failed")
		}
		return err
	}
}

func push(client *livefyre.Client) func(context.Context, PushJob) error {
	return func(ctx context.Context, task PushJob) error {
		log.Debug().Str("user", task.UserID).Msg("pushing profile")
		err := client.User(task.UserID, "").Push(ctx, task.Profile)
		if err != nil {
			log.Error().Err(err).Str("user", task.UserID).Msg("push failed")
		}
		return err
	}
}
