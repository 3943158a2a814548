package queue

import (
	"time"

	"github.com/mikestefanello/backlite"
)

const (
	RefreshQueue = "ProfileRefresh"
	PushQueue    = "ProfilePush"
)

// RefreshJob asks the network to pull a user's profile again.
type RefreshJob struct {
	UserID string
}

// PushJob publishes profile data for a user.
type PushJob struct {
	UserID  string
	Profile map[string]any
}

func (j RefreshJob) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        RefreshQueue,
		MaxAttempts: 5,
		Backoff:     5 * time.Second,
		Timeout:     10 * time.Second,
		Retention: &backlite.Retention{
			Duration:   12 * time.Hour,
			OnlyFailed: true,
		},
	}
}

func (j PushJob) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        PushQueue,
		MaxAttempts: 5,
		Backoff:     5 * time.Second,
		Timeout:     10 * time.Second,
		Retention: &backlite.Retention{
			Duration:   12 * time.Hour,
			OnlyFailed: false,
			Data: &backlite.RetainData{
				OnlyFailed: true,
			},
		},
	}
}
