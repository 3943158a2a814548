package main

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/sidereusnuntius/golivefyre/livefyre"
)

func networkArgs(args ...string) []string {
	return append(args, "--host", "test.fyre.co", "--key", "networkkey", "--system-token", "systoken")
}

func TestRun_Push(t *testing.T) {
	t.Chdir(t.TempDir())
	queueDB := filepath.Join(t.TempDir(), "queue.db")

	cases := []struct {
		name  string
		args  []string
		check func(error) bool
	}{
		{
			name:  "MissingProfile",
			args:  networkArgs("push", "alice"),
			check: func(err error) bool { return errors.Is(err, errUsage) },
		},
		{
			name:  "MalformedProfile",
			args:  networkArgs("push", "alice", "{"),
			check: func(err error) bool { return err != nil && !errors.Is(err, errUsage) },
		},
		{
			name:  "DeferWithoutQueue",
			args:  networkArgs("push", "alice", `{"display_name":"Alice"}`, "--defer"),
			check: func(err error) bool { return errors.Is(err, livefyre.ErrConfiguration) },
		},
		{
			name:  "EmptyUser",
			args:  networkArgs("push", "", `{"display_name":"Alice"}`, "--defer", "--queue-db", queueDB),
			check: func(err error) bool { return errors.Is(err, livefyre.ErrInvalidArgument) },
		},
		{
			name:  "Deferred",
			args:  networkArgs("push", "alice@test.fyre.co", `{"display_name":"Alice"}`, "--defer", "--queue-db", queueDB),
			check: func(err error) bool { return err == nil },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := run(tc.args); !tc.check(err) {
				t.Errorf("unexpected result: %v", err)
			}
		})
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	if err := run([]string{"launch"}); !errors.Is(err, errUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
	if err := run(nil); !errors.Is(err, errUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
}
