package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sidereusnuntius/golivefyre/internal/config"
	"github.com/sidereusnuntius/golivefyre/livefyre"
)

func configuration() config.Configuration {
	return config.Configuration{
		Host:            "test.fyre.co",
		Key:             "networkkey",
		SystemToken:     "systoken",
		Scheme:          "http",
		Timeout:         time.Second,
		SignatureWindow: 5 * time.Minute,
		EnforceExpiry:   true,
		Workers:         1,
	}
}

func TestNew(t *testing.T) {
	s, err := New(configuration())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close(context.Background())

	if s.Client.Host() != "test.fyre.co" {
		t.Errorf("unexpected host %s", s.Client.Host())
	}
	if s.Queue != nil || s.DB != nil {
		t.Error("no queue should be built without a queue database")
	}
	if _, err := s.Site(); !errors.Is(err, livefyre.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestNew_Invalid(t *testing.T) {
	cfg := configuration()
	cfg.SystemToken = ""
	if _, err := New(cfg); !errors.Is(err, livefyre.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestNew_WithQueue(t *testing.T) {
	cfg := configuration()
	cfg.QueueDB = filepath.Join(t.TempDir(), "queue.db")

	s, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if s.Queue == nil || s.DB == nil {
		t.Fatal("expected a queue")
	}
	if err := s.Close(context.Background()); err != nil {
		t.Error(err)
	}
}

func TestReset(t *testing.T) {
	s, err := New(configuration())
	if err != nil {
		t.Fatal(err)
	}

	cfg := configuration()
	cfg.Host = "other.fyre.co"
	cfg.SiteID = "303"
	if err := s.Reset(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	if s.Client.Host() != "other.fyre.co" {
		t.Errorf("client not rebuilt, host %s", s.Client.Host())
	}
	site, err := s.Site()
	if err != nil {
		t.Fatal(err)
	}
	if site.ID != "303" {
		t.Errorf("unexpected site %s", site.ID)
	}

	cfg.Key = ""
	if err := s.Reset(context.Background(), cfg); err == nil {
		t.Error("expected an invalid configuration to be rejected")
	}
	if s.Client.Host() != "other.fyre.co" {
		t.Error("state replaced by a failed reset")
	}
}
