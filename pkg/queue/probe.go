package queue

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

const (
	DefaultHeartbeatFile     = "/tmp/worker_heartbeat"
	DefaultReadinessFile     = "/tmp/worker_ready"
	DefaultHeartbeatInterval = 15 * time.Second
)

// 💓 Probe keeps the liveness and readiness files an orchestrator checks
type Probe struct {
	heartbeat string
	readiness string
	interval  time.Duration
}

func NewProbe(heartbeat, readiness string, interval time.Duration) *Probe {
	if heartbeat == "" {
		heartbeat = DefaultHeartbeatFile
	}
	if readiness == "" {
		readiness = DefaultReadinessFile
	}
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Probe{heartbeat: heartbeat, readiness: readiness, interval: interval}
}

// Ready creates the readiness file
func (p *Probe) Ready() error {
	return touch(p.readiness)
}

// IsReady reports whether the readiness file exists
func (p *Probe) IsReady() bool {
	_, err := os.Stat(p.readiness)
	return err == nil
}

// LastBeat is the modification time of the heartbeat file
func (p *Probe) LastBeat() (time.Time, bool) {
	fi, err := os.Stat(p.heartbeat)
	if err != nil {
		return time.Time{}, false
	}
	return fi.ModTime(), true
}

// Alive reports whether the heartbeat was touched within two intervals
func (p *Probe) Alive(now time.Time) bool {
	last, ok := p.LastBeat()
	return ok && now.Sub(last) <= 2*p.interval
}

// Run touches the heartbeat file every interval until ctx is done, then removes both files
func (p *Probe) Run(ctx context.Context) error {
	defer p.Shutdown(ctx)

	if err := touch(p.heartbeat); err != nil {
		return err
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := touch(p.heartbeat); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Str("path", p.heartbeat).Msg("touching heartbeat")
			}
		}
	}
}

// Shutdown removes both files; missing files are fine
func (p *Probe) Shutdown(ctx context.Context) {
	for _, f := range []string{p.readiness, p.heartbeat} {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("path", f).Msg("removing probe file")
		}
	}
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Errorf("touching %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.Errorf("closing %s: %w", path, err)
	}
	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		return errors.Errorf("touching %s: %w", path, err)
	}
	return nil
}
