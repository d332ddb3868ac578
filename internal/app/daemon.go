package app

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"hookrelay/internal/config"
	logx "hookrelay/pkg/logx"
)

// RunDaemon runs the polling cycle on a cron schedule until ctx is
// cancelled. The config file is watched for live reloads; logging applies
// immediately, relay tunables apply from the next cycle, and everything
// else (drivers, endpoints) requires a restart.
func (a *App) RunDaemon(ctx context.Context) error {
	cfg := a.cfgMgr.Get()
	dc := cfg.Daemon
	if dc == nil {
		dc = &config.DaemonConfig{Schedule: config.DefaultSchedule}
	}

	loc := time.Local
	if tz := strings.TrimSpace(dc.Timezone); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("daemon.timezone: %w", err)
		}
		loc = l
	}

	// Cycles never overlap: the state document and both quotas assume one
	// run at a time. A tick that lands mid-cycle is skipped, not queued.
	var busy atomic.Bool
	job := func() {
		if !busy.CompareAndSwap(false, true) {
			a.log.Warn("previous cycle still running; skipping this tick")
			return
		}
		defer busy.Store(false)
		if err := a.RunOnce(ctx); err != nil {
			a.log.Error("cycle failed", logx.Err(err))
		}
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(dc.Schedule, job); err != nil {
		return fmt.Errorf("daemon.schedule %q: %w", dc.Schedule, err)
	}

	// Live config: re-apply logging on every accepted reload.
	sub := a.cfgMgr.Subscribe(1)
	defer a.cfgMgr.Unsubscribe(sub)
	go func() {
		for nc := range sub {
			a.logSvc.Apply(logx.Config{
				Level:   nc.Logging.Level,
				Console: nc.Logging.Console,
				File: logx.FileConfig{
					Enabled: nc.Logging.File.Enabled,
					Path:    nc.Logging.File.Path,
				},
			})
		}
	}()
	go func() {
		if err := a.cfgMgr.Watch(ctx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	c.Start()
	a.log.Info("daemon started",
		logx.String("schedule", dc.Schedule),
		logx.String("timezone", loc.String()))

	// systemd integration is best-effort: outside systemd these are no-ops.
	if ok, err := sd.SdNotify(false, sd.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	stopWatchdog := a.startWatchdog(ctx)

	<-ctx.Done()

	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)
	stopWatchdog()
	stopCtx := c.Stop() // waits for a running job before firing Done
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		a.log.Warn("cycle did not finish within shutdown grace period")
	}
	a.log.Info("daemon stopped")
	return nil
}

// startWatchdog feeds the systemd watchdog at half the configured interval.
// Returns a stop func; a no-op when no watchdog is configured.
func (a *App) startWatchdog(ctx context.Context) func() {
	interval, err := sd.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return func() {}
	}

	wctx, cancel := context.WithCancel(ctx)
	go func() {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-wctx.Done():
				return
			case <-t.C:
				_, _ = sd.SdNotify(false, sd.SdNotifyWatchdog)
			}
		}
	}()
	return cancel
}
