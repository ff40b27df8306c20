// Package poller refreshes every cluster on a fixed schedule so viewers
// rarely have to wait for data.
package poller

import (
	"fmt"
	"strings"
	"time"

	"github.com/rileyhilliard/slurmdash/internal/errors"
	"github.com/rileyhilliard/slurmdash/internal/logger"
	cron "github.com/robfig/cron/v3"
)

// Refresher is the part of the coordinator the poller drives.
type Refresher interface {
	Clusters() []string
	Trigger(cluster string, maxStaleness time.Duration) bool
}

// Poller triggers a refresh of every cluster once per interval.
type Poller struct {
	refresher Refresher
	interval  time.Duration
	log       logger.Logger
	cron      *cron.Cron
}

// New creates a poller. It does nothing until Start.
func New(r Refresher, interval time.Duration, log logger.Logger) *Poller {
	if log == nil {
		log = logger.Noop()
	}
	return &Poller{
		refresher: r,
		interval:  interval,
		log:       log,
		cron: cron.New(
			cron.WithLogger(cronLogger{log}),
			cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
		),
	}
}

// Start refreshes every cluster once, then schedules the periodic ticks.
func (p *Poller) Start() error {
	if p.interval < time.Second {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Poll interval %s is too short", p.interval),
			"Set refresh.poll_interval to at least 1s, or 0 to disable polling.")
	}

	id, err := p.cron.AddFunc("@every "+p.interval.String(), func() { p.tick() })
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Couldn't schedule polling", "")
	}
	p.cron.Entry(id).Job.Run()
	p.cron.Start()

	p.log.Info("polling %d cluster(s) every %s", len(p.refresher.Clusters()), p.interval)
	return nil
}

// Stop halts the schedule and waits for a running tick to return.
func (p *Poller) Stop() {
	<-p.cron.Stop().Done()
}

// staleness is the age at which a tick refreshes a cluster. It sits below
// the interval so a tick that fires slightly early, or a refresh that
// started slightly after its tick, still counts as due.
func (p *Poller) staleness() time.Duration {
	return p.interval - p.interval/10
}

// tick triggers every cluster that is due and returns how many refreshes it
// started.
func (p *Poller) tick() int {
	started := 0
	maxStaleness := p.staleness()
	for _, name := range p.refresher.Clusters() {
		if p.refresher.Trigger(name, maxStaleness) {
			started++
		}
	}
	p.log.Debug("poll tick started %d refresh(es)", started)
	return started
}

// cronLogger routes cron's structured messages into a Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: %s%s", msg, formatKV(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: %s%s: %v", msg, formatKV(keysAndValues), err)
}

func formatKV(kv []interface{}) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}
