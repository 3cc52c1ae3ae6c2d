package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"notifcollector/internal/bridge"
	"notifcollector/internal/config"
	"notifcollector/internal/emit"
	"notifcollector/internal/ingest"
	"notifcollector/internal/messagestore"
	"notifcollector/internal/notification"
	"notifcollector/internal/runtime/supervisor"
	logx "notifcollector/pkg/logx"
)

// App wires input adapters, the extraction pipeline and record sinks.
type App struct {
	cfgm *config.Manager

	cfgMu sync.Mutex
	cfg   *config.Config

	logs *logx.Service
	log  logx.Logger

	store    messagestore.Store
	channel  *bridge.Channel
	jsonl    *emit.JSONL
	diag     *notification.Diagnostics
	pipeline *notification.Pipeline

	stdin  io.Reader
	stdout io.Writer
	clock  func() time.Time

	sup *supervisor.Supervisor

	cronMu  sync.Mutex
	cron    *cron.Cron
	statsID cron.EntryID

	inputDone chan struct{}
}

type Option func(*App)

// WithStdin overrides the reader used when input.stdin is enabled.
func WithStdin(r io.Reader) Option { return func(a *App) { a.stdin = r } }

// WithStdout overrides the writer used by the stdout sink.
func WithStdout(w io.Writer) Option { return func(a *App) { a.stdout = w } }

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option { return func(a *App) { a.clock = now } }

func NewApp(cfgPath string, opts ...Option) (*App, error) {
	a := &App{
		stdin:     os.Stdin,
		stdout:    logx.Stdout(),
		clock:     time.Now,
		inputDone: make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}

	a.cfgm = config.NewManager(cfgPath)
	cfg, err := a.cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	a.logs, a.log = logx.New(mapLogConfig(cfg))
	log := a.log.With(logx.String("comp", "app"))

	if sc, enabled, err := mapStoreConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := messagestore.Open(sc, a.log.With(logx.String("comp", "store")))
		if err != nil {
			return nil, fmt.Errorf("open message store: %w", err)
		}
		a.store = st
		log.Info("message store enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	plog := a.log.With(logx.String("comp", "pipeline"))
	a.diag = notification.NewDiagnostics(plog, diagRate(cfg))

	var corr notification.Correlator
	if a.store != nil {
		corr = notification.NewStoreCorrelator(a.store, a.diag)
	}
	x := notification.NewExtractor(corr, notification.WithClock(a.clock))

	a.pipeline = notification.NewPipeline(x, a.buildSinks(cfg, log), plog, a.diag)
	return a, nil
}

func (a *App) buildSinks(cfg *config.Config, log logx.Logger) notification.Emitter {
	var sinks emit.Fanout
	if cfg.Sinks.Stdout {
		a.jsonl = emit.NewJSONL(a.stdout)
		sinks = append(sinks, a.jsonl)
	}
	if cfg.Sinks.Log {
		sinks = append(sinks, emit.NewLog(a.log.With(logx.String("comp", "records"))))
	}
	if cfg.Sinks.Channel.Enabled {
		a.channel = bridge.New(cfg.Sinks.Channel.Name, bridge.WithBuffer(cfg.Sinks.Channel.Buffer))
		sinks = append(sinks, emit.NewChannel(a.channel))
	}
	if len(sinks) == 0 {
		log.Warn("no sinks configured; records will be dropped")
	}
	return sinks
}

// Handler is the event consumer platform adapters deliver to.
func (a *App) Handler() notification.Handler { return a.pipeline }

// Channel returns the record channel, or nil when sinks.channel is disabled.
// UI hosts Attach to it to receive onNotificationReceived calls.
func (a *App) Channel() *bridge.Channel { return a.channel }

func (a *App) Stats() notification.Stats { return a.pipeline.Stats() }

// InputDone is closed once the stdin stream reaches EOF.
func (a *App) InputDone() <-chan struct{} { return a.inputDone }

func (a *App) config() *config.Config {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()
	return a.cfg
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.config()
	log := a.log.With(logx.String("comp", "app"))

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))

	// Config hot reload.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	sub := a.cfgm.Subscribe(1)
	a.sup.GoRestart("config.watch", a.cfgm.Watch)
	a.sup.Go("config.apply", func(ctx context.Context) error {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return nil
			case next := <-sub:
				a.applyConfig(next)
			}
		}
	})

	// Inputs.
	if cfg.Input.Stdin {
		stream := ingest.NewStream(a.stdin, a.pipeline, a.log.With(logx.String("comp", "input.stdin")))
		a.sup.Go("input.stdin", func(ctx context.Context) error {
			defer close(a.inputDone)
			return stream.Run(ctx)
		})
	}
	if dir := strings.TrimSpace(cfg.Input.SpoolDir); dir != "" {
		spool := ingest.NewSpool(dir, a.pipeline, a.log.With(logx.String("comp", "input.spool")))
		a.sup.GoRestart("input.spool", spool.Run)
	}
	if !cfg.Input.Stdin && strings.TrimSpace(cfg.Input.SpoolDir) == "" {
		log.Warn("no inputs configured; only embedded delivery via Handler() is possible")
	}

	// Periodic stats.
	a.cronMu.Lock()
	a.cron = cron.New(cron.WithParser(config.CronParser))
	a.cronMu.Unlock()
	a.scheduleStats(cfg.Stats.Schedule)
	a.cron.Start()

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Debug("sd_notify ready failed", logx.Err(err))
	} else if ok {
		log.Debug("sd_notify ready sent")
	}
	log.Info("collector started",
		logx.Bool("stdin", cfg.Input.Stdin),
		logx.String("spool_dir", cfg.Input.SpoolDir),
		logx.Bool("store", a.store != nil),
	)
	return nil
}

func (a *App) scheduleStats(spec string) {
	a.cronMu.Lock()
	defer a.cronMu.Unlock()
	if a.cron == nil {
		return
	}
	if a.statsID != 0 {
		a.cron.Remove(a.statsID)
		a.statsID = 0
	}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return
	}
	id, err := a.cron.AddFunc(spec, a.reportStats)
	if err != nil {
		a.log.Warn("stats schedule rejected", logx.String("schedule", spec), logx.Err(err))
		return
	}
	a.statsID = id
}

func (a *App) reportStats() {
	st := a.pipeline.Stats()
	fields := []logx.Field{
		logx.String("comp", "stats"),
		logx.Uint64("received", st.Received),
		logx.Uint64("emitted", st.Emitted),
		logx.Uint64("dropped", st.Dropped),
		logx.Uint64("correlator_hits", st.CorrelatorHits),
		logx.Uint64("correlator_misses", st.CorrelatorMisses),
		logx.Uint64("correlator_errors", st.CorrelatorErrors),
		logx.Uint64("diag_suppressed", st.DiagSuppressed),
	}
	if a.channel != nil {
		fields = append(fields,
			logx.Uint64("channel_delivered", a.channel.Delivered()),
			logx.Uint64("channel_missed", a.channel.Missed()),
		)
	}
	if a.jsonl != nil {
		fields = append(fields, logx.Int("stdout_failed", a.jsonl.Failed()))
	}
	if a.sup != nil {
		var restarts, panics uint64
		for _, ts := range a.sup.Snapshot() {
			restarts += ts.Restarts
			panics += ts.Panics
		}
		fields = append(fields,
			logx.Int64("goroutines", a.sup.Active()),
			logx.Uint64("task_restarts", restarts),
			logx.Uint64("task_panics", panics),
		)
	}
	a.log.Info("pipeline stats", fields...)
}

func (a *App) applyConfig(next *config.Config) {
	if next == nil {
		return
	}
	a.cfgMu.Lock()
	prev := a.cfg
	a.cfg = next
	a.cfgMu.Unlock()

	ch := config.Diff(prev, next)
	if ch.Empty() {
		return
	}
	log := a.log.With(logx.String("comp", "config"))
	for _, sec := range ch.Live {
		switch sec {
		case "logging":
			a.logs.Apply(mapLogConfig(next))
		case "diagnostics":
			a.diag.SetRate(diagRate(next))
		case "stats":
			a.scheduleStats(next.Stats.Schedule)
		}
	}
	log.Info("config applied", append([]logx.Field{logx.String("live", strings.Join(ch.Live, ","))}, ch.Fields...)...)
	if len(ch.Restart) > 0 {
		log.Warn("config change needs restart", logx.String("sections", strings.Join(ch.Restart, ",")))
	}
}

// Stop shuts everything down, bounded by ctx.
func (a *App) Stop(ctx context.Context, reason StopReason) error {
	log := a.log.With(logx.String("comp", "app"))
	log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	var firstErr error
	step := func(name string, fn func(context.Context) error) {
		start := time.Now()
		if err := fn(ctx); err != nil {
			log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			if firstErr == nil {
				firstErr = err
			}
		}
		log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	}

	step("cron", func(ctx context.Context) error {
		a.cronMu.Lock()
		c := a.cron
		a.cronMu.Unlock()
		if c == nil {
			return nil
		}
		select {
		case <-c.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	step("supervisor", func(ctx context.Context) error {
		if a.sup == nil {
			return nil
		}
		return a.sup.Stop(ctx)
	})

	a.reportStats()

	step("store", func(context.Context) error {
		if a.store == nil {
			return nil
		}
		return a.store.Close()
	})
	log.Info("stopped")
	_ = a.logs.Close()
	return firstErr
}
