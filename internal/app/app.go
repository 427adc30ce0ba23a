package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"jokebot/internal/broadcast"
	"jokebot/internal/config"
	"jokebot/internal/feed"
	"jokebot/internal/picker"
	"jokebot/internal/schedule"
	"jokebot/internal/store"
	"jokebot/internal/transport"
	"jokebot/internal/transport/telegram"
	"jokebot/pkg/logx"
)

// App wires config, storage, transport, the feed pipeline and the hourly
// scheduler into one process.
type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	adapter transport.Adapter
	stores  store.Stores
	disp    *broadcast.Dispatcher
	hourly  *schedule.Hourly

	updates chan transport.Update

	runMu   sync.Mutex
	running bool
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(cfg.Logging)
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: cfg.PollTimeout(),
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("telegram: %w", err)
	}

	stores, err := store.Open(storeConfig(cfg), log.With(logx.String("comp", "store")))
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	agg := feed.NewAggregator(
		&http.Client{Timeout: cfg.FetchTimeout()},
		cfg.UserAgent(),
		log.With(logx.String("comp", "feed")),
	)
	pick := picker.New(nil, log.With(logx.String("comp", "picker")))

	disp := broadcast.NewDispatcher(adapter, stores.Subscribers(), agg, pick,
		broadcast.Options{RatePerSec: cfg.RatePerSec()},
		log.With(logx.String("comp", "broadcast")))

	cats, err := categories(cfg, stores)
	if err != nil {
		_ = stores.Close()
		_ = logSvc.Close()
		return nil, err
	}
	disp.SetCategories(cats)

	a := &App{
		cfgMgr:  mgr,
		logSvc:  logSvc,
		log:     log,
		adapter: adapter,
		stores:  stores,
		disp:    disp,
		updates: make(chan transport.Update, 64),
	}
	a.hourly = schedule.NewHourly(disp.RunPass, log.With(logx.String("comp", "schedule")))
	return a, nil
}

func storeConfig(cfg *config.Config) store.Config {
	seen := make(map[string]string, len(cfg.Categories))
	for _, cat := range cfg.Categories {
		seen[cat.Name] = cat.SeenPath
	}
	busy, _ := time.ParseDuration(cfg.Storage.BusyTimeout)
	return store.Config{
		Driver:          cfg.Storage.Driver,
		SubscribersPath: cfg.Storage.SubscribersPath,
		SeenPaths:       seen,
		Path:            cfg.Storage.Path,
		BusyTimeout:     busy,
	}
}

func categories(cfg *config.Config, stores store.Stores) ([]broadcast.Category, error) {
	cats := make([]broadcast.Category, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		if !c.IsEnabled() {
			continue
		}
		seen, ok := stores.Seen(c.Name)
		if !ok {
			return nil, fmt.Errorf("no seen-set store for category %q", c.Name)
		}
		cats = append(cats, broadcast.Category{
			Name:     c.Name,
			Feeds:    c.Feeds,
			HomeLink: c.HomeLink,
			Seen:     seen,
		})
	}
	return cats, nil
}

func (a *App) Start(ctx context.Context) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()
	if a.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.stop = cancel

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return fmt.Errorf("start transport: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.updateLoop(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.hourly.Run(runCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgMgr.Watch(runCtx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	reloads := a.cfgMgr.Subscribe(1)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgMgr.Unsubscribe(reloads)
		for {
			select {
			case <-runCtx.Done():
				return
			case cfg, ok := <-reloads:
				if !ok {
					return
				}
				a.applyReload(cfg)
			}
		}
	}()

	if menu, ok := a.adapter.(transport.CommandMenuUpdater); ok {
		if err := menu.UpdateMenuCommands(runCtx, a.menuCommands()); err != nil {
			a.log.Warn("command menu update failed", logx.Err(err))
		}
	}

	a.running = true
	a.log.Info("started")
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	return nil
}

// applyReload picks up the live-applicable parts of a config change: log
// level/sinks and the category feed lists. Storage layout and the telegram
// token need a restart.
func (a *App) applyReload(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.logSvc.Apply(cfg.Logging)

	cats, err := categories(cfg, a.stores)
	if err != nil {
		a.log.Warn("config reload: category not applied (restart required)", logx.Err(err))
		return
	}
	a.disp.SetCategories(cats)
	a.log.Info("config applied", logx.Int("categories", len(cats)))
}

func (a *App) Stop(ctx context.Context) error {
	a.runMu.Lock()
	if !a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = false
	stop := a.stop
	a.runMu.Unlock()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	if stop != nil {
		stop()
	}
	err := a.adapter.Stop(ctx)
	a.wg.Wait()
	_ = a.stores.Close()
	a.log.Info("stopped")
	_ = a.logSvc.Close()
	return err
}
