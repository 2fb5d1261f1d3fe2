// Command linkspaced bootstraps a single linkspace environment: it opens
// the store, wires a notification bus into the dispatcher, and serves
// Prometheus metrics. It is a process bootstrap, not a CLI front-end —
// query/write operations are driven through the library packages.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"linkspace/internal/metrics"
	"linkspace/pkg/config"
	"linkspace/pkg/dispatch"
	"linkspace/pkg/notify"
	"linkspace/pkg/store"
)

// fanoutNotifier wakes the local dispatcher and emits onto the wire bus on
// every commit, so same-process watches and other processes sharing this
// environment both learn of the new high-water recv.
type fanoutNotifier struct {
	local store.Notifier
	wire  store.Notifier
}

func (f fanoutNotifier) Publish(recv uint64) {
	f.local.Publish(recv)
	if f.wire != nil {
		f.wire.Publish(recv)
	}
}

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	disp := dispatch.New(nil, log)

	bus, busCloser, err := openBus(cfg, log)
	if err != nil {
		log.Fatalf("open notification bus: %v", err)
	}
	if busCloser != nil {
		defer busCloser()
	}

	pid := uint32(os.Getpid())
	var emitter *notify.Emitter
	var wireNotifier store.Notifier
	if bus != nil {
		emitter = notify.NewEmitter(bus, [8]byte{}, pid)
		wireNotifier = emitter
	}

	s, err := store.Open(cfg.Store.Dir, fanoutNotifier{local: disp, wire: wireNotifier}, log)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer s.Close()
	disp.AttachStore(s)

	if emitter != nil {
		emitter.SetEnvID(s.EnvID())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if bus != nil {
		go func() {
			for {
				msg, err := bus.Recv()
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.WithError(err).Warn("notification bus recv error")
					continue
				}
				if msg.Relevant(s.EnvID(), pid) {
					disp.Publish(msg.HighWaterRecv)
				}
			}
		}()
	}

	collector := metrics.New(metrics.Source{
		LogHead:       s.LogHead,
		ActiveWatches: disp.ActiveWatchCount,
		EnvID:         s.EnvID,
	}, log)
	go collector.Run(ctx, 15*time.Second)

	if cfg.Metrics.Enabled {
		srv := collector.Serve(cfg.Metrics.ListenAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = collector.Shutdown(shutdownCtx, srv)
		}()
		log.WithField("addr", cfg.Metrics.ListenAddr).Info("metrics endpoint listening")
	}

	log.WithField("dir", cfg.Store.Dir).Info("linkspaced started")

	go func() {
		if err := disp.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("dispatcher loop error")
		}
	}()

	<-ctx.Done()
	log.Info("linkspaced shutting down")
}

// openBus opens the configured notification transport. The caller wraps it
// in an Emitter so local writes also reach other processes sharing this
// environment, and drains Recv() to learn of writes made by them.
func openBus(cfg *config.Config, log *logrus.Logger) (notify.Bus, func(), error) {
	switch cfg.Notify.Transport {
	case "multicast":
		b, err := notify.NewMulticastBus(17171, log)
		if err != nil {
			return nil, nil, fmt.Errorf("multicast bus: %w", err)
		}
		return b, func() { _ = b.Close() }, nil
	case "inotify", "file":
		path := cfg.Store.Dir + "/files/ipc.bus"
		b, err := notify.NewFileBus(path, log)
		if err != nil {
			return nil, nil, fmt.Errorf("file bus: %w", err)
		}
		return b, func() { _ = b.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown notify.transport %q", cfg.Notify.Transport)
	}
}
