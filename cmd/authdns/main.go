// Command authdns runs the authoritative DNS server: the UDP/TCP query
// listeners, the control-plane HTTP API, and every supervised background
// subsystem (store sweep, metrics tick, health checks, CNAME flatten
// bootstrap/maintain, geo database updates). Wiring follows a
// flag-and-goroutine composition shape, generalized to a TOML
// config file and a much larger set of subsystems.
package main

import (
	"context"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"authdns/internal/authority"
	"authdns/internal/config"
	"authdns/internal/flatten"
	"authdns/internal/geo"
	"authdns/internal/health"
	"authdns/internal/httpapi"
	"authdns/internal/listener"
	"authdns/internal/logging"
	"authdns/internal/metrics"
	"authdns/internal/model"
	"authdns/internal/obs"
	"authdns/internal/pipeline"
	"authdns/internal/region"
	"authdns/internal/store"
	"authdns/internal/store/backend"
	"authdns/internal/supervise"
)

func main() {
	configPath := flag.String("config", "/etc/authdns/config.toml", "Path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// No config file is fatal at startup only when explicitly pointed
		// at one; an absent default path falls back to built-in defaults.
		explicit := false
		flag.Visit(func(f *flag.Flag) {
			if f.Name == "config" {
				explicit = true
			}
		})
		if _, statErr := os.Stat(*configPath); explicit || statErr == nil {
			panic(err)
		}
		cfg = config.Default()
	}

	log := logging.New("authdns", logging.ParseLevel(cfg.Server.LogLevel))
	log.Infof("starting authdns")

	authTable := buildAuthority(cfg)

	observer := obs.New(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)
	metricsStore := metrics.New(authTable)

	pools := backend.NewPools(redisPoolConfigs(cfg), time.Duration(cfg.Redis.DelinquencySeconds)*time.Second)

	recordStore, err := store.New(pools, cfg.Redis.CacheExpireSeconds, cfg.Redis.CacheRefreshSeconds, log)
	if err != nil {
		log.Fatalf("failed to build record store: %v", err)
	}

	locator, err := geo.Open(cfg.Geo.DatabasePath)
	if err != nil {
		log.Warnf("geo database unavailable at startup, continuing without geo resolution: %v", err)
		locator = nil
	}

	var notifier health.Notifier
	if cfg.Health.SlackWebhookURL != "" {
		notifier = health.NewSlackNotifier(cfg.Health.SlackWebhookURL)
	}
	serverID, err := os.Hostname()
	if err != nil {
		serverID = "authdns"
	}
	healthChecker := health.New(nil, notifier, serverID, log)

	flattener := flatten.New(cfg.DNS.FlattenResolvers, log)

	pl := pipeline.New(authTable, recordStore, geoAdapter{locator: locator}, healthChecker, flattener, metricsStore, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startBackgroundLoops(ctx, cfg, log, recordStore, metricsStore, healthChecker, flattener, locator, observer)

	srv := listener.New(pl, cfg.DNS.TCPTimeout, log)
	if err := srv.Start(cfg.DNS.Inets); err != nil {
		log.Fatalf("failed to start DNS listeners: %v", err)
	}

	httpSrv := httpapi.New(recordStore, metricsStore, cfg.HTTP.RecordToken, log)
	go func() {
		if err := httpSrv.ListenAndServe(cfg.HTTP.Inet); err != nil {
			log.Warnf("control-plane HTTP server stopped: %v", err)
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(cfg.Metrics.ListenAddr, mux); err != nil {
			log.Warnf("metrics HTTP server stopped: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Infof("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Infof("shutdown complete")
}

// redisPoolConfigs builds the primary-plus-rescue backend pool list: the
// redis section's own host/port is tried first, then each entry in its
// rescue list in the order configured.
func redisPoolConfigs(cfg *config.Config) []backend.PoolConfig {
	configs := make([]backend.PoolConfig, 0, 1+len(cfg.Redis.Rescue))
	configs = append(configs, backend.PoolConfig{
		Host:                     cfg.Redis.Host,
		Port:                     cfg.Redis.Port,
		Password:                 cfg.Redis.Password,
		Database:                 cfg.Redis.Database,
		PoolSize:                 cfg.Redis.PoolSize,
		MaxLifetimeSeconds:       cfg.Redis.MaxLifetimeSeconds,
		IdleTimeoutSeconds:       cfg.Redis.IdleTimeoutSeconds,
		ConnectionTimeoutSeconds: cfg.Redis.ConnectionTimeoutSeconds,
	})
	for _, r := range cfg.Redis.Rescue {
		configs = append(configs, backend.PoolConfig{
			Host:                     r.Host,
			Port:                     r.Port,
			Password:                 r.Password,
			Database:                 r.Database,
			PoolSize:                 r.PoolSize,
			MaxLifetimeSeconds:       r.MaxLifetimeSeconds,
			IdleTimeoutSeconds:       r.IdleTimeoutSeconds,
			ConnectionTimeoutSeconds: r.ConnectionTimeoutSeconds,
		})
	}
	return configs
}

func buildAuthority(cfg *config.Config) *authority.Table {
	zones := make(map[model.ZoneName]authority.SOAParams, len(cfg.DNS.Zones))
	for name, z := range cfg.DNS.Zones {
		zones[model.NewZoneName(name)] = authority.SOAParams{
			Master:      z.Master,
			Responsible: z.Responsible,
			Serial:      z.Serial,
			Refresh:     z.Refresh,
			Retry:       z.Retry,
			Expire:      z.Expire,
			MinimumTTL:  z.MinimumTTL,
		}
	}
	return authority.New(zones, cfg.DNS.Nameservers, cfg.DNS.DefaultTTL)
}

// geoAdapter narrows *geo.Locator to pipeline.GeoLocator and tolerates a
// nil locator (geo database unavailable at startup), in which case every
// lookup simply misses and location-aware records fall back to their
// primary values.
type geoAdapter struct{ locator *geo.Locator }

func (g geoAdapter) IPToRegion(ip net.IP) (region.Code, bool) {
	if g.locator == nil {
		return "", false
	}
	return g.locator.IPToRegion(ip)
}

func (g geoAdapter) ISOCountry(ip net.IP) (string, bool) {
	if g.locator == nil {
		return "", false
	}
	return g.locator.ISOCountry(ip)
}

// startBackgroundLoops wires every subsystem's background behavior to
// internal/supervise.Loop, a shared ticker-goroutine idiom with panic
// recovery and backoff.
func startBackgroundLoops(ctx context.Context, cfg *config.Config, log *logging.Logger, st *store.Store, ms *metrics.Store, hc *health.Checker, fl *flatten.Flattener, loc *geo.Locator, ob *obs.Observer) {
	go supervise.Loop(ctx, log, "store-sweep", store.SweepInterval(), func(ctx context.Context) {
		st.Sweep(ctx)
	})

	go supervise.Loop(ctx, log, "metrics-tick", 60*time.Second, func(ctx context.Context) {
		ms.Tick()
	})

	go supervise.Loop(ctx, log, "flatten-bootstrap", flatten.BootstrapTick, func(ctx context.Context) {
		fl.RunBootstrap(ctx)
	})

	go supervise.Loop(ctx, log, "flatten-maintain", flatten.MaintainTick, func(ctx context.Context) {
		fl.RunMaintain(ctx)
	})

	if cfg.Health.Interval > 0 {
		go supervise.Loop(ctx, log, "health-check", cfg.Health.Interval, func(ctx context.Context) {
			hc.Run(ctx, func(ctx context.Context, t health.Target) ([]model.RecordValue, error) {
				ctx = store.WithOrigin(ctx, store.OriginInternal)
				record, err := st.Get(ctx, t.Zone, t.Name, t.Kind)
				if err != nil {
					return nil, err
				}
				return record.Values, nil
			})
			ob.SetHealthDeadSetSize(hc.DeadSetSize())
		})
	}

	if loc != nil && cfg.Geo.UpdateURL != "" && cfg.Geo.UpdateInterval > 0 {
		updater := geo.NewUpdater(loc, cfg.Geo.UpdateURL, log)
		go supervise.Loop(ctx, log, "geo-update", cfg.Geo.UpdateInterval, updater.Run)
	}
}
