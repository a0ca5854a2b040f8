package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FastTravelAS/chippy/internal/admin"
	"github.com/FastTravelAS/chippy/internal/config"
	"github.com/FastTravelAS/chippy/internal/discovery"
	"github.com/FastTravelAS/chippy/internal/handshake"
	"github.com/FastTravelAS/chippy/internal/logging"
	"github.com/FastTravelAS/chippy/internal/report"
	"github.com/FastTravelAS/chippy/internal/server"
	"github.com/FastTravelAS/chippy/internal/session"
	"github.com/FastTravelAS/chippy/internal/sink"
	"github.com/FastTravelAS/chippy/internal/status"
	"github.com/FastTravelAS/chippy/internal/ui"
	"github.com/FastTravelAS/chippy/internal/version"
)

// Start command flags. They override the config file and environment only
// when set explicitly.
var (
	port        int
	hostname    string
	concurrency int
	redisURL    string
	redisList   string
	sinkBackend string
	statusStore string
	adminAddr   string
	mdns        bool
	env         string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the transceiver server",
	Long: `Start accepting transceiver connections.

The status store is checked before the listener is opened; if it cannot be
reached the command exits with status 1.`,
	Example: `  # Listen on the default port 44999 on all interfaces
  chippy start

  # Custom port and worker count
  chippy start -p 5000 -c 20

  # Forward reads to a remote Redis list
  chippy start --redis-url redis://cache:6379/1 --redis-list gate:reads

  # Expose the admin endpoint and advertise over mDNS
  chippy start --admin-addr :8080 --mdns`,
	RunE: runStart,
}

func init() {
	f := startCmd.Flags()
	f.IntVarP(&port, "port", "p", config.DefaultPort, "Listening port")
	f.StringVarP(&hostname, "hostname", "H", config.DefaultHostname, "Listening address")
	f.IntVarP(&concurrency, "concurrency", "c", 10, "Number of accept workers")
	f.StringVar(&redisURL, "redis-url", config.DefaultRedisURL, "Redis URL for the status store and reading list")
	f.StringVar(&redisList, "redis-list", config.DefaultList, "Redis list that receives transponder reads")
	f.StringVar(&sinkBackend, "sink", "redis", "Where reads are forwarded (redis, nats, memory)")
	f.StringVar(&statusStore, "status-store", "redis", "Status store backend (redis, postgres, memory)")
	f.StringVar(&adminAddr, "admin-addr", "", "Admin HTTP listen address (disabled if empty)")
	f.BoolVar(&mdns, "mdns", false, "Advertise the server over mDNS")
	f.StringVar(&env, "env", "", "Environment name (test shortens handshake retries)")
}

// loadConfig layers explicitly set flags over file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Server.Port = port
	}
	if flags.Changed("hostname") {
		cfg.Server.Hostname = hostname
	}
	if flags.Changed("concurrency") {
		cfg.Server.Concurrency = concurrency
	}
	if flags.Changed("redis-url") {
		cfg.Redis.URL = redisURL
	}
	if flags.Changed("redis-list") {
		cfg.Redis.List = redisList
	}
	if flags.Changed("sink") {
		cfg.Sink.Backend = sinkBackend
	}
	if flags.Changed("status-store") {
		cfg.Status.Backend = statusStore
	}
	if flags.Changed("admin-addr") {
		cfg.Admin.Addr = adminAddr
	}
	if flags.Changed("mdns") {
		cfg.Discovery.Enabled = mdns
	}
	if flags.Changed("env") {
		cfg.Env = env
		if env == config.EnvTest {
			cfg.Handshake.RetryInterval = handshake.TestRetryInterval
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (status.Store, error) {
	instance := cfg.Instance()
	switch cfg.Status.Backend {
	case "memory":
		return status.NewMemory(), nil
	case "postgres":
		return status.NewPostgres(ctx, cfg.Status.PostgresDSN, instance)
	default:
		return status.DialRedis(cfg.Redis.URL, instance)
	}
}

// openSink builds the primary sink. A Redis sink on the same URL as the
// Redis status store shares its connection.
func openSink(ctx context.Context, cfg *config.Config, store status.Store) (sink.Sink, error) {
	codec, err := sink.NewCodec(cfg.Sink.Codec)
	if err != nil {
		return nil, err
	}
	switch cfg.Sink.Backend {
	case "memory":
		return sink.NewMemory(), nil
	case "nats":
		return sink.DialNATS(cfg.Sink.NATSURL, cfg.Sink.NATSSubject, codec)
	default:
		if rs, ok := store.(*status.Redis); ok {
			return sink.NewRedis(rs.Client(), cfg.Redis.List, codec), nil
		}
		return sink.DialRedis(ctx, cfg.Redis.URL, cfg.Redis.List, codec)
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := logging.Initialize(cfg.Log.Level); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logging.Sync()
	logger := logging.GetLogger()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open status store: %w", err)
	}
	defer store.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = store.Ping(pingCtx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError("Status store unreachable", err, []string{
			"Check that Redis is running at " + cfg.Redis.URL,
			"Override with --redis-url or CHIPPY_REDIS_URL",
		}, ui.GetTerminalWidth()))
		return fmt.Errorf("status store unreachable: %w", err)
	}

	primary, err := openSink(ctx, cfg, store)
	if err != nil {
		return fmt.Errorf("failed to open sink: %w", err)
	}
	tee := sink.NewTee(primary)
	tee.OnError = func(err error) { logger.Warn("Event tap failed", zap.Error(err)) }
	defer tee.Close()

	reporter, err := report.NewSentry(cfg.Sentry.DSN, cfg.Env, version.Version)
	if err != nil {
		logger.Warn("Error reporting disabled", zap.Error(err))
		reporter = report.Nop{}
	}

	hsOpts, err := cfg.HandshakeOptions()
	if err != nil {
		return err
	}

	registry := session.NewRegistry(store, logger)
	srv := server.New(&server.Config{
		Host:            cfg.Server.Hostname,
		Port:            cfg.Server.Port,
		Concurrency:     cfg.Server.Concurrency,
		ReadTimeout:     cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Handshake:       hsOpts,
	}, server.Deps{
		Logger:   logger,
		Reporter: reporter,
		Registry: registry,
		Sink:     tee,
	})

	if cfg.Admin.Addr != "" {
		hub := admin.NewHub(logger.Named("admin"))
		tee.Sinks = append(tee.Sinks, hub)
		adm := admin.NewServer(logger.Named("admin"), registry, store, srv, hub)
		if err := adm.Listen(cfg.Admin.Addr); err != nil {
			return fmt.Errorf("failed to start admin endpoint: %w", err)
		}
		go func() {
			if err := adm.Serve(); err != nil {
				logger.Error("Admin endpoint stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = adm.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Discovery.Enabled {
		name := cfg.Discovery.Instance
		if name == "" {
			name = "chippy-" + cfg.Instance()
		}
		adv, err := discovery.Advertise(name, cfg.Server.Port, version.Version, "env="+cfg.Env)
		if err != nil {
			logger.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			logger.Info("Advertising over mDNS", zap.String("instance", name), zap.String("service", discovery.ServiceType))
			defer adv.Shutdown()
		}
	}

	logger.Info("Starting chippy",
		zap.String("version", version.Version),
		zap.String("env", cfg.Env),
		zap.String("instance", cfg.Instance()),
		zap.String("sink", cfg.Sink.Backend),
		zap.String("status_store", cfg.Status.Backend),
	)
	return srv.Start(ctx)
}

// Status command flags
var (
	scan        bool
	scanTimeout time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the recorded server and client status",
	Long: `Read the shared status record for this instance: whether the server is
online and which transceivers have been configured.

With --scan, chippy servers advertising over mDNS are listed as well.`,
	Example: `  # Status of the local instance
  chippy status

  # Another instance sharing the same Redis
  CHIPPY_INSTANCE=gate-2 chippy status

  # Also look for servers on the network
  chippy status --scan --timeout 3s`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&scan, "scan", false, "Also discover chippy servers over mDNS")
	statusCmd.Flags().DurationVar(&scanTimeout, "timeout", discovery.DefaultScanTimeout, "mDNS scan duration")
	statusCmd.Flags().StringVar(&redisURL, "redis-url", config.DefaultRedisURL, "Redis URL of the status store")
	statusCmd.Flags().StringVar(&statusStore, "status-store", "redis", "Status store backend (redis, postgres, memory)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	width := ui.GetTerminalWidth()

	fmt.Println(ui.NewHeader("chippy status", "chippy "+strings.Join(os.Args[1:], " "), map[string]string{
		"Instance": cfg.Instance(),
		"Store":    cfg.Status.Backend,
	}).SetWidth(width).Render())

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	r := &ui.StatusReport{Instance: cfg.Instance(), Width: width}
	if r.Server, err = store.ServerStatus(ctx); err == nil {
		r.Clients, err = store.ClientStatuses(ctx)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, ui.RenderError("Status store unreachable", err, nil, width))
		return errors.New("status store unreachable")
	}

	if scan {
		scanner := discovery.NewScanner()
		scanner.Timeout = scanTimeout
		found, err := scanner.Scan(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, ui.RenderError("mDNS scan failed", err, nil, width))
		}
		r.Discovered = found
	}

	fmt.Println(r.Render())
	return nil
}
