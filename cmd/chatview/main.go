package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/marcus/chatview/internal/app"
	"github.com/marcus/chatview/internal/config"
	"github.com/marcus/chatview/internal/cosmetics"
	"github.com/marcus/chatview/internal/keymap"
	"github.com/marcus/chatview/internal/metrics"
	"github.com/marcus/chatview/internal/plugin"
	"github.com/marcus/chatview/internal/plugins/chat"
	"github.com/marcus/chatview/internal/source"
	_ "github.com/marcus/chatview/internal/source/demo"
	_ "github.com/marcus/chatview/internal/source/file"
	"github.com/marcus/chatview/internal/source/history"
	"github.com/marcus/chatview/internal/state"
)

// Version is set at build time via ldflags
var Version = ""

type options struct {
	configPath  string
	kind        string
	path        string
	channel     string
	historyDB   string
	record      bool
	debug       bool
	logFile     string
	metricsAddr string
	version     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:           "chatview",
		Short:         "A terminal viewer for live chat streams",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if o.version {
				fmt.Fprintf(cmd.OutOrStdout(), "chatview version %s\n", effectiveVersion(Version))
				return nil
			}
			return run(cmd.Context(), cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "path to config file")
	f.StringVar(&o.kind, "source", "", "message source: demo, file or history")
	f.StringVar(&o.path, "path", "", "chat log to follow (file source)")
	f.StringVar(&o.channel, "channel", "", "channel to show")
	f.StringVar(&o.historyDB, "history", "", "history database path")
	f.BoolVar(&o.record, "record", false, "record live messages into the history database")
	f.BoolVar(&o.debug, "debug", false, "enable debug logging")
	f.StringVar(&o.logFile, "log-file", "", "write logs to this file")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	f.BoolVarP(&o.version, "version", "v", false, "print version and exit")

	cmd.AddCommand(newConfigCmd(&o))
	return cmd
}

func newConfigCmd(o *options) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := config.ConfigPath()
			if o.configPath != "" {
				path = o.configPath
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveTo(path, config.Default()); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.PersistentFlags().StringVar(&o.configPath, "config", "", "path to config file")
	cfgCmd.AddCommand(initCmd)
	return cfgCmd
}

func run(ctx context.Context, cmd *cobra.Command, o options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, cfg, o)

	logger, closeLog, err := setupLogger(o)
	if err != nil {
		return err
	}
	defer closeLog()

	// Load persistent state (ignore errors - state is optional)
	if err := state.Init(); err != nil {
		logger.Warn("state unavailable", "err", err)
	}
	if cfg.Source.Channel == "" {
		cfg.Source.Channel = state.GetLastChannel()
	}

	src, err := openSource(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()
	_ = state.SetLastSource(cfg.Source.Kind)

	cs, err := cosmetics.New(nil, 0)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()
	engine, err := metrics.New(promReg)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	km := keymap.NewRegistry()
	keymap.RegisterDefaults(km)
	for key, cmdID := range cfg.Keymap.Overrides {
		km.SetUserOverride(key, cmdID)
	}

	pluginCtx := &plugin.Context{
		ConfigDir: config.ConfigDir(),
		Config:    cfg,
		Logger:    logger,
		Source:    src,
		Cosmetics: cs,
		Keymap:    km,
		Metrics:   engine,
	}
	registry := plugin.NewRegistry(pluginCtx)
	if err := registry.Register(chat.New()); err != nil {
		return err
	}
	defer registry.Stop()
	if reason, failed := registry.Unavailable()["chat"]; failed {
		return fmt.Errorf("chat unavailable: %w", reason)
	}

	model := app.New(registry, km, cfg, effectiveVersion(Version))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(gctx))

	g.Go(func() error {
		defer cancel()
		_, err := prog.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			// another goroutine failed; its error is reported
			return nil
		}
		return err
	})

	if cfg.Metrics.Addr != "" {
		srv := metrics.Server(cfg.Metrics.Addr, promReg)
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
			defer stop()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// applyFlags overrides config values with flags the user set.
func applyFlags(cmd *cobra.Command, cfg *config.Config, o options) {
	f := cmd.Flags()
	if f.Changed("source") {
		cfg.Source.Kind = o.kind
	}
	if f.Changed("path") {
		cfg.Source.Path = o.path
		if !f.Changed("source") {
			cfg.Source.Kind = "file"
		}
	}
	if f.Changed("channel") {
		cfg.Source.Channel = o.channel
	}
	if f.Changed("history") {
		cfg.Source.HistoryDB = o.historyDB
	}
	if f.Changed("record") {
		cfg.Source.Record = o.record
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Addr = o.metricsAddr
	}
}

// openSource builds the configured source, wrapping it with the history
// recorder when recording is on.
func openSource(cfg *config.Config, logger *slog.Logger) (source.Source, error) {
	sc := cfg.Source
	opts := source.Options{
		Path:       config.ExpandPath(sc.Path),
		Channel:    sc.Channel,
		HistoryDB:  config.ExpandPath(sc.HistoryDB),
		BufferSize: cfg.Chat.BufferSize,
		Rate:       sc.DemoRate,
		Seed:       uint64(time.Now().UnixNano()),
		Logger:     logger,
	}
	src, err := source.Open(sc.Kind, opts)
	if err != nil {
		return nil, fmt.Errorf("%w (available: %v)", err, source.Kinds())
	}
	if !sc.Record || sc.Kind == "history" || opts.HistoryDB == "" {
		return src, nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.HistoryDB), 0755); err != nil {
		_ = src.Close()
		return nil, err
	}
	store, err := history.Open(opts.HistoryDB)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("open history: %w", err)
	}
	return history.Wrap(src, store, sc.Channel, cfg.Chat.BufferSize, logger), nil
}

// setupLogger logs to --log-file, or to debug.log in the config dir with
// --debug. The terminal belongs to the UI, so logs are discarded otherwise.
func setupLogger(o options) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if o.debug {
		level = slog.LevelDebug
	}
	path := o.logFile
	if path == "" && o.debug {
		path = filepath.Join(config.ConfigDir(), "debug.log")
	}
	if path == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	return logger, func() { _ = f.Close() }, nil
}

// effectiveVersion returns the version string, with fallback to build info.
func effectiveVersion(v string) string {
	if v != "" {
		return v
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}

	var revision string
	var dirty bool
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	if revision != "" {
		ver := "devel+" + revision
		if len(ver) > 20 {
			ver = ver[:20]
		}
		if dirty {
			ver += "+dirty"
		}
		return ver
	}
	return "devel"
}
