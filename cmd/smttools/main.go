// Command smttools is the fusion-chain search server. It serves the HTTP API
// and, when configured, the MCP endpoint and the Discord bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pickled-dev/smt-tools/internal/app"
	"github.com/pickled-dev/smt-tools/internal/config"
	discordbot "github.com/pickled-dev/smt-tools/internal/discord"
	"github.com/pickled-dev/smt-tools/internal/discord/commands"
	"github.com/pickled-dev/smt-tools/internal/observe"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}

// run starts the server and blocks until ctx is cancelled or a component
// fails. ready, when non-nil, is called with the bound HTTP address.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, ready func(addr string)) int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	fs := flag.NewFlagSet("smttools", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	reloadEvery := fs.Duration("reload-interval", 5*time.Second, "how often the config file is checked for changes")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	// ── Load configuration ────────────────────────────────────────────────────
	// The watcher callback only fires from Run, after application is set.
	var application *app.App
	watcher, err := config.NewWatcher(*configPath, func(d config.ConfigDiff, cfg *config.Config) {
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if len(d.RestartRequired) > 0 {
			slog.Warn("config changes need a restart to take effect", "settings", d.RestartRequired)
		}
		application.Reload(d, cfg)
	}, config.WithInterval(*reloadEvery))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(stderr, "smttools: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(stderr, "smttools: %v\n", err)
		}
		return 1
	}
	cfg := watcher.Current()
	level.Set(slogLevel(cfg.Server.LogLevel))

	slog.Info("smttools starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	application, err = app.New(ctx, cfg,
		app.WithVersion(version),
		app.WithMetricsHandler(telemetry.Handler()),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		_ = telemetry.Shutdown(context.Background())
		return 1
	}

	// ── Discord bot (optional) ────────────────────────────────────────────────
	var bot *discordbot.Bot
	if cfg.Discord.Token != "" {
		bot, err = discordbot.New(ctx, discordbot.Config{
			Token:        cfg.Discord.Token,
			GuildID:      cfg.Discord.GuildID,
			KeepCommands: cfg.Discord.KeepCommands,
		})
		if err != nil {
			slog.Error("failed to create Discord bot", "err", err)
			return 1
		}
		commands.NewFusionCommands(application.Service()).Register(bot.Router())
		slog.Info("discord bot connected", "guild_id", cfg.Discord.GuildID)
	}

	ln, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		slog.Error("failed to listen", "addr", cfg.Server.ListenAddr, "err", err)
		if bot != nil {
			_ = bot.Close()
		}
		_ = application.Shutdown(context.Background())
		_ = telemetry.Shutdown(context.Background())
		return 1
	}

	printStartupSummary(stdout, cfg)

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return application.Serve(gctx, ln) })
	g.Go(func() error { return watcher.Run(gctx) })
	if bot != nil {
		g.Go(func() error { return bot.Run(gctx) })
	}
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				slog.Info("SIGHUP received, reloading config")
				watcher.Reload(true)
			}
		}
	})

	slog.Info("server ready, press Ctrl+C to shut down", "addr", ln.Addr().String())
	if ready != nil {
		ready(ln.Addr().String())
	}

	exit := 0
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		exit = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping…")

	if bot != nil {
		if err := bot.Close(); err != nil {
			slog.Warn("discord bot close error", "err", err)
		}
	}
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		exit = 1
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return exit
}

func printStartupSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║        smttools startup summary       ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	printRow(w, "Compendium", cfg.Compendium.Path)
	printRow(w, "Game", orDefault(cfg.Compendium.Game, "(any)"))
	printRow(w, "Build store", string(cfg.Store.Backend))
	printRow(w, "Max batch", fmt.Sprint(cfg.Search.MaxBatch))
	printRow(w, "Timeout", cfg.Search.Timeout.String())
	if cfg.MCP.Enabled {
		printRow(w, "MCP", cfg.MCP.Path)
	} else {
		printRow(w, "MCP", "(disabled)")
	}
	if cfg.Discord.Token != "" {
		printRow(w, "Discord", "connected")
	} else {
		printRow(w, "Discord", "(disabled)")
	}
	printRow(w, "Listen addr", cfg.Server.ListenAddr)
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func printRow(w io.Writer, label, value string) {
	if len(value) > 19 {
		value = "…" + value[len(value)-18:]
	}
	fmt.Fprintf(w, "║  %-12s    : %-19s ║\n", label, value)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
