package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lotas/tabsort/internal/api"
	"github.com/lotas/tabsort/internal/applog"
	"github.com/lotas/tabsort/internal/bridge"
	"github.com/lotas/tabsort/internal/config"
	"github.com/lotas/tabsort/internal/export"
	"github.com/lotas/tabsort/internal/firefox"
	"github.com/lotas/tabsort/internal/organizer"
	"github.com/lotas/tabsort/internal/settings"
	"github.com/lotas/tabsort/internal/storage"
	"github.com/lotas/tabsort/internal/tui"
	"github.com/lotas/tabsort/internal/types"
)

const keepRuns = 500

func main() {
	cmd := "help"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	switch cmd {
	case "serve":
		runServe(args)
	case "organize":
		runOrganize(args)
	case "plan":
		runPlan(args)
	case "settings":
		runSettings(args)
	case "profiles":
		runProfiles(args)
	case "history":
		runHistory(args)
	case "help", "--help", "-h":
		printHelp()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", cmd)
		printHelp()
		os.Exit(2)
	}
}

func printHelp() {
	fmt.Print(`tabsort: keeps Firefox tabs sorted and clustered by site

Usage:
  tabsort serve                                        Run the extension bridge, HTTP API and event loop
    --config <file>        Config file (default: ~/.config/tabsort/config.yaml)
    --port <n>             WebSocket port for the extension (default: 19191)
    --http <addr>          HTTP API address (default: 127.0.0.1:19192)
    -v                     Mirror the log to stderr

  tabsort organize                                     Sort the live browser's tabs once
    --config <file>        Config file
    --wait <duration>      How long to wait for the extension (default: 10s)

  tabsort plan                                         Preview the order from a session file
    --profile <name>       Firefox profile name
    --json                 Output JSON instead of markdown
    --out <file>           Output file path (default: stdout)

  tabsort settings                                     Toggle settings in a TUI
  tabsort settings show                                Print the current settings
  tabsort settings set <key>=<bool> [...]              Change settings

  tabsort profiles                                     List Firefox profiles

  tabsort history [-n N]                               List recorded organize runs

Environment:
  TABSORT_PROFILE        Default Firefox profile (overridden by --profile flag)
  TABSORT_PORT, TABSORT_HTTP_ADDR, TABSORT_DB_PATH, TABSORT_STORAGE,
  TABSORT_LOG_DIR, TABSORT_LOG_LEVEL, TABSORT_LOCALE, TABSORT_DOMAIN_POLICY,
  TABSORT_EXCLUDE, TABSORT_CALL_TIMEOUT, TABSORT_FIREFOX_DIR
                         Override the matching config file keys
`)
}

func fatal(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", a...)
	applog.Close()
	os.Exit(1)
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fatal("loading config: %v", err)
	}
	return cfg
}

func setupLogging(cfg *config.Config, stderr bool) applog.Logger {
	log, err := applog.Init(applog.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Stderr: stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
	}
	return log
}

func newOrganizer(cfg *config.Config, browser organizer.Browser, store organizer.SettingsSource, log applog.Logger) *organizer.Organizer {
	deriver, err := cfg.Deriver()
	if err != nil {
		fatal("%v", err)
	}
	locale, err := cfg.Language()
	if err != nil {
		fatal("%v", err)
	}
	excludes, err := organizer.CompileExcludes(cfg.Exclude)
	if err != nil {
		fatal("%v", err)
	}
	return organizer.New(browser, store, log,
		organizer.WithDeriver(deriver),
		organizer.WithLocale(locale),
		organizer.WithExcludes(excludes),
	)
}

// profileSource returns the configured Firefox root, or the platform one.
func profileSource(cfg *config.Config) (firefox.Profiles, error) {
	if cfg.FirefoxDir != "" {
		return firefox.Profiles{Dir: cfg.FirefoxDir}, nil
	}
	return firefox.DefaultProfiles()
}

// settingsBackend picks where settings persist: the local database or the
// extension's synced storage through the bridge.
func settingsBackend(cfg *config.Config, db *sql.DB, br *bridge.Server) settings.SyncStorage {
	if cfg.Storage == config.StorageBridge && br != nil {
		return br
	}
	return storage.NewKV(db)
}

// startBridge serves the extension bridge until ctx is done.
func startBridge(ctx context.Context, cfg *config.Config, log applog.Logger) *bridge.Server {
	br := bridge.New(cfg.Port, cfg.CallTimeout, log)
	go func() {
		if err := br.ListenAndServe(ctx); err != nil {
			log.Error("bridge.serve", err)
			fmt.Fprintf(os.Stderr, "Bridge stopped: %v\n", err)
		}
	}()
	return br
}

// waitConnected blocks until the extension connects or wait elapses.
func waitConnected(ctx context.Context, br *bridge.Server, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for !br.Connected() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for extension on port %d (%s)", br.Port(), wait)
		case <-ticker.C:
		}
	}
	return nil
}

// openStore opens the database and loads settings from the configured
// backend. With bridge storage the extension must already be connected.
func openStore(ctx context.Context, cfg *config.Config, br *bridge.Server, log applog.Logger) (*sql.DB, *settings.Store) {
	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		fatal("opening database: %v", err)
	}
	store := settings.NewStore(settingsBackend(cfg, db, br), log)
	if err := store.Load(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: using default settings: %v\n", err)
	}
	return db, store
}

func recordRun(ctx context.Context, db *sql.DB, log applog.Logger, source string, run organizer.Run) {
	if _, err := storage.RecordRun(ctx, db, storage.FromRun(source, run)); err != nil {
		log.Error("run.record", err, "source", source)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	port := fs.Int("port", 0, "WebSocket port for the extension (overrides config)")
	httpAddr := fs.String("http", "", "HTTP API address (overrides config)")
	verbose := fs.Bool("v", false, "Mirror the log to stderr")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if *port != 0 {
		cfg.Port = *port
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	log := setupLogging(cfg, *verbose)
	defer applog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	br := startBridge(ctx, cfg, log)
	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		fatal("opening database: %v", err)
	}
	defer db.Close()

	store := settings.NewStore(settingsBackend(cfg, db, br), log)
	loaded := cfg.Storage != config.StorageBridge
	if loaded {
		if err := store.Load(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: using default settings: %v\n", err)
		}
	}

	org := newOrganizer(cfg, br, store, log)

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewServer(&api.Backend{
			Organizer: org,
			Store:     store,
			DB:        db,
			Browser:   br,
			Log:       log,
		}, log),
	}
	go func() {
		log.Info("http.start", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http.serve", err)
			fmt.Fprintf(os.Stderr, "HTTP API stopped: %v\n", err)
		}
	}()

	fmt.Fprintf(os.Stderr, "tabsort: extension bridge on 127.0.0.1:%d, API on http://%s\n", cfg.Port, cfg.HTTPAddr)

	// Events are handled one at a time. The startup run waits for the
	// first extension connection.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	startup := ticker.C
	handle := func(ev organizer.Event) {
		if !loaded && br.Connected() {
			if err := store.Load(ctx); err != nil {
				log.Error("settings.load", err)
			} else {
				loaded = true
			}
		}
		ran, err := org.HandleEvent(ctx, ev)
		if err != nil {
			log.Error("event.organize", err, "kind", ev.Kind)
		}
		if ran {
			recordRun(ctx, db, log, string(ev.Kind), org.LastRun())
		}
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-startup:
			if br.Connected() {
				startup = nil
				handle(organizer.Event{Kind: organizer.EventStartup})
			}
		case ev := <-br.Events():
			handle(ev)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("http.shutdown", err)
	}
	if n, err := storage.PruneRuns(shutdownCtx, db, keepRuns); err != nil {
		log.Error("runs.prune", err)
	} else if n > 0 {
		log.Info("runs.pruned", "deleted", n)
	}
	log.Info("serve.stopped")
}

func runOrganize(args []string) {
	fs := flag.NewFlagSet("organize", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	wait := fs.Duration("wait", 10*time.Second, "How long to wait for the extension")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	log := setupLogging(cfg, false)
	defer applog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	br := startBridge(ctx, cfg, log)
	fmt.Fprintf(os.Stderr, "Waiting for Firefox extension on port %d...\n", cfg.Port)
	if err := waitConnected(ctx, br, *wait); err != nil {
		fatal("%v", err)
	}

	db, store := openStore(ctx, cfg, br, log)
	defer db.Close()

	org := newOrganizer(cfg, br, store, log)
	run, err := org.Organize(ctx)
	recordRun(ctx, db, log, "cli", run)
	if err != nil {
		fatal("organize failed in %s: %v", run.Failed, err)
	}
	fmt.Printf("Organized %d tabs with %d moves.\n", run.Tabs, run.Moves)
}

func runPlan(args []string) {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	profileName := fs.String("profile", "", "Firefox profile name")
	jsonFlag := fs.Bool("json", false, "Output JSON instead of markdown")
	outFile := fs.String("out", "", "Output file path (default: stdout)")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	log := setupLogging(cfg, false)
	defer applog.Close()
	ctx := context.Background()

	src, err := profileSource(cfg)
	if err != nil {
		fatal("%v", err)
	}
	profile, session, err := src.Load(resolveProfileName(*profileName))
	if err != nil {
		fatal("reading session: %v", err)
	}

	// Offline plans never reach the extension, so bridge-stored settings
	// fall back to the local copy.
	db, store := openStore(ctx, cfg, nil, log)
	defer db.Close()

	org := newOrganizer(cfg, nil, store, log)
	sorted, moves, err := org.Plan(ctx, org.Filter(session.CurrentFirst()))
	if err != nil {
		fatal("planning: %v", err)
	}
	report := export.NewReport(profile.Name, sorted, org.Options(), moves)

	var output string
	if *jsonFlag {
		output, err = export.JSON(report)
		if err != nil {
			fatal("generating JSON: %v", err)
		}
	} else {
		output = export.Markdown(report)
	}

	if *outFile != "" {
		if err := os.WriteFile(*outFile, []byte(output), 0644); err != nil {
			fatal("writing file: %v", err)
		}
	} else {
		fmt.Print(output)
	}
}

func runSettings(args []string) {
	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	wait := fs.Duration("wait", 10*time.Second, "How long to wait for the extension with bridge storage")
	fs.Parse(reorderArgs(args))

	cfg := loadConfig(*configPath)
	log := setupLogging(cfg, false)
	defer applog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var br *bridge.Server
	if cfg.Storage == config.StorageBridge {
		br = startBridge(ctx, cfg, log)
		fmt.Fprintf(os.Stderr, "Waiting for Firefox extension on port %d...\n", cfg.Port)
		if err := waitConnected(ctx, br, *wait); err != nil {
			fatal("%v", err)
		}
	}
	db, store := openStore(ctx, cfg, br, log)
	defer db.Close()

	switch fs.Arg(0) {
	case "":
		var profiles []types.Profile
		if src, err := profileSource(cfg); err == nil {
			if profiles, err = src.List(); err != nil {
				log.Warn("profiles.list", "error", err.Error())
			}
		}
		model := tui.NewModel(store, newOrganizer(cfg, nil, store, log), profiles)
		if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
			fatal("%v", err)
		}
	case "show":
		printSettings(store.State())
	case "set":
		if fs.NArg() < 2 {
			fmt.Fprintln(os.Stderr, "Usage: tabsort settings set <key>=<bool> [...]")
			os.Exit(1)
		}
		next, err := applySettingArgs(store.State(), fs.Args()[1:])
		if err != nil {
			fatal("%v", err)
		}
		if err := store.SetState(ctx, next); err != nil {
			fatal("saving settings: %v", err)
		}
		printSettings(next)
	default:
		fmt.Fprintf(os.Stderr, "Unknown settings subcommand %q\n", fs.Arg(0))
		os.Exit(1)
	}
}

// applySettingArgs applies key=value pairs; any bad pair rejects them all.
func applySettingArgs(s settings.Settings, pairs []string) (settings.Settings, error) {
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return s, fmt.Errorf("expected key=value, got %q", pair)
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return s, fmt.Errorf("%s: %q is not a boolean", key, raw)
		}
		if s, err = s.With(key, v); err != nil {
			return s, err
		}
	}
	return s, nil
}

func printSettings(s settings.Settings) {
	for _, key := range settings.Keys() {
		v, _ := s.Get(key)
		fmt.Printf("%-26s %t\n", key, v)
	}
}

func runProfiles(args []string) {
	fs := flag.NewFlagSet("profiles", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	fs.Parse(args)

	src, err := profileSource(loadConfig(*configPath))
	if err != nil {
		fatal("%v", err)
	}
	profiles, err := src.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error discovering Firefox profiles: %v\n", err)
		os.Exit(1)
	}
	if len(profiles) == 0 {
		fmt.Fprintln(os.Stderr, "No Firefox profiles found.")
		os.Exit(1)
	}

	for _, p := range profiles {
		suffix := ""
		if p.IsDefault {
			suffix = " [default]"
		}
		fmt.Printf("%s (%s)%s\n", p.Name, p.Path, suffix)
	}
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	configPath := fs.String("config", "", "Config file path")
	limit := fs.Int("n", 20, "Number of runs to show")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	db, err := storage.OpenDB(cfg.DBPath)
	if err != nil {
		fatal("opening database: %v", err)
	}
	defer db.Close()

	runs, err := storage.ListRuns(context.Background(), db, *limit)
	if err != nil {
		fatal("listing runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}

	fmt.Printf("%-5s  %-19s  %-14s  %-12s  %5s  %5s  %s\n", "ID", "STARTED", "SOURCE", "STAGE", "TABS", "MOVES", "ERROR")
	for _, r := range runs {
		stage := r.Stage
		if r.FailedStage != "" {
			stage += "/" + r.FailedStage
		}
		fmt.Printf("%-5d  %-19s  %-14s  %-12s  %5d  %5d  %s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Source, stage, r.Tabs, r.Moves, r.Error)
	}
}

// reorderArgs moves flag arguments before positional arguments so that
// flag.Parse handles them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			flags = append(flags, args[i])
			if !strings.Contains(args[i], "=") && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") && !strings.Contains(args[i+1], "=") {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}

// resolveProfileName returns the profile name from the flag if set,
// otherwise falls back to the TABSORT_PROFILE environment variable.
func resolveProfileName(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("TABSORT_PROFILE")
}
