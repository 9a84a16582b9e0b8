package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"github.com/kiliankoe/nback/internal/config"
	"github.com/kiliankoe/nback/internal/export"
	"github.com/kiliankoe/nback/internal/httpapi"
	"github.com/kiliankoe/nback/internal/nback"
	"github.com/kiliankoe/nback/internal/session"
	"github.com/kiliankoe/nback/internal/store"
	"github.com/kiliankoe/nback/internal/ws"
	staticserver "github.com/kiliankoe/nback/static"
)

var version = "dev" // Set at build time via -ldflags

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`nback - N-Back working-memory trainer

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT                Port to listen on (default: 8080)
  LOG_LEVEL           trace, debug, info, warn, error (default: info)
  STORE_DRIVER        Score/history store: "sqlite" or "memory" (default: sqlite)
  SQLITE_PATH         SQLite database file (default: ./data/nback.db)
  HISTORY_LIMIT       Game results kept in history (default: 100)
  PROFILES_FILE       YAML file with extra difficulty profiles (optional)
  SINGLE_SESSION      Allow only one active session (default: false)
  EXPORT_ENABLED      Append game results to a text file (default: false)
  EXPORT_FILE         Path of the results file (default: ./nback-results.txt)

Visit http://localhost:8080 after starting the server.
`, os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("nback %s\n", version)
		return
	}

	cfg := config.FromEnv()
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	profiles, err := config.LoadProfiles(cfg.ProfilesFile)
	if err != nil {
		zerologlog.Fatal().Err(err).Str("file", cfg.ProfilesFile).Msg("failed to load profiles")
	}

	kv, closeKV, err := openStore(cfg)
	if err != nil {
		zerologlog.Fatal().Err(err).Msg("failed to open store")
	}
	defer closeKV()

	scores := store.NewScores(kv)
	hist := store.NewHistory(kv, cfg.HistoryLimit)
	var historySink nback.HistorySink = hist
	if cfg.ExportEnabled {
		historySink = store.MultiHistory{hist, export.NewFile(cfg.ExportFile)}
		zerologlog.Info().Str("file", cfg.ExportFile).Msg("exporting game results")
	}

	sessions := session.NewManager(profiles, cfg.SingleSession,
		nback.WithScheduler(nback.NewTimerScheduler()),
		nback.WithScoreSink(scores),
		nback.WithHistorySink(historySink),
	)
	defer sessions.Shutdown()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpapi.AccessLog())

	api := &httpapi.Server{Sessions: sessions, Scores: scores, History: hist, Profiles: profiles}
	api.Register(r)

	sock := ws.New(sessions)
	io := sock.Mount(r)
	defer io.Close()

	// Serve frontend for all other routes
	r.NoRoute(func(c *gin.Context) {
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		zerologlog.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerologlog.Fatal().Err(err).Msg("server exited")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		zerologlog.Error().Err(err).Msg("shutdown")
	}
}

func openStore(cfg config.Config) (store.KV, func(), error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemory(), func() {}, nil
	case "sqlite":
		db, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
