package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"

	"github.com/sitsofe/pos-terminal/catalog"
	"github.com/sitsofe/pos-terminal/config"
	"github.com/sitsofe/pos-terminal/database"
	"github.com/sitsofe/pos-terminal/logger"
	"github.com/sitsofe/pos-terminal/routes"
	"github.com/sitsofe/pos-terminal/terminal"
)

func main() {
	app := &cli.App{
		Name:  "pos-terminal",
		Usage: "offline-first catalog, cart and checkout for a pharmacy till",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "env-file",
				Aliases: []string{"e"},
				Usage:   "env file(s) to load before reading the environment",
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the local UI API",
				Action: serve,
			},
			{
				Name:  "sync",
				Usage: "seed the catalog cache from the backend",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Usage: "replace the cache even when it is not empty"},
				},
				Action: syncCatalog,
			},
			{
				Name:  "export",
				Usage: "write the cached catalog to an xlsx file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Value: "products.xlsx"},
				},
				Action: exportCatalog,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.GetAppLogger().WithError(err).Fatal("❌ pos-terminal failed")
	}
}

// bootstrap loads config, initializes logging and the cache database, and builds the
// terminal.
func bootstrap(c *cli.Context) (*terminal.Terminal, error) {
	cfg, err := config.NewConfig(c.StringSlice("env-file")...)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(&logger.LogConfig{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		Output:     cfg.LogOutput,
		LogPath:    cfg.LogPath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAge,
		Compress:   cfg.LogCompress,
	}); err != nil {
		return nil, err
	}
	log := logger.GetAppLogger()
	log.Info("✅ Starting application...")

	db, err := database.Open(cfg, logger.GetLogger("gorm"))
	if err != nil {
		return nil, err
	}
	log.WithField("driver", cfg.CacheDriver).Info("✅ Catalog cache ready")

	return terminal.New(cfg, db)
}

func serve(c *cli.Context) error {
	term, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer term.Close()
	log := logger.GetAppLogger()

	if err := term.Start(); err != nil {
		return err
	}

	// Gin setup
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	// CORS settings
	r.Use(cors.New(cors.Config{
		AllowOrigins:     term.Config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-KEY"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Setup routes
	routes.SetupRoutes(r, term)

	srv := &http.Server{Addr: term.Config.Address, Handler: r}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Server running on %s...", term.Config.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func syncCatalog(c *cli.Context) error {
	term, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer term.Close()

	if ok, err := term.InstallBootSession(); err != nil {
		return err
	} else if !ok {
		return errors.New("SESSION_TOKEN is required to sync")
	}

	op := term.Sync.SyncIfEmpty
	if c.Bool("force") {
		op = term.Sync.ForceRefresh
	}
	res, err := op(c.Context)
	if err != nil {
		return err
	}
	logger.GetAppLogger().WithField("pulled", res.Pulled).WithField("count", res.Count).Info("✅ Catalog sync finished")
	return nil
}

func exportCatalog(c *cli.Context) error {
	term, err := bootstrap(c)
	if err != nil {
		return err
	}
	defer term.Close()

	out := c.String("out")
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := catalog.WriteXLSX(c.Context, term.Products, f)
	if err != nil {
		return err
	}
	logger.GetAppLogger().WithField("rows", n).WithField("file", out).Info("✅ Catalog exported")
	return f.Sync()
}
