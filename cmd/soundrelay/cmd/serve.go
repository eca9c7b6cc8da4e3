package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmylchreest/soundrelay/internal/config"
	"github.com/jmylchreest/soundrelay/internal/database"
	internalhttp "github.com/jmylchreest/soundrelay/internal/http"
	"github.com/jmylchreest/soundrelay/internal/http/handlers"
	"github.com/jmylchreest/soundrelay/internal/housekeeping"
	"github.com/jmylchreest/soundrelay/internal/metrics"
	"github.com/jmylchreest/soundrelay/internal/playback"
	"github.com/jmylchreest/soundrelay/internal/repository"
	"github.com/jmylchreest/soundrelay/internal/service"
	"github.com/jmylchreest/soundrelay/internal/signing"
	"github.com/jmylchreest/soundrelay/internal/streaming"
	"github.com/jmylchreest/soundrelay/internal/transcode"
	"github.com/jmylchreest/soundrelay/internal/version"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the soundrelay server",
	Long: `Start the soundrelay HTTP server.

The server provides:
- /stream, /hls and /download media routes, plus signed copies under /ext
- REST API for transfers and player queues
- Health check and Prometheus metrics endpoints
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 4040, "Port to listen on")
	serveCmd.Flags().String("database", "soundrelay.db", "Database DSN")

	mustBindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	mustBindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	mustBindPFlag("database.dsn", serveCmd.Flags().Lookup("database"))
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.New(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing database", slog.String("error", err.Error()))
		}
	}()

	if err := db.Migrate(context.Background()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	fileRepo := repository.NewMediaFileRepository(db.DB)
	playlistRepo := repository.NewPlaylistRepository(db.DB)
	accessRepo := repository.NewFolderAccessRepository(db.DB)
	playerRepo := repository.NewPlayerRepository(db.DB)
	profileRepo := repository.NewTranscodingProfileRepository(db.DB)

	registrar := playback.NewRegistrar(playback.RegistrarConfig{
		HistoryPerPlayer:     playback.DefaultHistoryPerPlayer,
		StatusHistorySize:    cfg.Streaming.StatusHistorySize,
		StatusSampleInterval: cfg.Streaming.StatusSampleInterval,
	}).WithLogger(logger)

	signer, err := newSigner(cfg.Signing, logger)
	if err != nil {
		return err
	}

	m := metrics.New(registrar)

	resolver := transcode.NewResolver(profileRepo, transcode.ResolverConfig{
		HLSCommand: cfg.Transcode.DefaultHLSCommand,
	}).WithLogger(logger)
	opener := transcode.NewOpener(afero.NewOsFs(), cfg.Transcode.Directory).WithLogger(logger)

	throttle := streaming.NewThrottle(cfg.Download.BitRateLimitKbps, registrar.DownloadCount, cfg.Download.BufferSize.Int())

	playerService := service.NewPlayerService(playerRepo, fileRepo, accessRepo, registrar).
		WithLogger(logger)

	deliveryService := service.NewDeliveryService(
		fileRepo,
		playlistRepo,
		accessRepo,
		playerService,
		registrar,
		resolver,
		opener,
		service.DeliveryConfig{
			BufferSize:         cfg.Streaming.BufferSize,
			DownloadBufferSize: cfg.Download.BufferSize.Int(),
			KeepAliveDelay:     cfg.Streaming.KeepAliveDelay,
			Icy: streaming.IcyInfo{
				Name:         cfg.Streaming.ICYName,
				Genre:        cfg.Streaming.ICYGenre,
				URL:          cfg.Streaming.ICYURL,
				WelcomeTitle: cfg.Streaming.ICYName,
			},
		},
	).
		WithLogger(logger).
		WithSigner(signer).
		WithThrottle(throttle).
		WithMetrics(m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	housekeeper := housekeeping.New(registrar, housekeeping.Config{
		Schedule:  cfg.Housekeeping.PruneSchedule,
		Retention: cfg.Streaming.StatusRetention,
	}).WithLogger(logger).OnPruned(m.ObservePruned)
	if err := housekeeper.Start(ctx); err != nil {
		return fmt.Errorf("starting housekeeping: %w", err)
	}
	defer housekeeper.Stop()

	server := internalhttp.NewServer(internalhttp.ServerConfigFrom(cfg), logger, m)
	server.Register(internalhttp.Handlers{
		Media:     handlers.NewMediaHandler(deliveryService, signer).WithLogger(logger),
		Transfers: handlers.NewTransferHandler(registrar),
		Players:   handlers.NewPlayerHandler(playerService),
		Health:    handlers.NewHealthHandler(version.Version).WithDB(db.DB).WithTransfers(registrar),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("starting soundrelay",
		slog.String("version", version.Version),
		slog.String("address", server.Address()),
		slog.String("database_driver", db.Driver()),
	)

	return server.ListenAndServe(ctx, registrar.Shutdown)
}

// newSigner builds the URL signer. Without a configured secret a random one
// is used, so signed links do not survive a restart.
func newSigner(cfg config.SigningConfig, logger *slog.Logger) (*signing.Signer, error) {
	secret := cfg.Secret
	if secret == "" {
		generated, err := signing.GenerateSecret()
		if err != nil {
			return nil, err
		}
		secret = generated
		logger.Warn("no signing secret configured, signed URLs expire on restart")
	}

	signer, err := signing.NewSigner(secret, cfg.Expiry)
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}
	return signer, nil
}
