package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/amaumene/pondtv/internal/api"
	"github.com/amaumene/pondtv/internal/config"
	"github.com/amaumene/pondtv/internal/drive"
	"github.com/amaumene/pondtv/internal/engine"
	"github.com/amaumene/pondtv/internal/engine/mpv"
	"github.com/amaumene/pondtv/internal/playlist"
	"github.com/amaumene/pondtv/internal/scanner"
	"github.com/amaumene/pondtv/internal/session"
	"github.com/amaumene/pondtv/internal/store"
	"github.com/amaumene/pondtv/internal/utils"
)

// catalogFile is the durable catalog's name at the media root
const catalogFile = "media_library.yml"

// emptyPoolRetry is how long to idle before rescanning when everything
// on the drive is marked seen
const emptyPoolRetry = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the channel",
	Long:  "Wait for the media drive, scan it into the catalog, and play unseen content on loop until told to quit.",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	// Bare "pondtv" runs the channel, matching how the systemd unit
	// invokes it.
	rootCmd.RunE = runServe
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting PondTV")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := drive.New(cfg, logger)
	if err := monitor.Start(fmt.Sprintf("%ds", cfg.DrivePollSeconds)); err != nil {
		return fmt.Errorf("failed to start drive monitor: %w", err)
	}
	defer monitor.Stop()

	// Sessions come and go with drive attachments. The HTTP server
	// outlives them and resolves the active one per request.
	var active atomic.Pointer[session.Session]
	var activeDriveCfg atomic.Pointer[config.DriveConfig]

	server := api.NewServer(cfg, monitor,
		func() *session.Session { return active.Load() },
		func() int {
			if dc := activeDriveCfg.Load(); dc != nil {
				return dc.ChannelGuideItemsPerPage
			}
			return config.DefaultDriveConfig().ChannelGuideItemsPerPage
		},
		logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- err
		}
	}()

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- channelLoop(ctx, cfg, monitor, &active, &activeDriveCfg, logger)
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case err := <-loopErr:
		stop()
		if shutdownErr := server.Shutdown(context.Background()); shutdownErr != nil {
			logger.WithError(shutdownErr).Error("Error during server shutdown")
		}
		logger.Info("PondTV stopped")
		return err
	}
}

// channelLoop is the outer recovery loop: it attaches to the drive, scans,
// plays until the session ends, and decides whether to wait, rescan, or
// shut down. Drive removal and an exhausted pool both come back here.
func channelLoop(
	ctx context.Context,
	cfg *config.Config,
	monitor *drive.Monitor,
	active *atomic.Pointer[session.Session],
	activeDriveCfg *atomic.Pointer[config.DriveConfig],
	logger *logrus.Logger,
) error {
	for {
		mediaRoot, err := monitor.WaitForDrive(ctx)
		if err != nil {
			return nil
		}
		logger.WithField("media_root", mediaRoot).Info("Media drive attached")

		driveCfg, err := config.LoadDriveConfig(mediaRoot)
		if err != nil {
			logger.WithError(err).Warn("Invalid drive config, using defaults")
			driveCfg = config.DefaultDriveConfig()
		}
		activeDriveCfg.Store(driveCfg)

		st := store.New(filepath.Join(mediaRoot, catalogFile))
		catalog, err := scanner.New(mediaRoot, st, cfg.MinFileSizeMB, logger).Scan()
		if err != nil {
			logger.WithError(err).Error("Scan failed, keeping prior catalog")
			catalog, err = st.Load()
			if err != nil {
				logger.WithError(err).Error("No usable catalog, waiting before retry")
				if !sleepCtx(ctx, emptyPoolRetry) {
					return nil
				}
				continue
			}
		}

		selector := playlist.New(cfg.ShuffleSeed, logger)
		newEngine := func() (engine.Engine, error) {
			return mpv.New(cfg.MPVPath, cfg.MPVSocket, logger)
		}

		sess := session.New(st, catalog, selector, newEngine, monitor.States(), cfg, driveCfg, mediaRoot, logger)
		active.Store(sess)
		err = sess.Run(ctx)
		active.Store(nil)

		switch {
		case errors.Is(err, session.ErrQuit):
			logger.Info("Quit requested")
			return nil
		case errors.Is(err, session.ErrDriveRemoved):
			logger.Warn("Playback interrupted, waiting for drive")
			continue
		case errors.Is(err, session.ErrNoContent):
			logger.Info("Everything on the drive is marked seen, idling")
			if !sleepCtx(ctx, emptyPoolRetry) {
				return nil
			}
			continue
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil
		case err != nil:
			return err
		}
	}
}

// sleepCtx waits for d, returning false if the context ended first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
