package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/mattn/go-isatty"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ytget/ytflow/internal/api"
	"github.com/ytget/ytflow/internal/config"
	"github.com/ytget/ytflow/internal/dashboard"
	"github.com/ytget/ytflow/internal/download"
	"github.com/ytget/ytflow/internal/logging"
	"github.com/ytget/ytflow/internal/platform"
	"github.com/ytget/ytflow/internal/queue"
	"github.com/ytget/ytflow/internal/transcode"
)

const (
	shutdownTimeout   = 15 * time.Second
	readHeaderTimeout = 10 * time.Second
	detachedEnv       = config.EnvPrefix + "DETACHED"
)

var cmdServe = &cli.Command{
	Name:  "serve",
	Usage: "run the download server",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "path",
			Usage:   "download directory, remembered for later runs",
			EnvVars: []string{config.EnvPrefix + "PATH"},
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "listen host",
			EnvVars: []string{config.EnvPrefix + "HOST"},
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "listen port",
			EnvVars: []string{config.EnvPrefix + "PORT"},
		},
		&cli.IntFlag{
			Name:    "max-parallel",
			Usage:   fmt.Sprintf("number of simultaneous downloads (%d..%d), remembered for later runs", config.MinParallel, config.MaxParallelCeiling),
			EnvVars: []string{config.EnvPrefix + "MAX_PARALLEL"},
		},
		&cli.BoolFlag{
			Name:    "no-dashboard",
			Usage:   "do not draw the live dashboard, log to the console instead",
			EnvVars: []string{config.EnvPrefix + "NO_DASHBOARD"},
		},
		&cli.BoolFlag{
			Name:  "detach",
			Usage: "run the server in the background",
		},
		&cli.BoolFlag{
			Name:    "no-update",
			Usage:   "do not download or update yt-dlp on startup",
			EnvVars: []string{config.EnvPrefix + "NO_UPDATE"},
		},
	},
	Action: runServe,
}

func runServe(c *cli.Context) error {
	if c.Bool("detach") && os.Getenv(detachedEnv) == "" {
		return detach()
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	settings, err := config.NewSettings(config.DefaultSettingsPath())
	if err != nil {
		return err
	}

	if c.IsSet("host") {
		cfg.Server.Host = c.String("host")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}

	if c.IsSet("max-parallel") {
		cfg.SetMaxParallel(c.Int("max-parallel"))
		if err := settings.SetMaxParallelDownloads(cfg.Downloads.MaxParallel); err != nil {
			log.Warnf("Failed to save max-parallel preference: %s", err)
		}
	} else {
		cfg.SetMaxParallel(settings.GetMaxParallelDownloads(cfg.Downloads.MaxParallel))
	}

	outputDir, err := resolveOutputDir(c, cfg, settings)
	if err != nil {
		return err
	}

	showDashboard := !c.Bool("no-dashboard") && os.Getenv(detachedEnv) == "" && isatty.IsTerminal(os.Stdout.Fd())

	logCloser, err := logging.Setup(logging.Options{
		Level:    cfg.Log.Level,
		File:     cfg.Log.File,
		Console:  !showDashboard,
		Debug:    c.Bool("debug"),
		Colorize: !showDashboard && isatty.IsTerminal(os.Stdout.Fd()),
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()

	pidFile := platform.NewPIDFile(cfg.Server.PIDFile)
	if err := pidFile.Write(); err != nil {
		log.Warnf("Failed to write PID file: %s", err)
	}
	defer pidFile.Remove()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigc)

		select {
		case s := <-sigc:
			log.WithField("signal", s).Info("Graceful shutdown initiated ...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var engineVersion atomic.Value
	engineVersion.Store("")

	ffmpeg := platform.DiscoverTool(ctx, platform.FFmpegCommand, cfg.Tools.FFmpeg)
	ffprobe := platform.DiscoverTool(ctx, platform.FFprobeCommand, cfg.Tools.FFprobe)

	var post download.PostProcessor
	if transcoder := transcode.NewService(ffmpeg.Path, ffprobe.Path); transcoder.Available() {
		post = transcoder
	} else {
		log.Warn("ffmpeg not found, downloads are kept in their original format")
	}

	extractor := download.NewYTDLPExtractor(download.YTDLPOptions{
		Executable:     cfg.Tools.YTDLP,
		FFmpegLocation: ffmpeg.Path,
	})

	reg := queue.NewRegistry(max(cfg.Downloads.History, cfg.Dashboard.Recent))

	pool := download.NewPool(reg, extractor, post, download.Options{
		MaxParallel: cfg.Downloads.MaxParallel,
		OutputDir:   outputDir,
		Retries:     cfg.Downloads.Retries,
		RetryDelay:  cfg.Downloads.RetryDelay,
		CancelGrace: cfg.Downloads.CancelGrace,
	})

	gateway := api.NewServer(reg, pool, api.Options{
		Origins:     platform.NewOriginPolicy(cfg.Origins.Allow),
		Expander:    platform.NewPlaylistExpander(platform.DefaultExpandTimeout, 0),
		MaxParallel: pool.Limit(),
		Version:     version,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           gateway.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return pool.Run(gctx)
	})

	group.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()

		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Failed to stop the http server: %s", err)
		}
		if err := pool.Shutdown(shutdownCtx); err != nil {
			log.Errorf("Downloads did not stop in time: %s", err)
		}

		return nil
	})

	group.Go(func() error {
		resolveEngine(gctx, cfg, c.Bool("no-update"), &engineVersion)
		return nil
	})

	if showDashboard {
		reporter := dashboard.NewReporter(reg, dashboard.Options{
			Interval:  cfg.Dashboard.Interval,
			Recent:    cfg.Dashboard.Recent,
			Limit:     pool.Limit(),
			OutputDir: outputDir,
			Engine:    func() string { return engineVersion.Load().(string) },
			Out:       os.Stdout,
		})

		group.Go(func() error {
			return reporter.Run(gctx)
		})
	}

	log.Infof("Server listening on http://%s, downloads go to %s (%d parallel)", srv.Addr, outputDir, pool.Limit())

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); !ok && err != nil {
		log.Warnf("Failed to notify systemd: %s", err)
	}

	err = group.Wait()

	daemon.SdNotify(false, daemon.SdNotifyStopping)
	log.Info("Server stopped")

	return err
}

// resolveOutputDir picks the download directory: the --path flag (which is
// saved), then the configuration file, then the saved preference.
func resolveOutputDir(c *cli.Context, cfg *config.Config, settings *config.Settings) (string, error) {
	var dir string

	switch {
	case c.IsSet("path"):
		saved, err := settings.SetDownloadDirectory(c.String("path"))
		if err != nil && saved == "" {
			return "", err
		}
		if err != nil {
			log.Warnf("Failed to save download directory: %s", err)
		}
		dir = saved
	case cfg.Downloads.Dir != "":
		dir = cfg.Downloads.Dir
	default:
		dir = settings.GetDownloadDirectory("")
	}

	if err := platform.CreateDirectoryIfNotExists(dir); err != nil {
		return "", fmt.Errorf("failed to create download directory %s: %w", dir, err)
	}

	return dir, nil
}

// resolveEngine installs or updates yt-dlp unless disabled and records its version
func resolveEngine(ctx context.Context, cfg *config.Config, noUpdate bool, version *atomic.Value) {
	if cfg.Tools.YTDLP == "" && cfg.Tools.AutoUpdate && !noUpdate {
		info, err := download.InstallEngine(ctx)
		if err == nil {
			version.Store(info.Version)
			log.Infof("Using yt-dlp %s (%s)", info.Version, info.Executable)
			return
		}
		if ctx.Err() != nil {
			return
		}
		log.Warnf("yt-dlp update failed, falling back to a local copy: %s", err)
	}

	tool := platform.DiscoverTool(ctx, platform.YTDLPCommand, cfg.Tools.YTDLP)
	if !tool.Found() {
		log.Warnf("yt-dlp is not available: %s", tool.Err)
		return
	}

	version.Store(tool.Version)
	log.Infof("Using yt-dlp %s (%s)", tool.Version, tool.Path)
}

// detach starts the server again as a background process
func detach() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}

	proc, err := startDetached(exe, os.Args[1:], append(os.Environ(), detachedEnv+"=1"))
	if err != nil {
		return fmt.Errorf("failed to start in the background: %w", err)
	}

	fmt.Printf("%s started in the background (pid %d)\n", config.AppName, proc.Pid)

	return proc.Release()
}
