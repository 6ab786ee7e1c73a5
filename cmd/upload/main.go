package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rake74/AcctForecast/internal/watch"
	"github.com/rake74/AcctForecast/pkg/config"
	"github.com/rake74/AcctForecast/pkg/credential"
	"github.com/rake74/AcctForecast/pkg/logger"
	"github.com/rake74/AcctForecast/pkg/neocities"
	"github.com/rake74/AcctForecast/pkg/uploader"
)

func main() {
	var (
		configPath  string
		destination string
		watchMode   bool
	)
	flag.StringVar(&configPath, "config", "", "path to optional config file")
	flag.StringVar(&destination, "d", "index.html", "filename to use on the server")
	flag.StringVar(&destination, "destination", "index.html", "filename to use on the server")
	flag.BoolVar(&watchMode, "watch", false, "stay resident and re-upload when the source file changes")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] sitename\n\nUploads the account forecast page to a Neocities site with a build timestamp.\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		logger.Fatal("sitename argument is required", nil)
	}

	// A .env in the working directory may carry the API key; real
	// environment variables still win.
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load config", map[string]any{
			"config_path": configPath,
			"error":       err.Error(),
		})
	}

	log := logger.NewDefault()
	log.SetLevel(logger.ParseLevel(cfg.Log.Level))

	client := neocities.NewClient(&cfg.Neocities)
	up := uploader.New(client, cfg, log)
	target := uploader.Target{
		SiteName:    flag.Arg(0),
		Destination: destination,
	}

	if watchMode {
		runWatch(up, cfg, target, log)
		return
	}

	result, err := up.Run(context.Background(), target)
	if err != nil {
		report(log, cfg, err)
		return
	}

	log.Info("upload successful", map[string]any{
		"url":      result.URL,
		"replaced": result.Replaced,
	})
}

func runWatch(up *uploader.Uploader, cfg *config.Config, target uploader.Target, log *logger.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigChan
		log.Info("received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
		cancel()
	}()

	service := watch.NewService(up, cfg, target, log)
	if err := service.Run(ctx); err != nil {
		log.Error("watch service failed", err, nil)
		os.Exit(1)
	}

	log.Info("watch stopped", nil)
}

// report prints the user-facing message for a failed run. Anticipated
// failures exit 0; the message is the outcome, not a crash.
func report(log *logger.Logger, cfg *config.Config, err error) {
	switch uploader.KindOf(err) {
	case uploader.KindSourceNotFound:
		log.Error("source file not found", nil, map[string]any{
			"source_file": cfg.Upload.SourceFile,
		})
	case uploader.KindCredentialMissing:
		log.Error("api key not found", nil, map[string]any{
			"checked_env":  credential.EnvVar,
			"checked_file": cfg.Upload.APIKeyFile,
		})
	case uploader.KindCredentialReadError:
		log.Error("could not read api key file", causeOf(err), map[string]any{
			"key_file": cfg.Upload.APIKeyFile,
		})
	case uploader.KindAuthenticationFailed:
		log.Error("authentication failed", nil, map[string]any{
			"server_message": neocities.ServerMessage(causeOf(err)),
		})
	case uploader.KindUploadFailed:
		log.Error("operation failed", err, map[string]any{
			"server_message": neocities.ServerMessage(causeOf(err)),
		})
	case uploader.KindReplaceFailed:
		log.Error("failed to replace existing file", err, nil)
	default:
		log.Error("unexpected error", err, map[string]any{
			"type": fmt.Sprintf("%T", causeOf(err)),
		})
	}
}

// causeOf digs out the underlying failure for diagnostic fields.
func causeOf(err error) error {
	var runErr *uploader.Error
	if errors.As(err, &runErr) && runErr.Cause != nil {
		return runErr.Cause
	}
	return err
}
