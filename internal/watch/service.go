// Package watch keeps the uploader resident, re-running the upload
// sequence whenever the source file changes on disk.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/rake74/AcctForecast/pkg/config"
	"github.com/rake74/AcctForecast/pkg/logger"
	"github.com/rake74/AcctForecast/pkg/uploader"
)

const settlePollInterval = 500 * time.Millisecond

type Service struct {
	uploader *uploader.Uploader
	config   *config.Config
	target   uploader.Target
	logger   *logger.Logger
}

func NewService(up *uploader.Uploader, cfg *config.Config, target uploader.Target, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Service{
		uploader: up,
		config:   cfg,
		target:   target,
		logger:   log,
	}
}

// Run watches the source file's directory and uploads on change until ctx
// is done. An upload is performed once at startup. Upload failures are
// logged and watching continues.
func (s *Service) Run(ctx context.Context) error {
	sourceFile, err := filepath.Abs(s.config.Upload.SourceFile)
	if err != nil {
		return fmt.Errorf("resolve source file path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(filepath.Dir(sourceFile)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(sourceFile), err)
	}

	s.logger.Info("watching source file", map[string]any{
		"source_file": sourceFile,
	})

	// Buffer of one: a change arriving mid-upload queues exactly one more
	// run.
	uploads := make(chan struct{}, 1)
	queueUpload := func() {
		select {
		case uploads <- struct{}{}:
		default:
		}
	}

	debouncer := NewDebouncer(time.Duration(s.config.Watch.DebounceSeconds)*time.Second, queueUpload)
	defer debouncer.Stop()

	queueUpload()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != sourceFile {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				s.logger.Debug("source file changed", map[string]any{
					"op": event.Op.String(),
				})
				debouncer.Trigger()
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				s.logger.Error("watcher error", err, nil)
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-uploads:
			}

			if err := s.waitSettled(ctx, sourceFile); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Warn("source file did not settle, skipping upload", map[string]any{
					"error": err.Error(),
				})
				continue
			}

			result, err := s.uploader.Run(ctx, s.target)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("upload failed", err, map[string]any{
					"kind": string(uploader.KindOf(err)),
				})
				continue
			}

			s.logger.Info("upload successful", map[string]any{
				"url":       result.URL,
				"timestamp": result.Timestamp,
				"replaced":  result.Replaced,
			})
		}
	})

	return g.Wait()
}

// waitSettled blocks until the file size holds steady for the configured
// number of consecutive polls, so half-written saves are not uploaded.
func (s *Service) waitSettled(ctx context.Context, path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat source file: %w", err)
	}

	lastSize := stat.Size()
	stable := 0

	for stable < s.config.Watch.SettleChecks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settlePollInterval):
		}

		stat, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat source file: %w", err)
		}

		if stat.Size() == lastSize {
			stable++
			continue
		}
		lastSize = stat.Size()
		stable = 0
	}

	return nil
}
