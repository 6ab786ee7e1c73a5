package watch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rake74/AcctForecast/pkg/config"
	"github.com/rake74/AcctForecast/pkg/logger"
	"github.com/rake74/AcctForecast/pkg/uploader"
)

func newTestService(t *testing.T, settleChecks int) *Service {
	t.Helper()
	cfg := &config.Config{
		Watch: config.WatchConfig{
			DebounceSeconds: 1,
			SettleChecks:    settleChecks,
		},
	}
	return NewService(nil, cfg, uploader.Target{}, logger.New(io.Discard))
}

func TestWaitSettledStableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte("stable"), 0o644))

	s := newTestService(t, 1)

	assert.NoError(t, s.waitSettled(context.Background(), path))
}

func TestWaitSettledMissingFile(t *testing.T) {
	s := newTestService(t, 1)

	err := s.waitSettled(context.Background(), filepath.Join(t.TempDir(), "gone.html"))

	assert.ErrorContains(t, err, "stat source file")
}

func TestWaitSettledCanceledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte("stable"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestService(t, 3)

	assert.ErrorIs(t, s.waitSettled(ctx, path), context.Canceled)
}
