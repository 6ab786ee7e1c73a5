package uploader

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rake74/AcctForecast/pkg/config"
	"github.com/rake74/AcctForecast/pkg/credential"
	"github.com/rake74/AcctForecast/pkg/logger"
	"github.com/rake74/AcctForecast/pkg/neocities"
)

type mockSite struct {
	mock.Mock
}

func (m *mockSite) Login(ctx context.Context, apiKey string) error {
	args := m.Called(ctx, apiKey)
	return args.Error(0)
}

func (m *mockSite) UploadText(ctx context.Context, files map[string]string) error {
	args := m.Called(ctx, files)
	return args.Error(0)
}

func (m *mockSite) Delete(ctx context.Context, filenames ...string) error {
	args := m.Called(ctx, filenames)
	return args.Error(0)
}

var fixedTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const sourceContent = "<html><body>hi</body></html>"

const stampedContent = "<html><body>hi<pre>Updated: 2024-01-01T00:00:00Z</pre>\n</body></html>"

func newTestUploader(t *testing.T, site Site, sourceContent string) (*Uploader, *config.Config) {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Config{
		Upload: config.UploadConfig{
			SourceFile: filepath.Join(dir, "accountforecast.html"),
			APIKeyFile: filepath.Join(dir, "apikey"),
		},
	}

	if sourceContent != "" {
		require.NoError(t, os.WriteFile(cfg.Upload.SourceFile, []byte(sourceContent), 0o644))
	}

	u := New(site, cfg, logger.New(io.Discard))
	u.now = func() time.Time { return fixedTime }
	return u, cfg
}

func opError(message string) error {
	return &neocities.APIError{Type: neocities.ErrorTypeOp, Message: message}
}

var target = Target{SiteName: "rake74", Destination: "index.html"}

func TestRunSuccess(t *testing.T) {
	t.Setenv(credential.EnvVar, "test-key")

	site := &mockSite{}
	site.On("Login", mock.Anything, "test-key").Return(nil).Once()
	site.On("UploadText", mock.Anything, map[string]string{"index.html": stampedContent}).Return(nil).Once()

	u, _ := newTestUploader(t, site, sourceContent)

	result, err := u.Run(context.Background(), target)

	require.NoError(t, err)
	assert.Equal(t, "https://rake74.neocities.org/index.html", result.URL)
	assert.Equal(t, "2024-01-01T00:00:00Z", result.Timestamp)
	assert.False(t, result.Replaced)
	site.AssertExpectations(t)
}

func TestRunConflictDeletesAndRetriesOnce(t *testing.T) {
	t.Setenv(credential.EnvVar, "test-key")

	site := &mockSite{}
	site.On("Login", mock.Anything, "test-key").Return(nil).Once()
	site.On("UploadText", mock.Anything, mock.Anything).Return(opError("unable to process: failed to store files")).Once()
	site.On("Delete", mock.Anything, []string{"index.html"}).Return(nil).Once()
	site.On("UploadText", mock.Anything, mock.Anything).Return(nil).Once()

	u, _ := newTestUploader(t, site, sourceContent)

	result, err := u.Run(context.Background(), target)

	require.NoError(t, err)
	assert.True(t, result.Replaced)
	site.AssertExpectations(t)
	site.AssertNumberOfCalls(t, "Delete", 1)
	site.AssertNumberOfCalls(t, "UploadText", 2)
}

func TestRunConflictDeleteFails(t *testing.T) {
	t.Setenv(credential.EnvVar, "test-key")

	site := &mockSite{}
	site.On("Login", mock.Anything, "test-key").Return(nil).Once()
	site.On("UploadText", mock.Anything, mock.Anything).Return(opError("failed to store files")).Once()
	site.On("Delete", mock.Anything, []string{"index.html"}).Return(opError("delete refused")).Once()

	u, _ := newTestUploader(t, site, sourceContent)

	_, err := u.Run(context.Background(), target)

	assert.Equal(t, KindReplaceFailed, KindOf(err))
	site.AssertExpectations(t)
	site.AssertNumberOfCalls(t, "UploadText", 1)
}

func TestRunConflictRetryFails(t *testing.T) {
	t.Setenv(credential.EnvVar, "test-key")

	site := &mockSite{}
	site.On("Login", mock.Anything, "test-key").Return(nil).Once()
	site.On("UploadText", mock.Anything, mock.Anything).Return(opError("failed to store files")).Once()
	site.On("Delete", mock.Anything, []string{"index.html"}).Return(nil).Once()
	site.On("UploadText", mock.Anything, mock.Anything).Return(opError("still broken")).Once()

	u, _ := newTestUploader(t, site, sourceContent)

	_, err := u.Run(context.Background(), target)

	assert.Equal(t, KindReplaceFailed, KindOf(err))
	site.AssertExpectations(t)
	site.AssertNumberOfCalls(t, "UploadText", 2)
	site.AssertNumberOfCalls(t, "Delete", 1)
}

func TestRunNonConflictFailureTriggersNoRecovery(t *testing.T) {
	t.Setenv(credential.EnvVar, "test-key")

	site := &mockSite{}
	site.On("Login", mock.Anything, "test-key").Return(nil).Once()
	site.On("UploadText", mock.Anything, mock.Anything).Return(opError("quota exceeded")).Once()

	u, _ := newTestUploader(t, site, sourceContent)

	_, err := u.Run(context.Background(), target)

	assert.Equal(t, KindUploadFailed, KindOf(err))
	site.AssertExpectations(t)
	site.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	site.AssertNumberOfCalls(t, "UploadText", 1)
}

func TestRunAuthenticationFailed(t *testing.T) {
	t.Setenv(credential.EnvVar, "bad-key")

	site := &mockSite{}
	site.On("Login", mock.Anything, "bad-key").
		Return(&neocities.APIError{Type: neocities.ErrorTypeAuth, Message: "invalid api key"}).Once()

	u, _ := newTestUploader(t, site, sourceContent)

	_, err := u.Run(context.Background(), target)

	assert.Equal(t, KindAuthenticationFailed, KindOf(err))
	site.AssertExpectations(t)
	site.AssertNotCalled(t, "UploadText", mock.Anything, mock.Anything)
}

func TestRunSourceMissingMakesNoNetworkCalls(t *testing.T) {
	t.Setenv(credential.EnvVar, "test-key")

	site := &mockSite{}

	u, _ := newTestUploader(t, site, "")

	_, err := u.Run(context.Background(), target)

	assert.Equal(t, KindSourceNotFound, KindOf(err))
	site.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
	site.AssertNotCalled(t, "UploadText", mock.Anything, mock.Anything)
	site.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRunCredentialMissing(t *testing.T) {
	t.Setenv(credential.EnvVar, "")

	site := &mockSite{}

	u, _ := newTestUploader(t, site, sourceContent)

	_, err := u.Run(context.Background(), target)

	assert.Equal(t, KindCredentialMissing, KindOf(err))
	site.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestRunCredentialReadError(t *testing.T) {
	t.Setenv(credential.EnvVar, "")

	site := &mockSite{}

	u, cfg := newTestUploader(t, site, sourceContent)
	// A directory in place of the key file stats fine but cannot be read.
	require.NoError(t, os.Mkdir(cfg.Upload.APIKeyFile, 0o755))

	_, err := u.Run(context.Background(), target)

	assert.Equal(t, KindCredentialReadError, KindOf(err))
	site.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestClassifyUploadError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{
			name:     "conflict message classifies as recoverable conflict",
			err:      opError("unable to process: failed to store files"),
			expected: KindUploadConflict,
		},
		{
			name:     "other operation failure",
			err:      opError("quota exceeded"),
			expected: KindUploadFailed,
		},
		{
			name:     "auth failure",
			err:      &neocities.APIError{Type: neocities.ErrorTypeAuth, Message: "invalid api key"},
			expected: KindAuthenticationFailed,
		},
		{
			name:     "network failure",
			err:      &neocities.APIError{Type: neocities.ErrorTypeNetwork, Message: "request failed"},
			expected: KindUnknown,
		},
		{
			name:     "conflict substring in a non-op error is not a conflict",
			err:      &neocities.APIError{Type: neocities.ErrorTypeNetwork, Message: "failed to store files"},
			expected: KindUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(classifyUploadError(tt.err)))
		})
	}
}

func TestRunAppendsTimestampWithoutBodyTag(t *testing.T) {
	t.Setenv(credential.EnvVar, "test-key")

	var uploaded map[string]string
	site := &mockSite{}
	site.On("Login", mock.Anything, "test-key").Return(nil).Once()
	site.On("UploadText", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			uploaded = args.Get(1).(map[string]string)
		}).
		Return(nil).Once()

	u, _ := newTestUploader(t, site, "no body tag here")

	_, err := u.Run(context.Background(), target)

	require.NoError(t, err)
	assert.Equal(t, "no body tag here\n<pre>Updated: 2024-01-01T00:00:00Z</pre>", uploaded["index.html"])
}
