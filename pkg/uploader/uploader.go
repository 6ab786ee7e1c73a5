// Package uploader runs the upload sequence: locate the source file,
// resolve the API key, stamp the document and push it to the site,
// replacing an existing file of the same name when the server reports a
// conflict.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rake74/AcctForecast/pkg/config"
	"github.com/rake74/AcctForecast/pkg/credential"
	"github.com/rake74/AcctForecast/pkg/document"
	"github.com/rake74/AcctForecast/pkg/logger"
	"github.com/rake74/AcctForecast/pkg/neocities"
)

// conflictMarker is the substring of the server message that identifies
// an already-exists conflict. Matched verbatim; any other failure is
// terminal.
const conflictMarker = "failed to store files"

// Site is the remote API collaborator. Login must be called before
// UploadText or Delete.
type Site interface {
	Login(ctx context.Context, apiKey string) error
	UploadText(ctx context.Context, files map[string]string) error
	Delete(ctx context.Context, filenames ...string) error
}

// Target names where the document goes.
type Target struct {
	SiteName    string
	Destination string
}

// PublicURL is where the uploaded file is served from.
func (t Target) PublicURL() string {
	return fmt.Sprintf("https://%s.neocities.org/%s", t.SiteName, t.Destination)
}

type Result struct {
	URL       string
	Timestamp string
	Replaced  bool
}

type Uploader struct {
	site   Site
	config *config.Config
	logger *logger.Logger
	now    func() time.Time
}

func New(site Site, cfg *config.Config, log *logger.Logger) *Uploader {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Uploader{
		site:   site,
		config: cfg,
		logger: log,
		now:    time.Now,
	}
}

// Run executes the sequence once. Any failure aborts the remaining steps;
// the only built-in recovery is the delete-and-reupload on a reported
// conflict, attempted exactly once.
func (u *Uploader) Run(ctx context.Context, target Target) (*Result, error) {
	sourceFile := u.config.Upload.SourceFile

	if _, err := os.Stat(sourceFile); err != nil {
		return nil, &Error{
			Kind:    KindSourceNotFound,
			Message: fmt.Sprintf("source file %q not found", sourceFile),
			Cause:   err,
		}
	}

	apiKey, keySource, err := credential.Resolve(u.config.Upload.APIKeyFile)
	if err != nil {
		return nil, classifyCredentialError(err)
	}
	u.logger.Info("api key loaded", map[string]any{
		"source": string(keySource),
	})

	content, err := os.ReadFile(sourceFile)
	if err != nil {
		return nil, &Error{
			Kind:    KindUnknown,
			Message: fmt.Sprintf("read source file %q", sourceFile),
			Cause:   err,
		}
	}

	now := u.now()
	stamped, foundBody := document.Stamp(string(content), now)
	timestamp := document.FormatTimestamp(now)
	if foundBody {
		u.logger.Info("timestamp injected", map[string]any{
			"timestamp": timestamp,
		})
	} else {
		u.logger.Warn("closing body tag not found, appending timestamp at end of file", map[string]any{
			"timestamp": timestamp,
		})
	}

	if err := u.site.Login(ctx, apiKey); err != nil {
		return nil, classifyRemoteError(err, "login failed")
	}

	u.logger.Info("uploading document", map[string]any{
		"site":        target.SiteName,
		"destination": target.Destination,
	})

	files := map[string]string{target.Destination: stamped}

	err = u.site.UploadText(ctx, files)
	if err == nil {
		return &Result{URL: target.PublicURL(), Timestamp: timestamp}, nil
	}

	uploadErr := classifyUploadError(err)
	if KindOf(uploadErr) != KindUploadConflict {
		return nil, uploadErr
	}

	u.logger.Info("destination already exists, replacing", map[string]any{
		"destination": target.Destination,
	})

	if err := u.site.Delete(ctx, target.Destination); err != nil {
		return nil, &Error{
			Kind:    KindReplaceFailed,
			Message: fmt.Sprintf("delete existing %q", target.Destination),
			Cause:   err,
		}
	}

	if err := u.site.UploadText(ctx, files); err != nil {
		return nil, &Error{
			Kind:    KindReplaceFailed,
			Message: fmt.Sprintf("re-upload %q after delete", target.Destination),
			Cause:   err,
		}
	}

	return &Result{URL: target.PublicURL(), Timestamp: timestamp, Replaced: true}, nil
}

// classifyUploadError maps an upload failure to its kind. A server
// message containing conflictMarker classifies as KindUploadConflict, the
// one recoverable kind; Run recovers it in place and never returns it.
func classifyUploadError(err error) error {
	if neocities.IsOpError(err) && strings.Contains(neocities.ServerMessage(err), conflictMarker) {
		return &Error{
			Kind:    KindUploadConflict,
			Message: neocities.ServerMessage(err),
			Cause:   err,
		}
	}
	return classifyRemoteError(err, "upload failed")
}

func classifyCredentialError(err error) error {
	var readErr *credential.ReadError
	switch {
	case errors.As(err, &readErr):
		return &Error{
			Kind:    KindCredentialReadError,
			Message: fmt.Sprintf("could not read key file %q", readErr.Path),
			Cause:   err,
		}
	case errors.Is(err, credential.ErrMissing):
		return &Error{
			Kind:    KindCredentialMissing,
			Message: "api key not found in environment or key file",
			Cause:   err,
		}
	default:
		return &Error{Kind: KindUnknown, Message: "resolve api key", Cause: err}
	}
}

func classifyRemoteError(err error, fallback string) error {
	switch {
	case neocities.IsAuthError(err):
		return &Error{
			Kind:    KindAuthenticationFailed,
			Message: neocities.ServerMessage(err),
			Cause:   err,
		}
	case neocities.IsOpError(err):
		return &Error{
			Kind:    KindUploadFailed,
			Message: neocities.ServerMessage(err),
			Cause:   err,
		}
	default:
		return &Error{Kind: KindUnknown, Message: fallback, Cause: err}
	}
}
