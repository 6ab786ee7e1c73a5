package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// EnvVar takes precedence over the local key file when both are set.
const EnvVar = "NEOCITIES_API_KEY"

type Source string

const (
	SourceEnvironment Source = "environment"
	SourceFile        Source = "file"
)

// ErrMissing means neither the environment variable nor the key file
// produced a non-empty key.
var ErrMissing = errors.New("api key not found")

// ReadError means the key file exists but could not be read.
type ReadError struct {
	Path  string
	Cause error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read key file %s: %v", e.Path, e.Cause)
}

func (e *ReadError) Unwrap() error {
	return e.Cause
}

// Resolve returns the API key and where it came from. The key is never
// logged by callers; only the Source is.
func Resolve(keyFile string) (string, Source, error) {
	if key := os.Getenv(EnvVar); key != "" {
		return key, SourceEnvironment, nil
	}

	if _, err := os.Stat(keyFile); err == nil {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return "", SourceFile, &ReadError{Path: keyFile, Cause: err}
		}
		if key := strings.TrimSpace(string(data)); key != "" {
			return key, SourceFile, nil
		}
	}

	return "", "", ErrMissing
}
