// Package secret stages secret bundles as short-lived files that can be
// bind-mounted into a container.
package secret

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	appErr "statebox/pkg/errors"
	"statebox/pkg/utils/logger"

	"go.uber.org/zap"
)

const filePattern = "statebox-secrets-*.json"

// Disposer releases staged secret material.
type Disposer interface {
	Dispose() error
}

// Stager materializes a bundle of secrets and hands ownership of the
// result to the caller.
type Stager interface {
	Stage(ctx context.Context, bundle map[string]string) (*Handle, error)
}

// Handle is a staged secret owned by the caller. Its disposal action runs
// at most once no matter how often Dispose is called.
type Handle struct {
	path    string
	dispose func() error
	once    sync.Once
	err     error
}

// NewHandle wraps a staged path and the action that removes it.
func NewHandle(path string, dispose func() error) *Handle {
	return &Handle{path: path, dispose: dispose}
}

// Path returns the host path of the staged material.
func (h *Handle) Path() string {
	if h == nil {
		return ""
	}
	return h.path
}

// Dispose removes the staged material. A nil handle is a no-op. Later
// calls return the outcome of the first one.
func (h *Handle) Dispose() error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		if h.dispose != nil {
			h.err = h.dispose()
		}
	})
	return h.err
}

// Config controls where secrets are staged.
type Config struct {
	// Dir overrides the staging directory. Empty selects a memory-backed
	// directory when the platform offers one.
	Dir string
}

// FileStager writes each bundle as a JSON object into an owner-only file.
type FileStager struct {
	dir string
}

// NewFileStager creates a stager for cfg.
func NewFileStager(cfg Config) *FileStager {
	dir := cfg.Dir
	if dir == "" {
		dir = defaultDir()
	}
	return &FileStager{dir: dir}
}

// Dir returns the staging directory.
func (s *FileStager) Dir() string {
	return s.dir
}

// Stage writes bundle to a new file and returns its handle.
func (s *FileStager) Stage(ctx context.Context, bundle map[string]string) (*Handle, error) {
	if len(bundle) == 0 {
		return nil, appErr.ValidationError("secrets", "bundle is empty")
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SecretStageFailed, "encode secrets failed")
	}

	f, err := os.CreateTemp(s.dir, filePattern)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SecretStageFailed, "create secrets file failed")
	}
	path := f.Name()
	fail := func(err error, msg string) (*Handle, error) {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, appErr.Wrapf(err, appErr.SecretStageFailed, "%s", msg)
	}
	if err := f.Chmod(0o600); err != nil {
		return fail(err, "restrict secrets file failed")
	}
	if _, err := f.Write(data); err != nil {
		return fail(err, "write secrets file failed")
	}
	if err := f.Sync(); err != nil {
		return fail(err, "sync secrets file failed")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, appErr.Wrapf(err, appErr.SecretStageFailed, "close secrets file failed")
	}

	logger.Debug(ctx, "secrets staged", zap.String("path", path), zap.Int("count", len(bundle)))
	return NewHandle(path, func() error {
		return removeFile(path)
	}), nil
}

func removeFile(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
