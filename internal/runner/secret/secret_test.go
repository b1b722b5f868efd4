package secret

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	appErr "statebox/pkg/errors"
)

func TestFileStagerWritesOwnerOnlyJSON(t *testing.T) {
	dir := t.TempDir()
	stager := NewFileStager(Config{Dir: dir})

	h, err := stager.Stage(context.Background(), map[string]string{"luggage_password": "12345", "api_key": "k"})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if filepath.Dir(h.Path()) != dir {
		t.Fatalf("staged outside dir: %s", h.Path())
	}
	if !strings.HasPrefix(filepath.Base(h.Path()), "statebox-secrets-") {
		t.Fatalf("unexpected file name: %s", h.Path())
	}

	info, err := os.Stat(h.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %o", info.Mode().Perm())
	}

	data, err := os.ReadFile(h.Path())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["luggage_password"] != "12345" || got["api_key"] != "k" {
		t.Fatalf("unexpected content: %v", got)
	}

	if err := h.Dispose(); err != nil {
		t.Fatalf("dispose: %v", err)
	}
	if _, err := os.Stat(h.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file removed, got %v", err)
	}
}

func TestFileStagerRejectsEmptyBundle(t *testing.T) {
	stager := NewFileStager(Config{Dir: t.TempDir()})
	h, err := stager.Stage(context.Background(), nil)
	if h != nil || !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v %v", h, err)
	}
}

func TestFileStagerMissingDir(t *testing.T) {
	stager := NewFileStager(Config{Dir: filepath.Join(t.TempDir(), "missing")})
	_, err := stager.Stage(context.Background(), map[string]string{"a": "b"})
	if !appErr.Is(err, appErr.SecretStageFailed) {
		t.Fatalf("expected SecretStageFailed, got %v", err)
	}
}

func TestHandleDisposeRunsOnce(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	h := NewHandle("/tmp/x", func() error {
		calls++
		return boom
	})

	if err := h.Dispose(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if err := h.Dispose(); !errors.Is(err, boom) {
		t.Fatalf("expected cached boom, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("dispose ran %d times", calls)
	}
}

func TestNilHandle(t *testing.T) {
	var h *Handle
	if h.Path() != "" {
		t.Fatal("nil handle has no path")
	}
	if err := h.Dispose(); err != nil {
		t.Fatalf("nil dispose: %v", err)
	}
}

func TestDisposeToleratesAlreadyRemovedFile(t *testing.T) {
	stager := NewFileStager(Config{Dir: t.TempDir()})
	h, err := stager.Stage(context.Background(), map[string]string{"a": "b"})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := os.Remove(h.Path()); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := h.Dispose(); err != nil {
		t.Fatalf("dispose after external removal: %v", err)
	}
}

func TestDefaultDirIsUsable(t *testing.T) {
	stager := NewFileStager(Config{})
	if stager.Dir() == "" {
		t.Fatal("default dir is empty")
	}
	info, err := os.Stat(stager.Dir())
	if err != nil || !info.IsDir() {
		t.Fatalf("default dir not a directory: %v", err)
	}
}
