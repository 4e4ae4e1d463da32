package enginetest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/james-see/gowildmidi/pkg/logger"
	"github.com/james-see/gowildmidi/pkg/wildmidi"
)

// WriteConfig writes a throwaway patch configuration file.
func WriteConfig(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wildmidi.cfg")
	if err := os.WriteFile(path, []byte("dir /usr/share/midi/freepats\nsource freepats.cfg\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// NewLibrary initializes a Library on a fresh Engine and shuts it down when
// the test ends.
func NewLibrary(t testing.TB, mixer wildmidi.MixerOption) (*wildmidi.Library, *Engine) {
	t.Helper()
	eng := New()
	cfg := wildmidi.DefaultConfig()
	cfg.ConfigPath = WriteConfig(t)
	cfg.Mixer = mixer
	lib, err := wildmidi.Init(cfg, wildmidi.WithEngine(eng), wildmidi.WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("wildmidi.Init() error = %v", err)
	}
	t.Cleanup(lib.Shutdown)
	return lib, eng
}
