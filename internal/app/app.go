// Package app turns command line settings into an initialized Library and
// the Session the front ends share.
package app

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/james-see/gowildmidi/pkg/playback"
	"github.com/james-see/gowildmidi/pkg/sf2"
	"github.com/james-see/gowildmidi/pkg/wildmidi"
)

// Engine names accepted by Settings.Engine.
const (
	EngineNative = "native"
	EngineSF2    = "sf2"
)

// Settings collects the options shared by every command.
type Settings struct {
	ConfigPath string
	SampleRate int
	Volume     int
	Engine     string
	LogLevel   string

	Reverb             bool
	EnhancedResampling bool
	LogVolume          bool
	Loop               bool
}

// DefaultSettings mirrors the engine defaults.
func DefaultSettings() Settings {
	return Settings{
		SampleRate: wildmidi.DefaultSampleRate,
		Volume:     wildmidi.DefaultVolume,
		Engine:     EngineNative,
		LogLevel:   "info",
	}
}

// Mixer returns the init-time mixer flags selected by the settings.
func (s Settings) Mixer() wildmidi.MixerOption {
	var m wildmidi.MixerOption
	if s.Reverb {
		m |= wildmidi.Reverb
	}
	if s.EnhancedResampling {
		m |= wildmidi.EnhancedResampling
	}
	if s.LogVolume {
		m |= wildmidi.LogVolume
	}
	if s.Loop {
		m |= wildmidi.Loop
	}
	return m
}

// Config returns the Library configuration.
func (s Settings) Config() wildmidi.Config {
	return wildmidi.Config{
		ConfigPath: s.ConfigPath,
		SampleRate: s.SampleRate,
		Mixer:      s.Mixer(),
	}
}

// NewEngine returns the engine registered under name.
func NewEngine(name string) (wildmidi.Engine, error) {
	switch strings.ToLower(name) {
	case EngineNative, "":
		return wildmidi.Native(), nil
	case EngineSF2, "soundfont":
		return sf2.New(), nil
	}
	return nil, fmt.Errorf("unknown engine %q (want %s or %s)", name, EngineNative, EngineSF2)
}

// Open initializes the selected engine and applies the volume. The caller
// shuts the Library down.
func (s Settings) Open(log *slog.Logger) (*wildmidi.Library, *playback.Session, error) {
	engine, err := NewEngine(s.Engine)
	if err != nil {
		return nil, nil, err
	}
	return s.OpenEngine(engine, log)
}

// OpenEngine is Open with an explicit engine.
func (s Settings) OpenEngine(engine wildmidi.Engine, log *slog.Logger) (*wildmidi.Library, *playback.Session, error) {
	lib, err := wildmidi.Init(s.Config(), wildmidi.WithEngine(engine), wildmidi.WithLogger(log))
	if err != nil {
		return nil, nil, err
	}
	if s.Volume != wildmidi.DefaultVolume {
		if err := lib.SetGlobalOption(wildmidi.MasterVolume(s.Volume)); err != nil {
			lib.Shutdown()
			return nil, nil, err
		}
	}
	log.Debug("library ready", "engine", s.Engine, "version", lib.Version(), "config", lib.Config().ConfigPath)
	return lib, playback.NewSession(lib, log), nil
}
