// Package wildmidi provides bindings to the WildMidi software synthesizer.
//
// A Library is the process-wide initialization of an Engine; it must be
// created with Init before any stream is opened and it must outlive every
// Midi it opens. Shutting it down invalidates all of them.
//
// The engine keeps global state (instrument tables, master volume) shared by
// every open stream and it is not safe for concurrent use. This package does
// not lock around engine calls: callers that use a Library from more than one
// goroutine must serialize every call on it and on its streams themselves.
//
// The libWildMidi binding returned by Native needs cgo and the wildmidi build
// tag; other builds get an engine whose every call fails with
// CodeUnsupported. Any Engine can be selected with WithEngine.
package wildmidi

import (
	"fmt"
	"os"
)

// Sample rate limits enforced by the engine.
const (
	MinSampleRate     = 11025
	MaxSampleRate     = 65000
	DefaultSampleRate = 44100
)

// ConfigEnv names the environment variable consulted by LocateConfig before
// the default paths.
const ConfigEnv = "WILDMIDI_CFG"

// DefaultConfigPaths are searched in order by LocateConfig.
var DefaultConfigPaths = []string{
	"/etc/wildmidi/wildmidi.cfg",
	"/etc/wildmidi.cfg",
}

// Config holds the parameters passed to the engine at init time.
type Config struct {
	// ConfigPath is the patch configuration file. Empty means LocateConfig.
	ConfigPath string
	SampleRate int
	Mixer      MixerOption
}

// DefaultConfig returns a Config using the default sample rate and no
// mixer flags.
func DefaultConfig() Config {
	return Config{SampleRate: DefaultSampleRate}
}

func (c Config) validate() error {
	if c.SampleRate < MinSampleRate || c.SampleRate > MaxSampleRate {
		return errorf(opInit, ErrInvalidValue, "sample rate %d outside %d..%d",
			c.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if extra := c.Mixer &^ initMixerMask; extra != 0 {
		return errorf(opInit, ErrInvalidValue, "mixer flags 0x%04x not accepted at init", uint16(extra))
	}
	return nil
}

// resolvePath returns the config file to hand to the engine.
func (c Config) resolvePath() (string, error) {
	if c.ConfigPath == "" {
		return LocateConfig()
	}
	// Any stat failure means the engine could not read it either.
	if _, err := os.Stat(c.ConfigPath); err != nil {
		return "", wrapError(opInit, ErrConfigNotFound, err)
	}
	return c.ConfigPath, nil
}

// LocateConfig finds a patch configuration file: $WILDMIDI_CFG if set, then
// the first of DefaultConfigPaths that exists.
func LocateConfig() (string, error) {
	if p := os.Getenv(ConfigEnv); p != "" {
		if _, err := os.Stat(p); err != nil {
			return "", wrapError(opInit, ErrConfigNotFound, err)
		}
		return p, nil
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", errorf(opInit, ErrConfigNotFound, "none of %v exist", DefaultConfigPaths)
}

// FormatVersion renders an engine version triple.
func FormatVersion(major, minor, micro int) string {
	return fmt.Sprintf("%d.%d.%d", major, minor, micro)
}
