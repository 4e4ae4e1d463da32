package wildmidi

import (
	"log/slog"
	"os"
	"reflect"
	"runtime"
	"sync"
	"sync/atomic"
)

// Active libraries, one per engine. The mutex only guards the map; it is
// never held across an engine call.
var (
	registryMu sync.Mutex
	registry   = map[Engine]*Library{}
)

// Library is an initialized engine. See the package documentation for the
// concurrency contract.
type Library struct {
	engine Engine
	cfg    Config
	log    *slog.Logger

	live     map[Handle]struct{}
	shutdown atomic.Bool

	// Handles of streams that were garbage collected without Close. They
	// are released on the next call that goes through the library.
	orphanMu sync.Mutex
	orphans  []Handle
}

// LibraryOption configures Init.
type LibraryOption func(*Library)

// WithEngine selects the engine. The default is the native libWildMidi
// binding returned by Native.
func WithEngine(e Engine) LibraryOption {
	return func(l *Library) {
		l.engine = e
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(log *slog.Logger) LibraryOption {
	return func(l *Library) {
		l.log = log
	}
}

// Init initializes the engine with cfg. Only one Library per engine can be
// active; a second Init before Shutdown fails with ErrAlreadyInitialized.
// Engines are told apart by identity, so they must be comparable; use a
// pointer receiver.
func Init(cfg Config, opts ...LibraryOption) (*Library, error) {
	l := &Library{cfg: cfg, live: make(map[Handle]struct{})}
	for _, opt := range opts {
		opt(l)
	}
	if l.engine == nil {
		l.engine = Native()
	}
	if l.log == nil {
		l.log = slog.Default()
	}

	// Registry keys must be hashable; pointer engines always are.
	if !reflect.TypeOf(l.engine).Comparable() {
		return nil, errorf(opInit, ErrInvalidValue, "engine %T is not comparable, pass a pointer", l.engine)
	}
	registryMu.Lock()
	if _, ok := registry[l.engine]; ok {
		registryMu.Unlock()
		return nil, newError(opInit, ErrAlreadyInitialized, "")
	}
	registry[l.engine] = l
	registryMu.Unlock()

	if err := l.prepare(); err != nil {
		l.release()
		return nil, err
	}
	path := l.cfg.ConfigPath

	if err := translate(opInit, l.engine.Init(path, uint16(cfg.SampleRate), cfg.Mixer)); err != nil {
		l.release()
		return nil, err
	}

	l.log.Debug("wildmidi initialized",
		"config", path,
		"rate", cfg.SampleRate,
		"mixer", cfg.Mixer.String(),
		"version", l.Version())
	return l, nil
}

// prepare checks the configuration against the engine and resolves the
// config path.
func (l *Library) prepare() error {
	if err := l.cfg.validate(); err != nil {
		return err
	}
	if r, ok := l.engine.(SampleRateRanger); ok {
		lo, hi := r.SampleRateRange()
		if l.cfg.SampleRate < lo || l.cfg.SampleRate > hi {
			return errorf(opInit, ErrInvalidValue, "sample rate %d outside %d..%d for this engine",
				l.cfg.SampleRate, lo, hi)
		}
	}
	path, err := l.cfg.resolvePath()
	if err != nil {
		return err
	}
	l.cfg.ConfigPath = path
	return nil
}

func (l *Library) release() {
	registryMu.Lock()
	if registry[l.engine] == l {
		delete(registry, l.engine)
	}
	registryMu.Unlock()
}

// Shutdown closes every stream still open and shuts the engine down. Any
// later call on those streams fails with ErrUseAfterShutdown. Calling it
// again is a no-op.
func (l *Library) Shutdown() {
	if l == nil || l.shutdown.Load() {
		return
	}
	l.reap()
	for h := range l.live {
		if st := l.engine.Close(h); !st.OK() {
			l.log.Debug("close on shutdown failed", "handle", h, "code", st.Code.String())
		}
	}
	l.live = nil
	l.engine.Shutdown()
	l.shutdown.Store(true)
	l.release()
	l.log.Debug("wildmidi shut down")
}

// Config returns the configuration the library was initialized with, with
// ConfigPath resolved.
func (l *Library) Config() Config {
	return l.cfg
}

// Version returns the engine version.
func (l *Library) Version() string {
	return FormatVersion(l.engine.Version())
}

// Engine returns the engine the library drives.
func (l *Library) Engine() Engine {
	return l.engine
}

// Live reports the number of streams opened and not yet closed.
func (l *Library) Live() int {
	if l == nil || l.shutdown.Load() {
		return 0
	}
	l.reap()
	return len(l.live)
}

func (l *Library) ready(op string) error {
	if l == nil || l.shutdown.Load() {
		return newError(op, ErrNotInitialized, "")
	}
	return nil
}

// SetGlobalOption changes a setting that applies to every stream. Mixer
// flags are per stream and must go through Midi.SetOption.
func (l *Library) SetGlobalOption(opt Option) error {
	if err := l.ready(opOption); err != nil {
		return err
	}
	switch opt.Kind {
	case OptionMasterVolume:
		if err := validateVolume(opt.Value); err != nil {
			return err
		}
		if err := translate(opOption, l.engine.MasterVolume(uint8(opt.Value))); err != nil {
			return err
		}
	case OptionConversion:
		if err := validateConversion(opt.Conversion, opt.Value); err != nil {
			return err
		}
		if err := translate(opOption, l.engine.SetConversionOption(opt.Conversion, uint16(opt.Value))); err != nil {
			return err
		}
	case OptionMixer:
		return newError(opOption, ErrUnsupportedOption, "mixer flags are set per stream")
	default:
		return errorf(opOption, ErrUnsupportedOption, "%s", opt.Kind)
	}
	l.log.Debug("global option set", "option", opt.String())
	return nil
}

// Open reads a MIDI file and opens it.
func (l *Library) Open(path string) (*Midi, error) {
	if err := l.ready(opOpen); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrapError(opOpen, ErrIO, err)
	}
	return l.OpenBuffer(data)
}

// OpenBuffer opens a stream from an in-memory file. Any container the
// engine understands is accepted; data is not retained.
func (l *Library) OpenBuffer(data []byte) (*Midi, error) {
	if err := l.ready(opOpen); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, newError(opOpen, ErrInvalidFormat, "empty buffer")
	}
	l.reap()

	header := ProbeHeader(data)
	h, st := l.engine.OpenBuffer(data)
	if err := translate(opOpen, st); err != nil {
		if h != 0 {
			l.engine.Close(h)
		}
		return nil, err
	}
	if h == 0 {
		return nil, newError(opOpen, ErrEngine, "engine returned no handle")
	}
	l.live[h] = struct{}{}

	m := &Midi{lib: l, handle: h, header: header}
	runtime.SetFinalizer(m, (*Midi).finalize)
	l.log.Debug("midi opened", "handle", h, "container", string(m.header.Container), "tracks", m.header.Tracks)
	return m, nil
}

func (l *Library) orphan(h Handle) {
	l.orphanMu.Lock()
	l.orphans = append(l.orphans, h)
	l.orphanMu.Unlock()
}

// reap releases streams collected without Close.
func (l *Library) reap() {
	l.orphanMu.Lock()
	orphans := l.orphans
	l.orphans = nil
	l.orphanMu.Unlock()

	for _, h := range orphans {
		if _, ok := l.live[h]; !ok {
			continue
		}
		delete(l.live, h)
		l.engine.Close(h)
		l.log.Debug("released unclosed midi", "handle", h)
	}
}

// forget drops h from the live set.
func (l *Library) forget(h Handle) {
	delete(l.live, h)
}
