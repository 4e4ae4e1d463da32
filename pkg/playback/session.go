// Package playback glues a wildmidi.Library to its consumers. A Session owns
// the lock every engine call goes through, so the CLI, the TUI and the HTTP
// service can share one Library across goroutines.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/james-see/gowildmidi/pkg/wildmidi"
)

// ErrTooLong is returned by Render when the stream is longer than the
// configured limit.
var ErrTooLong = errors.New("playback: stream exceeds render limit")

// Session serializes every call on a Library and on the streams it opens.
type Session struct {
	mu  sync.Mutex
	lib *wildmidi.Library
	log *slog.Logger
}

// NewSession wraps lib. The Session does not take ownership; shut the
// Library down after the last stream is closed.
func NewSession(lib *wildmidi.Library, log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{lib: lib, log: log}
}

// Do runs fn with exclusive access to the Library.
func (s *Session) Do(fn func(lib *wildmidi.Library) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.lib)
}

// Version returns the engine version.
func (s *Session) Version() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lib.Version()
}

// Config returns the Library configuration.
func (s *Session) Config() wildmidi.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lib.Config()
}

// SetVolume changes the engine master volume.
func (s *Session) SetVolume(volume int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lib.SetGlobalOption(wildmidi.MasterVolume(volume))
}

// Inspect opens data just long enough to take an info snapshot.
func (s *Session) Inspect(data []byte) (wildmidi.Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.lib.OpenBuffer(data)
	if err != nil {
		return wildmidi.Info{}, err
	}
	defer m.Close()
	return m.Info()
}

// Export converts data to a type 0 Standard MIDI File through the engine.
func (s *Session) Export(data []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.lib.OpenBuffer(data)
	if err != nil {
		return nil, err
	}
	defer m.Close()
	return m.ExportSMF()
}

// Stream is an open Midi whose calls go through the Session lock. It is an
// io.Reader of interleaved stereo signed 16-bit little-endian PCM.
type Stream struct {
	s *Session
	m *wildmidi.Midi
}

// OpenStream opens data and applies per-stream options.
func (s *Session) OpenStream(data []byte, opts ...wildmidi.Option) (*Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.lib.OpenBuffer(data)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := m.SetOption(opt); err != nil {
			m.Close()
			return nil, fmt.Errorf("apply %s: %w", opt, err)
		}
	}
	return &Stream{s: s, m: m}, nil
}

func (st *Stream) Read(p []byte) (int, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.m.Read(p)
}

// Info returns a snapshot of the stream.
func (st *Stream) Info() (wildmidi.Info, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.m.Info()
}

// Seek moves to the given time offset.
func (st *Stream) Seek(d time.Duration) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.m.SeekTime(d)
}

// SetOption changes a per-stream mixer flag.
func (st *Stream) SetOption(opt wildmidi.Option) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	return st.m.SetOption(opt)
}

// Lyric returns the lyric at the current position.
func (st *Stream) Lyric() (string, bool) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	text, ok, err := st.m.Lyric()
	if err != nil {
		return "", false
	}
	return text, ok
}

// Close releases the stream.
func (st *Stream) Close() {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	st.m.Close()
}

// RenderOptions controls Render.
type RenderOptions struct {
	// Options are applied to the stream after it is opened.
	Options []wildmidi.Option
	// MaxDuration rejects longer streams when non-zero.
	MaxDuration time.Duration
	// BufferFrames is the size of each engine call. Zero means 4096.
	BufferFrames int
}

// Rendered is a whole stream rendered to memory.
type Rendered struct {
	Info wildmidi.Info // snapshot taken before rendering
	PCM  []byte
}

// Frames is the number of stereo frames in PCM.
func (r *Rendered) Frames() uint64 {
	return uint64(len(r.PCM) / 4)
}

// Render renders data from start to end of stream. Looping is switched off
// for the stream so the output is finite. ctx is checked between buffers.
func (s *Session) Render(ctx context.Context, data []byte, opts RenderOptions) (*Rendered, error) {
	streamOpts := make([]wildmidi.Option, 0, len(opts.Options)+1)
	streamOpts = append(streamOpts, opts.Options...)
	streamOpts = append(streamOpts, wildmidi.MixerFlag(wildmidi.Loop, false))
	st, err := s.OpenStream(data, streamOpts...)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	info, err := st.Info()
	if err != nil {
		return nil, err
	}
	if opts.MaxDuration > 0 && info.Duration() > opts.MaxDuration {
		return nil, fmt.Errorf("%w: %s > %s", ErrTooLong, info.Duration(), opts.MaxDuration)
	}

	frames := opts.BufferFrames
	if frames <= 0 {
		frames = 4096
	}
	out := make([]byte, 0, info.TotalSamples*4)
	buf := make([]byte, frames*4)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := st.Read(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, buf[:n]...)
	}
	s.log.Debug("rendered stream", "frames", len(out)/4, "duration", info.Duration())
	return &Rendered{Info: info, PCM: out}, nil
}
