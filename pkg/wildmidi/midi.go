package wildmidi

import (
	"encoding/binary"
	"io"
	"runtime"
	"time"
)

// Midi is one stream opened inside the engine. Close it when done; a Midi
// that is garbage collected while open is released by its Library on the
// next library call.
type Midi struct {
	lib     *Library
	handle  Handle
	header  Header
	closed  bool
	scratch []byte
}

var _ io.Reader = (*Midi)(nil)

func (m *Midi) check(op string) error {
	if m == nil || m.closed {
		return newError(op, ErrClosed, "")
	}
	if m.lib.shutdown.Load() {
		return newError(op, ErrUseAfterShutdown, "")
	}
	return nil
}

// Header returns the header read when the stream was opened.
func (m *Midi) Header() Header {
	return m.header
}

// Info returns a snapshot of the stream.
func (m *Midi) Info() (Info, error) {
	if err := m.check(opInfo); err != nil {
		return Info{}, err
	}
	ni, st := m.lib.engine.Info(m.handle)
	if err := translate(opInfo, st); err != nil {
		return Info{}, err
	}
	return newInfo(ni, m.header, m.lib.cfg.SampleRate), nil
}

// Read renders PCM into p as interleaved stereo signed 16-bit little-endian
// samples. Only whole frames are written, so len(p) is rounded down to a
// multiple of four. It returns io.EOF once the stream is exhausted.
func (m *Midi) Read(p []byte) (int, error) {
	if err := m.check(opRender); err != nil {
		return 0, err
	}
	size := len(p) &^ 3
	if size == 0 {
		return 0, errorf(opRender, ErrInvalidValue, "buffer of %d bytes holds no frame", len(p))
	}
	n, st := m.lib.engine.Output(m.handle, p[:size])
	if err := translate(opRender, st); err != nil {
		return 0, err
	}
	if n < 0 || n > size {
		return 0, errorf(opRender, ErrEngine, "engine reported %d bytes for a %d byte buffer", n, size)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Render fills samples with interleaved stereo 16-bit PCM and returns the
// number of samples written, 0 at the end of the stream.
func (m *Midi) Render(samples []int16) (int, error) {
	if err := m.check(opRender); err != nil {
		return 0, err
	}
	size := (len(samples) / 2) * 4
	if size == 0 {
		return 0, errorf(opRender, ErrInvalidValue, "buffer of %d samples holds no frame", len(samples))
	}
	if cap(m.scratch) < size {
		m.scratch = make([]byte, size)
	}
	buf := m.scratch[:size]
	n, err := m.Read(buf)
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	for i := 0; i < n/2; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
	}
	return n / 2, nil
}

// Seek moves playback to the given stereo frame. Positions past the
// reported total fail with ErrOutOfRange.
func (m *Midi) Seek(sample uint64) error {
	info, err := m.Info()
	if err != nil {
		return err
	}
	if sample > info.TotalSamples {
		return errorf(opSeek, ErrOutOfRange, "sample %d past end %d", sample, info.TotalSamples)
	}
	if _, st := m.lib.engine.FastSeek(m.handle, sample); !st.OK() {
		return translate(opSeek, st)
	}
	return nil
}

// SeekTime moves playback to the given time offset.
func (m *Midi) SeekTime(d time.Duration) error {
	if d < 0 {
		return errorf(opSeek, ErrOutOfRange, "negative position %s", d)
	}
	return m.Seek(durationToSamples(d, m.lib.cfg.SampleRate))
}

// SetOption changes a per-stream mixer flag.
func (m *Midi) SetOption(opt Option) error {
	if err := m.check(opOption); err != nil {
		return err
	}
	if opt.Kind != OptionMixer {
		return errorf(opOption, ErrUnsupportedOption, "%s is not a stream option", opt.Kind)
	}
	if err := validateMixer(opt.Mixer, decoderMixerMask); err != nil {
		return err
	}
	var setting MixerOption
	if opt.Enabled {
		setting = opt.Mixer
	}
	return translate(opOption, m.lib.engine.SetOption(m.handle, opt.Mixer, setting))
}

// Lyric returns the lyric or text event at the current position, if any.
func (m *Midi) Lyric() (string, bool, error) {
	if err := m.check(opLyric); err != nil {
		return "", false, err
	}
	text, ok := m.lib.engine.Lyric(m.handle)
	return text, ok, nil
}

// ExportSMF returns the stream converted to a type 0 Standard MIDI File.
func (m *Midi) ExportSMF() ([]byte, error) {
	if err := m.check(opExport); err != nil {
		return nil, err
	}
	data, st := m.lib.engine.MidiOutput(m.handle)
	if err := translate(opExport, st); err != nil {
		return nil, err
	}
	return data, nil
}

// Close releases the stream. Later calls fail with ErrClosed; closing twice
// is a no-op. After the library is shut down Close does nothing, the stream
// was already released.
func (m *Midi) Close() {
	if m == nil || m.closed {
		return
	}
	m.closed = true
	runtime.SetFinalizer(m, nil)
	if m.lib.shutdown.Load() {
		return
	}
	m.lib.forget(m.handle)
	if st := m.lib.engine.Close(m.handle); !st.OK() {
		m.lib.log.Debug("midi close failed", "handle", m.handle, "code", st.Code.String())
	}
}

func (m *Midi) finalize() {
	if m.closed || m.lib.shutdown.Load() {
		return
	}
	m.lib.orphan(m.handle)
}
