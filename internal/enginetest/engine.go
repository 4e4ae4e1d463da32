// Package enginetest provides an in-memory wildmidi.Engine for tests.
//
// The engine reads Standard MIDI Files with wildmidi.ReadTimeline and
// renders a deterministic, position-dependent waveform, so render, seek and
// lifecycle behaviour can be checked without libWildMidi or a patch set
// installed.
package enginetest

import "github.com/james-see/gowildmidi/pkg/wildmidi"

// DefaultTail is the release tail in milliseconds added after the last
// event, the way the real engine lets notes ring out.
const DefaultTail = 100

// Engine is a fake synthesizer. It is not safe for concurrent use.
type Engine struct {
	// InitStatus, when set, is returned by Init instead of succeeding.
	InitStatus wildmidi.Status
	// TailMillis overrides DefaultTail when non-zero.
	TailMillis uint64

	initialized bool
	configPath  string
	rate        uint64
	mixer       wildmidi.MixerOption
	volume      uint8
	conversions map[wildmidi.ConversionOption]uint16

	streams map[wildmidi.Handle]*stream
	next    wildmidi.Handle

	// Opened and Closed count successful OpenBuffer and Close calls.
	Opened int
	Closed int
}

type lyric struct {
	sample uint64
	text   string
}

type stream struct {
	data      []byte
	total     uint64
	midiMS    uint64
	pos       uint64
	options   wildmidi.MixerOption
	copyright string
	hasCopy   bool
	lyrics    []lyric
}

// New returns an uninitialized engine.
func New() *Engine {
	return &Engine{
		streams:     make(map[wildmidi.Handle]*stream),
		conversions: make(map[wildmidi.ConversionOption]uint16),
		volume:      wildmidi.DefaultVolume,
	}
}

var _ wildmidi.Engine = (*Engine)(nil)

func (e *Engine) Version() (int, int, int) { return 0, 4, 6 }

func (e *Engine) Init(configPath string, rate uint16, options wildmidi.MixerOption) wildmidi.Status {
	if !e.InitStatus.OK() {
		return e.InitStatus
	}
	if e.initialized {
		return wildmidi.Fail(wildmidi.CodeAlreadyInit, "Library Already Initialized")
	}
	e.initialized = true
	e.configPath = configPath
	e.rate = uint64(rate)
	e.mixer = options
	return wildmidi.Status{}
}

func (e *Engine) Shutdown() {
	e.initialized = false
	for h := range e.streams {
		delete(e.streams, h)
	}
	e.volume = wildmidi.DefaultVolume
}

// Initialized reports whether Init succeeded and Shutdown has not run.
func (e *Engine) Initialized() bool { return e.initialized }

// ConfigPath is the path passed to the last successful Init.
func (e *Engine) ConfigPath() string { return e.configPath }

// Volume is the current master volume.
func (e *Engine) Volume() uint8 { return e.volume }

// ConversionValue returns the value of a conversion option, if set.
func (e *Engine) ConversionValue(opt wildmidi.ConversionOption) (uint16, bool) {
	v, ok := e.conversions[opt]
	return v, ok
}

// Live is the number of streams currently open.
func (e *Engine) Live() int { return len(e.streams) }

func (e *Engine) notInit() wildmidi.Status {
	return wildmidi.Fail(wildmidi.CodeNotInit, "Library not Initialized")
}

func (e *Engine) OpenBuffer(data []byte) (wildmidi.Handle, wildmidi.Status) {
	if !e.initialized {
		return 0, e.notInit()
	}
	tl, err := wildmidi.ReadTimeline(data)
	if err != nil {
		return 0, wildmidi.Fail(wildmidi.CodeNotMIDI, "Not a midi file: "+err.Error())
	}
	st := e.analyze(tl)
	st.data = append([]byte(nil), data...)
	st.options = e.mixer

	e.next++
	e.streams[e.next] = st
	e.Opened++
	return e.next, wildmidi.Status{}
}

// analyze places the stream on the sample axis: the last event plus the
// release tail, and every lyric at its start frame.
func (e *Engine) analyze(tl wildmidi.Timeline) *stream {
	st := &stream{
		midiMS:    uint64(tl.Length.Milliseconds()),
		copyright: tl.Copyright,
		hasCopy:   tl.HasCopyright,
	}
	tail := e.TailMillis
	if tail == 0 {
		tail = DefaultTail
	}
	st.total = (st.midiMS + tail) * e.rate / 1000
	for _, l := range tl.Lyrics {
		st.lyrics = append(st.lyrics, lyric{sample: uint64(l.At.Microseconds()) * e.rate / 1000000, text: l.Text})
	}
	return st
}

func (e *Engine) stream(h wildmidi.Handle) (*stream, wildmidi.Status) {
	if !e.initialized {
		return nil, e.notInit()
	}
	st, ok := e.streams[h]
	if !ok {
		return nil, wildmidi.Fail(wildmidi.CodeInvalidArg, "Invalid argument (NULL handle)")
	}
	return st, wildmidi.Status{}
}

func (e *Engine) Close(h wildmidi.Handle) wildmidi.Status {
	if _, st := e.stream(h); !st.OK() {
		return st
	}
	delete(e.streams, h)
	e.Closed++
	return wildmidi.Status{}
}

func (e *Engine) Info(h wildmidi.Handle) (wildmidi.NativeInfo, wildmidi.Status) {
	st, status := e.stream(h)
	if !status.OK() {
		return wildmidi.NativeInfo{}, status
	}
	return wildmidi.NativeInfo{
		Copyright:          st.copyright,
		HasCopyright:       st.hasCopy,
		CurrentSample:      st.pos,
		ApproxTotalSamples: st.total,
		TotalMidiTime:      st.midiMS,
		MixerOptions:       uint16(st.options),
	}, wildmidi.Status{}
}

// Sample is the value the engine renders for a channel of a frame.
func Sample(frame uint64, channel int) int16 {
	return int16(int64((frame*31+uint64(channel)*7)%2000) - 1000)
}

func (e *Engine) Output(h wildmidi.Handle, buf []byte) (int, wildmidi.Status) {
	st, status := e.stream(h)
	if !status.OK() {
		return 0, status
	}
	if len(buf)%4 != 0 {
		return 0, wildmidi.Fail(wildmidi.CodeInvalidArg, "Invalid argument (size not a multiple of 4)")
	}
	frames := uint64(len(buf) / 4)
	written := 0
	for i := uint64(0); i < frames; i++ {
		if st.pos >= st.total {
			if st.options&wildmidi.Loop == 0 || st.total == 0 {
				break
			}
			st.pos = 0
		}
		scale := int32(e.volume)
		for c := 0; c < 2; c++ {
			v := int16(int32(Sample(st.pos, c)) * scale / wildmidi.MaxVolume)
			buf[written] = byte(uint16(v))
			buf[written+1] = byte(uint16(v) >> 8)
			written += 2
		}
		st.pos++
	}
	return written, wildmidi.Status{}
}

func (e *Engine) FastSeek(h wildmidi.Handle, sample uint64) (uint64, wildmidi.Status) {
	st, status := e.stream(h)
	if !status.OK() {
		return 0, status
	}
	if sample > st.total {
		sample = st.total
	}
	st.pos = sample
	return sample, wildmidi.Status{}
}

const settableMixer = wildmidi.LogVolume | wildmidi.EnhancedResampling | wildmidi.Reverb |
	wildmidi.Loop | wildmidi.TextAsLyric

func (e *Engine) SetOption(h wildmidi.Handle, options, setting wildmidi.MixerOption) wildmidi.Status {
	st, status := e.stream(h)
	if !status.OK() {
		return status
	}
	if options&settableMixer == 0 || options&^settableMixer != 0 {
		return wildmidi.Fail(wildmidi.CodeInvalidArg, "Invalid argument (invalid option)")
	}
	st.options = (st.options &^ options) | (setting & options)
	return wildmidi.Status{}
}

func (e *Engine) Lyric(h wildmidi.Handle) (string, bool) {
	st, status := e.stream(h)
	if !status.OK() {
		return "", false
	}
	var text string
	found := false
	for _, l := range st.lyrics {
		if l.sample > st.pos {
			break
		}
		text, found = l.text, true
	}
	return text, found
}

// MidiOutput merges all tracks into a single type 0 track.
func (e *Engine) MidiOutput(h wildmidi.Handle) ([]byte, wildmidi.Status) {
	st, status := e.stream(h)
	if !status.OK() {
		return nil, status
	}
	out, err := wildmidi.MergeTracks(st.data)
	if err != nil {
		return nil, wildmidi.Fail(wildmidi.CodeConvert, "Unable to convert: "+err.Error())
	}
	return out, wildmidi.Status{}
}

func (e *Engine) MasterVolume(volume uint8) wildmidi.Status {
	if !e.initialized {
		return e.notInit()
	}
	if volume > wildmidi.MaxVolume {
		return wildmidi.Fail(wildmidi.CodeInvalidArg, "Invalid argument (master volume out of range)")
	}
	e.volume = volume
	return wildmidi.Status{}
}

func (e *Engine) SetConversionOption(opt wildmidi.ConversionOption, value uint16) wildmidi.Status {
	switch opt {
	case wildmidi.XMIConversion, wildmidi.MUSFrequency:
		e.conversions[opt] = value
		return wildmidi.Status{}
	default:
		return wildmidi.Fail(wildmidi.CodeInvalidArg, "Invalid argument (unknown conversion option)")
	}
}
