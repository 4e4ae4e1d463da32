// Package sf2 is a pure Go wildmidi.Engine that renders with a SoundFont
// through go-meltysynth. It stands in for libWildMidi where the C library
// or a GUS patch set is not installed: the config path handed to Init is an
// .sf2 file instead of a wildmidi.cfg.
//
// Only Standard MIDI Files (and RMID) can be opened. Like the native engine
// it is not safe for concurrent use.
package sf2

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	"github.com/james-see/gowildmidi/pkg/wildmidi"
	"github.com/sinshu/go-meltysynth/meltysynth"
)

const (
	// ReleaseTail is rendered after the last event so notes can ring out.
	ReleaseTail = 500 * time.Millisecond

	// MinSampleRate is the lowest rate meltysynth renders at. It is above
	// wildmidi.MinSampleRate, so Init checks it.
	MinSampleRate = 16000

	blockFrames = 1024
	// meltysynth's own default master volume, which corresponds to the
	// engine default of 100.
	unityGain = 0.5
)

// Version reported by the engine. It tracks the libWildMidi API level it
// emulates.
const (
	VersionMajor = 0
	VersionMinor = 4
	VersionMicro = 0
)

// Engine renders MIDI with a SoundFont. The zero value is not usable; call
// New.
type Engine struct {
	soundFont   *meltysynth.SoundFont
	path        string
	rate        int32
	mixer       wildmidi.MixerOption
	volume      uint8
	initialized bool
	conversions map[wildmidi.ConversionOption]uint16

	streams map[wildmidi.Handle]*stream
	next    wildmidi.Handle
}

type stream struct {
	data     []byte
	file     *meltysynth.MidiFile
	timeline wildmidi.Timeline
	synth    *meltysynth.Synthesizer
	seq      *meltysynth.MidiFileSequencer
	options  wildmidi.MixerOption
	pos      uint64
	total    uint64

	left, right []float32
}

var (
	_ wildmidi.Engine           = (*Engine)(nil)
	_ wildmidi.SampleRateRanger = (*Engine)(nil)
)

// New returns an uninitialized engine.
func New() *Engine {
	return &Engine{
		volume:      wildmidi.DefaultVolume,
		streams:     make(map[wildmidi.Handle]*stream),
		conversions: make(map[wildmidi.ConversionOption]uint16),
	}
}

func (e *Engine) Version() (int, int, int) {
	return VersionMajor, VersionMinor, VersionMicro
}

// Init loads the SoundFont at path.
func (e *Engine) Init(path string, rate uint16, options wildmidi.MixerOption) wildmidi.Status {
	if e.initialized {
		return wildmidi.Fail(wildmidi.CodeAlreadyInit, "Library Already Initialized")
	}
	if rate < MinSampleRate {
		return wildmidi.Fail(wildmidi.CodeInvalidArg,
			fmt.Sprintf("Invalid argument (sample rate %d below %d)", rate, MinSampleRate))
	}
	f, err := os.Open(path)
	if err != nil {
		return wildmidi.Fail(wildmidi.CodeOpen, fmt.Sprintf("Unable to open (%s): %v", path, err))
	}
	defer f.Close()

	sf, err := meltysynth.NewSoundFont(f)
	if err != nil {
		return wildmidi.Fail(wildmidi.CodeLoad, fmt.Sprintf("Unable to load (%s): %v", path, err))
	}

	e.soundFont = sf
	e.path = path
	e.rate = int32(rate)
	e.mixer = options
	e.volume = wildmidi.DefaultVolume
	e.initialized = true
	return wildmidi.Status{}
}

func (e *Engine) Shutdown() {
	for h := range e.streams {
		delete(e.streams, h)
	}
	e.soundFont = nil
	e.initialized = false
}

func (e *Engine) notInit() wildmidi.Status {
	return wildmidi.Fail(wildmidi.CodeNotInit, "Library not Initialized")
}

func (e *Engine) OpenBuffer(data []byte) (wildmidi.Handle, wildmidi.Status) {
	if !e.initialized {
		return 0, e.notInit()
	}
	body := wildmidi.SMFData(data)
	if body == nil {
		return 0, wildmidi.Fail(wildmidi.CodeInvalid,
			fmt.Sprintf("Invalid or Unsuported file format (%s)", wildmidi.DetectFormat(data)))
	}
	tl, err := wildmidi.ReadTimeline(body)
	if err != nil {
		return 0, wildmidi.Fail(wildmidi.CodeNotMIDI, "Not a midi file: "+err.Error())
	}
	file, err := readMidiFile(body)
	if err != nil {
		return 0, wildmidi.Fail(wildmidi.CodeCorrupt, "File corrupt: "+err.Error())
	}

	st := &stream{
		data:     append([]byte(nil), body...),
		file:     file,
		timeline: tl,
		options:  e.mixer & settableMixer,
		left:     make([]float32, blockFrames),
		right:    make([]float32, blockFrames),
	}
	st.total = durationToFrames(file.GetLength()+ReleaseTail, e.rate)
	if err := e.restart(st); err != nil {
		return 0, wildmidi.Fail(wildmidi.CodeMemory, "Unable to create synthesizer: "+err.Error())
	}

	e.next++
	e.streams[e.next] = st
	return e.next, wildmidi.Status{}
}

// readMidiFile parses body, turning a parser panic on corrupt input into an
// error.
func readMidiFile(body []byte) (file *meltysynth.MidiFile, err error) {
	defer func() {
		if r := recover(); r != nil {
			file, err = nil, fmt.Errorf("%v", r)
		}
	}()
	return meltysynth.NewMidiFile(bytes.NewReader(body))
}

// restart builds a fresh synthesizer for st and rewinds it.
func (e *Engine) restart(st *stream) error {
	settings := meltysynth.NewSynthesizerSettings(e.rate)
	settings.EnableReverbAndChorus = st.options&wildmidi.Reverb != 0
	synth, err := meltysynth.NewSynthesizer(e.soundFont, settings)
	if err != nil {
		return err
	}
	synth.MasterVolume = gain(e.volume)

	seq := meltysynth.NewMidiFileSequencer(synth)
	seq.Play(st.file, false)

	st.synth = synth
	st.seq = seq
	st.pos = 0
	return nil
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
	if _, status := e.stream(h); !status.OK() {
		return status
	}
	delete(e.streams, h)
	return wildmidi.Status{}
}

func (e *Engine) Info(h wildmidi.Handle) (wildmidi.NativeInfo, wildmidi.Status) {
	st, status := e.stream(h)
	if !status.OK() {
		return wildmidi.NativeInfo{}, status
	}
	return wildmidi.NativeInfo{
		Copyright:          st.timeline.Copyright,
		HasCopyright:       st.timeline.HasCopyright,
		CurrentSample:      st.pos,
		ApproxTotalSamples: st.total,
		TotalMidiTime:      uint64(st.file.GetLength().Milliseconds()),
		MixerOptions:       uint16(st.options),
	}, wildmidi.Status{}
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
	for frames > 0 {
		if st.pos >= st.total {
			if st.options&wildmidi.Loop == 0 || st.total == 0 {
				break
			}
			if err := e.restart(st); err != nil {
				return written, wildmidi.Fail(wildmidi.CodeMemory, err.Error())
			}
		}
		n := min(frames, st.total-st.pos, blockFrames)
		left, right := st.left[:n], st.right[:n]
		st.seq.Render(left, right)
		for i := range left {
			binary.LittleEndian.PutUint16(buf[written:], uint16(toPCM(left[i])))
			binary.LittleEndian.PutUint16(buf[written+2:], uint16(toPCM(right[i])))
			written += 4
		}
		st.pos += n
		frames -= n
	}
	return written, wildmidi.Status{}
}

// FastSeek renders up to sample and discards the audio. Seeking backwards
// restarts the sequencer first.
func (e *Engine) FastSeek(h wildmidi.Handle, sample uint64) (uint64, wildmidi.Status) {
	st, status := e.stream(h)
	if !status.OK() {
		return 0, status
	}
	if sample > st.total {
		sample = st.total
	}
	if sample < st.pos {
		if err := e.restart(st); err != nil {
			return 0, wildmidi.Fail(wildmidi.CodeMemory, err.Error())
		}
	}
	for st.pos < sample {
		n := min(sample-st.pos, blockFrames)
		st.seq.Render(st.left[:n], st.right[:n])
		st.pos += n
	}
	return st.pos, wildmidi.Status{}
}

const settableMixer = wildmidi.LogVolume | wildmidi.EnhancedResampling | wildmidi.Reverb |
	wildmidi.Loop | wildmidi.TextAsLyric

// SetOption records the stream flags. Toggling reverb rebuilds the
// synthesizer at the current position; the resampling and volume curve
// flags have no meltysynth counterpart and are only recorded.
func (e *Engine) SetOption(h wildmidi.Handle, options, setting wildmidi.MixerOption) wildmidi.Status {
	st, status := e.stream(h)
	if !status.OK() {
		return status
	}
	if options&settableMixer == 0 || options&^settableMixer != 0 {
		return wildmidi.Fail(wildmidi.CodeInvalidArg, "Invalid argument (invalid option)")
	}
	prev := st.options
	st.options = (st.options &^ options) | (setting & options)
	if (prev^st.options)&wildmidi.Reverb != 0 {
		pos := st.pos
		if err := e.restart(st); err != nil {
			return wildmidi.Fail(wildmidi.CodeMemory, err.Error())
		}
		if _, status := e.FastSeek(h, pos); !status.OK() {
			return status
		}
	}
	return wildmidi.Status{}
}

func (e *Engine) Lyric(h wildmidi.Handle) (string, bool) {
	st, status := e.stream(h)
	if !status.OK() {
		return "", false
	}
	return st.timeline.LyricAt(framesToDuration(st.pos, e.rate))
}

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

// MasterVolume applies to every open stream and to streams opened later.
func (e *Engine) MasterVolume(volume uint8) wildmidi.Status {
	if !e.initialized {
		return e.notInit()
	}
	if volume > wildmidi.MaxVolume {
		return wildmidi.Fail(wildmidi.CodeInvalidArg, "Invalid argument (master volume out of range)")
	}
	e.volume = volume
	for _, st := range e.streams {
		st.synth.MasterVolume = gain(volume)
	}
	return wildmidi.Status{}
}

// SetConversionOption records the value. XMI and MUS files are rejected at
// open, so the options never change output.
func (e *Engine) SetConversionOption(opt wildmidi.ConversionOption, value uint16) wildmidi.Status {
	switch opt {
	case wildmidi.XMIConversion, wildmidi.MUSFrequency:
		e.conversions[opt] = value
		return wildmidi.Status{}
	}
	return wildmidi.Fail(wildmidi.CodeInvalidArg, "Invalid argument (unknown conversion option)")
}

// SampleRateRange reports the rates meltysynth renders at within the range
// the wildmidi API allows.
func (e *Engine) SampleRateRange() (int, int) {
	return MinSampleRate, wildmidi.MaxSampleRate
}

// SoundFontPath is the file loaded by the last successful Init.
func (e *Engine) SoundFontPath() string {
	return e.path
}

func gain(volume uint8) float32 {
	return unityGain * float32(volume) / float32(wildmidi.DefaultVolume)
}

func toPCM(v float32) int16 {
	switch {
	case v > 1:
		v = 1
	case v < -1:
		v = -1
	}
	return int16(v * 32767)
}

func durationToFrames(d time.Duration, rate int32) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d) * uint64(rate) / uint64(time.Second)
}

func framesToDuration(frames uint64, rate int32) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(frames * uint64(time.Second) / uint64(rate))
}
