package wildmidi

// Handle identifies one stream opened inside an Engine. Zero is never a
// valid handle.
type Handle uint64

// NativeInfo is the engine's per-stream info block, copied out of native
// memory by the engine before it is returned.
type NativeInfo struct {
	Copyright          string
	HasCopyright       bool
	CurrentSample      uint64
	ApproxTotalSamples uint64
	TotalMidiTime      uint64 // milliseconds
	MixerOptions       uint16
}

// Engine is the boundary to the synthesizer. It mirrors the libWildMidi C
// API one call per method and reports failures as a Status; the Library and
// Midi types translate those into errors. Implementations are not required
// to be safe for concurrent use.
type Engine interface {
	Version() (major, minor, micro int)
	Init(configPath string, rate uint16, options MixerOption) Status
	Shutdown()

	OpenBuffer(data []byte) (Handle, Status)
	Close(h Handle) Status
	Info(h Handle) (NativeInfo, Status)
	// Output fills buf with interleaved stereo signed 16-bit little-endian
	// PCM and returns the number of bytes written. len(buf) is a multiple
	// of four.
	Output(h Handle, buf []byte) (int, Status)
	// FastSeek moves the stream to sample and returns the position the
	// engine actually settled on.
	FastSeek(h Handle, sample uint64) (uint64, Status)
	SetOption(h Handle, options, setting MixerOption) Status
	Lyric(h Handle) (string, bool)
	MidiOutput(h Handle) ([]byte, Status)

	MasterVolume(volume uint8) Status
	SetConversionOption(opt ConversionOption, value uint16) Status
}

// SampleRateRanger is implemented by engines that render at a narrower range
// of sample rates than MinSampleRate..MaxSampleRate. Init checks it before
// the engine is called.
type SampleRateRanger interface {
	SampleRateRange() (min, max int)
}
