//go:build !cgo || !wildmidi

package wildmidi

const stubMessage = "built without libWildMidi (rebuild with cgo and -tags wildmidi)"

// stubEngine stands in for libWildMidi in builds without the wildmidi tag.
// Every call fails with CodeUnsupported.
type stubEngine struct{}

var native = &stubEngine{}

// Native returns the libWildMidi engine. In this build it is a stub whose
// Init always fails.
func Native() Engine {
	return native
}

func unsupported() Status {
	return Fail(CodeUnsupported, stubMessage)
}

func (*stubEngine) Version() (int, int, int) { return 0, 0, 0 }

func (*stubEngine) Init(string, uint16, MixerOption) Status { return unsupported() }

func (*stubEngine) Shutdown() {}

func (*stubEngine) OpenBuffer([]byte) (Handle, Status) { return 0, unsupported() }

func (*stubEngine) Close(Handle) Status { return unsupported() }

func (*stubEngine) Info(Handle) (NativeInfo, Status) { return NativeInfo{}, unsupported() }

func (*stubEngine) Output(Handle, []byte) (int, Status) { return 0, unsupported() }

func (*stubEngine) FastSeek(Handle, uint64) (uint64, Status) { return 0, unsupported() }

func (*stubEngine) SetOption(Handle, MixerOption, MixerOption) Status { return unsupported() }

func (*stubEngine) Lyric(Handle) (string, bool) { return "", false }

func (*stubEngine) MidiOutput(Handle) ([]byte, Status) { return nil, unsupported() }

func (*stubEngine) MasterVolume(uint8) Status { return unsupported() }

func (*stubEngine) SetConversionOption(ConversionOption, uint16) Status { return unsupported() }
