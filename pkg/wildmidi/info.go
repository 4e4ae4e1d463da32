package wildmidi

import "time"

// Info is a snapshot of a stream's state. It holds no reference into engine
// memory and does not change after it is returned.
type Info struct {
	Copyright    string
	HasCopyright bool
	// CurrentSample is the number of stereo frames rendered so far.
	CurrentSample uint64
	// TotalSamples is the engine's estimate of the stream length in stereo
	// frames, including the release tail of the last notes.
	TotalSamples uint64
	// MidiTime is the time spanned by MIDI events alone.
	MidiTime   time.Duration
	Mixer      MixerOption
	SampleRate int
	Header     Header
}

func newInfo(ni NativeInfo, h Header, rate int) Info {
	return Info{
		Copyright:     ni.Copyright,
		HasCopyright:  ni.HasCopyright,
		CurrentSample: ni.CurrentSample,
		TotalSamples:  ni.ApproxTotalSamples,
		MidiTime:      time.Duration(ni.TotalMidiTime) * time.Millisecond,
		Mixer:         MixerOption(ni.MixerOptions).Known(),
		SampleRate:    rate,
		Header:        h,
	}
}

// Tracks is the track count of the underlying SMF, 0 when unknown.
func (i Info) Tracks() int {
	return i.Header.Tracks
}

// Remaining is the number of stereo frames still to be rendered.
func (i Info) Remaining() uint64 {
	if i.CurrentSample >= i.TotalSamples {
		return 0
	}
	return i.TotalSamples - i.CurrentSample
}

// Position is the playback position.
func (i Info) Position() time.Duration {
	return samplesToDuration(i.CurrentSample, i.SampleRate)
}

// Duration is the total length of the rendered output.
func (i Info) Duration() time.Duration {
	return samplesToDuration(i.TotalSamples, i.SampleRate)
}

func samplesToDuration(samples uint64, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	secs := samples / uint64(rate)
	rem := samples % uint64(rate)
	return time.Duration(secs)*time.Second + time.Duration(rem)*time.Second/time.Duration(rate)
}

func durationToSamples(d time.Duration, rate int) uint64 {
	if d <= 0 || rate <= 0 {
		return 0
	}
	secs := uint64(d / time.Second)
	rem := uint64(d % time.Second)
	return secs*uint64(rate) + rem*uint64(rate)/uint64(time.Second)
}
