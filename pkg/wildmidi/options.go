package wildmidi

import (
	"fmt"
	"strings"
)

// MixerOption is a set of WM_MO_* mixer flags.
type MixerOption uint16

const (
	LogVolume          MixerOption = 0x0001
	EnhancedResampling MixerOption = 0x0002
	Reverb             MixerOption = 0x0004
	Loop               MixerOption = 0x0008
	SaveAsType0        MixerOption = 0x1000
	RoundTempo         MixerOption = 0x2000
	StripSilence       MixerOption = 0x4000
	TextAsLyric        MixerOption = 0x8000
)

const (
	// initMixerMask is what WildMidi_Init accepts.
	initMixerMask MixerOption = LogVolume | EnhancedResampling | Reverb | Loop |
		SaveAsType0 | RoundTempo | StripSilence | TextAsLyric
	// decoderMixerMask is what WildMidi_SetOption accepts on an open stream.
	decoderMixerMask MixerOption = LogVolume | EnhancedResampling | Reverb | Loop | TextAsLyric
)

var mixerNames = []struct {
	flag MixerOption
	name string
}{
	{LogVolume, "log-volume"},
	{EnhancedResampling, "enhanced-resampling"},
	{Reverb, "reverb"},
	{Loop, "loop"},
	{SaveAsType0, "save-as-type0"},
	{RoundTempo, "round-tempo"},
	{StripSilence, "strip-silence"},
	{TextAsLyric, "text-as-lyric"},
}

// Known drops bits that no engine flag names.
func (m MixerOption) Known() MixerOption {
	return m & initMixerMask
}

func (m MixerOption) String() string {
	var parts []string
	for _, n := range mixerNames {
		if m&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseMixerOption parses a flag name as printed by MixerOption.String.
func ParseMixerOption(name string) (MixerOption, error) {
	for _, n := range mixerNames {
		if n.name == name {
			return n.flag, nil
		}
	}
	return 0, fmt.Errorf("unknown mixer option %q", name)
}

// ConversionOption is a WM_CO_* conversion tag. Conversion options are
// global and apply to streams opened afterwards.
type ConversionOption uint16

const (
	// XMIConversion selects how XMI instrument maps are converted; the
	// value is one of the XMI* constants.
	XMIConversion ConversionOption = 0x0010
	// MUSFrequency is the tick frequency used for MUS files, in Hz.
	MUSFrequency ConversionOption = 0x0020
)

// Values for XMIConversion.
const (
	XMINoConversion = 0
	XMIMT32ToGM     = 1
	XMIMT32ToGS     = 2
	XMIGS127ToGS    = 3
)

// Volume limits for MasterVolume.
const (
	DefaultVolume = 100
	MaxVolume     = 127
)

// OptionKind selects which field of an Option is meaningful.
type OptionKind int

const (
	OptionMasterVolume OptionKind = iota
	OptionMixer
	OptionChannel
	OptionConversion
)

func (k OptionKind) String() string {
	switch k {
	case OptionMasterVolume:
		return "master-volume"
	case OptionMixer:
		return "mixer"
	case OptionChannel:
		return "channel"
	case OptionConversion:
		return "conversion"
	default:
		return fmt.Sprintf("option(%d)", int(k))
	}
}

// Option is a request to change an engine setting. Build one with
// MasterVolume, MixerFlag, ChannelEnable or Conversion.
type Option struct {
	Kind       OptionKind
	Value      int
	Mixer      MixerOption
	Conversion ConversionOption
	Channel    int
	Enabled    bool
}

// MasterVolume sets the library-wide output level, 0 to MaxVolume.
func MasterVolume(volume int) Option {
	return Option{Kind: OptionMasterVolume, Value: volume}
}

// MixerFlag turns one or more per-stream mixer flags on or off.
func MixerFlag(flags MixerOption, on bool) Option {
	return Option{Kind: OptionMixer, Mixer: flags, Enabled: on}
}

// ChannelEnable mutes or unmutes a MIDI channel.
func ChannelEnable(channel int, on bool) Option {
	return Option{Kind: OptionChannel, Channel: channel, Enabled: on}
}

// Conversion sets a global conversion option.
func Conversion(opt ConversionOption, value int) Option {
	return Option{Kind: OptionConversion, Conversion: opt, Value: value}
}

func (o Option) String() string {
	switch o.Kind {
	case OptionMasterVolume:
		return fmt.Sprintf("master-volume=%d", o.Value)
	case OptionMixer:
		return fmt.Sprintf("mixer %s=%t", o.Mixer, o.Enabled)
	case OptionChannel:
		return fmt.Sprintf("channel %d=%t", o.Channel, o.Enabled)
	case OptionConversion:
		return fmt.Sprintf("conversion 0x%04x=%d", uint16(o.Conversion), o.Value)
	default:
		return o.Kind.String()
	}
}

func validateVolume(v int) error {
	if v < 0 || v > MaxVolume {
		return errorf(opOption, ErrInvalidValue, "volume %d outside 0..%d", v, MaxVolume)
	}
	return nil
}

func validateConversion(opt ConversionOption, v int) error {
	switch opt {
	case XMIConversion:
		if v < XMINoConversion || v > XMIGS127ToGS {
			return errorf(opOption, ErrInvalidValue, "xmi conversion %d outside 0..%d", v, XMIGS127ToGS)
		}
	case MUSFrequency:
		if v <= 0 || v > 0xFFFF {
			return errorf(opOption, ErrInvalidValue, "mus frequency %d outside 1..65535", v)
		}
	default:
		return errorf(opOption, ErrUnsupportedOption, "conversion option 0x%04x", uint16(opt))
	}
	return nil
}

// validateMixer checks flags against the mask accepted at the given scope.
func validateMixer(flags, mask MixerOption) error {
	if flags == 0 {
		return newError(opOption, ErrInvalidValue, "no mixer flag given")
	}
	if extra := flags &^ mask; extra != 0 {
		return errorf(opOption, ErrUnsupportedOption, "mixer flags 0x%04x not settable here", uint16(extra))
	}
	return nil
}
