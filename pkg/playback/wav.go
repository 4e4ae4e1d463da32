package playback

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	wavChannels      = 2
	wavBitsPerSample = 16
	wavHeaderSize    = 44
)

type wavHeader struct {
	RIFF          [4]byte
	Size          uint32 // file size - 8
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16 // 1 = PCM
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

func newWAVHeader(rate int, dataBytes int) wavHeader {
	blockAlign := wavChannels * wavBitsPerSample / 8
	return wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		Size:          uint32(wavHeaderSize - 8 + dataBytes),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      wavChannels,
		SampleRate:    uint32(rate),
		ByteRate:      uint32(rate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: wavBitsPerSample,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(dataBytes),
	}
}

// WriteWAV writes interleaved stereo 16-bit PCM as a canonical WAV file.
func WriteWAV(w io.Writer, rate int, pcm []byte) error {
	if len(pcm)%4 != 0 {
		return fmt.Errorf("pcm length %d is not whole stereo frames", len(pcm))
	}
	if uint64(len(pcm)) > 1<<32-1-wavHeaderSize {
		return fmt.Errorf("pcm of %d bytes does not fit a WAV file", len(pcm))
	}
	if err := binary.Write(w, binary.LittleEndian, newWAVHeader(rate, len(pcm))); err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("failed to write wav data: %w", err)
	}
	return nil
}

// ReadWAVHeader parses the header written by WriteWAV and returns the sample
// rate and the size of the data chunk.
func ReadWAVHeader(r io.Reader) (rate int, dataBytes int, err error) {
	var h wavHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return 0, 0, fmt.Errorf("failed to read wav header: %w", err)
	}
	if string(h.RIFF[:]) != "RIFF" || string(h.WAVE[:]) != "WAVE" || string(h.Data[:]) != "data" {
		return 0, 0, fmt.Errorf("not a canonical wav file")
	}
	if h.AudioFormat != 1 || h.Channels != wavChannels || h.BitsPerSample != wavBitsPerSample {
		return 0, 0, fmt.Errorf("unsupported wav layout: format %d, %d channels, %d bits",
			h.AudioFormat, h.Channels, h.BitsPerSample)
	}
	return int(h.SampleRate), int(h.DataSize), nil
}
