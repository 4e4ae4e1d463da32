package enginetest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// SoundFont sample layout.
const (
	SoundFontRate   = 22050
	soundFontFrames = 4410 // 200ms
	squarePeriod    = 50   // 441 Hz at SoundFontRate
	sampleGuard     = 46   // zero frames required after every sample
)

// SoundFont generator numbers.
const (
	genInstrument = 41
	genSampleID   = 53
)

// SoundFont builds a minimal SoundFont 2 bank: one preset at bank 0,
// program 0, whose single instrument plays a square wave over every key.
func SoundFont() []byte {
	wave := make([]int16, soundFontFrames+sampleGuard)
	for i := 0; i < soundFontFrames; i++ {
		wave[i] = 8000
		if (i/(squarePeriod/2))%2 == 1 {
			wave[i] = -8000
		}
	}

	info := list("INFO",
		chunk("ifil", pack(uint16(2), uint16(1))),
		chunk("INAM", pack(fixed("enginetest", 12))),
	)
	sdta := list("sdta", chunk("smpl", pack(wave)))

	terminal := pack(uint16(0), uint16(0))
	pdta := list("pdta",
		chunk("phdr",
			pack(fixed("square", 20), uint16(0), uint16(0), uint16(0), uint32(0), uint32(0), uint32(0)),
			pack(fixed("EOP", 20), uint16(0), uint16(0), uint16(1), uint32(0), uint32(0), uint32(0)),
		),
		chunk("pbag", pack(uint16(0), uint16(0)), pack(uint16(1), uint16(0))),
		chunk("pmod", make([]byte, 10)),
		chunk("pgen", pack(uint16(genInstrument), uint16(0)), terminal),
		chunk("inst",
			pack(fixed("square", 20), uint16(0)),
			pack(fixed("EOI", 20), uint16(1)),
		),
		chunk("ibag", pack(uint16(0), uint16(0)), pack(uint16(1), uint16(0))),
		chunk("imod", make([]byte, 10)),
		chunk("igen", pack(uint16(genSampleID), uint16(0)), terminal),
		chunk("shdr",
			pack(fixed("square", 20), uint32(0), uint32(soundFontFrames), uint32(0), uint32(soundFontFrames),
				uint32(SoundFontRate), uint8(60), int8(0), uint16(0), uint16(1)),
			pack(fixed("EOS", 20), make([]byte, 26)),
		),
	)
	return chunk("RIFF", []byte("sfbk"), info, sdta, pdta)
}

// WriteSoundFont writes SoundFont to a temporary .sf2 file.
func WriteSoundFont(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "square.sf2")
	if err := os.WriteFile(path, SoundFont(), 0o644); err != nil {
		t.Fatalf("write soundfont: %v", err)
	}
	return path
}

func chunk(id string, parts ...[]byte) []byte {
	var body []byte
	for _, p := range parts {
		body = append(body, p...)
	}
	out := make([]byte, 8, 8+len(body))
	copy(out, id)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(body)))
	return append(out, body...)
}

func list(typ string, chunks ...[]byte) []byte {
	return chunk("LIST", append([][]byte{[]byte(typ)}, chunks...)...)
}

func pack(fields ...any) []byte {
	var buf bytes.Buffer
	for _, f := range fields {
		if err := binary.Write(&buf, binary.LittleEndian, f); err != nil {
			panic(fmt.Sprintf("enginetest: pack %T: %v", f, err))
		}
	}
	return buf.Bytes()
}

// fixed returns s NUL-padded to n bytes.
func fixed(s string, n int) []byte {
	b := make([]byte, n)
	copy(b, s)
	return b
}
