package enginetest

import (
	"bytes"
	"fmt"
	"math/rand"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Song describes a fixture file.
type Song struct {
	Tracks    int     // note tracks, each one plays Beats quarter notes
	Beats     int     // quarter notes per track
	BPM       float64 // 0 means 120
	Copyright string
	Lyrics    []string // one per beat on the first track
}

// Bytes renders the song as a format 1 SMF with a
// resolution of 480 ticks per quarter note.
func (s Song) Bytes() []byte {
	const ticks = 480
	bpm := s.BPM
	if bpm <= 0 {
		bpm = 120
	}
	tracks := s.Tracks
	if tracks <= 0 {
		tracks = 1
	}

	file := smf.New()
	file.TimeFormat = smf.MetricTicks(ticks)
	for t := 0; t < tracks; t++ {
		var track smf.Track
		if t == 0 {
			track.Add(0, smf.MetaTempo(bpm))
			if s.Copyright != "" {
				track.Add(0, smf.MetaCopyright(s.Copyright))
			}
		}
		ch := uint8(t % 16)
		key := uint8(60 + t)
		for b := 0; b < s.Beats; b++ {
			if t == 0 && b < len(s.Lyrics) {
				track.Add(0, smf.MetaLyric(s.Lyrics[b]))
			}
			track.Add(0, midi.NoteOn(ch, key, 100))
			track.Add(ticks, midi.NoteOff(ch, key))
		}
		track.Close(0)
		if err := file.Add(track); err != nil {
			panic(fmt.Sprintf("enginetest: add track: %v", err))
		}
	}

	var buf bytes.Buffer
	if _, err := file.WriteTo(&buf); err != nil {
		panic(fmt.Sprintf("enginetest: write smf: %v", err))
	}
	return buf.Bytes()
}

// Garbage is a buffer no MIDI parser accepts.
func Garbage() []byte {
	return []byte("this is not a midi file at all")
}

// Mutate returns a copy of data with one to four random bytes replaced. The
// MThd magic is left alone so the result still reaches the SMF parser.
func Mutate(r *rand.Rand, data []byte) []byte {
	out := append([]byte(nil), data...)
	for n := 1 + r.Intn(4); n > 0 && len(out) > 4; n-- {
		out[4+r.Intn(len(out)-4)] = byte(r.Intn(256))
	}
	return out
}
