package wildmidi

import (
	"bytes"
	"sort"

	"gitlab.com/gomidi/midi/v2/smf"
)

type absEvent struct {
	tick uint64
	msg  smf.Message
}

// MergeTracks rewrites a Standard MIDI File as type 0: every track is merged
// into one, ordered by absolute tick. Events on the same tick keep track
// order. The per-track end-of-track markers are replaced by a single one.
func MergeTracks(data []byte) ([]byte, error) {
	s, err := readSMF(data)
	if err != nil {
		return nil, err
	}

	var events []absEvent
	for _, track := range s.Tracks {
		var tick uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)
			if msg := []byte(ev.Message); len(msg) >= 2 && msg[0] == 0xFF && msg[1] == 0x2F {
				continue
			}
			events = append(events, absEvent{tick: tick, msg: ev.Message})
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].tick < events[j].tick })

	out := smf.New()
	out.TimeFormat = s.TimeFormat
	var track smf.Track
	var last uint64
	for _, ev := range events {
		track.Add(uint32(ev.tick-last), ev.msg)
		last = ev.tick
	}
	track.Close(0)
	if err := out.Add(track); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := out.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
