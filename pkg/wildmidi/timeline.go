package wildmidi

import (
	"errors"
	"math"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"
)

const defaultTempo = 500000 // microseconds per quarter note

// TimedText is a text meta event placed on the time axis.
type TimedText struct {
	At   time.Duration
	Text string
}

// Timeline is what a Standard MIDI File says about itself once its tempo map
// has been applied.
type Timeline struct {
	Length       time.Duration // time of the last event
	Copyright    string
	HasCopyright bool
	Lyrics       []TimedText
}

var errNotSMF = errors.New("not a standard midi file")

// SMFData returns the Standard MIDI File carried by data, unwrapping RMID.
// It returns nil for every other container.
func SMFData(data []byte) []byte {
	switch DetectFormat(data) {
	case ContainerSMF:
		return data
	case ContainerRMID:
		return rmidPayload(data)
	}
	return nil
}

type tempoChange struct {
	tick  uint64
	micro uint64
}

type tickText struct {
	tick uint64
	text string
}

// ReadTimeline parses an SMF (or RMID) and converts its event ticks to time
// using the merged tempo map of all tracks.
func ReadTimeline(data []byte) (Timeline, error) {
	body := SMFData(data)
	if body == nil {
		return Timeline{}, errNotSMF
	}
	s, err := readSMF(body)
	if err != nil {
		return Timeline{}, err
	}

	resolution := uint64(96)
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok && mt.Resolution() > 0 {
		resolution = uint64(mt.Resolution())
	}

	var tl Timeline
	var tempos []tempoChange
	var lyrics []tickText
	var lastTick uint64
	for _, track := range s.Tracks {
		var tick uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)
			var bpm float64
			var text string
			switch {
			case ev.Message.GetMetaTempo(&bpm):
				if bpm > 0 {
					micro := uint64(math.Round(60000000 / bpm))
					tempos = append(tempos, tempoChange{tick: tick, micro: micro})
				}
			case ev.Message.GetMetaCopyright(&text):
				if !tl.HasCopyright {
					tl.Copyright, tl.HasCopyright = text, true
				}
			case ev.Message.GetMetaLyric(&text):
				lyrics = append(lyrics, tickText{tick: tick, text: text})
			}
		}
		if tick > lastTick {
			lastTick = tick
		}
	}
	sort.SliceStable(tempos, func(i, j int) bool { return tempos[i].tick < tempos[j].tick })

	// (*smf.SMF).TimeAt panics on SMPTE divisions.
	at := func(target uint64) time.Duration {
		var micros, prevTick uint64
		tempo := uint64(defaultTempo)
		for _, tc := range tempos {
			if tc.tick >= target {
				break
			}
			micros += (tc.tick - prevTick) * tempo / resolution
			prevTick, tempo = tc.tick, tc.micro
		}
		micros += (target - prevTick) * tempo / resolution
		return time.Duration(micros) * time.Microsecond
	}

	tl.Length = at(lastTick)
	for _, l := range lyrics {
		tl.Lyrics = append(tl.Lyrics, TimedText{At: at(l.tick), Text: l.text})
	}
	sort.SliceStable(tl.Lyrics, func(i, j int) bool { return tl.Lyrics[i].At < tl.Lyrics[j].At })
	return tl, nil
}

// LyricAt returns the last lyric at or before d.
func (tl Timeline) LyricAt(d time.Duration) (string, bool) {
	var text string
	found := false
	for _, l := range tl.Lyrics {
		if l.At > d {
			break
		}
		text, found = l.Text, true
	}
	return text, found
}
