package wildmidi_test

import (
	"bytes"
	"errors"
	"io"
	"runtime"
	"testing"
	"time"

	"github.com/james-see/gowildmidi/internal/enginetest"
	"github.com/james-see/gowildmidi/pkg/wildmidi"
)

func openSong(t *testing.T, lib *wildmidi.Library, song enginetest.Song) *wildmidi.Midi {
	t.Helper()
	m, err := lib.OpenBuffer(song.Bytes())
	if err != nil {
		t.Fatalf("OpenBuffer() error = %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestInfoSnapshot(t *testing.T) {
	lib, _ := newLibrary(t)
	m := openSong(t, lib, enginetest.Song{Tracks: 2, Beats: 4, BPM: 120, Copyright: "(c) 2018 test"})

	info, err := m.Info()
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	// 4 beats at 120 BPM.
	if info.MidiTime != 2*time.Second {
		t.Errorf("MidiTime = %v, want 2s", info.MidiTime)
	}
	wantTotal := uint64((2000 + enginetest.DefaultTail) * wildmidi.DefaultSampleRate / 1000)
	if info.TotalSamples != wantTotal {
		t.Errorf("TotalSamples = %d, want %d", info.TotalSamples, wantTotal)
	}
	if info.CurrentSample != 0 || info.Position() != 0 {
		t.Errorf("fresh stream at sample %d", info.CurrentSample)
	}
	if !info.HasCopyright || info.Copyright != "(c) 2018 test" {
		t.Errorf("Copyright = %q, %t", info.Copyright, info.HasCopyright)
	}
	if info.Tracks() != 2 {
		t.Errorf("Tracks() = %d, want 2", info.Tracks())
	}
	if info.Header.Container != wildmidi.ContainerSMF || info.Header.Format != 1 || info.Header.Division != 480 {
		t.Errorf("Header = %+v", info.Header)
	}
	if d := info.Duration(); d != 2100*time.Millisecond {
		t.Errorf("Duration() = %v, want 2.1s", d)
	}
}

func TestRenderToEnd(t *testing.T) {
	lib, _ := newLibrary(t)
	m := openSong(t, lib, enginetest.Song{Beats: 2})

	start, err := m.Info()
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]int16, 4096)
	var frames uint64
	prevRemaining := start.Remaining()
	for {
		n, err := m.Render(buf)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if n == 0 {
			break
		}
		if n%2 != 0 {
			t.Fatalf("Render() wrote %d samples, not whole frames", n)
		}
		frames += uint64(n / 2)

		info, err := m.Info()
		if err != nil {
			t.Fatal(err)
		}
		if info.Remaining() >= prevRemaining {
			t.Fatalf("remaining did not decrease: %d -> %d", prevRemaining, info.Remaining())
		}
		prevRemaining = info.Remaining()
	}

	if frames != start.TotalSamples {
		t.Errorf("rendered %d frames, info reported %d", frames, start.TotalSamples)
	}
	if n, err := m.Render(buf); n != 0 || err != nil {
		t.Errorf("Render() past end = %d, %v; want 0, nil", n, err)
	}
	if _, err := m.Read(make([]byte, 64)); err != io.EOF {
		t.Errorf("Read() past end error = %v, want io.EOF", err)
	}
}

func TestRenderContent(t *testing.T) {
	lib, _ := newLibrary(t)
	if err := lib.SetGlobalOption(wildmidi.MasterVolume(wildmidi.MaxVolume)); err != nil {
		t.Fatal(err)
	}
	m := openSong(t, lib, enginetest.Song{Beats: 1})

	buf := make([]int16, 8)
	n, err := m.Render(buf)
	if err != nil || n != 8 {
		t.Fatalf("Render() = %d, %v", n, err)
	}
	for i := 0; i < n; i++ {
		want := enginetest.Sample(uint64(i/2), i%2)
		if buf[i] != want {
			t.Errorf("sample %d = %d, want %d", i, buf[i], want)
		}
	}
}

func TestRenderShortBuffer(t *testing.T) {
	lib, _ := newLibrary(t)
	m := openSong(t, lib, enginetest.Song{Beats: 1})

	if _, err := m.Render(make([]int16, 1)); !errors.Is(err, wildmidi.ErrInvalidValue) {
		t.Errorf("Render(1 sample) error = %v, want ErrInvalidValue", err)
	}
	if _, err := m.Read(make([]byte, 3)); !errors.Is(err, wildmidi.ErrInvalidValue) {
		t.Errorf("Read(3 bytes) error = %v, want ErrInvalidValue", err)
	}
	// Odd lengths are truncated to whole frames.
	n, err := m.Read(make([]byte, 10))
	if err != nil || n != 8 {
		t.Errorf("Read(10 bytes) = %d, %v; want 8, nil", n, err)
	}
}

func TestSeek(t *testing.T) {
	lib, _ := newLibrary(t)
	m := openSong(t, lib, enginetest.Song{Beats: 4})

	first := make([]byte, 4096)
	if _, err := io.ReadFull(m, first); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if _, err := io.ReadFull(m, make([]byte, 4096)); err != nil {
		t.Fatal(err)
	}

	if err := m.Seek(0); err != nil {
		t.Fatalf("Seek(0) error = %v", err)
	}
	again := make([]byte, 4096)
	if _, err := io.ReadFull(m, again); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, again) {
		t.Error("render after Seek(0) differs from the first render")
	}

	info, err := m.Info()
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Seek(info.TotalSamples + 1); !errors.Is(err, wildmidi.ErrOutOfRange) {
		t.Errorf("Seek(past end) error = %v, want ErrOutOfRange", err)
	}
	if err := m.Seek(info.TotalSamples); err != nil {
		t.Errorf("Seek(end) error = %v", err)
	}
	if n, err := m.Render(make([]int16, 16)); n != 0 || err != nil {
		t.Errorf("Render() at end = %d, %v", n, err)
	}

	if err := m.SeekTime(time.Second); err != nil {
		t.Fatalf("SeekTime(1s) error = %v", err)
	}
	info, _ = m.Info()
	if info.CurrentSample != wildmidi.DefaultSampleRate {
		t.Errorf("CurrentSample after SeekTime(1s) = %d", info.CurrentSample)
	}
	if info.Position() != time.Second {
		t.Errorf("Position() = %v, want 1s", info.Position())
	}
	if err := m.SeekTime(time.Hour); !errors.Is(err, wildmidi.ErrOutOfRange) {
		t.Errorf("SeekTime(1h) error = %v, want ErrOutOfRange", err)
	}
	if err := m.SeekTime(-time.Second); !errors.Is(err, wildmidi.ErrOutOfRange) {
		t.Errorf("SeekTime(-1s) error = %v, want ErrOutOfRange", err)
	}
}

func TestCloseThenUse(t *testing.T) {
	lib, eng := newLibrary(t)
	m, err := lib.OpenBuffer(enginetest.Song{Beats: 1}.Bytes())
	if err != nil {
		t.Fatal(err)
	}

	m.Close()
	m.Close()
	if eng.Closed != 1 {
		t.Errorf("engine Close calls = %d, want 1", eng.Closed)
	}
	if lib.Live() != 0 {
		t.Errorf("Live() = %d after Close", lib.Live())
	}

	checks := map[string]func() error{
		"Info":   func() error { _, err := m.Info(); return err },
		"Render": func() error { _, err := m.Render(make([]int16, 4)); return err },
		"Read":   func() error { _, err := m.Read(make([]byte, 4)); return err },
		"Seek":   func() error { return m.Seek(0) },
		"Option": func() error { return m.SetOption(wildmidi.MixerFlag(wildmidi.Reverb, true)) },
		"Lyric":  func() error { _, _, err := m.Lyric(); return err },
		"Export": func() error { _, err := m.ExportSMF(); return err },
	}
	for name, call := range checks {
		if err := call(); !errors.Is(err, wildmidi.ErrClosed) {
			t.Errorf("%s after Close error = %v, want ErrClosed", name, err)
		}
	}
}

func TestStreamOptions(t *testing.T) {
	lib, _ := newLibrary(t)
	m := openSong(t, lib, enginetest.Song{Beats: 1})

	if err := m.SetOption(wildmidi.MixerFlag(wildmidi.Reverb|wildmidi.Loop, true)); err != nil {
		t.Fatalf("SetOption(reverb|loop) error = %v", err)
	}
	info, _ := m.Info()
	if info.Mixer != wildmidi.Reverb|wildmidi.Loop {
		t.Errorf("Mixer = %s, want reverb|loop", info.Mixer)
	}

	// With loop set the stream wraps instead of ending.
	total := info.TotalSamples
	buf := make([]int16, 2*int(total)+64)
	if n, err := m.Render(buf); err != nil || n != len(buf) {
		t.Errorf("looping Render() = %d, %v; want %d", n, err, len(buf))
	}

	if err := m.SetOption(wildmidi.MixerFlag(wildmidi.Loop, false)); err != nil {
		t.Fatal(err)
	}
	info, _ = m.Info()
	if info.Mixer != wildmidi.Reverb {
		t.Errorf("Mixer = %s, want reverb", info.Mixer)
	}

	tests := []struct {
		name string
		opt  wildmidi.Option
		want error
	}{
		{"init only flag", wildmidi.MixerFlag(wildmidi.StripSilence, true), wildmidi.ErrUnsupportedOption},
		{"no flag", wildmidi.MixerFlag(0, true), wildmidi.ErrInvalidValue},
		{"volume", wildmidi.MasterVolume(10), wildmidi.ErrUnsupportedOption},
		{"channel", wildmidi.ChannelEnable(1, true), wildmidi.ErrUnsupportedOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.SetOption(tt.opt); !errors.Is(err, tt.want) {
				t.Errorf("SetOption(%s) error = %v, want %v", tt.opt, err, tt.want)
			}
		})
	}
}

func TestLyric(t *testing.T) {
	lib, _ := newLibrary(t)
	m := openSong(t, lib, enginetest.Song{Beats: 3, Lyrics: []string{"la", "di", "da"}})

	text, ok, err := m.Lyric()
	if err != nil || !ok || text != "la" {
		t.Fatalf("Lyric() = %q, %t, %v", text, ok, err)
	}
	// Second beat starts at 0.5s.
	if err := m.SeekTime(500 * time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if text, _, _ := m.Lyric(); text != "di" {
		t.Errorf("Lyric() at 0.5s = %q, want %q", text, "di")
	}

	plain := openSong(t, lib, enginetest.Song{Beats: 1})
	if _, ok, _ := plain.Lyric(); ok {
		t.Error("Lyric() reported text for a file without lyrics")
	}
}

func TestExportSMF(t *testing.T) {
	lib, _ := newLibrary(t)
	m := openSong(t, lib, enginetest.Song{Tracks: 3, Beats: 2})

	out, err := m.ExportSMF()
	if err != nil {
		t.Fatalf("ExportSMF() error = %v", err)
	}
	h := wildmidi.ProbeHeader(out)
	if h.Container != wildmidi.ContainerSMF || h.Tracks != 1 {
		t.Errorf("exported header = %+v, want one SMF track", h)
	}

	again, err := lib.OpenBuffer(out)
	if err != nil {
		t.Fatalf("OpenBuffer(exported) error = %v", err)
	}
	defer again.Close()
	a, _ := m.Info()
	b, _ := again.Info()
	if a.TotalSamples != b.TotalSamples {
		t.Errorf("exported length %d, original %d", b.TotalSamples, a.TotalSamples)
	}
}

func TestUnclosedMidiIsReleased(t *testing.T) {
	lib, eng := newLibrary(t)

	func() {
		for i := 0; i < 10; i++ {
			if _, err := lib.OpenBuffer(enginetest.Song{Beats: 1}.Bytes()); err != nil {
				t.Fatal(err)
			}
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for lib.Live() > 0 && time.Now().Before(deadline) {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	if lib.Live() != 0 || eng.Live() != 0 {
		t.Errorf("unclosed streams not released: library %d, engine %d", lib.Live(), eng.Live())
	}
}
