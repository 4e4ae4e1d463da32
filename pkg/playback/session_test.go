package playback

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/james-see/gowildmidi/internal/enginetest"
	"github.com/james-see/gowildmidi/pkg/logger"
	"github.com/james-see/gowildmidi/pkg/wildmidi"
)

func newSession(t *testing.T, mixer wildmidi.MixerOption) (*Session, *enginetest.Engine) {
	t.Helper()
	lib, eng := enginetest.NewLibrary(t, mixer)
	return NewSession(lib, logger.Discard()), eng
}

func TestInspect(t *testing.T) {
	s, eng := newSession(t, 0)

	info, err := s.Inspect(enginetest.Song{Tracks: 2, Beats: 4, Copyright: "me"}.Bytes())
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if info.Tracks() != 2 || info.Copyright != "me" || info.MidiTime != 2*time.Second {
		t.Errorf("Inspect() = %+v", info)
	}
	if eng.Live() != 0 {
		t.Errorf("Inspect() left %d streams open", eng.Live())
	}

	if _, err := s.Inspect(enginetest.Garbage()); !errors.Is(err, wildmidi.ErrInvalidFormat) {
		t.Errorf("Inspect(garbage) = %v, want ErrInvalidFormat", err)
	}
}

func TestExport(t *testing.T) {
	s, eng := newSession(t, 0)
	out, err := s.Export(enginetest.Song{Tracks: 3, Beats: 1}.Bytes())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if h := wildmidi.ProbeHeader(out); h.Container != wildmidi.ContainerSMF || h.Tracks != 1 {
		t.Errorf("exported header = %+v, want one SMF track", h)
	}
	if eng.Live() != 0 {
		t.Errorf("Export() left %d streams open", eng.Live())
	}
}

func TestRender(t *testing.T) {
	// Loop at init must not make Render run forever.
	s, _ := newSession(t, wildmidi.Loop)

	r, err := s.Render(context.Background(), enginetest.Song{Beats: 2}.Bytes(), RenderOptions{BufferFrames: 1000})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if r.Frames() != r.Info.TotalSamples {
		t.Fatalf("Frames() = %d, want %d", r.Frames(), r.Info.TotalSamples)
	}
	for _, frame := range []uint64{0, 1, 999, 1000, r.Frames() - 1} {
		for ch := 0; ch < 2; ch++ {
			off := frame*4 + uint64(ch)*2
			got := int16(binary.LittleEndian.Uint16(r.PCM[off:]))
			want := int16(int32(enginetest.Sample(frame, ch)) * wildmidi.DefaultVolume / wildmidi.MaxVolume)
			if got != want {
				t.Fatalf("frame %d ch %d = %d, want %d", frame, ch, got, want)
			}
		}
	}
}

func TestRenderLimits(t *testing.T) {
	s, eng := newSession(t, 0)
	song := enginetest.Song{Beats: 8}.Bytes()

	_, err := s.Render(context.Background(), song, RenderOptions{MaxDuration: time.Second})
	if !errors.Is(err, ErrTooLong) {
		t.Errorf("Render() over limit = %v, want ErrTooLong", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Render(ctx, song, RenderOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Render(cancelled) = %v, want context.Canceled", err)
	}

	_, err = s.Render(context.Background(), song, RenderOptions{Options: []wildmidi.Option{wildmidi.MixerFlag(wildmidi.SaveAsType0, true)}})
	if !errors.Is(err, wildmidi.ErrUnsupportedOption) {
		t.Errorf("Render() with init-only flag = %v, want ErrUnsupportedOption", err)
	}
	if eng.Live() != 0 {
		t.Errorf("failed renders left %d streams open", eng.Live())
	}
}

func TestStream(t *testing.T) {
	s, _ := newSession(t, 0)
	st, err := s.OpenStream(enginetest.Song{Beats: 4, Lyrics: []string{"a", "b", "c", "d"}}.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	if err := st.Seek(time.Second); err != nil {
		t.Fatalf("Seek() error = %v", err)
	}
	info, err := st.Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.Position() != time.Second {
		t.Errorf("Position() = %v, want 1s", info.Position())
	}
	if text, ok := st.Lyric(); !ok || text != "c" {
		t.Errorf("Lyric() = %q, %v, want c", text, ok)
	}

	sink := &Discard{}
	if err := sink.Play(context.Background(), st); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if want := info.Remaining(); sink.Frames != want {
		t.Errorf("Discard consumed %d frames, want %d", sink.Frames, want)
	}

	st.Close()
	if _, err := st.Info(); !errors.Is(err, wildmidi.ErrClosed) {
		t.Errorf("Info() after Close = %v, want ErrClosed", err)
	}
}

func TestSessionConcurrentUse(t *testing.T) {
	s, eng := newSession(t, 0)
	song := enginetest.Song{Beats: 2}.Bytes()

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := s.Render(context.Background(), song, RenderOptions{BufferFrames: 512})
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = r.PCM
		}(i)
	}
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("render %d: %v", i, errs[i])
		}
		if !bytes.Equal(results[i], results[0]) {
			t.Errorf("render %d differs from render 0", i)
		}
	}
	if eng.Live() != 0 {
		t.Errorf("%d streams left open", eng.Live())
	}
}

func TestSetVolume(t *testing.T) {
	s, eng := newSession(t, 0)
	if err := s.SetVolume(40); err != nil {
		t.Fatal(err)
	}
	if eng.Volume() != 40 {
		t.Errorf("engine volume = %d, want 40", eng.Volume())
	}
	if err := s.SetVolume(200); !errors.Is(err, wildmidi.ErrInvalidValue) {
		t.Errorf("SetVolume(200) = %v, want ErrInvalidValue", err)
	}
	if s.Version() != "0.4.6" {
		t.Errorf("Version() = %q", s.Version())
	}
}
