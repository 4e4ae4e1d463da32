package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/james-see/gowildmidi/internal/enginetest"
	"github.com/james-see/gowildmidi/pkg/logger"
	"github.com/james-see/gowildmidi/pkg/playback"
	"github.com/james-see/gowildmidi/pkg/wildmidi"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T, opts Options) (*gin.Engine, *enginetest.Engine) {
	t.Helper()
	lib, eng := enginetest.NewLibrary(t, 0)
	return NewRouter(playback.NewSession(lib, logger.Discard()), logger.Discard(), opts), eng
}

func uploadRequest(t *testing.T, target, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["status"] != "healthy" || body["service"] != "gowildmidi" {
			t.Errorf("GET %s body = %s", path, rec.Body.String())
		}
	}
}

func TestVersion(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/version", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Engine     string `json:"engine"`
		SampleRate int    `json:"sample_rate"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Engine != "0.4.6" || body.SampleRate != wildmidi.DefaultSampleRate {
		t.Errorf("version = %+v", body)
	}
}

func TestOptionsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/options", nil))
	if !strings.Contains(rec.Body.String(), "enhanced-resampling") {
		t.Errorf("options = %s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	rec := serve(r, httptest.NewRequest(http.MethodOptions, "/api/v1/info", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("OPTIONS = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestInfo(t *testing.T) {
	r, eng := newTestRouter(t, Options{})
	song := enginetest.Song{Tracks: 2, Beats: 4, Copyright: "(c) api"}.Bytes()

	rec := serve(r, uploadRequest(t, "/api/v1/info", "song.mid", song))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var info InfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.Container != "smf" || info.Tracks != 2 || info.Division != 480 || info.MidiTime != 2 {
		t.Errorf("info = %+v", info)
	}
	if info.Copyright == nil || *info.Copyright != "(c) api" {
		t.Errorf("copyright = %v", info.Copyright)
	}
	if eng.Live() != 0 {
		t.Errorf("%d streams left open", eng.Live())
	}
}

func TestUploadErrors(t *testing.T) {
	r, _ := newTestRouter(t, Options{MaxUpload: 1024})

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"no file", httptest.NewRequest(http.MethodPost, "/api/v1/info", nil), http.StatusBadRequest},
		{"garbage", uploadRequest(t, "/api/v1/info", "x.mid", enginetest.Garbage()), http.StatusBadRequest},
		{"too large", uploadRequest(t, "/api/v1/export", "big.mid", bytes.Repeat([]byte{0}, 4096)), http.StatusRequestEntityTooLarge},
		{"bad flag", uploadRequest(t, "/api/v1/render?reverb=maybe", "x.mid", enginetest.Song{Beats: 1}.Bytes()), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, tt.req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), "error") {
				t.Errorf("body = %s, want an error message", rec.Body.String())
			}
		})
	}
}

func TestRender(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	song := enginetest.Song{Beats: 2}.Bytes()

	rec := serve(r, uploadRequest(t, "/api/v1/render?reverb=true", "song.mid", song))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/wav" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "song.wav") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	rate, size, err := playback.ReadWAVHeader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	// 1s of notes plus the release tail
	wantFrames := (1000 + enginetest.DefaultTail) * wildmidi.DefaultSampleRate / 1000
	if rate != wildmidi.DefaultSampleRate || size != wantFrames*4 {
		t.Errorf("wav rate %d size %d, want %d, %d", rate, size, wildmidi.DefaultSampleRate, wantFrames*4)
	}
}

func TestRenderTooLong(t *testing.T) {
	r, _ := newTestRouter(t, Options{MaxDuration: time.Second})
	rec := serve(r, uploadRequest(t, "/api/v1/render", "long.mid", enginetest.Song{Beats: 8}.Bytes()))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestExport(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	rec := serve(r, uploadRequest(t, "/api/v1/export", "multi.mid", enginetest.Song{Tracks: 4, Beats: 1}.Bytes()))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/midi" {
		t.Errorf("Content-Type = %q", ct)
	}
	if h := wildmidi.ProbeHeader(rec.Body.Bytes()); h.Tracks != 1 {
		t.Errorf("exported tracks = %d, want 1", h.Tracks)
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		in, ext, want string
	}{
		{"song.mid", ".wav", "song.wav"},
		{"a.b.midi", ".mid", "a.b.mid"},
		{"noext", ".wav", "noext.wav"},
		{"", ".wav", "converted.wav"},
		{".hidden", ".wav", ".hidden.wav"},
	}
	for _, tt := range tests {
		if got := outputName(tt.in, tt.ext); got != tt.want {
			t.Errorf("outputName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStartServer(t *testing.T) {
	lib, _ := enginetest.NewLibrary(t, 0)
	session := playback.NewSession(lib, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- StartServer(ctx, "127.0.0.1:0", session, logger.Discard(), DefaultOptions())
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("StartServer() after cancel = %v, want nil", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("StartServer did not return after cancel")
	}
}

func TestStartServerAddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("listen: %v", err)
	}
	defer ln.Close()

	lib, _ := enginetest.NewLibrary(t, 0)
	session := playback.NewSession(lib, logger.Discard())
	err = StartServer(context.Background(), ln.Addr().String(), session, logger.Discard(), DefaultOptions())
	if err == nil {
		t.Error("StartServer() on a busy address succeeded")
	}
}
