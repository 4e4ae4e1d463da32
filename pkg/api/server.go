// Package api provides the REST API server for gowildmidi
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/james-see/gowildmidi/pkg/playback"
	"github.com/james-see/gowildmidi/pkg/wildmidi"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"
)

// @title gowildmidi API
// @version 1.0
// @description Inspect, render and convert MIDI files with the WildMidi synthesizer
// @host localhost:8080
// @BasePath /api/v1

// Options configures the server.
type Options struct {
	// MaxUpload is the largest accepted upload in bytes.
	MaxUpload int64
	// MaxDuration is the longest stream /render will synthesize.
	MaxDuration time.Duration
	// ServiceName is reported by the health endpoints.
	ServiceName string
}

// DefaultOptions returns the limits used by the CLI.
func DefaultOptions() Options {
	return Options{
		MaxUpload:   8 << 20,
		MaxDuration: 15 * time.Minute,
		ServiceName: "gowildmidi",
	}
}

type server struct {
	session *playback.Session
	log     *slog.Logger
	opts    Options
}

// NewRouter builds the HTTP handler. Every engine call goes through session.
func NewRouter(session *playback.Session, log *slog.Logger, opts Options) *gin.Engine {
	if log == nil {
		log = slog.Default()
	}
	defaults := DefaultOptions()
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = defaults.MaxUpload
	}
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ServiceName
	}
	s := &server{session: session, log: log, opts: opts}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", s.healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", s.healthCheck)
		v1.GET("/version", s.version)
		v1.GET("/options", listOptions)
		v1.POST("/info", s.handleInfo)
		v1.POST("/render", s.handleRender)
		v1.POST("/export", s.handleExport)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// StartServer serves on addr until ctx is done.
func StartServer(ctx context.Context, addr string, session *playback.Session, log *slog.Logger, opts Options) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(session, log, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (s *server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": s.opts.ServiceName,
	})
}

// version godoc
// @Summary Engine version and configuration
// @Tags info
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/version [get]
func (s *server) version(c *gin.Context) {
	cfg := s.session.Config()
	c.JSON(http.StatusOK, gin.H{
		"engine":      s.session.Version(),
		"sample_rate": cfg.SampleRate,
		"mixer":       cfg.Mixer.String(),
	})
}

// listOptions godoc
// @Summary List stream options
// @Description Returns the mixer flags /render accepts as query parameters
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/options [get]
func listOptions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"options": renderFlagNames(),
	})
}

// InfoResponse is the JSON form of wildmidi.Info.
type InfoResponse struct {
	Container    string  `json:"container"`
	Format       int     `json:"format"`
	Tracks       int     `json:"tracks"`
	Division     uint16  `json:"division"`
	Copyright    *string `json:"copyright,omitempty"`
	SampleRate   int     `json:"sample_rate"`
	TotalSamples uint64  `json:"total_samples"`
	Duration     float64 `json:"duration_seconds"`
	MidiTime     float64 `json:"midi_time_seconds"`
	Mixer        string  `json:"mixer"`
}

func newInfoResponse(info wildmidi.Info) InfoResponse {
	resp := InfoResponse{
		Container:    string(info.Header.Container),
		Format:       info.Header.Format,
		Tracks:       info.Tracks(),
		Division:     info.Header.Division,
		SampleRate:   info.SampleRate,
		TotalSamples: info.TotalSamples,
		Duration:     info.Duration().Seconds(),
		MidiTime:     info.MidiTime.Seconds(),
		Mixer:        info.Mixer.String(),
	}
	if info.HasCopyright {
		copyright := info.Copyright
		resp.Copyright = &copyright
	}
	return resp
}

// handleInfo godoc
// @Summary Inspect a MIDI file
// @Description Upload a MIDI file and receive its header and length
// @Tags midi
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MIDI file"
// @Success 200 {object} InfoResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/info [post]
func (s *server) handleInfo(c *gin.Context) {
	data, name, ok := s.upload(c)
	if !ok {
		return
	}
	info, err := s.session.Inspect(data)
	if err != nil {
		s.fail(c, name, err)
		return
	}
	c.JSON(http.StatusOK, newInfoResponse(info))
}

// handleRender godoc
// @Summary Render a MIDI file to WAV
// @Description Upload a MIDI file and receive 16-bit stereo PCM in a WAV container
// @Tags midi
// @Accept multipart/form-data
// @Produce audio/wav
// @Param file formData file true "MIDI file"
// @Param reverb query bool false "Enable reverb"
// @Param enhanced-resampling query bool false "Enable enhanced resampling"
// @Param log-volume query bool false "Use the logarithmic volume curve"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Router /api/v1/render [post]
func (s *server) handleRender(c *gin.Context) {
	opts, err := renderOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, name, ok := s.upload(c)
	if !ok {
		return
	}

	rendered, err := s.session.Render(c.Request.Context(), data, playback.RenderOptions{
		Options:     opts,
		MaxDuration: s.opts.MaxDuration,
	})
	if err != nil {
		s.fail(c, name, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName(name, ".wav")))
	c.Header("Content-Type", "audio/wav")
	c.Status(http.StatusOK)
	if err := playback.WriteWAV(c.Writer, s.session.Config().SampleRate, rendered.PCM); err != nil {
		s.log.Warn("failed to write response", "file", name, "error", err)
	}
}

// handleExport godoc
// @Summary Convert a file to a type 0 Standard MIDI File
// @Description Upload any container the engine reads and receive a type 0 SMF
// @Tags midi
// @Accept multipart/form-data
// @Produce audio/midi
// @Param file formData file true "MIDI, RMID, HMI, HMP, MUS or XMI file"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/export [post]
func (s *server) handleExport(c *gin.Context) {
	data, name, ok := s.upload(c)
	if !ok {
		return
	}
	out, err := s.session.Export(data)
	if err != nil {
		s.fail(c, name, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName(name, ".mid")))
	c.Data(http.StatusOK, "audio/midi", out)
}

func (s *server) upload(c *gin.Context) ([]byte, string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUpload)

	// Get uploaded file
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return nil, "", false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	// Read file content
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return nil, "", false
	}
	return data, header.Filename, true
}

func (s *server) fail(c *gin.Context, name string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "file", name, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, wildmidi.ErrInvalidFormat),
		errors.Is(err, wildmidi.ErrInvalidValue),
		errors.Is(err, wildmidi.ErrUnsupportedOption):
		return http.StatusBadRequest
	case errors.Is(err, playback.ErrTooLong):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, context.Canceled):
		return 499
	}
	return http.StatusInternalServerError
}

var renderFlags = []wildmidi.MixerOption{
	wildmidi.Reverb,
	wildmidi.EnhancedResampling,
	wildmidi.LogVolume,
}

func renderFlagNames() []string {
	names := make([]string, len(renderFlags))
	for i, f := range renderFlags {
		names[i] = f.String()
	}
	return names
}

func renderOptions(c *gin.Context) ([]wildmidi.Option, error) {
	var opts []wildmidi.Option
	for _, f := range renderFlags {
		v, ok := c.GetQuery(f.String())
		if !ok {
			continue
		}
		on, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q for %s", v, f)
		}
		opts = append(opts, wildmidi.MixerFlag(f, on))
	}
	return opts, nil
}

// Generate output filename
func outputName(name, ext string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i] + ext
	}
	if name == "" {
		return "converted" + ext
	}
	return name + ext
}
