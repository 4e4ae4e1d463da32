// Package main is the entry point for the wildmidi CLI
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/james-see/gowildmidi/internal/app"
	"github.com/james-see/gowildmidi/pkg/api"
	"github.com/james-see/gowildmidi/pkg/logger"
	"github.com/james-see/gowildmidi/pkg/playback"
	"github.com/james-see/gowildmidi/pkg/tui"
	"github.com/james-see/gowildmidi/pkg/wildmidi"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	settings   = app.DefaultSettings()
	outputFile string
	nullOutput bool
	serverAddr string
	serverPort int
	maxRender  time.Duration

	// newEngine is replaced in tests.
	newEngine = app.NewEngine
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wildmidi",
	Short: "Play, render and convert MIDI files with WildMidi",
	Long: `wildmidi drives the WildMidi software synthesizer: it plays MIDI files
on the audio device, renders them to WAV, converts HMI, HMP, MUS, XMI and RMID
files to Standard MIDI and serves the same operations over HTTP.

Examples:
  wildmidi play song.mid
  wildmidi render song.mid -o song.wav
  wildmidi info song.mid other.xmi
  wildmidi export doom.mus -o doom.mid
  wildmidi --engine sf2 -c GeneralUser.sf2 play song.mid
  wildmidi tui
  wildmidi serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play a MIDI file on the audio device",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

var renderCmd = &cobra.Command{
	Use:   "render <file>",
	Short: "Render a MIDI file to a 16-bit stereo WAV",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

var infoCmd = &cobra.Command{
	Use:   "info <file>...",
	Short: "Print header, length and copyright of MIDI files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInfo,
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Convert a file to a type 0 Standard MIDI File",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal player",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&settings.ConfigPath, "config", "c", "", "Patch config (native) or SoundFont (sf2); default $WILDMIDI_CFG or /etc/wildmidi")
	flags.IntVarP(&settings.SampleRate, "rate", "r", settings.SampleRate, "Output sample rate in Hz")
	flags.IntVar(&settings.Volume, "volume", settings.Volume, "Master volume, 0-127")
	flags.StringVar(&settings.Engine, "engine", settings.Engine, "Synthesis engine (native, sf2)")
	flags.StringVar(&settings.LogLevel, "log-level", settings.LogLevel, "Log level (debug, info, warn, error)")
	flags.BoolVar(&settings.Reverb, "reverb", false, "Enable reverb")
	flags.BoolVar(&settings.EnhancedResampling, "enhanced-resampling", false, "Enable enhanced resampling")
	flags.BoolVar(&settings.LogVolume, "log-volume", false, "Use the logarithmic volume curve")
	flags.BoolVar(&settings.Loop, "loop", false, "Loop playback")

	// play command
	playCmd.Flags().BoolVar(&nullOutput, "null", false, "Render without an audio device")

	// render command
	renderCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .wav file path")

	// export command
	exportCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path")

	// tui command
	tuiCmd.Flags().BoolVar(&nullOutput, "null", false, "Render without an audio device")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")
	serveCmd.Flags().StringVar(&serverAddr, "addr", "", "Listen address (overrides --port)")
	serveCmd.Flags().DurationVar(&maxRender, "max-render", api.DefaultOptions().MaxDuration, "Longest stream /render will synthesize")

	// Add commands
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

func setupLogging(cmd *cobra.Command, args []string) error {
	return logger.Init(settings.LogLevel)
}

func openSession() (*playback.Session, func(), error) {
	engine, err := newEngine(settings.Engine)
	if err != nil {
		return nil, nil, err
	}
	lib, session, err := settings.OpenEngine(engine, logger.Get())
	if err != nil {
		return nil, nil, err
	}
	return session, lib.Shutdown, nil
}

func getOutputPath(input, defaultExt string) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + defaultExt
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func newSink(rate int) (playback.Sink, error) {
	if nullOutput {
		return &playback.Discard{}, nil
	}
	return playback.OpenDevice(rate)
}

func runPlay(cmd *cobra.Command, args []string) error {
	input := args[0]
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	session, shutdown, err := openSession()
	if err != nil {
		return err
	}
	defer shutdown()

	st, err := session.OpenStream(data)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	defer st.Close()

	info, err := st.Info()
	if err != nil {
		return err
	}
	sink, err := newSink(settings.SampleRate)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Playing %s (%s)\n", filepath.Base(input), formatDuration(info.Duration()))
	if info.HasCopyright {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", info.Copyright)
	}
	if err := sink.Play(ctx, st); err != nil && ctx.Err() == nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".wav")

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	session, shutdown, err := openSession()
	if err != nil {
		return err
	}
	defer shutdown()

	ctx, stop := signalContext(cmd)
	defer stop()

	rendered, err := session.Render(ctx, data, playback.RenderOptions{})
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := playback.WriteWAV(f, settings.SampleRate, rendered.PCM); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s -> %s (%s, %s)\n", input, output,
		formatDuration(rendered.Info.Duration()), humanize.Bytes(uint64(len(rendered.PCM))))
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	session, shutdown, err := openSession()
	if err != nil {
		return err
	}
	defer shutdown()

	out := cmd.OutOrStdout()
	for i, input := range args {
		data, err := os.ReadFile(input)
		if err != nil {
			return err
		}
		info, err := session.Inspect(data)
		if err != nil {
			return fmt.Errorf("%s: %w", input, err)
		}
		if i > 0 {
			fmt.Fprintln(out)
		}
		printInfo(out, input, len(data), info)
	}
	return nil
}

func printInfo(w io.Writer, name string, size int, info wildmidi.Info) {
	fmt.Fprintf(w, "File:      %s (%s)\n", name, humanize.Bytes(uint64(size)))
	fmt.Fprintf(w, "Container: %s\n", info.Header.Container)
	if info.Header.Format >= 0 {
		fmt.Fprintf(w, "Format:    %d\n", info.Header.Format)
		fmt.Fprintf(w, "Tracks:    %d\n", info.Tracks())
		fmt.Fprintf(w, "Division:  %d\n", info.Header.Division)
	}
	fmt.Fprintf(w, "Length:    %s (%s frames at %d Hz)\n", formatDuration(info.Duration()),
		humanize.Comma(int64(info.TotalSamples)), info.SampleRate)
	fmt.Fprintf(w, "MIDI time: %s\n", info.MidiTime)
	if info.HasCopyright {
		fmt.Fprintf(w, "Copyright: %s\n", info.Copyright)
	}
	fmt.Fprintf(w, "Mixer:     %s\n", info.Mixer)
}

func runExport(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".type0.mid")

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	session, shutdown, err := openSession()
	if err != nil {
		return err
	}
	defer shutdown()

	result, err := session.Export(data)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Converted %s -> %s\n", input, output)
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	session, shutdown, err := openSession()
	if err != nil {
		return err
	}
	defer shutdown()

	sink, err := newSink(settings.SampleRate)
	if err != nil {
		return err
	}
	return tui.Run(session, sink)
}

func runServe(cmd *cobra.Command, args []string) error {
	session, shutdown, err := openSession()
	if err != nil {
		return err
	}
	defer shutdown()

	addr := serverAddr
	if addr == "" {
		addr = fmt.Sprintf(":%d", serverPort)
	}
	opts := api.DefaultOptions()
	opts.MaxDuration = maxRender

	ctx, stop := signalContext(cmd)
	defer stop()

	logger.Get().Info("starting API server", "addr", addr, "engine", session.Version())
	fmt.Fprintf(cmd.OutOrStdout(), "Swagger docs available at http://localhost%s/swagger/index.html\n", addr)
	return api.StartServer(ctx, addr, session, logger.Get(), opts)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
