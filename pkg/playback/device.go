package playback

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Sink consumes a PCM stream until it ends or ctx is done.
type Sink interface {
	Play(ctx context.Context, r io.Reader) error
}

// oto allows one context per process.
var (
	deviceMu   sync.Mutex
	deviceCtx  *oto.Context
	deviceRate int
)

// Device plays through the system audio output.
type Device struct {
	ctx  *oto.Context
	poll time.Duration
}

// OpenDevice returns the audio device at the given sample rate. The first
// call fixes the rate for the life of the process.
func OpenDevice(rate int) (*Device, error) {
	deviceMu.Lock()
	defer deviceMu.Unlock()

	if deviceCtx == nil {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: wavChannels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open audio device: %w", err)
		}
		<-ready
		deviceCtx, deviceRate = ctx, rate
	}
	if deviceRate != rate {
		return nil, fmt.Errorf("audio device already open at %d Hz, want %d Hz", deviceRate, rate)
	}
	return &Device{ctx: deviceCtx, poll: 20 * time.Millisecond}, nil
}

// Play blocks until r is exhausted and the device has drained, or ctx is
// done.
func (d *Device) Play(ctx context.Context, r io.Reader) error {
	p := d.ctx.NewPlayer(r)
	defer p.Close()
	p.Play()

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()
	for p.IsPlaying() {
		select {
		case <-ctx.Done():
			p.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return p.Err()
}

// Discard is a Sink that reads as fast as possible and throws the audio
// away. It is used when there is no audio device.
type Discard struct {
	// Frames counts the stereo frames consumed.
	Frames uint64
}

func (d *Discard) Play(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 16384)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		d.Frames += uint64(n / 4)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
