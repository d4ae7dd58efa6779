package audio

import (
	"context"
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/purelyricky/aitutor/internal/logger"
)

// Capture parameters: 16 kHz mono, ~20 ms frames, giving the arbiter
// roughly 50 energy samples per second.
const (
	captureRate    = 16000
	captureChunk   = 320 // samples per energy frame (20 ms @ 16 kHz)
	captureQueueN  = 64
	fullScaleInt16 = 32768.0
)

// CaptureOption configures the capture.
type CaptureOption func(*Capture)

// WithDeviceRate overrides the capture sample rate.
func WithDeviceRate(rate uint32) CaptureOption {
	return func(c *Capture) { c.rate = rate }
}

// Capture opens the default microphone via miniaudio and reduces each
// frame to a single RMS energy value normalized to [0,1], delivered
// through OnEnergy at the device cadence. Set OnEnergy before Start.
type Capture struct {
	log  *logger.Logger
	rate uint32

	// OnEnergy receives one normalized energy sample per frame, from
	// the processing goroutine.
	OnEnergy func(energy float64)
}

// NewCapture creates a microphone energy source. Call Start to begin.
func NewCapture(log *logger.Logger, opts ...CaptureOption) *Capture {
	c := &Capture{log: log, rate: captureRate}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens the capture device and processes audio in a blocking loop
// until ctx is cancelled. Run in its own goroutine.
func (c *Capture) Start(ctx context.Context) error {
	mCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(_ string) {})
	if err != nil {
		return err
	}
	defer func() { _ = mCtx.Uninit(); mCtx.Free() }()

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.SampleRate = c.rate
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = 1
	devCfg.Alsa.NoMMap = 1

	audioCh := make(chan []int16, captureQueueN)
	var drops atomic.Int64

	callbacks := malgo.DeviceCallbacks{
		Data: func(_ []byte, raw []byte, _ uint32) {
			if len(raw) == 0 {
				return
			}
			n := len(raw) / 2
			pcm := make([]int16, n)
			for i := 0; i < n; i++ {
				pcm[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
			}
			select {
			case audioCh <- pcm:
			default:
				drops.Add(1)
			}
		},
	}

	device, err := malgo.InitDevice(mCtx.Context, devCfg, callbacks)
	if err != nil {
		return err
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		c.log.Error("capture: audio device start failed: %v", err)
		return err
	}
	defer device.Stop()
	c.log.Debug("capture: started (rate=%d, frame=%d samples)", c.rate, captureChunk)

	rem := make([]int16, 0, captureChunk*2)

	for {
		select {
		case <-ctx.Done():
			if d := drops.Load(); d > 0 {
				c.log.Debug("capture: stopped (%d dropped device frames)", d)
			}
			return ctx.Err()

		case frame := <-audioCh:
			rem = append(rem, frame...)

			for len(rem) >= captureChunk {
				chunk := rem[:captureChunk]
				n := copy(rem, rem[captureChunk:])
				rem = rem[:n]

				if c.OnEnergy != nil {
					c.OnEnergy(rmsEnergy(chunk))
				}
			}
		}
	}
}

// rmsEnergy reduces a PCM frame to a normalized [0,1] energy level.
func rmsEnergy(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sumSq float64
	for _, v := range pcm {
		f := float64(v)
		sumSq += f * f
	}
	rms := math.Sqrt(sumSq / float64(len(pcm)))
	return math.Min(rms/fullScaleInt16, 1.0)
}
