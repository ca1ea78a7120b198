// Package audio plays a rendering source on the default output device.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// Source fills interleaved stereo float32 frames.
type Source interface {
	Process(dst []float32)
}

// streamReader adapts a Source to the float32 little-endian byte stream
// ebiten's player pulls from.
type streamReader struct {
	mu     sync.Mutex
	source Source
	buf    []float32
}

func (r *streamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	need := frames * 2
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i, v := range r.buf {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(v))
	}
	return frames * 8, nil
}

// Output is a live device stream. The source is pulled on ebiten's audio
// goroutine.
type Output struct {
	player *ebitaudio.Player
}

var (
	contextOnce       sync.Once
	context           *ebitaudio.Context
	contextSampleRate int
)

// ebiten allows one audio context per process.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	contextOnce.Do(func() {
		contextSampleRate = sampleRate
		context = ebitaudio.NewContext(sampleRate)
	})
	if contextSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", contextSampleRate, sampleRate)
	}
	return context, nil
}

// Open creates a paused output for source. bufferSize trades latency for
// robustness; zero keeps ebiten's default.
func Open(sampleRate int, source Source, bufferSize time.Duration) (*Output, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	pl, err := ctx.NewPlayerF32(&streamReader{source: source})
	if err != nil {
		return nil, err
	}
	if bufferSize > 0 {
		pl.SetBufferSize(bufferSize)
	}
	return &Output{player: pl}, nil
}

func (o *Output) Play() { o.player.Play() }

func (o *Output) Close() error {
	o.player.Pause()
	return o.player.Close()
}

var _ io.Reader = (*streamReader)(nil)
