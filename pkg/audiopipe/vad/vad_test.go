package vad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedScorer returns a fixed score per call, taken from a slice in
// order, for deterministic onset/hangover testing.
type scriptedScorer struct {
	scores []float64
	i      int
}

func (s *scriptedScorer) Score(_ []float32) (float64, error) {
	v := s.scores[s.i]
	if s.i < len(s.scores)-1 {
		s.i++
	}
	return v, nil
}

func silentFrame() []float32 { return make([]float32, FrameSamples) }

func TestDisabled_IsPassthrough(t *testing.T) {
	d := New(Config{Disabled: true})
	xs := make([]float32, FrameSamples*3)
	for i := range xs {
		xs[i] = 0.42
	}
	out, err := d.Process(xs)
	require.NoError(t, err)
	assert.Equal(t, xs, out)

	flushed := d.Flush()
	assert.Empty(t, flushed)

	st := d.State()
	assert.False(t, st.Speaking)
}

func TestAllZeros_EmitsNothingWhenEnabled(t *testing.T) {
	d := New(Config{})
	xs := make([]float32, FrameSamples*40)
	out, err := d.Process(xs)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestOnsetRequiresConsecutiveFrames(t *testing.T) {
	// 30 silent frames, then one speech frame: onset not yet confirmed
	// (onset=2), so no output.
	scores := make([]float64, 0, 32)
	for i := 0; i < 30; i++ {
		scores = append(scores, 0.0)
	}
	scores = append(scores, 0.9)
	scorer := &scriptedScorer{scores: scores}

	d := New(Config{
		Threshold:      0.5,
		OnsetFrames:    2,
		HangoverFrames: 15,
		PrefillFrames:  15,
		Scorer:         scorer,
	})

	out, err := d.Process(make([]float32, FrameSamples*31))
	require.NoError(t, err)
	assert.Empty(t, out, "onset should not confirm on a single speech frame")

	// A second consecutive speech frame confirms onset: expect the last 15
	// silent prefill frames plus both speech frames.
	scorer.scores = append(scorer.scores, 0.9)
	out2, err := d.Process(make([]float32, FrameSamples))
	require.NoError(t, err)
	assert.Len(t, out2, FrameSamples*17)
}

func TestHangover_ExtendsAfterSilenceReturns(t *testing.T) {
	scores := []float64{0.9, 0.9, 0.0, 0.0}
	scorer := &scriptedScorer{scores: scores}
	d := New(Config{
		Threshold:      0.5,
		OnsetFrames:    1,
		HangoverFrames: 2,
		PrefillFrames:  3,
		Scorer:         scorer,
	})

	out, err := d.Process(make([]float32, FrameSamples*4))
	require.NoError(t, err)
	// Frame1: onset confirmed (onset=1), emits frame1.
	// Frame2: speaking, hangover reset, emits frame2.
	// Frame3: silence, hangover=2>0, decrement, emits frame3.
	// Frame4: silence, hangover=1>0, decrement, emits frame4.
	assert.Len(t, out, FrameSamples*4)

	st := d.State()
	assert.True(t, st.Speaking)
}

func TestReset_ClearsState(t *testing.T) {
	d := New(Config{Scorer: &scriptedScorer{scores: []float64{0.9, 0.9}}, OnsetFrames: 1})
	_, err := d.Process(make([]float32, FrameSamples*2))
	require.NoError(t, err)
	require.True(t, d.State().Speaking)

	d.Reset()
	st := d.State()
	assert.False(t, st.Speaking)
	assert.Empty(t, d.ring)
	assert.Empty(t, d.buf)
}

func TestEnergyScorer_FullScaleIsOne(t *testing.T) {
	frame := make([]float32, FrameSamples)
	for i := range frame {
		if i%2 == 0 {
			frame[i] = 1
		} else {
			frame[i] = -1
		}
	}
	score, err := energyScorer{}.Score(frame)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-6)
}
