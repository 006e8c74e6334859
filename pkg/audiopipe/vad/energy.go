package vad

import "math"

// energyScorer is the default Scorer: a simple RMS-energy heuristic,
// normalised against full-scale float32 PCM. It trades recall for zero
// external dependencies; Config.Scorer can swap in a model-backed Scorer (see
// NewSileroScorer) for production-quality detection.
type energyScorer struct{}

// fullScaleRMS is the RMS energy of a full-amplitude sine wave in [-1,1]
// float32 samples (1/sqrt(2)), used to normalise the raw RMS into [0,1].
const fullScaleRMS = 0.70710678

func (energyScorer) Score(frame []float32) (float64, error) {
	if len(frame) == 0 {
		return 0, nil
	}
	var sumSq float64
	for _, s := range frame {
		v := float64(s)
		sumSq += v * v
	}
	rms := math.Sqrt(sumSq / float64(len(frame)))
	score := rms / fullScaleRMS
	if score > 1 {
		score = 1
	}
	return score, nil
}
