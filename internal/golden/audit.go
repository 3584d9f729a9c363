package golden

import (
	"fmt"
	"math"

	"github.com/pgermishuys/netchat/internal/tensor"
)

// LogitStats summarises a logits buffer so a broken reference (all NaN,
// constant, overflowing) is caught before it is shipped as a fixture.
type LogitStats struct {
	Count            int
	Max              float32
	Min              float32
	Mean             float32
	RMS              float32
	NumNaNs          int
	NumInfs          int
	HasExtremeValues bool
	IsFlat           bool
}

// Audit inspects logits for flatness and non-finite or extreme values. Mean
// and RMS are taken over all values, non-finite ones counting as zero.
func Audit(logits []float32) LogitStats {
	s := LogitStats{Count: len(logits)}
	if len(logits) == 0 {
		return s
	}

	var sum, sumSq float64
	minVal, maxVal := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _, v := range logits {
		f := float64(v)
		if math.IsNaN(f) {
			s.NumNaNs++
			continue
		}
		if math.IsInf(f, 0) {
			s.NumInfs++
			continue
		}
		minVal = min(minVal, v)
		maxVal = max(maxVal, v)
		sum += f
		sumSq += f * f
	}
	if s.NumNaNs+s.NumInfs == len(logits) {
		s.HasExtremeValues = true
		return s
	}

	s.Max, s.Min = maxVal, minVal
	s.Mean = float32(sum / float64(len(logits)))
	s.RMS = float32(math.Sqrt(sumSq / float64(len(logits))))
	s.HasExtremeValues = s.NumNaNs > 0 || s.NumInfs > 0 ||
		math.Abs(float64(s.Max)) > 1e20 || math.Abs(float64(s.Min)) > 1e20

	// constant c gives mean c and RMS |c|, so variance collapses to zero
	if s.Mean != 0 {
		variance := float64(s.RMS)*float64(s.RMS) - float64(s.Mean)*float64(s.Mean)
		s.IsFlat = math.Abs(variance) < 0.01
	} else {
		s.IsFlat = s.RMS < 1e-3
	}
	return s
}

// AuditTensor decodes t as floats and audits it.
func AuditTensor(t *tensor.Tensor) (LogitStats, error) {
	vals, err := t.Float32s()
	if err != nil {
		return LogitStats{}, err
	}
	return Audit(vals), nil
}

// Healthy reports whether the values look like usable logits.
func (s LogitStats) Healthy() bool {
	return s.Count > 0 && !s.HasExtremeValues && !s.IsFlat
}

func (s LogitStats) String() string {
	return fmt.Sprintf("LogitStats{n=%d, max=%.4f, min=%.4f, mean=%.4f, rms=%.4f, nan=%d, inf=%d, flat=%v}",
		s.Count, s.Max, s.Min, s.Mean, s.RMS, s.NumNaNs, s.NumInfs, s.IsFlat)
}
