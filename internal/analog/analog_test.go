package analog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestToDigitalConcreteScenario(t *testing.T) {
	p := Params{MinBin: -128, MaxBin: 127, MinValue: 0.0, MaxValue: 5.0}
	assert.Equal(t, int32(0), p.ToDigital(2.5098))
	assert.Equal(t, int32(127), p.ToDigital(6.0))
}

func TestToDigitalClampsBelowRange(t *testing.T) {
	p := Params{MinBin: -128, MaxBin: 127, MinValue: 0.0, MaxValue: 5.0}
	assert.Equal(t, int32(-128), p.ToDigital(-1.0))
}

// Property: round-tripping a bin through ToAnalog then ToDigital lands
// within one bin's worth of the original, and both directions clamp
// monotonically outside [MinBin, MaxBin] / [MinValue, MaxValue].
func TestPropertyRoundTripWithinOneBinAndClampsMonotonically(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		minBin := rapid.Int32Range(-1000, 0).Draw(rt, "minBin")
		maxBin := rapid.Int32Range(minBin+1, minBin+1000).Draw(rt, "maxBin")
		minValue := rapid.Float64Range(-1000, 0).Draw(rt, "minValue")
		maxValue := minValue + rapid.Float64Range(0.001, 1000).Draw(rt, "span")
		p := Params{MinBin: minBin, MaxBin: maxBin, MinValue: minValue, MaxValue: maxValue}

		bin := rapid.Int32Range(minBin, maxBin).Draw(rt, "bin")
		value := p.ToAnalog(bin)
		roundTripped := p.ToDigital(value)

		diff := int64(roundTripped) - int64(bin)
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(rt, diff, int64(1), "round trip drifted by more than one bin")

		belowBin := p.ToDigital(minValue - 1000)
		assert.Equal(rt, minBin, belowBin, "ToDigital must clamp below MinValue to MinBin")
		aboveBin := p.ToDigital(maxValue + 1000)
		assert.Equal(rt, maxBin, aboveBin, "ToDigital must clamp above MaxValue to MaxBin")

		belowValue := p.ToAnalog(minBin - 1000)
		assert.Equal(rt, minValue, belowValue, "ToAnalog must clamp below MinBin to MinValue")
		aboveValue := p.ToAnalog(maxBin + 1000)
		assert.Equal(rt, maxValue, aboveValue, "ToAnalog must clamp above MaxBin to MaxValue")
	})
}
