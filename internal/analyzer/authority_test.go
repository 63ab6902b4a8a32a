package analyzer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawAuthorityNoBacklinks(t *testing.T) {
	t.Parallel()

	assert.Zero(t, newDomainStats().rawAuthority(1))
}

func TestRawAuthorityMoreReferrersScoreHigher(t *testing.T) {
	t.Parallel()

	few := newDomainStats()
	few.backlinks = 2
	few.referrers["a.example"] = struct{}{}
	few.anchors["docs"] = struct{}{}

	many := newDomainStats()
	many.backlinks = 10
	for i := 0; i < 8; i++ {
		many.referrers[fmt.Sprintf("ref%d.example", i)] = struct{}{}
	}
	many.anchors["docs"] = struct{}{}

	assert.Greater(t, many.rawAuthority(0), few.rawAuthority(0))
}

func TestRawAuthorityNofollowPenalty(t *testing.T) {
	t.Parallel()

	followed := newDomainStats()
	followed.backlinks = 4
	followed.referrers["a.example"] = struct{}{}

	nofollowed := newDomainStats()
	nofollowed.backlinks = 4
	nofollowed.nofollow = 4
	nofollowed.referrers["a.example"] = struct{}{}

	assert.Greater(t, followed.rawAuthority(0), nofollowed.rawAuthority(0))
}

func TestCalibrateBounds(t *testing.T) {
	t.Parallel()

	raw := map[string]float64{}
	for i := 0; i < 100; i++ {
		raw[fmt.Sprintf("d%d.example", i)] = float64(i)
	}

	scaled := calibrate(raw)

	for dom, v := range scaled {
		assert.GreaterOrEqual(t, v, 0.0, dom)
		assert.LessOrEqual(t, v, MaxAuthority, dom)
	}

	// The 99th-percentile domain maps to the calibration target; anything
	// above it scales past 95 but stays capped.
	assert.InDelta(t, topPercentileTarget, scaled["d98.example"], 1e-9)
	assert.Greater(t, scaled["d99.example"], topPercentileTarget)
}

func TestCalibrateEmptyAndZero(t *testing.T) {
	t.Parallel()

	assert.Empty(t, calibrate(map[string]float64{}))

	scaled := calibrate(map[string]float64{"a.example": 0, "b.example": 0})
	assert.Zero(t, scaled["a.example"])
	assert.Zero(t, scaled["b.example"])
}
