// Package skill scales and applies skill experience.
package skill

import "math"

const (
	// MaxProgress is the internal progress of an elite (level 51) skill.
	MaxProgress = 5100.0
	// scaledLevels is the number of low levels that use the visual curve.
	scaledLevels = 9
)

// AdjustForLowLevel converts a visual progress gain into internal progress.
// Levels 0-8 fill a 100-point internal bar with 10*(level+1) visual points, so
// early gains count for more. A gain that crosses a level boundary is split and
// the remainder re-scaled at the next level.
func AdjustForLowLevel(progress, visual float64) float64 {
	level := math.Floor(progress / 100)
	if level >= scaledLevels {
		return visual
	}

	added := 0.0
	for visual > 0 {
		factor := 100 / (10 * (level + 1))
		remaining := 100 - math.Mod(progress, 100)
		toLevelUp := remaining / factor

		spend := math.Min(visual, toLevelUp)
		add := spend * factor
		added += add
		progress += add
		visual -= spend

		next := math.Floor(progress / 100)
		if spend == toLevelUp && next == level {
			// rounding left progress just under the boundary
			added += (level+1)*100 - progress
			progress = (level + 1) * 100
			next = level + 1
		}
		level = next
	}
	return added
}
