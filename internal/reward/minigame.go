package reward

import "math"

// ConvertPoints turns mini-game points into whole coins at ratio points per
// coin. Leftover points are carried to the next session. ok is false, and
// the carry is returned unchanged, when the inputs are negative, the ratio
// is not positive, or carry+points does not fit in an int64.
func ConvertPoints(carry, points, ratio int64) (coins, newCarry int64, ok bool) {
	if ratio <= 0 || carry < 0 || points < 0 || points > math.MaxInt64-carry {
		return 0, carry, false
	}
	total := carry + points
	return total / ratio, total % ratio, true
}
