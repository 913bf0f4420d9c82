package sim

import "math"

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// wrapAngle normalizes an angle to [-pi, pi).
func wrapAngle(a float64) float64 {
	for a >= math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// approach moves current toward target by at most step, without overshoot.
func approach(current, target, step float64) float64 {
	diff := target - current
	if diff > step {
		return current + step
	}
	if diff < -step {
		return current - step
	}
	return target
}

// approachAngle converges a heading toward target along the short arc,
// bounded by step radians.
func approachAngle(current, target, step float64) float64 {
	diff := wrapAngle(target - current)
	return wrapAngle(current + clamp(diff, -step, step))
}

func distance2(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

func distance3(x1, y1, z1, x2, y2, z2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	dz := z2 - z1
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
