// Package leveling maps accumulated experience to levels.
//
// Reaching level n requires 100·n² total XP: level 1 at 100, level 2 at 400,
// level 3 at 900 and so on. The curve is fixed and monotonic.
package leveling

// XPPerLevelUnit scales the quadratic curve.
const XPPerLevelUnit = 100

// LevelUp reports the outcome of comparing two XP totals.
type LevelUp struct {
	LeveledUp bool
	NewLevel  int
}

// LevelForXP returns floor(sqrt(xp/100)). Negative totals count as zero.
func LevelForXP(xp int) int {
	if xp <= 0 {
		return 0
	}
	return isqrt(xp / XPPerLevelUnit)
}

// XPForLevel returns the total XP at which level starts.
func XPForLevel(level int) int {
	if level <= 0 {
		return 0
	}
	return XPPerLevelUnit * level * level
}

// Progress returns the level for xp, XP earned inside it and the size of the level.
func Progress(xp int) (level, into, span int) {
	if xp < 0 {
		xp = 0
	}
	level = LevelForXP(xp)
	start := XPForLevel(level)
	return level, xp - start, XPForLevel(level+1) - start
}

// DetectLevelUp reports whether moving from oldXP to newXP crosses a level boundary.
func DetectLevelUp(oldXP, newXP int) LevelUp {
	before, after := LevelForXP(oldXP), LevelForXP(newXP)
	return LevelUp{LeveledUp: after > before, NewLevel: after}
}

// isqrt is the integer square root via Newton's method.
func isqrt(n int) int {
	if n < 2 {
		return n
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
