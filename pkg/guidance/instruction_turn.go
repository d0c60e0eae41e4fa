package guidance

import "github.com/lintang-b-s/chroute/pkg/datastructure"

// GetTurnDirection buckets a turn angle (degrees, [0,360), 180 = straight)
// into a directional instruction. Angles near 0/360 wrap to a U-turn.
func GetTurnDirection(angle float64) datastructure.TurnInstruction {
	switch {
	case angle >= 23 && angle < 67:
		return datastructure.TurnSharpRight
	case angle >= 67 && angle < 113:
		return datastructure.TurnRight
	case angle >= 113 && angle < 158:
		return datastructure.TurnSlightRight
	case angle >= 158 && angle < 202:
		return datastructure.GoStraight
	case angle >= 202 && angle < 248:
		return datastructure.TurnSlightLeft
	case angle >= 248 && angle < 292:
		return datastructure.TurnLeft
	case angle >= 292 && angle < 336:
		return datastructure.TurnSharpLeft
	}
	return datastructure.UTurn
}
