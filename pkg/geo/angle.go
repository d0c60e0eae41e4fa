package geo

import (
	"math"

	"github.com/lintang-b-s/chroute/pkg/datastructure"
)

// ComputeTurnAngle returns the angle of the turn (a,c) -> (c,b) at node c,
// normalised to [0, 360). 180 means going straight through; 0/360 is a
// full U-turn. Works on the fixed-point screen-y vectors at c, which is
// accurate enough for bucketing turns.
func ComputeTurnAngle(a, c, b datastructure.Node) float64 {
	v1x := float64(a.Lon - c.Lon)
	v1y := float64(a.Lat - c.Lat)
	v2x := float64(b.Lon - c.Lon)
	v2y := float64(b.Lat - c.Lat)

	angle := (math.Atan2(v2y, v2x) - math.Atan2(v1y, v1x)) * 180 / math.Pi
	for angle < 0 {
		angle += 360
	}
	return angle
}

// TurnCostWeight applies the turn-penalty model: no penalty for a straight
// pass-through, up to doubling the edge weight for a U-turn.
func TurnCostWeight(edgeWeight int32, angle float64) int32 {
	return int32(float64(edgeWeight) * (1 + math.Abs((angle-180.0)/180.0)))
}
