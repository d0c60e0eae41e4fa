package datastructure

import "github.com/twpayne/go-polyline"

// coordinates are stored fixed point (micro degrees) in the node tables and
// converted to float64 only at the API boundary.
const CoordinatePrecision = 1e6

type Coordinate struct {
	Lat float64
	Lon float64
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{
		Lat: lat,
		Lon: lon,
	}
}

func MicroDegrees(deg float64) int32 {
	return int32(deg * CoordinatePrecision)
}

func Degrees(micro int32) float64 {
	return float64(micro) / CoordinatePrecision
}

func RenderPath(path []Coordinate) string {
	coords := make([][]float64, 0, len(path))
	for _, p := range path {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	return string(polyline.EncodeCoords(coords))
}
