package geo

import (
	"github.com/lintang-b-s/chroute/pkg/datastructure"

	"github.com/golang/geo/s2"
)

// ProjectPointToLineCoord projects snap onto the segment between the two
// street points and returns the projection.
func ProjectPointToLineCoord(nearestStPoint, secondNearestStPoint, snap datastructure.Coordinate) datastructure.Coordinate {
	nearestStS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(nearestStPoint.Lat, nearestStPoint.Lon))
	secondNearestStS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(secondNearestStPoint.Lat, secondNearestStPoint.Lon))
	snapS2 := s2.PointFromLatLng(s2.LatLngFromDegrees(snap.Lat, snap.Lon))
	projection := s2.Project(snapS2, nearestStS2, secondNearestStS2)
	projectLatLng := s2.LatLngFromPoint(projection)
	return datastructure.NewCoordinate(projectLatLng.Lat.Degrees(), projectLatLng.Lng.Degrees())
}

// AngularDistanceKm is the s2 angular distance between two coordinates,
// scaled to km.
func AngularDistanceKm(from, to datastructure.Coordinate) float64 {
	d := s2.LatLngFromDegrees(from.Lat, from.Lon).Distance(s2.LatLngFromDegrees(to.Lat, to.Lon))
	return d.Radians() * earthRadiusKM
}
