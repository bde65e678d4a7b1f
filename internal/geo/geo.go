package geo

import (
	"errors"
	"math"
)

// ErrInvalidCoordinates signals a latitude outside [-90,90] or a longitude
// outside [-180,180].
var ErrInvalidCoordinates = errors.New("coordinates out of range")

// DefaultRadiusMeters is the geofence radius used when a caller does not
// configure one.
const DefaultRadiusMeters = 20.0

const earthRadiusMeters = 6371000

// Result is the outcome of a proximity check.
type Result struct {
	Admit          bool    `json:"admit"`
	DistanceMeters float64 `json:"distance_meters"`
}

// Validate computes the great-circle distance between the classroom point
// and the reported point and admits iff the distance is within radiusMeters
// (inclusive). Pure function, no I/O.
func Validate(classroomLat, classroomLon, reportedLat, reportedLon, radiusMeters float64) (Result, error) {
	if err := checkCoords(classroomLat, classroomLon); err != nil {
		return Result{}, err
	}
	if err := checkCoords(reportedLat, reportedLon); err != nil {
		return Result{}, err
	}
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	d := haversine(classroomLat, classroomLon, reportedLat, reportedLon)
	return Result{Admit: d <= radiusMeters, DistanceMeters: d}, nil
}

func checkCoords(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return ErrInvalidCoordinates
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// haversine returns the distance between two GPS coordinates in meters.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := lat1 * math.Pi / 180
	p2 := lat2 * math.Pi / 180
	dp := (lat2 - lat1) * math.Pi / 180
	dl := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dp/2)*math.Sin(dp/2) + math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
