package disaster

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"disasterwatch/internal/errs"
)

const (
	SRID = 4326

	// ResourceRadiusMeters is the fixed proximity radius for resource lookups.
	ResourceRadiusMeters = 10000.0

	earthRadiusMeters = 6371008.8
)

// GeoLocation is the extractor's output for a piece of free text.
type GeoLocation struct {
	Geocode string  `json:"geocode"`
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

type Point struct {
	Lat float64
	Lon float64
}

var wktPoint = regexp.MustCompile(`(?i)^\s*(?:SRID\s*=\s*(\d+)\s*;\s*)?POINT\s*\(\s*([-+0-9.eE]+)\s+([-+0-9.eE]+)\s*\)\s*$`)

// ParsePoint reads "SRID=4326;POINT(lon lat)" or "POINT(lon lat)".
func ParsePoint(wkt string) (Point, error) {
	m := wktPoint.FindStringSubmatch(wkt)
	if m == nil {
		return Point{}, errs.Mark(errs.ErrInvalidArgument, nil, fmt.Sprintf("not a WKT point: %q", wkt))
	}
	if m[1] != "" && m[1] != strconv.Itoa(SRID) {
		return Point{}, errs.Mark(errs.ErrInvalidArgument, nil, fmt.Sprintf("unsupported SRID %s", m[1]))
	}

	lon, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return Point{}, errs.Mark(errs.ErrInvalidArgument, err, "parse longitude")
	}
	lat, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Point{}, errs.Mark(errs.ErrInvalidArgument, err, "parse latitude")
	}

	p := Point{Lat: lat, Lon: lon}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return errs.Mark(errs.ErrInvalidArgument, nil, fmt.Sprintf("latitude %v out of range", p.Lat))
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return errs.Mark(errs.ErrInvalidArgument, nil, fmt.Sprintf("longitude %v out of range", p.Lon))
	}
	return nil
}

// WKT renders the point with the SRID prefix, longitude first.
func (p Point) WKT() string {
	return fmt.Sprintf("SRID=%d;POINT(%s %s)", SRID, formatCoord(p.Lon), formatCoord(p.Lat))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// DistanceMeters is the haversine great-circle distance.
func DistanceMeters(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// BoundingBox covers every point within radius of center. Longitude bounds
// may run past ±180 across the antimeridian; LonRanges folds them back.
// Near the poles the box spans every longitude.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// LonRange is an inclusive longitude interval within [-180, 180].
type LonRange struct {
	Min, Max float64
}

func BoundingBoxAround(center Point, radiusMeters float64) BoundingBox {
	dLat := radiusMeters / earthRadiusMeters * 180 / math.Pi
	box := BoundingBox{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
		MinLon: -180,
		MaxLon: 180,
	}

	cosLat := math.Cos(center.Lat * math.Pi / 180)
	if cosLat > 1e-6 {
		dLon := dLat / cosLat
		if dLon < 180 {
			box.MinLon = center.Lon - dLon
			box.MaxLon = center.Lon + dLon
		}
	}
	return box
}

// LonRanges splits the box's longitude span at the antimeridian.
func (b BoundingBox) LonRanges() []LonRange {
	switch {
	case b.MaxLon-b.MinLon >= 360:
		return []LonRange{{Min: -180, Max: 180}}
	case b.MinLon < -180:
		return []LonRange{{Min: b.MinLon + 360, Max: 180}, {Min: -180, Max: b.MaxLon}}
	case b.MaxLon > 180:
		return []LonRange{{Min: b.MinLon, Max: 180}, {Min: -180, Max: b.MaxLon - 360}}
	default:
		return []LonRange{{Min: b.MinLon, Max: b.MaxLon}}
	}
}
