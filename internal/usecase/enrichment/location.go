package enrichment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"disasterwatch/internal/bootstrap/logging"
	"disasterwatch/internal/domain/disaster"
	"disasterwatch/internal/ports"
)

const opExtractLocation = "extract_location"

type locationAnswer struct {
	Geocode string   `json:"geocode" jsonschema_description:"Geographic point in SRID 4326 WKT format, e.g. 'SRID=4326;POINT(77.5946 12.9716)'"`
	Name    string   `json:"name" jsonschema_description:"Full readable location name, e.g. 'Bangalore, India'"`
	Key     string   `json:"key,omitempty" jsonschema_description:"A unique identifier for the location, e.g. 'geocode-bangalore-india'"`
	Lat     *float64 `json:"lat,omitempty" jsonschema_description:"Latitude of the location, e.g. 12.9716"`
	Lon     *float64 `json:"lon,omitempty" jsonschema_description:"Longitude of the location, e.g. 77.5946"`
}

var locationSchema = schemaFor(&locationAnswer{})

// ExtractLocation geocodes the place a disaster report talks about. hint is the
// location name the reporter gave, if any. Every call reaches the model.
func (s *Service) ExtractLocation(ctx context.Context, title, description, hint string) (disaster.GeoLocation, error) {
	text, err := s.model.GenerateJSON(ctx, ports.GenerateRequest{
		Operation:  opExtractLocation,
		Prompt:     locationPrompt(title, description, hint),
		SchemaName: "geo_location",
		Schema:     locationSchema,
	})
	if err != nil {
		return disaster.GeoLocation{}, upstream(err, "extract location")
	}

	var answer locationAnswer
	if err := decodeStrict(text, locationSchema, &answer); err != nil {
		return disaster.GeoLocation{}, invalidResponse(opExtractLocation, err)
	}

	point, err := disaster.ParsePoint(answer.Geocode)
	if err != nil {
		return disaster.GeoLocation{}, invalidResponse(opExtractLocation, err)
	}
	name := strings.TrimSpace(answer.Name)
	if name == "" {
		return disaster.GeoLocation{}, invalidResponse(opExtractLocation, fmt.Errorf("location name is empty"))
	}

	if answer.Lat != nil && answer.Lon != nil && (*answer.Lat != point.Lat || *answer.Lon != point.Lon) {
		logging.Debug(ctx, "model coordinates disagree with geocode, using geocode",
			slog.String("geocode", answer.Geocode),
			slog.Float64("lat", *answer.Lat),
			slog.Float64("lon", *answer.Lon),
		)
	}

	return disaster.GeoLocation{
		Geocode: point.WKT(),
		Name:    name,
		Lat:     point.Lat,
		Lon:     point.Lon,
	}, nil
}

func locationPrompt(title, description, hint string) string {
	var b strings.Builder
	b.WriteString("Extract location information from the following text. Identify:\n\n")
	b.WriteString("1. Specific addresses (street addresses, building numbers)\n")
	b.WriteString("2. Landmarks (parks, buildings, monuments, schools, hospitals)\n")
	b.WriteString("3. Neighborhoods or districts\n")
	b.WriteString("4. Cities, towns, or municipalities\n")
	b.WriteString("5. Geographic features (rivers, mountains, bridges)\n")
	b.WriteString("6. Intersections (street intersections, highway junctions)\n")
	b.WriteString("7. Postal codes or zip codes\n\n")

	fmt.Fprintf(&b, "Text to analyze: %q\n", title)
	if d := strings.TrimSpace(description); d != "" {
		fmt.Fprintf(&b, "Additional context: %q\n", d)
	}
	if h := strings.TrimSpace(hint); h != "" {
		fmt.Fprintf(&b, "Current location: %q\n", h)
	}

	b.WriteString("\nProvide the location in the following format:\n")
	b.WriteString(`{
  "geocode": "SRID=4326;POINT(longitude latitude)",
  "name": "Full readable location name",
  "key": "unique-location-key",
  "lat": latitude,
  "lon": longitude
}`)
	return b.String()
}
