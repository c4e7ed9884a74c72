package disaster

import "time"

type Resource struct {
	ID           string    `json:"id"`
	DisasterID   string    `json:"disaster_id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Location     string    `json:"location"`
	LocationName string    `json:"location_name"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	CreatedAt    time.Time `json:"created_at"`
}

// NearbyResource is a resource annotated with its distance from the query point.
type NearbyResource struct {
	Resource
	DistanceMeters float64 `json:"distance_meters"`
}
