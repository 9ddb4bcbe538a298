package teams

import "math"

// Team represents the reference data for one member of the conference.
// Teams are loaded once per session and never mutated by the engine.
type Team struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Abbreviation   string   `json:"abbreviation" yaml:"abbreviation"`
	City           string   `json:"city" yaml:"city"`
	Conference     string   `json:"conference,omitempty" yaml:"conference,omitempty"`
	Location       Location `json:"location" yaml:"location"`
	PrimaryColor   string   `json:"primaryColor,omitempty" yaml:"primaryColor,omitempty"`
	SecondaryColor string   `json:"secondaryColor,omitempty" yaml:"secondaryColor,omitempty"`
}

// Location is a point in decimal degrees.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between two locations.
func DistanceKm(a, b Location) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Index maps team ids to teams.
type Index map[string]Team

// NewIndex builds an Index from a slice of teams.
func NewIndex(list []Team) Index {
	idx := make(Index, len(list))
	for _, t := range list {
		idx[t.ID] = t
	}
	return idx
}
