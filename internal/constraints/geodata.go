package constraints

import (
	"context"

	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
)

// Geodata resolves travel distance between two venues. Implementations may
// call out to an external service and must honor ctx cancellation.
type Geodata interface {
	DistanceKm(ctx context.Context, from, to teams.Location) (float64, error)
}

// GreatCircle computes distances locally from coordinates.
type GreatCircle struct{}

// DistanceKm returns the great-circle distance.
func (GreatCircle) DistanceKm(ctx context.Context, from, to teams.Location) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return teams.DistanceKm(from, to), nil
}
