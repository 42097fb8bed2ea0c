package models

// EntityKindDrone is the kind reported for entities decoded from the
// latest-position endpoint
const EntityKindDrone = "drone"

// EntityPosition is the most recent position of a simulated entity.
// It is produced per poll and never persisted.
type EntityPosition struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Kind      string  `json:"kind"`
}

// LatestEntityResponse is the wire shape of GET /api/sim/latest
type LatestEntityResponse struct {
	ObjectID  string  `json:"objectId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Position converts the response to a drone position
func (r LatestEntityResponse) Position() EntityPosition {
	return EntityPosition{
		ID:        r.ObjectID,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Kind:      EntityKindDrone,
	}
}
