package models

import "encoding/json"

// HeatmapPayload is the heatmap document exactly as the server returned it.
// Its structure belongs to the map renderer and is not validated here.
type HeatmapPayload json.RawMessage

// MarshalJSON embeds the payload verbatim
func (p HeatmapPayload) MarshalJSON() ([]byte, error) {
	return rawOrNull(p), nil
}

// RoutePayload is the real-road trip document from GET /api/sim/real-od,
// forwarded unmodified
type RoutePayload json.RawMessage

// MarshalJSON embeds the payload verbatim
func (p RoutePayload) MarshalJSON() ([]byte, error) {
	return rawOrNull(p), nil
}

func rawOrNull(b []byte) []byte {
	if len(b) == 0 {
		return []byte("null")
	}
	return b
}
