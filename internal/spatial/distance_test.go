package spatial

import (
	"math"
	"testing"
)

func TestHaversineDistance(t *testing.T) {
	// Seoul Station to City Hall Station, roughly 1.4km.
	d := HaversineDistance(37.5546, 126.9706, 37.5663, 126.9779)
	if d < 1300 || d > 1600 {
		t.Fatalf("distance=%.1fm, want ~1.4km", d)
	}
	if got := HaversineDistance(37.1, 127.2, 37.1, 127.2); got != 0 {
		t.Fatalf("same point distance=%v", got)
	}
}

func TestValidCoordinate(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     bool
	}{
		{37.1, 127.2, true},
		{-90, -180, true},
		{90.5, 0, false},
		{0, 181, false},
		{math.NaN(), 0, false},
	}
	for _, c := range cases {
		if got := ValidCoordinate(c.lat, c.lon); got != c.want {
			t.Fatalf("ValidCoordinate(%v,%v)=%v want %v", c.lat, c.lon, got, c.want)
		}
	}
}
