package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMiles_CoincidentPoints(t *testing.T) {
	d := DistanceMiles(25.7617, -80.1918, 25.7617, -80.1918)
	assert.Equal(t, 0.0, d)
}

func TestDistanceMiles_KnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lng1, lat2, lng2 float64
		want                   float64
		tolerance              float64
	}{
		{
			name: "Miami to Fort Lauderdale",
			lat1: 25.7617, lng1: -80.1918,
			lat2: 26.1224, lng2: -80.1373,
			want: 25.2, tolerance: 1.0,
		},
		{
			name: "Miami to Orlando",
			lat1: 25.7617, lng1: -80.1918,
			lat2: 28.5383, lng2: -81.3792,
			want: 205, tolerance: 5.0,
		},
		{
			name: "Miami to Tampa",
			lat1: 25.7617, lng1: -80.1918,
			lat2: 27.9506, lng2: -82.4572,
			want: 205, tolerance: 10.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DistanceMiles(tt.lat1, tt.lng1, tt.lat2, tt.lng2)
			assert.InDelta(t, tt.want, d, tt.tolerance)
		})
	}
}

func TestDistanceMiles_Symmetric(t *testing.T) {
	d1 := DistanceMiles(25.7617, -80.1918, 28.5383, -81.3792)
	d2 := DistanceMiles(28.5383, -81.3792, 25.7617, -80.1918)
	assert.Equal(t, d1, d2)
}
