package geo

import (
	"math"
	"testing"
)

func TestHaversineKm_KnownDistance(t *testing.T) {
	// 東京駅 - 大阪駅: 約403km
	got := HaversineKm(35.6812, 139.7671, 34.7025, 135.4959)
	if math.Abs(got-403) > 5 {
		t.Errorf("HaversineKm() = %v, want 403±5", got)
	}
}

func TestHaversineKm_ZeroDistance(t *testing.T) {
	if got := HaversineKm(51.5, -0.12, 51.5, -0.12); got != 0 {
		t.Errorf("同一地点の距離 = %v, want 0", got)
	}
}

func TestHaversineKm_Antipodal(t *testing.T) {
	// 対蹠点間はおよそ地球半周（約20015km）
	got := HaversineKm(0, 0, 0, 180)
	if math.Abs(got-20015) > 30 {
		t.Errorf("HaversineKm() = %v, want 20015±30", got)
	}
}

func TestHaversineKm_Symmetric(t *testing.T) {
	d1 := HaversineKm(40.7128, -74.0060, 51.5074, -0.1278)
	d2 := HaversineKm(51.5074, -0.1278, 40.7128, -74.0060)
	if math.Abs(d1-d2) > 1e-9 {
		t.Errorf("距離は対称であるべき: %v != %v", d1, d2)
	}
}

func TestValidCoordinates(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"原点", 0, 0, true},
		{"北東端", 90, 180, true},
		{"南西端", -90, -180, true},
		{"緯度超過", 90.1, 0, false},
		{"緯度不足", -90.1, 0, false},
		{"経度超過", 0, 180.1, false},
		{"経度不足", 0, -180.1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidCoordinates(tt.lat, tt.lon); got != tt.want {
				t.Errorf("ValidCoordinates(%v, %v) = %v, want %v", tt.lat, tt.lon, got, tt.want)
			}
		})
	}
}
