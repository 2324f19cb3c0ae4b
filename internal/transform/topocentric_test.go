package transform

import (
	"math"
	"testing"
)

func TestEquatorialToLookAngles_Zenith(t *testing.T) {
	// A body whose declination equals the observer latitude and whose
	// Earth-fixed longitude equals the observer longitude is overhead.
	gmst := 1.234
	obs := NewObserverPosition(35, 20)
	ra := gmst + 20*Deg2Rad
	dec := 35 * Deg2Rad

	la := EquatorialToLookAngles(obs, ra, dec, gmst)
	if math.Abs(la.AltitudeDeg-90.0) > 1e-9 {
		t.Errorf("overhead altitude = %.6f deg, want 90", la.AltitudeDeg)
	}
}

func TestEquatorialToLookAngles_PoleAltitude(t *testing.T) {
	// The celestial pole sits due north at an altitude equal to the latitude.
	for _, lat := range []float64{10, 40, 51.5, 75} {
		la := EquatorialToLookAngles(NewObserverPosition(lat, -3), 0.7, math.Pi/2, 2.1)
		if math.Abs(la.AltitudeDeg-lat) > 1e-9 {
			t.Errorf("pole altitude at lat %.1f = %.6f, want %.1f", lat, la.AltitudeDeg, lat)
		}
		if la.AzimuthDeg > 1e-6 && la.AzimuthDeg < 360-1e-6 {
			t.Errorf("pole azimuth at lat %.1f = %.6f, want 0", lat, la.AzimuthDeg)
		}
	}
}

func TestEquatorialToLookAngles_AzimuthDirections(t *testing.T) {
	obs := NewObserverPosition(0, 0)
	gmst := 0.0

	tests := []struct {
		name   string
		ra     float64
		dec    float64
		wantAz float64
		wantEl float64
	}{
		{"rising due east", 90 * Deg2Rad, 0, 90, 0},
		{"setting due west", -90 * Deg2Rad, 0, 270, 0},
		{"north on horizon", 180 * Deg2Rad, 90 * Deg2Rad, 0, 0},
		{"south at 45", 0, -45 * Deg2Rad, 180, 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			la := EquatorialToLookAngles(obs, tt.ra, tt.dec, gmst)
			if math.Abs(la.AltitudeDeg-tt.wantEl) > 1e-6 {
				t.Errorf("altitude = %.6f, want %.1f", la.AltitudeDeg, tt.wantEl)
			}
			dAz := math.Abs(AngleDiff(la.AzimuthDeg, tt.wantAz))
			if dAz > 1e-6 {
				t.Errorf("azimuth = %.6f, want %.1f", la.AzimuthDeg, tt.wantAz)
			}
		})
	}
}

func TestAltitude_MatchesHourAngleFormula(t *testing.T) {
	// sin h = sinφ sinδ + cosφ cosδ cosH
	gmst := 3.3
	for _, c := range []struct{ lat, lng, ra, dec float64 }{
		{51.5, -0.1, 1.2, 0.4},
		{-33.9, 151.2, 4.0, -0.2},
		{0, 179.9, 6.0, 0.05},
	} {
		H := gmst + c.lng*Deg2Rad - c.ra
		phi := c.lat * Deg2Rad
		want := math.Asin(math.Sin(phi)*math.Sin(c.dec)+math.Cos(phi)*math.Cos(c.dec)*math.Cos(H)) * Rad2Deg
		got := Altitude(c.lat, c.lng, c.ra, c.dec, gmst)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("Altitude(%v) = %.9f, want %.9f", c, got, want)
		}
	}
}
