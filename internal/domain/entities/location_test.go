package entities

import (
	"errors"
	"testing"
	"time"
)

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in      string
		want    Location
		wantErr bool
	}{
		{"37.7749, -122.4194", NewLocation(37.7749, -122.4194), false},
		{"37.4419,-122.1430", NewLocation(37.4419, -122.1430), false},
		{"San Francisco", Location{}, true},
		{"91, 0", Location{}, true},
		{"1, 2, 3", Location{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocation(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLocation) {
					t.Errorf("Expected ErrInvalidLocation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLocation failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseLocation() = %v, expected %v", got, tt.want)
			}
		})
	}
}

func TestLocation_MicroRoundTrip(t *testing.T) {
	loc := NewLocation(37.804400, -122.271200)
	lat, lng := loc.Micro()
	if lat != 37804400 || lng != -122271200 {
		t.Errorf("Expected micro-degrees 37804400/-122271200, got %d/%d", lat, lng)
	}
	if back := LocationFromMicro(lat, lng); back.String() != loc.String() {
		t.Errorf("Expected %s after round trip, got %s", loc, back)
	}
}

func TestDriver_Ratings(t *testing.T) {
	d := NewDriver("0xdriver", "John Doe", "Tesla Model 3, Black", "DL12345678", time.Now())
	if d.IsAvailable {
		t.Error("Expected new driver to be unavailable")
	}
	if d.AverageRating() != 0 {
		t.Errorf("Expected 0 average for unrated driver, got %v", d.AverageRating())
	}
	d.AddRating(5, time.Now())
	d.AddRating(4, time.Now())
	if d.AverageRating() != 4.5 {
		t.Errorf("Expected 4.5 average, got %v", d.AverageRating())
	}
	if err := d.AddRating(0, time.Now()); !errors.Is(err, ErrInvalidRating) {
		t.Errorf("Expected ErrInvalidRating, got %v", err)
	}
}
