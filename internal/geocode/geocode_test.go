package geocode

import (
	"context"
	"errors"
	"testing"
	"time"

	"ridesync/internal/domain/entities"
	"ridesync/pkg/logger"
)

func TestEncodeCell(t *testing.T) {
	tests := []struct {
		lat, lng  float64
		precision int
		want      string
	}{
		{37.7749, -122.4194, 4, "9q8y"},
		{37.7749, -122.4194, 6, "9q8yyk"},
		{0, 0, 1, "s"},
		{-0.1, -0.1, 1, "7"},
	}

	for _, tt := range tests {
		if got := encodeCell(tt.lat, tt.lng, tt.precision); got != tt.want {
			t.Errorf("encodeCell(%f, %f, %d) = %q, expected %q", tt.lat, tt.lng, tt.precision, got, tt.want)
		}
	}
}

func TestBlockAround(t *testing.T) {
	cells := blockAround(37.7749, -122.4194, 4)
	if len(cells) != 9 {
		t.Fatalf("Expected 9 cells, got %d: %v", len(cells), cells)
	}
	if cells[0] != "9q8y" {
		t.Errorf("Expected centre cell first, got %s", cells[0])
	}
	seen := map[string]bool{}
	for _, c := range cells {
		if seen[c] {
			t.Errorf("Duplicate cell %s", c)
		}
		seen[c] = true
	}
}

func TestGazetteer_Search(t *testing.T) {
	g := NewGazetteer()

	tests := []struct {
		query string
		want  string
	}{
		{"San Francisco", "San Francisco, CA"},
		{"sacramento, california", "Sacramento, CA"},
		{"  Palo Alto, CA ", "Palo Alto, CA"},
		{"Downtown Oakland", "Oakland, CA"},
		{"berk", "Berkeley, CA"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p, err := g.Search(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if p.Name != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, p.Name)
			}
		})
	}
}

func TestGazetteer_SearchNoMatch(t *testing.T) {
	g := NewGazetteer()
	for _, q := range []string{"", "Los Angeles", "123, !!"} {
		if _, err := g.Search(context.Background(), q); !errors.Is(err, ErrNoMatch) {
			t.Errorf("Search(%q): expected ErrNoMatch, got %v", q, err)
		}
	}
}

func TestGazetteer_Reverse(t *testing.T) {
	g := NewGazetteer()

	// A few hundred metres from Oakland city centre.
	p, err := g.Reverse(context.Background(), entities.NewLocation(37.80, -122.27))
	if err != nil {
		t.Fatalf("Reverse failed: %v", err)
	}
	if p.Name != "Oakland, CA" {
		t.Errorf("Expected Oakland, CA, got %s", p.Name)
	}

	// Middle of the Pacific.
	if _, err := g.Reverse(context.Background(), entities.NewLocation(30, -140)); !errors.Is(err, ErrNoMatch) {
		t.Errorf("Expected ErrNoMatch, got %v", err)
	}
}

func TestGazetteer_Lookup(t *testing.T) {
	g := NewGazetteer()

	loc, ok := g.Lookup("37.5, -122.1")
	if !ok || loc.Latitude != 37.5 {
		t.Errorf("Expected raw coordinates, got %v %v", loc, ok)
	}
	loc, ok = g.Lookup("Palo Alto")
	if !ok || loc.Latitude != 37.4419 {
		t.Errorf("Expected Palo Alto, got %v %v", loc, ok)
	}
	if _, ok := g.Lookup("Atlantis"); ok {
		t.Error("Expected no match for Atlantis")
	}
}

type failingResolver struct {
	calls int
}

func (f *failingResolver) Search(context.Context, string) (Place, error) {
	f.calls++
	return Place{}, errors.New("quota exceeded")
}

func (f *failingResolver) Reverse(context.Context, entities.Location) (Place, error) {
	f.calls++
	return Place{}, errors.New("quota exceeded")
}

func TestChain_FallsThrough(t *testing.T) {
	online := &failingResolver{}
	chain := NewChain(time.Second, logger.Discard(), online, NewGazetteer())

	p, err := chain.Locate(context.Background(), "Napa")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if p.Name != "Napa, CA" {
		t.Errorf("Expected Napa, CA, got %s", p.Name)
	}
	if online.calls != 1 {
		t.Errorf("Expected the first resolver to be tried once, got %d", online.calls)
	}
}

func TestChain_LabelFallsBackToCoordinates(t *testing.T) {
	chain := NewChain(0, logger.Discard(), &failingResolver{}, NewGazetteer())

	loc := entities.NewLocation(30, -140)
	if got := chain.Label(context.Background(), loc); got != "30.000000, -140.000000" {
		t.Errorf("Expected raw coordinates, got %q", got)
	}
	if got := chain.Label(context.Background(), entities.NewLocation(37.7749, -122.4194)); got != "San Francisco, CA" {
		t.Errorf("Expected San Francisco, CA, got %q", got)
	}
}

func TestChain_LocateCoordinates(t *testing.T) {
	online := &failingResolver{}
	chain := NewChain(0, logger.Discard(), online)

	p, err := chain.Locate(context.Background(), "37.7749, -122.4194")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if p.Location.Longitude != -122.4194 {
		t.Errorf("Expected longitude -122.4194, got %f", p.Location.Longitude)
	}
	if online.calls != 0 {
		t.Errorf("Expected no resolver calls for raw coordinates, got %d", online.calls)
	}
	if _, err := chain.Locate(context.Background(), "Napa"); !errors.Is(err, ErrNoMatch) {
		t.Errorf("Expected ErrNoMatch, got %v", err)
	}
}

func TestShortLabel(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1 Market St, San Francisco, CA 94105, USA", "1 Market St, San Francisco"},
		{"Oakland", "Oakland"},
	}
	for _, tt := range tests {
		if got := shortLabel(tt.in); got != tt.want {
			t.Errorf("shortLabel(%q) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}
