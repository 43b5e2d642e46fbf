package geocode

import (
	"math"
	"strings"
)

// Places are bucketed by geohash cell so a reverse lookup only measures
// distances to places in the 3x3 block of cells around the query point.
//
// Go Learning Note — Geohash:
// A geohash interleaves longitude and latitude bisection bits and writes
// every 5 bits as one base32 character. Nearby points share a prefix, so a
// short hash names a grid cell. Precision 4 gives cells of roughly
// 39 km x 20 km, about the spacing of the towns in the gazetteer.
const (
	geohashAlphabet = "0123456789bcdefghjkmnpqrstuvwxyz"
	cellPrecision   = 4
)

// encodeCell returns the geohash of (lat, lng) at precision characters.
func encodeCell(lat, lng float64, precision int) string {
	latRange := [2]float64{-90, 90}
	lngRange := [2]float64{-180, 180}

	var hash strings.Builder
	lngBit := true
	for hash.Len() < precision {
		ch := 0
		for bit := 0; bit < 5; bit++ {
			ch <<= 1
			if lngBit {
				ch |= bisect(&lngRange, lng)
			} else {
				ch |= bisect(&latRange, lat)
			}
			lngBit = !lngBit
		}
		hash.WriteByte(geohashAlphabet[ch])
	}
	return hash.String()
}

// bisect narrows r to the half holding v and returns 1 for the upper half.
func bisect(r *[2]float64, v float64) int {
	mid := (r[0] + r[1]) / 2
	if v >= mid {
		r[0] = mid
		return 1
	}
	r[1] = mid
	return 0
}

// cellSize returns the height and width in degrees of a cell at precision.
func cellSize(precision int) (dLat, dLng float64) {
	bits := precision * 5
	lngBits := (bits + 1) / 2
	latBits := bits / 2
	return 180 / math.Pow(2, float64(latBits)), 360 / math.Pow(2, float64(lngBits))
}

// blockAround returns the cell holding (lat, lng) and its eight neighbours.
// Stepping by one cell size from the point always lands in the adjacent
// cell, which avoids the border lookup tables of the classic algorithm.
func blockAround(lat, lng float64, precision int) []string {
	dLat, dLng := cellSize(precision)
	seen := make(map[string]bool, 9)
	cells := make([]string, 0, 9)
	for _, i := range []float64{0, -1, 1} {
		for _, j := range []float64{0, -1, 1} {
			la := math.Max(-90, math.Min(90, lat+i*dLat))
			ln := wrapLongitude(lng + j*dLng)
			cell := encodeCell(la, ln, precision)
			if !seen[cell] {
				seen[cell] = true
				cells = append(cells, cell)
			}
		}
	}
	return cells
}

func wrapLongitude(lng float64) float64 {
	for lng >= 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
