package aerodrome

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"unidrome/internal/table"
)

// ErrNoCoordinates is returned when a table has no usable longitude and
// latitude columns.
var ErrNoCoordinates = errors.New("no longitude/latitude columns found")

// sampleSize is the number of rows Detect checks values against.
const sampleSize = 50

// Detection names the coordinate columns of a table.
type Detection struct {
	Lon string
	Lat string
}

// Candidate names in order of preference. Decimal forms come first.
var (
	lonNames = []string{"longitude_deg", "long_decimal", "lon_decimal", "longitude_decimal", "longitude", "lon", "lng", "long", "x"}
	latNames = []string{"latitude_deg", "lat_decimal", "latitude_decimal", "latitude", "lat", "y"}
)

type candidate struct {
	name  string
	score int
}

func rank(names []string, exact []string, fragments ...string) []candidate {
	var out []candidate
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		score := -1
		for i, e := range exact {
			if key == e {
				score = 1000 - i
				break
			}
		}
		if score < 0 {
			for _, f := range fragments {
				if strings.Contains(key, f) {
					score = 100
					if strings.Contains(key, "dec") || strings.Contains(key, "deg") {
						score += 10
					}
					break
				}
			}
		}
		if score >= 0 {
			out = append(out, candidate{name: n, score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out
}

// valuesInRange reports whether every non-blank sample of column parses as
// a number within limit and at least one sample does.
func valuesInRange(samples []table.Row, column string, limit float64) bool {
	seen := 0
	for _, row := range samples {
		v := strings.TrimSpace(row.Get(column))
		if v == "" {
			continue
		}
		f, ok := parseFloat(v)
		if !ok || f < -limit || f > limit {
			return false
		}
		seen++
	}
	return seen > 0
}

// Detect picks the longitude and latitude columns of a table from the
// header names and verifies them against sample rows.
func Detect(header *table.Header, samples []table.Row) (Detection, error) {
	names := header.Names()
	lons := rank(names, lonNames, "longitude", "lon", "lng")
	lats := rank(names, latNames, "latitude", "lat")

	var d Detection
	for _, c := range lons {
		if valuesInRange(samples, c.name, 180) {
			d.Lon = c.name
			break
		}
	}
	for _, c := range lats {
		if c.name == d.Lon {
			continue
		}
		if valuesInRange(samples, c.name, 90) {
			d.Lat = c.name
			break
		}
	}
	if d.Lon == "" || d.Lat == "" {
		return Detection{}, ErrNoCoordinates
	}
	return d, nil
}

// DetectTable runs Detect against the first rows of t.
func DetectTable(t *table.Table) (Detection, error) {
	samples := t.Rows
	if len(samples) > sampleSize {
		samples = samples[:sampleSize]
	}
	return Detect(t.Header, samples)
}
