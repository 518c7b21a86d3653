package geo

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	// "@25.6866,-100.3161,17z" as found in shared map URLs.
	atPattern = regexp.MustCompile(`@(-?\d{1,3}\.\d+)\s*,\s*(-?\d{1,3}\.\d+)`)
	// A bare "lat,lon" pair anywhere in the text.
	pairPattern = regexp.MustCompile(`(-?\d{1,3}\.\d+)\s*,\s*(-?\d{1,3}\.\d+)`)
)

// ParseMapLink extracts a coordinate from a map URL or a free-text blob.
// It returns false when nothing usable is found; this is never an error.
func ParseMapLink(text string) (Coordinate, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Coordinate{}, false
	}
	if unescaped, err := url.QueryUnescape(text); err == nil {
		text = unescaped
	}

	for _, re := range []*regexp.Regexp{atPattern, pairPattern} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if c, ok := toCoordinate(m[1], m[2]); ok {
				return c, true
			}
		}
	}
	return Coordinate{}, false
}

func toCoordinate(latStr, lonStr string) (Coordinate, bool) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return Coordinate{}, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return Coordinate{}, false
	}
	c := Coordinate{Lat: lat, Lon: lon}
	return c, c.Valid()
}
