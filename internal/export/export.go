// Package export serializes reconstructed tracks as GPX, GeoJSON, or CSV.
package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tbourn/go-location-broker/internal/services"
)

// Format names an output encoding.
type Format string

// Supported formats.
const (
	GPX     Format = "gpx"
	GeoJSON Format = "geojson"
	CSV     Format = "csv"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat maps a case-insensitive name to a Format. An empty name
// selects GPX.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return GPX, nil
	case GPX, GeoJSON, CSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w %q (use gpx, geojson or csv)", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case GeoJSON:
		return "application/geo+json"
	case CSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/gpx+xml"
	}
}

// Extension returns the file extension for f, without the dot.
func (f Format) Extension() string { return string(f) }

// Write encodes t to w in format f.
func Write(w io.Writer, f Format, t *services.Track) error {
	switch f {
	case GPX:
		return writeGPX(w, t)
	case GeoJSON:
		return writeGeoJSON(w, t)
	case CSV:
		return writeCSV(w, t)
	default:
		return fmt.Errorf("%w %q", ErrUnknownFormat, string(f))
	}
}
