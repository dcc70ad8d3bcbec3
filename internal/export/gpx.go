package export

import (
	"fmt"
	"io"

	"github.com/tkrajina/gpxgo/gpx"

	"github.com/tbourn/go-location-broker/internal/services"
)

const creator = "location-broker"

// writeGPX emits a GPX 1.1 document with one <trk> and one <trkseg> per segment.
func writeGPX(w io.Writer, t *services.Track) error {
	trk := gpx.GPXTrack{
		Name: fmt.Sprintf("%s %s - %s", t.DevID, t.Start.Format("2006-01-02T15:04:05Z"), t.End.Format("2006-01-02T15:04:05Z")),
	}
	for _, seg := range t.Segments {
		var s gpx.GPXTrackSegment
		for _, p := range seg {
			pt := gpx.GPXPoint{
				Point: gpx.Point{
					Latitude:  p.Lat,
					Longitude: p.Lon,
				},
				Timestamp: p.Time.UTC(),
			}
			if p.Ele != nil {
				pt.Elevation.SetValue(*p.Ele)
			}
			s.Points = append(s.Points, pt)
		}
		trk.Segments = append(trk.Segments, s)
	}

	doc := &gpx.GPX{
		Creator: creator,
		Tracks:  []gpx.GPXTrack{trk},
	}
	b, err := doc.ToXml(gpx.ToXmlParams{Version: "1.1", Indent: true})
	if err != nil {
		return fmt.Errorf("encode gpx: %w", err)
	}
	_, err = w.Write(b)
	return err
}
