package export

import (
	"fmt"
	"io"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/tbourn/go-location-broker/internal/services"
)

// writeGeoJSON emits a single Feature with a MultiLineString geometry, one
// line per segment. Point times and elevations travel in the properties,
// indexed the same way as the coordinates.
func writeGeoJSON(w io.Writer, t *services.Track) error {
	mls := make(orb.MultiLineString, 0, len(t.Segments))
	times := make([][]string, 0, len(t.Segments))
	eles := make([][]*float64, 0, len(t.Segments))
	for _, seg := range t.Segments {
		ls := make(orb.LineString, 0, len(seg))
		ts := make([]string, 0, len(seg))
		es := make([]*float64, 0, len(seg))
		for _, p := range seg {
			ls = append(ls, orb.Point{p.Lon, p.Lat})
			ts = append(ts, p.Time.UTC().Format(time.RFC3339Nano))
			es = append(es, p.Ele)
		}
		mls = append(mls, ls)
		times = append(times, ts)
		eles = append(eles, es)
	}

	f := geojson.NewFeature(mls)
	f.Properties["datalogger_id"] = t.DataloggerID
	f.Properties["devid"] = t.DevID
	f.Properties["start"] = t.Start.UTC().Format(time.RFC3339)
	f.Properties["end"] = t.End.UTC().Format(time.RFC3339)
	f.Properties["times"] = times
	f.Properties["elevations"] = eles

	b, err := f.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	_, err = w.Write(b)
	return err
}
