package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/tbourn/go-location-broker/internal/services"
)

var csvHeader = []string{"segment", "time", "lat", "lon", "ele"}

// writeCSV emits one row per point; ele is empty when unknown.
func writeCSV(w io.Writer, t *services.Track) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for i, seg := range t.Segments {
		for _, p := range seg {
			ele := ""
			if p.Ele != nil {
				ele = strconv.FormatFloat(*p.Ele, 'f', -1, 64)
			}
			row := []string{
				strconv.Itoa(i),
				p.Time.UTC().Format(time.RFC3339Nano),
				strconv.FormatFloat(p.Lat, 'f', -1, 64),
				strconv.FormatFloat(p.Lon, 'f', -1, 64),
				ele,
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
