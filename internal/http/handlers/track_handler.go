package handlers

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-location-broker/internal/export"
	"github.com/tbourn/go-location-broker/internal/sysutil"
	"github.com/tbourn/go-location-broker/internal/timewindow"
)

// ExportTrack godoc
// @ID          exportTrack
// @Summary     Export a device track
// @Description Reconstructs the track of a datalogger within [start, end], split into segments wherever consecutive points are more than the gap threshold apart, and serializes it. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Dataloggers
// @Produce     application/gpx+xml
// @Produce     application/geo+json
// @Produce     text/csv
//
// @Param       id             path    int     true   "Datalogger ID"                         minimum(1) example(1)
// @Param       start          query   string  false  "Window start (RFC 3339, zone required)"  example(2019-04-23T00:00:00Z)
// @Param       end            query   string  false  "Window end (RFC 3339, zone required); defaults to now"
// @Param       length         query   string  false  "Window length when start is absent (s/m/h/d/w)"  example(1d)
// @Param       format         query   string  false  "Output format"  Enums(gpx, geojson, csv) default(gpx)
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"trk:1:9f86d081\")
//
// @Success     200  {string} string "Serialized track"
// @Header      200  {string} ETag                "Weak ETag for the serialized track"
// @Header      200  {string} Content-Disposition "attachment; filename=track-{id}.{ext}"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Datalogger has no trackpoints"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /dataloggers/{id}/track [get]
func (h *Handlers) ExportTrack(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	length := sysutil.FirstNonEmpty(c.Query("length"), h.defaultLength)
	start, end, err := timewindow.Resolve(c.Query("start"), c.Query("end"), length, h.now())
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	track, err := h.trackSvc.Reconstruct(c.Request.Context(), id, start, end)
	if err != nil {
		failService(c, err, ErrCodeExportFailed)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, track); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeExportFailed, err.Error())
		return
	}

	// Content hash, so a merged point changes the tag even when counts do not.
	hash := fnv.New64a()
	_, _ = hash.Write(buf.Bytes())
	etag := fmt.Sprintf(`W/"trk:%d:%x"`, id, hash.Sum64())
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="track-%d.%s"`, id, format.Extension()))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}
