// Ingestion HTTP handler.
//
// One IngestHandler is mounted per enabled decoder profile at
// {base}/{app}/{name}. Per request it archives the raw message, decodes the
// JSON body, resolves the datalogger named by the identity headers and hands
// the payload to the ingestion pipeline.
//
// Tracking clients read nothing but the status line, so rejections that
// precede ingestion are plain text, and validation failures still answer 200.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"golang.org/x/text/unicode/norm"

	"github.com/tbourn/go-location-broker/internal/config"
	"github.com/tbourn/go-location-broker/internal/domain"
	"github.com/tbourn/go-location-broker/internal/http/middleware"
	"github.com/tbourn/go-location-broker/internal/services"
)

// Identity headers carrying the username-like and device-like tokens.
const (
	HeaderUser   = "X-Limit-U"
	HeaderDevice = "X-Limit-D"
)

const (
	msgOnlyPost       = "Only POST with JSON body is allowed"
	msgMissingDevice  = "User or device id was not found in headers"
	jsonErrorPrefix   = "JSON ERROR: "
	respStatusOK      = "ok"
	respStatusError   = "error"
	maxPayloadLogSize = 512
)

// Archiver publishes the raw form of an inbound request.
type Archiver interface {
	Archive(ctx context.Context, exchange, domain string, r *http.Request, body []byte, devid string, now time.Time) error
}

// DeviceResolver maps a composite device id to a stored datalogger.
type DeviceResolver interface {
	Resolve(ctx context.Context, devid, decoder string) (*domain.Datalogger, error)
}

// Ingester runs the trackpoint ingestion pipeline.
type Ingester interface {
	Ingest(ctx context.Context, dl *domain.Datalogger, payload map[string]any, user *domain.User) (*domain.Trackpoint, bool, error)
}

// IngestHandler serves one decoder endpoint.
type IngestHandler struct {
	Profile  services.Profile
	Archiver Archiver
	Devices  DeviceResolver
	Ingester Ingester

	// Exchange is the bus exchange raw messages are published to.
	Exchange string
	// ResponseStyle is config.ResponseEmpty or config.ResponseStatus.
	ResponseStyle string
	// Now is the receipt clock.
	Now func() time.Time
}

// NewIngestHandler wires an IngestHandler with the canonical empty response style.
func NewIngestHandler(p services.Profile, a Archiver, d DeviceResolver, in Ingester, exchange string) *IngestHandler {
	return &IngestHandler{
		Profile:       p,
		Archiver:      a,
		Devices:       d,
		Ingester:      in,
		Exchange:      exchange,
		ResponseStyle: config.ResponseEmpty,
		Now:           time.Now,
	}
}

// IngestResponse is the body of the "status" response style.
type IngestResponse struct {
	Status string `json:"status" example:"ok"`
	Msg    string `json:"msg,omitempty" example:"invalid timestamp"`
}

// DeviceID derives the composite datalogger id "{user}_{device}" from the
// identity headers. Both tokens are NFC-normalized and trimmed; the result is
// false when either is empty.
func DeviceID(h http.Header) (string, bool) {
	u := strings.TrimSpace(norm.NFC.String(h.Get(HeaderUser)))
	d := strings.TrimSpace(norm.NFC.String(h.Get(HeaderDevice)))
	if u == "" || d == "" {
		return "", false
	}
	return u + "_" + d, true
}

// Handle godoc
// @ID          ingestTrackpoint
// @Summary     Ingest a location report
// @Description Archives the raw request, then stores the trackpoint it carries. Validation failures are logged and still answered with 200.
// @Tags        Ingestion
// @Accept      json
// @Produce     json
// @Produce     plain
//
// @Param       X-Limit-U  header  string  true   "Username token"  example(alice)
// @Param       X-Limit-D  header  string  true   "Device token"    example(phone)
// @Param       app        path    string  true   "Decoder application"  example(owntracks)
// @Param       name       path    string  true   "Decoder name"         example(owntracks)
// @Param       body       body    object  true   "OwnTracks location payload"
//
// @Success     200  {object}  handlers.IngestResponse  "{} or status object depending on RESPONSE_STYLE"
// @Failure     400  {string}  string                   "Missing identity headers or malformed JSON"
// @Failure     405  {string}  string                   "Not a POST"
// @Failure     413  {object}  handlers.ErrorResponse   "Body too large"
// @Failure     503  {object}  handlers.ErrorResponse   "Bus or store unavailable"
// @Router      /{app}/{name} [post]
func (h *IngestHandler) Handle(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		text(c, http.StatusMethodNotAllowed, msgOnlyPost)
		return
	}

	devid, found := DeviceID(c.Request.Header)
	if !found {
		text(c, http.StatusBadRequest, msgMissingDevice)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge,
				fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
			return
		}
		text(c, http.StatusBadRequest, jsonErrorPrefix+err.Error())
		return
	}

	ctx := c.Request.Context()
	lg := middleware.LoggerFrom(c).With().Str("devid", devid).Str("decoder", h.Profile.ID()).Logger()

	if err := h.Archiver.Archive(ctx, h.Exchange, h.Profile.App, c.Request, body, devid, h.Now()); err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeArchiveFailed, "raw message archival failed")
		return
	}

	payload, err := decodeObject(body)
	if err != nil {
		lg.Warn().Err(err).Str("body", truncate(string(body), maxPayloadLogSize)).Msg("malformed payload")
		text(c, http.StatusBadRequest, jsonErrorPrefix+err.Error())
		return
	}

	dl, err := h.Devices.Resolve(ctx, devid, h.Profile.ID())
	if err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "datalogger lookup failed")
		return
	}

	_, created, err := h.Ingester.Ingest(ctx, dl, payload, middleware.UserFrom(c))
	switch {
	case errors.Is(err, services.ErrValidation):
		lg.Info().Err(err).Msg("trackpoint not stored")
		h.respond(c, err)
	case err != nil:
		fail(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "trackpoint store unavailable")
	default:
		lg.Debug().Bool("created", created).Msg("trackpoint ingested")
		h.respond(c, nil)
	}
}

// respond writes the 200 body selected by ResponseStyle.
func (h *IngestHandler) respond(c *gin.Context, err error) {
	if h.ResponseStyle != config.ResponseStatus {
		ok(c, http.StatusOK, gin.H{})
		return
	}
	if err != nil {
		ok(c, http.StatusOK, IngestResponse{Status: respStatusError, Msg: err.Error()})
		return
	}
	ok(c, http.StatusOK, IngestResponse{Status: respStatusOK})
}

// decodeObject parses body as a single JSON object, keeping numbers as
// json.Number so timestamps survive without float rounding.
func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	obj, isObj := v.(map[string]any)
	if !isObj {
		return nil, fmt.Errorf("expected a JSON object, got %s", jsonKind(v))
	}
	return obj, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	default:
		return "number"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
