// Datalogger HTTP handlers.
//
// This file exposes read endpoints over the stored devices and their tracks:
//   - GET /dataloggers            (list, paginated)
//   - GET /dataloggers/{id}       (point statistics)
//   - GET /dataloggers/{id}/track (time-windowed, segmented export)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-location-broker/internal/repo"
	"github.com/tbourn/go-location-broker/internal/services"
	"github.com/tbourn/go-location-broker/internal/timewindow"
	"github.com/tbourn/go-location-broker/internal/utils"
)

//
// Service contracts (context-aware)
//

// DeviceService defines the datalogger read operations consumed by handlers.
type DeviceService interface {
	// ListPage returns a page of dataloggers and the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]repo.DataloggerSummary, int64, error)
	// Stats returns a datalogger with its point count and time span.
	Stats(ctx context.Context, id uint) (*services.DeviceStats, error)
}

// TrackService reconstructs a device's track within a time window.
type TrackService interface {
	Reconstruct(ctx context.Context, dataloggerID uint, start, end time.Time) (*services.Track, error)
}

//
// Handler wiring
//

// Handlers groups the read endpoints for dataloggers and tracks.
type Handlers struct {
	devSvc   DeviceService
	trackSvc TrackService

	// defaultLength is the export window used when neither start nor length is given.
	defaultLength string
	now           func() time.Time
}

// New constructs and returns a Handlers instance bound to the given services.
// An empty defaultLength falls back to timewindow.DefaultLength.
func New(devSvc DeviceService, trackSvc TrackService, defaultLength string) *Handlers {
	if defaultLength == "" {
		defaultLength = timewindow.DefaultLength
	}
	return &Handlers{devSvc: devSvc, trackSvc: trackSvc, defaultLength: defaultLength, now: time.Now}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListDataloggersResponse wraps a page of dataloggers and pagination information.
type ListDataloggersResponse struct {
	Dataloggers []repo.DataloggerSummary `json:"dataloggers"`
	Pagination  Pagination               `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// pathID parses the numeric :id path parameter, writing a 400 when invalid.
func pathID(c *gin.Context) (uint, bool) {
	id, valid := utils.ParseID(c.Param("id"))
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "datalogger id must be a positive integer")
	}
	return id, valid
}

// failService maps a service error onto the error envelope.
func failService(c *gin.Context, err error, code string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrDependency):
		fail(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "store unavailable")
	default:
		fail(c, http.StatusInternalServerError, code, err.Error())
	}
}

//
// Handlers
//

// ListDataloggers godoc
// @ID          listDataloggers
// @Summary     List dataloggers (paginated)
// @Description Returns a page of known devices with their stored point counts.
// @Tags        Dataloggers
// @Produce     json
//
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListDataloggersResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /dataloggers [get]
func (h *Handlers) ListDataloggers(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.devSvc.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		failService(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []repo.DataloggerSummary{}
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListDataloggersResponse{
		Dataloggers: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetDatalogger godoc
// @ID          getDatalogger
// @Summary     Datalogger statistics
// @Description Returns a datalogger with its stored point count and first/last point times.
// @Tags        Dataloggers
// @Produce     json
//
// @Param       id  path  int  true  "Datalogger ID"  minimum(1) example(1)
//
// @Success     200  {object} services.DeviceStats
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Datalogger not found"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /dataloggers/{id} [get]
func (h *Handlers) GetDatalogger(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	st, err := h.devSvc.Stats(c.Request.Context(), id)
	if err != nil {
		failService(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, st)
}
