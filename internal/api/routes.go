package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xmedia/internal/dom"
	"github.com/ibeckermayer/xmedia/internal/extractor"
	"github.com/ibeckermayer/xmedia/internal/store"
	"github.com/ibeckermayer/xmedia/internal/types"
)

// Extractor runs one extraction
type Extractor interface {
	Extract(ctx context.Context, req extractor.Request) types.ExtractionOutcome
}

// Store is the persistence the routes read and record to
type Store interface {
	Entry(postID string) (*store.CacheEntry, error)
	RecordExtraction(out types.ExtractionOutcome) error
	History(limit int) ([]store.HistoryEntry, error)
}

// ExtractRequest is the body of POST /api/v1/extract. Select and Index name
// the activated element when the HTML carries no capture marker.
type ExtractRequest struct {
	HTML     string         `json:"html"`
	Location string         `json:"location"`
	Select   string         `json:"select,omitempty"`
	Index    int            `json:"index,omitempty"`
	Options  *types.Options `json:"options,omitempty"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error string `json:"error"`
}

// extract parses the submitted snapshot and runs the engine on it. An
// outcome that found nothing is still a 200.
func extract(engine Extractor, st Store, timeout time.Duration) func(c echo.Context) error {
	return func(c echo.Context) error {
		req := ExtractRequest{}
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		}
		if strings.TrimSpace(req.HTML) == "" {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "html is required"})
		}

		page, err := dom.ParseString(req.HTML, req.Location)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		}

		opts := types.DefaultOptions()
		if req.Options != nil {
			opts = *req.Options
		}
		er := extractor.Request{Page: page, Options: opts}
		if req.Select != "" {
			er.Activated = page.Doc.Find(req.Select).Eq(req.Index)
		}

		ctx := c.Request().Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		out := engine.Extract(ctx, er)
		if st != nil {
			if err := st.RecordExtraction(out); err != nil {
				logrus.WithError(err).Warn("Failed to record extraction")
			}
		}
		return c.JSON(http.StatusOK, out)
	}
}

// cacheEntry returns the cached media of a post, or 404
func cacheEntry(st Store) func(c echo.Context) error {
	return func(c echo.Context) error {
		if st == nil {
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "cache is disabled"})
		}
		entry, err := st.Entry(c.Param("postId"))
		if err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		if entry == nil {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "post not cached"})
		}
		return c.JSON(http.StatusOK, entry)
	}
}

// history returns recent extractions, newest first. ?limit= defaults to 20.
func history(st Store) func(c echo.Context) error {
	return func(c echo.Context) error {
		if st == nil {
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "cache is disabled"})
		}
		limit := 20
		if v := c.QueryParam("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			}
			limit = n
		}

		entries, err := st.History(limit)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		}
		if entries == nil {
			entries = []store.HistoryEntry{}
		}
		return c.JSON(http.StatusOK, entries)
	}
}
