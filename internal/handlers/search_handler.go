package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/anuwat/filehub/internal/search"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SearchHandler serves full-text queries against the file index.
type SearchHandler struct {
	store search.Store
}

func NewSearchHandler(store search.Store) *SearchHandler {
	return &SearchHandler{store: store}
}

type searchResponse struct {
	Query      string       `json:"query"`
	Page       int          `json:"page"`
	Size       int          `json:"size"`
	Total      int          `json:"total"`
	TotalPages int          `json:"totalPages"`
	Hits       []search.Hit `json:"hits"`
}

// Search runs ?q against file names, paths and extracted content. A blank
// query returns an empty result without touching the index.
func (h *SearchHandler) Search(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	page := parsePositive(c.QueryParam("page"), 1)
	size := parsePositive(c.QueryParam("size"), defaultPageSize)
	if size > maxPageSize {
		size = maxPageSize
	}

	resp := searchResponse{Query: query, Page: page, Size: size, Hits: []search.Hit{}}
	if query == "" {
		return c.JSON(http.StatusOK, resp)
	}

	result, err := h.store.Search(c.Request().Context(), query, page, size)
	if err != nil {
		return respondError(c, err)
	}

	resp.Total = result.Total
	resp.TotalPages = (result.Total + size - 1) / size
	if result.Hits != nil {
		resp.Hits = result.Hits
	}
	return c.JSON(http.StatusOK, resp)
}

func parsePositive(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
