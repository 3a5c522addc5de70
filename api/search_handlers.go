package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/package-search/internal/logger"
	"github.com/gcbaptista/package-search/internal/query"
)

// SearchRequest holds the raw query parameters of GET /api/search.
// Malformed numbers and flags are not rejected; they fall back to defaults.
type SearchRequest struct {
	Query        string
	Order        string
	Offset       int
	Limit        int
	Tags         []string
	Discontinued bool
}

// parseSearchRequest reads the search parameters. Repeated tag parameters and
// comma-separated tag lists are both accepted.
func parseSearchRequest(c *gin.Context) SearchRequest {
	req := SearchRequest{
		Query:  c.Query("q"),
		Order:  c.Query("order"),
		Offset: atoiOrZero(c.Query("offset")),
		Limit:  atoiOrZero(c.Query("limit")),
	}
	for _, raw := range c.QueryArray("tag") {
		req.Tags = append(req.Tags, strings.Split(raw, ",")...)
	}
	if v, err := strconv.ParseBool(c.Query("discontinued")); err == nil {
		req.Discontinued = v
	}
	return req
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// SearchHandler answers GET /api/search against the published snapshot.
func (api *API) SearchHandler(c *gin.Context) {
	req := parseSearchRequest(c)

	searchQuery := query.Parse(req.Query, req.Order, req.Offset, req.Limit, req.Tags, api.engine.Settings())
	searchQuery.IncludeDiscontinued = req.Discontinued

	result, err := api.engine.Search(c.Request.Context(), searchQuery)
	if err != nil {
		SendEngineError(c, "search", err)
		return
	}

	logger.FromContext(c.Request.Context()).Debug("search completed",
		"query", req.Query,
		"order", searchQuery.Order,
		"total", result.TotalCount)

	c.JSON(http.StatusOK, result)
}
