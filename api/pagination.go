package api

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 100
	maxPage          = 1000000
)

// PaginationParams holds pagination query parameters
type PaginationParams struct {
	Page  int `json:"page"`  // 1-based page number
	Limit int `json:"limit"` // Items per page
}

// PaginationResponse is a generic paginated response wrapper
type PaginationResponse struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// ParsePaginationParams extracts pagination parameters from the query. Absent
// values take their defaults; present values must be in range.
func ParsePaginationParams(r *http.Request, defaultLimit int, maxLimit int) (PaginationParams, error) {
	params := PaginationParams{Page: 1, Limit: defaultLimit}
	query := r.URL.Query()

	if p := query.Get("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 1 {
			return params, fmt.Errorf("page must be a positive integer")
		}
		params.Page = min(parsed, maxPage)
	}

	if l := query.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > maxLimit {
			return params, fmt.Errorf("limit must be an integer between 1 and %d", maxLimit)
		}
		params.Limit = parsed
	}

	return params, nil
}

// CalculateOffset converts page and limit to a row offset
func (p PaginationParams) CalculateOffset() int {
	pageMinusOne := p.Page - 1
	if pageMinusOne <= 0 {
		return 0
	}
	if p.Limit > 0 && pageMinusOne > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return pageMinusOne * p.Limit
}

// NewPaginationResponse creates a paginated response
func NewPaginationResponse(items interface{}, total int64, page int, limit int) PaginationResponse {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	if totalPages < 1 {
		totalPages = 1
	}

	return PaginationResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}
