package params

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// URL: /v1/store/orders?page=2&limit=10
// → ParsePagination() → Pagination{Limit:10, Page:2, Offset:10}
// → store.List...(limit, offset) returns rows + total count
// → ComputeMeta(total) fills TotalPages, HasNext, HasPrev
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Page       int  `json:"page"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

const (
	DefaultLimit = 15
	MaxLimit     = 50
)

// ParsePagination parses ?limit=...&page=... leniently: bad values fall back
// to the defaults.
func ParsePagination(q url.Values) Pagination {
	p := Pagination{Limit: DefaultLimit, Page: 1}

	if limit, err := strconv.Atoi(strings.TrimSpace(q.Get("limit"))); err == nil {
		switch {
		case limit <= 0:
		case limit > MaxLimit:
			p.Limit = MaxLimit
		default:
			p.Limit = limit
		}
	}

	if page, err := strconv.Atoi(strings.TrimSpace(q.Get("page"))); err == nil && page > 0 {
		p.Page = page
	}

	p.Offset = (p.Page - 1) * p.Limit
	return p
}

// ComputeMeta updates pagination after fetching total count.
func (p *Pagination) ComputeMeta(total int) {
	p.Total = total
	if p.Limit > 0 {
		p.TotalPages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	p.HasPrev = p.Page > 1
	p.HasNext = p.Page*p.Limit < total
}
