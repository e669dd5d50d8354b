package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type PaginationParams struct {
	Limit  int
	Offset int
}

type PageInfo struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func ParsePagination(c *gin.Context) PaginationParams {
	p := PaginationParams{Limit: DefaultLimit}

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			p.Limit = l
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o > 0 {
			p.Offset = o
		}
	}

	return p
}

// Paginate slices items to the requested page.
func Paginate[T any](items []T, p PaginationParams) ([]T, PageInfo) {
	info := PageInfo{Total: len(items), Limit: p.Limit, Offset: p.Offset}
	if p.Offset >= len(items) {
		return []T{}, info
	}
	end := min(p.Offset+p.Limit, len(items))
	info.HasMore = end < len(items)
	return items[p.Offset:end], info
}
