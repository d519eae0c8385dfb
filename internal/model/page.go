package model

import "math"

const (
	FirstPage       = 1
	DefaultPageSize = 10

	// MaxRequestPageSize caps the page size a client may ask for.
	MaxRequestPageSize = 100

	// MaxPageSize is for internal full listings only.
	MaxPageSize = 1 << 30
)

// PageRequest is the pagination part of a query string.
type PageRequest struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"pageSize" json:"pageSize"`
}

// Normalize fills in defaults for missing values and caps the page size.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < FirstPage {
		p.Page = FirstPage
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	return p.Clamp()
}

// Clamp caps PageSize at MaxRequestPageSize.
func (p PageRequest) Clamp() PageRequest {
	if p.PageSize > MaxRequestPageSize {
		p.PageSize = MaxRequestPageSize
	}
	return p
}

// Offset saturates at math.MaxInt instead of overflowing.
func (p PageRequest) Offset() int {
	if p.Page <= FirstPage || p.PageSize <= 0 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.PageSize {
		return math.MaxInt
	}
	return (p.Page - 1) * p.PageSize
}

// Page is one page of results.
type Page[T any] struct {
	Records []T   `json:"records"`
	Total   int64 `json:"total"`
	Current int   `json:"current"`
	Size    int   `json:"size"`
	Pages   int64 `json:"pages"`
}

func NewPage[T any](records []T, total int64, req PageRequest) *Page[T] {
	if records == nil {
		records = []T{}
	}
	var pages int64
	if req.PageSize > 0 {
		pages = (total + int64(req.PageSize) - 1) / int64(req.PageSize)
	}
	return &Page[T]{
		Records: records,
		Total:   total,
		Current: req.Page,
		Size:    req.PageSize,
		Pages:   pages,
	}
}
