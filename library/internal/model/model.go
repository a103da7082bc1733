package model

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// keeps (page-1)*size inside int32 range
	maxPage = 1 << 24
)

// Normalize clamps page/size to sane values; page is 1-based.
func (p Paging) Normalize() Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > maxPage {
		p.Page = maxPage
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

func (p Paging) Offset() uint64 {
	return uint64((p.Page - 1) * p.PageSize)
}
