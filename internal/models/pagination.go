package models

// PageMeta contains pagination metadata returned in list responses.
type PageMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// ClampPage normalises a requested page number.
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// ClampPageSize normalises a requested page size into [1, 100].
func ClampPageSize(size int) int {
	if size < 1 {
		return 1
	}
	if size > 100 {
		return 100
	}
	return size
}

// NewPageMeta computes the metadata for a clamped page over total rows.
func NewPageMeta(page, size, total int) *PageMeta {
	page = ClampPage(page)
	size = ClampPageSize(size)
	return &PageMeta{
		Page:       page,
		PageSize:   size,
		Total:      total,
		TotalPages: (total + size - 1) / size,
	}
}
