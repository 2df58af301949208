package storage

// CategoryQuery filters category listings.
type CategoryQuery struct {
	Search string
	Skip   int
	Take   int
}

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type PostSortField string

const (
	SortByCreatedAt PostSortField = "createdAt"
	SortByTitle     PostSortField = "title"
)

// PostQuery filters post listings. Empty fields do not filter.
type PostQuery struct {
	AuthorID   string
	CategoryID string
	Status     string
	SearchTerm string
	Skip       int
	Take       int
	SortBy     PostSortField
	SortOrder  SortOrder
}
