package datatable

// Mode tells where pagination math comes from.
type Mode string

const (
	// ModeServer trusts the page metadata reported by the data source.
	ModeServer Mode = "server"
	// ModeClient paginates a fully loaded list locally.
	ModeClient Mode = "client"
)

// DefaultPageSize is used when a table is created without a page size.
const DefaultPageSize = 10

// PaginationState is recomputed on every fetch completion.
type PaginationState struct {
	Mode       Mode `json:"mode" yaml:"mode"`
	Page       int  `json:"page" yaml:"page"`
	PageSize   int  `json:"pageSize" yaml:"pageSize"`
	TotalItems int  `json:"totalItems" yaml:"totalItems"`
	TotalPages int  `json:"totalPages" yaml:"totalPages"`
}

// HasNext reports whether a page after the current one exists.
func (p PaginationState) HasNext() bool { return p.Page+1 < p.TotalPages }

// HasPrev reports whether a page before the current one exists.
func (p PaginationState) HasPrev() bool { return p.Page > 0 }

// Resolution is the outcome of resolving one fetch result.
type Resolution struct {
	State PaginationState
	// Rows are every row the result holds: the server page in server mode,
	// the full list in client mode.
	Rows []Row
	// Visible is the page slice to display.
	Visible []Row
	// Refetch is set in server mode when the requested page was past the
	// last page; State.Page then holds the clamped page to request.
	Refetch bool
}

// Resolve picks the authoritative pagination source for result and computes
// the visible rows for page.
//
// A paginated result whose metadata is consistent with more than one page is
// trusted as is. A result claiming zero or one page while holding more rows
// than pageSize, and no more elements than rows, is a full list and is
// paginated locally; flat results are treated the same way. Anything else is
// a single server page.
func Resolve(result FetchResult, page, pageSize int) Resolution {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 0 {
		page = 0
	}

	var rows []Row
	var totalElements, totalPages int
	switch r := result.(type) {
	case Paginated:
		rows, totalElements, totalPages = r.Content, r.TotalElements, r.TotalPages
	case *Paginated:
		if r != nil {
			rows, totalElements, totalPages = r.Content, r.TotalElements, r.TotalPages
		}
	case Flat:
		rows, totalElements = r.Rows, len(r.Rows)
	case *Flat:
		if r != nil {
			rows, totalElements = r.Rows, len(r.Rows)
		}
	}
	if rows == nil {
		rows = []Row{}
	}

	switch {
	case totalPages > 1 && totalElements > len(rows):
		state := PaginationState{
			Mode:       ModeServer,
			Page:       page,
			PageSize:   pageSize,
			TotalItems: totalElements,
			TotalPages: totalPages,
		}
		if page > totalPages-1 {
			state.Page = totalPages - 1
			return Resolution{State: state, Rows: rows, Visible: []Row{}, Refetch: true}
		}
		return Resolution{State: state, Rows: rows, Visible: rows}

	case totalPages <= 1 && len(rows) > pageSize && totalElements <= len(rows):
		return paginateLocally(rows, page, pageSize)

	default:
		items := totalElements
		if items < len(rows) {
			items = len(rows)
		}
		state := PaginationState{
			Mode:       ModeServer,
			Page:       0,
			PageSize:   pageSize,
			TotalItems: items,
			TotalPages: 1,
		}
		if page > 0 {
			return Resolution{State: state, Rows: rows, Visible: []Row{}, Refetch: true}
		}
		return Resolution{State: state, Rows: rows, Visible: rows}
	}
}

func paginateLocally(rows []Row, page, pageSize int) Resolution {
	state := PaginationState{
		Mode:       ModeClient,
		PageSize:   pageSize,
		TotalItems: len(rows),
		TotalPages: pageCount(len(rows), pageSize),
	}
	state.Page = ClampPage(page, state.TotalPages)
	return Resolution{State: state, Rows: rows, Visible: Slice(rows, state.Page, pageSize)}
}

// Repaginate recomputes client mode pagination for an already loaded list.
func Repaginate(rows []Row, page, pageSize int) Resolution {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return paginateLocally(rows, page, pageSize)
}

func pageCount(n, pageSize int) int {
	if n <= 0 {
		return 1
	}
	return (n + pageSize - 1) / pageSize
}

// ClampPage clamps page into [0, totalPages-1].
func ClampPage(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages-1 {
		page = totalPages - 1
	}
	if page < 0 {
		page = 0
	}
	return page
}

// Slice returns rows[page*pageSize : page*pageSize+pageSize], bounded by len(rows).
func Slice(rows []Row, page, pageSize int) []Row {
	start := page * pageSize
	if start >= len(rows) || start < 0 {
		return []Row{}
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
