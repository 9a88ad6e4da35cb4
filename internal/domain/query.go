package domain

import (
	"fmt"
	"strings"
)

// SortField is a server column the collaborator can order by.
type SortField string

const (
	SortCreatedAt SortField = "created_at"
	SortUpdatedAt SortField = "updated_at"
	SortName      SortField = "name"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Flip returns the opposite direction.
func (d SortDirection) Flip() SortDirection {
	if d == SortAsc {
		return SortDesc
	}
	return SortAsc
}

// EnabledFilter narrows a listing by the enabled flag.
type EnabledFilter string

const (
	EnabledAny      EnabledFilter = ""
	EnabledOnly     EnabledFilter = "enabled"
	EnabledDisabled EnabledFilter = "disabled"
)

// Bool returns the wire value of the filter, or nil for "any".
func (f EnabledFilter) Bool() *bool {
	switch f {
	case EnabledOnly:
		v := true
		return &v
	case EnabledDisabled:
		v := false
		return &v
	default:
		return nil
	}
}

// ParseSortField normalizes raw into a SortField.
func ParseSortField(raw string) (SortField, bool) {
	switch field := SortField(strings.ToLower(strings.TrimSpace(raw))); field {
	case SortCreatedAt, SortUpdatedAt, SortName:
		return field, true
	case "createdat", "created":
		return SortCreatedAt, true
	case "updatedat", "updated":
		return SortUpdatedAt, true
	default:
		return "", false
	}
}

// ParseSortDirection accepts asc/desc and the ascend/descend spelling used by table widgets.
func ParseSortDirection(raw string) (SortDirection, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "asc", "ascend", "ascending":
		return SortAsc, true
	case "desc", "descend", "descending":
		return SortDesc, true
	default:
		return "", false
	}
}

// ParseEnabledFilter accepts any/enabled/disabled and true/false.
func ParseEnabledFilter(raw string) (EnabledFilter, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "any", "all":
		return EnabledAny, true
	case "enabled", "true", "on":
		return EnabledOnly, true
	case "disabled", "false", "off":
		return EnabledDisabled, true
	default:
		return "", false
	}
}

// SortRequest is one entry of a (possibly multi-column) sort request from a table widget.
// An empty Direction means descending.
type SortRequest struct {
	Field     SortField
	Direction SortDirection
}

// ServerQuery is the immutable description of the server page to show.
// Every transition returns a new value.
type ServerQuery struct {
	Page     int
	Size     int
	Search   string
	Status   ServerStatus
	Enabled  EnabledFilter
	OrderBy  SortField
	OrderDir SortDirection
}

// DefaultServerQuery is the query a fresh console starts from.
func DefaultServerQuery() ServerQuery {
	return ServerQuery{
		Page:     1,
		Size:     DefaultPageSize,
		OrderBy:  DefaultOrderBy,
		OrderDir: DefaultOrderDir,
	}
}

// WithPage moves to page.
func (q ServerQuery) WithPage(page int) ServerQuery {
	q.Page = page
	return q
}

// WithPageSize changes the page size and keeps the page number.
func (q ServerQuery) WithPageSize(size int) ServerQuery {
	q.Size = size
	return q
}

// WithPagination sets page and size together, as a table pager reports them.
func (q ServerQuery) WithPagination(page, size int) ServerQuery {
	q.Page = page
	q.Size = size
	return q
}

// WithSearch replaces the search text and returns to the first page.
func (q ServerQuery) WithSearch(search string) ServerQuery {
	q.Search = strings.TrimSpace(search)
	q.Page = 1
	return q
}

// WithStatus replaces the status filter and returns to the first page.
func (q ServerQuery) WithStatus(status ServerStatus) ServerQuery {
	q.Status = status
	q.Page = 1
	return q
}

// WithEnabled replaces the enabled filter and returns to the first page.
func (q ServerQuery) WithEnabled(filter EnabledFilter) ServerQuery {
	q.Enabled = filter
	q.Page = 1
	return q
}

// WithSort sets the active sort column and direction.
func (q ServerQuery) WithSort(field SortField, dir SortDirection) ServerQuery {
	q.OrderBy = field
	q.OrderDir = dir
	return q
}

// ToggleSort flips the direction of the active column, or activates field ascending.
func (q ServerQuery) ToggleSort(field SortField) ServerQuery {
	if q.OrderBy == field {
		q.OrderDir = q.OrderDir.Flip()
		return q
	}
	q.OrderBy = field
	q.OrderDir = SortAsc
	return q
}

// ApplySorters folds a widget sort request into the query. Only the first entry is used.
func (q ServerQuery) ApplySorters(sorters []SortRequest) ServerQuery {
	if len(sorters) == 0 || sorters[0].Field == "" {
		return q
	}
	first := sorters[0]
	dir := first.Direction
	if dir == "" {
		dir = SortDesc
	}
	return q.WithSort(first.Field, dir)
}

// NextPage advances one page.
func (q ServerQuery) NextPage() ServerQuery {
	q.Page++
	return q
}

// PrevPage goes back one page, stopping at 1.
func (q ServerQuery) PrevPage() ServerQuery {
	if q.Page > 1 {
		q.Page--
	}
	return q
}

// Validate rejects queries the collaborator would refuse.
func (q ServerQuery) Validate() error {
	const op = "query.validate"
	if q.Page < 1 {
		return Validation(op, fmt.Sprintf("page must be >= 1, got %d", q.Page))
	}
	if q.Size < 1 || q.Size > MaxPageSize {
		return Validation(op, fmt.Sprintf("size must be between 1 and %d, got %d", MaxPageSize, q.Size))
	}
	if _, ok := ParseServerStatus(string(q.Status)); !ok {
		return Validation(op, fmt.Sprintf("unknown status filter %q", q.Status))
	}
	if _, ok := ParseEnabledFilter(string(q.Enabled)); !ok {
		return Validation(op, fmt.Sprintf("unknown enabled filter %q", q.Enabled))
	}
	if _, ok := ParseSortField(string(q.OrderBy)); !ok {
		return Validation(op, fmt.Sprintf("unknown sort field %q", q.OrderBy))
	}
	if q.OrderDir != SortAsc && q.OrderDir != SortDesc {
		return Validation(op, fmt.Sprintf("unknown sort direction %q", q.OrderDir))
	}
	return nil
}

// Request converts the query into the collaborator listing request.
func (q ServerQuery) Request() ServerListRequest {
	return ServerListRequest{
		Page:     q.Page,
		Size:     q.Size,
		Search:   q.Search,
		Status:   q.Status,
		Enabled:  q.Enabled.Bool(),
		OrderBy:  q.OrderBy,
		OrderDir: q.OrderDir,
	}
}

// ServerListRequest is the wire form of a ServerQuery.
type ServerListRequest struct {
	Page     int
	Size     int
	Search   string
	Status   ServerStatus
	Enabled  *bool
	OrderBy  SortField
	OrderDir SortDirection
}

// ServerListResult is one page of servers plus the total match count.
type ServerListResult struct {
	Servers []Server
	Total   int
}
