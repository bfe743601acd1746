package datatable

import "context"

// Query is the request issued to a DataSource. Filter keys the source does
// not recognize are forwarded as-is.
type Query struct {
	Search        string
	Filters       map[string]string
	SortKey       string
	SortDirection SortDirection
	Page          int
	PageSize      int
}

// FetchResult is either Paginated or Flat.
type FetchResult interface {
	isFetchResult()
}

// Paginated is a response carrying server page metadata.
type Paginated struct {
	Content       []Row
	TotalElements int
	TotalPages    int
}

// Flat is a legacy response holding the whole, unpaginated result set.
type Flat struct {
	Rows []Row
}

func (Paginated) isFetchResult() {}
func (Flat) isFetchResult()      {}

// DataSource performs the query for a table.
type DataSource interface {
	Fetch(ctx context.Context, q Query) (FetchResult, error)
}

// DataSourceFunc adapts a function to the DataSource interface.
type DataSourceFunc func(ctx context.Context, q Query) (FetchResult, error)

func (f DataSourceFunc) Fetch(ctx context.Context, q Query) (FetchResult, error) {
	return f(ctx, q)
}

// FailureRecord reports one id a bulk action could not process.
type FailureRecord struct {
	ID    ID     `json:"id" yaml:"id"`
	Error string `json:"error" yaml:"error"`
}

// BulkResponse is the reply of a bulk action. A nil Updated means the
// response did not carry update records at all, which is different from
// an empty list.
type BulkResponse struct {
	Updated []Row
	Failed  []FailureRecord
}

// BulkActionGateway executes a bulk operation against the backend.
type BulkActionGateway interface {
	Execute(ctx context.Context, ids []ID, payload any) (BulkResponse, error)
}

// BulkActionFunc adapts a function to the BulkActionGateway interface.
type BulkActionFunc func(ctx context.Context, ids []ID, payload any) (BulkResponse, error)

func (f BulkActionFunc) Execute(ctx context.Context, ids []ID, payload any) (BulkResponse, error) {
	return f(ctx, ids, payload)
}
