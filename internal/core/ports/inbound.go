package ports

import (
	"context"
	"io"

	"github.com/hadassahlevi/tiktax-client/internal/core/domain"
)

// ReceiptArchive is the only integration surface presentation code may
// use: the store's read snapshot plus its action set. No caller goes to
// the gateway or transport directly.
type ReceiptArchive interface {
	Snapshot() ArchiveSnapshot
	CanLoadMore() bool

	Fetch(ctx context.Context, resetPage bool) error
	LoadMore(ctx context.Context) error
	Search(ctx context.Context, query string) error
	SetFilters(ctx context.Context, filter domain.Filter, sort domain.Sort) error
	ClearFilters(ctx context.Context) error

	Upload(ctx context.Context, filename string, image io.Reader) (*domain.Receipt, error)
	Approve(ctx context.Context, id string, patch domain.Patch) error
	Delete(ctx context.Context, id string) error
	Retry(ctx context.Context, id string) error
	FetchOne(ctx context.Context, id string) (*domain.Receipt, error)
	FetchStatistics(ctx context.Context) error

	ClearError()
}

// ArchiveSnapshot is a point-in-time copy of the store's read fields.
// Mutating it has no effect on the store.
type ArchiveSnapshot struct {
	Items      []domain.Receipt
	Total      int
	HasMore    bool
	Filter     domain.Filter
	Sort       domain.Sort
	Current    *domain.Receipt
	Statistics *domain.AggregateStatistics

	IsLoadingList  bool
	IsLoadingStats bool
	IsUploading    bool
	IsProcessing   bool

	Err       error
	UploadErr error
}
