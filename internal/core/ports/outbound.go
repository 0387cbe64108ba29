package ports

import (
	"context"
	"io"

	"github.com/hadassahlevi/tiktax-client/internal/core/domain"
)

// ReceiptGateway is the typed operation set against the remote receipts
// service. Implementations are stateless pass-throughs over the
// transport; all collection state lives in the store.
type ReceiptGateway interface {
	List(ctx context.Context, filter domain.Filter, sort domain.Sort, page, pageSize int) (domain.Page, error)
	Get(ctx context.Context, id string) (*domain.Receipt, error)
	Upload(ctx context.Context, filename string, image io.Reader) (string, error)
	Update(ctx context.Context, id string, patch domain.Patch) (*domain.Receipt, error)
	Delete(ctx context.Context, id string) error
	RetryInterpretation(ctx context.Context, id string) error
	Statistics(ctx context.Context, filter domain.Filter) (*domain.AggregateStatistics, error)
}

// AuthGateway establishes a session with the remote service.
type AuthGateway interface {
	Login(ctx context.Context, email, password string) (domain.Credentials, error)
}
