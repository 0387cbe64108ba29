package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/hadassahlevi/tiktax-client/internal/core/domain"
	"github.com/hadassahlevi/tiktax-client/internal/core/ports"
	"github.com/hadassahlevi/tiktax-client/internal/infrastructure/upload"
	"github.com/hadassahlevi/tiktax-client/internal/observability/metrics"
)

// Gateway is the typed operation set over the transport. It owns no
// state; every call is a pass-through.
type Gateway struct {
	client  *Client
	metrics *metrics.ClientMetrics
}

var _ ports.ReceiptGateway = (*Gateway)(nil)
var _ ports.AuthGateway = (*Gateway)(nil)

func NewGateway(client *Client, m *metrics.ClientMetrics) *Gateway {
	return &Gateway{client: client, metrics: m}
}

type listResponse struct {
	Items []domain.Receipt `json:"items"`
	Total int              `json:"total"`
}

func (g *Gateway) List(ctx context.Context, filter domain.Filter, sort domain.Sort, page, pageSize int) (domain.Page, error) {
	query := url.Values{}
	filter.Encode(query)
	sort.Encode(query)
	domain.EncodePage(query, page, pageSize)

	var resp listResponse
	if err := g.client.getJSON(ctx, "list_receipts", "/receipts", query, &resp); err != nil {
		return domain.Page{}, err
	}
	return domain.Page{
		Items:   resp.Items,
		Total:   resp.Total,
		HasMore: len(resp.Items) == pageSize,
	}, nil
}

func (g *Gateway) Get(ctx context.Context, id string) (*domain.Receipt, error) {
	var receipt domain.Receipt
	if err := g.client.getJSON(ctx, "get_receipt", "/receipts/"+url.PathEscape(id), nil, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Upload sends raw image bytes and returns the server-assigned id. The
// file is sniffed locally first; an unsupported or corrupt file never
// reaches the network. The idempotency key makes the transport's
// at-most-one 401 replay safe against double creation.
func (g *Gateway) Upload(ctx context.Context, filename string, image io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(image, upload.MaxUploadBytes+1))
	if err != nil {
		return "", domain.WrapError(domain.ErrUploadFailed, "upload_receipt", err)
	}
	if len(data) > upload.MaxUploadBytes {
		g.metrics.RecordUpload("too_large")
		return "", domain.WrapError(domain.ErrValidation, "upload_receipt",
			&domain.FieldError{Field: "image", Reason: "exceeds the maximum upload size"})
	}

	contentType, err := upload.Sniff(filename, data)
	if err != nil {
		g.metrics.RecordUpload("rejected")
		return "", err
	}

	header := http.Header{}
	header.Set("Idempotency-Key", uuid.NewString())
	header.Set("X-Upload-Filename", filename)

	var resp struct {
		ID string `json:"id"`
	}
	if err := g.client.postRaw(ctx, "upload_receipt", "/receipts", contentType, header, data, &resp); err != nil {
		g.metrics.RecordUpload("error")
		return "", domain.WrapError(domain.ErrUploadFailed, "upload_receipt", err)
	}
	if resp.ID == "" {
		g.metrics.RecordUpload("error")
		return "", domain.WrapError(domain.ErrUploadFailed, "upload_receipt", fmt.Errorf("response missing receipt id"))
	}
	g.metrics.RecordUpload("ok")
	return resp.ID, nil
}

func (g *Gateway) Update(ctx context.Context, id string, patch domain.Patch) (*domain.Receipt, error) {
	var receipt domain.Receipt
	if err := g.client.putJSON(ctx, "update_receipt", "/receipts/"+url.PathEscape(id), patch, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (g *Gateway) Delete(ctx context.Context, id string) error {
	return g.client.delete(ctx, "delete_receipt", "/receipts/"+url.PathEscape(id))
}

func (g *Gateway) RetryInterpretation(ctx context.Context, id string) error {
	return g.client.postJSON(ctx, "retry_interpretation", "/receipts/"+url.PathEscape(id)+"/retry", struct{}{}, nil)
}

func (g *Gateway) Statistics(ctx context.Context, filter domain.Filter) (*domain.AggregateStatistics, error) {
	query := url.Values{}
	filter.Encode(query)

	var stats domain.AggregateStatistics
	if err := g.client.getJSON(ctx, "fetch_statistics", "/receipts/statistics", query, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (g *Gateway) Login(ctx context.Context, email, password string) (domain.Credentials, error) {
	payload := map[string]string{"email": email, "password": password}
	var creds domain.Credentials
	if err := g.client.postJSON(ctx, "login", "/auth/login", payload, &creds); err != nil {
		return domain.Credentials{}, err
	}
	return creds, nil
}
