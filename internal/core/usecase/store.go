package usecase

import (
	"context"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hadassahlevi/tiktax-client/internal/core/domain"
	"github.com/hadassahlevi/tiktax-client/internal/core/ports"
)

const (
	defaultPageSize = 20
	// maxInterpretationRetries bounds retries of a failed
	// interpretation per receipt.
	maxInterpretationRetries = 3

	minSearchLength = 2
)

// ReceiptStore is the single source of truth for the in-memory
// collection page, the active filter/sort criteria, the receipt under
// review, aggregate statistics and the scoped busy/error flags.
//
// A generation marker guards the collection against stale fetches: any
// criteria change bumps the generation, and a list response tagged with
// a superseded generation is dropped when it resolves. In-flight
// requests are never cancelled at the transport level; they are only
// ignored.
type ReceiptStore struct {
	gateway  ports.ReceiptGateway
	pageSize int
	now      func() time.Time

	mu           sync.Mutex
	items        []domain.Receipt
	total        int
	hasMore      bool
	filter       domain.Filter
	sort         domain.Sort
	page         int
	generation   uint64
	current      *domain.Receipt
	stats        *domain.AggregateStatistics
	retries      map[string]int
	mutating     map[string]bool
	listInflight int
	loadingStats bool
	uploading    bool
	err          error
	uploadErr    error
}

var _ ports.ReceiptArchive = (*ReceiptStore)(nil)

type StoreOption func(*ReceiptStore)

func WithPageSize(size int) StoreOption {
	return func(s *ReceiptStore) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *ReceiptStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewReceiptStore(gateway ports.ReceiptGateway, opts ...StoreOption) *ReceiptStore {
	s := &ReceiptStore{
		gateway:  gateway,
		pageSize: defaultPageSize,
		now:      time.Now,
		sort:     domain.DefaultSort(),
		retries:  make(map[string]int),
		mutating: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch loads a collection page. With resetPage the current page is
// replaced outright and any in-flight list result becomes stale;
// otherwise the next page is appended to the end.
func (s *ReceiptStore) Fetch(ctx context.Context, resetPage bool) error {
	s.mu.Lock()
	if !resetPage && s.listInflight > 0 {
		s.mu.Unlock()
		return nil
	}
	if resetPage {
		s.generation++
		s.page = 0
	}
	gen := s.generation
	nextPage := s.page + 1
	filter, sort := s.filter, s.sort
	s.listInflight++
	s.err = nil
	s.mu.Unlock()

	page, err := s.gateway.List(ctx, filter, sort, nextPage, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listInflight--

	if gen != s.generation {
		// Criteria changed while this fetch was in flight; the result
		// no longer matches what the caller is looking at.
		return nil
	}
	if err != nil {
		s.err = err
		return err
	}

	if resetPage {
		s.items = append([]domain.Receipt(nil), page.Items...)
	} else {
		s.items = append(s.items, page.Items...)
	}
	s.total = page.Total
	s.hasMore = len(page.Items) == s.pageSize
	s.page = nextPage
	return nil
}

// LoadMore appends the next page. It is an idempotent no-op while a
// list fetch is in flight or when no further pages exist.
func (s *ReceiptStore) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.listInflight > 0 || !s.hasMore {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.Fetch(ctx, false)
}

// Search treats the query as a filter mutation. Queries shorter than
// two characters are ignored rather than sent; an empty query clears
// the search criterion.
func (s *ReceiptStore) Search(ctx context.Context, query string) error {
	if query != "" && utf8.RuneCountInString(query) < minSearchLength {
		return nil
	}
	s.mu.Lock()
	s.filter.Search = query
	s.mu.Unlock()
	return s.Fetch(ctx, true)
}

// SetFilters replaces the criteria and refetches the first page. Stale
// pages under changed criteria are never shown.
func (s *ReceiptStore) SetFilters(ctx context.Context, filter domain.Filter, sort domain.Sort) error {
	s.mu.Lock()
	s.filter = filter
	if sort.Field != "" {
		s.sort = sort
	}
	s.mu.Unlock()
	return s.Fetch(ctx, true)
}

func (s *ReceiptStore) ClearFilters(ctx context.Context) error {
	s.mu.Lock()
	s.filter = domain.Filter{}
	s.sort = domain.DefaultSort()
	s.mu.Unlock()
	return s.Fetch(ctx, true)
}

// Upload creates a receipt from an image. Nothing is added to the
// collection page; on success the new pending receipt becomes the
// current item under review and the next list fetch will include it.
// Upload failures land on their own error flag so upload UI and list
// UI cannot interfere.
func (s *ReceiptStore) Upload(ctx context.Context, filename string, image io.Reader) (*domain.Receipt, error) {
	s.mu.Lock()
	if s.uploading {
		s.mu.Unlock()
		return nil, domain.WrapError(domain.ErrConflict, "upload",
			&domain.FieldError{Field: "image", Reason: "an upload is already in flight"})
	}
	s.uploading = true
	s.uploadErr = nil
	s.mu.Unlock()

	id, err := s.gateway.Upload(ctx, filename, image)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploading = false
	if err != nil {
		s.uploadErr = err
		return nil, err
	}

	now := s.now()
	receipt := domain.Receipt{
		ID:        id,
		Status:    domain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.current = &receipt

	out := receipt
	return &out, nil
}

// Approve validates locally, then sends the approval patch. A failing
// predicate blocks the network call entirely. On success the entry is
// replaced in place, preserving its position, and the current item is
// cleared if it matches.
func (s *ReceiptStore) Approve(ctx context.Context, id string, patch domain.Patch) error {
	s.mu.Lock()
	receipt := s.findLocked(id)
	if receipt == nil {
		s.mu.Unlock()
		return domain.WrapError(domain.ErrNotFound, "approve", &domain.FieldError{Field: "id", Reason: "unknown receipt"})
	}
	if !domain.CanTransition(receipt.Status, domain.StatusApproved) {
		s.mu.Unlock()
		return domain.WrapError(domain.ErrValidation, "approve",
			&domain.FieldError{Field: "status", Reason: "only a processing receipt can be approved"})
	}
	if err := domain.ValidateForApproval(*receipt, patch, s.now()); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.beginMutationLocked(id); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	approved := domain.StatusApproved
	patch.Status = &approved
	updated, err := s.gateway.Update(ctx, id, patch)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.endMutationLocked(id)
	if err != nil {
		s.err = err
		return err
	}

	s.replaceLocked(*updated)
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	return nil
}

// Delete removes the receipt remotely, then from the collection page.
// The removal is deliberately not optimistic: a failed delete must not
// desync the visible list from server truth.
func (s *ReceiptStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if err := s.beginMutationLocked(id); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	err := s.gateway.Delete(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.endMutationLocked(id)
	if err != nil {
		s.err = err
		return err
	}

	for i := range s.items {
		if s.items[i].ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.total--
			break
		}
	}
	if s.current != nil && s.current.ID == id {
		s.current = nil
	}
	return nil
}

// Retry re-enqueues a failed interpretation without re-uploading the
// image. Attempts are bounded per receipt; on success the local copy is
// marked processing.
func (s *ReceiptStore) Retry(ctx context.Context, id string) error {
	s.mu.Lock()
	receipt := s.findLocked(id)
	if receipt == nil {
		s.mu.Unlock()
		return domain.WrapError(domain.ErrNotFound, "retry", &domain.FieldError{Field: "id", Reason: "unknown receipt"})
	}
	if !domain.CanTransition(receipt.Status, domain.StatusProcessing) || receipt.Status != domain.StatusFailed {
		s.mu.Unlock()
		return domain.WrapError(domain.ErrValidation, "retry",
			&domain.FieldError{Field: "status", Reason: "only a failed receipt can be retried"})
	}
	if s.retries[id] >= maxInterpretationRetries {
		s.mu.Unlock()
		return domain.WrapError(domain.ErrRetryExhausted, "retry",
			&domain.FieldError{Field: "id", Reason: "interpretation retry limit reached"})
	}
	if err := s.beginMutationLocked(id); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	err := s.gateway.RetryInterpretation(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.endMutationLocked(id)
	if err != nil {
		s.err = err
		return err
	}

	s.retries[id]++
	s.markStatusLocked(id, domain.StatusProcessing)
	return nil
}

// FetchOne re-fetches a single receipt; the server is authoritative and
// the local copy reflects it verbatim. The fetched receipt becomes the
// current item under review.
func (s *ReceiptStore) FetchOne(ctx context.Context, id string) (*domain.Receipt, error) {
	receipt, err := s.gateway.Get(ctx, id)
	if err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.replaceLocked(*receipt)
	copied := *receipt
	s.current = &copied
	s.mu.Unlock()

	out := *receipt
	return &out, nil
}

// FetchStatistics replaces the aggregate snapshot wholesale; partial
// results are never merged.
func (s *ReceiptStore) FetchStatistics(ctx context.Context) error {
	s.mu.Lock()
	if s.loadingStats {
		s.mu.Unlock()
		return nil
	}
	s.loadingStats = true
	filter := s.filter
	s.mu.Unlock()

	stats, err := s.gateway.Statistics(ctx, filter)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingStats = false
	if err != nil {
		s.err = err
		return err
	}
	s.stats = stats
	return nil
}

// ClearError resets both error flags so a stale error does not persist
// across unrelated actions.
func (s *ReceiptStore) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = nil
	s.uploadErr = nil
}

func (s *ReceiptStore) beginMutationLocked(id string) error {
	if s.mutating[id] {
		return domain.WrapError(domain.ErrConflict, "mutate",
			&domain.FieldError{Field: "id", Reason: "a mutation for this receipt is already in flight"})
	}
	s.mutating[id] = true
	return nil
}

func (s *ReceiptStore) endMutationLocked(id string) {
	delete(s.mutating, id)
}

func (s *ReceiptStore) findLocked(id string) *domain.Receipt {
	for i := range s.items {
		if s.items[i].ID == id {
			return &s.items[i]
		}
	}
	if s.current != nil && s.current.ID == id {
		return s.current
	}
	return nil
}

// replaceLocked swaps the matching entry in place, preserving its
// position in the collection page.
func (s *ReceiptStore) replaceLocked(receipt domain.Receipt) {
	for i := range s.items {
		if s.items[i].ID == receipt.ID {
			s.items[i] = receipt
			return
		}
	}
}

func (s *ReceiptStore) markStatusLocked(id string, status domain.ReceiptStatus) {
	for i := range s.items {
		if s.items[i].ID == id {
			s.items[i].Status = status
		}
	}
	if s.current != nil && s.current.ID == id {
		s.current.Status = status
	}
}

// observe applies a server-reported receipt state. Used by the
// interpretation watcher; the server is authoritative so no client-side
// transition check applies. A receipt the store has never seen becomes
// the current item under review, so a standalone watch still lands its
// observations.
func (s *ReceiptStore) observe(receipt domain.Receipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(receipt.ID) == nil {
		copied := receipt
		s.current = &copied
		return
	}
	s.replaceLocked(receipt)
	if s.current != nil && s.current.ID == receipt.ID {
		copied := receipt
		s.current = &copied
	}
}
