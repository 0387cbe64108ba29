package usecase

import (
	"github.com/hadassahlevi/tiktax-client/internal/core/domain"
	"github.com/hadassahlevi/tiktax-client/internal/core/ports"
)

// Snapshot returns a point-in-time copy of the store's read fields.
// Presentation code reads state exclusively through this; internal
// mutation paths stay unexported.
func (s *ReceiptStore) Snapshot() ports.ArchiveSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := ports.ArchiveSnapshot{
		Items:   append([]domain.Receipt(nil), s.items...),
		Total:   s.total,
		HasMore: s.hasMore,
		Filter:  s.filter,
		Sort:    s.sort,

		IsLoadingList:  s.listInflight > 0,
		IsLoadingStats: s.loadingStats,
		IsUploading:    s.uploading,
		IsProcessing:   len(s.mutating) > 0,

		Err:       s.err,
		UploadErr: s.uploadErr,
	}
	if s.current != nil {
		current := *s.current
		snap.Current = &current
	}
	if s.stats != nil {
		stats := *s.stats
		snap.Statistics = &stats
	}
	return snap
}

// CanLoadMore reports whether a LoadMore call would issue a request.
func (s *ReceiptStore) CanLoadMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore && s.listInflight == 0
}
