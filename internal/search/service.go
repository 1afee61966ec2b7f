package search

import (
	"context"
	"log"

	"voicelog/api/internal/store"
)

const reindexPageSize = 500

// Service is the facade that tries Meilisearch first and falls back to the
// Postgres ILIKE reader.
type Service struct {
	meili    *Meili
	fallback Fallback
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured. When Meilisearch recovers after an outage the index is rebuilt
// from the store, so rows upserted while it was down are not lost.
func NewService(meili *Meili, fallback Fallback) *Service {
	s := &Service{meili: meili, fallback: fallback}
	if meili != nil {
		meili.OnRecover(s.reindexAll)
	}
	return s
}

// SearchContacts answers a contact query. Empty-text listings always go to the
// store: it owns the listing contract (created-at ordering, offset paging).
// Meilisearch only enhances non-empty searches, and any Meili error falls back
// to the store's case-insensitive substring reader.
func (s *Service) SearchContacts(ctx context.Context, q Query) ([]store.ContactRecord, error) {
	if q.Text != "" && s.meili != nil && s.meili.Healthy() {
		results, err := s.meili.SearchContacts(q)
		if err == nil {
			return results, nil
		}
		log.Printf("search: meilisearch error, falling back to store: %v", err)
	}
	return s.fallback.ListContacts(ctx, q.Text, q.Limit, q.Offset)
}

// IndexContacts pushes upserted contacts into the search index
// (fire-and-forget to Meilisearch).
func (s *Service) IndexContacts(contacts []store.ContactRecord) {
	if s.meili == nil || !s.meili.Healthy() || len(contacts) == 0 {
		return
	}
	go func() {
		if err := s.meili.IndexContacts(contacts); err != nil {
			log.Printf("search: index contacts: %v", err)
		}
	}()
}

// reindexAll rebuilds the contacts index from the store, page by page.
func (s *Service) reindexAll() {
	ctx := context.Background()
	for offset := 0; ; offset += reindexPageSize {
		contacts, err := s.fallback.ListContacts(ctx, "", reindexPageSize, offset)
		if err != nil {
			log.Printf("search: reindex read contacts: %v", err)
			return
		}
		if len(contacts) == 0 {
			return
		}
		if err := s.meili.IndexContacts(contacts); err != nil {
			log.Printf("search: reindex contacts: %v", err)
			return
		}
		if len(contacts) < reindexPageSize {
			return
		}
	}
}
