// Package search provides contact search: Meilisearch when configured and
// healthy, with the Postgres ILIKE reader as the contract-defining fallback.
package search

import (
	"context"

	"voicelog/api/internal/store"
)

// Query describes a contact search request.
type Query struct {
	Text   string
	Limit  int
	Offset int
}

// Fallback is the substring reader used when Meilisearch is unavailable. The
// Postgres store satisfies it.
type Fallback interface {
	ListContacts(ctx context.Context, search string, limit, offset int) ([]store.ContactRecord, error)
}
