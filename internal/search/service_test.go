package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"voicelog/api/internal/store"
)

type fakeFallback struct {
	contacts []store.ContactRecord
	calls    int
	lastText string
}

func (f *fakeFallback) ListContacts(_ context.Context, search string, limit, offset int) ([]store.ContactRecord, error) {
	f.calls++
	f.lastText = search
	if offset >= len(f.contacts) {
		return nil, nil
	}
	return f.contacts, nil
}

// stubMeili fakes just enough of the Meilisearch HTTP API: a healthy /health,
// counters for search and document-addition calls, and empty success bodies
// for everything else.
type stubMeili struct {
	server        *httptest.Server
	searchCalls   atomic.Int64
	documentCalls atomic.Int64
}

func newStubMeili(t *testing.T) *stubMeili {
	t.Helper()
	stub := &stubMeili{}
	stub.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/health":
			_, _ = w.Write([]byte(`{"status":"available"}`))
		case strings.HasSuffix(r.URL.Path, "/search"):
			stub.searchCalls.Add(1)
			_, _ = w.Write([]byte(`{"hits":[],"estimatedTotalHits":0}`))
		case strings.HasSuffix(r.URL.Path, "/documents"):
			stub.documentCalls.Add(1)
			_, _ = w.Write([]byte(`{"taskUid":1}`))
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	t.Cleanup(stub.server.Close)
	return stub
}

func TestEmptyTextListingAlwaysUsesStore(t *testing.T) {
	stub := newStubMeili(t)
	meiliClient := NewMeili(stub.server.URL, "")
	defer meiliClient.Close()
	if !meiliClient.Healthy() {
		t.Fatal("stub meilisearch should report healthy")
	}

	fallback := &fakeFallback{contacts: []store.ContactRecord{{ID: 1, ContactName: "Carol Ames"}}}
	svc := NewService(meiliClient, fallback)

	contacts, err := svc.SearchContacts(context.Background(), Query{Text: "", Limit: 100})
	if err != nil {
		t.Fatalf("SearchContacts failed: %v", err)
	}
	if len(contacts) != 1 || contacts[0].ContactName != "Carol Ames" {
		t.Errorf("contacts = %+v, want the store's row", contacts)
	}
	if fallback.calls != 1 {
		t.Errorf("store reader calls = %d, want 1", fallback.calls)
	}
	if got := stub.searchCalls.Load(); got != 0 {
		t.Errorf("empty-text listing hit meilisearch %d times, want 0", got)
	}
}

func TestNonEmptySearchUsesMeili(t *testing.T) {
	stub := newStubMeili(t)
	meiliClient := NewMeili(stub.server.URL, "")
	defer meiliClient.Close()

	fallback := &fakeFallback{contacts: []store.ContactRecord{{ID: 1, ContactName: "Carol Ames"}}}
	svc := NewService(meiliClient, fallback)

	if _, err := svc.SearchContacts(context.Background(), Query{Text: "carol"}); err != nil {
		t.Fatalf("SearchContacts failed: %v", err)
	}
	if got := stub.searchCalls.Load(); got != 1 {
		t.Errorf("meilisearch search calls = %d, want 1", got)
	}
	if fallback.calls != 0 {
		t.Errorf("store reader calls = %d, want 0", fallback.calls)
	}
}

func TestSearchWithoutMeiliUsesStore(t *testing.T) {
	fallback := &fakeFallback{contacts: []store.ContactRecord{{ID: 1, ContactName: "Carol Ames"}}}
	svc := NewService(nil, fallback)

	contacts, err := svc.SearchContacts(context.Background(), Query{Text: "arl"})
	if err != nil {
		t.Fatalf("SearchContacts failed: %v", err)
	}
	if len(contacts) != 1 {
		t.Errorf("contacts = %+v", contacts)
	}
	if fallback.lastText != "arl" {
		t.Errorf("store search text = %q, want arl", fallback.lastText)
	}
}

func TestReindexAllPushesStoreRowsToMeili(t *testing.T) {
	stub := newStubMeili(t)
	meiliClient := NewMeili(stub.server.URL, "")
	defer meiliClient.Close()

	fallback := &fakeFallback{contacts: []store.ContactRecord{
		{ID: 1, ContactName: "Carol Ames"},
		{ID: 2, ContactName: "Raj Patel"},
	}}
	svc := NewService(meiliClient, fallback)

	svc.reindexAll()

	if fallback.calls == 0 {
		t.Fatal("reindex never read the store")
	}
	if fallback.lastText != "" {
		t.Errorf("reindex read text = %q, want full listing", fallback.lastText)
	}
	if got := stub.documentCalls.Load(); got == 0 {
		t.Error("reindex never pushed documents to meilisearch")
	}
}

func TestNewServiceRegistersRecoveryReindex(t *testing.T) {
	stub := newStubMeili(t)
	meiliClient := NewMeili(stub.server.URL, "")
	defer meiliClient.Close()

	NewService(meiliClient, &fakeFallback{})

	meiliClient.mu.Lock()
	registered := meiliClient.onRecover != nil
	meiliClient.mu.Unlock()
	if !registered {
		t.Fatal("recovery hook not registered; rows upserted during an outage would never be indexed")
	}
}
