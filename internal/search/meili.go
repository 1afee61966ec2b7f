package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"voicelog/api/internal/store"
)

const idxContacts = "voicelog_contacts"

// Meili indexes and searches contacts via Meilisearch.
type Meili struct {
	client    meili.ServiceManager
	healthy   atomic.Bool
	done      chan struct{}
	mu        sync.Mutex
	onRecover func()
}

// NewMeili creates a Meilisearch client and configures the contacts index.
// An unreachable server is tolerated; the health loop retries.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxContacts,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxContacts, err)
	}

	index := m.client.Index(idxContacts)
	filterable := []interface{}{"status"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs for %s: %v", idxContacts, err)
	}
	searchable := []string{"contact_name", "company", "email"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs for %s: %v", idxContacts, err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
				m.notifyRecover()
			}
		}
	}
}

// OnRecover registers a callback run after Meilisearch comes back from an
// outage, once the index is reconfigured.
func (m *Meili) OnRecover(fn func()) {
	m.mu.Lock()
	m.onRecover = fn
	m.mu.Unlock()
}

func (m *Meili) notifyRecover() {
	m.mu.Lock()
	fn := m.onRecover
	m.mu.Unlock()
	if fn != nil {
		go fn()
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// SearchContacts runs a substring query over the contacts index.
func (m *Meili) SearchContacts(q Query) ([]store.ContactRecord, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 100
	}

	resp, err := m.client.Index(idxContacts).Search(q.Text, &meili.SearchRequest{
		Limit:  limit,
		Offset: int64(q.Offset),
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]store.ContactRecord, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		record, err := hitToContact(hit)
		if err != nil {
			return nil, err
		}
		results = append(results, record)
	}
	return results, nil
}

func hitToContact(hit meili.Hit) (store.ContactRecord, error) {
	raw, err := json.Marshal(hit)
	if err != nil {
		return store.ContactRecord{}, fmt.Errorf("marshal search hit: %w", err)
	}
	var record store.ContactRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return store.ContactRecord{}, fmt.Errorf("decode search hit: %w", err)
	}
	return record, nil
}

// IndexContacts bulk-indexes contacts. Records without a row id are skipped;
// the id is the index primary key.
func (m *Meili) IndexContacts(contacts []store.ContactRecord) error {
	docs := make([]store.ContactRecord, 0, len(contacts))
	for _, contact := range contacts {
		if contact.ID == 0 {
			continue
		}
		docs = append(docs, contact)
	}
	if len(docs) == 0 {
		return nil
	}
	_, err := m.client.Index(idxContacts).AddDocuments(docs, nil)
	return err
}
