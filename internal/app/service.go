package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"voicelog/api/internal/normalize"
	"voicelog/api/internal/search"
	"voicelog/api/internal/store"
)

// dataStore is the persistence surface the service depends on.
type dataStore interface {
	Ping(ctx context.Context) error
	InsertDietEntries(ctx context.Context, entries []store.DietEntry) error
	InsertTasks(ctx context.Context, tasks []store.TaskRecord) error
	UpsertContacts(ctx context.Context, contacts []store.ContactRecord) ([]store.ContactRecord, error)
	UpsertTranscript(ctx context.Context, transcript store.TranscriptRecord) error
	ListDietEntries(ctx context.Context, date string, limit, offset int) ([]store.DietEntry, error)
	ListTasks(ctx context.Context, status string, limit, offset int) ([]store.TaskRecord, error)
	ListContacts(ctx context.Context, search string, limit, offset int) ([]store.ContactRecord, error)
	UpdateTaskStatus(ctx context.Context, taskID int64, status string) error
	UpdateTaskPriority(ctx context.Context, taskID int64, priority int) error
	Stats(ctx context.Context) (store.Stats, error)
}

// replayGuard remembers transcript ids across webhook retries. Optional; a nil
// guard means every delivery is treated as new.
type replayGuard interface {
	Seen(ctx context.Context, transcriptID string) (bool, error)
	Mark(ctx context.Context, transcriptID string) error
}

var validTaskStatuses = map[string]bool{
	"Pending":     true,
	"In Progress": true,
	"Completed":   true,
	"Cancelled":   true,
}

type Service struct {
	store        dataStore
	search       *search.Service
	guard        replayGuard
	strictWrites bool
	now          func() time.Time
}

// New wires the service. searchSvc and guard may be nil; strictWrites turns
// the degrade-on-unavailable write policy into hard failures.
func New(st dataStore, searchSvc *search.Service, guard replayGuard, strictWrites bool) *Service {
	return &Service{
		store:        st,
		search:       searchSvc,
		guard:        guard,
		strictWrites: strictWrites,
		now:          time.Now,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// DomainResult is the per-domain outcome of a combined webhook delivery.
type DomainResult struct {
	OK    bool `json:"ok"`
	Count int  `json:"count"`
}

// IngestReport summarizes one combined webhook delivery. Transcript is always
// ok in a returned report: a transcript persistence failure aborts the whole
// delivery instead, so the relay retries it (the flag keeps the response shape
// uniform across domains).
type IngestReport struct {
	TranscriptID string       `json:"transcript_id"`
	Replayed     bool         `json:"replayed"`
	Transcript   DomainResult `json:"transcript"`
	Diet         DomainResult `json:"diet"`
	Tasks        DomainResult `json:"tasks"`
	Contacts     DomainResult `json:"contacts"`
}

// AllOK reports whether every domain write in the delivery succeeded.
func (r IngestReport) AllOK() bool {
	return r.Diet.OK && r.Tasks.OK && r.Contacts.OK
}

// IngestWebhook processes one combined delivery. The transcript row is written
// first and never degrades: if it cannot be persisted the whole delivery
// fails, so the relay retries. Domain writes follow the degrade policy and
// report per-domain success flags. A transcript id already seen by the replay
// guard skips the domain writes entirely.
func (s *Service) IngestWebhook(ctx context.Context, raw []byte) (IngestReport, error) {
	payload, err := normalize.Webhook(raw, s.now())
	if err != nil {
		return IngestReport{}, domainError(http.StatusBadRequest, "INVALID_BODY", "Invalid JSON payload", nil)
	}

	if err := s.store.UpsertTranscript(ctx, payload.Transcript); err != nil {
		return IngestReport{}, fmt.Errorf("persist transcript: %w", err)
	}

	report := IngestReport{
		TranscriptID: payload.Transcript.TranscriptID,
		Transcript:   DomainResult{OK: true, Count: 1},
	}

	if s.guard != nil {
		seen, err := s.guard.Seen(ctx, payload.Transcript.TranscriptID)
		if err != nil {
			log.Printf("app: replay guard unavailable, treating delivery as new: %v", err)
		} else if seen {
			report.Replayed = true
			report.Diet.OK = true
			report.Tasks.OK = true
			report.Contacts.OK = true
			return report, nil
		}
	}

	report.Diet.Count = len(payload.Diet)
	report.Diet.OK = s.saveDietEntries(ctx, payload.Diet) == nil

	report.Tasks.Count = len(payload.Tasks)
	report.Tasks.OK = s.saveTasks(ctx, payload.Tasks) == nil

	report.Contacts.Count = len(payload.Contacts)
	report.Contacts.OK = s.saveContacts(ctx, payload.Contacts) == nil

	if s.guard != nil && report.AllOK() {
		if err := s.guard.Mark(ctx, payload.Transcript.TranscriptID); err != nil {
			log.Printf("app: replay guard mark failed for %s: %v", payload.Transcript.TranscriptID, err)
		}
	}

	return report, nil
}

// IngestDiet normalizes and saves a standalone diet payload, returning the
// canonical records that were applied.
func (s *Service) IngestDiet(ctx context.Context, raw []byte) ([]store.DietEntry, error) {
	entries, err := normalize.DietEntries(raw, s.now())
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Invalid JSON payload", nil)
	}
	if len(entries) == 0 {
		return nil, domainError(http.StatusBadRequest, "EMPTY_PAYLOAD", "No diet entries in payload", nil)
	}
	if err := s.saveDietEntries(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// IngestTasks normalizes and saves a standalone tasks payload. Direct task
// submissions are not deduplicated; tasks carry no natural key.
func (s *Service) IngestTasks(ctx context.Context, raw []byte) ([]store.TaskRecord, error) {
	tasks, err := normalize.TaskRecords(raw)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Invalid JSON payload", nil)
	}
	if len(tasks) == 0 {
		return nil, domainError(http.StatusBadRequest, "EMPTY_PAYLOAD", "No tasks in payload", nil)
	}
	if err := s.saveTasks(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// IngestContacts normalizes and saves a standalone contacts payload.
func (s *Service) IngestContacts(ctx context.Context, raw []byte) ([]store.ContactRecord, error) {
	contacts, err := normalize.ContactRecords(raw)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Invalid JSON payload", nil)
	}
	if len(contacts) == 0 {
		return nil, domainError(http.StatusBadRequest, "EMPTY_PAYLOAD", "No contacts in payload", nil)
	}
	if err := s.saveContacts(ctx, contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

// saveDietEntries applies the degrade policy: an unreachable database logs the
// would-be rows and reports success so the voice-note pipeline keeps moving.
// Statement failures against a reachable database still fail.
func (s *Service) saveDietEntries(ctx context.Context, entries []store.DietEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.store.Ping(ctx); err != nil {
		return s.degrade("diet entries", len(entries), entries, err)
	}
	if err := s.store.InsertDietEntries(ctx, entries); err != nil {
		return fmt.Errorf("save diet entries: %w", err)
	}
	return nil
}

func (s *Service) saveTasks(ctx context.Context, tasks []store.TaskRecord) error {
	if len(tasks) == 0 {
		return nil
	}
	if err := s.store.Ping(ctx); err != nil {
		return s.degrade("tasks", len(tasks), tasks, err)
	}
	if err := s.store.InsertTasks(ctx, tasks); err != nil {
		return fmt.Errorf("save tasks: %w", err)
	}
	return nil
}

func (s *Service) saveContacts(ctx context.Context, contacts []store.ContactRecord) error {
	if len(contacts) == 0 {
		return nil
	}
	if err := s.store.Ping(ctx); err != nil {
		return s.degrade("contacts", len(contacts), contacts, err)
	}
	applied, err := s.store.UpsertContacts(ctx, contacts)
	if err != nil {
		return fmt.Errorf("save contacts: %w", err)
	}
	if s.search != nil {
		s.search.IndexContacts(applied)
	}
	return nil
}

func (s *Service) degrade(kind string, count int, records any, cause error) error {
	if s.strictWrites {
		return fmt.Errorf("database unavailable for %s: %w", kind, cause)
	}
	encoded, _ := json.Marshal(records)
	log.Printf("app: database unavailable, dropping %d %s (payload logged): %s: %v", count, kind, encoded, cause)
	return nil
}

// ListDietEntries degrades to an empty list when the store is unreachable.
func (s *Service) ListDietEntries(ctx context.Context, date string, limit, offset int) []store.DietEntry {
	entries, err := s.store.ListDietEntries(ctx, date, limit, offset)
	if err != nil {
		log.Printf("app: list diet entries: %v", err)
		return []store.DietEntry{}
	}
	return entries
}

// ListTasks degrades to an empty list when the store is unreachable.
func (s *Service) ListTasks(ctx context.Context, status string, limit, offset int) []store.TaskRecord {
	tasks, err := s.store.ListTasks(ctx, status, limit, offset)
	if err != nil {
		log.Printf("app: list tasks: %v", err)
		return []store.TaskRecord{}
	}
	return tasks
}

// SearchContacts routes through the search facade when one is wired, falling
// back to the store's substring reader otherwise.
func (s *Service) SearchContacts(ctx context.Context, text string, limit, offset int) []store.ContactRecord {
	if s.search != nil {
		contacts, err := s.search.SearchContacts(ctx, search.Query{Text: text, Limit: limit, Offset: offset})
		if err != nil {
			log.Printf("app: search contacts: %v", err)
			return []store.ContactRecord{}
		}
		return contacts
	}
	contacts, err := s.store.ListContacts(ctx, text, limit, offset)
	if err != nil {
		log.Printf("app: list contacts: %v", err)
		return []store.ContactRecord{}
	}
	return contacts
}

// UpdateTaskStatus validates against the fixed status set before touching the
// store. Unknown ids surface as sql.ErrNoRows for the HTTP layer to map.
func (s *Service) UpdateTaskStatus(ctx context.Context, taskID int64, status string) error {
	if !validTaskStatuses[status] {
		return domainError(http.StatusBadRequest, "INVALID_STATUS",
			fmt.Sprintf("Invalid status %q", status),
			map[string]any{"allowed": []string{"Pending", "In Progress", "Completed", "Cancelled"}})
	}
	return s.store.UpdateTaskStatus(ctx, taskID, status)
}

// UpdateTaskPriority validates the 1..99 range before touching the store.
// Unknown ids surface as sql.ErrNoRows for the HTTP layer to map.
func (s *Service) UpdateTaskPriority(ctx context.Context, taskID int64, priority int) error {
	if priority < 1 || priority > 99 {
		return domainError(http.StatusBadRequest, "INVALID_PRIORITY",
			"Priority must be between 1 and 99", nil)
	}
	return s.store.UpdateTaskPriority(ctx, taskID, priority)
}

// Stats degrades to a zeroed snapshot when the store is unreachable.
func (s *Service) Stats(ctx context.Context) store.Stats {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		log.Printf("app: stats: %v", err)
		return store.Stats{}
	}
	return stats
}
