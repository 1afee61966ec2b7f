// Package normalize maps heterogeneous webhook payloads - single objects,
// arrays of objects, and the comma-joined legacy loop format - onto canonical
// records ready for storage. Missing fields never fail; every field falls back
// to its documented default independently.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"voicelog/api/internal/store"
)

const (
	DefaultFoodType      = "Meal"
	DefaultTaskType      = "Other"
	DefaultTaskStatus    = "Pending"
	DefaultContactStatus = "Lead"
	MidnightTime         = "00:00:00"
)

// WebhookPayload is the normalized form of one combined webhook delivery.
type WebhookPayload struct {
	Transcript store.TranscriptRecord
	Diet       []store.DietEntry
	Tasks      []store.TaskRecord
	Contacts   []store.ContactRecord
}

// Webhook normalizes a combined delivery: the transcript fields live at the
// top level, with optional diet_data / tasks_data / crm_data sub-sections.
func Webhook(raw []byte, now time.Time) (WebhookPayload, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return WebhookPayload{}, fmt.Errorf("parse webhook payload: %w", err)
	}

	payload := WebhookPayload{
		Transcript: transcriptFromObject(obj, now),
		Diet:       []store.DietEntry{},
		Tasks:      []store.TaskRecord{},
		Contacts:   []store.ContactRecord{},
	}
	if section, ok := obj["diet_data"]; ok && section != nil {
		payload.Diet = dietFromValue(section, now)
	}
	if section, ok := obj["tasks_data"]; ok && section != nil {
		payload.Tasks = tasksFromValue(section)
	}
	if section, ok := obj["crm_data"]; ok && section != nil {
		payload.Contacts = contactsFromValue(section)
	}
	return payload, nil
}

// DietEntries normalizes a diet payload in any accepted shape.
func DietEntries(raw []byte, now time.Time) ([]store.DietEntry, error) {
	value, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("parse diet payload: %w", err)
	}
	return dietFromValue(value, now), nil
}

// TaskRecords normalizes a tasks payload in any accepted shape.
func TaskRecords(raw []byte) ([]store.TaskRecord, error) {
	value, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("parse tasks payload: %w", err)
	}
	return tasksFromValue(value), nil
}

// ContactRecords normalizes a contacts payload in any accepted shape.
func ContactRecords(raw []byte) ([]store.ContactRecord, error) {
	value, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("parse contacts payload: %w", err)
	}
	return contactsFromValue(value), nil
}

func decode(raw []byte) (any, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	return value, nil
}

func dietFromValue(value any, now time.Time) []store.DietEntry {
	entries := make([]store.DietEntry, 0)
	for _, obj := range objects(value) {
		food := field(obj, dietAliases["food"], "")
		if strings.Contains(food, ",") {
			entries = append(entries, dietFromLegacy(obj, now)...)
			continue
		}
		entries = append(entries, store.DietEntry{
			Food:              food,
			FoodType:          field(obj, dietAliases["food_type"], DefaultFoodType),
			EstimatedCalories: parseCalories(field(obj, dietAliases["estimated_calories"], "")),
			TimeOfDay:         field(obj, dietAliases["time_of_day"], MidnightTime),
			Date:              field(obj, dietAliases["date"], now.Format("2006-01-02")),
		})
	}
	return entries
}

// dietFromLegacy expands the comma-joined loop format. The food field drives
// the record count; shorter fields fill from their own defaults.
func dietFromLegacy(obj map[string]any, now time.Time) []store.DietEntry {
	foods := splitList(field(obj, dietAliases["food"], ""))
	foodTypes := splitList(field(obj, dietAliases["food_type"], ""))
	calories := splitList(field(obj, dietAliases["estimated_calories"], ""))
	times := splitList(field(obj, dietAliases["time_of_day"], ""))
	dates := splitList(field(obj, dietAliases["date"], ""))

	entries := make([]store.DietEntry, 0, len(foods))
	for i, food := range foods {
		entries = append(entries, store.DietEntry{
			Food:              food,
			FoodType:          pick(foodTypes, i, DefaultFoodType),
			EstimatedCalories: parseCalories(pick(calories, i, "")),
			TimeOfDay:         pick(times, i, MidnightTime),
			Date:              pick(dates, i, now.Format("2006-01-02")),
		})
	}
	return entries
}

func tasksFromValue(value any) []store.TaskRecord {
	tasks := make([]store.TaskRecord, 0)
	for _, obj := range objects(value) {
		name := field(obj, taskAliases["task_name"], "")
		if strings.Contains(name, ",") {
			tasks = append(tasks, tasksFromLegacy(obj)...)
			continue
		}
		tasks = append(tasks, store.TaskRecord{
			TaskName:         name,
			TaskType:         field(obj, taskAliases["task_type"], DefaultTaskType),
			ResponsibleParty: optional(field(obj, taskAliases["responsible_party"], "")),
			Status:           field(obj, taskAliases["status"], DefaultTaskStatus),
			BestStartDate:    optional(field(obj, taskAliases["best_start_date"], "")),
			BestDueDate:      optional(field(obj, taskAliases["best_due_date"], "")),
			TimeInterval:     optional(field(obj, taskAliases["time_interval"], "")),
			Notes:            field(obj, taskAliases["notes"], ""),
			Dependency:       optional(field(obj, taskAliases["dependency"], "")),
		})
	}
	return tasks
}

func tasksFromLegacy(obj map[string]any) []store.TaskRecord {
	names := splitList(field(obj, taskAliases["task_name"], ""))
	types := splitList(field(obj, taskAliases["task_type"], ""))
	parties := splitList(field(obj, taskAliases["responsible_party"], ""))
	statuses := splitList(field(obj, taskAliases["status"], ""))
	starts := splitList(field(obj, taskAliases["best_start_date"], ""))
	dues := splitList(field(obj, taskAliases["best_due_date"], ""))
	intervals := splitList(field(obj, taskAliases["time_interval"], ""))
	notes := splitList(field(obj, taskAliases["notes"], ""))
	dependencies := splitList(field(obj, taskAliases["dependency"], ""))

	tasks := make([]store.TaskRecord, 0, len(names))
	for i, name := range names {
		tasks = append(tasks, store.TaskRecord{
			TaskName:         name,
			TaskType:         pick(types, i, DefaultTaskType),
			ResponsibleParty: optional(pick(parties, i, "")),
			Status:           pick(statuses, i, DefaultTaskStatus),
			BestStartDate:    optional(pick(starts, i, "")),
			BestDueDate:      optional(pick(dues, i, "")),
			TimeInterval:     optional(pick(intervals, i, "")),
			Notes:            pick(notes, i, ""),
			Dependency:       optional(pick(dependencies, i, "")),
		})
	}
	return tasks
}

func contactsFromValue(value any) []store.ContactRecord {
	contacts := make([]store.ContactRecord, 0)
	for _, obj := range objects(value) {
		name := field(obj, contactAliases["contact_name"], "")
		if strings.Contains(name, ",") {
			contacts = append(contacts, contactsFromLegacy(obj)...)
			continue
		}
		contacts = append(contacts, store.ContactRecord{
			ContactName: name,
			Company:     optional(field(obj, contactAliases["company"], "")),
			Email:       optional(field(obj, contactAliases["email"], "")),
			Phone:       optional(field(obj, contactAliases["phone"], "")),
			Notes:       field(obj, contactAliases["notes"], ""),
			Status:      field(obj, contactAliases["status"], DefaultContactStatus),
		})
	}
	return contacts
}

func contactsFromLegacy(obj map[string]any) []store.ContactRecord {
	names := splitList(field(obj, contactAliases["contact_name"], ""))
	companies := splitList(field(obj, contactAliases["company"], ""))
	emails := splitList(field(obj, contactAliases["email"], ""))
	phones := splitList(field(obj, contactAliases["phone"], ""))
	notes := splitList(field(obj, contactAliases["notes"], ""))
	statuses := splitList(field(obj, contactAliases["status"], ""))

	contacts := make([]store.ContactRecord, 0, len(names))
	for i, name := range names {
		contacts = append(contacts, store.ContactRecord{
			ContactName: name,
			Company:     optional(pick(companies, i, "")),
			Email:       optional(pick(emails, i, "")),
			Phone:       optional(pick(phones, i, "")),
			Notes:       pick(notes, i, ""),
			Status:      pick(statuses, i, DefaultContactStatus),
		})
	}
	return contacts
}

// transcriptFromObject extracts the raw voice-note artifact from the top level
// of a combined delivery. Deliveries without a transcript id get a generated
// one so distinct id-less webhooks never collapse onto a single row.
func transcriptFromObject(obj map[string]any, now time.Time) store.TranscriptRecord {
	id := field(obj, transcriptAliases["transcript_id"], "")
	if id == "" {
		id = uuid.NewString()
	}
	return store.TranscriptRecord{
		TranscriptID:   id,
		Title:          field(obj, transcriptAliases["title"], ""),
		TranscriptText: field(obj, transcriptAliases["transcript_text"], ""),
		SummaryText:    field(obj, transcriptAliases["summary_text"], ""),
		CreateTime:     parseCreateTime(obj["create_time"], now),
	}
}

// parseCreateTime accepts RFC3339, the platform's space-separated datetime,
// and epoch seconds or milliseconds. Anything unparseable defaults to now.
func parseCreateTime(raw any, now time.Time) time.Time {
	switch value := raw.(type) {
	case string:
		value = strings.TrimSpace(value)
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, value); err == nil {
				return parsed
			}
		}
	case float64:
		if value > 1e12 {
			return time.UnixMilli(int64(value)).UTC()
		}
		if value > 0 {
			return time.Unix(int64(value), 0).UTC()
		}
	}
	return now
}

// objects flattens any accepted payload shape into a list of flat objects.
// Non-object array elements are skipped rather than rejected.
func objects(value any) []map[string]any {
	switch typed := value.(type) {
	case map[string]any:
		return []map[string]any{typed}
	case []any:
		result := make([]map[string]any, 0, len(typed))
		for _, element := range typed {
			if obj, ok := element.(map[string]any); ok {
				result = append(result, obj)
			}
		}
		return result
	default:
		return nil
	}
}
