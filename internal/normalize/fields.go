package normalize

import (
	"strconv"
	"strings"
)

// Alias tables map each canonical field to the external key names accepted for
// it, in priority order: the automation platform's decorated label first, then
// the canonical snake-case key. Lookup is applied independently per field; a
// payload may mix decorated and snake-case keys freely.
var (
	dietAliases = map[string][]string{
		"food":               {"Result Food", "food"},
		"food_type":          {"Result Food Type", "food_type"},
		"estimated_calories": {"Result Estimated Calories", "estimated_calories"},
		"time_of_day":        {"Result Time Of Day", "time_of_day"},
		"date":               {"Result Date", "date"},
	}

	taskAliases = map[string][]string{
		"task_name":         {"Result Task Name", "task_name"},
		"task_type":         {"Result Task Type", "task_type"},
		"responsible_party": {"Result Responsible Party", "responsible_party"},
		"status":            {"Result Status", "status"},
		"best_start_date":   {"Result Best Start Date", "best_start_date"},
		"best_due_date":     {"Result Best Due Date", "best_due_date"},
		"time_interval":     {"Result Time Interval", "time_interval"},
		"notes":             {"Result Notes", "notes"},
		"dependency":        {"Result Dependency", "dependency"},
	}

	contactAliases = map[string][]string{
		"contact_name": {"Result Contact Name", "contact_name"},
		"company":      {"Result Company", "company"},
		"email":        {"Result Email", "email"},
		"phone":        {"Result Phone", "phone"},
		"notes":        {"Result Notes", "notes"},
		"status":       {"Result Status", "status"},
	}

	transcriptAliases = map[string][]string{
		"transcript_id":   {"id", "transcript_id"},
		"title":           {"title"},
		"transcript_text": {"transcript", "transcript_text"},
		"summary_text":    {"summary", "summary_text"},
		"create_time":     {"create_time"},
	}
)

// field resolves one canonical field against an object: the first alias whose
// value is present and non-empty wins, otherwise the default.
func field(obj map[string]any, aliases []string, fallback string) string {
	for _, key := range aliases {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		if value := stringify(raw); value != "" {
			return value
		}
	}
	return fallback
}

func stringify(raw any) string {
	switch value := raw.(type) {
	case string:
		return strings.TrimSpace(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case nil:
		return ""
	default:
		return ""
	}
}

// parseCalories strips every non-digit rune (units, "~", whitespace) before
// parsing; an empty result normalizes to 0.
func parseCalories(raw string) int {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	parsed, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return parsed
}

// splitList splits a comma-joined legacy value, trimming each element. An
// empty input yields no elements.
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}

// pick returns parts[i], falling back when the field array is shorter than the
// record index. Ragged legacy arrays are tolerated, not rejected.
func pick(parts []string, i int, fallback string) string {
	if i < len(parts) && parts[i] != "" {
		return parts[i]
	}
	return fallback
}

// optional maps an empty string to a NULL-able nil pointer.
func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
