package store

import "time"

// DietEntry is one normalized food record. TimeOfDay and Date are kept as the
// canonical wire strings ("15:04:05", "2006-01-02"); Postgres owns the typed
// representation.
type DietEntry struct {
	ID                int64     `json:"id,omitempty"`
	Food              string    `json:"food"`
	FoodType          string    `json:"food_type"`
	EstimatedCalories int       `json:"estimated_calories"`
	TimeOfDay         string    `json:"time_of_day"`
	Date              string    `json:"date"`
	CreatedAt         time.Time `json:"created_at,omitempty"`
}

// TaskRecord's Priority is 1 (most urgent) through 99; ingestion leaves it at
// the column default, only the dedicated priority update path changes it.
type TaskRecord struct {
	ID               int64     `json:"id,omitempty"`
	TaskName         string    `json:"task_name"`
	TaskType         string    `json:"task_type"`
	ResponsibleParty *string   `json:"responsible_party"`
	Status           string    `json:"status"`
	Priority         int       `json:"priority,omitempty"`
	BestStartDate    *string   `json:"best_start_date"`
	BestDueDate      *string   `json:"best_due_date"`
	TimeInterval     *string   `json:"time_interval"`
	Notes            string    `json:"notes"`
	Dependency       *string   `json:"dependency"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
}

type ContactRecord struct {
	ID          int64     `json:"id,omitempty"`
	ContactName string    `json:"contact_name"`
	Company     *string   `json:"company"`
	Email       *string   `json:"email"`
	Phone       *string   `json:"phone"`
	Notes       string    `json:"notes"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// TranscriptRecord is the raw passthrough store for the originating voice-note
// artifact.
type TranscriptRecord struct {
	TranscriptID   string    `json:"transcript_id"`
	Title          string    `json:"title"`
	TranscriptText string    `json:"transcript_text"`
	SummaryText    string    `json:"summary_text"`
	CreateTime     time.Time `json:"create_time"`
}

// Stats is the aggregate dashboard snapshot. The five counts come from
// independent sub-queries; there is no atomicity guarantee across them.
type Stats struct {
	CaloriesToday    int `json:"calories_today"`
	PendingTasks     int `json:"pending_tasks"`
	TotalContacts    int `json:"total_contacts"`
	TotalDietEntries int `json:"total_diet_entries"`
	TotalTasks       int `json:"total_tasks"`
}
