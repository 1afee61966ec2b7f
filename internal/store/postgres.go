package store

import (
	"context"
	"database/sql"
	"fmt"
)

const defaultListLimit = 100

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertDietEntries applies one batch in a single transaction. A natural-key
// collision (food, food_type, time_of_day, date) updates estimated_calories;
// inserted and updated rows are indistinguishable to the caller.
func (s *PostgresStore) InsertDietEntries(ctx context.Context, entries []DietEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin diet tx: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
		INSERT INTO diet_entries (food, food_type, estimated_calories, time_of_day, date)
		VALUES ($1, $2, $3, $4::time, $5::date)
		ON CONFLICT (food, food_type, time_of_day, date)
		DO UPDATE SET estimated_calories = EXCLUDED.estimated_calories, updated_at = NOW()
	`
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, upsert, entry.Food, entry.FoodType, entry.EstimatedCalories, entry.TimeOfDay, entry.Date); err != nil {
			return fmt.Errorf("upsert diet entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit diet tx: %w", err)
	}
	return nil
}

// InsertTasks is a plain batch insert. Tasks carry no natural key, so repeated
// submissions create duplicate rows.
func (s *PostgresStore) InsertTasks(ctx context.Context, tasks []TaskRecord) error {
	if len(tasks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tasks tx: %w", err)
	}
	defer tx.Rollback()

	const insert = `
		INSERT INTO tasks (task_name, task_type, responsible_party, status,
			best_start_date, best_due_date, time_interval, notes, dependency)
		VALUES ($1, $2, $3, $4, $5::date, $6::date, $7, $8, $9)
	`
	for _, task := range tasks {
		if _, err := tx.ExecContext(ctx, insert,
			task.TaskName, task.TaskType, task.ResponsibleParty, task.Status,
			task.BestStartDate, task.BestDueDate, task.TimeInterval, task.Notes, task.Dependency,
		); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tasks tx: %w", err)
	}
	return nil
}

// UpsertContacts applies one batch in a single transaction. A (contact_name,
// email) collision updates company, phone, notes and status. The applied rows
// are returned with their ids so the caller can index them.
func (s *PostgresStore) UpsertContacts(ctx context.Context, contacts []ContactRecord) ([]ContactRecord, error) {
	if len(contacts) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin contacts tx: %w", err)
	}
	defer tx.Rollback()

	const upsert = `
		INSERT INTO contacts (contact_name, company, email, phone, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (contact_name, email)
		DO UPDATE SET
			company = EXCLUDED.company,
			phone = EXCLUDED.phone,
			notes = EXCLUDED.notes,
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING id
	`
	applied := make([]ContactRecord, 0, len(contacts))
	for _, contact := range contacts {
		if err := tx.QueryRowContext(ctx, upsert,
			contact.ContactName, contact.Company, contact.Email, contact.Phone, contact.Notes, contact.Status,
		).Scan(&contact.ID); err != nil {
			return nil, fmt.Errorf("upsert contact: %w", err)
		}
		applied = append(applied, contact)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit contacts tx: %w", err)
	}
	return applied, nil
}

// UpsertTranscript writes the raw voice-note artifact. Replaying the same
// transcript_id refreshes transcript_text, summary_text and processed_at.
func (s *PostgresStore) UpsertTranscript(ctx context.Context, transcript TranscriptRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (transcript_id, title, transcript_text, summary_text, create_time)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transcript_id)
		DO UPDATE SET
			transcript_text = EXCLUDED.transcript_text,
			summary_text = EXCLUDED.summary_text,
			processed_at = NOW()
	`, transcript.TranscriptID, transcript.Title, transcript.TranscriptText, transcript.SummaryText, transcript.CreateTime)
	if err != nil {
		return fmt.Errorf("upsert transcript: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDietEntries(ctx context.Context, date string, limit, offset int) ([]DietEntry, error) {
	limit, offset = clampPage(limit, offset)

	query := `
		SELECT id, food, food_type, estimated_calories, time_of_day::text, date::text, created_at
		FROM diet_entries
	`
	args := []any{}
	if date != "" {
		query += ` WHERE date = $1::date`
		args = append(args, date)
	}
	query += fmt.Sprintf(` ORDER BY date DESC, time_of_day DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list diet entries: %w", err)
	}
	defer rows.Close()

	items := make([]DietEntry, 0)
	for rows.Next() {
		var item DietEntry
		if err := rows.Scan(&item.ID, &item.Food, &item.FoodType, &item.EstimatedCalories, &item.TimeOfDay, &item.Date, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan diet entry: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diet entries: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, status string, limit, offset int) ([]TaskRecord, error) {
	limit, offset = clampPage(limit, offset)

	query := `
		SELECT id, task_name, task_type, responsible_party, status, priority,
			best_start_date::text, best_due_date::text, time_interval, notes, dependency, created_at
		FROM tasks
	`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	items := make([]TaskRecord, 0)
	for rows.Next() {
		var item TaskRecord
		if err := rows.Scan(&item.ID, &item.TaskName, &item.TaskType, &item.ResponsibleParty, &item.Status, &item.Priority,
			&item.BestStartDate, &item.BestDueDate, &item.TimeInterval, &item.Notes, &item.Dependency, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

// ListContacts returns contacts newest-first. A non-empty search filters with a
// case-insensitive substring match against contact_name OR company OR email.
func (s *PostgresStore) ListContacts(ctx context.Context, search string, limit, offset int) ([]ContactRecord, error) {
	limit, offset = clampPage(limit, offset)

	query := `
		SELECT id, contact_name, company, email, phone, notes, status, created_at
		FROM contacts
	`
	args := []any{}
	if search != "" {
		query += ` WHERE contact_name ILIKE $1 OR company ILIKE $1 OR email ILIKE $1`
		args = append(args, "%"+search+"%")
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	items := make([]ContactRecord, 0)
	for rows.Next() {
		var item ContactRecord
		if err := rows.Scan(&item.ID, &item.ContactName, &item.Company, &item.Email, &item.Phone, &item.Notes, &item.Status, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return items, nil
}

// UpdateTaskStatus mutates only the status column of one task. Returns
// sql.ErrNoRows when no row matches the id. Status validity is enforced by the
// caller; the CHECK constraint is the backstop.
func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, taskID int64, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = $2, updated_at = NOW() WHERE id = $1
	`, taskID, status)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("task status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateTaskPriority mutates only the priority column of one task. Returns
// sql.ErrNoRows when no row matches the id; the 1..99 range is enforced by the
// caller with the CHECK constraint as backstop.
func (s *PostgresStore) UpdateTaskPriority(ctx context.Context, taskID int64, priority int) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET priority = $2, updated_at = NOW() WHERE id = $1
	`, taskID, priority)
	if err != nil {
		return fmt.Errorf("update task priority: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("task priority rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Stats runs five independent sub-queries; the snapshot is approximate by
// design.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats

	if err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(estimated_calories), 0) FROM diet_entries WHERE date = CURRENT_DATE
	`).Scan(&stats.CaloriesToday); err != nil {
		return Stats{}, fmt.Errorf("stats calories today: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE status = 'Pending'`).Scan(&stats.PendingTasks); err != nil {
		return Stats{}, fmt.Errorf("stats pending tasks: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&stats.TotalContacts); err != nil {
		return Stats{}, fmt.Errorf("stats total contacts: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM diet_entries`).Scan(&stats.TotalDietEntries); err != nil {
		return Stats{}, fmt.Errorf("stats total diet entries: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&stats.TotalTasks); err != nil {
		return Stats{}, fmt.Errorf("stats total tasks: %w", err)
	}

	return stats, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
