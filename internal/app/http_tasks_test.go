package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"voicelog/api/internal/store"
)

func patchJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPatch, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build PATCH request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PATCH %s failed: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestListTasksStatusFilter(t *testing.T) {
	var gotStatus string
	fs := &fakeStore{
		listTasksFn: func(_ context.Context, status string, limit, offset int) ([]store.TaskRecord, error) {
			gotStatus = status
			return []store.TaskRecord{{ID: 1, TaskName: "Call Sarah", Status: status}}, nil
		},
	}
	server := newTestServer(fs, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/tasks?status=Pending")
	if err != nil {
		t.Fatalf("GET /tasks failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if gotStatus != "Pending" {
		t.Errorf("status filter = %q", gotStatus)
	}
}

func TestIngestTasksDecoratedKeys(t *testing.T) {
	var got []store.TaskRecord
	fs := &fakeStore{
		insertTasksFn: func(_ context.Context, tasks []store.TaskRecord) error {
			got = tasks
			return nil
		},
	}
	server := newTestServer(fs, nil)
	defer server.Close()

	resp, body := postJSON(t, server.URL+"/tasks", `{"Result Task Name": "Review contract", "Result Responsible Party": "Dana", "Result Best Due Date": "2026-09-05"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v", body["count"])
	}
	if len(got) != 1 {
		t.Fatalf("tasks = %+v", got)
	}
	task := got[0]
	if task.TaskName != "Review contract" || task.Status != "Pending" || task.TaskType != "Other" {
		t.Errorf("task = %+v", task)
	}
	if task.ResponsibleParty == nil || *task.ResponsibleParty != "Dana" {
		t.Errorf("responsible party = %v", task.ResponsibleParty)
	}
	if task.BestDueDate == nil || *task.BestDueDate != "2026-09-05" {
		t.Errorf("best due date = %v", task.BestDueDate)
	}
}

func TestTaskStatusUpdate(t *testing.T) {
	var gotID int64
	var gotStatus string
	fs := &fakeStore{
		updateTaskStatusFn: func(_ context.Context, taskID int64, status string) error {
			gotID, gotStatus = taskID, status
			return nil
		},
	}
	server := newTestServer(fs, nil)
	defer server.Close()

	resp, body := patchJSON(t, server.URL+"/tasks/42/status", `{"status": "Completed"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["status"] != "success" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["task_status"] != "Completed" {
		t.Errorf("task_status = %v", body["task_status"])
	}
	if gotID != 42 || gotStatus != "Completed" {
		t.Errorf("store called with %d %q", gotID, gotStatus)
	}
}

func TestTaskStatusUpdateInvalidStatus(t *testing.T) {
	storeCalls := 0
	fs := &fakeStore{
		updateTaskStatusFn: func(context.Context, int64, string) error {
			storeCalls++
			return nil
		},
	}
	server := newTestServer(fs, nil)
	defer server.Close()

	resp, body := patchJSON(t, server.URL+"/tasks/42/status", `{"status": "Archived"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != "INVALID_STATUS" {
		t.Errorf("code = %v", body["code"])
	}
	if storeCalls != 0 {
		t.Error("invalid status must not mutate the store")
	}
}

func TestTaskStatusUpdateUnknownTask(t *testing.T) {
	fs := &fakeStore{
		updateTaskStatusFn: func(context.Context, int64, string) error {
			return sql.ErrNoRows
		},
	}
	server := newTestServer(fs, nil)
	defer server.Close()

	resp, body := patchJSON(t, server.URL+"/tasks/999/status", `{"status": "Completed"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body["code"] != "NOT_FOUND" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestTaskPriorityUpdate(t *testing.T) {
	var gotID int64
	var gotPriority int
	fs := &fakeStore{
		updateTaskPriorityFn: func(_ context.Context, taskID int64, priority int) error {
			gotID, gotPriority = taskID, priority
			return nil
		},
	}
	server := newTestServer(fs, nil)
	defer server.Close()

	resp, body := patchJSON(t, server.URL+"/tasks/42/priority", `{"priority": 7}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["new_priority"] != float64(7) {
		t.Errorf("new_priority = %v", body["new_priority"])
	}
	if gotID != 42 || gotPriority != 7 {
		t.Errorf("store called with %d %d", gotID, gotPriority)
	}
}

func TestTaskPriorityUpdateOutOfRange(t *testing.T) {
	storeCalls := 0
	fs := &fakeStore{
		updateTaskPriorityFn: func(context.Context, int64, int) error {
			storeCalls++
			return nil
		},
	}
	server := newTestServer(fs, nil)
	defer server.Close()

	for _, raw := range []string{`{"priority": 0}`, `{"priority": 100}`} {
		resp, body := patchJSON(t, server.URL+"/tasks/42/priority", raw)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("payload %s: status = %d, want 400", raw, resp.StatusCode)
		}
		if body["code"] != "INVALID_PRIORITY" {
			t.Errorf("payload %s: code = %v", raw, body["code"])
		}
	}
	if storeCalls != 0 {
		t.Error("out-of-range priority must not mutate the store")
	}
}

func TestTaskPriorityUpdateMissingField(t *testing.T) {
	server := newTestServer(&fakeStore{}, nil)
	defer server.Close()

	resp, body := patchJSON(t, server.URL+"/tasks/42/priority", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != "INVALID_BODY" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestTaskPriorityUpdateUnknownTask(t *testing.T) {
	fs := &fakeStore{
		updateTaskPriorityFn: func(context.Context, int64, int) error {
			return sql.ErrNoRows
		},
	}
	server := newTestServer(fs, nil)
	defer server.Close()

	resp, body := patchJSON(t, server.URL+"/tasks/999/priority", `{"priority": 5}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body["code"] != "NOT_FOUND" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestTaskStatusUpdateNonNumericID(t *testing.T) {
	server := newTestServer(&fakeStore{}, nil)
	defer server.Close()

	resp, body := patchJSON(t, server.URL+"/tasks/abc/status", `{"status": "Completed"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body["code"] != "INVALID_ID" {
		t.Errorf("code = %v", body["code"])
	}
}
