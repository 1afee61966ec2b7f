package app

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"voicelog/api/internal/store"
)

func TestListContactsSearchReachesFallback(t *testing.T) {
	var gotSearch string
	fs := &fakeStore{
		listContactsFn: func(_ context.Context, search string, limit, offset int) ([]store.ContactRecord, error) {
			gotSearch = search
			return []store.ContactRecord{{ID: 1, ContactName: "Sarah Jenkins"}}, nil
		},
	}
	server := newTestServer(fs, nil)
	defer server.Close()

	resp, err := http.Get(server.URL + "/contacts?search=sarah")
	if err != nil {
		t.Fatalf("GET /contacts failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if gotSearch != "sarah" {
		t.Errorf("search = %q", gotSearch)
	}

	var contacts []store.ContactRecord
	if err := json.NewDecoder(resp.Body).Decode(&contacts); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(contacts) != 1 || contacts[0].ContactName != "Sarah Jenkins" {
		t.Errorf("contacts = %+v", contacts)
	}
}

func TestIngestContactsArrayPayload(t *testing.T) {
	var got []store.ContactRecord
	fs := &fakeStore{
		upsertContactsFn: func(_ context.Context, contacts []store.ContactRecord) ([]store.ContactRecord, error) {
			got = contacts
			return contacts, nil
		},
	}
	server := newTestServer(fs, nil)
	defer server.Close()

	resp, body := postJSON(t, server.URL+"/contacts", `[
		{"Result Contact Name": "Sarah Jenkins", "Result Company": "Acme", "Result Email": "sarah@acme.test"},
		{"contact_name": "Bo Lindqvist", "status": "Customer"}
	]`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body["count"] != float64(2) {
		t.Errorf("count = %v", body["count"])
	}
	if len(got) != 2 {
		t.Fatalf("contacts = %+v", got)
	}
	if got[0].Company == nil || *got[0].Company != "Acme" {
		t.Errorf("first contact company = %v", got[0].Company)
	}
	if got[0].Status != "Lead" {
		t.Errorf("default status = %q", got[0].Status)
	}
	if got[1].Status != "Customer" {
		t.Errorf("explicit status = %q", got[1].Status)
	}
}

func TestIngestContactsLegacyLoopFormat(t *testing.T) {
	var got []store.ContactRecord
	fs := &fakeStore{
		upsertContactsFn: func(_ context.Context, contacts []store.ContactRecord) ([]store.ContactRecord, error) {
			got = contacts
			return contacts, nil
		},
	}
	server := newTestServer(fs, nil)
	defer server.Close()

	resp, _ := postJSON(t, server.URL+"/contacts", `{"contact_name": "Ann Doe, Raj Patel", "company": "Initech"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(got) != 2 {
		t.Fatalf("contacts = %+v", got)
	}
	if got[0].ContactName != "Ann Doe" || got[1].ContactName != "Raj Patel" {
		t.Errorf("names = %q %q", got[0].ContactName, got[1].ContactName)
	}
	if got[0].Company == nil || *got[0].Company != "Initech" {
		t.Errorf("first contact company = %v", got[0].Company)
	}
	// ragged company list: second contact has none
	if got[1].Company != nil {
		t.Errorf("second contact company = %v", got[1].Company)
	}
}
