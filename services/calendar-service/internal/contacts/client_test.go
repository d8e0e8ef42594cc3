package contacts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_SearchNormalizesAcrossShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/crm/portal-1/contacts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header %q", got)
		}
		if r.URL.Query().Get("query") != "ann" {
			t.Errorf("unexpected query %q", r.URL.Query().Get("query"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result": {"items": [
			{"ID": "5", "NAME": "Anna Schmidt", "EMAIL": [{"VALUE": "anna@example.com"}]},
			{"not": "a contact"},
			{"id": 6, "first_name": "Ann", "last_name": "Lee"}
		]}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok", nil)
	got, err := client.Search(context.Background(), "portal-1", "ann")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 contacts, got %d", len(got))
	}
	if got[0].ID != 5 || got[0].Email != "anna@example.com" {
		t.Fatalf("unexpected first contact: %+v", got[0])
	}
	if got[1].Name != "Ann Lee" {
		t.Fatalf("unexpected second contact: %+v", got[1])
	}
}

func TestClient_GetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", nil)
	_, err := client.Get(context.Background(), "portal-1", 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewClient_EmptyBaseURLDisabled(t *testing.T) {
	if c := NewClient("  ", "tok", nil); c != nil {
		t.Fatal("expected nil client for empty base url")
	}
}
