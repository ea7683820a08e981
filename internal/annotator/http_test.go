package annotator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPAnnotator_Annotate(t *testing.T) {
	var gotBody string
	var gotMime string
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotMime = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"tags":["beach","sunset"],"description":"a sunset","sharpness":72.5}`))
	}))
	defer srv.Close()

	a := NewHTTPAnnotator(srv.URL, "secret", 0)
	annotation, err := a.Annotate(context.Background(), strings.NewReader("image bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}

	if gotBody != "image bytes" {
		t.Errorf("request body = %q, want image bytes", gotBody)
	}
	if gotMime != "image/jpeg" {
		t.Errorf("Content-Type = %q, want image/jpeg", gotMime)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q, want Bearer secret", gotAuth)
	}

	if len(annotation.Tags) != 2 || annotation.Tags[0] != "beach" {
		t.Errorf("Tags = %v, want [beach sunset]", annotation.Tags)
	}
	if annotation.Description != "a sunset" {
		t.Errorf("Description = %q, want a sunset", annotation.Description)
	}
	if annotation.Sharpness == nil || *annotation.Sharpness != 72.5 {
		t.Errorf("Sharpness = %v, want 72.5", annotation.Sharpness)
	}
}

func TestHTTPAnnotator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a := NewHTTPAnnotator(srv.URL, "", 0)
	_, err := a.Annotate(context.Background(), strings.NewReader("x"), "image/png")
	if err == nil {
		t.Fatal("Annotate() expected error for 503 response")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error = %v, want status code in message", err)
	}
}

func TestHTTPAnnotator_Cancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewHTTPAnnotator(srv.URL, "", 0)
	if _, err := a.Annotate(ctx, strings.NewReader("x"), "image/png"); err == nil {
		t.Fatal("Annotate() expected error for cancelled context")
	}
}

func TestNoneAnnotator(t *testing.T) {
	a := NewNoneAnnotator()
	annotation, err := a.Annotate(context.Background(), strings.NewReader("bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if annotation == nil {
		t.Fatal("Annotate() returned nil annotation")
	}
	if len(annotation.Tags) != 0 {
		t.Errorf("Tags = %v, want empty", annotation.Tags)
	}
}
