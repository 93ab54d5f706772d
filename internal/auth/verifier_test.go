package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestVerifyResolvesUserID(t *testing.T) {
	var gotAuth, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"user-42"}`))
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, "secret-key", zap.NewNop())

	userID, err := v.Verify(context.Background(), "tok-abc")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if userID != "user-42" {
		t.Errorf("expected user-42, got %q", userID)
	}
	if gotAuth != "Bearer tok-abc" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if gotKey != "secret-key" {
		t.Errorf("expected apikey header, got %q", gotKey)
	}
}

func TestVerifyRejectsMissingToken(t *testing.T) {
	v := NewHTTPVerifier("http://localhost:1", "", zap.NewNop())

	if _, err := v.Verify(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
}

func TestVerifyFailsClosedWithoutEndpoint(t *testing.T) {
	v := NewHTTPVerifier("", "", zap.NewNop())

	if _, err := v.Verify(context.Background(), "tok"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, "", zap.NewNop())

	if _, err := v.Verify(context.Background(), "expired"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsEmptyIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL, "", zap.NewNop())

	if _, err := v.Verify(context.Background(), "tok"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyReportsTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately unreachable

	v := NewHTTPVerifier(srv.URL, "", zap.NewNop())

	_, err := v.Verify(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected error for unreachable verifier")
	}
	if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrMissingToken) {
		t.Errorf("transport failure must be distinguishable, got %v", err)
	}
}
