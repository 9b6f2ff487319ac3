package fhir

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/radbridge/studyflow/internal/config"
	"github.com/radbridge/studyflow/internal/logger"
)

func submitterConfig(baseURL string) *config.Config {
	return &config.Config{
		FHIRBaseURL:  baseURL,
		FHIRIssuer:   "studyflow",
		FHIRAudience: "fhir-store",
		FHIRSecret:   "test-secret",
		FHIRTokenTTL: time.Minute,
		HTTPTimeout:  5 * time.Second,
	}
}

func TestSubmit(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"new-resource"}`))
	}))
	defer srv.Close()

	sub := NewSubmitter(submitterConfig(srv.URL), logger.NewNop())
	res, err := sub.Submit(context.Background(), map[string]any{
		"resourceType": "ImagingStudy",
		"status":       "available",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if res.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", res.StatusCode)
	}
	if res.Body != `{"id":"new-resource"}` {
		t.Fatalf("body = %q", res.Body)
	}
	if gotPath != "/ImagingStudy" {
		t.Fatalf("path = %q, want /ImagingStudy", gotPath)
	}
	if gotContentType != "application/fhir+json" {
		t.Fatalf("content type = %q", gotContentType)
	}
	if gotBody["resourceType"] != "ImagingStudy" {
		t.Fatalf("submitted body = %v", gotBody)
	}

	raw, ok := strings.CutPrefix(gotAuth, "Bearer ")
	if !ok {
		t.Fatalf("authorization = %q, want bearer token", gotAuth)
	}
	tok, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	if err != nil || !tok.Valid {
		t.Fatalf("token invalid: %v", err)
	}
	claims := tok.Claims.(*jwt.RegisteredClaims)
	if claims.Issuer != "studyflow" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
}

func TestSubmitStatusNotInterpreted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	sub := NewSubmitter(submitterConfig(srv.URL), logger.NewNop())
	res, err := sub.Submit(context.Background(), map[string]any{"resourceType": "ImagingStudy"})
	if err != nil {
		t.Fatalf("Submit returned transport error for a completed exchange: %v", err)
	}
	if res.StatusCode != http.StatusBadGateway || res.Body != "upstream unavailable" {
		t.Fatalf("result = %+v", res)
	}
}

func TestSubmitMissingResourceType(t *testing.T) {
	sub := NewSubmitter(submitterConfig("http://unreachable.invalid"), logger.NewNop())
	if _, err := sub.Submit(context.Background(), map[string]any{}); err == nil {
		t.Fatal("Submit without resourceType succeeded")
	}
}

func TestSubmitTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	sub := NewSubmitter(submitterConfig(srv.URL), logger.NewNop())
	if _, err := sub.Submit(context.Background(), map[string]any{"resourceType": "ImagingStudy"}); err == nil {
		t.Fatal("Submit against closed server succeeded")
	}
}
