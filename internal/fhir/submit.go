package fhir

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/radbridge/studyflow/internal/config"
	"github.com/radbridge/studyflow/internal/logger"
)

// SubmissionResult carries the remote store's raw response. Status
// interpretation is the caller's concern.
type SubmissionResult struct {
	StatusCode int
	Body       string
}

// Submitter hands a finalized document to the remote clinical data
// store.
type Submitter interface {
	Submit(ctx context.Context, doc map[string]any) (SubmissionResult, error)
}

type httpSubmitter struct {
	log      *logger.Logger
	client   *http.Client
	baseURL  string
	issuer   string
	audience string
	secret   []byte
	tokenTTL time.Duration
}

func NewSubmitter(cfg *config.Config, log *logger.Logger) Submitter {
	return &httpSubmitter{
		log:      log.With("service", "Submitter"),
		client:   &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:  strings.TrimRight(cfg.FHIRBaseURL, "/"),
		issuer:   cfg.FHIRIssuer,
		audience: cfg.FHIRAudience,
		secret:   []byte(cfg.FHIRSecret),
		tokenTTL: cfg.FHIRTokenTTL,
	}
}

// Submit derives the resource path from the document's resourceType,
// signs a short-lived service token, and POSTs the document. No
// internal retry; redelivery belongs to the queue.
func (s *httpSubmitter) Submit(ctx context.Context, doc map[string]any) (SubmissionResult, error) {
	resourceType, _ := doc["resourceType"].(string)
	if resourceType == "" {
		return SubmissionResult{}, fmt.Errorf("document has no resourceType")
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("encode document: %w", err)
	}

	url := s.baseURL + "/" + resourceType
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/fhir+json")

	token, err := s.signToken()
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("sign submission token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("submit %s: %w", resourceType, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("read submission response: %w", err)
	}

	s.log.Info("document submitted", "resource_type", resourceType,
		"status", resp.StatusCode)
	return SubmissionResult{StatusCode: resp.StatusCode, Body: string(body)}, nil
}

func (s *httpSubmitter) signToken() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{s.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
