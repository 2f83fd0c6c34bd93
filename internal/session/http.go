package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	allocatePath    = "/v1/sessions/allocate"
	allocationsPath = "/v1/sessions/allocations"
	deallocatePath  = "/v1/sessions/deallocate"

	defaultPollInterval = time.Second
)

var ErrBaseURLRequired = errors.New("session backend url is empty")

type (
	// HTTPConfig holds configuration used to access a session backend over HTTP.
	HTTPConfig struct {
		BaseURL   string `env:"NETCODE_SESSION_BACKEND_URL"`
		AccessKey string `env:"NETCODE_SESSION_ACCESS_KEY"`
		SecretKey string `env:"NETCODE_SESSION_SECRET_KEY"`

		// TokenURL switches from basic auth to bearer tokens exchanged here.
		TokenURL string `env:"NETCODE_SESSION_TOKEN_URL"`

		// PollInterval is how often Create checks whether an address has
		// been assigned.
		PollInterval time.Duration `env:"NETCODE_SESSION_POLL_INTERVAL"`
	}

	// HTTPService is a Service backed by a REST session backend.
	HTTPService struct {
		cfg    HTTPConfig
		client *http.Client
		tokens *TokenSource
		logger *logrus.Entry
	}

	// allocateResponse wraps the allocate result with the backend's status.
	allocateResponse struct {
		Success    bool    `json:"success"`
		Allocation Session `json:"allocation"`
		Error      string  `json:"error,omitempty"`
	}

	// allocationsResponse wraps the allocations result with the backend's status.
	allocationsResponse struct {
		Success     bool      `json:"success"`
		Allocations []Session `json:"allocations"`
		Error       string    `json:"error,omitempty"`
	}
)

// NewHTTPService returns a service for the backend described by cfg.
func NewHTTPService(cfg HTTPConfig, logger *logrus.Entry) *HTTPService {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	client := &http.Client{Timeout: 10 * time.Second}

	s := &HTTPService{
		cfg:    cfg,
		client: client,
		logger: logger,
	}

	if cfg.TokenURL != "" {
		s.tokens = NewTokenSource(cfg.TokenURL, cfg.AccessKey, cfg.SecretKey, client)
	}

	return s
}

// NewHTTPServiceFromEnv creates a service for baseURL, letting the
// environment override it and supply credentials.
func NewHTTPServiceFromEnv(baseURL string, logger *logrus.Entry) (*HTTPService, error) {
	cfg := HTTPConfig{BaseURL: baseURL}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load session backend config from env: %w", err)
	}

	if cfg.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}

	return NewHTTPService(cfg, logger), nil
}

// Create implements Service. It allocates a session and then polls the
// backend until the session has an address or ctx is done.
func (s *HTTPService) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	params := url.Values{}
	params.Add("uuid", req.ID)
	params.Add("name", req.Name)
	params.Add("maxplayers", strconv.Itoa(req.MaxPlayers))

	res, err := s.do(ctx, http.MethodPost, allocatePath, params)
	if err != nil {
		return nil, fmt.Errorf("send allocate request: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusConflict:
		return nil, ErrSessionExists
	case res.StatusCode == http.StatusServiceUnavailable:
		return nil, ErrNoCapacity
	case res.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("allocate call failed: %d: %s", res.StatusCode, getBody(res.Body))
	}

	var ar allocateResponse
	if err = json.NewDecoder(res.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("decode allocate response: %w", err)
	}

	if !ar.Success {
		return nil, fmt.Errorf("allocation request failed: %s", ar.Error)
	}

	s.logger.WithField("session_id", req.ID).Info("session allocated, waiting for address")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		sess, err := s.Lookup(ctx, req.ID)
		switch {
		case err == nil && sess.IP != "" && sess.Port != 0:
			return sess, nil
		case err != nil && !errors.Is(err, ErrSessionNotFound):
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for session address: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Lookup implements Service.
func (s *HTTPService) Lookup(ctx context.Context, id string) (*Session, error) {
	params := url.Values{}
	params.Add("uuid", id)

	res, err := s.do(ctx, http.MethodGet, allocationsPath, params)
	if err != nil {
		return nil, fmt.Errorf("send allocations request: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return nil, ErrSessionNotFound
	case res.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("allocations call failed: %d: %s", res.StatusCode, getBody(res.Body))
	}

	var ar allocationsResponse
	if err = json.NewDecoder(res.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("decode allocations response: %w", err)
	}

	if !ar.Success {
		return nil, fmt.Errorf("allocations request failed: %s", ar.Error)
	}

	for i := range ar.Allocations {
		if ar.Allocations[i].ID == id {
			return &ar.Allocations[i], nil
		}
	}

	return nil, ErrSessionNotFound
}

// Delete implements Service.
func (s *HTTPService) Delete(ctx context.Context, id string) error {
	params := url.Values{}
	params.Add("uuid", id)

	res, err := s.do(ctx, http.MethodPost, deallocatePath, params)
	if err != nil {
		return fmt.Errorf("send deallocate request: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return ErrSessionNotFound
	case res.StatusCode != http.StatusOK:
		return fmt.Errorf("deallocate call failed: %d: %s", res.StatusCode, getBody(res.Body))
	}

	return nil
}

// do sends an authorised request for path with params as the query string.
func (s *HTTPService) do(ctx context.Context, method, path string, params url.Values) (*http.Response, error) {
	u, err := url.Parse(s.cfg.BaseURL + path)
	if err != nil {
		return nil, fmt.Errorf("parse url %s: %w", s.cfg.BaseURL+path, err)
	}

	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	switch {
	case s.tokens != nil:
		if err = s.tokens.AddRequestBearerToken(req); err != nil {
			return nil, err
		}
	case s.cfg.AccessKey != "":
		req.SetBasicAuth(s.cfg.AccessKey, s.cfg.SecretKey)
	}

	s.logger.WithField("url", u.String()).Debugf("sending %s request", method)

	return s.client.Do(req)
}

func getBody(r io.Reader) string {
	v, err := io.ReadAll(r)
	if err != nil {
		return ""
	}

	return string(v)
}
