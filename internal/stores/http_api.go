package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-authgate/idgate/internal/httpclient"
	"github.com/go-authgate/idgate/internal/identitystore"
)

// HTTPAPIConfig configures an HTTPAPIStore.
type HTTPAPIConfig struct {
	Settings identitystore.Settings
	URL      string
}

// APIAuthRequest is the request payload sent to external API
type APIAuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// APIAuthResponse is the expected response from external API
type APIAuthResponse struct {
	Success bool     `json:"success"`
	UserID  string   `json:"user_id,omitempty"`
	Groups  []string `json:"groups,omitempty"`
	Message string   `json:"message,omitempty"`
}

// HTTPAPIStore validates credentials by posting them to an external API.
type HTTPAPIStore struct {
	identitystore.Base

	url    string
	client *httpclient.Client
}

func NewHTTPAPIStore(cfg HTTPAPIConfig, client *httpclient.Client) (*HTTPAPIStore, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: http api url is required", ErrInvalidConfig)
	}
	if client == nil {
		return nil, fmt.Errorf("%w: http api store needs a client", ErrInvalidConfig)
	}
	if cfg.Settings.ID == "" {
		cfg.Settings.ID = "http_api"
	}

	s := &HTTPAPIStore{url: cfg.URL, client: client}
	s.Base = identitystore.NewBase(cfg.Settings, passwordValidators(s.validatePassword))
	return s, nil
}

func (s *HTTPAPIStore) validatePassword(ctx context.Context, name, password string) (*identitystore.Result, error) {
	resp, err := s.client.PostJSON(ctx, s.url, APIAuthRequest{Username: name, Password: password})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrHTTPAPIConnection, err)
	}

	var authResp APIAuthResponse
	decodeErr := json.Unmarshal(resp.Body, &authResp)

	if !resp.OK() {
		// the API may reject credentials with 401/403 instead of success=false
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return identitystore.InvalidResult, nil
		}
		if decodeErr == nil && authResp.Message != "" {
			return nil, fmt.Errorf("%w: HTTP %d - %s", ErrHTTPAPIInvalidResp, resp.StatusCode, authResp.Message)
		}
		return nil, fmt.Errorf("%w: HTTP %d - %s", ErrHTTPAPIInvalidResp, resp.StatusCode, resp.Preview(200))
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrHTTPAPIInvalidResp, decodeErr)
	}
	if !authResp.Success {
		return identitystore.InvalidResult, nil
	}
	if authResp.UserID == "" {
		return nil, fmt.Errorf(
			"%w: external API returned success=true but missing user_id",
			ErrHTTPAPIInvalidResp,
		)
	}

	settings := s.Settings()
	return identitystore.NewValidResult(identitystore.Identity{
		StoreID:        settings.ID,
		CallerName:     name,
		CallerUniqueID: authResp.UserID,
		Groups:         groupsIfProvided(settings, authResp.Groups),
	})
}
