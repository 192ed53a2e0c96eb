// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/errors"
	commonhttp "github.com/DEFRA/fc-apply-for-a-tree-felling-licence-sub014/internal/common/http"
)

// ErrUserNotFound is returned when the realm has no user with the given id.
var ErrUserNotFound = stderrors.New("keycloak user not found")

// KeycloakClient reads applicant accounts from a Keycloak realm using the
// client credentials flow.
type KeycloakClient struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *commonhttp.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// User represents a user in Keycloak.
type User struct {
	ID            string `json:"id,omitempty"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Username      string `json:"username"`
	Enabled       bool   `json:"enabled"`
	EmailVerified bool   `json:"emailVerified"`
}

// TokenResponse holds the response from Keycloak's token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// NewKeycloakClient creates a new instance of KeycloakClient.
func NewKeycloakClient(baseURL, realm, clientID, clientSecret string, timeout time.Duration) *KeycloakClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &KeycloakClient{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		realm:        realm,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   commonhttp.NewClient(timeout),
	}
}

// token returns a cached access token, fetching a new one when it is about to expire.
func (k *KeycloakClient) token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && time.Now().Add(10*time.Second).Before(k.tokenExpiry) {
		return k.accessToken, nil
	}

	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.baseURL, k.realm)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", k.clientID)
	data.Set("client_secret", k.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("keycloak token request failed with status %d", resp.StatusCode)
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	k.accessToken = tokenResp.AccessToken
	k.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return k.accessToken, nil
}

// GetUser retrieves a user by id. A missing user is reported as ErrUserNotFound.
func (k *KeycloakClient) GetUser(ctx context.Context, userID string) (*User, error) {
	accessToken, err := k.token(ctx)
	if err != nil {
		return nil, errors.NewDependencyFailureError("Failed to authenticate with Keycloak", err)
	}

	userURL := fmt.Sprintf("%s/admin/realms/%s/users/%s", k.baseURL, k.realm, url.PathEscape(userID))

	var user User
	err = k.httpClient.GetJSON(ctx, userURL, map[string]string{"Authorization": "Bearer " + accessToken}, &user)
	if err != nil {
		var statusErr *commonhttp.StatusError
		if stderrors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		depErr := errors.NewDependencyFailureError("Keycloak API error during user lookup", err)
		depErr.Retryable = isTransientHTTPError(err)
		return nil, depErr
	}

	return &user, nil
}

// isTransientHTTPError returns true if the error indicates a potentially transient failure.
func isTransientHTTPError(err error) bool {
	var statusErr *commonhttp.StatusError
	if stderrors.As(err, &statusErr) {
		return statusErr.Transient()
	}
	return true
}
