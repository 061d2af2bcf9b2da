package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/newdoli/dolisync/pkg/settings"
	"github.com/sirupsen/logrus"
)

// authHeader carries the remote credential on every authenticated call.
const authHeader = "DOLAPIKEY"

// Failure causes. Every gateway error wraps exactly one of these so
// callers can tell a dead network from a rejecting server from a
// garbled payload.
var (
	ErrTransport = errors.New("transport failure")
	ErrStatus    = errors.New("unexpected status")
	ErrDecode    = errors.New("malformed payload")
)

// Client is a stateless HTTP client for the remote Dolibarr REST API.
// The base URL is resolved through settings on every call, so a
// reconfiguration takes effect immediately.
type Client struct {
	log      logrus.FieldLogger
	settings *settings.Service
	http     *http.Client
}

// NewClient creates a gateway client. No internal timeout is applied;
// callers bound requests through the context.
func NewClient(log logrus.FieldLogger, svc *settings.Service) *Client {
	return &Client{
		log:      log.WithField("component", "gateway"),
		settings: svc,
		http:     &http.Client{},
	}
}

// LoginResult is the outcome of a successful credential exchange.
type LoginResult struct {
	Token string
	User  *RemoteUser
}

type loginSuccess struct {
	Code    int    `json:"code"`
	Token   string `json:"token"`
	Entity  string `json:"entity"`
	Message string `json:"message"`
}

type loginResponse struct {
	Success *loginSuccess `json:"success,omitempty"`
	Token   string        `json:"token,omitempty"`
	User    *rawUser      `json:"user,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Login exchanges credentials for a remote API token.
func (c *Client) Login(
	ctx context.Context, login, password string,
) (*LoginResult, error) {
	body := map[string]string{
		"login":    login,
		"password": password,
	}

	var resp loginResponse
	if err := c.doJSON(
		ctx, http.MethodPost, "login", "", body, &resp,
	); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	token := resp.Token
	if token == "" && resp.Success != nil {
		token = resp.Success.Token
	}

	if token == "" {
		if resp.Error != "" {
			return nil, fmt.Errorf("login failed: %s", resp.Error)
		}

		return nil, fmt.Errorf("login failed: %w: no token in response", ErrDecode)
	}

	result := &LoginResult{Token: token}
	if resp.User != nil {
		result.User = resp.User.normalize()
	}

	return result, nil
}

// Introspect validates a token against the user-info endpoint and
// returns the account it belongs to, rights included.
func (c *Client) Introspect(
	ctx context.Context, token string,
) (*RemoteUser, error) {
	var raw rawUser
	if err := c.doJSON(
		ctx, http.MethodGet, "users/info?withrights=1", token, nil, &raw,
	); err != nil {
		return nil, fmt.Errorf("token invalid: %w", err)
	}

	return raw.normalize(), nil
}

// FetchUsers lists every backend account.
func (c *Client) FetchUsers(
	ctx context.Context, token string,
) ([]RemoteUser, error) {
	var raw []rawUser
	if err := c.doJSON(
		ctx, http.MethodGet, "users", token, nil, &raw,
	); err != nil {
		return nil, fmt.Errorf("fetching users: %w", err)
	}

	users := make([]RemoteUser, 0, len(raw))
	for i := range raw {
		users = append(users, *raw[i].normalize())
	}

	return users, nil
}

// FetchGroups lists every permission group.
func (c *Client) FetchGroups(
	ctx context.Context, token string,
) ([]RemoteGroup, error) {
	var groups []RemoteGroup
	if err := c.doJSON(
		ctx, http.MethodGet, "groups", token, nil, &groups,
	); err != nil {
		return nil, fmt.Errorf("fetching groups: %w", err)
	}

	return groups, nil
}

// FetchThirdParties lists every third party.
func (c *Client) FetchThirdParties(
	ctx context.Context, token string,
) ([]RemoteThirdParty, error) {
	var tps []RemoteThirdParty
	if err := c.doJSON(
		ctx, http.MethodGet, "thirdparties", token, nil, &tps,
	); err != nil {
		return nil, fmt.Errorf("fetching third parties: %w", err)
	}

	return tps, nil
}

// FetchProducts lists every catalogue entry.
func (c *Client) FetchProducts(
	ctx context.Context, token string,
) ([]RemoteProduct, error) {
	var products []RemoteProduct
	if err := c.doJSON(
		ctx, http.MethodGet, "products", token, nil, &products,
	); err != nil {
		return nil, fmt.Errorf("fetching products: %w", err)
	}

	return products, nil
}

// Logout invalidates the token remotely, best-effort. Failures are
// logged and swallowed: logout must always succeed locally.
func (c *Client) Logout(ctx context.Context, token string) {
	if err := c.doJSON(
		ctx, http.MethodPost, "logout", token, nil, nil,
	); err != nil {
		c.log.WithError(err).Warn("Remote logout failed")
	}
}

// doJSON performs one API call. The error, when non-nil, wraps exactly
// one of ErrTransport, ErrStatus, or ErrDecode — or, for an unset base
// URL, settings.ErrNotConfigured.
func (c *Client) doJSON(
	ctx context.Context,
	method, endpoint, token string,
	body, out any,
) error {
	u, err := c.settings.APIURL(ctx, endpoint)
	if err != nil {
		return err
	}

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}

		reqBody = bytes.NewReader(data)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if token != "" {
		req.Header.Set(authHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK ||
		resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf(
			"%w: %s returned status %d", ErrStatus, endpoint, resp.StatusCode,
		)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf(
			"%w: decoding %s response: %v", ErrDecode, endpoint, err,
		)
	}

	return nil
}
