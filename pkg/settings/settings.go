package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/newdoli/dolisync/pkg/store"
	"github.com/sirupsen/logrus"
)

// Well-known configuration keys.
const (
	// KeyServerURL holds the base URL of the remote Dolibarr server.
	KeyServerURL = "dolibarr_url"

	// KeyToken holds the remote API credential obtained on login.
	KeyToken = "dolibarr_token"
)

// ErrNotConfigured is returned when an operation requires the remote
// server URL and none is stored.
var ErrNotConfigured = errors.New("server url not configured")

// Service provides typed access to the persisted configuration table.
// Reads are forgiving: a missing key or an undecodable value yields the
// caller-supplied default, because configuration absence is a normal
// first-run state, not a fault.
type Service struct {
	log   logrus.FieldLogger
	store store.Store
}

// NewService creates a settings service over the given store.
func NewService(log logrus.FieldLogger, st store.Store) *Service {
	return &Service{
		log:   log.WithField("component", "settings"),
		store: st,
	}
}

// Get returns the decoded value for key, or def when the key is missing
// or its value cannot be decoded per its declared type.
func (s *Service) Get(ctx context.Context, key string, def any) any {
	cfg, err := s.store.GetConfiguration(ctx, key)
	if err != nil {
		return def
	}

	switch cfg.Type {
	case store.TypeString:
		return cfg.Value
	case store.TypeNumber:
		f, err := strconv.ParseFloat(cfg.Value, 64)
		if err != nil {
			return def
		}

		return f
	case store.TypeBoolean:
		return cfg.Value == "true"
	case store.TypeJSON:
		var v any
		if err := json.Unmarshal([]byte(cfg.Value), &v); err != nil {
			return def
		}

		return v
	default:
		return cfg.Value
	}
}

// GetString returns the stored string for key, or def.
func (s *Service) GetString(ctx context.Context, key, def string) string {
	if v, ok := s.Get(ctx, key, def).(string); ok {
		return v
	}

	return def
}

// Set stringifies value per valueType and upserts it under key.
func (s *Service) Set(
	ctx context.Context, key string, value any, valueType, description string,
) error {
	var stringValue string

	switch valueType {
	case store.TypeJSON:
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encoding configuration %q: %w", key, err)
		}

		stringValue = string(data)
	default:
		stringValue = fmt.Sprint(value)
	}

	return s.store.SetConfiguration(ctx, key, stringValue, valueType, description)
}

// Delete removes the setting under key. Deleting a missing key is not
// an error.
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.store.DeleteConfiguration(ctx, key)
}

// All lists every stored setting.
func (s *Service) All(ctx context.Context) ([]store.Configuration, error) {
	return s.store.ListConfigurations(ctx)
}

// --- Remote server URL ---

// ServerURL returns the stored remote base URL, or "" when unset.
func (s *Service) ServerURL(ctx context.Context) string {
	return s.GetString(ctx, KeyServerURL, "")
}

// SetServerURL validates, normalizes, and stores the remote base URL.
// The URL must be http or https; a trailing slash is enforced.
func (s *Service) SetServerURL(ctx context.Context, raw string) error {
	if !isValidURL(raw) {
		return fmt.Errorf("invalid server url %q", raw)
	}

	normalized := raw
	if !strings.HasSuffix(normalized, "/") {
		normalized += "/"
	}

	if err := s.Set(
		ctx, KeyServerURL, normalized, store.TypeString, "Dolibarr server URL",
	); err != nil {
		return err
	}

	s.log.WithField("url", normalized).Info("Server URL configured")

	return nil
}

// ClearServerURL removes the stored remote base URL.
func (s *Service) ClearServerURL(ctx context.Context) error {
	return s.Delete(ctx, KeyServerURL)
}

// IsConfigurationComplete reports whether a valid remote base URL is
// stored.
func (s *Service) IsConfigurationComplete(ctx context.Context) bool {
	return isValidURL(s.ServerURL(ctx))
}

// APIURL builds the REST endpoint URL for the given resource path.
func (s *Service) APIURL(ctx context.Context, endpoint string) (string, error) {
	base := s.ServerURL(ctx)
	if base == "" {
		return "", ErrNotConfigured
	}

	return strings.TrimSuffix(base, "/") +
		"/api/index.php/" +
		strings.TrimPrefix(endpoint, "/"), nil
}

// --- Remote credential ---

// Token returns the stored remote credential, or "" when unset.
func (s *Service) Token(ctx context.Context) string {
	return s.GetString(ctx, KeyToken, "")
}

// SetToken stores the remote credential obtained on login.
func (s *Service) SetToken(ctx context.Context, token string) error {
	return s.Set(ctx, KeyToken, token, store.TypeString, "Dolibarr API token")
}

// ClearToken discards the stored remote credential.
func (s *Service) ClearToken(ctx context.Context) error {
	return s.Delete(ctx, KeyToken)
}

func isValidURL(raw string) bool {
	if raw == "" {
		return false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
