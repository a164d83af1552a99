package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/peerline/peerline/internal/domain"
)

// DefaultFallbackCredentials is the static set used when minting is
// unreachable; a call attempt is never blocked on the credential
// endpoint.
func DefaultFallbackCredentials() domain.RelayCredentials {
	return domain.RelayCredentials{
		Username:   "default",
		Credential: "default",
		TTL:        86400,
		URIs: []string{
			"turn:turn.example.com:443?transport=tcp",
			"turn:turn.example.com:443?transport=udp",
		},
	}
}

// HTTPCredentialSource fetches short-lived TURN credentials from the
// relay server's credential endpoint.
type HTTPCredentialSource struct {
	URL      string
	Client   *http.Client
	Fallback domain.RelayCredentials
}

func NewHTTPCredentialSource(url string, client *http.Client) *HTTPCredentialSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCredentialSource{URL: url, Client: client, Fallback: DefaultFallbackCredentials()}
}

func (s *HTTPCredentialSource) RelayCredentials(ctx context.Context) (domain.RelayCredentials, error) {
	rc, err := s.fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "rtc").Msg("turn credential fetch failed, using fallback")
		return s.Fallback, nil
	}
	return rc, nil
}

func (s *HTTPCredentialSource) fetch(ctx context.Context) (domain.RelayCredentials, error) {
	if s.URL == "" {
		return domain.RelayCredentials{}, fmt.Errorf("no credential endpoint configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return domain.RelayCredentials{}, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return domain.RelayCredentials{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.RelayCredentials{}, fmt.Errorf("credential endpoint returned %d", resp.StatusCode)
	}
	var rc domain.RelayCredentials
	if err := json.NewDecoder(resp.Body).Decode(&rc); err != nil {
		return domain.RelayCredentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	return rc, nil
}
