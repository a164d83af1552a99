package httpapi

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peerline/peerline/internal/config"
)

func TestMintTurnCredentials(t *testing.T) {
	cfg := config.TurnConfig{
		URL:    "turn:turn.example.com:443",
		Secret: "topsecret",
		TTL:    86400,
	}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	creds := MintTurnCredentials(cfg, "alice", now)

	wantUser := "1740916800:alice"
	assert.Equal(t, wantUser, creds.Username)
	assert.Equal(t, 86400, creds.TTL)
	assert.Equal(t, []string{
		"turn:turn.example.com:443?transport=tcp",
		"turn:turn.example.com:443?transport=udp",
	}, creds.URIs)

	mac := hmac.New(sha1.New, []byte("topsecret"))
	mac.Write([]byte(wantUser))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, creds.Credential)
}

func TestMintTurnCredentialsVaryByUserAndTime(t *testing.T) {
	cfg := config.TurnConfig{URL: "turn:t.example.com:3478", Secret: "s", TTL: 600}
	now := time.Unix(1_700_000_000, 0)

	a := MintTurnCredentials(cfg, "alice", now)
	b := MintTurnCredentials(cfg, "bob", now)
	require.NotEqual(t, a.Username, b.Username)
	require.NotEqual(t, a.Credential, b.Credential)

	later := MintTurnCredentials(cfg, "alice", now.Add(time.Hour))
	require.NotEqual(t, a.Username, later.Username)
	require.NotEqual(t, a.Credential, later.Credential)
}
