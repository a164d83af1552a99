package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeKindValid(t *testing.T) {
	for _, k := range []EnvelopeKind{KindOffer, KindAnswer, KindIceCandidate, KindCallRejected, KindCallEnded, KindCallTransfer} {
		assert.True(t, k.Valid(), string(k))
	}
	assert.False(t, EnvelopeKind("").Valid())
	assert.False(t, EnvelopeKind("heartbeat").Valid())
	assert.False(t, EnvelopeKind("user:online").Valid())
}

func TestEncryptionEnabledDefaultsOn(t *testing.T) {
	var env Envelope
	assert.True(t, env.EncryptionEnabled())

	off := false
	env.Encrypted = &off
	assert.False(t, env.EncryptionEnabled())

	on := true
	env.Encrypted = &on
	assert.True(t, env.EncryptionEnabled())
}

func TestPayloadDecodeGuardsKind(t *testing.T) {
	offer := NewOffer("bob", "Alice", SessionDescription{Type: "offer", SDP: "v=0"}, MediaAudio, true)

	sd, err := offer.Description()
	require.NoError(t, err)
	assert.Equal(t, "v=0", sd.SDP)

	_, err = offer.IceCandidate()
	assert.ErrorIs(t, err, ErrWrongPayload)
	_, err = offer.Transfer()
	assert.ErrorIs(t, err, ErrWrongPayload)
}

func TestCandidateRoundTripOnWire(t *testing.T) {
	mid := "0"
	idx := uint16(1)
	env := NewIceCandidate("bob", "Alice", Candidate{
		Candidate:     "candidate:1 1 udp 1 10.0.0.1 5000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	})

	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `"type":"ice-candidate"`))

	var got Envelope
	require.NoError(t, json.Unmarshal(b, &got))
	c, err := got.IceCandidate()
	require.NoError(t, err)
	require.NotNil(t, c.SDPMid)
	assert.Equal(t, "0", *c.SDPMid)
	require.NotNil(t, c.SDPMLineIndex)
	assert.Equal(t, uint16(1), *c.SDPMLineIndex)
}

func TestValidateUserID(t *testing.T) {
	assert.ErrorIs(t, ValidateUserID(""), ErrUserIDEmpty)
	assert.ErrorIs(t, ValidateUserID(UserID(strings.Repeat("a", MaxUserIDLen+1))), ErrUserIDTooLong)
	assert.NoError(t, ValidateUserID("alice"))
	assert.NoError(t, ValidateUserID(UserID(strings.Repeat("a", MaxUserIDLen))))
}

func TestNewUser(t *testing.T) {
	u, err := NewUser("alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, UserID("alice"), u.ID)

	_, err = NewUser("alice", "")
	assert.ErrorIs(t, err, ErrUsernameEmpty)
	_, err = NewUser("", "Alice")
	assert.ErrorIs(t, err, ErrUserIDEmpty)
	_, err = NewUser("alice", strings.Repeat("a", MaxUsernameLen+1))
	assert.ErrorIs(t, err, ErrUsernameTooLong)
}
