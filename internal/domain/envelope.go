package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EnvelopeKind discriminates signaling envelopes on the wire.
type EnvelopeKind string

const (
	KindOffer        EnvelopeKind = "offer"
	KindAnswer       EnvelopeKind = "answer"
	KindIceCandidate EnvelopeKind = "ice-candidate"
	KindCallRejected EnvelopeKind = "call-rejected"
	KindCallEnded    EnvelopeKind = "call-ended"
	KindCallTransfer EnvelopeKind = "call-transfer"
)

// MediaKind is the announced call media, audio-only or audio+video.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

var (
	ErrUnknownKind      = errors.New("unknown envelope kind")
	ErrMissingRecipient = errors.New("missing recipient")
	ErrWrongPayload     = errors.New("payload does not match envelope kind")
)

// Envelope is a single signaling message relayed between two call
// participants. The relay never inspects Payload; it only resolves
// Recipient and stamps Sender from the authenticated connection, so a
// client cannot spoof another user.
type Envelope struct {
	Kind       EnvelopeKind    `json:"type"`
	Sender     UserID          `json:"sender,omitempty"`
	Recipient  UserID          `json:"recipient"`
	SenderName string          `json:"senderName,omitempty"`
	CallType   MediaKind       `json:"callType,omitempty"`
	Encrypted  *bool           `json:"encrypted,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// SessionDescription is the negotiation payload carried by offers and
// answers. Type is "offer" or "answer" as produced by the peer link.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate is a single trickled ICE candidate.
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// TransferTarget announces the third party an active call is handed to.
type TransferTarget struct {
	TargetID   UserID `json:"targetId"`
	TargetName string `json:"targetName"`
}

// Valid reports whether the kind is one of the closed envelope set.
func (k EnvelopeKind) Valid() bool {
	switch k {
	case KindOffer, KindAnswer, KindIceCandidate, KindCallRejected, KindCallEnded, KindCallTransfer:
		return true
	}
	return false
}

// EncryptionEnabled treats an absent flag as enabled; only an explicit
// false turns encryption off.
func (e *Envelope) EncryptionEnabled() bool {
	return e.Encrypted == nil || *e.Encrypted
}

// Description decodes the offer/answer payload.
func (e *Envelope) Description() (SessionDescription, error) {
	if e.Kind != KindOffer && e.Kind != KindAnswer {
		return SessionDescription{}, ErrWrongPayload
	}
	var sd SessionDescription
	if err := json.Unmarshal(e.Payload, &sd); err != nil {
		return SessionDescription{}, fmt.Errorf("decode description: %w", err)
	}
	return sd, nil
}

// IceCandidate decodes the candidate payload.
func (e *Envelope) IceCandidate() (Candidate, error) {
	if e.Kind != KindIceCandidate {
		return Candidate{}, ErrWrongPayload
	}
	var c Candidate
	if err := json.Unmarshal(e.Payload, &c); err != nil {
		return Candidate{}, fmt.Errorf("decode candidate: %w", err)
	}
	return c, nil
}

// Transfer decodes the call-transfer payload.
func (e *Envelope) Transfer() (TransferTarget, error) {
	if e.Kind != KindCallTransfer {
		return TransferTarget{}, ErrWrongPayload
	}
	var t TransferTarget
	if err := json.Unmarshal(e.Payload, &t); err != nil {
		return TransferTarget{}, fmt.Errorf("decode transfer: %w", err)
	}
	return t, nil
}

func mustRaw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		// All payload types marshal without error; a failure here is a
		// programming mistake, not runtime input.
		panic(err)
	}
	return b
}

// NewOffer builds the envelope that opens a call attempt.
func NewOffer(recipient UserID, senderName string, sd SessionDescription, media MediaKind, encrypted bool) Envelope {
	return Envelope{
		Kind:       KindOffer,
		Recipient:  recipient,
		SenderName: senderName,
		CallType:   media,
		Encrypted:  &encrypted,
		Payload:    mustRaw(sd),
	}
}

func NewAnswer(recipient UserID, senderName string, sd SessionDescription) Envelope {
	return Envelope{
		Kind:       KindAnswer,
		Recipient:  recipient,
		SenderName: senderName,
		Payload:    mustRaw(sd),
	}
}

func NewIceCandidate(recipient UserID, senderName string, c Candidate) Envelope {
	return Envelope{
		Kind:       KindIceCandidate,
		Recipient:  recipient,
		SenderName: senderName,
		Payload:    mustRaw(c),
	}
}

func NewCallRejected(recipient UserID, senderName string) Envelope {
	return Envelope{Kind: KindCallRejected, Recipient: recipient, SenderName: senderName}
}

func NewCallEnded(recipient UserID, senderName string) Envelope {
	return Envelope{Kind: KindCallEnded, Recipient: recipient, SenderName: senderName}
}

func NewCallTransfer(recipient UserID, senderName string, target TransferTarget) Envelope {
	return Envelope{
		Kind:       KindCallTransfer,
		Recipient:  recipient,
		SenderName: senderName,
		Payload:    mustRaw(target),
	}
}
