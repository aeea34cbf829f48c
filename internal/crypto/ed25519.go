package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

var (
	ErrInvalidPublicKey  = errors.New("invalid Ed25519 public key")
	ErrInvalidPrivateKey = errors.New("invalid Ed25519 private key")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrSignatureExpired  = errors.New("signature timestamp expired")
	ErrInvalidNonce      = errors.New("invalid or reused nonce")
)

// ValidatePublicKey checks if a base64-encoded string is a valid Ed25519 public key.
func ValidatePublicKey(pubkeyB64 string) (ed25519.PublicKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(pubkeyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 encoding", ErrInvalidPublicKey)
	}

	if len(decoded) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidPublicKey, ed25519.PublicKeySize, len(decoded))
	}

	return ed25519.PublicKey(decoded), nil
}

// ParsePrivateKey decodes a base64-encoded Ed25519 private key.
func ParsePrivateKey(privB64 string) (ed25519.PrivateKey, error) {
	decoded, err := base64.StdEncoding.DecodeString(privB64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 encoding", ErrInvalidPrivateKey)
	}
	if len(decoded) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: must be %d bytes, got %d", ErrInvalidPrivateKey, ed25519.PrivateKeySize, len(decoded))
	}
	return ed25519.PrivateKey(decoded), nil
}

// VerifySignature verifies a signed message.
func VerifySignature(pubkey ed25519.PublicKey, signedData []byte, signatureB64 string) error {
	signature, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return fmt.Errorf("%w: invalid base64 encoding", ErrInvalidSignature)
	}

	if !ed25519.Verify(pubkey, signedData, signature) {
		return ErrInvalidSignature
	}

	return nil
}

// SignaturePayload creates the canonical data to sign.
// Format: subject|nonce|timestamp, where subject is the body hash for HTTP
// requests and the user id for websocket connects.
func SignaturePayload(subject, nonce string, timestamp int64) []byte {
	return []byte(fmt.Sprintf("%s|%s|%d", subject, nonce, timestamp))
}

// NewNonce returns a random 24-character hex nonce.
func NewNonce() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Sign signs subject with a fresh nonce and the current time.
func Sign(priv ed25519.PrivateKey, subject string) (nonce string, ts int64, sigB64 string) {
	nonce = NewNonce()
	ts = time.Now().UnixMilli()
	sig := ed25519.Sign(priv, SignaturePayload(subject, nonce, ts))
	return nonce, ts, base64.StdEncoding.EncodeToString(sig)
}

// ConnectQuery builds the signed query string a client uses to open a websocket.
func ConnectQuery(priv ed25519.PrivateKey, userID string) url.Values {
	nonce, ts, sig := Sign(priv, userID)
	return url.Values{
		"user":  {userID},
		"nonce": {nonce},
		"ts":    {strconv.FormatInt(ts, 10)},
		"sig":   {sig},
	}
}
