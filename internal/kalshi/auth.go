package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"
)

const (
	headerAccessKey       = "KALSHI-ACCESS-KEY"
	headerAccessSignature = "KALSHI-ACCESS-SIGNATURE"
	headerAccessTimestamp = "KALSHI-ACCESS-TIMESTAMP"
)

// Signer produces the Kalshi authentication header set. The private key is
// read once at startup and held in memory for the process lifetime.
type Signer struct {
	keyID      string
	privateKey *rsa.PrivateKey
}

type AuthHeaders struct {
	AccessKey       string
	AccessSignature string
	AccessTimestamp string
}

func NewSigner(keyID string, privateKeyPEM []byte) (*Signer, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, &AuthError{Op: "decode pem", Err: fmt.Errorf("no PEM block found")}
	}

	key, err := parsePrivateKey(block.Bytes)
	if err != nil {
		return nil, &AuthError{Op: "parse private key", Err: err}
	}

	return &Signer{keyID: keyID, privateKey: key}, nil
}

func NewSignerFromFile(keyID, path string) (*Signer, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, &AuthError{Op: "read private key", Err: err}
	}
	return NewSigner(keyID, pemBytes)
}

func parsePrivateKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA private key")
	}
	return key, nil
}

// Sign builds the header set for one request. The signed message is the
// decimal millisecond timestamp, the HTTP method, and the request path
// concatenated with no separator. The path must not carry a query string;
// callers strip it before signing.
func (s *Signer) Sign(timestampMs int64, method, path string) (*AuthHeaders, error) {
	ts := strconv.FormatInt(timestampMs, 10)
	digest := sha256.Sum256([]byte(ts + method + path))

	sig, err := rsa.SignPSS(rand.Reader, s.privateKey, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return nil, &AuthError{Op: "sign", Err: err}
	}

	return &AuthHeaders{
		AccessKey:       s.keyID,
		AccessSignature: base64.StdEncoding.EncodeToString(sig),
		AccessTimestamp: ts,
	}, nil
}
