// Package signedtoken verifies App Store signed transactions: compact JWS
// tokens whose header carries the signing certificate chain in "x5c".
package signedtoken

import (
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const DefaultAlgorithm = "ES256"

type Code string

const (
	CodeMalformed     Code = "malformed"
	CodeMissingChain  Code = "missing_chain"
	CodeUntrusted     Code = "untrusted_chain"
	CodeSignature     Code = "signature"
	CodeMissingFields Code = "missing_fields"
	CodeBundle        Code = "bundle_mismatch"
)

// VerificationError is always terminal: a token that fails here will fail again.
type VerificationError struct {
	Code    Code
	Message string
	Err     error
}

func (e *VerificationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *VerificationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *VerificationError) Retryable() bool { return false }

var (
	errMissingChain = errors.New("missing certificate chain")
	errUntrusted    = errors.New("certificate chain not trusted")
)

// Claims is the decoded transaction payload.
type Claims struct {
	TransactionID         string `json:"transactionId"`
	OriginalTransactionID string `json:"originalTransactionId"`
	ProductID             string `json:"productId"`
	BundleID              string `json:"bundleId"`
	PurchaseDate          int64  `json:"purchaseDate"`
	Environment           string `json:"environment"`
	jwt.RegisteredClaims
}

// PurchasedAt returns the purchase timestamp; ok is false when absent.
func (c *Claims) PurchasedAt() (time.Time, bool) {
	if c.PurchaseDate <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(c.PurchaseDate).UTC(), true
}

type Config struct {
	// Algorithms accepted in the header; defaults to ES256.
	Algorithms []string
	// BundleID, when set, must equal the payload's bundleId.
	BundleID string
	// Roots, when set, anchors the x5c chain. Without it only the signature is checked.
	Roots *x509.CertPool
	Now   func() time.Time
}

type Verifier struct {
	parser    *jwt.Parser
	validator *jwt.Validator
	algs      map[string]struct{}
	bundleID  string
	roots     *x509.CertPool
	now       func() time.Time
}

func New(cfg Config) *Verifier {
	algs := cfg.Algorithms
	if len(algs) == 0 {
		algs = []string{DefaultAlgorithm}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	allowed := make(map[string]struct{}, len(algs))
	for _, alg := range algs {
		allowed[strings.TrimSpace(alg)] = struct{}{}
	}
	return &Verifier{
		parser:    jwt.NewParser(),
		validator: jwt.NewValidator(jwt.WithTimeFunc(now)),
		algs:      allowed,
		bundleID:  strings.TrimSpace(cfg.BundleID),
		roots:     cfg.Roots,
		now:       now,
	}
}

// RootsFromPEM builds a pool from one or more PEM certificates.
func RootsFromPEM(pemData []byte) (*x509.CertPool, error) {
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, errors.New("no certificates found in root PEM")
	}
	return pool, nil
}

func (v *Verifier) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &VerificationError{Code: CodeMalformed, Message: "signed token is empty"}
	}
	claims := &Claims{}
	// ParseUnverified reports a missing alg as unverifiable but still decodes
	// header and payload; the algorithm is resolved below.
	tok, parts, err := v.parser.ParseUnverified(token, claims)
	if err != nil && (tok == nil || len(parts) != 3 || !errors.Is(err, jwt.ErrTokenUnverifiable)) {
		return nil, &VerificationError{Code: CodeMalformed, Message: "signed token malformed", Err: err}
	}
	alg, _ := tok.Header["alg"].(string)
	if strings.TrimSpace(alg) == "" {
		alg = DefaultAlgorithm
	}
	method := jwt.GetSigningMethod(alg)
	if _, ok := v.algs[alg]; !ok || method == nil {
		return nil, &VerificationError{
			Code:    CodeSignature,
			Message: "signed token verification failed",
			Err:     fmt.Errorf("algorithm %q not accepted", alg),
		}
	}
	key, err := v.keyFunc(tok)
	if err != nil {
		switch {
		case errors.Is(err, errMissingChain):
			return nil, &VerificationError{Code: CodeMissingChain, Message: errMissingChain.Error()}
		case errors.Is(err, errUntrusted):
			return nil, &VerificationError{Code: CodeUntrusted, Message: "signed token verification failed", Err: err}
		default:
			return nil, &VerificationError{Code: CodeSignature, Message: "signed token verification failed", Err: err}
		}
	}
	sig, err := v.parser.DecodeSegment(parts[2])
	if err != nil {
		return nil, &VerificationError{Code: CodeMalformed, Message: "signed token malformed", Err: err}
	}
	if err := method.Verify(parts[0]+"."+parts[1], sig, key); err != nil {
		return nil, &VerificationError{Code: CodeSignature, Message: "signed token verification failed", Err: err}
	}
	if err := v.validator.Validate(claims); err != nil {
		return nil, &VerificationError{Code: CodeSignature, Message: "signed token verification failed", Err: err}
	}
	if strings.TrimSpace(claims.TransactionID) == "" || strings.TrimSpace(claims.ProductID) == "" {
		return nil, &VerificationError{Code: CodeMissingFields, Message: "signed token missing required fields"}
	}
	if v.bundleID != "" && claims.BundleID != v.bundleID {
		return nil, &VerificationError{
			Code:    CodeBundle,
			Message: fmt.Sprintf("signed token bundleId %q does not match %q", claims.BundleID, v.bundleID),
		}
	}
	return claims, nil
}

func (v *Verifier) keyFunc(tok *jwt.Token) (interface{}, error) {
	chain, err := headerChain(tok.Header)
	if err != nil {
		return nil, err
	}
	if v.roots != nil {
		if err := v.verifyChain(chain); err != nil {
			return nil, err
		}
	}
	return jwt.ParseECPublicKeyFromPEM(certPEM(chain[0]))
}

func headerChain(header map[string]interface{}) ([]string, error) {
	raw, ok := header["x5c"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil, errMissingChain
	}
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		s, ok := entry.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, errMissingChain
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out, nil
}

// certPEM wraps a base64 DER certificate body in PEM armor, 64 columns per line.
func certPEM(b64 string) []byte {
	var sb strings.Builder
	sb.WriteString("-----BEGIN CERTIFICATE-----\n")
	for len(b64) > 64 {
		sb.WriteString(b64[:64])
		sb.WriteByte('\n')
		b64 = b64[64:]
	}
	if b64 != "" {
		sb.WriteString(b64)
		sb.WriteByte('\n')
	}
	sb.WriteString("-----END CERTIFICATE-----\n")
	return []byte(sb.String())
}

func (v *Verifier) verifyChain(chain []string) error {
	certs := make([]*x509.Certificate, 0, len(chain))
	for _, entry := range chain {
		block, _ := pem.Decode(certPEM(entry))
		if block == nil {
			return fmt.Errorf("%w: undecodable certificate", errUntrusted)
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("%w: %v", errUntrusted, err)
		}
		certs = append(certs, cert)
	}
	intermediates := x509.NewCertPool()
	for _, c := range certs[1:] {
		intermediates.AddCert(c)
	}
	_, err := certs[0].Verify(x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		CurrentTime:   v.now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errUntrusted, err)
	}
	return nil
}
