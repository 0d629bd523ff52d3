package signature

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// DecodeJWS verifies a store-server JWS notification and returns its decoded
// payload. The protected header's x5c chain is verified against the supplied
// provider roots, then the token signature is checked against the leaf
// certificate's public key. There is no untrusted-decode path: a payload is
// only returned after both checks pass.
func DecodeJWS(token string, roots *x509.CertPool) ([]byte, error) {
	if roots == nil {
		return nil, fmt.Errorf("no provider roots configured")
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("token must have three segments, got %d", len(parts))
	}

	leaf, err := verifyCertChain(parts[0], roots)
	if err != nil {
		return nil, fmt.Errorf("verifying certificate chain: %w", err)
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"ES256", "RS256"}))
	if _, err := parser.Parse(token, func(t *jwt.Token) (any, error) {
		return leaf.PublicKey, nil
	}); err != nil {
		return nil, fmt.Errorf("verifying token signature: %w", err)
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	return payload, nil
}

// verifyCertChain parses the x5c header from the protected header segment,
// validates leaf -> intermediates -> roots, and returns the leaf certificate.
func verifyCertChain(headerSegment string, roots *x509.CertPool) (*x509.Certificate, error) {
	headerJSON, err := base64.RawURLEncoding.DecodeString(headerSegment)
	if err != nil {
		return nil, fmt.Errorf("decoding protected header: %w", err)
	}

	var header struct {
		X5C []string `json:"x5c"`
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("parsing protected header: %w", err)
	}
	if len(header.X5C) == 0 {
		return nil, fmt.Errorf("missing x5c certificate chain")
	}

	certs := make([]*x509.Certificate, 0, len(header.X5C))
	for i, encoded := range header.X5C {
		der, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("decoding x5c[%d]: %w", i, err)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parsing x5c[%d]: %w", i, err)
		}
		certs = append(certs, cert)
	}

	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}

	if _, err := certs[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
	}); err != nil {
		return nil, err
	}

	return certs[0], nil
}
