// Package signature establishes the authenticity of inbound webhook payloads.
// Each provider scheme is a pure function over (payload, signature material,
// shared secret); all of them compare digests in constant time and report
// malformed input as a plain verification failure rather than an error.
package signature

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// versionPrefix frames ticketing webhook signatures ("v0=<hex digest>").
	versionPrefix = "v0"

	// DefaultTimestampTolerance bounds the replay window for timestamped
	// signature schemes.
	DefaultTimestampTolerance = 5 * time.Minute
)

// VerifyPrefixedHMAC verifies a version-prefixed HMAC-SHA256 signature as
// used by ticketing webhooks. The signed message is "v0:<timestamp>:<payload>"
// and the signature header carries "v0=<hex digest>".
func VerifyPrefixedHMAC(payload []byte, timestamp, header, secret string) bool {
	if !strings.HasPrefix(header, versionPrefix+"=") {
		return false
	}
	provided := strings.TrimPrefix(header, versionPrefix+"=")

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%s:", versionPrefix, timestamp)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(provided), []byte(expected))
}

// VerifyTimestampedHMAC verifies a payment-style signature header of the form
// "t=<unix>,v1=<hex digest>[,...]". The timestamp must be within tolerance of
// now, and the signed message is "<timestamp>.<payload>".
func VerifyTimestampedHMAC(payload []byte, header, secret string, now time.Time, tolerance time.Duration) bool {
	if tolerance <= 0 {
		tolerance = DefaultTimestampTolerance
	}

	var timestamp, provided string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			provided = kv[1]
		}
	}
	if timestamp == "" || provided == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	drift := now.Unix() - ts
	if drift < 0 {
		drift = -drift
	}
	if drift > int64(tolerance.Seconds()) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.", timestamp)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(provided), []byte(expected))
}

// VerifyPlainHMAC verifies a bare hex-encoded HMAC-SHA256 digest over the
// payload. Generic fallback for providers with no special framing.
func VerifyPlainHMAC(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expected))
}

// VerifyRSASignature verifies an RSA-SHA256 signature (base64-encoded)
// against a PEM-encoded public key supplied by the provider.
func VerifyRSASignature(payload []byte, signatureB64, publicKeyPEM string) bool {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return false
	}

	pub, err := parseRSAPublicKey(block.Bytes)
	if err != nil {
		return false
	}

	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}

	digest := sha256.Sum256(payload)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig) == nil
}

func parseRSAPublicKey(der []byte) (*rsa.PublicKey, error) {
	if pub, err := x509.ParsePKIXPublicKey(der); err == nil {
		if rsaPub, ok := pub.(*rsa.PublicKey); ok {
			return rsaPub, nil
		}
		return nil, fmt.Errorf("not an RSA public key")
	}
	return x509.ParsePKCS1PublicKey(der)
}
