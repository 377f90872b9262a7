package alipay

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// signFieldName never participates in the canonical string
const signFieldName = "sign"

// SignContent builds the canonical signing string from request parameters:
// the sign field (and any extra excluded keys) is dropped, remaining keys are
// sorted byte-wise, and pairs are joined as key=value with & between them
// using raw, non-URL-encoded values. Deterministic for any insertion order.
func SignContent(params map[string]string, exclude ...string) string {
	skip := map[string]bool{signFieldName: true}
	for _, key := range exclude {
		skip[key] = true
	}

	keys := make([]string, 0, len(params))
	for key := range params {
		if skip[key] {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, key := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(params[key])
	}

	return sb.String()
}

// EncodeQuery builds the URL-transmittable form of the parameters: the same
// key ordering as SignContent but with percent-encoded values, and the
// percent-encoded signature appended last.
func EncodeQuery(params map[string]string, signature string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == signFieldName {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, key := range keys {
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(params[key]))
		sb.WriteByte('&')
	}
	sb.WriteString(signFieldName)
	sb.WriteByte('=')
	sb.WriteString(url.QueryEscape(signature))

	return sb.String()
}

// NormalizePEM repairs key material that traveled through an environment
// variable: literal \n sequences are turned into real line breaks, but only
// when the input does not already decode as a well-formed PEM block.
func NormalizePEM(material string) string {
	material = strings.TrimSpace(material)
	if block, _ := pem.Decode([]byte(material)); block != nil {
		return material
	}
	return strings.ReplaceAll(material, `\n`, "\n")
}

// ParsePrivateKey parses an RSA private key from PEM (PKCS#1 or PKCS#8)
func ParsePrivateKey(material string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(NormalizePEM(material)))
	if block == nil {
		return nil, errors.New("alipay: private key is not valid PEM")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("alipay: failed to parse private key: %w", err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("alipay: private key is not RSA")
	}

	return key, nil
}

// ParsePublicKey parses an RSA public key from PEM (PKIX or PKCS#1)
func ParsePublicKey(material string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(NormalizePEM(material)))
	if block == nil {
		return nil, errors.New("alipay: public key is not valid PEM")
	}

	if parsed, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		key, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("alipay: public key is not RSA")
		}
		return key, nil
	}

	key, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("alipay: failed to parse public key: %w", err)
	}

	return key, nil
}

// SignWithKey signs the canonical string with RSA-SHA256 (RSA2) in
// PKCS#1 v1.5 padding and returns the base64-encoded signature.
func SignWithKey(content string, key *rsa.PrivateKey) (string, error) {
	digest := sha256.Sum256([]byte(content))

	signature, err := rsa.SignPKCS1v15(nil, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("alipay: rsa sign: %w", err)
	}

	return base64.StdEncoding.EncodeToString(signature), nil
}

// VerifyWithKey checks a base64 RSA-SHA256 signature over the canonical
// string. A corrupted or forged signature is an expected outcome and yields
// false with a nil error, not an error value.
func VerifyWithKey(content, signature string, key *rsa.PublicKey) bool {
	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	digest := sha256.Sum256([]byte(content))
	return rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], raw) == nil
}
