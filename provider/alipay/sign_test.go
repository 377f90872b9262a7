package alipay

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
)

func generateTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	return key
}

func privateKeyPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()

	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}))
}

func publicKeyPEM(t *testing.T, key *rsa.PublicKey) string {
	t.Helper()

	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		t.Fatalf("failed to marshal public key: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: der,
	}))
}

func TestSignContent(t *testing.T) {
	params := map[string]string{
		"method":    "alipay.trade.page.pay",
		"app_id":    "2021000000000000",
		"sign":      "should-be-excluded",
		"charset":   "utf-8",
		"timestamp": "2024-01-02 03:04:05",
	}

	got := SignContent(params)
	want := "app_id=2021000000000000&charset=utf-8&method=alipay.trade.page.pay&timestamp=2024-01-02 03:04:05"
	if got != want {
		t.Errorf("SignContent() = %q, want %q", got, want)
	}
}

func TestSignContent_Deterministic(t *testing.T) {
	// Maps iterate in random order; the canonical string must not
	first := SignContent(map[string]string{"b": "2", "a": "1", "c": "3"})
	for i := 0; i < 100; i++ {
		if got := SignContent(map[string]string{"c": "3", "a": "1", "b": "2"}); got != first {
			t.Fatalf("canonical string changed across runs: %q != %q", got, first)
		}
	}
	if first != "a=1&b=2&c=3" {
		t.Errorf("SignContent() = %q, want a=1&b=2&c=3", first)
	}
}

func TestSignContent_ExtraExclusions(t *testing.T) {
	params := map[string]string{
		"out_trade_no": "ORD_1",
		"trade_status": "TRADE_SUCCESS",
		"sign":         "x",
		"sign_type":    "RSA2",
	}

	got := SignContent(params, "sign_type")
	want := "out_trade_no=ORD_1&trade_status=TRADE_SUCCESS"
	if got != want {
		t.Errorf("SignContent() = %q, want %q", got, want)
	}
}

func TestSignContent_RawValues(t *testing.T) {
	// Values must stay unencoded in the canonical string
	got := SignContent(map[string]string{"biz_content": `{"out_trade_no":"ORD_1","total_amount":"1.00"}`})
	if strings.Contains(got, "%") {
		t.Errorf("canonical string must not be URL-encoded: %q", got)
	}
}

func TestEncodeQuery(t *testing.T) {
	params := map[string]string{
		"app_id":      "2021",
		"biz_content": `{"subject":"Pro License"}`,
	}

	got := EncodeQuery(params, "abc+/=")

	if !strings.HasPrefix(got, "app_id=2021&biz_content=") {
		t.Errorf("unexpected ordering: %q", got)
	}
	if !strings.HasSuffix(got, "&sign=abc%2B%2F%3D") {
		t.Errorf("signature must be percent-encoded and appended last: %q", got)
	}
	if strings.Contains(got, `{"subject"`) {
		t.Errorf("values must be percent-encoded: %q", got)
	}
}

func TestNormalizePEM(t *testing.T) {
	key := generateTestKey(t)
	wellFormed := privateKeyPEM(t, key)

	// Already valid PEM passes through untouched, even if it happens to
	// contain no literal escapes
	if got := NormalizePEM(wellFormed); got != strings.TrimSpace(wellFormed) {
		t.Error("well-formed PEM should not be rewritten")
	}

	// Env-var transport collapses newlines to literal \n sequences
	escaped := strings.ReplaceAll(strings.TrimSpace(wellFormed), "\n", `\n`)
	restored := NormalizePEM(escaped)
	if _, err := ParsePrivateKey(restored); err != nil {
		t.Errorf("normalized key should parse: %v", err)
	}
}

func TestParsePrivateKey_EscapedNewlines(t *testing.T) {
	key := generateTestKey(t)
	escaped := strings.ReplaceAll(strings.TrimSpace(privateKeyPEM(t, key)), "\n", `\n`)

	parsed, err := ParsePrivateKey(escaped)
	if err != nil {
		t.Fatalf("ParsePrivateKey() error = %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Error("parsed key does not match original")
	}
}

func TestParsePrivateKey_Malformed(t *testing.T) {
	if _, err := ParsePrivateKey("not a key"); err == nil {
		t.Error("expected error for malformed key material")
	}
	if _, err := ParsePrivateKey(""); err == nil {
		t.Error("expected error for empty key material")
	}
}

func TestParsePublicKey(t *testing.T) {
	key := generateTestKey(t)

	parsed, err := ParsePublicKey(publicKeyPEM(t, &key.PublicKey))
	if err != nil {
		t.Fatalf("ParsePublicKey() error = %v", err)
	}
	if parsed.N.Cmp(key.N) != 0 {
		t.Error("parsed public key does not match original")
	}

	if _, err := ParsePublicKey("garbage"); err == nil {
		t.Error("expected error for malformed public key")
	}
}

func TestSignVerify_RoundTrip(t *testing.T) {
	key := generateTestKey(t)
	content := "app_id=2021&biz_content={\"out_trade_no\":\"ORD_1\"}&method=alipay.trade.page.pay"

	signature, err := SignWithKey(content, key)
	if err != nil {
		t.Fatalf("SignWithKey() error = %v", err)
	}

	if !VerifyWithKey(content, signature, &key.PublicKey) {
		t.Error("signature should verify against the signing content")
	}

	if VerifyWithKey(content+"x", signature, &key.PublicKey) {
		t.Error("signature must not verify against altered content")
	}
}

func TestVerify_SignatureSensitivity(t *testing.T) {
	key := generateTestKey(t)
	content := "out_trade_no=ORD_1&trade_status=TRADE_SUCCESS"

	signature, err := SignWithKey(content, key)
	if err != nil {
		t.Fatalf("SignWithKey() error = %v", err)
	}

	// Flipping any single character of a valid signature must fail verification
	for i := 0; i < len(signature); i++ {
		flipped := []byte(signature)
		if flipped[i] == 'A' {
			flipped[i] = 'B'
		} else {
			flipped[i] = 'A'
		}
		if VerifyWithKey(content, string(flipped), &key.PublicKey) {
			t.Fatalf("tampered signature verified (flip at %d)", i)
		}
	}
}

func TestVerify_NotBase64(t *testing.T) {
	key := generateTestKey(t)

	// Corrupted signature is a false verdict, not a panic or error
	if VerifyWithKey("content", "!!! not base64 !!!", &key.PublicKey) {
		t.Error("non-base64 signature must not verify")
	}
}

func TestVerify_WrongKey(t *testing.T) {
	signerKey := generateTestKey(t)
	otherKey := generateTestKey(t)
	content := "out_trade_no=ORD_1"

	signature, err := SignWithKey(content, signerKey)
	if err != nil {
		t.Fatalf("SignWithKey() error = %v", err)
	}

	if VerifyWithKey(content, signature, &otherKey.PublicKey) {
		t.Error("signature must not verify under a different public key")
	}
}
