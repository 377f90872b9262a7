package alipay

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/payhub/alipay-broker/provider"
)

const (
	// Gateway URL
	defaultGatewayURL = "https://openapi.alipay.com/gateway.do"

	// Protocol fields
	methodTradePagePay = "alipay.trade.page.pay"
	formatJSON         = "JSON"
	charsetUTF8        = "utf-8"
	signTypeRSA2       = "RSA2"
	protocolVersion    = "1.0"
	productCode        = "FAST_INSTANT_TRADE_PAY"

	// Gateway timestamps are UTC-naive YYYY-MM-DD HH:MM:SS
	timestampLayout = "2006-01-02 15:04:05"
)

// bizContent is the nested business payload. It is JSON-encoded exactly once
// before the surrounding parameters are canonicalized.
type bizContent struct {
	OutTradeNo  string `json:"out_trade_no"`
	ProductCode string `json:"product_code"`
	TotalAmount string `json:"total_amount"`
	Subject     string `json:"subject"`
}

// AlipayProvider implements the provider.PaymentProvider interface for the
// Alipay open gateway (RSA2 signed page-pay orders, async notify webhooks)
type AlipayProvider struct {
	appID      string
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	gatewayURL string
	notifyURL  string
	now        func() time.Time
}

// NewProvider creates a new Alipay payment provider
func NewProvider() provider.PaymentProvider {
	return &AlipayProvider{
		now: time.Now,
	}
}

// GetRequiredConfig returns the configuration fields required for this provider
func (p *AlipayProvider) GetRequiredConfig() []provider.ConfigField {
	return []provider.ConfigField{
		{Key: "appId", Required: true, Description: "Alipay application id"},
		{Key: "appPrivateKey", Required: true, Description: "Application RSA private key (PEM)"},
		{Key: "alipayPublicKey", Required: true, Description: "Alipay RSA public key (PEM)"},
		{Key: "notifyUrl", Required: true, Description: "URL that receives async payment notifications"},
	}
}

// Initialize sets up the Alipay provider with credentials and endpoints.
// Key material is parsed eagerly: a malformed key fails startup rather than
// the first payment.
func (p *AlipayProvider) Initialize(conf map[string]string) error {
	if err := provider.ValidateConfigFields("alipay", conf, p.GetRequiredConfig()); err != nil {
		return err
	}

	privateKey, err := ParsePrivateKey(conf["appPrivateKey"])
	if err != nil {
		return fmt.Errorf("%w: %s", provider.ErrSigning, err)
	}

	publicKey, err := ParsePublicKey(conf["alipayPublicKey"])
	if err != nil {
		return err
	}

	p.appID = conf["appId"]
	p.privateKey = privateKey
	p.publicKey = publicKey
	p.notifyURL = conf["notifyUrl"]

	p.gatewayURL = conf["gatewayUrl"]
	if p.gatewayURL == "" {
		p.gatewayURL = defaultGatewayURL
	}

	return nil
}

// BuildPayURL assembles, signs and encodes the outbound page-pay request
func (p *AlipayProvider) BuildPayURL(_ context.Context, request provider.PayURLRequest) (string, error) {
	biz, err := json.Marshal(bizContent{
		OutTradeNo:  request.OrderID,
		ProductCode: productCode,
		TotalAmount: request.Amount,
		Subject:     request.Subject,
	})
	if err != nil {
		return "", fmt.Errorf("alipay: failed to encode biz_content: %w", err)
	}

	params := map[string]string{
		"app_id":      p.appID,
		"method":      methodTradePagePay,
		"format":      formatJSON,
		"charset":     charsetUTF8,
		"sign_type":   signTypeRSA2,
		"timestamp":   p.now().UTC().Format(timestampLayout),
		"version":     protocolVersion,
		"notify_url":  p.notifyURL,
		"biz_content": string(biz),
	}

	signature, err := SignWithKey(SignContent(params), p.privateKey)
	if err != nil {
		return "", fmt.Errorf("%w: %s", provider.ErrSigning, err)
	}

	return p.gatewayURL + "?" + EncodeQuery(params, signature), nil
}

// VerifyNotification checks the gateway signature on an async notification.
// The canonical string covers every payload field except sign and sign_type.
// A false verdict with nil error means the payload was well-formed but the
// signature did not check out; no caller may mutate order state before a
// true verdict.
func (p *AlipayProvider) VerifyNotification(payload map[string]string) (bool, *provider.Notification, error) {
	signature := payload["sign"]
	if signature == "" {
		return false, nil, fmt.Errorf("%w: missing sign", provider.ErrMalformedPayload)
	}

	orderID := payload["out_trade_no"]
	if orderID == "" {
		return false, nil, fmt.Errorf("%w: missing out_trade_no", provider.ErrMalformedPayload)
	}

	tradeStatus := payload["trade_status"]
	if tradeStatus == "" {
		return false, nil, fmt.Errorf("%w: missing trade_status", provider.ErrMalformedPayload)
	}

	content := SignContent(payload, "sign_type")
	if !VerifyWithKey(content, signature, p.publicKey) {
		return false, nil, nil
	}

	return true, &provider.Notification{
		OrderID:     orderID,
		TradeStatus: tradeStatus,
		Raw:         payload,
	}, nil
}
