package alipay

import "github.com/payhub/alipay-broker/provider"

// Register Alipay provider with the gateway registry
func init() {
	provider.Register("alipay", NewProvider)
}
