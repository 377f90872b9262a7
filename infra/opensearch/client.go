package opensearch

import (
	"crypto/tls"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/payhub/alipay-broker/infra/config"
)

// PaymentIndex is the index that receives all payment event documents
const PaymentIndex = "alipay-broker-payments"

// Client wraps the OpenSearch client
type Client struct {
	client  *opensearch.Client
	config  *config.AppConfig
	enabled bool
}

// NewClient creates a new OpenSearch client
func NewClient(cfg *config.AppConfig) (*Client, error) {
	opensearchConfig := opensearch.Config{
		Addresses: []string{cfg.OpenSearchURL},
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true, // For development/testing
			},
		},
		MaxRetries:    3,
		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(i int) time.Duration {
			return time.Duration(i) * 100 * time.Millisecond
		},
	}

	if cfg.OpenSearchUser != "" && cfg.OpenSearchPass != "" {
		opensearchConfig.Username = cfg.OpenSearchUser
		opensearchConfig.Password = cfg.OpenSearchPass
	}

	client, err := opensearch.NewClient(opensearchConfig)
	if err != nil {
		return nil, err
	}

	osClient := &Client{
		client:  client,
		config:  cfg,
		enabled: cfg.EnableLogging,
	}

	if err := osClient.setupIndex(); err != nil {
		log.Printf("Warning: Failed to setup OpenSearch index: %v", err)
	}

	return osClient, nil
}

// GetClient returns the underlying OpenSearch client
func (c *Client) GetClient() *opensearch.Client {
	return c.client
}

// IsEnabled reports whether event logging is active
func (c *Client) IsEnabled() bool {
	return c != nil && c.enabled
}

// setupIndex creates the payment event index if it does not exist
func (c *Client) setupIndex() error {
	exists, err := c.indexExists(PaymentIndex)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := c.createPaymentIndex(PaymentIndex); err != nil {
		return err
	}
	log.Printf("Created OpenSearch index: %s", PaymentIndex)
	return nil
}

// indexExists checks if an index exists
func (c *Client) indexExists(indexName string) (bool, error) {
	req := opensearchapi.IndicesExistsRequest{
		Index: []string{indexName},
	}

	res, err := req.Do(nil, c.client)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	return res.StatusCode == 200, nil
}

// createPaymentIndex creates the payment event index with proper mapping
func (c *Client) createPaymentIndex(indexName string) error {
	mapping := `{
		"mappings": {
			"properties": {
				"timestamp": {
					"type": "date",
					"format": "strict_date_optional_time||epoch_millis"
				},
				"event": {
					"type": "keyword"
				},
				"order_id": {
					"type": "keyword"
				},
				"trade_status": {
					"type": "keyword"
				},
				"request_id": {
					"type": "keyword"
				},
				"client_ip": {
					"type": "ip"
				},
				"amount": {
					"type": "keyword"
				},
				"verified": {
					"type": "boolean"
				},
				"error": {
					"type": "text"
				}
			}
		},
		"settings": {
			"number_of_shards": 1,
			"number_of_replicas": 0
		}
	}`

	req := opensearchapi.IndicesCreateRequest{
		Index: indexName,
		Body:  strings.NewReader(mapping),
	}

	res, err := req.Do(nil, c.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return &IndexError{Index: indexName, Reason: res.String()}
	}

	return nil
}

// IndexError describes a failed index operation
type IndexError struct {
	Index  string
	Reason string
}

func (e *IndexError) Error() string {
	return "opensearch index " + e.Index + ": " + e.Reason
}
