// Package vault reads the webhook URL and Mongo connection string from a
// HashiCorp Vault KV secret, as an alternative to carrying them in the
// environment.
package vault

import (
	"context"
	"errors"
	"fmt"
	"os"

	vault "github.com/hashicorp/vault/api"
	"github.com/mitchellh/mapstructure"
)

const (
	approleSecretIDPath = "auth/approle/role/%s/secret-id"
	approleLoginPath    = "auth/approle/login"
)

// ErrClientInit indicates failure to initialize the Vault API client.
var ErrClientInit = errors.New("vault client initialization failed")

// ErrSecretNotFound indicates an empty read at the requested path.
var ErrSecretNotFound = errors.New("vault secret not found")

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	address  string
	token    string
	roleID   string
	roleName string
}

// Client wraps the Vault API client with the tool's auth flow.
type Client struct {
	api    *vault.Client
	config *clientConfig
}

// Secrets is the shape of the KV payload the tool understands. Empty fields
// leave the corresponding config value untouched.
type Secrets struct {
	WebhookURL string `mapstructure:"webhook_url"`
	MongoURI   string `mapstructure:"mongo_uri"`
}

// WithAddress sets the Vault server address.
func WithAddress(address string) Option {
	return func(c *clientConfig) {
		c.address = address
	}
}

// WithToken sets a static token for authentication.
func WithToken(token string) Option {
	return func(c *clientConfig) {
		c.token = token
	}
}

// WithAppRole configures AppRole login.
func WithAppRole(roleID, roleName string) Option {
	return func(c *clientConfig) {
		c.roleID = roleID
		c.roleName = roleName
	}
}

// NewClient creates and authenticates a Vault client. AppRole login is used
// when both roleID and roleName are set, otherwise a static token (from env
// or WithToken).
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		address: os.Getenv("VAULT_ADDR"),
		token:   os.Getenv("VAULT_TOKEN"),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	apiCfg := vault.DefaultConfig()
	if cfg.address != "" {
		apiCfg.Address = cfg.address
	}
	api, err := vault.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientInit, err)
	}

	client := &Client{api: api, config: cfg}
	if cfg.token != "" {
		client.api.SetToken(cfg.token)
	}
	if cfg.roleID != "" && cfg.roleName != "" {
		if err := client.loginAppRole(ctx); err != nil {
			return nil, fmt.Errorf("AppRole login failed: %w", err)
		}
	}
	return client, nil
}

// loginAppRole performs AppRole login using the configured roleID and roleName.
func (c *Client) loginAppRole(ctx context.Context) error {
	path := fmt.Sprintf(approleSecretIDPath, c.config.roleName)
	resp, err := c.api.Logical().WriteWithContext(ctx, path, nil)
	if err != nil {
		return fmt.Errorf("generate secret_id: %w", err)
	}
	sid, ok := resp.Data["secret_id"].(string)
	if !ok || sid == "" {
		return fmt.Errorf("no secret_id returned from %s", path)
	}

	loginData := map[string]any{
		"role_id":   c.config.roleID,
		"secret_id": sid,
	}
	loginResp, err := c.api.Logical().WriteWithContext(ctx, approleLoginPath, loginData)
	if err != nil {
		return fmt.Errorf("approle login request: %w", err)
	}
	if loginResp.Auth == nil || loginResp.Auth.ClientToken == "" {
		return fmt.Errorf("no token in login response")
	}
	c.api.SetToken(loginResp.Auth.ClientToken)
	return nil
}

// ReadSecrets reads the KV secret at path and decodes the recognized fields.
// KV v2 nests the payload under a "data" key; both layouts are accepted.
func (c *Client) ReadSecrets(ctx context.Context, path string) (*Secrets, error) {
	secret, err := c.api.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}

	data := secret.Data
	if nested, ok := data["data"].(map[string]any); ok {
		data = nested
	}

	var out Secrets
	if err := mapstructure.Decode(data, &out); err != nil {
		return nil, fmt.Errorf("decode secret at %s: %w", path, err)
	}
	return &out, nil
}
