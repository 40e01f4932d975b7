package destination

import (
	"context"
	"fmt"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
)

// vaultRefPrefix marks a password that is read from Vault.
const vaultRefPrefix = "vault:"

// SecretResolver resolves a secret reference such as "erp/basic#password".
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// VaultConfig configures a VaultResolver.
type VaultConfig struct {
	Address   string
	Token     string
	Namespace string
	Mount     string
	Timeout   time.Duration
}

// VaultResolver reads secret references from a Vault KV v2 mount.
type VaultResolver struct {
	client *vaultapi.Client
	mount  string
}

// NewVaultResolver creates a resolver. Address and token fall back to the
// standard VAULT_ADDR and VAULT_TOKEN environment variables.
func NewVaultResolver(cfg VaultConfig) (*VaultResolver, error) {
	apiConfig := vaultapi.DefaultConfig()
	if apiConfig.Error != nil {
		return nil, fmt.Errorf("vault config: %w", apiConfig.Error)
	}
	if cfg.Address != "" {
		apiConfig.Address = cfg.Address
	}
	if cfg.Timeout > 0 {
		apiConfig.Timeout = cfg.Timeout
	}

	client, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	mount := cfg.Mount
	if mount == "" {
		mount = "secret"
	}

	return &VaultResolver{client: client, mount: mount}, nil
}

// ResolveSecret reads "<path>#<key>" from the KV v2 mount.
func (v *VaultResolver) ResolveSecret(ctx context.Context, ref string) (string, error) {
	secretPath, key, ok := strings.Cut(ref, "#")
	if !ok || secretPath == "" || key == "" {
		return "", fmt.Errorf("secret reference %q must have the form <path>#<key>", ref)
	}

	secret, err := v.client.KVv2(v.mount).Get(ctx, secretPath)
	if err != nil {
		return "", fmt.Errorf("failed to read %s/%s: %w", v.mount, secretPath, err)
	}

	value, ok := secret.Data[key].(string)
	if !ok {
		return "", fmt.Errorf("key %q not found in %s/%s", key, v.mount, secretPath)
	}
	return value, nil
}

// isSecretRef reports whether value refers to a secret store.
func isSecretRef(value string) (string, bool) {
	return strings.CutPrefix(value, vaultRefPrefix)
}
