package credentials

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	vault "github.com/hashicorp/vault/api"
	"github.com/zalando/go-keyring"
	"vinr.eu/launchpad/internal/errs"
)

var (
	ErrEnvUnset       = errs.Kind(errs.ErrCredentialFetch, "credentials: environment variable not set")
	ErrVaultRead      = errs.Kind(errs.ErrCredentialFetch, "credentials: vault read failed")
	ErrVaultNotFound  = errs.Kind(errs.ErrCredentialFetch, "credentials: vault secret not found")
	ErrKeyringRead    = errs.Kind(errs.ErrCredentialFetch, "credentials: keyring read failed")
	ErrUnknownSource  = errs.Kind(errs.ErrValidation, "credentials: unknown credential source")
	ErrSourceSettings = errs.Kind(errs.ErrValidation, "credentials: incomplete source settings")
)

const DefaultEnvVar = "GITHUB_TOKEN"

// FromEnv reads a token from the process environment.
func FromEnv(name string) FetchFunc {
	if name == "" {
		name = DefaultEnvVar
	}
	return func(ctx context.Context) (any, error) {
		v, ok := os.LookupEnv(name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil, errs.WrapMsg(ErrEnvUnset, name)
		}
		return tokenValue(v), nil
	}
}

// SecretGetter reads a named secret, e.g. an AWS Secrets Manager client.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// FromSecret keeps JSON objects as objects and wraps anything else as a token.
func FromSecret(getter SecretGetter, name string) FetchFunc {
	return func(ctx context.Context) (any, error) {
		raw, err := getter.GetSecret(ctx, name)
		if err != nil {
			return nil, err
		}
		return parseSecret(raw), nil
	}
}

// FromVault reads a KV v2 secret's data.
func FromVault(client *vault.Client, mount, path string) FetchFunc {
	if mount == "" {
		mount = "secret"
	}
	path = strings.Trim(path, "/")
	return func(ctx context.Context) (any, error) {
		secret, err := client.KVv2(mount).Get(ctx, path)
		if err != nil {
			return nil, errs.WrapMsgErr(ErrVaultRead, mount+"/"+path, err)
		}
		if secret == nil || len(secret.Data) == 0 {
			return nil, errs.WrapMsg(ErrVaultNotFound, mount+"/"+path)
		}
		return secret.Data, nil
	}
}

// NewVaultClient builds a client from VAULT_* defaults with an optional
// address and token override.
func NewVaultClient(address, token string) (*vault.Client, error) {
	cfg := vault.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}
	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, errs.Wrap(ErrVaultRead, err)
	}
	if token != "" {
		client.SetToken(token)
	}
	return client, nil
}

// FromKeyring reads a secret stored in the OS keyring.
func FromKeyring(service, user string) FetchFunc {
	return func(ctx context.Context) (any, error) {
		v, err := keyring.Get(service, user)
		if err != nil {
			return nil, errs.WrapMsgErr(ErrKeyringRead, service+"/"+user, err)
		}
		return parseSecret(v), nil
	}
}

func parseSecret(raw string) any {
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj != nil {
		return obj
	}
	return tokenValue(raw)
}

func tokenValue(s string) map[string]any {
	return map[string]any{"token": strings.TrimSpace(s)}
}
