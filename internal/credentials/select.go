package credentials

import (
	"context"

	"vinr.eu/launchpad/internal/aws"
	"vinr.eu/launchpad/internal/errs"
)

const (
	SourceEnv     = "env"
	SourceAWS     = "aws"
	SourceVault   = "vault"
	SourceKeyring = "keyring"
)

type Settings struct {
	Source string

	EnvVar string

	SecretName string
	AWSMode    string

	VaultAddress string
	VaultToken   string
	VaultMount   string
	VaultPath    string

	KeyringService string
	KeyringUser    string

	VerifyGitHub bool
	GitHubAPIURL string
}

// Select builds the fetch function for the configured source. Nothing is
// contacted until the function is called.
func Select(s Settings) (FetchFunc, error) {
	var fetch FetchFunc
	switch s.Source {
	case SourceEnv, "":
		fetch = FromEnv(s.EnvVar)
	case SourceAWS:
		if s.SecretName == "" {
			return nil, errs.WrapMsg(ErrSourceSettings, "aws source needs a secret name")
		}
		fetch = fromAWS(s.AWSMode, s.SecretName)
	case SourceVault:
		if s.VaultPath == "" {
			return nil, errs.WrapMsg(ErrSourceSettings, "vault source needs a secret path")
		}
		client, err := NewVaultClient(s.VaultAddress, s.VaultToken)
		if err != nil {
			return nil, err
		}
		fetch = FromVault(client, s.VaultMount, s.VaultPath)
	case SourceKeyring:
		if s.KeyringService == "" || s.KeyringUser == "" {
			return nil, errs.WrapMsg(ErrSourceSettings, "keyring source needs a service and a user")
		}
		fetch = FromKeyring(s.KeyringService, s.KeyringUser)
	default:
		return nil, errs.WrapMsg(ErrUnknownSource, s.Source)
	}
	if s.VerifyGitHub {
		fetch = VerifyGitHub(fetch, s.GitHubAPIURL)
	}
	return fetch, nil
}

func fromAWS(mode, name string) FetchFunc {
	return func(ctx context.Context) (any, error) {
		cfg, err := aws.LoadServiceConfig(ctx, mode, "LAUNCHPAD")
		if err != nil {
			return nil, err
		}
		return FromSecret(aws.NewSecretsManagerClient(cfg), name)(ctx)
	}
}
