package aws

import (
	"context"
	"encoding/base64"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"vinr.eu/launchpad/internal/errs"
)

var (
	ErrSMGetSecret = errs.Kind(errs.ErrCredentialFetch, "aws/secretsmanager: failed to get secret")
	ErrSMEmpty     = errs.Kind(errs.ErrCredentialFetch, "aws/secretsmanager: secret has no value")
)

type secretsAPI interface {
	GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Secret is one version of a stored secret. Exactly one of String and Binary
// is set.
type Secret struct {
	ARN     string
	Version string
	String  string
	Binary  []byte
}

// Text returns the string value, or the binary value base64-encoded.
func (s Secret) Text() string {
	if s.Binary != nil {
		return base64.StdEncoding.EncodeToString(s.Binary)
	}
	return s.String
}

type SecretsManagerClient struct {
	client secretsAPI
	// VersionStage selects a staging label; empty means AWSCURRENT.
	VersionStage string
}

func NewSecretsManagerClient(cfg aws.Config) *SecretsManagerClient {
	return &SecretsManagerClient{client: secretsmanager.NewFromConfig(cfg)}
}

func (s *SecretsManagerClient) Fetch(ctx context.Context, name string) (Secret, error) {
	in := &secretsmanager.GetSecretValueInput{SecretId: aws.String(name)}
	if s.VersionStage != "" {
		in.VersionStage = aws.String(s.VersionStage)
	}
	out, err := s.client.GetSecretValue(ctx, in)
	if err != nil {
		return Secret{}, errs.WrapMsgErr(ErrSMGetSecret, name, err)
	}
	secret := Secret{
		ARN:     aws.ToString(out.ARN),
		Version: aws.ToString(out.VersionId),
		Binary:  out.SecretBinary,
	}
	switch {
	case out.SecretString != nil:
		secret.String = *out.SecretString
		secret.Binary = nil
	case out.SecretBinary == nil:
		return Secret{}, errs.WrapMsg(ErrSMEmpty, name)
	}
	return secret, nil
}

// GetSecret returns the secret's text form.
func (s *SecretsManagerClient) GetSecret(ctx context.Context, name string) (string, error) {
	secret, err := s.Fetch(ctx, name)
	if err != nil {
		return "", err
	}
	return secret.Text(), nil
}
