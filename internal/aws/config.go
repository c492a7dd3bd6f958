package aws

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"vinr.eu/launchpad/internal/errs"
)

const (
	ModeRemote = "remote"
	ModeLocal  = "local"

	localRegion = "us-east-1"
	localKey    = "test"
)

var (
	ErrInvalidMode = errs.Kind(errs.ErrValidation, "aws/config: mode must be 'local' or 'remote'")
)

// Endpoint describes where the SDK talks to. Remote endpoints use the default
// credential chain; local ones target an emulator with static keys.
type Endpoint struct {
	Mode            string
	Region          string
	URL             string
	AccessKeyID     string
	SecretAccessKey string
}

// EndpointFromEnv reads <PREFIX>_AWS_* variables, falling back to the plain
// AWS_* ones.
func EndpointFromEnv(mode, prefix string) Endpoint {
	lookup := func(key string) string {
		if v, ok := os.LookupEnv(prefix + "_" + key); ok {
			return v
		}
		return os.Getenv(key)
	}
	return Endpoint{
		Mode:            mode,
		Region:          lookup("AWS_REGION"),
		URL:             lookup("AWS_ENDPOINT_URL"),
		AccessKeyID:     lookup("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: lookup("AWS_SECRET_ACCESS_KEY"),
	}
}

// LoadServiceConfig builds the SDK configuration for the endpoint read from
// the environment under prefix.
func LoadServiceConfig(ctx context.Context, mode, prefix string) (aws.Config, error) {
	return EndpointFromEnv(mode, prefix).Load(ctx)
}

func (e Endpoint) Load(ctx context.Context) (aws.Config, error) {
	opts, err := e.options()
	if err != nil {
		return aws.Config{}, err
	}
	return config.LoadDefaultConfig(ctx, opts...)
}

func (e Endpoint) options() ([]func(*config.LoadOptions) error, error) {
	var opts []func(*config.LoadOptions) error
	switch e.Mode {
	case ModeRemote, "":
		if e.Region != "" {
			opts = append(opts, config.WithRegion(e.Region))
		}
	case ModeLocal:
		opts = append(opts,
			config.WithRegion(orDefault(e.Region, localRegion)),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				orDefault(e.AccessKeyID, localKey),
				orDefault(e.SecretAccessKey, localKey),
				"",
			)),
		)
	default:
		return nil, errs.WrapMsg(ErrInvalidMode, "got "+e.Mode)
	}
	if e.URL != "" {
		opts = append(opts, config.WithBaseEndpoint(e.URL))
	}
	return opts, nil
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
