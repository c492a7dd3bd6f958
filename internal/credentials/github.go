package credentials

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/go-github/v69/github"
	"golang.org/x/oauth2"
	"vinr.eu/launchpad/internal/errs"
	"vinr.eu/launchpad/internal/logger"
)

var (
	ErrNoToken      = errs.Kind(errs.ErrCredentialFetch, "credentials: credential has no token")
	ErrVerifyFailed = errs.Kind(errs.ErrCredentialFetch, "credentials: github token verification failed")
)

// VerifyGitHub wraps fetch so the fetched token is checked against the GitHub
// API and the owning login is stored next to it. An empty baseURL uses
// api.github.com.
func VerifyGitHub(fetch FetchFunc, baseURL string) FetchFunc {
	return func(ctx context.Context) (any, error) {
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, ErrNoToken
		}
		token, _ := obj["token"].(string)
		if token == "" {
			return nil, ErrNoToken
		}

		client, err := newGitHubClient(ctx, token, baseURL)
		if err != nil {
			return nil, err
		}
		user, _, err := client.Users.Get(ctx, "")
		if err != nil {
			return nil, errs.Wrap(ErrVerifyFailed, err)
		}
		logger.Info(ctx, "verified github token", "login", user.GetLogin())
		obj["login"] = user.GetLogin()
		return obj, nil
	}
}

func newGitHubClient(ctx context.Context, token, baseURL string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))
	if baseURL == "" {
		return client, nil
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errs.WrapMsgErr(ErrVerifyFailed, baseURL, err)
	}
	client.BaseURL = u
	return client, nil
}
