/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package githubops

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"golang.org/x/oauth2"
)

// StaticTokenSource wraps a personal access token.
func StaticTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
}

// appTokenSource mints short-lived installation tokens from GitHub App
// credentials. Tokens are cached by the underlying transport; each Token
// call returns the current one.
type appTokenSource struct {
	transport *ghinstallation.Transport
}

// NewAppTokenSource builds a token source for a GitHub App installation
// from a PEM private key file.
func NewAppTokenSource(appID, installationID int64, privateKeyPath string) (oauth2.TokenSource, error) {
	itr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installationID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading app private key: %w", err)
	}
	return &appTokenSource{transport: itr}, nil
}

func (a *appTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tok, err := a.transport.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("minting installation token: %w", err)
	}
	return &oauth2.Token{AccessToken: tok}, nil
}
