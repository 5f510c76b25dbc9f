package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	goauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"expensectl/internal/log"
)

// Credentials names where to find Google credentials. A service account takes
// precedence; otherwise both an OAuth client and a saved token are required.
type Credentials struct {
	ServiceAccountJSON  string
	ServiceAccountFile  string
	ApplicationCredFile string // GOOGLE_APPLICATION_CREDENTIALS fallback

	OAuthClientJSON string
	OAuthClientFile string
	OAuthTokenJSON  string
	OAuthTokenFile  string
}

// CredentialsFromEnv reads the GOOGLE_* credential variables.
func CredentialsFromEnv() Credentials {
	env := func(k string) string { return strings.TrimSpace(os.Getenv(k)) }
	return Credentials{
		ServiceAccountJSON:  env("GOOGLE_SERVICE_ACCOUNT_JSON"),
		ServiceAccountFile:  env("GOOGLE_SERVICE_ACCOUNT_FILE"),
		ApplicationCredFile: env("GOOGLE_APPLICATION_CREDENTIALS"),
		OAuthClientJSON:     env("GOOGLE_OAUTH_CLIENT_JSON"),
		OAuthClientFile:     env("GOOGLE_OAUTH_CLIENT_FILE"),
		OAuthTokenJSON:      env("GOOGLE_OAUTH_TOKEN_JSON"),
		OAuthTokenFile:      env("GOOGLE_OAUTH_TOKEN_FILE"),
	}
}

func (c Credentials) hasServiceAccount() bool {
	return c.ServiceAccountJSON != "" || c.ServiceAccountFile != "" || c.ApplicationCredFile != ""
}

// jsonUnmarshal is indirected for tests
var jsonUnmarshal = json.Unmarshal

// newSheetsService initializes a Sheets service from a service account or,
// failing that, from an OAuth client and token.
func newSheetsService(ctx context.Context, creds Credentials, logger *log.Logger) (*gsheet.Service, error) {
	if creds.hasServiceAccount() {
		b, source, err := readEither(creds.ServiceAccountJSON, firstNonEmpty(creds.ServiceAccountFile, creds.ApplicationCredFile))
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		logger.InfoContext(ctx, "Using service account credentials", "source", source)

		svc, err := gsheet.NewService(ctx,
			goption.WithCredentialsJSON(b),
			goption.WithScopes(gsheet.SpreadsheetsScope))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return svc, nil
	}

	if creds.OAuthClientJSON == "" && creds.OAuthClientFile == "" {
		return nil, errors.New("missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)")
	}
	if creds.OAuthTokenJSON == "" && creds.OAuthTokenFile == "" {
		return nil, errors.New("missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)")
	}

	clientJSON, _, err := readEither(creds.OAuthClientJSON, creds.OAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth client file: %w", err)
	}
	cfg, err := goauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth config: %w", err)
	}

	tokenJSON, _, err := readEither(creds.OAuthTokenJSON, creds.OAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("read oauth token file: %w", err)
	}
	var tok oauth2.Token
	if err := jsonUnmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	logger.InfoContext(ctx, "Using OAuth client credentials", "token_valid", tok.Valid())

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(cfg.Client(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// readEither returns inline when set, otherwise the contents of file.
func readEither(inline, file string) ([]byte, string, error) {
	if inline != "" {
		return []byte(inline), "inline", nil
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, file, err
	}
	return b, file, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
