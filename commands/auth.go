package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/BLloyd97/GCP-to-Groups/config"
)

const (
	serviceAccount = "service_account"
	authorizedUser = "authorized_user"
	installedApp   = "installed"
)

// authorize returns an HTTP client for the scopes. Service account credentials impersonate the subject
// (domain-wide delegation), OAuth client credentials use the tokens cached in the tokens file, prompting
// for an authorization code if there are none.
func authorize(ctx context.Context, credentials config.Credentials, subject string, scopes []string, tokens string) (*http.Client, error) {
	b, err := credentials.Bytes()
	if err != nil {
		return nil, err
	}

	switch kind, err := credentialsType(b); {
	case err != nil:
		return nil, err

	case kind == serviceAccount:
		jwt, err := google.JWTConfigFromJSON(b, scopes...)
		if err != nil {
			return nil, err
		}

		jwt.Subject = subject

		return jwt.Client(ctx), nil

	case kind == authorizedUser:
		creds, err := google.CredentialsFromJSON(ctx, b, scopes...)
		if err != nil {
			return nil, err
		}

		return oauth2.NewClient(ctx, creds.TokenSource), nil

	default:
		conf, err := google.ConfigFromJSON(b, scopes...)
		if err != nil {
			return nil, err
		}

		return getClient(ctx, tokens, conf)
	}
}

func credentialsType(b []byte) (string, error) {
	credentials := struct {
		Type      string          `json:"type"`
		Installed json.RawMessage `json:"installed"`
		Web       json.RawMessage `json:"web"`
	}{}

	if err := json.Unmarshal(b, &credentials); err != nil {
		return "", fmt.Errorf("invalid Google credentials (%v)", err)
	}

	switch {
	case credentials.Type == serviceAccount:
		return serviceAccount, nil

	case credentials.Type == authorizedUser:
		return authorizedUser, nil

	case credentials.Installed != nil || credentials.Web != nil:
		return installedApp, nil

	case credentials.Type != "":
		return "", fmt.Errorf("unsupported Google credentials type '%s'", credentials.Type)

	default:
		return "", fmt.Errorf("unrecognised Google credentials")
	}
}

// Retrieves a token, saves the token, then returns the generated client.
func getClient(ctx context.Context, tokens string, conf *oauth2.Config) (*http.Client, error) {
	token, err := tokenFromFile(tokens)
	if err != nil {
		if token, err = getTokenFromWeb(ctx, conf); err != nil {
			return nil, err
		}

		if err := saveToken(tokens, token); err != nil {
			warnf("unable to cache OAuth token (%v)", err)
		}
	}

	return conf.Client(ctx, token), nil
}

// Requests a token from the web, then returns the retrieved token.
func getTokenFromWeb(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	authURL := conf.AuthCodeURL("state-token", oauth2.AccessTypeOffline)

	fmt.Printf("Go to the following link in your browser then type the authorization code: \n%v\n", authURL)

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return nil, fmt.Errorf("unable to read authorization code (%v)", err)
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from web (%v)", err)
	}

	return token, nil
}

// Retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}

	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}

	return token, nil
}

// Saves a token to a file path.
func saveToken(path string, token *oauth2.Token) error {
	infof("saving OAuth token to %s", path)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	defer f.Close()

	return json.NewEncoder(f).Encode(token)
}
