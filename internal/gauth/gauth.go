// Package gauth builds authenticated Gmail API clients from an OAuth client
// secret file and a cached token file.
package gauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// loadConfig parses an OAuth client secret file with read-only Gmail scope.
func loadConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read client secret file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret file: %w", err)
	}
	return cfg, nil
}

func tokenFromFile(tokenFile string) (*oauth2.Token, error) {
	f, err := os.Open(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()
	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return &tok, nil
}

func saveToken(tokenFile string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(tokenFile), 0o755); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	f, err := os.OpenFile(tokenFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create token file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

// Service builds a Gmail API service from the cached token. The underlying
// HTTP client refreshes the token automatically; run Authorize first if no
// token has been cached yet.
func Service(ctx context.Context, credentialsFile, tokenFile string) (*gmail.Service, error) {
	cfg, err := loadConfig(credentialsFile)
	if err != nil {
		return nil, err
	}
	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("no cached token (run with -authorize first): %w", err)
	}
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("build gmail service: %w", err)
	}
	return srv, nil
}

// Authorize runs the interactive loopback consent flow: it prints the
// consent URL, receives the authorization code on a local HTTP listener,
// exchanges it and caches the token at tokenFile.
func Authorize(ctx context.Context, credentialsFile, tokenFile string) error {
	cfg, err := loadConfig(credentialsFile)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("listen for oauth callback: %w", err)
	}
	defer ln.Close()

	cfg.RedirectURL = fmt.Sprintf("http://%s/callback", ln.Addr())
	state := fmt.Sprintf("st-%d", os.Getpid())

	fmt.Printf("Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "code missing", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "Authorization received. You can close this tab.")
		codeCh <- code
	})
	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	defer srv.Close()

	var code string
	select {
	case code = <-codeCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	return saveToken(tokenFile, tok)
}
