package gmail

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/MrSnakeDoc/mailmarks/internal/logger"
)

// Prompter asks the user to open authURL and returns the pasted code.
type Prompter func(authURL string) (string, error)

// TerminalPrompter prompts on out and reads the code from in.
func TerminalPrompter(in io.Reader, out io.Writer) Prompter {
	return func(authURL string) (string, error) {
		fmt.Fprintf(out, "Open the following link in your browser, then paste the authorization code:\n%s\n> ", authURL)
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read authorization code: %w", err)
		}
		code := strings.TrimSpace(line)
		if code == "" {
			return "", errors.New("empty authorization code")
		}
		return code, nil
	}
}

// HTTPClient returns an OAuth2 client for the Gmail API. The token is read
// from tokenFile; when absent, the installed-app flow runs through prompt
// and the new token is saved. Refreshed tokens are written back.
func HTTPClient(ctx context.Context, credentialsFile, tokenFile string, prompt Prompter, log logger.Logger) (*http.Client, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read client credentials: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, gmailapi.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse client credentials: %w", err)
	}

	tok, err := readToken(tokenFile)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("ignoring unreadable token file",
				logger.String("path", tokenFile),
				logger.Error(err))
		}
		if prompt == nil {
			return nil, fmt.Errorf("no token at %s and no prompt to authorize", tokenFile)
		}
		tok, err = tokenFromWeb(ctx, cfg, prompt)
		if err != nil {
			return nil, err
		}
		if err := writeToken(tokenFile, tok); err != nil {
			return nil, err
		}
		log.Info("saved oauth token", logger.String("path", tokenFile))
	}

	src := &savingTokenSource{
		base:   cfg.TokenSource(ctx, tok),
		path:   tokenFile,
		last:   tok.AccessToken,
		logger: log,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

func tokenFromWeb(ctx context.Context, cfg *oauth2.Config, prompt Prompter) (*oauth2.Token, error) {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	code, err := prompt(authURL)
	if err != nil {
		return nil, err
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return tok, nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return tok, nil
}

func writeToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	if err := json.NewEncoder(f).Encode(tok); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// savingTokenSource persists the token whenever the base source refreshes it.
type savingTokenSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	path   string
	last   string
	logger logger.Logger
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := writeToken(s.path, tok); err != nil {
			s.logger.Warn("failed to persist refreshed token", logger.Error(err))
		} else {
			s.logger.Debug("refreshed oauth token saved", logger.String("path", s.path))
		}
	}
	return tok, nil
}
