// Package imapbox implements mail.Provider for plain IMAP mailboxes. The
// processed label becomes an IMAP keyword flag on the message.
package imapbox

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/MrSnakeDoc/mailmarks/internal/logger"
	"github.com/MrSnakeDoc/mailmarks/internal/mail"
)

const (
	// DefaultPort is IMAP over implicit TLS.
	DefaultPort = 993
	// DefaultFolder is where sent mail usually lives.
	DefaultFolder = "Sent"
	// DefaultMaxResults caps the number of UIDs returned by one listing.
	DefaultMaxResults = 10
	// DefaultTimeout applies to every IMAP command.
	DefaultTimeout = 60 * time.Second
)

// Config holds the IMAP account settings.
type Config struct {
	Server     string
	Port       int
	Username   string
	Password   string
	Folder     string
	MaxResults int
	Timeout    time.Duration
}

// Dialer opens an unauthenticated connection.
type Dialer func(addr string) (*client.Client, error)

// TLSDialer connects with implicit TLS.
func TLSDialer(addr string) (*client.Client, error) {
	return client.DialTLS(addr, nil)
}

// Provider reads one IMAP folder. go-imap clients are not safe for
// concurrent commands, so every call holds mu.
type Provider struct {
	mu         sync.Mutex
	c          *client.Client
	folder     string
	maxResults int
	selected   bool
	logger     logger.Logger
}

// Dial connects with TLS and logs in.
func Dial(cfg Config, log logger.Logger) (*Provider, error) {
	return DialWith(TLSDialer, cfg, log)
}

// DialWith connects through dial and logs in.
func DialWith(dial Dialer, cfg Config, log logger.Logger) (*Provider, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Folder == "" {
		cfg.Folder = DefaultFolder
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server, cfg.Port)
	c, err := dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	c.Timeout = cfg.Timeout

	if err := c.Login(cfg.Username, cfg.Password); err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("failed to log in as %s: %w", cfg.Username, err)
	}

	log.Info("connected to imap server",
		logger.String("addr", addr),
		logger.String("folder", cfg.Folder))

	return &Provider{
		c:          c,
		folder:     cfg.Folder,
		maxResults: cfg.MaxResults,
		logger:     log,
	}, nil
}

// selectFolder opens the folder read-write once per connection.
func (p *Provider) selectFolder() (*imap.MailboxStatus, error) {
	status, err := p.c.Select(p.folder, false)
	if err != nil {
		return nil, fmt.Errorf("failed to select folder %s: %w", p.folder, err)
	}
	p.selected = true
	return status, nil
}

func (p *Provider) ensureSelected() error {
	if p.selected {
		return nil
	}
	_, err := p.selectFolder()
	return err
}

// ListUnprocessed implements mail.Provider. The oldest messages come first.
func (p *Provider) ListUnprocessed(ctx context.Context, excludeLabel string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureSelected(); err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{Keyword(excludeLabel)}

	uids, err := p.c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })
	if len(uids) > p.maxResults {
		uids = uids[:p.maxResults]
	}

	ids := make([]string, len(uids))
	for i, uid := range uids {
		ids[i] = strconv.FormatUint(uint64(uid), 10)
	}
	return ids, nil
}

// GetMessage implements mail.Provider. The body is fetched with PEEK so the
// \Seen flag is left alone.
func (p *Provider) GetMessage(ctx context.Context, id string) (*mail.Message, error) {
	uid, err := parseUID(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureSelected(); err != nil {
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- p.c.UidFetch(seqSet, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		if msg == nil {
			msg = m
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	if msg == nil {
		return nil, fmt.Errorf("message %s not found", id)
	}

	body := msg.GetBody(section)
	if body == nil {
		return nil, fmt.Errorf("message %s has no body", id)
	}

	return Parse(id, body)
}

// EnsureLabel implements mail.Provider. IMAP keywords need no creation,
// but the folder must accept new keywords.
func (p *Provider) EnsureLabel(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	status, err := p.selectFolder()
	if err != nil {
		return "", err
	}

	keyword := Keyword(name)
	if keyword == "" {
		return "", fmt.Errorf("%w: %q", mail.ErrNoSuchLabel, name)
	}
	for _, f := range status.PermanentFlags {
		if f == imap.TryCreateFlag || strings.EqualFold(f, keyword) {
			return keyword, nil
		}
	}
	return "", fmt.Errorf("%w: folder %s does not accept keyword %s", mail.ErrNoSuchLabel, p.folder, keyword)
}

// MarkProcessed implements mail.Provider.
func (p *Provider) MarkProcessed(ctx context.Context, messageID, labelID string) error {
	uid, err := parseUID(messageID)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureSelected(); err != nil {
		return err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := p.c.UidStore(seqSet, item, []interface{}{labelID}, nil); err != nil {
		return fmt.Errorf("failed to flag message %s: %w", messageID, err)
	}
	return nil
}

// Close implements mail.Provider.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.c.Logout()
}

// Keyword turns a label name into a valid IMAP keyword atom.
func Keyword(label string) string {
	label = strings.TrimSpace(label)
	return strings.Map(func(r rune) rune {
		switch {
		case r <= ' ' || r >= 0x7f:
			return '_'
		case strings.ContainsRune(`(){%*"\]`, r):
			return '_'
		}
		return r
	}, label)
}

func parseUID(id string) (uint32, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid message uid %q", id)
	}
	return uint32(n), nil
}

var _ mail.Provider = (*Provider)(nil)
