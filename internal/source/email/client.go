package email

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailnotify/internal/source"
)

// DefaultMailbox is the folder watched when none is configured.
const DefaultMailbox = "INBOX"

var errNotReturned = errors.New("message not returned by server")

// Config holds the IMAP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	// TLS selects implicit TLS. When false the client upgrades with
	// STARTTLS.
	TLS bool

	// Mailbox is the folder to watch. Empty means DefaultMailbox.
	Mailbox string

	// BatchSize caps how many unseen messages one session fetches. The
	// newest UIDs win. Zero or less fetches all of them.
	BatchSize int

	// Timeout bounds a whole session. Zero or less means no bound beyond
	// the caller's context.
	Timeout time.Duration

	// TLSConfig overrides the client TLS settings. ServerName defaults to
	// Host when unset.
	TLSConfig *tls.Config
}

// IMAPClient wraps go-imap v2 for reading unseen messages. Every operation
// opens its own session.
type IMAPClient struct {
	cfg Config
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(cfg Config) *IMAPClient {
	if cfg.Mailbox == "" {
		cfg.Mailbox = DefaultMailbox
	}
	return &IMAPClient{cfg: cfg}
}

func (c *IMAPClient) addr() string {
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout/Close on the returned client.
func (c *IMAPClient) Connect(ctx context.Context) (*imapclient.Client, error) {
	addr := c.addr()
	tlsConfig := &tls.Config{ServerName: c.cfg.Host}
	if c.cfg.TLSConfig != nil {
		tlsConfig = c.cfg.TLSConfig.Clone()
		if tlsConfig.ServerName == "" {
			tlsConfig.ServerName = c.cfg.Host
		}
	}
	opts := &imapclient.Options{TLSConfig: tlsConfig}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, sessionError(ctx, "connecting to IMAP "+addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var client *imapclient.Client
	if c.cfg.TLS {
		client = imapclient.New(tls.Client(conn, opts.TLSConfig), opts)
	} else {
		client, err = imapclient.NewStartTLS(conn, opts)
		if err != nil {
			conn.Close()
			return nil, sessionError(ctx, "starting TLS with "+addr, err)
		}
	}

	if err := client.Login(c.cfg.Username, c.cfg.Password).Wait(); err != nil {
		_ = client.Close()
		var imapErr *imap.Error
		if ctx.Err() != nil || !errors.As(err, &imapErr) {
			return nil, sessionError(ctx, "logging in to "+addr, err)
		}
		return nil, &source.AuthError{
			Server: addr,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.cfg.Username, err,
			),
		}
	}

	return client, nil
}

// session opens a connection bounded by the configured timeout and runs fn
// on it. The connection is closed as soon as ctx ends.
func (c *IMAPClient) session(
	ctx context.Context,
	fn func(ctx context.Context, client *imapclient.Client) error,
) error {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()
	defer func() {
		_ = client.Logout().Wait()
		_ = client.Close()
	}()

	return fn(ctx, client)
}

// sessionError attaches the context error when the session was cut short.
func sessionError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w (%v)", op, ctxErr, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// FetchUnseen selects the mailbox read-only, searches for messages without
// the \Seen flag and fetches their full content with BODY.PEEK[]. Messages
// the server fails to return are reported in FetchResult.Failures.
func (c *IMAPClient) FetchUnseen(ctx context.Context) (*source.FetchResult, error) {
	result := &source.FetchResult{}

	err := c.session(ctx, func(ctx context.Context, client *imapclient.Client) error {
		if _, err := client.Select(c.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
			return sessionError(ctx, "selecting "+c.cfg.Mailbox, err)
		}

		criteria := &imap.SearchCriteria{
			NotFlag: []imap.Flag{imap.FlagSeen},
		}
		searchData, err := client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return sessionError(ctx, "searching unseen messages", err)
		}

		uids := searchData.AllUIDs()
		if len(uids) == 0 {
			return nil
		}
		slices.Sort(uids)
		if c.cfg.BatchSize > 0 && len(uids) > c.cfg.BatchSize {
			uids = uids[len(uids)-c.cfg.BatchSize:]
		}

		return c.fetchBodies(ctx, client, uids, result)
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *IMAPClient) fetchBodies(
	ctx context.Context,
	client *imapclient.Client,
	uids []imap.UID,
	result *source.FetchResult,
) error {
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	returned := make(map[imap.UID]bool, len(uids))
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if buf == nil {
			continue
		}
		returned[buf.UID] = true

		if err != nil {
			result.Failures = append(result.Failures, source.FetchFailure{
				UID: uint32(buf.UID),
				Err: fmt.Errorf("collecting message data: %w", err),
			})
			continue
		}

		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			result.Failures = append(result.Failures, source.FetchFailure{
				UID: uint32(buf.UID),
				Err: errors.New("message body missing from fetch response"),
			})
			continue
		}

		result.Messages = append(result.Messages, source.RawMessage{
			UID:    uint32(buf.UID),
			SeqNum: buf.SeqNum,
			Raw:    raw,
		})
	}

	if err := fetchCmd.Close(); err != nil && len(result.Messages) == 0 {
		return sessionError(ctx, "fetching messages", err)
	}

	for _, uid := range uids {
		if !returned[uid] {
			result.Failures = append(result.Failures, source.FetchFailure{
				UID: uint32(uid),
				Err: errNotReturned,
			})
		}
	}

	slices.SortFunc(result.Messages, func(a, b source.RawMessage) int {
		return cmp.Compare(a.UID, b.UID)
	})

	return nil
}

// Validate logs in, selects the mailbox read-only and reports its size.
func (c *IMAPClient) Validate(ctx context.Context) (string, error) {
	var status string

	err := c.session(ctx, func(ctx context.Context, client *imapclient.Client) error {
		data, err := client.Select(c.cfg.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait()
		if err != nil {
			return sessionError(ctx, "selecting "+c.cfg.Mailbox, err)
		}

		searchData, err := client.UIDSearch(&imap.SearchCriteria{
			NotFlag: []imap.Flag{imap.FlagSeen},
		}, nil).Wait()
		if err != nil {
			return sessionError(ctx, "searching unseen messages", err)
		}

		status = fmt.Sprintf(
			"%s@%s %s: %d messages, %d unseen",
			c.cfg.Username, c.addr(), c.cfg.Mailbox,
			data.NumMessages, len(searchData.AllUIDs()),
		)
		return nil
	})
	if err != nil {
		return "", err
	}

	return status, nil
}
