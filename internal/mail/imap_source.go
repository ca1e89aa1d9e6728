package mail

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// IMAPSource fetches messages over IMAP: connect, select INBOX
// read-only, search by since-date, fetch full bodies, disconnect.
// Connection, search and fetch errors fail the whole Fetch call;
// only MIME parse failures are skipped per message.
type IMAPSource struct {
	creds  IMAPCredentials
	logger *slog.Logger
}

// NewIMAPSource creates an IMAP adapter from decrypted credentials.
func NewIMAPSource(creds IMAPCredentials, logger *slog.Logger) *IMAPSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &IMAPSource{creds: creds, logger: logger}
}

// Fetch implements the Source contract.
func (s *IMAPSource) Fetch(ctx context.Context, opts FetchOptions) ([]ParsedMessage, error) {
	client, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select("INBOX", &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	criteria := &imap.SearchCriteria{}
	if !opts.Since.IsZero() {
		criteria.Since = opts.Since
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	// Cap at the most recent Limit messages.
	if opts.Limit > 0 && len(uids) > opts.Limit {
		uids = uids[len(uids)-opts.Limit:]
	}

	uidSet := imap.UIDSetNum(uids...)
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	var messages []ParsedMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			return messages, fmt.Errorf("collecting message data: %w", err)
		}

		raw := buf.FindBodySection(bodySection)
		if raw == nil {
			continue
		}

		parsed, err := ParseMessage(bytes.NewReader(raw))
		if err != nil {
			s.logger.Warn("skipping unparseable message",
				slog.Uint64("uid", uint64(buf.UID)),
				slog.Any("error", err))
			continue
		}

		// Fall back to envelope data when headers were sparse.
		if buf.Envelope != nil {
			if parsed.MessageID == "" {
				parsed.MessageID = buf.Envelope.MessageID
			}
			if parsed.Date.IsZero() {
				parsed.Date = buf.Envelope.Date
			}
		}

		messages = append(messages, *parsed)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching messages: %w", err)
	}

	return messages, nil
}

// connect dials the IMAP server and authenticates.
func (s *IMAPSource) connect() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.creds.Host, s.creds.Port)

	var client *imapclient.Client
	var err error

	if s.creds.UseSSL {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(s.creds.Username, s.creds.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("authenticating %s: %w", s.creds.Username, err)
	}

	return client, nil
}
