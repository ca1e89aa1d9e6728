// Package mail implements the mail source adapters that retrieve and
// parse messages from a user's mailbox, over IMAP or the Gmail REST
// API. Both adapters normalize into ParsedMessage; persistence is the
// ingest service's job, not this package's.
package mail

import (
	"context"
	"time"
)

// FetchOptions bounds a fetch. Limit is a hard cap across pages.
type FetchOptions struct {
	Since time.Time
	Limit int
}

// Source is the common adapter contract. A Source never returns more
// than opts.Limit messages.
type Source interface {
	Fetch(ctx context.Context, opts FetchOptions) ([]ParsedMessage, error)
}

// Address is a parsed mailbox address.
type Address struct {
	Name    string
	Address string
}

// ParsedAttachment is attachment content extracted during MIME parsing.
// Payload bytes are carried in memory; the ingest service decides
// whether they are stored inline or handed to file storage.
type ParsedAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
	Size        int64
	IsInline    bool
	ContentID   string
}

// ParsedMessage is the normalized shape both adapters produce.
type ParsedMessage struct {
	MessageID   string
	InReplyTo   string
	From        Address
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Date        time.Time
	TextBody    string
	HTMLBody    string
	Snippet     string
	Attachments []ParsedAttachment
}

// IMAPCredentials holds decrypted IMAP connection secrets, passed
// explicitly into the adapter constructor rather than read from
// process-wide configuration.
type IMAPCredentials struct {
	Host     string
	Port     int
	Username string
	Password string
	UseSSL   bool
}

// OAuthCredentials holds decrypted OAuth2 secrets for the REST
// adapter. The refresh token is exchanged for an access token on each
// run; no token caching is attempted.
type OAuthCredentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}
