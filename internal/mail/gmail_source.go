package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
)

const (
	defaultGmailBaseURL = "https://gmail.googleapis.com/gmail/v1"
	gmailTokenURL       = "https://oauth2.googleapis.com/token"
	gmailPageSize       = 100
)

// GmailSource fetches messages through the Gmail REST API. The refresh
// token is exchanged for an access token on each run via the oauth2
// token source; listing is filtered server-side to the account's
// recognized sender domains and paginated until the limit is reached.
// Per-message fetch failures are logged and skipped, they never abort
// the batch.
type GmailSource struct {
	creds         OAuthCredentials
	senderDomains []string
	baseURL       string
	client        *http.Client
	logger        *slog.Logger
}

// GmailOption customizes a GmailSource.
type GmailOption func(*GmailSource)

// WithGmailBaseURL overrides the API endpoint. Used by tests.
func WithGmailBaseURL(baseURL string) GmailOption {
	return func(s *GmailSource) { s.baseURL = baseURL }
}

// WithGmailHTTPClient overrides the HTTP client, bypassing the oauth2
// transport. Used by tests.
func WithGmailHTTPClient(client *http.Client) GmailOption {
	return func(s *GmailSource) { s.client = client }
}

// NewGmailSource creates a Gmail REST adapter from decrypted OAuth2
// credentials and the account's sender-domain filter list.
func NewGmailSource(creds OAuthCredentials, senderDomains []string, logger *slog.Logger, opts ...GmailOption) *GmailSource {
	if logger == nil {
		logger = slog.Default()
	}
	s := &GmailSource{
		creds:         creds,
		senderDomains: senderDomains,
		baseURL:       defaultGmailBaseURL,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// httpClient builds an oauth2-refreshing client unless one was injected.
func (s *GmailSource) httpClient(ctx context.Context) *http.Client {
	if s.client != nil {
		return s.client
	}
	conf := &oauth2.Config{
		ClientID:     s.creds.ClientID,
		ClientSecret: s.creds.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: gmailTokenURL},
	}
	return conf.Client(ctx, &oauth2.Token{RefreshToken: s.creds.RefreshToken})
}

// listResponse is the shape of users/me/messages list pages.
type listResponse struct {
	Messages []struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
	} `json:"messages"`
	NextPageToken string `json:"nextPageToken"`
}

// messageResponse is the raw-format message payload.
type messageResponse struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	Raw      string `json:"raw"`
}

// Fetch implements the Source contract.
func (s *GmailSource) Fetch(ctx context.Context, opts FetchOptions) ([]ParsedMessage, error) {
	client := s.httpClient(ctx)
	query := s.buildQuery(opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = gmailPageSize
	}

	// List message ids page by page until the limit or the last page.
	type listedMessage struct{ ID, ThreadID string }
	var listed []listedMessage
	pageToken := ""
	for {
		page, err := s.listPage(ctx, client, query, pageToken, limit-len(listed))
		if err != nil {
			return nil, err
		}
		for _, m := range page.Messages {
			listed = append(listed, listedMessage{ID: m.ID, ThreadID: m.ThreadID})
		}
		pageToken = page.NextPageToken
		if pageToken == "" || len(listed) >= limit {
			break
		}
	}

	if len(listed) == 0 {
		return nil, nil
	}

	// Fetch each message's full raw content individually. A failure
	// here only costs that one message.
	var messages []ParsedMessage
	for _, m := range listed {
		parsed, err := s.fetchMessage(ctx, client, m.ID)
		if err != nil {
			s.logger.Warn("skipping message",
				slog.String("gmail_id", m.ID),
				slog.Any("error", err))
			continue
		}
		if parsed.MessageID == "" {
			parsed.MessageID = m.ID
		}
		messages = append(messages, *parsed)
	}

	return messages, nil
}

// buildQuery renders the server-side search filter.
func (s *GmailSource) buildQuery(opts FetchOptions) string {
	var parts []string
	if len(s.senderDomains) > 0 {
		filters := make([]string, 0, len(s.senderDomains))
		for _, d := range s.senderDomains {
			filters = append(filters, "from:"+d)
		}
		parts = append(parts, "("+strings.Join(filters, " OR ")+")")
	}
	if !opts.Since.IsZero() {
		parts = append(parts, "after:"+strconv.FormatInt(opts.Since.Unix(), 10))
	}
	return strings.Join(parts, " ")
}

// listPage requests one page of message ids.
func (s *GmailSource) listPage(ctx context.Context, client *http.Client, query, pageToken string, remaining int) (*listResponse, error) {
	maxResults := gmailPageSize
	if remaining < maxResults {
		maxResults = remaining
	}

	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	params.Set("maxResults", strconv.Itoa(maxResults))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var page listResponse
	if err := s.getJSON(ctx, client, s.baseURL+"/users/me/messages?"+params.Encode(), &page); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return &page, nil
}

// fetchMessage retrieves one message in raw format and parses it.
func (s *GmailSource) fetchMessage(ctx context.Context, client *http.Client, id string) (*ParsedMessage, error) {
	var msg messageResponse
	u := s.baseURL + "/users/me/messages/" + url.PathEscape(id) + "?format=raw"
	if err := s.getJSON(ctx, client, u, &msg); err != nil {
		return nil, fmt.Errorf("fetching message: %w", err)
	}

	raw, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(msg.Raw, "="))
	if err != nil {
		return nil, fmt.Errorf("decoding raw message: %w", err)
	}

	parsed, err := ParseMessage(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("parsing message: %w", err)
	}
	return parsed, nil
}

// getJSON performs a GET and decodes the JSON body.
func (s *GmailSource) getJSON(ctx context.Context, client *http.Client, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gmail api status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
