package mail

import (
	"io"
	netmail "net/mail"
	"regexp"
	"strings"

	"github.com/jhillyerd/enmime"
)

// ParseMessage parses a raw RFC 5322 message into the normalized
// ParsedMessage shape used by both adapters.
func ParseMessage(r io.Reader) (*ParsedMessage, error) {
	env, err := enmime.ReadEnvelope(r)
	if err != nil {
		return nil, err
	}

	parsed := &ParsedMessage{
		MessageID: strings.Trim(env.GetHeader("Message-Id"), "<>"),
		InReplyTo: strings.Trim(env.GetHeader("In-Reply-To"), "<>"),
		Subject:   env.GetHeader("Subject"),
		TextBody:  env.Text,
		HTMLBody:  env.HTML,
	}

	parsed.From = parseFromHeader(env.GetHeader("From"))
	parsed.To = addressList(env, "To")
	parsed.Cc = addressList(env, "Cc")
	parsed.Bcc = addressList(env, "Bcc")

	if date, err := netmail.ParseDate(env.GetHeader("Date")); err == nil {
		parsed.Date = date
	}

	parsed.Snippet = generateSnippet(parsed.TextBody, parsed.HTMLBody)

	for _, att := range env.Attachments {
		parsed.Attachments = append(parsed.Attachments, ParsedAttachment{
			Filename:    att.FileName,
			ContentType: att.ContentType,
			Content:     att.Content,
			Size:        int64(len(att.Content)),
			ContentID:   att.ContentID,
		})
	}

	// Inline parts with filenames are attachments too (embedded images
	// and the like).
	for _, att := range env.Inlines {
		if att.FileName == "" {
			continue
		}
		parsed.Attachments = append(parsed.Attachments, ParsedAttachment{
			Filename:    att.FileName,
			ContentType: att.ContentType,
			Content:     att.Content,
			Size:        int64(len(att.Content)),
			IsInline:    true,
			ContentID:   att.ContentID,
		})
	}

	return parsed, nil
}

// addressList extracts bare addresses from an address header.
func addressList(env *enmime.Envelope, header string) []string {
	list, err := env.AddressList(header)
	if err != nil {
		return nil
	}
	addrs := make([]string, 0, len(list))
	for _, a := range list {
		addrs = append(addrs, a.Address)
	}
	return addrs
}

// parseFromHeader extracts name and email from a From header
func parseFromHeader(from string) Address {
	from = strings.TrimSpace(from)
	if from == "" {
		return Address{}
	}

	if addr, err := netmail.ParseAddress(from); err == nil {
		return Address{Name: addr.Name, Address: addr.Address}
	}

	// Pattern: "Name" <email@example.com> or Name <email@example.com>
	re := regexp.MustCompile(`^(?:"?([^"<]*)"?\s*)?<?([^<>]+@[^<>]+)>?$`)
	matches := re.FindStringSubmatch(from)
	if len(matches) >= 3 {
		return Address{
			Name:    strings.Trim(strings.TrimSpace(matches[1]), `"`),
			Address: strings.TrimSpace(matches[2]),
		}
	}

	// Fallback: treat entire string as email
	return Address{Address: from}
}

// generateSnippet creates a preview snippet from the message body
func generateSnippet(bodyText, bodyHTML string) string {
	var text string

	if bodyText != "" {
		text = bodyText
	} else if bodyHTML != "" {
		text = stripHTMLTags(bodyHTML)
	}

	// Clean up whitespace
	text = strings.Join(strings.Fields(text), " ")
	text = strings.TrimSpace(text)

	// Truncate to 200 characters
	if len(text) > 200 {
		text = text[:197] + "..."
	}

	return text
}

// stripHTMLTags removes HTML tags from a string
func stripHTMLTags(html string) string {
	// Remove script and style elements
	re := regexp.MustCompile(`(?i)<(script|style)[^>]*>[\s\S]*?</\1>`)
	html = re.ReplaceAllString(html, "")

	// Remove HTML tags
	re = regexp.MustCompile(`<[^>]*>`)
	html = re.ReplaceAllString(html, " ")

	// Decode common HTML entities
	html = strings.ReplaceAll(html, "&nbsp;", " ")
	html = strings.ReplaceAll(html, "&amp;", "&")
	html = strings.ReplaceAll(html, "&lt;", "<")
	html = strings.ReplaceAll(html, "&gt;", ">")
	html = strings.ReplaceAll(html, "&quot;", `"`)
	html = strings.ReplaceAll(html, "&#39;", "'")

	return html
}
