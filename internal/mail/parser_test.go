package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const simpleMessage = "Message-Id: <abc123@school.edu>\r\n" +
	"In-Reply-To: <parent456@school.edu>\r\n" +
	"From: \"Ms. Rivera\" <rivera@school.edu>\r\n" +
	"To: parent@example.com, other@example.com\r\n" +
	"Cc: office@school.edu\r\n" +
	"Subject: Field trip on Friday\r\n" +
	"Date: Mon, 24 Aug 2026 10:15:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Please return the signed permission slip by Thursday.\r\n"

func TestParseMessage_PlainText(t *testing.T) {
	parsed, err := ParseMessage(strings.NewReader(simpleMessage))
	require.NoError(t, err)

	assert.Equal(t, "abc123@school.edu", parsed.MessageID)
	assert.Equal(t, "parent456@school.edu", parsed.InReplyTo)
	assert.Equal(t, "Ms. Rivera", parsed.From.Name)
	assert.Equal(t, "rivera@school.edu", parsed.From.Address)
	assert.Equal(t, []string{"parent@example.com", "other@example.com"}, parsed.To)
	assert.Equal(t, []string{"office@school.edu"}, parsed.Cc)
	assert.Equal(t, "Field trip on Friday", parsed.Subject)
	assert.Equal(t, 2026, parsed.Date.Year())
	assert.Contains(t, parsed.TextBody, "permission slip")
	assert.Contains(t, parsed.Snippet, "Please return")
}

func TestParseMessage_MultipartWithAttachment(t *testing.T) {
	raw := "Message-Id: <mp1@school.edu>\r\n" +
		"From: rivera@school.edu\r\n" +
		"To: parent@example.com\r\n" +
		"Subject: Newsletter\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"outer\"\r\n" +
		"\r\n" +
		"--outer\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"See the attached newsletter.\r\n" +
		"--outer\r\n" +
		"Content-Type: application/pdf\r\n" +
		"Content-Disposition: attachment; filename=\"newsletter.pdf\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"JVBERi0xLjQ=\r\n" +
		"--outer--\r\n"

	parsed, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "See the attached newsletter.", strings.TrimSpace(parsed.TextBody))
	require.Len(t, parsed.Attachments, 1)
	att := parsed.Attachments[0]
	assert.Equal(t, "newsletter.pdf", att.Filename)
	assert.Equal(t, "application/pdf", att.ContentType)
	assert.Equal(t, int64(len(att.Content)), att.Size)
	assert.False(t, att.IsInline)
}

func TestParseMessage_HTMLOnlySnippet(t *testing.T) {
	raw := "Message-Id: <html1@school.edu>\r\n" +
		"From: rivera@school.edu\r\n" +
		"Subject: Reminder\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<html><body><p>Sports day is <b>tomorrow</b>!</p></body></html>\r\n"

	parsed, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Empty(t, parsed.TextBody)
	assert.NotEmpty(t, parsed.HTMLBody)
	assert.Contains(t, parsed.Snippet, "Sports day is tomorrow")
	assert.NotContains(t, parsed.Snippet, "<b>")
}

func TestParseFromHeader(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		wantName string
		wantAddr string
	}{
		{"quoted name", `"Ms. Rivera" <rivera@school.edu>`, "Ms. Rivera", "rivera@school.edu"},
		{"bare name", `Rivera <rivera@school.edu>`, "Rivera", "rivera@school.edu"},
		{"address only", `rivera@school.edu`, "", "rivera@school.edu"},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFromHeader(tt.header)
			assert.Equal(t, tt.wantName, got.Name)
			assert.Equal(t, tt.wantAddr, got.Address)
		})
	}
}

func TestGenerateSnippet_Truncates(t *testing.T) {
	long := strings.Repeat("word ", 100)
	snippet := generateSnippet(long, "")
	assert.LessOrEqual(t, len(snippet), 200)
	assert.True(t, strings.HasSuffix(snippet, "..."))
}

func TestGenerateSnippet_CollapsesWhitespace(t *testing.T) {
	snippet := generateSnippet("line one\n\n  line   two\t", "")
	assert.Equal(t, "line one line two", snippet)
}
