package email

import (
	"fmt"
	"strings"
	"time"
)

// Message is a plain-text email rendered from a template.
type Message struct {
	From       string
	To         string
	Subject    string
	Body       string
	TemplateID string
}

// Raw formats the message with its headers, CRLF line endings throughout.
func (m Message) Raw(now time.Time) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "To: %s\r\n", m.To)
	fmt.Fprintf(&sb, "From: %s\r\n", m.From)
	fmt.Fprintf(&sb, "Subject: %s\r\n", m.Subject)
	sb.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	if m.TemplateID != "" {
		fmt.Fprintf(&sb, "%s: %s\r\n", TemplateHeader, m.TemplateID)
	}
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	sb.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	if !strings.HasSuffix(body, "\n") {
		sb.WriteString("\r\n")
	}
	return []byte(sb.String())
}

// Render substitutes {{.key}} placeholders in text with values from data.
func Render(text string, data map[string]interface{}) string {
	for key, val := range data {
		text = strings.ReplaceAll(text, fmt.Sprintf("{{.%s}}", key), fmt.Sprintf("%v", val))
	}
	return text
}
