package gmail

import (
	"encoding/base64"
	"html"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	gmail "google.golang.org/api/gmail/v1"
)

// stripPolicy removes all HTML, leaving only text content. Used when an
// email has no text/plain part and we fall back to text/html.
var stripPolicy = bluemonday.StrictPolicy()

// Message is one email within a thread, reduced to what the pipeline needs.
type Message struct {
	ID      string
	From    string
	To      []string
	Subject string
	Body    string
	Date    time.Time

	// WireMessageID and References are the RFC 5322 threading headers,
	// carried along so replies can be threaded correctly.
	WireMessageID string
	References    string
}

// Thread is an immutable snapshot of a conversation, fetched once per run.
type Thread struct {
	ID          string
	Messages    []Message
	LastUpdated time.Time
}

// LastMessage returns the most recent message of the thread.
func (t Thread) LastMessage() Message {
	if len(t.Messages) == 0 {
		return Message{}
	}
	return t.Messages[len(t.Messages)-1]
}

// Subject returns the subject of the first message, which names the thread.
func (t Thread) Subject() string {
	if len(t.Messages) == 0 {
		return ""
	}
	return t.Messages[0].Subject
}

// headerValue extracts a header value from a Gmail message payload.
func headerValue(m *gmail.Message, header string) string {
	if m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}

// decodeBody decodes Gmail's URL-safe base64 body data. Decoding is
// tolerant: malformed data yields an empty string rather than an error,
// because a single broken part should not sink the whole thread.
func decodeBody(data string) string {
	if data == "" {
		return ""
	}
	raw, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(raw)
}

// htmlToText strips markup from an HTML body, leaving readable text.
func htmlToText(s string) string {
	return html.UnescapeString(stripPolicy.Sanitize(s))
}

// messageBody extracts the body of a message, preferring text/plain and
// falling back to text/html with markup stripped.
func messageBody(m *gmail.Message) string {
	if m.Payload == nil {
		return ""
	}

	if parts := m.Payload.Parts; len(parts) > 0 {
		for _, p := range parts {
			if p.MimeType == "text/plain" && p.Body != nil {
				return decodeBody(p.Body.Data)
			}
		}
		for _, p := range parts {
			if p.MimeType == "text/html" && p.Body != nil {
				return htmlToText(decodeBody(p.Body.Data))
			}
		}
		// Nested multipart (e.g. multipart/alternative inside mixed).
		for _, p := range parts {
			if len(p.Parts) > 0 {
				if body := messageBody(&gmail.Message{Payload: p}); body != "" {
					return body
				}
			}
		}
		return ""
	}

	if m.Payload.Body != nil {
		body := decodeBody(m.Payload.Body.Data)
		if strings.EqualFold(m.Payload.MimeType, "text/html") {
			return htmlToText(body)
		}
		return body
	}
	return ""
}

// messageDate resolves the message timestamp, preferring the Date header
// and falling back to Gmail's internal delivery time.
func messageDate(m *gmail.Message) time.Time {
	if d := headerValue(m, "Date"); d != "" {
		if parsed, err := mail.ParseDate(d); err == nil {
			return parsed
		}
	}
	if m.InternalDate > 0 {
		return time.UnixMilli(m.InternalDate)
	}
	return time.Time{}
}

// parseAddress extracts the bare address from a possibly display-named
// header value ("Jane Doe <jane@example.com>" -> "jane@example.com").
func parseAddress(v string) string {
	if v == "" {
		return ""
	}
	if addr, err := mail.ParseAddress(v); err == nil {
		return addr.Address
	}
	return strings.TrimSpace(v)
}

// parseAddressList extracts bare addresses from a To/Cc header value.
func parseAddressList(v string) []string {
	if v == "" {
		return nil
	}
	if addrs, err := mail.ParseAddressList(v); err == nil {
		out := make([]string, 0, len(addrs))
		for _, a := range addrs {
			out = append(out, a.Address)
		}
		return out
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// fromAPIThread converts a full Gmail API thread into the domain snapshot.
// Messages are ordered oldest first.
func fromAPIThread(t *gmail.Thread) Thread {
	thread := Thread{ID: t.Id}

	for _, m := range t.Messages {
		msg := Message{
			ID:            m.Id,
			From:          parseAddress(headerValue(m, "From")),
			To:            parseAddressList(headerValue(m, "To")),
			Subject:       headerValue(m, "Subject"),
			Body:          messageBody(m),
			Date:          messageDate(m),
			WireMessageID: headerValue(m, "Message-ID"),
			References:    headerValue(m, "References"),
		}
		thread.Messages = append(thread.Messages, msg)
		if msg.Date.After(thread.LastUpdated) {
			thread.LastUpdated = msg.Date
		}
	}

	sort.SliceStable(thread.Messages, func(i, j int) bool {
		return thread.Messages[i].Date.Before(thread.Messages[j].Date)
	})

	return thread
}

// replySubject ensures the "Re: " prefix is added at most once.
func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
