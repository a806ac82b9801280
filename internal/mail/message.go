// Package mail holds the provider-neutral message shape consumed by the
// transformer, and the Provider interface implemented by mailbox backends.
package mail

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"
)

// Header is one name/value pair of the message header list.
type Header struct {
	Name  string
	Value string
}

// Part is a message body part. Data is URL-safe base64, as delivered by the
// Gmail API; backends that receive raw bytes encode them with EncodeData.
type Part struct {
	MimeType string
	Data     string
	Parts    []Part
}

// Message is a fetched message: its header list and body payload.
type Message struct {
	ID      string
	Headers []Header
	Payload Part
}

// Header returns the first header value whose name matches (case-insensitive),
// or "" when absent.
func (m *Message) Header(name string) string {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// HasHeader reports whether a header with that name exists.
func (m *Message) HasHeader(name string) bool {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return true
		}
	}
	return false
}

// PlainText returns the decoded text body.
//
// Multipart payloads use the first text/plain part carrying data. When no
// such part exists the first text/html part is flattened to text instead.
// Single-part payloads use their own data. Missing data yields "".
func (m *Message) PlainText() (string, error) {
	if len(m.Payload.Parts) == 0 {
		return DecodeData(m.Payload.Data)
	}

	if p := firstWithData(m.Payload.Parts, mimeTextPlain); p != nil {
		return DecodeData(p.Data)
	}

	if p := firstWithData(m.Payload.Parts, mimeTextHTML); p != nil {
		html, err := DecodeData(p.Data)
		if err != nil {
			return "", err
		}
		return HTMLToText(html)
	}

	return "", nil
}

// firstWithData walks parts depth-first and returns the first part of the
// given MIME type that has data.
func firstWithData(parts []Part, mimeType string) *Part {
	for i := range parts {
		p := &parts[i]
		if strings.EqualFold(p.MimeType, mimeType) && p.Data != "" {
			return p
		}
		if found := firstWithData(p.Parts, mimeType); found != nil {
			return found
		}
	}
	return nil
}

// DecodeData decodes URL-safe base64 (padded or not) into UTF-8 text.
func DecodeData(data string) (string, error) {
	if data == "" {
		return "", nil
	}

	raw, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return "", fmt.Errorf("failed to decode body data: %w", err)
		}
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("body is not valid utf-8")
	}
	return string(raw), nil
}

// EncodeData is the inverse of DecodeData.
func EncodeData(raw []byte) string {
	return base64.URLEncoding.EncodeToString(raw)
}
