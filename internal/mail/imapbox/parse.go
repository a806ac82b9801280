package imapbox

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	msgmail "github.com/emersion/go-message/mail"

	"github.com/MrSnakeDoc/mailmarks/internal/mail"
)

// Parse reads an RFC 5322 message into the provider-neutral shape.
// Header values are MIME-decoded; body parts are transfer-decoded,
// converted to UTF-8 and re-encoded as URL-safe base64. Attachments are
// dropped.
func Parse(id string, r io.Reader) (*mail.Message, error) {
	mr, err := msgmail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse message %s: %w", id, err)
	}
	defer func() { _ = mr.Close() }()

	out := &mail.Message{ID: id}

	fields := mr.Header.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		out.Headers = append(out.Headers, mail.Header{Name: fields.Key(), Value: value})
	}

	topType, _, err := mr.Header.ContentType()
	if err != nil || topType == "" {
		topType = "text/plain"
	}

	var parts []mail.Part
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("failed to read part of message %s: %w", id, err)
		}
		if p == nil {
			break
		}

		h, ok := p.Header.(*msgmail.InlineHeader)
		if !ok {
			continue
		}
		mimeType, _, err := h.ContentType()
		if err != nil || mimeType == "" {
			mimeType = "text/plain"
		}

		body, err := io.ReadAll(p.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body of message %s: %w", id, err)
		}
		parts = append(parts, mail.Part{MimeType: mimeType, Data: mail.EncodeData(body)})
	}

	if strings.HasPrefix(topType, "multipart/") {
		out.Payload = mail.Part{MimeType: topType, Parts: parts}
		return out, nil
	}

	out.Payload = mail.Part{MimeType: topType}
	if len(parts) > 0 {
		out.Payload.Data = parts[0].Data
	}
	return out, nil
}
