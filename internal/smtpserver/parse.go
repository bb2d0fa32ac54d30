package smtpserver

import (
	"io"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.io/infrasutra/holomail/internal/mailbox"
)

const (
	noSubject     = "(no subject)"
	unknownSender = "unknown@holomail"
)

type parsedMessage struct {
	subject  string
	from     string
	text     string
	html     string
	received *time.Time
}

// input builds the email filed for one envelope recipient.
func (m parsedMessage) input(recipient string) mailbox.EmailInput {
	in := mailbox.EmailInput{
		Subject:    m.subject,
		Sender:     m.from,
		Recipient:  recipient,
		ReceivedAt: m.received,
	}
	body := m.text
	if strings.TrimSpace(body) == "" {
		body = m.html
	}
	if body != "" {
		in.Body = &body
	}
	return in
}

// parseMessage extracts the fields holomail keeps from a raw RFC 5322
// message. On error the returned message still carries everything read so
// far, with the envelope sender and placeholder subject filled in.
func parseMessage(envelopeFrom string, r io.Reader) (parsedMessage, error) {
	msg := parsedMessage{subject: noSubject, from: normalizeEmail(envelopeFrom)}

	reader, err := mail.CreateReader(r)
	if err != nil {
		if msg.from == "" {
			msg.from = unknownSender
		}
		return msg, err
	}
	defer reader.Close()

	if subject, err := reader.Header.Subject(); err == nil && strings.TrimSpace(subject) != "" {
		msg.subject = subject
	}
	if fromList, err := reader.Header.AddressList("From"); err == nil && len(fromList) > 0 {
		if addr := normalizeEmail(fromList[0].Address); addr != "" {
			msg.from = addr
		}
	}
	if date, err := reader.Header.Date(); err == nil && !date.IsZero() {
		utc := date.UTC()
		msg.received = &utc
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if msg.from == "" {
				msg.from = unknownSender
			}
			return msg, err
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			// Attachments are not kept.
			continue
		}
		mediaType, _, _ := header.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(mediaType, "text/plain") || mediaType == "":
			msg.text = appendPart(msg.text, string(body))
		case strings.HasPrefix(mediaType, "text/html"):
			msg.html = appendPart(msg.html, string(body))
		}
	}

	if msg.from == "" {
		msg.from = unknownSender
	}
	return msg, nil
}

func appendPart(existing, part string) string {
	if existing == "" {
		return part
	}
	return existing + "\n" + part
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
