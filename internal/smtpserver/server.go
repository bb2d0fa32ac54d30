// Package smtpserver accepts inbound mail over SMTP and files every message
// as an email through the mailbox service, one per envelope recipient.
package smtpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.io/infrasutra/holomail/internal/mailbox"
)

const (
	defaultDomain  = "holomail"
	ingestTimeout  = 30 * time.Second
	maxRecipients  = 100
	maxMessageSize = 25 << 20
)

// Ingestor files a parsed message. *mailbox.Service satisfies it.
type Ingestor interface {
	CreateEmail(ctx context.Context, in mailbox.EmailInput) (mailbox.CreatedEmail, error)
}

type AuthConfig struct {
	Enabled  bool
	Username string
	Password string
}

type Server struct {
	smtp   *smtp.Server
	logger *slog.Logger
}

func New(ingestor Ingestor, logger *slog.Logger, addr string, authCfg AuthConfig) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	backend := &backend{
		ingestor: ingestor,
		logger:   logger,
		auth:     authCfg,
	}
	server := smtp.NewServer(backend)
	server.Addr = addr
	server.Domain = defaultDomain
	server.AllowInsecureAuth = true
	server.ReadTimeout = 15 * time.Second
	server.WriteTimeout = 15 * time.Second
	server.MaxRecipients = maxRecipients
	server.MaxMessageBytes = maxMessageSize

	return &Server{smtp: server, logger: logger}
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("smtp server listening", "addr", s.smtp.Addr)
	return s.smtp.ListenAndServe()
}

// Serve accepts connections on l until the server is closed.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("smtp server listening", "addr", l.Addr().String())
	return s.smtp.Serve(l)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.smtp.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.smtp.Close()
}

type backend struct {
	ingestor Ingestor
	logger   *slog.Logger
	auth     AuthConfig
}

func (b *backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	remote := ""
	if conn := c.Conn(); conn != nil {
		remote = conn.RemoteAddr().String()
	}
	return &session{backend: b, remote: remote}, nil
}

type session struct {
	backend       *backend
	remote        string
	from          string
	to            []string
	authenticated bool
}

func (s *session) AuthMechanisms() []string {
	if s.backend.auth.Enabled {
		return []string{sasl.Plain}
	}
	return nil
}

func (s *session) Auth(mech string) (sasl.Server, error) {
	if !s.backend.auth.Enabled {
		return nil, errors.New("authentication not enabled")
	}
	if mech != sasl.Plain {
		return nil, errors.New("unsupported authentication mechanism")
	}
	return sasl.NewPlainServer(func(_, username, password string) error {
		if username == s.backend.auth.Username && password == s.backend.auth.Password {
			s.authenticated = true
			return nil
		}
		return errors.New("invalid credentials")
	}), nil
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	if s.backend.auth.Enabled && !s.authenticated {
		return smtp.ErrAuthRequired
	}
	s.from = normalizeEmail(from)
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	if s.backend.auth.Enabled && !s.authenticated {
		return smtp.ErrAuthRequired
	}
	if addr := normalizeEmail(to); addr != "" {
		s.to = append(s.to, addr)
	}
	return nil
}

func (s *session) Data(r io.Reader) error {
	parsed, err := parseMessage(s.from, r)
	if err != nil {
		// Keep whatever was recovered; a broken MIME body still has an envelope.
		s.backend.logger.Warn("parse smtp message", "remote", s.remote, "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	// SMTP DATA has a single reply for all recipients. Once one copy is
	// stored a temporary failure would make the client resend every copy,
	// so failures are only reported when nothing was stored.
	stored := 0
	for _, recipient := range s.to {
		in := parsed.input(recipient)
		created, err := s.backend.ingestor.CreateEmail(ctx, in)
		if err != nil {
			s.backend.logger.Error("store smtp message", "recipient", recipient, "error", err)
			continue
		}
		stored++
		s.backend.logger.Info("smtp message received", "id", created.ID, "from", in.Sender, "to", recipient)
	}
	if stored == 0 && len(s.to) > 0 {
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Unable to store message",
		}
	}
	if stored < len(s.to) {
		s.backend.logger.Warn("smtp message partially stored", "stored", stored, "recipients", len(s.to))
	}
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}
