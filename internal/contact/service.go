package contact

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	newlines     = regexp.MustCompile(`[\r\n]+`)
)

// Options configure the contact service.
type Options struct {
	From     string
	To       string
	LogoPath string
}

// Service validates enquiries and hands them to a Mailer.
type Service struct {
	mailer Mailer
	log    *zap.Logger
	opts   Options

	logoOnce sync.Once
	logo     *Attachment
}

func NewService(mailer Mailer, log *zap.Logger, opts Options) *Service {
	opts.To = strings.TrimSpace(opts.To)
	return &Service{mailer: mailer, log: log, opts: opts}
}

// Normalize trims every field of req.
func Normalize(req Request) Request {
	return Request{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
	}
}

// Validate checks a normalized request.
func Validate(req Request) error {
	if req.Name == "" || req.Email == "" || req.Message == "" {
		return ErrMissingFields
	}
	if !emailPattern.MatchString(req.Email) {
		return ErrInvalidEmail
	}
	if utf8.RuneCountInString(req.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Subject builds the email subject line. Line breaks never reach the header.
func Subject(req Request) string {
	subject := truncate(newlines.ReplaceAllString(req.Subject, " "), MaxSubjectLength)
	if subject != "" {
		return "Consulta - " + subject
	}
	name := truncate(newlines.ReplaceAllString(req.Name, " "), MaxNameInSubject)
	if name == "" {
		name = DefaultSubjectName
	}
	return "Nueva consulta de " + name
}

// Compose builds the outgoing email for a valid request.
func (s *Service) Compose(req Request) (Email, error) {
	attachment := s.loadLogo()
	cid := ""
	if attachment != nil {
		cid = LogoContentID
	}

	view := req
	view.Subject = truncate(newlines.ReplaceAllString(req.Subject, " "), MaxSubjectLength)
	html, err := BuildHTML(view, cid)
	if err != nil {
		return Email{}, err
	}

	email := Email{
		From:    s.opts.From,
		To:      []string{s.opts.To},
		ReplyTo: req.Email,
		Subject: Subject(req),
		HTML:    html,
	}
	if attachment != nil {
		email.Attachments = []Attachment{*attachment}
	}
	return email, nil
}

// Submit validates req and sends it to the shop owner.
func (s *Service) Submit(ctx context.Context, req Request) error {
	req = Normalize(req)
	if err := Validate(req); err != nil {
		return err
	}
	if s.opts.To == "" {
		return ErrAdminNotSet
	}
	if s.mailer == nil {
		return ErrMailNotReady
	}

	email, err := s.Compose(req)
	if err != nil {
		return err
	}

	if err := s.mailer.Send(ctx, email); err != nil {
		s.log.Error("failed to send contact email", zap.Error(err))
		return err
	}

	s.log.Info("contact email sent", zap.String("reply_to", req.Email))
	return nil
}

// loadLogo reads the inline logo once. A missing file disables it for the
// life of the process.
func (s *Service) loadLogo() *Attachment {
	s.logoOnce.Do(func() {
		if s.opts.LogoPath == "" {
			return
		}
		data, err := os.ReadFile(s.opts.LogoPath)
		if err != nil {
			s.log.Warn("contact logo unavailable", zap.String("path", s.opts.LogoPath), zap.Error(err))
			return
		}
		s.logo = &Attachment{
			Filename:    filepath.Base(s.opts.LogoPath),
			Content:     base64.StdEncoding.EncodeToString(data),
			ContentType: logoContentType(s.opts.LogoPath, data),
			Disposition: "inline",
			ContentID:   LogoContentID,
		}
	})
	return s.logo
}

func logoContentType(path string, data []byte) string {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return "image/svg+xml"
	}
	return mimetype.Detect(data).String()
}

// Handler-facing messages, in the storefront language.
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingFields):
		return "Nombre, correo y mensaje son obligatorios."
	case errors.Is(err, ErrInvalidEmail):
		return "Ingresa un correo electronico valido."
	case errors.Is(err, ErrMessageTooLong):
		return "El mensaje es demasiado largo (maximo 2000 caracteres)."
	case errors.Is(err, ErrAdminNotSet):
		return "ADMIN_EMAIL no esta configurado en el servidor."
	case errors.Is(err, ErrMailNotReady):
		return "Mail service not configured. Please set RESEND_API_KEY."
	}
	return "No se pudo enviar el mensaje. Intenta nuevamente en unos minutos."
}
