// Package contact sends storefront enquiries to the shop owner and exposes
// the social links shown on the site.
package contact

import "errors"

var (
	ErrMissingFields   = errors.New("name, email and message are required")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrMessageTooLong  = errors.New("message too long")
	ErrMailNotReady    = errors.New("mail service not configured")
	ErrAdminNotSet     = errors.New("admin email not configured")
	ErrDeliveryFailure = errors.New("mail delivery failed")
)

const (
	MaxMessageLength = 2000
	MaxSubjectLength = 120
	MaxNameInSubject = 60

	DefaultSubjectName = "cliente Altessa"
	DefaultSubject     = "Consulta desde el sitio web"
	DefaultPhone       = "No proporcionado"

	LogoContentID = "altessa-logo"
)

// Request is the contact form payload.
type Request struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Attachment is an inline or regular email attachment. Content is base64.
type Attachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type,omitempty"`
	Disposition string `json:"disposition,omitempty"`
	ContentID   string `json:"content_id,omitempty"`
}

// Email is a provider-neutral outgoing message.
type Email struct {
	From        string       `json:"from"`
	To          []string     `json:"to"`
	ReplyTo     string       `json:"reply_to,omitempty"`
	Subject     string       `json:"subject"`
	HTML        string       `json:"html"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SocialLinks are the contact shortcuts rendered by the storefront.
type SocialLinks struct {
	WhatsApp         string `json:"whatsapp"`
	WhatsAppMessage  string `json:"whatsapp_with_message,omitempty"`
	InstagramProfile string `json:"instagram_profile"`
	InstagramDM      string `json:"instagram_dm"`
}
