package contact

import (
	"net/url"
	"strings"
	"unicode"
)

// WhatsAppLink builds a wa.me link. Non-digits are stripped from phone and
// message, when present, is sent as the prefilled text.
func WhatsAppLink(phone, message string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)

	link := "https://wa.me/" + digits
	if message == "" {
		return link
	}
	return link + "?text=" + strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
}

func instagramUser(username string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

// InstagramProfileLink returns the public profile URL for username.
func InstagramProfileLink(username string) string {
	return "https://www.instagram.com/" + instagramUser(username) + "/"
}

// InstagramDMLink returns the direct message URL for username.
func InstagramDMLink(username string) string {
	return "https://ig.me/m/" + instagramUser(username)
}

// Links builds every social link.
func Links(phone, message, instagram string) SocialLinks {
	links := SocialLinks{
		WhatsApp:         WhatsAppLink(phone, ""),
		InstagramProfile: InstagramProfileLink(instagram),
		InstagramDM:      InstagramDMLink(instagram),
	}
	if message != "" {
		links.WhatsAppMessage = WhatsAppLink(phone, message)
	}
	return links
}
