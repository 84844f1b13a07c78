package mailer

import (
	"strings"

	"gopkg.in/gomail.v2"
)

type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
}

func (m *Mailer) Send(to, subject, body string, mergeFields map[string]string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("To", to)
	msg.SetHeader("From", m.Username)
	msg.SetHeader("Subject", subject)

	msg.SetBody("text/plain", applyMergeFields(body, mergeFields))

	dialer := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	return dialer.DialAndSend(msg)
}

// applyMergeFields substitutes {{key}} placeholders in the body.
func applyMergeFields(body string, mergeFields map[string]string) string {
	for key, value := range mergeFields {
		body = strings.ReplaceAll(body, "{{"+key+"}}", value)
	}

	return body
}
