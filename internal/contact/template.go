package contact

import (
	"bytes"
	"html/template"
	"strings"
)

var enquiryTemplate = template.Must(template.New("enquiry").Parse(`<!DOCTYPE html>
<html lang="es">
  <head>
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8" />
    <title>Consulta Altessa</title>
  </head>
  <body style="margin:0;background-color:#050505;color:#f6f3e5;font-family:'Helvetica Neue',Arial,sans-serif;">
    <table width="100%" border="0" cellspacing="0" cellpadding="0" role="presentation">
      <tr>
        <td align="center" style="padding:32px 16px;">
          <table width="100%" role="presentation" style="max-width:720px;background-color:#0c0c0c;border-radius:28px;border:1px solid rgba(213,170,59,0.3);">
            <tr>
              <td style="padding:40px 40px 24px 40px;text-align:center;">
                {{- if .LogoCID}}
                <img src="cid:{{.LogoCID}}" alt="Altessa" width="180" style="display:block;margin:0 auto 28px auto;" />
                {{- else}}
                <div style="font-size:32px;font-weight:700;color:#f6f3e5;margin-bottom:28px;">Altessa</div>
                {{- end}}
                <h1 style="margin:0;font-size:28px;font-weight:600;">Nueva consulta para el equipo Altessa</h1>
              </td>
            </tr>
            <tr>
              <td style="padding:0 40px 32px 40px;">
                <p style="margin:0;font-size:12px;text-transform:uppercase;color:#d5aa3b;">Nombre</p>
                <p style="margin:8px 0 20px 0;font-size:18px;">{{.Name}}</p>
                <p style="margin:0;font-size:12px;text-transform:uppercase;color:#d5aa3b;">Correo</p>
                <p style="margin:8px 0 20px 0;font-size:18px;">{{.Email}}</p>
                <p style="margin:0;font-size:12px;text-transform:uppercase;color:#d5aa3b;">Telefono</p>
                <p style="margin:8px 0 20px 0;font-size:16px;">{{.Phone}}</p>
                <p style="margin:0;font-size:12px;text-transform:uppercase;color:#d5aa3b;">Asunto</p>
                <p style="margin:8px 0 20px 0;font-size:16px;">{{.Subject}}</p>
                <p style="margin:0 0 12px 0;font-size:12px;text-transform:uppercase;color:#d5aa3b;">Mensaje</p>
                <div style="font-size:16px;line-height:1.7;">{{.Message}}</div>
                <p style="margin:28px 0 0 0;font-size:15px;line-height:1.6;">
                  Responde directamente a <a href="mailto:{{.Email}}" style="color:#f6f3e5;font-weight:600;">{{.Email}}</a>.
                </p>
              </td>
            </tr>
            <tr>
              <td style="padding:0 40px 40px 40px;text-align:center;font-size:11px;color:rgba(246,243,229,0.45);text-transform:uppercase;">
                Altessa - Guardianes del tiempo
              </td>
            </tr>
          </table>
        </td>
      </tr>
    </table>
  </body>
</html>`))

type enquiryView struct {
	Name    string
	Email   string
	Phone   string
	Subject string
	Message template.HTML
	LogoCID string
}

// messageHTML escapes the message and turns line breaks into <br />.
func messageHTML(message string) template.HTML {
	escaped := template.HTMLEscapeString(message)
	escaped = strings.ReplaceAll(escaped, "\r\n", "\n")
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br />"))
}

// BuildHTML renders the enquiry email body. All user input is escaped.
func BuildHTML(req Request, logoCID string) (string, error) {
	view := enquiryView{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Subject: req.Subject,
		Message: messageHTML(req.Message),
		LogoCID: logoCID,
	}
	if view.Phone == "" {
		view.Phone = DefaultPhone
	}
	if view.Subject == "" {
		view.Subject = DefaultSubject
	}

	var buf bytes.Buffer
	if err := enquiryTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
