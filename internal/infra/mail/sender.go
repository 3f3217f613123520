package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"

	"github.com/xavierca1/lead-dispatch/internal/entity"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

var deadLetterTemplate = template.Must(template.New("dead_letter").Parse(`
<p>Um lead não pôde ser entregue e foi movido para a dead-letter.</p>
<ul>
  <li><b>ID:</b> {{.ID}}</li>
  <li><b>Lead:</b> {{.LeadName}}{{if .PropertyCode}} (imóvel {{.PropertyCode}}){{end}}</li>
  <li><b>Destino:</b> {{.Sink}}</li>
  <li><b>Motivo:</b> {{.Reason}}</li>
  <li><b>Tentativas:</b> {{.Attempts}}/{{.MaxAttempts}}</li>
  <li><b>Último erro:</b> {{.Error}}</li>
  <li><b>Recebido em:</b> {{.CreatedAt.Format "02/01/2006 15:04"}}</li>
</ul>
<p>Consulte GET /admin/queue?details=true para reprocessar ou remover.</p>
`))

func NewAlertSender(host string, port int, user, password, from, to string) *AlertSender {
	return &AlertSender{
		From:   from,
		To:     to,
		dialer: gomail.NewDialer(host, port, user, password),
	}
}

// NotifyDeadLetter e-mails the operators about a lead that left the retry queue
// undelivered. gomail has no context support; ctx is only checked up front.
func (s *AlertSender) NotifyDeadLetter(ctx context.Context, entry entity.QueuedLead) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data := DeadLetterEmailData{
		ID:           entry.ID,
		LeadName:     entry.Lead.Name,
		PropertyCode: entry.Lead.PropertyCode,
		Sink:         entry.TargetSinkID,
		Reason:       entry.DeadReason,
		Attempts:     entry.Attempts,
		MaxAttempts:  entry.MaxAttempts,
		Error:        entry.Error,
		CreatedAt:    entry.CreatedAt,
	}

	var body bytes.Buffer
	if err := deadLetterTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("erro ao processar template: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", s.To)
	m.SetHeader("Subject", fmt.Sprintf("[leads] Entrega falhou para %s (%s)", entry.Lead.Name, entry.TargetSinkID))
	m.SetBody("text/html", body.String())

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("erro ao enviar email SMTP: %w", err)
	}
	return nil
}
