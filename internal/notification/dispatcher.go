// Package notification sends post-materialization emails. Dispatch is
// best-effort: failures are logged, never propagated, and never allowed to
// stall the HTTP response to the gateway.
package notification

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/craftlane/entrypay/internal/config"
	"github.com/craftlane/entrypay/internal/providers/email"
	registrationdomain "github.com/craftlane/entrypay/internal/registration/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type TemplateKind string

const (
	TemplateConfirmation TemplateKind = "registration_confirmation"
	TemplateReceipt      TemplateKind = "payment_receipt"
	TemplateGuidelines   TemplateKind = "competition_guidelines"
)

var templateKinds = []TemplateKind{TemplateConfirmation, TemplateReceipt, TemplateGuidelines}

// Recipient is the contact the dispatcher addresses for one registration.
type Recipient struct {
	Email string
	Name  string
}

type Params struct {
	fx.In

	Provider email.Provider
	Log      *zap.Logger
	Cfg      config.Config
}

type Dispatcher struct {
	provider email.Provider
	log      *zap.Logger
	timeout  time.Duration
}

func NewDispatcher(p Params) *Dispatcher {
	timeout := p.Cfg.NotifyTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		provider: p.Provider,
		log:      p.Log.Named("notification.dispatcher"),
		timeout:  timeout,
	}
}

// SendRegistrationEmails dispatches every template kind for one registration.
// Each send is independently time-boxed; an error in one kind does not stop
// the others.
func (d *Dispatcher) SendRegistrationEmails(reg registrationdomain.Registration, competitionName string, to Recipient) {
	if d == nil || d.provider == nil {
		return
	}
	if strings.TrimSpace(to.Email) == "" {
		d.log.Warn("registration has no recipient email",
			zap.String("registration_number", reg.RegistrationNumber))
		return
	}

	for _, kind := range templateKinds {
		subject, body, err := render(kind, reg, competitionName, to.Name)
		if err != nil {
			d.log.Error("render notification template",
				zap.String("template", string(kind)),
				zap.Error(err))
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		err = d.provider.Send(ctx, []string{to.Email}, subject, body)
		cancel()
		if err != nil {
			d.log.Warn("notification dispatch failed",
				zap.String("template", string(kind)),
				zap.String("registration_number", reg.RegistrationNumber),
				zap.Error(err))
			continue
		}
		d.log.Info("notification dispatched",
			zap.String("template", string(kind)),
			zap.String("registration_number", reg.RegistrationNumber))
	}
}

type templateData struct {
	RecipientName      string
	CompetitionName    string
	RegistrationNumber string
	DisplayCode        string
	AmountPaid         string
	Currency           string
	ConfirmedAt        string
}

var bodyTemplates = map[TemplateKind]*template.Template{
	TemplateConfirmation: template.Must(template.New("confirmation").Parse(`
<p>Hi {{.RecipientName}},</p>
<p>Your registration for <strong>{{.CompetitionName}}</strong> is confirmed.</p>
<p>Registration number: <strong>{{.RegistrationNumber}}</strong><br/>
Display code: <strong>{{.DisplayCode}}</strong></p>
<p>Keep your registration number private; the display code is what appears publicly.</p>`)),
	TemplateReceipt: template.Must(template.New("receipt").Parse(`
<p>Hi {{.RecipientName}},</p>
<p>We received your payment of <strong>{{.AmountPaid}} {{.Currency}}</strong> for {{.CompetitionName}}.</p>
<p>Reference: {{.RegistrationNumber}}<br/>Confirmed at: {{.ConfirmedAt}}</p>`)),
	TemplateGuidelines: template.Must(template.New("guidelines").Parse(`
<p>Hi {{.RecipientName}},</p>
<p>Welcome to {{.CompetitionName}}! Submission guidelines and key dates are
published on the competition page. Your public display code is
<strong>{{.DisplayCode}}</strong>.</p>`)),
}

func render(kind TemplateKind, reg registrationdomain.Registration, competitionName, recipientName string) (string, string, error) {
	tmpl, ok := bodyTemplates[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown template kind %q", kind)
	}

	name := strings.TrimSpace(recipientName)
	if name == "" {
		name = "there"
	}
	data := templateData{
		RecipientName:      name,
		CompetitionName:    competitionName,
		RegistrationNumber: reg.RegistrationNumber,
		DisplayCode:        reg.DisplayCode,
		AmountPaid:         fmt.Sprintf("%.2f", reg.AmountPaid),
		Currency:           reg.Currency,
		ConfirmedAt:        reg.ConfirmedAt.Format(time.RFC1123),
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", "", err
	}

	var subject string
	switch kind {
	case TemplateConfirmation:
		subject = fmt.Sprintf("Registration confirmed: %s", competitionName)
	case TemplateReceipt:
		subject = fmt.Sprintf("Payment receipt: %s", competitionName)
	case TemplateGuidelines:
		subject = fmt.Sprintf("Guidelines for %s", competitionName)
	}

	return subject, body.String(), nil
}
