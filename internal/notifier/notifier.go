// Package notifier mails session reports.
package notifier

import (
	"fmt"

	"github.com/ibeckermayer/clap4me/internal/config"
	"github.com/ibeckermayer/clap4me/internal/notifier/providers"
	"github.com/ibeckermayer/clap4me/internal/report"
)

// Sender defines the interface for email sending
type Sender interface {
	Send(to, subject, htmlBody, plainBody string) error
}

// Notifier delivers rendered reports to one recipient.
type Notifier struct {
	sender Sender
	to     string
}

// New creates a notifier that sends to the given address.
func New(sender Sender, to string) *Notifier {
	return &Notifier{sender: sender, to: to}
}

// NewFromConfig creates a notifier based on configuration
func NewFromConfig(cfg config.EmailConfig) (*Notifier, error) {
	var sender Sender

	switch cfg.Provider {
	case "smtp", "":
		sender = providers.NewSMTPSender(
			cfg.SMTPHost,
			cfg.SMTPPort,
			cfg.SMTPUser,
			cfg.SMTPPass,
			cfg.FromAddr,
		)
	default:
		return nil, fmt.Errorf("unknown email provider: %s", cfg.Provider)
	}

	return New(sender, cfg.ToAddr), nil
}

// SendReport mails a session report.
func (n *Notifier) SendReport(r *report.Report) error {
	if r == nil {
		return fmt.Errorf("no report to send")
	}
	return n.sender.Send(n.to, r.Subject, r.HTMLBody, r.PlainBody)
}
