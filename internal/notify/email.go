package notify

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"onfa-ticketing/internal/config"
	"onfa-ticketing/internal/logger"
	"onfa-ticketing/internal/models"
	qr "onfa-ticketing/internal/tickets/qr_generator"
	"onfa-ticketing/internal/tickets/template"
)

// MailTransport is the part of *mail.Client used for delivery.
type MailTransport interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// EmailSender delivers the paid-ticket email with the QR code attached and,
// when a font is configured, a PDF ticket.
type EmailSender struct {
	cfg       config.EmailConfig
	transport MailTransport
	qr        *qr.QRGenerator
	pdf       *template.TicketPDFGenerator
	logger    *logger.Logger
}

func NewEmailSender(cfg config.EmailConfig, codes *qr.QRGenerator, log *logger.Logger) (*EmailSender, error) {
	sender := &EmailSender{
		cfg:    cfg,
		qr:     codes,
		pdf:    template.NewTicketPDFGenerator(cfg.PDFFontPath, cfg.EventName),
		logger: log,
	}
	if !cfg.Configured() {
		log.Warn("EMAIL", "SMTP credentials not set, ticket emails are disabled")
		return sender, nil
	}

	client, err := mail.NewClient(cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUsername),
		mail.WithPassword(cfg.SMTPPassword),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(cfg.Timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	sender.transport = client
	return sender, nil
}

// NewEmailSenderWithTransport is used when delivery goes somewhere other
// than a real SMTP server.
func NewEmailSenderWithTransport(cfg config.EmailConfig, transport MailTransport, codes *qr.QRGenerator, log *logger.Logger) *EmailSender {
	return &EmailSender{
		cfg:       cfg,
		transport: transport,
		qr:        codes,
		pdf:       template.NewTicketPDFGenerator(cfg.PDFFontPath, cfg.EventName),
		logger:    log,
	}
}

func (e *EmailSender) Configured() bool {
	return e.transport != nil
}

func (e *EmailSender) BuildMessage(ticket models.Ticket) (*mail.Msg, error) {
	body, err := template.RenderTicketEmail(e.cfg.EventName, ticket)
	if err != nil {
		return nil, err
	}
	code, err := e.qr.PNG(ticket.ID)
	if err != nil {
		return nil, fmt.Errorf("qr for %s: %w", ticket.ID, err)
	}

	m := mail.NewMsg()
	if err := m.FromFormat(e.cfg.FromName, e.cfg.FromAddress); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.To(ticket.Email); err != nil {
		return nil, fmt.Errorf("recipient %q: %w", ticket.Email, err)
	}
	m.Subject(template.EmailSubject(e.cfg.EventName))
	m.SetBodyString(mail.TypeTextHTML, body)
	if err := m.AttachReader(template.QRFilename(ticket.ID), bytes.NewReader(code)); err != nil {
		return nil, fmt.Errorf("attach qr: %w", err)
	}

	if e.pdf.Enabled() {
		doc, err := e.pdf.Generate(ticket, code)
		if err != nil {
			// the email is still useful without the PDF
			e.logger.Warn("EMAIL", fmt.Sprintf("PDF ticket for %s not generated: %v", ticket.ID, err))
		} else if err := m.AttachReader(template.PDFFilename(ticket.ID), bytes.NewReader(doc)); err != nil {
			return nil, fmt.Errorf("attach pdf: %w", err)
		}
	}
	return m, nil
}

func (e *EmailSender) SendTicket(ctx context.Context, ticket models.Ticket) error {
	if !e.Configured() {
		return ErrSkipped
	}
	m, err := e.BuildMessage(ticket)
	if err != nil {
		return err
	}
	if err := e.transport.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send ticket email to %s: %w", ticket.Email, err)
	}
	return nil
}
