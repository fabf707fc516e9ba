package notify

import (
	"context"
	"log"
)

// Channel is the outbound medium a Sender delivers over.
type Channel string

const (
	ChannelEmail    Channel = "EMAIL"
	ChannelSMS      Channel = "SMS"
	ChannelWhatsApp Channel = "WHATSAPP"
)

// Outbound is what a Sender actually transmits: the rendered form of a
// domain.Notification, decoupled from the persisted row so a Sender never
// needs repository access.
type Outbound struct {
	Recipient string
	Subject   string
	Body      string
}

// Sender delivers one rendered notification over a single channel.
// Implementations own provider credentials and transport; the dispatcher
// owns persistence and retries.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, out Outbound) error
}

// EmailSender is a shadow-mode stub: it logs instead of calling a real
// provider. Swap in a provider-backed implementation at wiring time.
type EmailSender struct{}

func NewEmailSender() *EmailSender { return &EmailSender{} }

func (s *EmailSender) Channel() Channel { return ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, out Outbound) error {
	log.Printf("[NOTIFY:EMAIL] to=%s subject=%q", out.Recipient, out.Subject)
	return nil
}

// SMSSender is the SMS-channel stub.
type SMSSender struct{}

func NewSMSSender() *SMSSender { return &SMSSender{} }

func (s *SMSSender) Channel() Channel { return ChannelSMS }

func (s *SMSSender) Send(ctx context.Context, out Outbound) error {
	log.Printf("[NOTIFY:SMS] to=%s", out.Recipient)
	return nil
}

// WhatsAppSender is the WhatsApp-channel stub.
type WhatsAppSender struct{}

func NewWhatsAppSender() *WhatsAppSender { return &WhatsAppSender{} }

func (s *WhatsAppSender) Channel() Channel { return ChannelWhatsApp }

func (s *WhatsAppSender) Send(ctx context.Context, out Outbound) error {
	log.Printf("[NOTIFY:WHATSAPP] to=%s", out.Recipient)
	return nil
}
