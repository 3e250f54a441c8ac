// Package mailer delivers outbound email over SMTP.
package mailer

import (
	"context"
	"strings"
	"time"

	"gopkg.in/gomail.v2"
)

// Message is an outbound email.
type Message struct {
	To       []string
	CC       []string
	BCC      []string
	Subject  string
	TextBody string
	HTMLBody string
	Headers  map[string]string
}

// SMTPSender sends messages through an SMTP relay.
type SMTPSender struct {
	cfg  Config
	dial func(*gomail.Message) error
}

// NewSMTPSender creates a sender for cfg.
func NewSMTPSender(cfg Config) *SMTPSender {
	s := &SMTPSender{cfg: cfg}
	s.dial = func(m *gomail.Message) error {
		return s.newDialer().DialAndSend(m)
	}
	return s
}

// Enabled reports whether delivery is switched on.
func (s *SMTPSender) Enabled() bool {
	return s != nil && s.cfg.Enabled
}

// Send delivers m. It gives up when ctx is done or the configured timeout
// elapses, whichever comes first.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	if !s.cfg.Enabled {
		return ErrDisabled{}
	}

	msg, err := buildMessage(s.cfg, m)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- s.dial(msg)
	}()

	wait := s.cfg.timeout()
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < wait {
			wait = d
		}
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return ErrSend{Provider: "gomail/smtp", Err: err}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return context.DeadlineExceeded
	}
}

func (s *SMTPSender) newDialer() *gomail.Dialer {
	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.SSL = s.cfg.SSL
	return d
}

func buildMessage(cfg Config, m Message) (*gomail.Message, error) {
	msg := gomail.NewMessage()

	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return nil, ErrInvalidMessage{Reason: "from is required"}
	}
	if cfg.FromName != "" {
		msg.SetAddressHeader("From", from, cfg.FromName)
	} else {
		msg.SetHeader("From", from)
	}
	if cfg.ReplyTo != "" {
		msg.SetHeader("Reply-To", cfg.ReplyTo)
	}

	to := cleanAddrs(m.To)
	if len(to) == 0 {
		return nil, ErrInvalidMessage{Reason: "at least one recipient is required"}
	}
	msg.SetHeader("To", to...)
	if cc := cleanAddrs(m.CC); len(cc) > 0 {
		msg.SetHeader("Cc", cc...)
	}
	if bcc := cleanAddrs(m.BCC); len(bcc) > 0 {
		msg.SetHeader("Bcc", bcc...)
	}

	subj := strings.TrimSpace(m.Subject)
	if subj == "" {
		return nil, ErrInvalidMessage{Reason: "subject is required"}
	}
	msg.SetHeader("Subject", subj)

	for k, v := range m.Headers {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		msg.SetHeader(k, v)
	}

	hasText := strings.TrimSpace(m.TextBody) != ""
	hasHTML := strings.TrimSpace(m.HTMLBody) != ""

	switch {
	case hasText && hasHTML:
		msg.SetBody("text/plain", m.TextBody)
		msg.AddAlternative("text/html", m.HTMLBody)
	case hasHTML:
		msg.SetBody("text/html", m.HTMLBody)
	case hasText:
		msg.SetBody("text/plain", m.TextBody)
	default:
		return nil, ErrInvalidMessage{Reason: "either TextBody or HTMLBody is required"}
	}

	return msg, nil
}

func cleanAddrs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
