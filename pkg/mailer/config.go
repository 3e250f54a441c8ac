package mailer

import "time"

// Config holds SMTP transport configuration.
type Config struct {
	Enabled  bool
	From     string
	FromName string
	ReplyTo  string

	Host     string
	Port     int
	Username string
	Password string
	// SSL enables implicit TLS (port 465). STARTTLS is negotiated
	// automatically otherwise.
	SSL     bool
	Timeout time.Duration
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return c.Timeout
}
