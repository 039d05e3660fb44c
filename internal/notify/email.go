package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"profmon/internal/models"
	"profmon/internal/structures"
)

const defaultEmailTimeout = 30 * time.Second

type sendMailFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailSink struct {
	conf     structures.EmailSinkConfig
	sendMail sendMailFunc
}

func NewEmailSink(conf structures.EmailSinkConfig) *EmailSink {
	if conf.Timeout <= 0 {
		conf.Timeout = defaultEmailTimeout
	}
	e := &EmailSink{conf: conf}
	e.sendMail = e.deliver
	return e
}

func (e *EmailSink) Name() string { return "email" }

func (e *EmailSink) Send(ctx context.Context, ev models.ChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if e.conf.Username != "" {
		auth = smtp.PlainAuth("", e.conf.Username, e.conf.Password, e.conf.Host)
	}
	addr := net.JoinHostPort(e.conf.Host, strconv.Itoa(e.conf.Port))
	if err := e.sendMail(ctx, addr, auth, e.conf.From, e.conf.To, e.message(ev)); err != nil {
		return fmt.Errorf("smtp %s: %w", addr, err)
	}
	return nil
}

// deliver runs one SMTP session. The whole session, dial included, ends at
// the configured timeout or the context deadline, whichever comes first.
func (e *EmailSink) deliver(ctx context.Context, addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	deadline := time.Now().Add(e.conf.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if err = conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, e.conf.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err = c.StartTLS(&tls.Config{ServerName: e.conf.Host}); err != nil {
			return err
		}
	}
	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err = c.Auth(auth); err != nil {
				return err
			}
		}
	}
	if err = c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err = c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (e *EmailSink) message(ev models.ChangeEvent) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.conf.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.conf.To, ", "))
	fmt.Fprintf(&b, "Subject: [profmon] %s: %s\r\n", ev.Target, ev.Kind)
	fmt.Fprintf(&b, "Date: %s\r\n", ev.At.Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@profmon>\r\n", ev.ID)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(Render(ev))
	b.WriteString("\r\n")
	return []byte(b.String())
}
