package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"go.uber.org/zap"

	"taskboard/configs"
	"taskboard/domain"
	"taskboard/domain/entity"
	"taskboard/infrastructure/circuitbreaker"
)

// Mailer delivers reminders over SMTP, guarded by a circuit breaker keyed by mail host
type Mailer struct {
	cfg     configs.MailConfig
	from    *mail.Address
	breaker *circuitbreaker.CircuitBreaker
	logger  *zap.Logger
	now     func() time.Time
}

// NewMailer creates an SMTP deliverer. A nil breaker disables fail-fast.
func NewMailer(cfg configs.MailConfig, breaker *circuitbreaker.CircuitBreaker, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{
		cfg:     cfg,
		from:    &mail.Address{Name: cfg.FromName, Address: cfg.From},
		breaker: breaker,
		logger:  logger,
		now:     time.Now,
	}
}

// Deliver sends the reminder mail for task to owner
func (m *Mailer) Deliver(ctx context.Context, task *entity.Task, owner *entity.Owner) error {
	if owner.Email == "" {
		m.logger.Warn("Owner has no email address",
			zap.String("owner_id", owner.ID),
			zap.String("task_id", task.ID),
		)
		return fmt.Errorf("%w: owner %s has no email address", domain.ErrDeliveryFailed, owner.ID)
	}

	to := &mail.Address{Name: owner.DisplayName, Address: owner.Email}
	msg, err := composeReminder(m.from, to, task, m.now())
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}

	send := func() error { return m.send(ctx, owner.Email, msg) }
	if m.breaker != nil {
		err = m.breaker.Execute(m.cfg.Host, send)
	} else {
		err = send()
	}
	if err != nil {
		if circuitbreaker.IsPermanent(err) {
			m.logger.Warn("Reminder mail rejected by server",
				zap.String("task_id", task.ID),
				zap.String("owner_id", owner.ID),
				zap.Error(err),
			)
		}
		return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
	}

	m.logger.Info("Reminder mail sent",
		zap.String("task_id", task.ID),
		zap.String("owner_id", owner.ID),
	)
	return nil
}

// send runs one SMTP session bounded by the configured timeout
func (m *Mailer) send(ctx context.Context, rcpt string, msg []byte) error {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	dialer := &net.Dialer{}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{ServerName: m.cfg.Host}
	if m.cfg.ImplicitTLS {
		conn = tls.Client(conn, tlsConfig)
	}

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if !m.cfg.ImplicitTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return fmt.Errorf("SMTP STARTTLS: %w", err)
			}
		}
	}

	if m.cfg.Username != "" {
		auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}
	if err := client.Rcpt(rcpt); err != nil {
		return messageRejected("SMTP RCPT TO", err)
	}

	writer, err := client.Data()
	if err != nil {
		return messageRejected("SMTP DATA", err)
	}
	if _, err := writer.Write(msg); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return messageRejected("closing email body", err)
	}

	return client.Quit()
}

// messageRejected wraps err. A 5xx reply to this one message or recipient is marked
// permanent so it is not counted against the mail host's circuit.
func messageRejected(stage string, err error) error {
	wrapped := fmt.Errorf("%s: %w", stage, err)

	var reply *textproto.Error
	if errors.As(err, &reply) && reply.Code >= 500 && reply.Code < 600 {
		return circuitbreaker.Permanent(wrapped)
	}
	return wrapped
}
