package notify

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	mail "github.com/wneessen/go-mail"
)

// defaultMailTimeout bounds dialing and sending when MailConfig.Timeout is zero.
const defaultMailTimeout = 15 * time.Second

// MailConfig configures a Mailer.
type MailConfig struct {
	Host string
	Port int

	// Username and Password authenticate against the SMTP server. Username
	// defaults to From. Authentication is skipped when Password is empty.
	Username string
	Password string

	From string
	To   []string

	// TLSPolicy is "opportunistic", "mandatory" or "none".
	TLSPolicy string
	Timeout   time.Duration

	// MaxRestarts is the configured threshold, quoted in the message body.
	MaxRestarts int
}

// mailSender is the part of *mail.Client the Mailer uses.
type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
	Close() error
}

// Mailer sends alerts by e-mail.
//
// Thread Safety:
//   - Notify may be called concurrently; Release waits for in-flight sends.
type Mailer struct {
	cfg       MailConfig
	templates *Templates
	sender    mailSender
	hostname  string
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewMailer creates a Mailer for cfg using templates to render messages.
//
// No connection is made until the first alert; each alert dials, sends and
// disconnects.
//
// Returns:
//   - *Mailer: Mailer ready for use
//   - error: If the SMTP client options are invalid
func NewMailer(cfg MailConfig, templates *Templates) (*Mailer, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultMailTimeout
	}
	if cfg.Username == "" {
		cfg.Username = cfg.From
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	if cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating smtp client: %w", err)
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &Mailer{
		cfg:       cfg,
		templates: templates,
		sender:    client,
		hostname:  hostname,
		now:       time.Now,
	}, nil
}

// tlsPolicy maps the configuration value to a go-mail TLS policy.
func tlsPolicy(policy string) mail.TLSPolicy {
	switch policy {
	case "mandatory":
		return mail.TLSMandatory
	case "none":
		return mail.NoTLS
	default:
		return mail.TLSOpportunistic
	}
}

// Name implements Notifier.
func (m *Mailer) Name() string {
	return "email"
}

// Notify renders one message for batch and sends it to every recipient.
//
// Returns:
//   - Receipt: The Message-ID assigned to the sent mail
//   - error: ErrClosed after Release, ErrRender or ErrSendFailed otherwise
func (m *Mailer) Notify(ctx context.Context, batch []Record) (Receipt, error) {
	if len(batch) == 0 {
		return Receipt{}, ErrEmptyBatch
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Receipt{}, ErrClosed
	}

	msg, messageID, err := m.buildMessage(batch)
	if err != nil {
		return Receipt{}, err
	}

	if err := m.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	return Receipt{
		Channel:      m.Name(),
		Confirmation: fmt.Sprintf("message-id <%s> accepted by %s:%d", messageID, m.cfg.Host, m.cfg.Port),
	}, nil
}

// buildMessage renders the templates and assembles the MIME message.
func (m *Mailer) buildMessage(batch []Record) (*mail.Msg, string, error) {
	subject, body, err := m.templates.Render(Message{
		Processes:   batch,
		MaxRestarts: m.cfg.MaxRestarts,
		Hostname:    m.hostname,
		Time:        m.now(),
	})
	if err != nil {
		return nil, "", err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return nil, "", fmt.Errorf("%w: invalid sender %q: %w", ErrSendFailed, m.cfg.From, err)
	}
	if err := msg.To(m.cfg.To...); err != nil {
		return nil, "", fmt.Errorf("%w: invalid recipients: %w", ErrSendFailed, err)
	}

	messageID := fmt.Sprintf("%s@%s", uuid.NewString(), senderDomain(m.cfg.From, m.hostname))
	msg.SetMessageIDWithValue(messageID)
	msg.SetDate()
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	return msg, messageID, nil
}

// senderDomain returns the domain part of addr, or fallback if it has none.
func senderDomain(addr, fallback string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 && i < len(addr)-1 {
		return strings.TrimRight(addr[i+1:], ">")
	}
	return fallback
}

// Release implements shutdown.Releaser. It waits for an in-flight send,
// then refuses further alerts.
func (m *Mailer) Release(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if err := m.sender.Close(); err != nil {
		return fmt.Errorf("closing smtp client: %w", err)
	}
	return nil
}
