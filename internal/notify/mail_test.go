package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	mail "github.com/wneessen/go-mail"
)

// fakeSender captures messages instead of talking to an SMTP server.
type fakeSender struct {
	sent     []*mail.Msg
	err      error
	closed   int
	closeErr error
}

func (f *fakeSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, messages...)
	return nil
}

func (f *fakeSender) Close() error {
	f.closed++
	return f.closeErr
}

func newTestMailer(t *testing.T, sender *fakeSender) *Mailer {
	t.Helper()

	tmpl, err := NewTemplates("", "")
	if err != nil {
		t.Fatalf("NewTemplates() error = %v", err)
	}

	return &Mailer{
		cfg: MailConfig{
			Host:        "smtp.example.com",
			Port:        587,
			From:        "watchdog@example.com",
			To:          []string{"ops@example.com", "oncall@example.com"},
			MaxRestarts: 3,
		},
		templates: tmpl,
		sender:    sender,
		hostname:  "web-01",
		now:       func() time.Time { return testTime },
	}
}

func TestNewMailer(t *testing.T) {
	tmpl, _ := NewTemplates("", "")

	m, err := NewMailer(MailConfig{
		Host:      "smtp.example.com",
		Port:      587,
		From:      "watchdog@example.com",
		Password:  "secret",
		To:        []string{"ops@example.com"},
		TLSPolicy: "mandatory",
	}, tmpl)
	if err != nil {
		t.Fatalf("NewMailer() error = %v", err)
	}

	if m.cfg.Username != "watchdog@example.com" {
		t.Errorf("Username = %q, want sender address", m.cfg.Username)
	}
	if m.cfg.Timeout != defaultMailTimeout {
		t.Errorf("Timeout = %v, want %v", m.cfg.Timeout, defaultMailTimeout)
	}
	if m.Name() != "email" {
		t.Errorf("Name() = %q, want %q", m.Name(), "email")
	}
}

func TestNewMailer_MissingHost(t *testing.T) {
	tmpl, _ := NewTemplates("", "")

	if _, err := NewMailer(MailConfig{Port: 587, From: "watchdog@example.com"}, tmpl); err == nil {
		t.Error("NewMailer() without host error = nil, want error")
	}
}

func TestTLSPolicy(t *testing.T) {
	tests := map[string]mail.TLSPolicy{
		"opportunistic": mail.TLSOpportunistic,
		"mandatory":     mail.TLSMandatory,
		"none":          mail.NoTLS,
		"":              mail.TLSOpportunistic,
	}
	for in, want := range tests {
		if got := tlsPolicy(in); got != want {
			t.Errorf("tlsPolicy(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMailer_Notify(t *testing.T) {
	sender := &fakeSender{}
	m := newTestMailer(t, sender)

	receipt, err := m.Notify(context.Background(), []Record{{Name: "api", Restarts: 5}})
	if err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]

	subject := msg.GetGenHeader(mail.HeaderSubject)
	if len(subject) != 1 || subject[0] != "Service api has restarted too many times!" {
		t.Errorf("Subject = %v", subject)
	}

	recipients, err := msg.GetRecipients()
	if err != nil {
		t.Fatalf("GetRecipients() error = %v", err)
	}
	if len(recipients) != 2 {
		t.Errorf("recipients = %v, want 2", recipients)
	}

	ids := msg.GetGenHeader(mail.HeaderMessageID)
	if len(ids) != 1 || !strings.HasSuffix(ids[0], "@example.com>") {
		t.Errorf("Message-ID = %v, want <...@example.com>", ids)
	}
	if receipt.Channel != "email" {
		t.Errorf("Receipt.Channel = %q, want %q", receipt.Channel, "email")
	}
	if !strings.Contains(receipt.Confirmation, ids[0]) {
		t.Errorf("Receipt.Confirmation = %q, want it to contain %s", receipt.Confirmation, ids[0])
	}

	var raw bytes.Buffer
	if _, err := msg.WriteTo(&raw); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	if !strings.Contains(raw.String(), "The service api has restarted 5 times!") {
		t.Errorf("message body missing process line:\n%s", raw.String())
	}
}

func TestMailer_NotifySendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("550 mailbox unavailable")}
	m := newTestMailer(t, sender)

	_, err := m.Notify(context.Background(), []Record{{Name: "api", Restarts: 5}})
	if !errors.Is(err, ErrSendFailed) {
		t.Fatalf("Notify() error = %v, want %v", err, ErrSendFailed)
	}
	if !strings.Contains(err.Error(), "550 mailbox unavailable") {
		t.Errorf("Notify() error = %q, want server response in message", err.Error())
	}
}

func TestMailer_NotifyEmptyBatch(t *testing.T) {
	sender := &fakeSender{}
	m := newTestMailer(t, sender)

	if _, err := m.Notify(context.Background(), nil); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("Notify(nil) error = %v, want %v", err, ErrEmptyBatch)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d messages for empty batch, want 0", len(sender.sent))
	}
}

func TestMailer_Release(t *testing.T) {
	sender := &fakeSender{}
	m := newTestMailer(t, sender)

	if err := m.Release(context.Background()); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := m.Release(context.Background()); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}
	if sender.closed != 1 {
		t.Errorf("sender closed %d times, want 1", sender.closed)
	}

	if _, err := m.Notify(context.Background(), []Record{{Name: "api", Restarts: 5}}); !errors.Is(err, ErrClosed) {
		t.Errorf("Notify() after Release error = %v, want %v", err, ErrClosed)
	}
}

func TestSenderDomain(t *testing.T) {
	tests := []struct {
		addr, want string
	}{
		{"watchdog@example.com", "example.com"},
		{"Watchdog <watchdog@example.org>", "example.org"},
		{"no-domain", "fallback"},
		{"trailing@", "fallback"},
	}
	for _, tt := range tests {
		if got := senderDomain(tt.addr, "fallback"); got != tt.want {
			t.Errorf("senderDomain(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
