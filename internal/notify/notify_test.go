package notify

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/aimarket/internal/domain"
	"github.com/MrSnakeDoc/aimarket/internal/events"
	"github.com/MrSnakeDoc/aimarket/internal/logger"
	"github.com/MrSnakeDoc/aimarket/internal/metrics"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func (m *fakeMailer) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func listing(id string) *domain.Listing {
	return &domain.Listing{ID: id, Name: "Acme", Region: domain.RegionFinland}
}

func TestHandleIgnoresNonInserts(t *testing.T) {
	m := &fakeMailer{}
	n := New(m, Options{})
	ctx := context.Background()

	require.NoError(t, n.Handle(ctx, events.Modified(listing("a"), listing("a"), t0)))
	require.NoError(t, n.Handle(ctx, events.Removed(listing("a"), t0)))
	require.NoError(t, n.Handle(ctx, events.Event{Type: events.Insert, ID: "a"}))

	assert.Zero(t, m.count())
}

func TestHandleSendsFixedMessage(t *testing.T) {
	m := &fakeMailer{}
	reg := metrics.New()
	n := New(m, Options{Metrics: reg})

	require.NoError(t, n.Handle(context.Background(), events.Inserted(listing("a"), t0)))

	require.Equal(t, 1, m.count())
	msg := m.sent[0]
	assert.Equal(t, []string{"info@ai-marketplace.fi"}, msg.To)
	assert.Equal(t, "AI Marketplace Finland <info@ai-marketplace.fi>", msg.From)
	assert.Equal(t, "Uusi AI palvelu", msg.Subject)
	assert.Equal(t, "Uusi AI palvelu lisätty", msg.Body)
}

func TestHandleSuppressesDuplicates(t *testing.T) {
	m := &fakeMailer{}
	now := t0
	n := New(m, Options{DedupTTL: 10 * time.Minute, Now: func() time.Time { return now }})
	ev := events.Inserted(listing("a"), t0)
	ctx := context.Background()

	require.NoError(t, n.Handle(ctx, ev))
	require.NoError(t, n.Handle(ctx, ev))
	assert.Equal(t, 1, m.count())

	require.NoError(t, n.Handle(ctx, events.Inserted(listing("b"), t0)))
	assert.Equal(t, 2, m.count())

	now = t0.Add(10 * time.Minute)
	require.NoError(t, n.Handle(ctx, ev))
	assert.Equal(t, 3, m.count())
}

func TestHandleFailureIsReturnedAndRetryable(t *testing.T) {
	m := &fakeMailer{}
	m.fail(errors.New("relay refused"))
	n := New(m, Options{})
	ev := events.Inserted(listing("a"), t0)

	err := n.Handle(context.Background(), ev)
	require.ErrorIs(t, err, domain.ErrNotificationDelivery)
	assert.Contains(t, err.Error(), "relay refused")

	m.fail(nil)
	require.NoError(t, n.Handle(context.Background(), ev))
	assert.Equal(t, 1, m.count())
}

func TestHandleBatch(t *testing.T) {
	m := &fakeMailer{}
	n := New(m, Options{})

	err := n.HandleBatch(context.Background(), []events.Event{
		events.Inserted(listing("a"), t0),
		events.Modified(listing("a"), listing("a"), t0),
		events.Inserted(listing("b"), t0),
		events.Inserted(listing("a"), t0),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, m.count())

	m.fail(errors.New("down"))
	err = n.HandleBatch(context.Background(), []events.Event{
		events.Inserted(listing("c"), t0),
		events.Inserted(listing("d"), t0),
	})
	require.ErrorIs(t, err, domain.ErrNotificationDelivery)
	assert.Contains(t, err.Error(), "listing c")
	assert.Contains(t, err.Error(), "listing d")
}

func TestDispatcherDeliversInserts(t *testing.T) {
	m := &fakeMailer{}
	log := logger.NewNop()
	bus := events.NewBus(8, log, nil)
	d := NewDispatcher(bus, New(m, Options{}), log)

	require.NoError(t, d.Start(context.Background()))
	require.Error(t, d.Start(context.Background()))

	bus.Publish(context.Background(), events.Modified(listing("a"), listing("a"), t0))
	bus.Publish(context.Background(), events.Inserted(listing("a"), t0))

	require.Eventually(t, func() bool { return m.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	d.Stop()
	d.Stop()
	require.Eventually(t, func() bool { return bus.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcherStopWithoutStart(t *testing.T) {
	d := NewDispatcher(events.NewBus(1, logger.NewNop(), nil), New(&fakeMailer{}, Options{}), nil)
	d.Stop()
}

// smtpServer is a single-session SMTP sink.
type smtpServer struct {
	ln   net.Listener
	mu   sync.Mutex
	from string
	rcpt []string
	data string
}

func startSMTP(t *testing.T) *smtpServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &smtpServer{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })
	go s.serve()
	return s
}

func (s *smtpServer) serve() {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 localhost ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			_ = tp.PrintfLine("250 localhost")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			s.mu.Lock()
			s.from = line[len("MAIL FROM:"):]
			s.mu.Unlock()
			_ = tp.PrintfLine("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			s.mu.Lock()
			s.rcpt = append(s.rcpt, line[len("RCPT TO:"):])
			s.mu.Unlock()
			_ = tp.PrintfLine("250 OK")
		case cmd == "DATA":
			_ = tp.PrintfLine("354 end with <CR><LF>.<CR><LF>")
			data, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.data = string(data)
			s.mu.Unlock()
			_ = tp.PrintfLine("250 queued")
		case cmd == "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}

func TestSMTPMailerSends(t *testing.T) {
	srv := startSMTP(t)
	mailer := &SMTPMailer{Addr: srv.ln.Addr().String(), Timeout: 2 * time.Second}

	err := mailer.Send(context.Background(), Message{
		From:    DefaultFrom,
		To:      []string{DefaultTo},
		Subject: Subject,
		Body:    Body,
	})
	require.NoError(t, err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "<info@ai-marketplace.fi>", srv.from)
	assert.Equal(t, []string{"<info@ai-marketplace.fi>"}, srv.rcpt)
	assert.Contains(t, srv.data, "Subject: Uusi AI palvelu\n")
	assert.Contains(t, srv.data, "From: AI Marketplace Finland <info@ai-marketplace.fi>\n")
	assert.Contains(t, srv.data, `Content-Type: text/plain; charset="UTF-8"`)
	assert.Contains(t, srv.data, "Uusi AI palvelu lisätty")
}

func TestSMTPMailerRejectsBadInput(t *testing.T) {
	ctx := context.Background()

	assert.Error(t, (&SMTPMailer{Addr: "no-port"}).Send(ctx, Message{From: DefaultFrom, To: []string{DefaultTo}}))
	assert.Error(t, (&SMTPMailer{Addr: "localhost:25"}).Send(ctx, Message{From: "not an address", To: []string{DefaultTo}}))
	assert.Error(t, (&SMTPMailer{Addr: "localhost:25"}).Send(ctx, Message{From: DefaultFrom}))
}

func TestLogMailer(t *testing.T) {
	assert.NoError(t, LogMailer{Logger: logger.NewNop()}.Send(context.Background(), Message{To: []string{DefaultTo}}))
}
