package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nextoral/backend/pkg/queue"
)

type sentMail struct{ to, subject, body string }

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (f *fakeMailer) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestQueue(t *testing.T) (*queue.Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return queue.NewQueue(rdb, zap.NewNop()), mr
}

func TestProcessRejectsBadJobs(t *testing.T) {
	p := NewEmailProcessor(nil, &fakeMailer{}, nil)
	ctx := context.Background()

	assert.Error(t, p.Process(ctx, &queue.Job{ID: "1", Type: "other"}))
	assert.Error(t, p.Process(ctx, &queue.Job{ID: "2", Type: queue.JobTypeEmail, Payload: json.RawMessage(`{`)}))
	assert.Error(t, p.Process(ctx, &queue.Job{ID: "3", Type: queue.JobTypeEmail, Payload: json.RawMessage(`{}`)}))
}

func TestRunSendsQueuedEmail(t *testing.T) {
	q, _ := newTestQueue(t)
	mailer := &fakeMailer{}
	p := NewEmailProcessor(q, mailer, zap.NewNop())
	p.poll = 100 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType: queue.EmailSignInCode, RecipientEmail: "a@example.com", Subject: "Code", BodyText: "123456",
	}))
	done := make(chan struct{})
	go func() { p.Run(ctx); close(done) }()

	require.Eventually(t, func() bool { return mailer.count() == 1 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, sentMail{"a@example.com", "Code", "123456"}, mailer.sent[0])
}

func TestRunMovesFailingJobToDLQ(t *testing.T) {
	q, mr := newTestQueue(t)
	mailer := &fakeMailer{fail: errors.New("relay down")}
	p := NewEmailProcessor(q, mailer, zap.NewNop())
	p.backoff = time.Millisecond
	p.poll = 100 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.EnqueueEmail(ctx, queue.EmailPayload{RecipientEmail: "a@example.com"}))
	done := make(chan struct{})
	go func() { p.Run(ctx); close(done) }()

	require.Eventually(t, func() bool {
		items, _ := mr.List(queue.QueueDLQ)
		return len(items) == 1
	}, 3*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, User: "u", Pass: "p", From: "no-reply@nextoral.com", FromName: "Nextoral"})
	var gotAddr string
	var gotTo []string
	var gotMsg string
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		assert.NotNil(t, a)
		assert.Equal(t, "no-reply@nextoral.com", from)
		return nil
	}

	require.NoError(t, m.Send(context.Background(), "a@example.com", "Your code", "line1\nline2"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"a@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "From: Nextoral <no-reply@nextoral.com>\r\n")
	assert.Contains(t, gotMsg, "Subject: Your code\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "\r\n\r\nline1\r\nline2"))
}
