package notify

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profmon/internal/models"
	"profmon/internal/structures"
	"profmon/internal/testutil"
)

func TestConsoleSink(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleSink(&buf)

	require.NoError(t, c.Send(context.Background(), models.NewChangeEvent("alice", models.KindBioChanged, "a", "b", at)))
	c.Initial(context.Background(), &models.Snapshot{Username: "bob"})

	out := buf.String()
	assert.Contains(t, out, `alice changed bio: "a" -> "b"`)
	assert.Contains(t, out, "kind=bio-changed")
	assert.Contains(t, out, "bob: initial state captured")
}

func TestWebhookSink_PostsSignedJSON(t *testing.T) {
	var (
		body []byte
		sig  string
		key  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		sig = r.Header.Get(signatureHeader)
		key = r.Header.Get("Idempotency-Key")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.Client(), structures.WebhookSinkConfig{URL: srv.URL, Secret: "s3cret", Timeout: time.Second})
	ev := models.NewChangeEvent("alice", models.KindNewPost, "", "p1", at)
	require.NoError(t, sink.Send(context.Background(), ev))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "new-post", payload["kind"])
	assert.Equal(t, "alice", payload["target"])
	assert.NotEmpty(t, payload["text"])
	assert.Equal(t, ev.ID, key)
	assert.Equal(t, "sha256="+Sign([]byte("s3cret"), body), sig)
}

func TestWebhookSink_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.Client(), structures.WebhookSinkConfig{URL: srv.URL})
	err := sink.Send(context.Background(), models.NewChangeEvent("alice", models.KindError, "", "x", at))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestEmailSink(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	sink := NewEmailSink(structures.EmailSinkConfig{Host: "smtp.local", Port: 2525, From: "bot@local", To: []string{"ops@local"}})
	sink.sendMail = func(_ context.Context, addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	require.NoError(t, sink.Send(context.Background(), models.NewChangeEvent("alice", models.KindBioChanged, "a", "b", at)))
	assert.Equal(t, "smtp.local:2525", gotAddr)
	assert.Equal(t, []string{"ops@local"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: [profmon] alice: bio-changed\r\n")
	assert.True(t, strings.HasSuffix(gotMsg, "alice changed bio: \"a\" -> \"b\"\r\n"))

	sink.sendMail = func(context.Context, string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	assert.Error(t, sink.Send(context.Background(), models.NewChangeEvent("alice", models.KindBioChanged, "a", "b", at)))
}

// smtpListener starts a local SMTP endpoint served by handle.
func smtpListener(t *testing.T, handle func(net.Conn)) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestEmailSink_DeliversOverSMTP(t *testing.T) {
	received := make(chan string, 1)
	host, port := smtpListener(t, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(line string) { fmt.Fprintf(conn, "%s\r\n", line) }
		reply("220 local ESMTP")
		var body strings.Builder
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 local")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				reply("250 ok")
			case cmd == "DATA":
				reply("354 go ahead")
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					body.WriteString(l)
				}
				received <- body.String()
				reply("250 queued")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("502 unknown")
			}
		}
	})

	sink := NewEmailSink(structures.EmailSinkConfig{Host: host, Port: port, From: "bot@local", To: []string{"ops@local"}, Timeout: 2 * time.Second})
	require.NoError(t, sink.Send(context.Background(), models.NewChangeEvent("alice", models.KindBioChanged, "a", "b", at)))

	select {
	case msg := <-received:
		assert.Contains(t, msg, "Subject: [profmon] alice: bio-changed")
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
}

func TestEmailSink_SilentServerTimesOut(t *testing.T) {
	host, port := smtpListener(t, func(conn net.Conn) {
		// accept, then never greet
		time.Sleep(5 * time.Second)
		conn.Close()
	})

	sink := NewEmailSink(structures.EmailSinkConfig{Host: host, Port: port, From: "bot@local", To: []string{"ops@local"}, Timeout: 100 * time.Millisecond})
	start := time.Now()
	err := sink.Send(context.Background(), models.NewChangeEvent("alice", models.KindBioChanged, "a", "b", at))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEmailSink_ContextDeadlineBoundsSession(t *testing.T) {
	host, port := smtpListener(t, func(conn net.Conn) {
		time.Sleep(5 * time.Second)
		conn.Close()
	})

	sink := NewEmailSink(structures.EmailSinkConfig{Host: host, Port: port, From: "bot@local", To: []string{"ops@local"}})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.Error(t, sink.Send(ctx, models.NewChangeEvent("alice", models.KindBioChanged, "a", "b", at)))
	assert.Less(t, time.Since(start), 2*time.Second)
}

type fakeTelegram struct {
	params []*bot.SendMessageParams
	err    error
}

func (f *fakeTelegram) SendMessage(_ context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error) {
	f.params = append(f.params, params)
	return &tgmodels.Message{}, f.err
}

func TestTelegramSink(t *testing.T) {
	client := &fakeTelegram{}
	sink := &TelegramSink{client: client, chatID: 99}

	require.NoError(t, sink.Send(context.Background(), models.NewChangeEvent("alice", models.KindFollowerAdded, "", "bob", at)))
	require.Len(t, client.params, 1)
	assert.Equal(t, int64(99), client.params[0].ChatID)
	assert.Equal(t, "alice has a new follower: bob", client.params[0].Text)

	client.err = errors.New("forbidden")
	assert.Error(t, sink.Send(context.Background(), models.NewChangeEvent("alice", models.KindFollowerAdded, "", "bob", at)))
}

type fakeExec struct {
	sql   []string
	args  [][]any
	err   error
	block bool
}

func (f *fakeExec) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.block {
		<-ctx.Done()
		return pgconn.CommandTag{}, ctx.Err()
	}
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestPostgresSink(t *testing.T) {
	db := &fakeExec{}
	sink := &PostgresSink{db: db}

	ev := models.NewChangeEvent("alice", models.KindNewStory, "", "s1", at)
	ev.Item = &models.Item{ID: "s1", Kind: models.ItemStory}
	require.NoError(t, sink.Send(context.Background(), ev))

	require.Len(t, db.args, 1)
	assert.Contains(t, db.sql[0], "INSERT INTO profile_changes")
	assert.Equal(t, ev.ID, db.args[0][0])
	assert.Equal(t, "new-story", db.args[0][2])
	assert.Equal(t, "s1", *(db.args[0][5].(*string)))

	db.err = errors.New("conn closed")
	assert.Error(t, sink.Send(context.Background(), models.NewChangeEvent("alice", models.KindError, "", "x", at)))
}

func TestNewSinks_BuildsEnabledWithFilters(t *testing.T) {
	conf := &structures.Config{Notify: structures.NotifyConfig{
		Console:   structures.ConsoleSinkConfig{Enabled: true},
		Webhook:   structures.WebhookSinkConfig{Enabled: true, URL: "http://localhost/hook", Filter: []string{"errors"}},
		Dashboard: structures.DashboardSinkConfig{Enabled: true},
	}}
	hub := NewHub(&testutil.MockLogger{})

	sinks, cleanup, err := NewSinks(context.Background(), conf, &testutil.MockLogger{}, http.DefaultClient, hub)
	require.NoError(t, err)
	defer cleanup()

	require.Len(t, sinks, 3)
	assert.Equal(t, "console", sinks[0].Name())
	assert.Equal(t, "webhook", sinks[1].Name())
	assert.False(t, accepts(sinks[1], models.KindBioChanged))
	assert.Same(t, hub, sinks[2])
}

func TestNewSinks_BadFilter(t *testing.T) {
	conf := &structures.Config{Notify: structures.NotifyConfig{
		Console: structures.ConsoleSinkConfig{Enabled: true, Filter: []string{"nope"}},
	}}
	_, cleanup, err := NewSinks(context.Background(), conf, &testutil.MockLogger{}, http.DefaultClient, nil)
	defer cleanup()
	assert.Error(t, err)
}

func TestPostgresSink_HungServerBoundedByDispatch(t *testing.T) {
	sink := &PostgresSink{db: &fakeExec{block: true}}
	d, path, _ := newTimedDispatcher(t, 50*time.Millisecond, sink)

	report := d.Dispatch(context.Background(), events()[:1])
	require.Len(t, report.Failures, 1)
	assert.ErrorIs(t, report.Failures[0], context.DeadlineExceeded)
	assert.Len(t, readCSV(t, path), 2)
}
