package bot

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/scibot/pkg/models"
)

const testToken = "123:abc"

type sentMessage struct {
	chatID string
	text   string
}

type fakeTelegram struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"scibot","username":"scibot_test"}}`)
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.sent = append(f.sent, sentMessage{chatID: r.PostForm.Get("chat_id"), text: r.PostForm.Get("text")})
		f.mu.Unlock()
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"},"text":"ok"}}`)
	default:
		fmt.Fprint(w, `{"ok":false,"error_code":404,"description":"Not Found"}`)
	}
}

func newTestNotifier(t *testing.T) (*Notifier, *fakeTelegram) {
	t.Helper()
	fake := &fakeTelegram{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	n, err := NewWithClient(testToken, srv.URL+"/bot%s/%s", srv.Client(), WithLogger(log.New(io.Discard)))
	require.NoError(t, err)
	return n, fake
}

func due(names ...string) []models.KnowledgeItem {
	out := make([]models.KnowledgeItem, len(names))
	for i, name := range names {
		out[i] = models.KnowledgeItem{ConceptName: name}
		out[i].ConceptID = int64(i + 1)
		out[i].Retention = 0.5
	}
	return out
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestSendReminder(t *testing.T) {
	n, fake := newTestNotifier(t)
	learner := models.Learner{ID: uuid.New(), TelegramID: sql.NullInt64{Int64: 42, Valid: true}}

	require.NoError(t, n.SendReminder(context.Background(), learner, due("entropy", "osmosis")))

	require.Len(t, fake.sent, 1)
	assert.Equal(t, "42", fake.sent[0].chatID)
	assert.Contains(t, fake.sent[0].text, "2 concepts due")
	assert.Contains(t, fake.sent[0].text, "1. entropy (50%)")
	assert.Contains(t, fake.sent[0].text, "2. osmosis (50%)")
}

func TestSendReminderSkips(t *testing.T) {
	n, fake := newTestNotifier(t)

	noChat := models.Learner{ID: uuid.New()}
	require.NoError(t, n.SendReminder(context.Background(), noChat, due("entropy")))

	withChat := models.Learner{ID: uuid.New(), TelegramID: sql.NullInt64{Int64: 42, Valid: true}}
	require.NoError(t, n.SendReminder(context.Background(), withChat, nil))

	assert.Empty(t, fake.sent)
}

func TestFormatReminder(t *testing.T) {
	text := FormatReminder(due("a", "b", "c"), &Config{MaxListed: 2})
	assert.Equal(t, "You have 3 concepts due for review:\n1. a\n2. b\n...and 1 more", text)

	text = FormatReminder(due("a"), DefaultConfig())
	assert.Equal(t, "You have 1 concept due for review:\n1. a (50%)", text)
}

func TestBroadcast(t *testing.T) {
	n, fake := newTestNotifier(t)

	require.NoError(t, n.Broadcast(context.Background(), []int64{1, 2}, "scibot started"))
	require.Len(t, fake.sent, 2)
	assert.Equal(t, "2", fake.sent[1].chatID)
	assert.Equal(t, "scibot started", fake.sent[1].text)
}
