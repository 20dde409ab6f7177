package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wetwo-backend/internal/model"
)

type recordingWriter struct {
	got []model.Notification
	err error
}

func (w *recordingWriter) Create(_ context.Context, n model.Notification) error {
	if w.err != nil {
		return w.err
	}
	w.got = append(w.got, n)
	return nil
}

func TestEventRoundTrip(t *testing.T) {
	n := model.Notification{
		ID:     "n-1",
		UserID: "u-1",
		Type:   model.NotificationLoveMessage,
		Title:  "New love message",
		Body:   "hi",
		SentAt: time.Date(2024, 2, 14, 9, 30, 0, 0, time.UTC),
	}
	got, err := EventFromNotification(n).Notification()
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestHandleMessage_StoresNotification(t *testing.T) {
	body, err := json.Marshal(NotificationEvent{
		ID: "n-1", UserID: "u-1", Type: model.NotificationPartnership,
		Title: "t", Body: "b", SentAt: "2024-01-01T00:00:00Z",
	})
	require.NoError(t, err)

	w := &recordingWriter{}
	require.NoError(t, handleMessage(context.Background(), body, w))
	require.Len(t, w.got, 1)
	assert.Equal(t, "u-1", w.got[0].UserID)
	assert.False(t, w.got[0].IsRead)
}

func TestHandleMessage_Malformed(t *testing.T) {
	w := &recordingWriter{}
	for _, body := range []string{
		`not json`,
		`{"id":"n-1","sent_at":"2024-01-01T00:00:00Z"}`,
		`{"id":"n-1","user_id":"u-1","sent_at":"yesterday"}`,
	} {
		err := handleMessage(context.Background(), []byte(body), w)
		assert.ErrorIs(t, err, errMalformed, body)
	}
	assert.Empty(t, w.got)
}

func TestHandleMessage_StoreFailureIsNotMalformed(t *testing.T) {
	body := []byte(`{"id":"n-1","user_id":"u-1","sent_at":"2024-01-01T00:00:00Z"}`)
	err := handleMessage(context.Background(), body, &recordingWriter{err: errors.New("db down")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, errMalformed)
}

func TestSleep_ReturnsFalseOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleep(ctx, time.Hour))
	assert.True(t, sleep(context.Background(), time.Millisecond))
}
