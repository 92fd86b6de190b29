package notify_test

import (
	"bytes"
	"testing"

	"github.com/jrsteele09/voter-registration/notify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	var r notify.Recorder
	r.Notify(notify.Notification{Level: notify.LevelSuccess, Title: "Welcome"})
	r.Notify(notify.Notification{Level: notify.LevelError, Title: "Login failed", Message: "Invalid login credentials"})

	require.Len(t, r.All(), 2)
	require.Equal(t, []notify.Notification{{Level: notify.LevelError, Title: "Login failed", Message: "Invalid login credentials"}}, r.Errors())

	r.Reset()
	require.Empty(t, r.All())
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := notify.NewLogNotifier(zerolog.New(&buf))

	n.Notify(notify.Notification{Level: notify.LevelError, Title: "Session expired", Message: "Please sign in again"})

	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), `"title":"Session expired"`)
	require.Contains(t, buf.String(), `"message":"Please sign in again"`)
}
