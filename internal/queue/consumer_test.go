package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleAuditMessage(t *testing.T) {
	ev := AuthEvent{
		ID:         "ev-1",
		Type:       EventRefreshRejected,
		UserID:     "u-1",
		TokenID:    "t-1",
		Reason:     "token revoked",
		IP:         "10.0.0.1",
		UserAgent:  "curl/8.0",
		OccurredAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, HandleAuditMessage(&buf, body))

	line := buf.String()
	assert.Contains(t, line, "[2025-03-01T09:00:00Z] session.refresh_rejected")
	assert.Contains(t, line, "user_id=u-1")
	assert.Contains(t, line, "reason=token revoked")
	assert.Contains(t, line, `ua="curl/8.0"`)
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
}

func TestHandleAuditMessageRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, HandleAuditMessage(&buf, []byte("{not json")))
	assert.Error(t, HandleAuditMessage(&buf, []byte(`{"id":"ev-1"}`)))
	assert.Zero(t, buf.Len())
}

func TestSleepCtx(t *testing.T) {
	assert.True(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepCtx(ctx, time.Minute))
}
