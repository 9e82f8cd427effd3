package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogObserver_LogsFailureWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}))

	finish := NewLogObserver(logger).Begin(context.Background(), "login_attempt.find_by_id", slog.String("id", "abc"))
	finish(errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "store operation failed", entry["msg"])
	assert.Equal(t, "login_attempt.find_by_id", entry["op"])
	assert.Equal(t, "abc", entry["id"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLogObserver_SuccessIsDebugOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	NewLogObserver(logger).Begin(context.Background(), "op")(nil)

	assert.Empty(t, buf.String())
}

type recordingObserver struct {
	ops  []string
	errs []error
}

func (r *recordingObserver) Begin(_ context.Context, op string, _ ...slog.Attr) Finish {
	r.ops = append(r.ops, op)
	return func(err error) { r.errs = append(r.errs, err) }
}

func TestChain_FansOut(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	boom := errors.New("boom")

	Chain(a, Nop{}, b).Begin(context.Background(), "scope_approval.upsert")(boom)

	assert.Equal(t, []string{"scope_approval.upsert"}, a.ops)
	assert.Equal(t, []string{"scope_approval.upsert"}, b.ops)
	assert.Equal(t, []error{boom}, a.errs)
	assert.Equal(t, []error{boom}, b.errs)
}
