package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromContext_FallsBackToDefault(t *testing.T) {
	assert.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestWith_CarriesAttributes(t *testing.T) {
	buf := &bytes.Buffer{}
	base := slog.New(slog.NewTextHandler(buf, nil))
	ctx := WithLogger(context.Background(), base)

	ctx, logger := With(ctx, "turn_id", "t1")
	logger.Info("first")
	FromContext(ctx).Info("second")

	assert.Contains(t, buf.String(), "msg=first turn_id=t1")
	assert.Contains(t, buf.String(), "msg=second turn_id=t1")
}
