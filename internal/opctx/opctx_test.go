package opctx

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestDetectorUUIDScoping(t *testing.T) {
	root := context.Background()
	if _, ok := DetectorUUID(root); ok {
		t.Fatal("unexpected uuid on fresh context")
	}

	tagged := WithDetectorUUID(root, "u-1")
	id, ok := DetectorUUID(tagged)
	assert.True(t, ok)
	assert.Equal(t, "u-1", id)

	// The parent context stays clean; no cross-request contamination.
	_, ok = DetectorUUID(root)
	assert.False(t, ok)
}

func TestLoggerCarriesUUID(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithDetectorUUID(context.Background(), "11111111-1111-1111-1111-111111111111")
	log := Logger(ctx, base)
	log.Info().Msg("toggle")

	assert.Contains(t, buf.String(), `"DetectorUuid":"11111111-1111-1111-1111-111111111111"`)
}
