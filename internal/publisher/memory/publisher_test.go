package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublishRecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	id1, err := p.Publish(context.Background(), "harvest-batches", map[string]int{"inserted": 3})
	require.NoError(t, err)
	id2, err := p.Publish(context.Background(), "harvest-batches", map[string]int{"inserted": 1})
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	msgs := p.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "harvest-batches", msgs[0].Topic)
	require.JSONEq(t, `{"inserted":3}`, string(msgs[0].Data))
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	p := New()
	_, err := p.Publish(context.Background(), "t", func() {})
	require.Error(t, err)
	require.Empty(t, p.Messages())
}
