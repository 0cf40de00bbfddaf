package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutObjectStoresSnapshot(t *testing.T) {
	t.Parallel()

	store := New()
	uri, err := store.PutObject(context.Background(),
		"extract-failures/2024-03-01/abc.html", "text/html", []byte("<html/>"))
	require.NoError(t, err)
	require.Equal(t, "mem://extract-failures/2024-03-01/abc.html", uri)

	obj, ok := store.Get("extract-failures/2024-03-01/abc.html")
	require.True(t, ok)
	require.Equal(t, "text/html", obj.ContentType)
	require.Equal(t, "<html/>", string(obj.Data))
	require.Equal(t, 1, store.Len())
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store := New()
	_, err := store.PutObject(context.Background(), "", "text/html", []byte("x"))
	require.Error(t, err)
	require.Equal(t, 0, store.Len())
}
