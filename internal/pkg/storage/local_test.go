package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_WriteOnce(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key, err := s.Upload(ctx, bytes.NewReader([]byte("abc")), "evidence/co/emp/1.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "evidence/co/emp/1.jpg", key)

	_, err = s.Upload(ctx, bytes.NewReader([]byte("xyz")), key, "image/jpeg")
	assert.ErrorIs(t, err, ErrExists)

	rc, err := s.Download(ctx, key)
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "abc", string(b))

	require.NoError(t, s.Delete(ctx, key))
	require.NoError(t, s.Delete(ctx, key))
	_, err = s.Download(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_TraversalStaysInsideRoot(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	key, err := s.Upload(ctx, bytes.NewReader([]byte("x")), "../../etc/passwd", "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "etc/passwd", key)

	_, err = s.Upload(ctx, bytes.NewReader([]byte("x")), "/", "text/plain")
	assert.ErrorIs(t, err, ErrInvalidPath)
}
