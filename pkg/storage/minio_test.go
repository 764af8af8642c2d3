package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBlobs struct {
	objects map[string][]byte
	putErr  error
}

func (m *memoryBlobs) Get(_ context.Context, name string) ([]byte, error) {
	data, ok := m.objects[name]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

func (m *memoryBlobs) Put(_ context.Context, name string, data []byte) error {
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[name] = append([]byte(nil), data...)
	return nil
}

func TestObjectSnapshot(t *testing.T) {
	ctx := context.Background()
	blobs := &memoryBlobs{objects: map[string][]byte{}}
	o := NewObjectSnapshot(blobs, "shelf/books.snapshot", CompressionLZ4)

	books, err := o.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, books, "missing object loads as empty collection")

	require.NoError(t, o.SaveAll(ctx, sampleBooks()))
	require.Contains(t, blobs.objects, "shelf/books.snapshot")

	books, err = o.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleBooks(), books)

	blobs.putErr = errors.New("access denied")
	assert.ErrorContains(t, o.SaveAll(ctx, nil), "access denied")
	assert.NoError(t, o.Close())
}

func TestObjectSnapshot_Corrupt(t *testing.T) {
	blobs := &memoryBlobs{objects: map[string][]byte{"books": []byte("not a snapshot")}}
	o := NewObjectSnapshot(blobs, "books", CompressionNone)

	_, err := o.LoadAll(context.Background())
	assert.ErrorIs(t, err, ErrBadSnapshot)
}
