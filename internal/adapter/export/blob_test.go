package export

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cleanList = "address,amount\n0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed,10\n"

func TestBlobStore_PublishAndFetch(t *testing.T) {
	ctx := context.Background()
	store, err := NewBlobStore(ctx, "mem://", "/exports/")
	require.NoError(t, err)
	defer store.Close()

	tests := []struct {
		name string
		key  string
	}{
		{name: "Plain CSV", key: "upload-1.csv"},
		{name: "Gzip", key: "upload-1.csv.gz"},
		{name: "Zstd", key: "upload-1.csv.zst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			location, err := store.Publish(ctx, tt.key, []byte(cleanList))
			require.NoError(t, err)
			assert.Equal(t, "exports/"+tt.key, location)

			got, err := store.Fetch(ctx, tt.key)
			require.NoError(t, err)
			assert.Equal(t, cleanList, string(got))
		})
	}
}

func TestBlobStore_CompressedObjectDiffers(t *testing.T) {
	ctx := context.Background()
	store, err := NewBlobStore(ctx, "mem://", "")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Publish(ctx, "list.csv.gz", []byte(cleanList))
	require.NoError(t, err)

	raw, err := store.bucket.ReadAll(ctx, "list.csv.gz")
	require.NoError(t, err)
	assert.NotEqual(t, cleanList, string(raw))
}

func TestBlobStore_Errors(t *testing.T) {
	ctx := context.Background()
	store, err := NewBlobStore(ctx, "mem://", "")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Publish(ctx, "", []byte(cleanList))
	assert.Error(t, err)

	_, err = store.Fetch(ctx, "missing.csv")
	assert.Error(t, err)

	_, err = NewBlobStore(ctx, "nope://bucket", "")
	assert.Error(t, err)
}
