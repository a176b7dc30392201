package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	bucket, prefix, err := ParseURL("s3://meshes/pm/v1/")
	require.NoError(t, err)
	assert.Equal(t, "meshes", bucket)
	assert.Equal(t, "pm/v1", prefix)

	bucket, prefix, err = ParseURL("s3://meshes")
	require.NoError(t, err)
	assert.Equal(t, "meshes", bucket)
	assert.Empty(t, prefix)

	for _, bad := range []string{"meshes/pm", "http://meshes/pm", "s3:///pm"} {
		_, _, err := ParseURL(bad)
		assert.ErrorIs(t, err, ErrBadURL, bad)
	}
}

func TestKey(t *testing.T) {
	p := NewMinioPublisher(nil, "meshes", "pm")
	assert.Equal(t, "pm/bunny.pm", p.Key("bunny.pm"))
	assert.Equal(t, "pm/a/b.pm", p.Key(filepath.Join("a", "b.pm")))
	assert.Equal(t, "bunny.pm", NewMinioPublisher(nil, "meshes", "").Key("bunny.pm"))
}

// TestMinioPublisher_Integration requires a running MinIO instance.
// Skip if not available.
func TestMinioPublisher_Integration(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}
	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	p := NewMinioPublisher(client, "test-vdpm", "publish-test")
	require.NoError(t, p.EnsureBucket(ctx))

	dir := t.TempDir()
	src := filepath.Join(dir, "in.pm")
	require.NoError(t, os.WriteFile(src, []byte("VDPMPM01 payload"), 0o644))
	require.NoError(t, p.Publish(ctx, src, "in.pm"))

	dst := filepath.Join(dir, "out.pm")
	require.NoError(t, p.Fetch(ctx, "in.pm", dst))
	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "VDPMPM01 payload", string(got))

	assert.ErrorIs(t, p.Fetch(ctx, "missing.pm", filepath.Join(dir, "missing.pm")), os.ErrNotExist)
}
