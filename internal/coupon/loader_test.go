package coupon

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"kart-ledger/internal/model"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipLines(t *testing.T, lines []string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	for _, line := range lines {
		_, err := gzipWriter.Write([]byte(line + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, gzipWriter.Close())
	return buf.Bytes()
}

// createTestBatchFile writes a gzipped batch file and returns its path.
func createTestBatchFile(t *testing.T, filename string, lines []string) string {
	t.Helper()

	filePath := filepath.Join(t.TempDir(), filename)
	require.NoError(t, os.WriteFile(filePath, gzipLines(t, lines), 0o600))
	return filePath
}

// mockLoader is a mock implementation of the Loader interface for testing.
type mockLoader struct {
	loadFunc func(ctx context.Context, filePath string) (Batch, error)
}

func (m *mockLoader) Load(ctx context.Context, filePath string) (Batch, error) {
	if m.loadFunc != nil {
		return m.loadFunc(ctx, filePath)
	}
	return nil, errors.New("not implemented")
}

type fakeObjectGetter struct {
	objects map[string][]byte
	keys    []string
}

func (f *fakeObjectGetter) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.keys = append(f.keys, *params.Key)
	data, ok := f.objects[*params.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestFileLoader_Load_Success(t *testing.T) {
	loader := NewFileLoader(zerolog.Nop())
	path := createTestBatchFile(t, "batch.gz", []string{
		"TENOFF,percent,10",
		"FIVER,fixed,500,true,3",
	})

	batch, err := loader.Load(context.Background(), path)

	require.NoError(t, err)
	assert.Equal(t, 2, batch.Size())
	fiver, ok := batch.Get("fiver")
	require.True(t, ok)
	assert.True(t, fiver.OneTimeUse)
	require.NotNil(t, fiver.MaxGlobalUses)
	assert.Equal(t, 3, *fiver.MaxGlobalUses)
}

func TestFileLoader_Load_MissingFile(t *testing.T) {
	loader := NewFileLoader(zerolog.Nop())

	batch, err := loader.Load(context.Background(), "/nonexistent/batch.gz")

	require.Error(t, err)
	assert.Nil(t, batch)
	assert.Contains(t, err.Error(), "failed to open discount batch")
}

func TestFileLoader_Load_NotGzip(t *testing.T) {
	loader := NewFileLoader(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "plain.gz")
	require.NoError(t, os.WriteFile(path, []byte("TENOFF,percent,10\n"), 0o600))

	_, err := loader.Load(context.Background(), path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "gzip reader")
}

func TestS3Loader_Load(t *testing.T) {
	client := &fakeObjectGetter{objects: map[string][]byte{
		"discounts/spring.gz": gzipLines(t, []string{"SPRING,percent,5"}),
	}}
	loader := NewS3LoaderWithClient(client, "kart-bucket", zerolog.Nop())

	batch, err := loader.Load(context.Background(), "discounts/spring.gz")

	require.NoError(t, err)
	assert.Equal(t, 1, batch.Size())
	assert.Equal(t, []string{"discounts/spring.gz"}, client.keys)

	_, err = loader.Load(context.Background(), "discounts/missing.gz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket=kart-bucket")
}

func TestFallbackLoader_S3Success(t *testing.T) {
	s3Batch := NewBatch(1)
	s3Batch.Add(mustParse(t, "S3CODE,fixed,100"))

	s3Loader := &mockLoader{
		loadFunc: func(_ context.Context, filePath string) (Batch, error) {
			assert.Equal(t, "discounts/test.gz", filePath, "S3 key should have prefix")
			return s3Batch, nil
		},
	}
	fileLoader := &mockLoader{
		loadFunc: func(context.Context, string) (Batch, error) {
			t.Error("file loader should not be called when S3 succeeds")
			return nil, errors.New("should not be called")
		},
	}

	fallback := NewFallbackLoader(s3Loader, fileLoader, "discounts/", true, zerolog.Nop())
	batch, err := fallback.Load(context.Background(), "test.gz")

	require.NoError(t, err)
	_, ok := batch.Get("S3CODE")
	assert.True(t, ok)
}

func TestFallbackLoader_S3FailsFallsBackToLocal(t *testing.T) {
	localBatch := NewBatch(1)
	localBatch.Add(mustParse(t, "LOCAL,fixed,100"))

	s3Loader := &mockLoader{
		loadFunc: func(context.Context, string) (Batch, error) {
			return nil, errors.New("S3 connection failed")
		},
	}
	fileLoader := &mockLoader{
		loadFunc: func(_ context.Context, filePath string) (Batch, error) {
			assert.Equal(t, "test.gz", filePath, "local path should not have prefix")
			return localBatch, nil
		},
	}

	fallback := NewFallbackLoader(s3Loader, fileLoader, "discounts/", true, zerolog.Nop())
	batch, err := fallback.Load(context.Background(), "test.gz")

	require.NoError(t, err)
	_, ok := batch.Get("LOCAL")
	assert.True(t, ok)
}

func TestFallbackLoader_S3Disabled(t *testing.T) {
	s3Loader := &mockLoader{
		loadFunc: func(context.Context, string) (Batch, error) {
			t.Error("S3 loader should not be called when disabled")
			return nil, errors.New("should not be called")
		},
	}
	called := false
	fileLoader := &mockLoader{
		loadFunc: func(context.Context, string) (Batch, error) {
			called = true
			return NewBatch(0), nil
		},
	}

	fallback := NewFallbackLoader(s3Loader, fileLoader, "discounts/", false, zerolog.Nop())
	_, err := fallback.Load(context.Background(), "test.gz")

	require.NoError(t, err)
	assert.True(t, called)
}

func mustParse(t *testing.T, line string) model.DiscountCode {
	t.Helper()
	d, err := ParseLine(line)
	require.NoError(t, err)
	return d
}
