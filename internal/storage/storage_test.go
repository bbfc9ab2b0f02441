package storage

import (
	"bytes"
	"context"
	"hash/crc64"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphpack/pkg/config"
	apperrors "github.com/graphpack/pkg/errors"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.StorageConfig
		wantErr string
	}{
		{"nil", nil, "storage config is nil"},
		{"local", &config.StorageConfig{Type: "local", LocalPath: "/tmp/x"}, ""},
		{"empty type is local", &config.StorageConfig{LocalPath: "/tmp/x"}, ""},
		{"local without path", &config.StorageConfig{Type: "local"}, "local storage path is required"},
		{"cos", &config.StorageConfig{Type: "cos", Bucket: "b", Region: "r", SecretID: "i", SecretKey: "k"}, ""},
		{"cos without bucket", &config.StorageConfig{Type: "cos", Region: "r", SecretID: "i", SecretKey: "k"}, "bucket is required"},
		{"cos without region", &config.StorageConfig{Type: "cos", Bucket: "b", SecretID: "i", SecretKey: "k"}, "region is required"},
		{"cos without credentials", &config.StorageConfig{Type: "cos", Bucket: "b", Region: "r"}, "credentials are required"},
		{"unknown", &config.StorageConfig{Type: "s3"}, "unsupported storage type"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeConfigError, apperrors.GetErrorCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(&config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	s, err = NewStorage(&config.StorageConfig{Type: "cos", Bucket: "b-123", Region: "ap-guangzhou", SecretID: "i", SecretKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &COSStorage{}, s)
	assert.Equal(t, "https://b-123.cos.ap-guangzhou.myqcloud.com/a/b.gpak", s.GetURL("a/b.gpak"))

	_, err = NewStorage(&config.StorageConfig{Type: "cos"})
	assert.Error(t, err)
}

// exerciseStorage runs the behaviour shared by every backend.
func exerciseStorage(t *testing.T, s Storage) {
	ctx := context.Background()
	payload := []byte("GPAK\x01 artifact body")

	exists, err := s.Exists(ctx, "graphs/one.gpak")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = s.Download(ctx, "graphs/one.gpak")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, s.Upload(ctx, "graphs/one.gpak", bytes.NewReader(payload)))

	exists, err = s.Exists(ctx, "graphs/one.gpak")
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := s.Download(ctx, "graphs/one.gpak")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, payload, got)

	require.NoError(t, s.Upload(ctx, "graphs/one.gpak", strings.NewReader("replaced")))
	rc, err = s.Download(ctx, "graphs/one.gpak")
	require.NoError(t, err)
	got, _ = io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "replaced", string(got))

	require.NoError(t, s.Delete(ctx, "graphs/one.gpak"))
	exists, err = s.Exists(ctx, "graphs/one.gpak")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, s.Delete(ctx, "graphs/one.gpak"))
}

func TestLocalStorage(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	exerciseStorage(t, s)
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "../outside", "a/../../outside", "/etc/passwd"} {
		err := s.Upload(context.Background(), key, strings.NewReader("x"))
		require.Error(t, err, key)
		assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err), key)
	}
}

func TestLocalStorage_CanceledContext(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Upload(ctx, "k", strings.NewReader("x")), context.Canceled)
	_, err = s.Download(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewCOSStorage_Validation(t *testing.T) {
	_, err := NewCOSStorage(&COSConfig{Region: "r", SecretID: "i", SecretKey: "k"})
	assert.Contains(t, err.Error(), "bucket and region are required")

	_, err = NewCOSStorage(&COSConfig{Bucket: "b", Region: "r"})
	assert.Contains(t, err.Error(), "credentials are required")

	s, err := NewCOSStorage(&COSConfig{Bucket: "b", Region: "r", SecretID: "i", SecretKey: "k", Scheme: "http", Domain: "example.com"})
	require.NoError(t, err)
	assert.Equal(t, "http://b.cos.r.example.com/x.gpak", s.GetURL("x.gpak"))
}

var ecmaTable = crc64.MakeTable(crc64.ECMA)

// fakeBucket is a minimal in-memory COS object endpoint. It reports the
// CRC64 header the SDK verifies.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		setCRC(w, body)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		body, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				io.WriteString(w, "<Error><Code>NoSuchKey</Code><Message>not found</Message></Error>")
			}
			return
		}
		setCRC(w, body)
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(body)
		}
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func setCRC(w http.ResponseWriter, body []byte) {
	w.Header().Set("x-cos-hash-crc64ecma", strconv.FormatUint(crc64.Checksum(body, ecmaTable), 10))
}

func TestCOSStorage_AgainstFakeBucket(t *testing.T) {
	server := httptest.NewServer(&fakeBucket{objects: make(map[string][]byte)})
	defer server.Close()

	s, err := NewCOSStorage(&COSConfig{
		Bucket:    "graphs-125",
		Region:    "ap-guangzhou",
		SecretID:  "id",
		SecretKey: "key",
		BucketURL: server.URL,
	})
	require.NoError(t, err)
	exerciseStorage(t, s)
}
