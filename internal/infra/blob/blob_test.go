package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloudinaryUpload(t *testing.T) {
	var gotPreset, gotFile, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotPreset = r.FormValue("upload_preset")
		f, _, err := r.FormFile("file")
		require.NoError(t, err)
		b, _ := io.ReadAll(f)
		gotFile = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"secure_url":"https://res.cloudinary.com/demo/shirt.png"}`))
	}))
	defer srv.Close()

	store := NewCloudinaryStore("demo", "unsigned_ecommerce", WithEndpoint(srv.URL), WithHTTPClient(srv.Client()))
	url, err := store.Upload(context.Background(), "shirt.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.Equal(t, "https://res.cloudinary.com/demo/shirt.png", url)
	require.Equal(t, "/demo/image/upload", gotPath)
	require.Equal(t, "unsigned_ecommerce", gotPreset)
	require.Equal(t, "png-bytes", gotFile)
}

func TestCloudinaryUploadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Upload preset not found"}}`))
	}))
	defer srv.Close()

	store := NewCloudinaryStore("demo", "bad", WithEndpoint(srv.URL))
	_, err := store.Upload(context.Background(), "shirt.png", strings.NewReader("png-bytes"))
	require.ErrorIs(t, err, ErrUploadFailed)
	require.Contains(t, err.Error(), "Upload preset not found")
}

func TestUploadEmptyFile(t *testing.T) {
	store := NewCloudinaryStore("demo", "preset", WithEndpoint("http://127.0.0.1:0"))
	_, err := store.Upload(context.Background(), "empty.png", strings.NewReader(""))
	require.ErrorIs(t, err, ErrEmptyFile)

	mem := NewMemoryStore("mem://images")
	_, err = mem.Upload(context.Background(), "empty.png", strings.NewReader(""))
	require.ErrorIs(t, err, ErrEmptyFile)
}

func TestMemoryStore(t *testing.T) {
	mem := NewMemoryStore("mem://images")
	url, err := mem.Upload(context.Background(), "a.png", strings.NewReader("data"))
	require.NoError(t, err)
	require.Equal(t, "mem://images/1/a.png", url)

	data, ok := mem.Get(url)
	require.True(t, ok)
	require.Equal(t, "data", string(data))
}
