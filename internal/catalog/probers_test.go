package catalog

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFSProber(t *testing.T) {
	ctx := context.Background()
	fsys := fstest.MapFS{
		"assets/products/1.png": {Data: pngBytes(t)},
		"assets/products/2.png": {Data: []byte("not an image")},
	}
	prober := NewFSProberFS(fsys)

	t.Run("decodable image is a hit", func(t *testing.T) {
		ok, err := prober.Probe(ctx, "assets/products/1.png")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("leading slash is ignored", func(t *testing.T) {
		ok, err := prober.Probe(ctx, "/assets/products/1.png")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("non-image file is a miss", func(t *testing.T) {
		ok, err := prober.Probe(ctx, "assets/products/2.png")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing file is a miss", func(t *testing.T) {
		ok, err := prober.Probe(ctx, "assets/products/3.png")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestAssetHandler(t *testing.T) {
	fsys := fstest.MapFS{
		"catalog/men/1.png":     {Data: pngBytes(t)},
		"catalog/men/2.png":     {Data: pngBytes(t)},
		".env":                  {Data: []byte("SUPABASE_KEY=secret")},
		"assets/products/1.png": {Data: pngBytes(t)},
	}

	prefix, handler, err := AssetHandler(fsys, "catalog/men/%d.png")
	require.NoError(t, err)
	assert.Equal(t, "/catalog/", prefix)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	t.Run("serves files under the template directory", func(t *testing.T) {
		rec := get("/catalog/men/1.png")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, pngBytes(t), rec.Body.Bytes())
	})

	t.Run("does not list directories", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get("/catalog/men/").Code)
		assert.Equal(t, http.StatusNotFound, get("/catalog/").Code)
	})

	t.Run("stays inside the asset directory", func(t *testing.T) {
		rec := get("/catalog/../.env")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret")
		assert.Equal(t, http.StatusNotFound, get("/catalog/../assets/products/1.png").Code)
	})

	t.Run("template without a directory", func(t *testing.T) {
		_, _, err := AssetHandler(fsys, "%d.png")
		assert.Error(t, err)
	})
}

func TestHTTPProber(t *testing.T) {
	ctx := context.Background()
	body := pngBytes(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/assets/products/1.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(body)
		case "/assets/products/2.png":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html>soft 404</html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	prober := NewHTTPProber(server.Client(), server.URL+"/")

	t.Run("image response is a hit", func(t *testing.T) {
		ok, err := prober.Probe(ctx, "assets/products/1.png")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("non-image response is a miss", func(t *testing.T) {
		ok, err := prober.Probe(ctx, "assets/products/2.png")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("404 is a miss", func(t *testing.T) {
		ok, err := prober.Probe(ctx, "assets/products/3.png")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unreachable origin is an error", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		dead.Close()

		_, err := NewHTTPProber(nil, dead.URL).Probe(ctx, "assets/products/1.png")
		assert.Error(t, err)
	})
}

type MockHeadObjectAPI struct {
	mock.Mock
}

func (m *MockHeadObjectAPI) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, aws.ToString(params.Bucket), aws.ToString(params.Key))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.HeadObjectOutput), args.Error(1)
}

func TestS3Prober(t *testing.T) {
	ctx := context.Background()

	t.Run("image object is a hit", func(t *testing.T) {
		client := new(MockHeadObjectAPI)
		client.On("HeadObject", mock.Anything, "products", "assets/products/1.png").
			Return(&s3.HeadObjectOutput{ContentType: aws.String("image/png")}, nil)

		ok, err := NewS3Prober(client, "products").Probe(ctx, "/assets/products/1.png")
		require.NoError(t, err)
		assert.True(t, ok)
		client.AssertExpectations(t)
	})

	t.Run("non-image object is a miss", func(t *testing.T) {
		client := new(MockHeadObjectAPI)
		client.On("HeadObject", mock.Anything, "products", "assets/products/2.png").
			Return(&s3.HeadObjectOutput{ContentType: aws.String("application/octet-stream")}, nil)

		ok, err := NewS3Prober(client, "products").Probe(ctx, "assets/products/2.png")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("not found is a miss", func(t *testing.T) {
		client := new(MockHeadObjectAPI)
		client.On("HeadObject", mock.Anything, "products", "assets/products/3.png").
			Return(nil, &types.NotFound{})

		ok, err := NewS3Prober(client, "products").Probe(ctx, "assets/products/3.png")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("other failures are errors", func(t *testing.T) {
		client := new(MockHeadObjectAPI)
		client.On("HeadObject", mock.Anything, "products", "assets/products/4.png").
			Return(nil, errors.New("dial tcp: connection refused"))

		_, err := NewS3Prober(client, "products").Probe(ctx, "assets/products/4.png")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "s3://products/assets/products/4.png")
	})
}
