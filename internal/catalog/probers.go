package catalog

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/ieraasyl/Storefront/pkg/config"
)

// FSProber resolves paths against a filesystem and decodes the image header,
// so a file that exists but is not a PNG, JPEG or GIF counts as missing.
type FSProber struct {
	fsys fs.FS
}

// NewFSProber probes files below root on the local disk.
func NewFSProber(root string) *FSProber {
	return &FSProber{fsys: os.DirFS(root)}
}

// NewFSProberFS probes an arbitrary fs.FS.
func NewFSProberFS(fsys fs.FS) *FSProber {
	return &FSProber{fsys: fsys}
}

func (p *FSProber) Probe(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	f, err := p.fsys.Open(strings.TrimLeft(path, "/"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, _, err := image.DecodeConfig(f); err != nil {
		return false, nil
	}
	return true, nil
}

// AssetHandler serves the directory named by the first segment of
// pathTemplate ("assets" for "assets/products/%d.png") so probed image refs
// resolve for browsers. It returns the URL prefix to mount it under.
// Directory listings are not served.
func AssetHandler(fsys fs.FS, pathTemplate string) (string, http.Handler, error) {
	dir, _, _ := strings.Cut(strings.TrimLeft(pathTemplate, "/"), "/")
	if dir == "" || strings.Contains(dir, "%") {
		return "", nil, fmt.Errorf("path template %q has no asset directory", pathTemplate)
	}

	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return "", nil, fmt.Errorf("failed to open asset directory %s: %w", dir, err)
	}

	prefix := "/" + dir + "/"
	return prefix, http.StripPrefix(prefix, http.FileServer(http.FS(noListingFS{sub}))), nil
}

// noListingFS hides directories from http.FileServer.
type noListingFS struct {
	fs.FS
}

func (n noListingFS) Open(name string) (fs.File, error) {
	f, err := n.FS.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}

// HTTPProber fetches assets from an origin. A hit is a 200 response whose
// Content-Type is image/*.
type HTTPProber struct {
	client  *http.Client
	baseURL string
}

// NewHTTPProber creates a prober for baseURL. A nil client gets a 10 second
// timeout.
func NewHTTPProber(client *http.Client, baseURL string) *HTTPProber {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProber{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (p *HTTPProber) Probe(ctx context.Context, path string) (bool, error) {
	url := p.baseURL + "/" + strings.TrimLeft(path, "/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to probe %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	return isImageContentType(resp.Header.Get("Content-Type")), nil
}

// HeadObjectAPI is the subset of the S3 client used by S3Prober.
type HeadObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Prober checks objects in a bucket with HeadObject. Keys are the probe
// paths with any leading slash removed.
type S3Prober struct {
	client HeadObjectAPI
	bucket string
}

// NewS3Prober wraps an existing client.
func NewS3Prober(client HeadObjectAPI, bucket string) *S3Prober {
	return &S3Prober{client: client, bucket: bucket}
}

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) HeadObjectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// NewS3ProberFromConfig builds an S3 client from the asset settings. Static
// credentials are used when both keys are set; otherwise the default AWS
// credential chain applies. A custom endpoint switches to path-style
// addressing for MinIO and similar stores.
func NewS3ProberFromConfig(ctx context.Context, cfg *config.AssetConfig) (*S3Prober, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3Prober(client, cfg.S3Bucket), nil
}

func (p *S3Prober) Probe(ctx context.Context, path string) (bool, error) {
	out, err := p.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(strings.TrimLeft(path, "/")),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head s3://%s/%s: %w", p.bucket, path, err)
	}

	return isImageContentType(aws.ToString(out.ContentType)), nil
}

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "Forbidden":
			return true
		}
	}
	return false
}

func isImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// NewProber selects the AssetProber for the configured backend.
func NewProber(ctx context.Context, cfg *config.AssetConfig) (AssetProber, error) {
	switch cfg.Backend {
	case config.AssetBackendFS:
		return NewFSProber(cfg.Root), nil
	case config.AssetBackendHTTP:
		return NewHTTPProber(nil, cfg.BaseURL), nil
	case config.AssetBackendS3:
		return NewS3ProberFromConfig(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown asset backend %q", cfg.Backend)
	}
}
