// Package cloudtest seeds a local moto S3 server with site-shaped buckets for
// listing integration tests. Tests using it carry the cloudintegration build
// tag and call SkipIfUnavailable first.
package cloudtest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Moto defaults. Port 5555 keeps clear of macOS AirPlay on 5000; moto
// accepts any static credentials.
const (
	DefaultEndpoint     = "http://localhost:5555"
	DefaultRegion       = "us-east-1"
	TestAccessKeyID     = "testing"
	TestSecretAccessKey = "testing"
)

var (
	// Endpoint is overridable with MOTO_ENDPOINT.
	Endpoint = envOr("MOTO_ENDPOINT", DefaultEndpoint)
	// Region is overridable with MOTO_REGION.
	Region = envOr("MOTO_REGION", DefaultRegion)

	sharedOnce   sync.Once
	sharedClient *s3.Client
	sharedErr    error
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func motoAPI(ctx context.Context, method, path string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, Endpoint+"/moto-api/"+path, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// Available reports whether moto answers within two seconds.
func Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	status, err := motoAPI(ctx, http.MethodGet, "")
	return err == nil && status == http.StatusOK
}

// SkipIfUnavailable skips t when moto is not running.
func SkipIfUnavailable(t *testing.T) {
	t.Helper()
	if !Available() {
		t.Skipf("moto not reachable at %s", Endpoint)
	}
}

// ResetT drops every bucket moto holds.
func ResetT(t *testing.T, ctx context.Context) {
	t.Helper()
	status, err := motoAPI(ctx, http.MethodPost, "reset")
	if err != nil {
		t.Fatalf("reset moto: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("reset moto: status %d", status)
	}
}

// ClientT returns a path-style S3 client bound to moto.
func ClientT(t *testing.T) *s3.Client {
	t.Helper()
	sharedOnce.Do(func() {
		cfg, err := config.LoadDefaultConfig(context.Background(),
			config.WithRegion(Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				TestAccessKeyID, TestSecretAccessKey, "")),
		)
		if err != nil {
			sharedErr = fmt.Errorf("load aws config: %w", err)
			return
		}
		sharedClient = s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(Endpoint)
			o.UsePathStyle = true
		})
	})
	if sharedErr != nil {
		t.Fatalf("moto client: %v", sharedErr)
	}
	return sharedClient
}

// bucketName derives a valid, unique bucket name from the test name.
func bucketName(t *testing.T) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(t.Name()))
	name = strings.Trim(name, "-")
	if len(name) > 48 {
		name = name[:48]
	}
	return fmt.Sprintf("nv-%s-%d", name, time.Now().UnixNano()%100000)
}

// CreateBucket creates an empty bucket that is emptied and removed when t ends.
func CreateBucket(t *testing.T, ctx context.Context) string {
	t.Helper()
	name := bucketName(t)
	if _, err := ClientT(t).CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)}); err != nil {
		t.Fatalf("create bucket %s: %v", name, err)
	}
	t.Cleanup(func() { removeBucket(t, name) })
	return name
}

func removeBucket(t *testing.T, bucket string) {
	ctx := context.Background()
	c := ClientT(t)

	pages := s3.NewListObjectsV2Paginator(c, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			t.Logf("list %s for cleanup: %v", bucket, err)
			return
		}
		if len(page.Contents) == 0 {
			continue
		}
		ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
		for _, obj := range page.Contents {
			ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
		}
		if _, err := c.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		}); err != nil {
			t.Logf("empty %s: %v", bucket, err)
		}
	}
	if _, err := c.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		t.Logf("delete bucket %s: %v", bucket, err)
	}
}

// PutObjects uploads one object per key; each body names its key.
func PutObjects(t *testing.T, ctx context.Context, bucket string, keys []string) {
	t.Helper()
	tree := make(map[string]string, len(keys))
	for _, k := range keys {
		tree[k] = "object " + k
	}
	PutTree(t, ctx, bucket, tree)
}

// PutTree uploads key to body pairs in key order.
func PutTree(t *testing.T, ctx context.Context, bucket string, tree map[string]string) {
	t.Helper()
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	c := ClientT(t)
	for _, k := range keys {
		if _, err := c.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(k),
			Body:   bytes.NewReader([]byte(tree[k])),
		}); err != nil {
			t.Fatalf("put %s/%s: %v", bucket, k, err)
		}
	}
}

// SiteTree is a small static-site layout: a root page, nested docs, an
// image folder and the reserved view/ folder browsers hide.
var SiteTree = map[string]string{
	"index.html":        "<html>home</html>",
	"docs/a.md":         "alpha",
	"docs/b.md":         "bravo!",
	"docs/api/ref.html": "<html>ref</html>",
	"img/logo.png":      "png",
	"view/index.html":   "<html>viewer</html>",
}

// SeedSite creates a bucket holding SiteTree and returns its name.
func SeedSite(t *testing.T, ctx context.Context) string {
	t.Helper()
	bucket := CreateBucket(t, ctx)
	PutTree(t, ctx, bucket, SiteTree)
	return bucket
}
