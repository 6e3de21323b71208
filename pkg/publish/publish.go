// Package publish writes run outputs to a local directory or a bucket URL.
package publish

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver

	"github.com/eunmann/agesplit/internal/logctx"
	"github.com/eunmann/agesplit/pkg/fileutil"
)

var bucketSchemes = map[string]bool{"s3": true, "gs": true, "file": true}

// Publisher writes named objects under one destination.
type Publisher struct {
	dest   string
	dir    string
	bucket *blob.Bucket
}

// IsBucketURL reports whether dest is handled through a blob bucket.
func IsBucketURL(dest string) bool {
	u, err := url.Parse(dest)
	return err == nil && bucketSchemes[u.Scheme]
}

// Open prepares dest. A plain path is a local directory; s3://bucket/prefix,
// gs://bucket/prefix and file:///dir are opened as blob buckets.
func Open(ctx context.Context, dest string) (*Publisher, error) {
	if dest == "" {
		dest = "."
	}
	if !IsBucketURL(dest) {
		return &Publisher{dest: dest, dir: dest}, nil
	}

	bucketURL, prefix, err := splitBucketURL(dest)
	if err != nil {
		return nil, err
	}
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", bucketURL, err)
	}
	if prefix != "" {
		bucket = blob.PrefixedBucket(bucket, prefix+"/")
	}
	return &Publisher{dest: strings.TrimSuffix(dest, "/"), bucket: bucket}, nil
}

// splitBucketURL separates the object prefix from a bucket URL. file URLs
// name a directory and carry no prefix.
func splitBucketURL(dest string) (string, string, error) {
	u, err := url.Parse(dest)
	if err != nil {
		return "", "", fmt.Errorf("parse destination %q: %w", dest, err)
	}
	if u.Scheme == "file" {
		if err := os.MkdirAll(filepath.FromSlash(u.Path), 0o755); err != nil {
			return "", "", fmt.Errorf("create output dir: %w", err)
		}
		return dest, "", nil
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("destination %q: missing bucket name", dest)
	}
	prefix := strings.Trim(u.Path, "/")
	u.Path = ""
	return u.String(), prefix, nil
}

// Put writes data as name and returns where it landed.
func (p *Publisher) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	log := logctx.FromContext(ctx)

	if p.bucket == nil {
		target := filepath.Join(p.dir, name)
		if fileutil.Exists(target) {
			log.Debug().Str("path", target).Msg("replacing existing file")
		}
		if err := fileutil.WriteFileAtomic(target, data, 0o644); err != nil {
			return "", err
		}
		log.Debug().Str("path", target).Int("bytes", len(data)).Msg("file written")
		return target, nil
	}

	w, err := p.bucket.NewWriter(ctx, name, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("create writer for %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer for %s: %w", name, err)
	}

	location := p.dest + "/" + path.Clean(name)
	log.Debug().Str("location", location).Int("bytes", len(data)).Msg("object written")
	return location, nil
}

// Close releases the bucket connection.
func (p *Publisher) Close() error {
	if p.bucket != nil {
		return p.bucket.Close()
	}
	return nil
}
