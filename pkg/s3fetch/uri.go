package s3fetch

import (
	"errors"
	"strings"
)

// Scheme is the URI prefix recognised as an S3 location.
const Scheme = "s3://"

// IsS3URI reports whether uri names an S3 location.
func IsS3URI(uri string) bool {
	return strings.HasPrefix(uri, Scheme)
}

// ParseS3URI parses s3://bucket/key. The key may be empty; callers that
// need an object check it themselves.
func ParseS3URI(uri string) (bucket, key string, err error) {
	if !IsS3URI(uri) {
		return "", "", errors.New("invalid S3 URI: must start with s3://")
	}

	bucket, key, _ = strings.Cut(strings.TrimPrefix(uri, Scheme), "/")
	if bucket == "" {
		return "", "", errors.New("invalid S3 URI: missing bucket name")
	}
	return bucket, key, nil
}

// ParseObjectURI is ParseS3URI for URIs that must name an object.
func ParseObjectURI(uri string) (bucket, key string, err error) {
	bucket, key, err = ParseS3URI(uri)
	if err != nil {
		return "", "", err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return "", "", errors.New("invalid S3 URI: missing object key")
	}
	return bucket, key, nil
}
