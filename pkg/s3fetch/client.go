// Package s3fetch reads input objects from S3.
package s3fetch

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client reads objects using the default AWS credential chain.
type Client struct {
	s3Client *s3.Client
}

// NewClient creates a new S3 client using default AWS configuration.
func NewClient(ctx context.Context) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewClientWithConfig(cfg), nil
}

// NewClientWithConfig creates a new S3 client with a custom AWS config.
func NewClientWithConfig(cfg aws.Config, optFns ...func(*s3.Options)) *Client {
	return &Client{s3Client: s3.NewFromConfig(cfg, optFns...)}
}

// Object is an open object body. Size is -1 when S3 did not report a
// content length.
type Object struct {
	Body io.ReadCloser
	Size int64
}

// StreamObject opens an object for reading. The caller closes Body.
func (c *Client) StreamObject(ctx context.Context, bucket, key string) (*Object, error) {
	resp, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
	}
	size := int64(-1)
	if resp.ContentLength != nil {
		size = *resp.ContentLength
	}
	return &Object{Body: resp.Body, Size: size}, nil
}
