// Package s3 is a thin object-storage wrapper used to mirror the catalog
// and keep the raw reference images that fingerprints were computed from.
package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"critterlens/internal"
)

type Client interface {
	PutBytes(ctx context.Context, key string, b []byte, contentType string) error

	// ReadJSON unmarshals the object at key into out; the bool reports
	// whether the object existed.
	ReadJSON(ctx context.Context, key string, out any) (bool, error)
	WriteJSON(ctx context.Context, key string, v any) error
}

type s3Client struct {
	bucket string
	api    *awss3.Client
}

func New(cfg internal.Config) (Client, error) {
	endpoint := cfg.S3Endpoint
	forcePathStyle := !strings.Contains(endpoint, "amazonaws.com")

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.UsePathStyle = forcePathStyle
		o.BaseEndpoint = &endpoint
	})

	return &s3Client{bucket: cfg.S3Bucket, api: client}, nil
}

func (c *s3Client) PutBytes(ctx context.Context, key string, b []byte, contentType string) error {
	_, err := c.api.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      &c.bucket,
		Key:         &key,
		Body:        bytes.NewReader(b),
		ContentType: &contentType,
	})
	return err
}

func (c *s3Client) getBytes(ctx context.Context, key string) ([]byte, error) {
	out, err := c.api.GetObject(ctx, &awss3.GetObjectInput{Bucket: &c.bucket, Key: &key})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, errNotExist
		}
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (c *s3Client) ReadJSON(ctx context.Context, key string, out any) (bool, error) {
	b, err := c.getBytes(ctx, key)
	if err != nil {
		if errors.Is(err, errNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, json.Unmarshal(b, out)
}

func (c *s3Client) WriteJSON(ctx context.Context, key string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return c.PutBytes(ctx, key, b, "application/json")
}

var errNotExist = errors.New("not exist")
