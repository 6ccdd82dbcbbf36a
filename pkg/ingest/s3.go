package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	pmerrors "github.com/logflow/pmdash/pkg/errors"
)

const s3Scheme = "s3://"

// S3Config holds client settings for s3:// sources. Credentials come
// from the default AWS chain unless AccessKeyID is set.
type S3Config struct {
	Region       string
	Endpoint     string
	UsePathStyle bool

	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// IsS3URI reports whether uri names an S3 object.
func IsS3URI(uri string) bool {
	return strings.HasPrefix(uri, s3Scheme)
}

// ParseS3URI splits s3://bucket/key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(uri, s3Scheme)
	if rest == uri {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri must be s3://bucket/key: %q", uri)
	}
	return bucket, key, nil
}

func newS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// downloadS3 copies the object to a temporary file keeping the key's
// extension. The caller removes the file.
func downloadS3(ctx context.Context, cfg S3Config, uri string) (string, error) {
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return "", pmerrors.Wrap(err, pmerrors.CodeInvalidFormat, "invalid source")
	}

	client, err := newS3Client(ctx, cfg)
	if err != nil {
		return "", pmerrors.Wrap(err, pmerrors.CodeParseFailed, "s3 client")
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return "", pmerrors.FileNotFound(uri)
		}
		return "", pmerrors.Wrap(err, pmerrors.CodeParseFailed, "s3 get object").
			WithContext("bucket", bucket).
			WithContext("key", key)
	}
	defer out.Body.Close()

	tmp, err := os.CreateTemp("", "pmdash-*"+path.Ext(key))
	if err != nil {
		return "", pmerrors.Wrap(err, pmerrors.CodeParseFailed, "s3 temp file")
	}
	if _, err := io.Copy(tmp, out.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", pmerrors.Wrap(err, pmerrors.CodeParseFailed, "s3 download").
			WithContext("key", key)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", pmerrors.Wrap(err, pmerrors.CodeParseFailed, "s3 download")
	}
	return tmp.Name(), nil
}
