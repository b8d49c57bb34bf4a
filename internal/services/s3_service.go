package services

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/logging"
	"github.com/mediavault/backend/internal/config"
)

// S3Service is the storage adapter for originals and derivatives. Put is
// upsert-by-key so pipeline re-runs never orphan objects, and it performs no
// retries of its own - retry policy belongs to the caller.
type S3Service struct {
	client *s3.Client
	cfg    *config.Config
}

func NewS3Service(cfg *config.Config) (*S3Service, error) {
	client, err := buildClient(cfg.MediaS3Endpoint, cfg.MediaS3Region, cfg.MediaS3AccessKeyID, cfg.MediaS3SecretAccessKey, cfg.MediaS3UsePathStyle)
	if err != nil {
		return nil, err
	}
	return &S3Service{client: client, cfg: cfg}, nil
}

func buildClient(endpoint, region, key, secret string, pathStyle bool) (*s3.Client, error) {
	resolver := awsconfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(
		func(service, rgn string, options ...interface{}) (aws.Endpoint, error) {
			if endpoint != "" {
				return aws.Endpoint{URL: endpoint, SigningRegion: region}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		}))
	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")),
		resolver,
		awsconfig.WithLogger(logging.NewStandardLogger(nil)),
	)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = pathStyle
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
	})
	return client, nil
}

// Put uploads a stream under the given key and returns the object URL.
func (s *S3Service) Put(ctx context.Context, r io.Reader, key, contentType string) (string, error) {
	uploader := manager.NewUploader(s.client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &s.cfg.MediaBucket,
		Key:         &key,
		Body:        r,
		ContentType: &contentType,
		ACL:         s3types.ObjectCannedACLPublicRead,
	}, func(u *manager.Uploader) { u.PartSize = 10 * 1024 * 1024 })
	if err != nil {
		return "", err
	}
	return s.ObjectURL(key), nil
}

// PutFile uploads a local file under the given key and returns the object URL.
func (s *S3Service) PutFile(ctx context.Context, localPath, key, contentType string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()
	return s.Put(ctx, f, key, contentType)
}

// DownloadTo fetches the object addressed by a URL into a local file, used by
// the pipeline to bring originals into its scratch dir.
func (s *S3Service) DownloadTo(ctx context.Context, objectURL, destPath string) error {
	key, err := s.KeyFromURL(objectURL)
	if err != nil {
		return err
	}
	f, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	defer f.Close()

	downloader := manager.NewDownloader(s.client)
	if _, err := downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: &s.cfg.MediaBucket,
		Key:    &key,
	}); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("download %s: %w", key, err)
	}
	return nil
}

// Delete removes the object addressed by a URL previously returned from Put.
func (s *S3Service) Delete(ctx context.Context, objectURL string) error {
	key, err := s.KeyFromURL(objectURL)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &s.cfg.MediaBucket,
		Key:    &key,
	})
	return err
}

// ObjectURL builds the publicly resolvable URL for a key.
func (s *S3Service) ObjectURL(key string) string {
	base := s.cfg.MediaPublicURL
	if base == "" {
		base = fmt.Sprintf("%s/%s", strings.TrimRight(s.cfg.MediaS3Endpoint, "/"), s.cfg.MediaBucket)
	}
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), key)
}

// KeyFromURL recovers the storage key from an object URL.
func (s *S3Service) KeyFromURL(objectURL string) (string, error) {
	u, err := url.Parse(objectURL)
	if err != nil {
		return "", fmt.Errorf("parse object URL: %w", err)
	}
	p := strings.TrimPrefix(u.Path, "/")
	// Path-style URLs carry the bucket as the first segment.
	if strings.HasPrefix(p, s.cfg.MediaBucket+"/") {
		p = strings.TrimPrefix(p, s.cfg.MediaBucket+"/")
	}
	if p == "" || p == "." {
		return "", fmt.Errorf("no key in object URL %q", objectURL)
	}
	return path.Clean(p), nil
}
