// Package publish uploads release artifacts to S3-compatible object storage.
package publish

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"github.com/relicrush/relicpack/internal/config"
	apperr "github.com/relicrush/relicpack/internal/errors"
)

// ObjectStore is the subset of *minio.Client used for publishing.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploaded describes one stored object.
type Uploaded struct {
	File        string `json:"file"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// NewClient connects to the endpoint in cfg with static credentials.
func NewClient(cfg config.PublishConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, apperr.Wrap(apperr.CodeConfigInvalid, "publish is not configured", fmt.Errorf("publish.endpoint and publish.bucket are required"))
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, apperr.Wrap(apperr.CodeConfigInvalid, "publish credentials missing",
			fmt.Errorf("set %s and %s", config.EnvS3AccessKey, config.EnvS3SecretKey))
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.IsSecure(),
		Region: cfg.Region,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeConfigInvalid, "create storage client", err)
	}
	return client, nil
}

// ObjectKey is where a file for version is stored: <prefix>/<version>/<name>.
func ObjectKey(prefix, version, file string) string {
	return path.Join(strings.Trim(prefix, "/"), version, filepath.Base(file))
}

var contentTypes = map[string]string{
	".exe": "application/vnd.microsoft.portable-executable",
	".zip": "application/zip",
	".asc": "application/pgp-signature",
	".iss": "text/plain; charset=utf-8",
}

// ContentType picks the upload content type from the file name.
func ContentType(file string) string {
	base := filepath.Base(file)
	if strings.EqualFold(base, "SHA256SUMS") {
		return "text/plain; charset=utf-8"
	}
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(base))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Upload stores files under <prefix>/<version>/ after checking the bucket exists.
// It stops at the first failure.
func Upload(ctx context.Context, store ObjectStore, bucket, prefix, version string, files []string) ([]Uploaded, error) {
	ok, err := store.BucketExists(ctx, bucket)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodePublishFailed, "check bucket "+bucket, err)
	}
	if !ok {
		return nil, apperr.New(apperr.ExitFailure, apperr.CodePublishFailed, "bucket does not exist", nil).
			WithDetail("bucket", bucket)
	}

	var out []Uploaded
	for _, f := range files {
		key := ObjectKey(prefix, version, f)
		ct := ContentType(f)
		info, err := store.FPutObject(ctx, bucket, key, f, minio.PutObjectOptions{ContentType: ct})
		if err != nil {
			return out, apperr.Wrap(apperr.CodePublishFailed, "upload "+filepath.Base(f), err)
		}
		log.Infof("uploaded %s to %s/%s (%d bytes)", filepath.Base(f), bucket, key, info.Size)
		out = append(out, Uploaded{File: f, Key: key, Size: info.Size, ContentType: ct})
	}
	return out, nil
}
