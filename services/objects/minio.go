package objectsvc

import (
	"context"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/course"
)

const imagePrefix = "courses/"

// ImageStore keeps course images in an S3 compatible bucket.
type ImageStore struct {
	client  *minio.Client
	bucket  string
	baseURL string
	logger  core.Logger
}

var _ course.ImageUploader = (*ImageStore)(nil)

// NewImageStore connects to the object storage and creates the bucket when missing.
func NewImageStore(ctx context.Context, conf *core.Config, logger core.Logger) (*ImageStore, error) {
	oc := conf.Objects
	client, err := minio.New(oc.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(oc.AccessKeyID, oc.SecretAccessKey, ""),
		Secure: oc.UseSSL,
		Region: oc.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "initializing object storage client")
	}

	exists, err := client.BucketExists(ctx, oc.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "checking bucket %s", oc.Bucket)
	}
	if !exists {
		if err = client.MakeBucket(ctx, oc.Bucket, minio.MakeBucketOptions{Region: oc.Region}); err != nil {
			return nil, errors.Wrapf(err, "creating bucket %s", oc.Bucket)
		}
		logger.Info("created bucket " + oc.Bucket)
	}

	return &ImageStore{
		client:  client,
		bucket:  oc.Bucket,
		baseURL: publicBaseURL(oc),
		logger:  logger,
	}, nil
}

// publicBaseURL is where the objects of the bucket are served from.
func publicBaseURL(oc core.ObjectsConfig) string {
	if oc.PublicBaseURL != "" {
		return strings.TrimRight(oc.PublicBaseURL, "/")
	}
	scheme := "http"
	if oc.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + oc.Endpoint + "/" + oc.Bucket
}

// ObjectName returns a unique object name keeping the extension of filename.
func ObjectName(filename string) string {
	return imagePrefix + uuid.New().String() + strings.ToLower(path.Ext(filename))
}

func (s *ImageStore) UploadImage(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	obj := ObjectName(name)
	ct := mime.TypeByExtension(path.Ext(obj))
	if ct == "" {
		ct = "application/octet-stream"
	}

	info, err := s.client.PutObject(ctx, s.bucket, obj, r, size, minio.PutObjectOptions{ContentType: ct})
	if err != nil {
		return "", errors.Wrapf(err, "uploading %s", obj)
	}
	s.logger.Debug("uploaded course image", map[string]interface{}{"key": info.Key, "size": info.Size})
	return s.URL(obj), nil
}

// URL returns the public URL of obj.
func (s *ImageStore) URL(obj string) string {
	return s.baseURL + "/" + (&url.URL{Path: obj}).EscapedPath()
}
