package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/afero"

	"github.com/conneroisu/cascade/internal/errors"
)

// Sink stores reports.
type Sink interface {
	Write(ctx context.Context, r *Report) error
}

// FileSink writes the report to a file, encoded by its extension.
type FileSink struct {
	fs   afero.Fs
	path string
}

// NewFileSink creates a sink writing to path.
func NewFileSink(fs afero.Fs, path string) *FileSink {
	return &FileSink{fs: fs, path: path}
}

// Write implements Sink.
func (s *FileSink) Write(_ context.Context, r *Report) error {
	data, err := r.Encode(FormatFor(s.path))
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeReportFailed, "encoding report").WithFile(s.path)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.WrapIO(err, errors.ErrCodeReportFailed, "creating report directory").WithFile(s.path)
		}
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o644); err != nil {
		return errors.WrapIO(err, errors.ErrCodeReportFailed, "writing report").WithFile(s.path)
	}
	return nil
}

// ObjectConfig locates the bucket reports are uploaded to.
type ObjectConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Enabled reports whether an endpoint is configured.
func (c ObjectConfig) Enabled() bool {
	return c.Endpoint != ""
}

// Validate checks that the configuration is usable.
func (c ObjectConfig) Validate() error {
	switch {
	case c.Endpoint == "":
		return fmt.Errorf("object store endpoint is required")
	case c.Bucket == "":
		return fmt.Errorf("object store bucket is required")
	case c.AccessKey == "" || c.SecretKey == "":
		return fmt.Errorf("object store credentials are required")
	}
	return nil
}

// objectStore is the subset of *minio.Client the sink uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// ObjectSink uploads reports as `<prefix>/<run id>.json`.
type ObjectSink struct {
	client objectStore
	cfg    ObjectConfig
}

// NewObjectSink connects to the configured endpoint.
func NewObjectSink(cfg ObjectConfig) (*ObjectSink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "report object store")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.WrapNetwork(err, errors.ErrCodeReportFailed, "creating object store client")
	}
	return &ObjectSink{client: client, cfg: cfg}, nil
}

// Key returns the object name of r.
func (s *ObjectSink) Key(r *Report) string {
	return path.Join(s.cfg.Prefix, r.RunID+".json")
}

// Write implements Sink. The bucket is created when missing.
func (s *ObjectSink) Write(ctx context.Context, r *Report) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return errors.WrapNetwork(err, errors.ErrCodeReportFailed, "checking report bucket")
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return errors.WrapNetwork(err, errors.ErrCodeReportFailed, "creating report bucket")
		}
	}

	data, err := r.Encode(FormatJSON)
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeReportFailed, "encoding report")
	}
	_, err = s.client.PutObject(ctx, s.cfg.Bucket, s.Key(r), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: FormatJSON.ContentType()})
	if err != nil {
		return errors.WrapNetwork(err, errors.ErrCodeReportFailed, "uploading report")
	}
	return nil
}

// Multi writes to every sink, stopping at the first failure.
type Multi []Sink

// Write implements Sink.
func (m Multi) Write(ctx context.Context, r *Report) error {
	for _, s := range m {
		if err := s.Write(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
