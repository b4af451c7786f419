package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

var sseAlgorithm = "AES256"

const (
	metaPatientID = "Patient-Id"
	metaFileName  = "File-Name"
	metaHash      = "Sha256"
	metaCreatedBy = "Created-By"
)

// S3Store keeps objects in an S3 bucket under a fixed prefix. Objects are
// written with server-side encryption.
type S3Store struct {
	client  s3iface.S3API
	bucket  string
	prefix  string
	maxSize int64
}

// NewS3Store opens a session for region using the default credential chain.
func NewS3Store(region, bucket, prefix string, maxSize int64) (*S3Store, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, err
	}
	return newS3Store(s3.New(sess), bucket, prefix, maxSize), nil
}

func newS3Store(client s3iface.S3API, bucket, prefix string, maxSize int64) *S3Store {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &S3Store{client: client, bucket: bucket, prefix: prefix, maxSize: maxSize}
}

func (s *S3Store) path(key string) string {
	return s.prefix + key
}

func (s *S3Store) Put(ctx context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	if err := validateMeta(meta); err != nil {
		return nil, err
	}
	data, hash, err := readLimited(content, s.maxSize)
	if err != nil {
		return nil, err
	}
	contentType := meta.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(s.path(meta.Key)),
		Body:                 bytes.NewReader(data),
		ContentLength:        aws.Int64(int64(len(data))),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: aws.String(sseAlgorithm),
		Metadata: aws.StringMap(map[string]string{
			metaPatientID: meta.PatientID,
			metaFileName:  url.QueryEscape(meta.FileName),
			metaHash:      hash,
			metaCreatedBy: meta.CreatedBy,
		}),
	})
	if err != nil {
		return nil, err
	}

	meta.ContentType = contentType
	meta.Size = int64(len(data))
	meta.Hash = hash
	meta.CreatedAt = time.Now().UTC()
	return &meta, nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, *BlobMetadata, error) {
	obj, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.path(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, err
	}

	meta := &BlobMetadata{
		Key:         key,
		ContentType: aws.StringValue(obj.ContentType),
		Size:        aws.Int64Value(obj.ContentLength),
		CreatedAt:   aws.TimeValue(obj.LastModified),
	}
	md := aws.StringValueMap(obj.Metadata)
	meta.PatientID = md[metaPatientID]
	meta.Hash = md[metaHash]
	meta.CreatedBy = md[metaCreatedBy]
	if name, err := url.QueryUnescape(md[metaFileName]); err == nil && name != "" {
		meta.FileName = name
	} else {
		meta.FileName = key[strings.LastIndex(key, "/")+1:]
	}
	return obj.Body, meta, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.path(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return ErrBlobNotFound
		}
		return err
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.path(key)),
	})
	return err
}

func (s *S3Store) List(ctx context.Context, prefix string) ([]*BlobMetadata, error) {
	var out []*BlobMetadata
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.path(prefix)),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.StringValue(obj.Key), s.prefix)
			out = append(out, &BlobMetadata{
				Key:       key,
				FileName:  key[strings.LastIndex(key, "/")+1:],
				Size:      aws.Int64Value(obj.Size),
				CreatedAt: aws.TimeValue(obj.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	var rerr awserr.RequestFailure
	return errors.As(err, &rerr) && rerr.StatusCode() == 404
}
