// Package s3store は S3 互換オブジェクトストレージ（RunPod ネットワークボリューム）の ObjectStore 実装です
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

// deleteBatchSize は DeleteObjects 1回あたりのキー数上限です
const deleteBatchSize = 1000

// DefaultTimeout は1回の操作の既定タイムアウトです
const DefaultTimeout = 60 * time.Second

// Config は S3 接続設定です
type Config struct {
	Region    string
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Timeout   time.Duration
}

// Store は S3 を使う ObjectStore です
type Store struct {
	s3      *s3.S3
	bucket  string
	timeout time.Duration
}

var _ domain.ObjectStore = (*Store)(nil)

// New は静的な認証情報とパス形式のアドレッシングでクライアントを作成します
func New(cfg Config) (*Store, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: bucket and credentials are required", domain.ErrConfiguration)
	}
	endpoint := cfg.Endpoint
	if endpoint == "" && cfg.Region != "" {
		endpoint = fmt.Sprintf("https://s3api-%s.runpod.io", cfg.Region)
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsConf := &aws.Config{
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		Region:           aws.String(region),
		S3ForcePathStyle: aws.Bool(true),
	}
	if endpoint != "" {
		awsConf.Endpoint = aws.String(endpoint)
	}
	sess, err := session.NewSession(awsConf)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create session: %w", domain.ErrConfiguration, err)
	}

	return NewWithClient(s3.New(sess), cfg.Bucket, cfg.Timeout), nil
}

// NewWithClient は既存の S3 クライアントから Store を作成します
func NewWithClient(client *s3.S3, bucket string, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{s3: client, bucket: bucket, timeout: timeout}
}

func (s *Store) Bucket() string { return s.bucket }

func (s *Store) Location(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   &contentType,
	})
	if err != nil {
		return "", classify(fmt.Errorf("failed to put %s: %w", key, err))
	}
	return s.Location(key), nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	obj, err := s.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, key)
		}
		return nil, classify(fmt.Errorf("failed to get %s: %w", key, err))
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Walk は ListObjectsV2 のページを順にたどります。タイムアウトはページごとに適用します。
func (s *Store) Walk(ctx context.Context, prefix string, fn func(domain.ObjectInfo) error) error {
	var cbErr error
	err := s.s3.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: &prefix,
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			info := domain.ObjectInfo{
				Key:          aws.StringValue(obj.Key),
				Size:         aws.Int64Value(obj.Size),
				LastModified: aws.TimeValue(obj.LastModified),
			}
			if err := fn(info); err != nil {
				cbErr = err
				return false
			}
		}
		return true
	}, s.requestTimeout())
	if cbErr != nil {
		if errors.Is(cbErr, domain.ErrStopWalk) {
			return nil
		}
		return cbErr
	}
	if err != nil {
		if isCanceled(err) && ctx.Err() == nil {
			return fmt.Errorf("%w: list %s timed out after %s: %w", domain.ErrConnectivity, prefix, s.timeout, err)
		}
		return classify(fmt.Errorf("failed to list %s: %w", prefix, err))
	}
	return nil
}

// requestTimeout は1リクエストごとに s.timeout を設定するオプションです
func (s *Store) requestTimeout() request.Option {
	return func(r *request.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		r.SetContext(ctx)
		r.Handlers.Complete.PushBack(func(*request.Request) { cancel() })
	}
}

func isCanceled(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == request.CanceledErrorCode
}

// DeleteMany は1000件ずつ DeleteObjects を発行します。NoSuchKey は削除済みとして数えます。
func (s *Store) DeleteMany(ctx context.Context, keys []string) (int, []domain.DeleteError, error) {
	var (
		deleted int
		failed  []domain.DeleteError
	)
	for start := 0; start < len(keys); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(keys))
		batch := keys[start:end]

		ids := make([]*s3.ObjectIdentifier, 0, len(batch))
		for _, key := range batch {
			ids = append(ids, &s3.ObjectIdentifier{Key: aws.String(key)})
		}

		out, err := s.deleteBatch(ctx, ids)
		if err != nil {
			return deleted, failed, classify(fmt.Errorf("failed to delete objects: %w", err))
		}

		deleted += len(out.Deleted)
		for _, e := range out.Errors {
			code := aws.StringValue(e.Code)
			if code == s3.ErrCodeNoSuchKey {
				deleted++
				continue
			}
			failed = append(failed, domain.DeleteError{
				Key:     aws.StringValue(e.Key),
				Code:    code,
				Message: aws.StringValue(e.Message),
			})
		}
	}
	return deleted, failed, nil
}

func (s *Store) deleteBatch(ctx context.Context, ids []*s3.ObjectIdentifier) (*s3.DeleteObjectsOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.s3.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
		Bucket: &s.bucket,
		Delete: &s3.Delete{Objects: ids, Quiet: aws.Bool(false)},
	})
}

func isNotFound(err error) bool {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) && reqErr.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}

// classify はネットワーク到達不能を ErrConnectivity に、認証失敗を ErrConfiguration に分類します
func classify(err error) error {
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		switch reqErr.StatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
		}
		return err
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) && aerr.Code() == request.ErrCodeRequestError {
		return fmt.Errorf("%w: %w", domain.ErrConnectivity, err)
	}
	return err
}
