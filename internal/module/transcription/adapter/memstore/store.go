// Package memstore はプロセス内メモリに保持する ObjectStore です。
// テストと STORAGE_DRIVER=memory でのローカル動作確認に使います。
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jinford/srt-generator/internal/module/transcription/domain"
)

// Object は保存されたオブジェクトです
type Object struct {
	Data         []byte
	ContentType  string
	LastModified time.Time
}

// Store はメモリ上の ObjectStore 実装です
type Store struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]*Object
	now     func() time.Time

	// PutErr が設定されていれば、該当キーへの Put はそのエラーを返します
	PutErr func(key string) error
}

var _ domain.ObjectStore = (*Store)(nil)

// New は空のストアを作成します
func New(bucket string) *Store {
	return &Store{
		bucket:  bucket,
		objects: make(map[string]*Object),
		now:     time.Now,
	}
}

func (s *Store) Bucket() string { return s.bucket }

func (s *Store) Location(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, key)
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.PutErr != nil {
		if err := s.PutErr(key); err != nil {
			return "", err
		}
	}

	s.mu.Lock()
	s.objects[key] = &Object{
		Data:         append([]byte(nil), data...),
		ContentType:  contentType,
		LastModified: s.now().UTC(),
	}
	s.mu.Unlock()

	return s.Location(key), nil
}

// PutObject はテスト用に更新日時を指定して保存します
func (s *Store) PutObject(key string, data []byte, lastModified time.Time) {
	s.mu.Lock()
	s.objects[key] = &Object{Data: append([]byte(nil), data...), LastModified: lastModified}
	s.mu.Unlock()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrObjectNotFound, key)
	}
	return append([]byte(nil), obj.Data...), nil
}

// Object は保存内容を返します
func (s *Store) Object(key string) (*Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Keys は保存済みのキーを昇順で返します
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Walk は S3 の ListObjectsV2 と同じくキーの辞書順で走査します
func (s *Store) Walk(ctx context.Context, prefix string, fn func(domain.ObjectInfo) error) error {
	s.mu.RLock()
	infos := make([]domain.ObjectInfo, 0, len(s.objects))
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, domain.ObjectInfo{
				Key:          key,
				Size:         int64(len(obj.Data)),
				LastModified: obj.LastModified,
			})
		}
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	for _, info := range infos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(info); err != nil {
			if err == domain.ErrStopWalk {
				return nil
			}
			return err
		}
	}
	return nil
}

// DeleteMany は存在しないキーも削除済みとして数えます
func (s *Store) DeleteMany(ctx context.Context, keys []string) (int, []domain.DeleteError, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	s.mu.Lock()
	for _, key := range keys {
		delete(s.objects, key)
	}
	s.mu.Unlock()
	return len(keys), nil, nil
}
