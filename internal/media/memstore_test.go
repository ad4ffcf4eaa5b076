package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

type memObject struct {
	data        []byte
	contentType string
}

// memStore is an in-memory Store for tests.
type memStore struct {
	mu      sync.Mutex
	objects map[string]memObject
	putErr  error
	puts    int
}

func newMemStore() *memStore {
	return &memStore{objects: map[string]memObject{}}
}

func (s *memStore) Put(_ context.Context, bucket, key string, r io.Reader, _ int64, contentType string) (ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return ObjectInfo{}, s.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ObjectInfo{}, err
	}
	s.objects[bucket+"/"+key] = memObject{data: data, contentType: contentType}
	s.puts++
	return ObjectInfo{Bucket: bucket, Key: key, ContentType: contentType, Size: int64(len(data)), LastModified: time.Now()}, nil
}

func (s *memStore) Get(_ context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, ObjectInfo{}, fmt.Errorf("%w: %s/%s", ErrObjectNotFound, bucket, key)
	}
	info := ObjectInfo{Bucket: bucket, Key: key, ContentType: obj.contentType, Size: int64(len(obj.data))}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

func (s *memStore) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	_, info, err := s.Get(ctx, bucket, key)
	return info, err
}

func (s *memStore) Remove(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, bucket+"/"+key)
	return nil
}

func (s *memStore) has(bucket, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[bucket+"/"+key]
	return ok
}

func (s *memStore) count(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.objects {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
