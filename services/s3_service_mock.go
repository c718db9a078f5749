package services

import (
	"context"
	"fmt"
	"sync"
)

// MockS3Service is a mock ProofImageStore for testing
type MockS3Service struct {
	mu       sync.RWMutex
	issued   map[string]string // key -> order ID
	failWith error
}

// NewMockS3Service creates a new mock S3 service
func NewMockS3Service() *MockS3Service {
	return &MockS3Service{issued: make(map[string]string)}
}

// FailWith makes presign calls return err
func (m *MockS3Service) FailWith(err error) {
	m.mu.Lock()
	m.failWith = err
	m.mu.Unlock()
}

// PresignUpload simulates issuing an upload URL
func (m *MockS3Service) PresignUpload(ctx context.Context, orderID string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return "", "", m.failWith
	}
	key := newProofKey(orderID)
	m.issued[key] = orderID
	return key, fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=put", key), nil
}

// PresignDownload simulates generating a presigned URL
func (m *MockS3Service) PresignDownload(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failWith != nil {
		return "", m.failWith
	}
	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", key), nil
}

// Issued reports whether key was handed out by PresignUpload
func (m *MockS3Service) Issued(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.issued[key]
	return ok
}
