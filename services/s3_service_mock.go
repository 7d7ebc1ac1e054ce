package services

import (
	"context"
	"fmt"
	"sync"
)

// MockS3Service is an in-memory S3Interface for tests
type MockS3Service struct {
	objects      map[string][]byte
	contentTypes map[string]string
	mu           sync.RWMutex

	// UploadErr, when set, is returned by every UploadObject call
	UploadErr error
	// PresignErr, when set, is returned by every GetPresignedURL call
	PresignErr error
}

// NewMockS3Service creates a new mock S3 service
func NewMockS3Service() *MockS3Service {
	return &MockS3Service{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

// SetAsMockForTesting sets this mock as the global S3 service instance for testing
func (m *MockS3Service) SetAsMockForTesting() {
	SetS3Service(m)
}

// UploadObject stores body under key
func (m *MockS3Service) UploadObject(_ context.Context, key, contentType string, body []byte) error {
	if m.UploadErr != nil {
		return m.UploadErr
	}
	if key == "" {
		return fmt.Errorf("object key is empty")
	}

	content := make([]byte, len(body))
	copy(content, body)

	m.mu.Lock()
	m.objects[key] = content
	m.contentTypes[key] = contentType
	m.mu.Unlock()

	return nil
}

// GetPresignedURL returns a fake link for a stored object
func (m *MockS3Service) GetPresignedURL(_ context.Context, key string) (string, error) {
	if m.PresignErr != nil {
		return "", m.PresignErr
	}
	if key == "" {
		return "", nil
	}

	m.mu.RLock()
	_, exists := m.objects[key]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("object not found in mock S3: %s", key)
	}

	return fmt.Sprintf("https://test-bucket.s3.us-east-1.amazonaws.com/%s?mock=true", key), nil
}

// DeleteObject removes a stored object
func (m *MockS3Service) DeleteObject(_ context.Context, key string) error {
	if key == "" {
		return nil
	}

	m.mu.Lock()
	delete(m.objects, key)
	delete(m.contentTypes, key)
	m.mu.Unlock()

	return nil
}

// GetUploadedFiles returns a copy of every stored object
func (m *MockS3Service) GetUploadedFiles() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	files := make(map[string][]byte, len(m.objects))
	for k, v := range m.objects {
		files[k] = v
	}
	return files
}

// ContentType returns the content type an object was uploaded with
func (m *MockS3Service) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.contentTypes[key]
}

// FileExists checks if an object exists in mock storage
func (m *MockS3Service) FileExists(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.objects[key]
	return exists
}

// Clear removes all objects from mock storage
func (m *MockS3Service) Clear() {
	m.mu.Lock()
	m.objects = make(map[string][]byte)
	m.contentTypes = make(map[string]string)
	m.mu.Unlock()
}
