package services

import (
	"context"
	"sync"
)

// SentEmail is a message captured by MockEmailService
type SentEmail struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// MockEmailService is an in-memory EmailSender for testing
type MockEmailService struct {
	mu   sync.Mutex
	sent []SentEmail
	err  error
}

// NewMockEmailService creates a new mock email service
func NewMockEmailService() *MockEmailService {
	return &MockEmailService{}
}

// FailWith makes every subsequent send return err
func (m *MockEmailService) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// SendEmail records the message
func (m *MockEmailService) SendEmail(ctx context.Context, to, subject, plainTextContent, htmlContent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, SentEmail{To: to, Subject: subject, Text: plainTextContent, HTML: htmlContent})
	return nil
}

// Sent returns a copy of every captured message
func (m *MockEmailService) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SentEmail, len(m.sent))
	copy(out, m.sent)
	return out
}
