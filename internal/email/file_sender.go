package email

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileEmailSender appends every email to a local file as one JSON object per
// line, for inspecting outgoing mail during development.
type FileEmailSender struct {
	mu       sync.Mutex
	filePath string
}

type loggedEmail struct {
	LoggedAt   string   `json:"logged_at"`
	To         []string `json:"to"`
	Subject    string   `json:"subject"`
	TemplateID string   `json:"template_id"`
	Message    string   `json:"message"`
}

// NewFileEmailSender creates the file's directory if needed.
func NewFileEmailSender(filePath string) (Sender, error) {
	if strings.TrimSpace(filePath) == "" {
		return nil, fmt.Errorf("email log file path cannot be empty")
	}
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for email log %s: %w", dir, err)
	}
	return &FileEmailSender{filePath: filePath}, nil
}

func (s *FileEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	line, err := json.Marshal(loggedEmail{
		LoggedAt:   time.Now().UTC().Format(time.RFC3339Nano),
		To:         to,
		Subject:    subject,
		TemplateID: templateOf(rawMessage),
		Message:    string(rawMessage),
	})
	if err != nil {
		return fmt.Errorf("failed to encode email for %s: %w", s.filePath, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	file, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open email log %s: %w", s.filePath, err)
	}
	defer file.Close()
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append to email log %s: %w", s.filePath, err)
	}
	return nil
}
