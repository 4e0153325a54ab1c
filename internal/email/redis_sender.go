package email

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/textproto"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"idleassets/api/internal/config"
)

// TemplateHeader names the template an email was rendered from.
const TemplateHeader = "X-Idleassets-Template"

// MockEmailKeyPrefix prefixes the Redis keys written by RedisSender.
const MockEmailKeyPrefix = "mockemail:"

const mockEmailTTL = 5 * time.Minute

// RedisSender stores emails in Redis so tests can read them back through the
// service API.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{client: client, cfg: cfg}
}

// MockEmailKey is where the latest email of a template to an address is kept.
func MockEmailKey(to, templateID string) string {
	return fmt.Sprintf("%s%s:%s", MockEmailKeyPrefix, to, templateID)
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	templateID := templateOf(rawMessage)

	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	jsonData, err := json.Marshal(map[string]interface{}{
		"to":          strings.Join(to, ", "),
		"from":        s.cfg.SmtpFromAddress,
		"subject":     subject,
		"body":        string(rawMessage),
		"sent_at":     time.Now().UTC().Format(time.RFC3339Nano),
		"template_id": templateID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := MockEmailKey(primaryTo, templateID)
	if err := s.client.Set(ctx, key, jsonData, mockEmailTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}

	log.Printf("Mock email stored in Redis key '%s' (TTL: %v, To: %s, Subject: %s)", key, mockEmailTTL, strings.Join(to, ", "), subject)
	return nil
}

// templateOf reads TemplateHeader from a raw message, or "unknown".
func templateOf(rawMessage []byte) string {
	reader := textproto.NewReader(bufio.NewReader(bytes.NewReader(rawMessage)))
	header, err := reader.ReadMIMEHeader()
	if err != nil || header.Get(TemplateHeader) == "" {
		return "unknown"
	}
	return header.Get(TemplateHeader)
}
