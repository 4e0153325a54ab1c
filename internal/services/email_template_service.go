package services

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"idleassets/api/internal/models"
)

// Email template identifiers.
const (
	TemplateWelcome             = "welcome"
	TemplateRentalStatusChanged = "rental_status_changed"
	TemplateNewMessage          = "new_message"
)

// DefaultLocale is used when a recipient has no stored preference.
const DefaultLocale = "en-US"

// Fallbacks for templates that have not been stored yet.
var defaultEmailTemplates = map[string]models.EmailTemplate{
	TemplateWelcome: {
		TemplateID: TemplateWelcome,
		Locale:     DefaultLocale,
		Subject:    "Welcome to IdleAssets",
		Body:       "Hi {{.name}}, your account is ready. Start browsing at {{.link}}",
	},
	TemplateRentalStatusChanged: {
		TemplateID: TemplateRentalStatusChanged,
		Locale:     DefaultLocale,
		Subject:    "Your rental of {{.listing}} is now {{.status}}",
		Body:       "Hi {{.name}}, the rental of {{.listing}} changed to {{.status}}. Details: {{.link}}",
	},
	TemplateNewMessage: {
		TemplateID: TemplateNewMessage,
		Locale:     DefaultLocale,
		Subject:    "New message about {{.listing}}",
		Body:       "Hi {{.name}}, you have a new message about {{.listing}}. Reply at {{.link}}",
	},
}

// IEmailTemplateService defines the interface for email template operations.
type IEmailTemplateService interface {
	GetTemplate(ctx context.Context, templateID, locale string) (*models.EmailTemplate, error)
	SaveTemplate(ctx context.Context, template *models.EmailTemplate) error
	DeleteTemplate(ctx context.Context, templateID, locale string) error
}

const emailTemplatesCollection = "email_templates"

// EmailTemplateService handles operations related to email templates
type EmailTemplateService struct {
	db *mongo.Database
}

func NewEmailTemplateService(db *mongo.Database) *EmailTemplateService {
	return &EmailTemplateService{db: db}
}

// GetTemplate retrieves an email template by ID and locale, falling back to
// the built-in default when none is stored.
func (s *EmailTemplateService) GetTemplate(ctx context.Context, templateID string, locale string) (*models.EmailTemplate, error) {
	if locale == "" {
		locale = DefaultLocale
	}
	filter := bson.M{"template_id": templateID, "locale": locale}

	var template models.EmailTemplate
	err := s.db.Collection(emailTemplatesCollection).FindOne(ctx, filter).Decode(&template)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if t, ok := DefaultEmailTemplate(templateID); ok {
			return t, nil
		}
		return nil, fmt.Errorf("template not found: %s (locale: %s)", templateID, locale)
	}
	if err != nil {
		return nil, fmt.Errorf("error retrieving template: %w", err)
	}
	return &template, nil
}

// DefaultEmailTemplate returns a copy of the built-in template.
func DefaultEmailTemplate(templateID string) (*models.EmailTemplate, bool) {
	t, ok := defaultEmailTemplates[templateID]
	if !ok {
		return nil, false
	}
	return &t, true
}

// SaveTemplate upserts a template keyed by template_id and locale.
func (s *EmailTemplateService) SaveTemplate(ctx context.Context, template *models.EmailTemplate) error {
	if template.TemplateID == "" {
		return fmt.Errorf("%w: template_id is required", ErrInvalidInput)
	}
	if template.Locale == "" {
		template.Locale = DefaultLocale
	}
	template.GenIDIfEmpty()
	filter := bson.M{"template_id": template.TemplateID, "locale": template.Locale}
	update := bson.M{
		"$set":         bson.M{"subject": template.Subject, "body": template.Body},
		"$setOnInsert": bson.M{"_id": template.ID},
	}
	_, err := s.db.Collection(emailTemplatesCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error saving template: %w", err)
	}
	return nil
}

func (s *EmailTemplateService) DeleteTemplate(ctx context.Context, templateID string, locale string) error {
	filter := bson.M{"template_id": templateID, "locale": locale}
	if _, err := s.db.Collection(emailTemplatesCollection).DeleteOne(ctx, filter); err != nil {
		return fmt.Errorf("error deleting template: %w", err)
	}
	return nil
}
