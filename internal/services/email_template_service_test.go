package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"idleassets/api/internal/models"
)

func TestDefaultEmailTemplate_ReturnsCopy(t *testing.T) {
	tmpl, ok := DefaultEmailTemplate(TemplateRentalStatusChanged)
	require.True(t, ok)
	tmpl.Subject = "changed"

	again, _ := DefaultEmailTemplate(TemplateRentalStatusChanged)
	assert.NotEqual(t, "changed", again.Subject)

	_, ok = DefaultEmailTemplate("unknown")
	assert.False(t, ok)
}

func TestEmailTemplateService_SaveGetDelete(t *testing.T) {
	env := setupTestEnv(t, "testdb_email_template_service")
	svc := NewEmailTemplateService(env.db)
	ctx := context.Background()

	fallback, err := svc.GetTemplate(ctx, TemplateWelcome, "")
	require.NoError(t, err)
	assert.Equal(t, "Welcome to IdleAssets", fallback.Subject)

	_, err = svc.GetTemplate(ctx, "unknown", DefaultLocale)
	assert.Error(t, err)

	custom := &models.EmailTemplate{TemplateID: TemplateWelcome, Subject: "Hello {{.name}}", Body: "Body"}
	require.NoError(t, svc.SaveTemplate(ctx, custom))
	require.NoError(t, svc.SaveTemplate(ctx, &models.EmailTemplate{TemplateID: TemplateWelcome, Subject: "Hi {{.name}}", Body: "Body 2"}))

	stored, err := svc.GetTemplate(ctx, TemplateWelcome, DefaultLocale)
	require.NoError(t, err)
	assert.Equal(t, "Hi {{.name}}", stored.Subject)
	assert.Equal(t, custom.ID, stored.ID)

	require.NoError(t, svc.DeleteTemplate(ctx, TemplateWelcome, DefaultLocale))
	stored, err = svc.GetTemplate(ctx, TemplateWelcome, DefaultLocale)
	require.NoError(t, err)
	assert.Equal(t, "Welcome to IdleAssets", stored.Subject)

	assert.ErrorIs(t, svc.SaveTemplate(ctx, &models.EmailTemplate{}), ErrInvalidInput)
}
