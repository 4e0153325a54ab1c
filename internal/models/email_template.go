package models

// EmailTemplate defines the structure for email templates stored in the DB.
type EmailTemplate struct {
	Base       `bson:",inline"`
	TemplateID string `bson:"template_id" json:"template_id"` // e.g., "rental_status_changed"
	Locale     string `bson:"locale" json:"locale"`           // e.g., "en-US"
	Subject    string `bson:"subject" json:"subject"`
	Body       string `bson:"body" json:"body"`
}
