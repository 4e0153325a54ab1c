package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"idleassets/api/internal/auth"
	"idleassets/api/internal/config"
	"idleassets/api/internal/db"
	"idleassets/api/internal/models"
)

// ProfileUpdate carries the user-editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	FullName *string `json:"full_name"`
	Bio      *string `json:"bio"`
	Phone    *string `json:"phone"`
}

// IProfileService defines the interface for profile and credential operations.
type IProfileService interface {
	CreateProfile(ctx context.Context, email, password, fullName string) (*models.Profile, error)
	Authenticate(ctx context.Context, email, password string) (*models.Profile, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.Profile, error)
	SetAvatarURL(ctx context.Context, userID, avatarURL string) (*models.Profile, error)
	Summaries(ctx context.Context, userIDs []string) (map[string]*models.ProfileSummary, error)
}

const profilesCollection = "profiles"

type profileService struct {
	db  *mongo.Database
	cfg *config.Config
}

func NewProfileService(db *mongo.Database, cfg *config.Config) IProfileService {
	return &profileService{db: db, cfg: cfg}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateProfile registers a new user with a hashed password.
func (s *profileService) CreateProfile(ctx context.Context, email, password, fullName string) (*models.Profile, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if err := auth.ValidatePassword(password, s.cfg.PasswordRegexp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	profile := &models.Profile{
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(fullName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	profile.GenID()

	_, err = s.db.Collection(profilesCollection).InsertOne(ctx, profile)
	if db.IsMongoDuplicateKeyError(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert profile for %s: %w", email, err)
	}
	log.Printf("ProfileService: created profile %s", profile.ID)
	return profile, nil
}

func (s *profileService) Authenticate(ctx context.Context, email, password string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.Collection(profilesCollection).FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up profile: %w", err)
	}
	if !auth.CheckPasswordHash(password, profile.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return &profile, nil
}

func (s *profileService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.Collection(profilesCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding profile %s: %w", userID, err)
	}
	return &profile, nil
}

func (s *profileService) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*models.Profile, error) {
	set := bson.M{}
	if update.FullName != nil {
		name := strings.TrimSpace(*update.FullName)
		if name == "" {
			return nil, fmt.Errorf("%w: full_name cannot be empty", ErrInvalidInput)
		}
		set["full_name"] = name
	}
	if update.Bio != nil {
		set["bio"] = strings.TrimSpace(*update.Bio)
	}
	if update.Phone != nil {
		set["phone"] = strings.TrimSpace(*update.Phone)
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidInput)
	}
	return s.updateProfile(ctx, userID, set)
}

func (s *profileService) SetAvatarURL(ctx context.Context, userID, avatarURL string) (*models.Profile, error) {
	return s.updateProfile(ctx, userID, bson.M{"avatar_url": avatarURL})
}

func (s *profileService) updateProfile(ctx context.Context, userID string, set bson.M) (*models.Profile, error) {
	set["updated_at"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var profile models.Profile
	err := s.db.Collection(profilesCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts).
		Decode(&profile)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile %s: %w", userID, err)
	}
	return &profile, nil
}

// Summaries loads the public summaries of the given users. Missing users are
// absent from the map.
func (s *profileService) Summaries(ctx context.Context, userIDs []string) (map[string]*models.ProfileSummary, error) {
	out := make(map[string]*models.ProfileSummary, len(userIDs))
	ids := uniqueIDs(userIDs)
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"full_name": 1, "avatar_url": 1, "trust_score": 1})
	cursor, err := s.db.Collection(profilesCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	var profiles []models.Profile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("failed to decode profiles: %w", err)
	}
	for i := range profiles {
		out[profiles[i].ID] = profiles[i].Summary()
	}
	return out, nil
}

// profileOrPlaceholder returns the summary for id, or a placeholder when it is missing.
func profileOrPlaceholder(summaries map[string]*models.ProfileSummary, id string) *models.ProfileSummary {
	if p, ok := summaries[id]; ok {
		return p
	}
	return models.PlaceholderProfile(id)
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
