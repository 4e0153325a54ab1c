package services

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"idleassets/api/internal/models"
)

type ICategoryService interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
}

const categoriesCollection = "categories"

type categoryService struct {
	db *mongo.Database
}

func NewCategoryService(db *mongo.Database) ICategoryService {
	return &categoryService{db: db}
}

// ListCategories returns the stored categories ordered by name, or the
// built-in set when none are stored.
func (s *categoryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.db.Collection(categoriesCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	var categories []models.Category
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}
	if len(categories) == 0 {
		return defaultCategoriesByName(), nil
	}
	return categories, nil
}

func defaultCategoriesByName() []models.Category {
	out := make([]models.Category, len(models.DefaultCategories))
	copy(out, models.DefaultCategories)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
