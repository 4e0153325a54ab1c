package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"idleassets/api/internal/models"
)

// IEarningsService summarises an owner's income from rentals.
type IEarningsService interface {
	GetEarnings(ctx context.Context, ownerID string) (*models.Earnings, error)
}

type earningsService struct {
	db *mongo.Database
}

func NewEarningsService(db *mongo.Database) IEarningsService {
	return &earningsService{db: db}
}

// statusTotal is one row of the per-status aggregation.
type statusTotal struct {
	Status models.RentalStatus `bson:"_id"`
	Total  float64             `bson:"total"`
	Count  int                 `bson:"count"`
}

func (s *earningsService) GetEarnings(ctx context.Context, ownerID string) (*models.Earnings, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner_id": ownerID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"total": bson.M{"$sum": "$total_price"},
			"count": bson.M{"$sum": 1},
		}}},
	}
	cursor, err := s.db.Collection(rentalsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate earnings for %s: %w", ownerID, err)
	}
	var rows []statusTotal
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode earnings for %s: %w", ownerID, err)
	}
	earnings := foldEarnings(rows)
	return &earnings, nil
}

// foldEarnings turns per-status totals into the earnings summary. Completed
// rentals are earned; rentals still in progress are pending.
func foldEarnings(rows []statusTotal) models.Earnings {
	var e models.Earnings
	for _, row := range rows {
		switch row.Status {
		case models.RentalCompleted:
			e.TotalEarned += row.Total
			e.TotalRentals += row.Count
		case models.RentalApproved, models.RentalPickupConfirmed, models.RentalActive, models.RentalReturnPending:
			e.PendingAmount += row.Total
		}
	}
	e.TotalEarned = roundCents(e.TotalEarned)
	e.PendingAmount = roundCents(e.PendingAmount)
	e.AvailableAmount = e.TotalEarned
	return e
}
