package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/food_cart/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoAddressRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoAddressRepository(db *mongo.Database) *MongoAddressRepository {
	return &MongoAddressRepository{
		collection: db.Collection("addresses"),
		now:        time.Now,
	}
}

func (m *MongoAddressRepository) List(ctx context.Context, userID string) ([]domain.Address, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "is_default", Value: -1},
		{Key: "updated_at", Value: -1},
	})

	cursor, err := m.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}

	addresses := []domain.Address{}
	if err := cursor.All(ctx, &addresses); err != nil {
		return nil, fmt.Errorf("failed to decode addresses: %w", err)
	}
	return addresses, nil
}

func (m *MongoAddressRepository) Get(ctx context.Context, userID, addressID string) (*domain.Address, error) {
	var address domain.Address

	err := m.collection.FindOne(ctx, bson.M{"_id": addressID, "user_id": userID}).Decode(&address)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return &address, nil
}

// Add stores a new address. The first address of a user becomes the
// default regardless of IsDefault.
func (m *MongoAddressRepository) Add(ctx context.Context, address *domain.Address) error {
	if address.ID == "" {
		address.ID = uuid.NewString()
	}
	address.UpdatedAt = m.now().UTC().Truncate(time.Millisecond)
	explicit := address.IsDefault

	count, err := m.collection.CountDocuments(ctx, bson.M{"user_id": address.UserID})
	if err != nil {
		return fmt.Errorf("failed to count addresses: %w", err)
	}
	address.IsDefault = count == 0

	_, err = m.collection.InsertOne(ctx, address)
	if mongo.IsDuplicateKeyError(err) && address.IsDefault {
		// a concurrent first insert already took the default
		address.IsDefault = false
		_, err = m.collection.InsertOne(ctx, address)
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to insert address %s: %w", address.ID, ErrAddressConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert address: %w", err)
	}

	if !explicit || address.IsDefault {
		return nil
	}
	if err := m.SetDefault(ctx, address.UserID, address.ID); err != nil {
		if _, derr := m.collection.DeleteOne(ctx, bson.M{"_id": address.ID}); derr != nil {
			return errors.Join(err, fmt.Errorf("failed to roll back address: %w", derr))
		}
		return err
	}
	address.IsDefault = true
	return nil
}

// Update overwrites the editable fields. The default flag is only
// changed through SetDefault.
func (m *MongoAddressRepository) Update(ctx context.Context, address *domain.Address) error {
	address.UpdatedAt = m.now().UTC().Truncate(time.Millisecond)

	update := bson.M{
		"$set": bson.M{
			"label":      address.Label,
			"address":    address.Address,
			"landmark":   address.Landmark,
			"city":       address.City,
			"state":      address.State,
			"pincode":    address.Pincode,
			"latitude":   address.Latitude,
			"longitude":  address.Longitude,
			"updated_at": address.UpdatedAt,
		},
	}

	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": address.ID, "user_id": address.UserID}, update)
	if err != nil {
		return fmt.Errorf("failed to update address: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrAddressNotFound
	}
	return nil
}

// Remove deletes an address. When the default is removed the most
// recently updated remaining address takes over.
func (m *MongoAddressRepository) Remove(ctx context.Context, userID, addressID string) error {
	var removed domain.Address

	err := m.collection.FindOneAndDelete(ctx, bson.M{"_id": addressID, "user_id": userID}).Decode(&removed)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrAddressNotFound
		}
		return fmt.Errorf("failed to remove address: %w", err)
	}
	if !removed.IsDefault {
		return nil
	}

	opts := options.FindOneAndUpdate().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	err = m.collection.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"is_default": true}},
		opts,
	).Err()
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("failed to promote default address: %w", err)
	}
	return nil
}

// SetDefault moves the default flag to addressID. If the second write
// fails the previous default is put back, so the user never ends up
// without one.
func (m *MongoAddressRepository) SetDefault(ctx context.Context, userID, addressID string) error {
	if _, err := m.Get(ctx, userID, addressID); err != nil {
		return err
	}

	// the partial unique index allows at most one current default
	var previous domain.Address
	err := m.collection.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID, "is_default": true, "_id": bson.M{"$ne": addressID}},
		bson.M{"$set": bson.M{"is_default": false}},
	).Decode(&previous)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("failed to clear default address: %w", err)
	}

	result, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": addressID, "user_id": userID},
		bson.M{"$set": bson.M{"is_default": true}},
	)
	switch {
	case err == nil && result.MatchedCount > 0:
		return nil
	case err == nil:
		err = ErrAddressNotFound
	case mongo.IsDuplicateKeyError(err):
		err = ErrAddressConflict
	default:
		err = fmt.Errorf("failed to set default address: %w", err)
	}

	if previous.ID != "" {
		if _, rerr := m.collection.UpdateOne(ctx,
			bson.M{"_id": previous.ID, "user_id": userID, "is_default": false},
			bson.M{"$set": bson.M{"is_default": true}},
		); rerr != nil && !mongo.IsDuplicateKeyError(rerr) {
			return errors.Join(err, fmt.Errorf("failed to restore default address: %w", rerr))
		}
	}
	return err
}

func (m *MongoAddressRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "updated_at", Value: -1}},
		},
		{
			// at most one default per user
			Keys: bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"is_default": true}),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
