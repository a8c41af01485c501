package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clinicore/clinicore/internal/role"
)

const collectionName = "users"

// MongoStore implements Store on a MongoDB collection. Documents are keyed by
// the identity-provider UID.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore creates a Store backed by the "users" collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection(collectionName)}
}

// profileDoc is the stored shape; the role is persisted as its string form.
type profileDoc struct {
	UID       string    `bson:"_id"`
	Email     string    `bson:"email"`
	FirstName string    `bson:"firstName"`
	LastName  string    `bson:"lastName"`
	Phone     string    `bson:"phone"`
	Birthdate string    `bson:"birthdate"`
	Address   string    `bson:"address"`
	Role      string    `bson:"role"`
	CreatedAt time.Time `bson:"createdAt"`
}

func toDoc(p *Profile) profileDoc {
	return profileDoc{
		UID:       p.UID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Phone:     p.Phone,
		Birthdate: p.Birthdate,
		Address:   p.Address,
		Role:      p.Role.String(),
		CreatedAt: p.CreatedAt,
	}
}

func fromDoc(d *profileDoc) (Profile, error) {
	r, err := role.Parse(d.Role)
	if err != nil {
		return Profile{}, fmt.Errorf("profile %s: %w", d.UID, err)
	}
	return Profile{
		UID:       d.UID,
		Email:     d.Email,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Phone:     d.Phone,
		Birthdate: d.Birthdate,
		Address:   d.Address,
		Role:      r,
		CreatedAt: d.CreatedAt,
	}, nil
}

// Get returns the profile document for uid.
func (s *MongoStore) Get(ctx context.Context, uid string) (*Profile, error) {
	var d profileDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": uid}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("finding profile: %w", err)
	}
	p, err := fromDoc(&d)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Put inserts the profile document keyed by p.UID.
func (s *MongoStore) Put(ctx context.Context, p *Profile) error {
	_, err := s.collection.InsertOne(ctx, toDoc(p))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateProfile
		}
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

// Delete removes the profile document for uid.
func (s *MongoStore) Delete(ctx context.Context, uid string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": uid})
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrProfileNotFound
	}
	return nil
}

// List returns all profile documents ordered by creation time.
func (s *MongoStore) List(ctx context.Context) ([]Profile, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer cursor.Close(ctx)

	profiles := []Profile{}
	for cursor.Next(ctx) {
		var d profileDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decoding profile document: %w", err)
		}
		p, err := fromDoc(&d)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating profile documents: %w", err)
	}

	return profiles, nil
}
