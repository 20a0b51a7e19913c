package mongodb

import (
	"context"
	"errors"

	"github.com/geocoder89/civicfix/internal/domain/user"
	"github.com/geocoder89/civicfix/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UsersStore manages the users collection. Emails are stored lower-cased and
// a unique index enforces one account per address.
type UsersStore struct {
	c    *mongo.Collection
	prom *observability.Prom
}

func NewUsersStore(db *mongo.Database, prom *observability.Prom) *UsersStore {
	return &UsersStore{c: db.Collection("users"), prom: prom}
}

func (s *UsersStore) observe(op string, fn func() error) error {
	return s.prom.ObserveDB(observability.BackendMongo, op, fn)
}

func (s *UsersStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("uniq_users_email").SetUnique(true),
	})
	return err
}

func (s *UsersStore) Create(ctx context.Context, u user.User) error {
	u.Email = user.NormalizeEmail(u.Email)

	err := s.observe("users.create", func() error {
		_, err := s.c.InsertOne(ctx, u)
		return err
	})
	if mongo.IsDuplicateKeyError(err) {
		return user.ErrEmailTaken
	}
	return err
}

func (s *UsersStore) findOne(ctx context.Context, op string, filter bson.M) (user.User, error) {
	var u user.User

	err := s.observe(op, func() error {
		return s.c.FindOne(ctx, filter).Decode(&u)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *UsersStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return s.findOne(ctx, "users.get_by_email", bson.M{"email": user.NormalizeEmail(email)})
}

func (s *UsersStore) GetByID(ctx context.Context, id string) (user.User, error) {
	return s.findOne(ctx, "users.get_by_id", bson.M{"_id": id})
}

func (s *UsersStore) Summaries(ctx context.Context, ids []string) (map[string]user.Summary, error) {
	out := make(map[string]user.Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []user.User
	err := s.observe("users.summaries", func() error {
		opts := options.Find().SetProjection(bson.M{"password_hash": 0})
		cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
		if err != nil {
			return err
		}
		return cur.All(ctx, &users)
	})
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		out[u.ID] = u.Summary()
	}
	return out, nil
}
