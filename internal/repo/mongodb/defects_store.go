// Package mongodb stores defects and users as MongoDB documents. Comments and
// notifications are embedded arrays, updated with single-document operators.
package mongodb

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/geocoder89/civicfix/internal/domain/defect"
	"github.com/geocoder89/civicfix/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefectsStore manages the defects collection.
type DefectsStore struct {
	c    *mongo.Collection
	prom *observability.Prom
}

// NewDefectsStore creates a store over db's "defects" collection.
func NewDefectsStore(db *mongo.Database, prom *observability.Prom) *DefectsStore {
	return &DefectsStore{c: db.Collection("defects"), prom: prom}
}

func (s *DefectsStore) observe(op string, fn func() error) error {
	return s.prom.ObserveDB(observability.BackendMongo, op, fn)
}

// EnsureIndexes creates the indexes list and suggestion queries rely on.
func (s *DefectsStore) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// Own defects, newest first
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_defects_owner_created"),
		},
		// Admin listing, newest first
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_defects_created"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

func newestFirst() bson.D {
	return bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}
}

// containsRegex matches q literally, case-insensitively.
func containsRegex(q string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
}

func normalize(d *defect.Defect) {
	if d.Images == nil {
		d.Images = []string{}
	}
	if d.AdminComments == nil {
		d.AdminComments = []defect.AdminComment{}
	}
	if d.Notifications == nil {
		d.Notifications = []defect.Notification{}
	}
}

// Create inserts a new defect document.
func (s *DefectsStore) Create(ctx context.Context, d defect.Defect) error {
	normalize(&d)
	return s.observe("defects.create", func() error {
		_, err := s.c.InsertOne(ctx, d)
		return err
	})
}

// GetByID loads a defect by id.
func (s *DefectsStore) GetByID(ctx context.Context, id string) (defect.Defect, error) {
	var d defect.Defect

	err := s.observe("defects.get_by_id", func() error {
		return s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return defect.Defect{}, defect.ErrNotFound
		}
		return defect.Defect{}, err
	}

	normalize(&d)
	return d, nil
}

// List returns one page of matching defects and the total match count.
func (s *DefectsStore) List(ctx context.Context, f defect.ListFilter) ([]defect.Defect, int, error) {
	filter := bson.M{}
	if f.OwnerID != "" {
		filter["owner_id"] = f.OwnerID
	}
	if f.Search != "" {
		re := containsRegex(f.Search)
		filter["$or"] = []bson.M{
			{"title": re},
			{"description": re},
		}
	}

	var total int64
	items := make([]defect.Defect, 0, f.Limit)

	err := s.observe("defects.list", func() error {
		var err error
		total, err = s.c.CountDocuments(ctx, filter)
		if err != nil {
			return err
		}

		opts := options.Find().
			SetSort(newestFirst()).
			SetSkip(int64(f.Offset)).
			SetLimit(int64(f.Limit))

		cur, err := s.c.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		return cur.All(ctx, &items)
	})
	if err != nil {
		return nil, 0, err
	}

	for i := range items {
		normalize(&items[i])
	}
	return items, int(total), nil
}

func (s *DefectsStore) findOneAndUpdate(ctx context.Context, op string, filter, update bson.M) (defect.Defect, error) {
	var d defect.Defect

	err := s.observe(op, func() error {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		return s.c.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return defect.Defect{}, defect.ErrNotFound
		}
		return defect.Defect{}, err
	}

	normalize(&d)
	return d, nil
}

// Update applies the non-nil fields of p.
func (s *DefectsStore) Update(ctx context.Context, id string, p defect.Patch) (defect.Defect, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if p.Title != nil {
		set["title"] = *p.Title
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Type != nil {
		set["type"] = *p.Type
	}
	if p.Location != nil {
		set["location"] = *p.Location
	}

	return s.findOneAndUpdate(ctx, "defects.update", bson.M{"_id": id}, bson.M{"$set": set})
}

// SetStatus replaces the defect's status.
func (s *DefectsStore) SetStatus(ctx context.Context, id string, status defect.Status) (defect.Defect, error) {
	return s.findOneAndUpdate(ctx, "defects.set_status", bson.M{"_id": id}, bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now().UTC()},
	})
}

// AppendComment pushes the comment and its notification in one update.
func (s *DefectsStore) AppendComment(ctx context.Context, id string, c defect.AdminComment, n defect.Notification) (defect.Defect, error) {
	return s.findOneAndUpdate(ctx, "defects.append_comment", bson.M{"_id": id}, bson.M{
		"$push": bson.M{
			"admin_comments": c,
			"notifications":  n,
		},
		"$set": bson.M{"updated_at": c.CreatedAt},
	})
}

// MarkNotificationsRead flips every notification to read. Documents with
// nothing unread are not written.
func (s *DefectsStore) MarkNotificationsRead(ctx context.Context, id string) (defect.Defect, error) {
	err := s.observe("defects.mark_read", func() error {
		_, err := s.c.UpdateOne(ctx,
			bson.M{"_id": id, "notifications.read": false},
			bson.M{"$set": bson.M{
				"notifications.$[].read": true,
				"updated_at":             time.Now().UTC(),
			}},
		)
		return err
	})
	if err != nil {
		return defect.Defect{}, err
	}

	return s.GetByID(ctx, id)
}

// Delete removes the defect and everything embedded in it.
func (s *DefectsStore) Delete(ctx context.Context, id string) error {
	var res *mongo.DeleteResult

	err := s.observe("defects.delete", func() error {
		var err error
		res, err = s.c.DeleteOne(ctx, bson.M{"_id": id})
		return err
	})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return defect.ErrNotFound
	}
	return nil
}

type suggestionDoc struct {
	Title    string `bson:"title"`
	Location struct {
		Text string `bson:"text"`
	} `bson:"location"`
	Type defect.Type `bson:"type"`
}

// SuggestionSources returns title, location and type of the newest defects
// matching q in any of those fields.
func (s *DefectsStore) SuggestionSources(ctx context.Context, q, ownerID string, limit int) ([]defect.SuggestionSource, error) {
	re := containsRegex(q)
	filter := bson.M{"$or": []bson.M{
		{"title": re},
		{"location.text": re},
		{"type": re},
	}}
	if ownerID != "" {
		filter["owner_id"] = ownerID
	}

	var docs []suggestionDoc

	err := s.observe("defects.suggestions", func() error {
		opts := options.Find().
			SetSort(newestFirst()).
			SetLimit(int64(limit)).
			SetProjection(bson.M{"title": 1, "location.text": 1, "type": 1})

		cur, err := s.c.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		return cur.All(ctx, &docs)
	})
	if err != nil {
		return nil, err
	}

	out := make([]defect.SuggestionSource, 0, len(docs))
	for _, d := range docs {
		out = append(out, defect.SuggestionSource{Title: d.Title, LocationText: d.Location.Text, Type: d.Type})
	}
	return out, nil
}

// UnreadSummary counts unread notifications per owned defect on the server.
func (s *DefectsStore) UnreadSummary(ctx context.Context, ownerID string) (defect.UnreadSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"owner_id": ownerID, "notifications.read": false}}},
		{{Key: "$sort", Value: newestFirst()}},
		{{Key: "$project", Value: bson.M{
			"title": 1,
			"unread": bson.M{"$size": bson.M{"$filter": bson.M{
				"input": "$notifications",
				"as":    "n",
				"cond":  bson.M{"$eq": bson.A{"$$n.read", false}},
			}}},
		}}},
	}

	counts := make([]defect.UnreadCount, 0)

	err := s.observe("defects.unread_summary", func() error {
		cur, err := s.c.Aggregate(ctx, pipeline)
		if err != nil {
			return err
		}
		return cur.All(ctx, &counts)
	})
	if err != nil {
		return defect.UnreadSummary{}, err
	}

	out := defect.UnreadSummary{Defects: counts}
	for _, c := range counts {
		out.Total += c.Unread
	}
	return out, nil
}
