package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/medsage/medsage-server/internal/model"
	"github.com/medsage/medsage-server/internal/store"
)

const (
	usersCollection    = "users"
	sessionsCollection = "temp_conversations"
)

// Open connects to MongoDB and verifies connectivity.
func Open(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo URI is empty")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// New constructs a Mongo-backed store over the given database.
func New(db *mongo.Database) store.Store { return &mongoStore{db: db} }

type mongoStore struct{ db *mongo.Database }

func (s *mongoStore) Users() store.Users       { return &users{c: s.db.Collection(usersCollection)} }
func (s *mongoStore) Sessions() store.Sessions { return &sessions{c: s.db.Collection(sessionsCollection)} }

// HealthPing implements health.HealthPinger for the Mongo-backed store.
func (s *mongoStore) HealthPing(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the unique and TTL indexes the store relies on.
// The TTL index on expiresAt purges expired temp conversations passively.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	_, err = db.Collection(sessionsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sessionId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	if err != nil {
		return fmt.Errorf("temp_conversations indexes: %w", err)
	}
	return nil
}

// --- Users ---

type users struct{ c *mongo.Collection }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	if _, err := u.c.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("username or email already registered: %w", model.ErrConflict)
		}
		return nil, err
	}
	return m, nil
}

func (u *users) GetByID(ctx context.Context, userID string) (*model.User, error) {
	return u.findOne(ctx, bson.M{"_id": userID})
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return u.findOne(ctx, bson.M{"email": email})
}

func (u *users) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return u.findOne(ctx, bson.M{"username": username})
}

func (u *users) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var out model.User
	if err := u.c.FindOne(ctx, filter).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (u *users) UpdateProfile(ctx context.Context, userID, username string, p model.Profile) (*model.User, error) {
	after := options.After
	var out model.User
	err := u.c.FindOneAndUpdate(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{
			"username":  username,
			"profile":   p,
			"updatedAt": time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("username already taken: %w", model.ErrConflict)
		}
		return nil, err
	}
	return &out, nil
}

func (u *users) RecordLogin(ctx context.Context, userID, refreshToken string, at time.Time) error {
	res, err := u.c.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{
			"$set":  bson.M{"lastLogin": at, "updatedAt": at},
			"$push": bson.M{"refreshTokens": refreshToken},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (u *users) RemoveRefreshToken(ctx context.Context, userID, refreshToken string) error {
	res, err := u.c.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"refreshTokens": refreshToken}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (u *users) AppendConversation(ctx context.Context, userID string, conv *model.MedicalConversation) error {
	// Conditional push keyed on conversationId absence keeps promotion
	// one-way: a duplicate fails loudly instead of overwriting.
	res, err := u.c.UpdateOne(ctx,
		bson.M{
			"_id":                          userID,
			"conversations.conversationId": bson.M{"$ne": conv.ConversationID},
		},
		bson.M{
			"$push": bson.M{"conversations": conv},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := u.c.CountDocuments(ctx, bson.M{"_id": userID})
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("conversation %s already saved: %w", conv.ConversationID, model.ErrConflict)
		}
		return model.ErrNotFound
	}
	return nil
}

// --- Sessions ---

type sessions struct{ c *mongo.Collection }

func (s *sessions) Create(ctx context.Context, tc *model.TempConversation) (*model.TempConversation, error) {
	if _, err := s.c.InsertOne(ctx, tc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("session %s already exists: %w", tc.SessionID, model.ErrConflict)
		}
		return nil, err
	}
	return tc, nil
}

// activeFilter matches an active, unexpired session owned by the user.
// The expiresAt guard makes TTL expiry take precedence over a stale
// isActive flag before Mongo's background deletion catches up.
func activeFilter(userID, sessionID string, now time.Time) bson.M {
	return bson.M{
		"sessionId": sessionID,
		"userId":    userID,
		"isActive":  true,
		"expiresAt": bson.M{"$gt": now},
	}
}

func (s *sessions) GetActive(ctx context.Context, userID, sessionID string) (*model.TempConversation, error) {
	var out model.TempConversation
	err := s.c.FindOne(ctx, activeFilter(userID, sessionID, time.Now().UTC())).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (s *sessions) AppendTurn(ctx context.Context, userID, sessionID string, expectedVersion int64, upd store.SessionUpdate) (*model.TempConversation, error) {
	now := time.Now().UTC()
	filter := activeFilter(userID, sessionID, now)
	filter["version"] = expectedVersion

	set := bson.M{"currentStage": upd.Stage}
	if upd.SpecialistInfo != nil {
		set["specialistInfo"] = upd.SpecialistInfo
	}
	if upd.Summary != nil {
		set["summary"] = upd.Summary
	}

	after := options.After
	var out model.TempConversation
	err := s.c.FindOneAndUpdate(ctx,
		filter,
		bson.M{
			"$push": bson.M{"messages": bson.M{"$each": upd.Messages}},
			"$set":  set,
			"$inc":  bson.M{"version": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(after),
	).Decode(&out)
	if err == nil {
		return &out, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	// Distinguish a lost version race from a missing session.
	if _, getErr := s.GetActive(ctx, userID, sessionID); getErr == nil {
		return nil, model.ErrOptimisticConflict
	}
	return nil, model.ErrNotFound
}

func (s *sessions) Deactivate(ctx context.Context, userID, sessionID string) error {
	res, err := s.c.UpdateOne(ctx,
		activeFilter(userID, sessionID, time.Now().UTC()),
		bson.M{"$set": bson.M{"isActive": false}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}
