package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/forkful/marketplace/internal/core/domain"
)

const accountCollection = "accounts"

// AccountRepository implements ports.AccountRepository. Timestamps are
// stored as epoch milliseconds so the fence survives a round trip intact.
type AccountRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{coll: db.Collection(accountCollection), now: time.Now}
}

type mongoAccount struct {
	ID           primitive.ObjectID `bson:"_id"`
	Name         string             `bson:"name"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Admin        bool               `bson:"admin"`
	CreatedAt    int64              `bson:"created_at"`
	UpdatedAt    int64              `bson:"updated_at"`
	DeletedAt    *int64             `bson:"deleted_at,omitempty"`
}

// live matches documents that were never soft-deleted. A null filter value
// also matches a missing field.
func live(filter bson.M) bson.M {
	filter["deleted_at"] = nil
	return filter
}

// EnsureIndexes creates the unique email index.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	})
	if err != nil {
		return fmt.Errorf("create account indexes: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}
	return r.findOne(ctx, live(bson.M{"_id": oid}))
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, live(bson.M{"email": domain.NormalizeEmail(email)}))
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	var doc mongoAccount
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	now := r.now().UTC()
	created := *account
	created.ID = ""
	created.Email = domain.NormalizeEmail(account.Email)
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	if created.UpdatedAt.IsZero() {
		created.UpdatedAt = now
	}

	doc := mongoAccount{
		ID:           primitive.NewObjectID(),
		Name:         created.Name,
		Email:        created.Email,
		PasswordHash: created.PasswordHash,
		Admin:        created.Admin,
		CreatedAt:    created.CreatedAt.UnixMilli(),
		UpdatedAt:    created.UpdatedAt.UnixMilli(),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrAccountExists
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}

	return doc.toDomain(), nil
}

// Update applies the change and moves updated_at strictly forward, even when
// two updates land in the same millisecond, so the fence always changes.
func (r *AccountRepository) Update(ctx context.Context, id string, update domain.AccountUpdate) (*domain.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}

	set := bson.D{{Key: "updated_at", Value: bson.M{
		"$max": bson.A{r.now().UnixMilli(), bson.M{"$add": bson.A{"$updated_at", 1}}},
	}}}
	// Pipeline stages evaluate "$"-prefixed strings as paths, so user values
	// go through $literal.
	if update.Name != nil {
		set = append(set, bson.E{Key: "name", Value: bson.M{"$literal": *update.Name}})
	}
	if update.Email != nil {
		set = append(set, bson.E{Key: "email", Value: bson.M{"$literal": domain.NormalizeEmail(*update.Email)}})
	}
	if update.PasswordHash != nil {
		set = append(set, bson.E{Key: "password_hash", Value: bson.M{"$literal": *update.PasswordHash}})
	}
	if update.Admin != nil {
		set = append(set, bson.E{Key: "admin", Value: *update.Admin})
	}

	var doc mongoAccount
	err = r.coll.FindOneAndUpdate(ctx,
		live(bson.M{"_id": oid}),
		mongo.Pipeline{{{Key: "$set", Value: set}}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, domain.ErrAccountNotFound
	case mongo.IsDuplicateKeyError(err):
		return nil, domain.ErrAccountExists
	case err != nil:
		return nil, fmt.Errorf("update account: %w", err)
	}

	return doc.toDomain(), nil
}

func (d mongoAccount) toDomain() *domain.Account {
	a := &domain.Account{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Admin:        d.Admin,
		CreatedAt:    domain.MillisToTime(d.CreatedAt),
		UpdatedAt:    domain.MillisToTime(d.UpdatedAt),
	}
	if d.DeletedAt != nil {
		t := domain.MillisToTime(*d.DeletedAt)
		a.DeletedAt = &t
	}
	return a
}
