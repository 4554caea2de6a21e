package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vpportal/vpportal/shared/domain"
	internal_errors "github.com/vpportal/vpportal/shared/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	errUserNotFound  = internal_errors.NotFound("User not found")
	errEmailTaken    = internal_errors.Conflict("User already exists")
	errTokenNotFound = internal_errors.NotFound("Reset token not found")
)

type userDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"name"`
	Email          string             `bson:"email"`
	PassHash       string             `bson:"password"`
	Role           string             `bson:"role"`
	School         string             `bson:"school"`
	Phone          string             `bson:"phone"`
	EmailVerified  bool               `bson:"emailVerified"`
	ResetTokenHash string             `bson:"resetPasswordToken,omitempty"`
	ResetExpires   *time.Time         `bson:"resetPasswordExpire,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt"`
}

func (d userDoc) toDomain() domain.User {
	user := domain.User{
		Id:             d.ID.Hex(),
		Name:           d.Name,
		Email:          d.Email,
		PassHash:       d.PassHash,
		Role:           d.Role,
		School:         d.School,
		Phone:          d.Phone,
		EmailVerified:  d.EmailVerified,
		ResetTokenHash: d.ResetTokenHash,
		CreatedAt:      d.CreatedAt.UTC(),
	}
	if d.ResetExpires != nil {
		user.ResetExpires = d.ResetExpires.UTC()
	}
	return user
}

func (s *Storage) CreateUser(ctx context.Context, user domain.User) (domain.UserId, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	doc := userDoc{
		ID:            primitive.NewObjectID(),
		Name:          user.Name,
		Email:         user.Email,
		PassHash:      user.PassHash,
		Role:          user.Role,
		School:        user.School,
		Phone:         user.Phone,
		EmailVerified: user.EmailVerified,
		CreatedAt:     createdAt,
	}
	if _, err := s.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", errEmailTaken
		}
		return "", fmt.Errorf("failed to insert user: %w", err)
	}
	return doc.ID.Hex(), nil
}

func (s *Storage) UserByEmail(ctx context.Context, email domain.Email) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return s.findUser(ctx, bson.M{"email": email}, errUserNotFound)
}

func (s *Storage) UserById(ctx context.Context, id domain.UserId) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.User{}, errUserNotFound
	}
	return s.findUser(ctx, bson.M{"_id": oid}, errUserNotFound)
}

func (s *Storage) MarkEmailVerified(ctx context.Context, id domain.UserId) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errUserNotFound
	}
	return s.updateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"emailVerified": true}}, errUserNotFound)
}

// SetResetToken stores the hash of a reset token. An empty hash clears it.
func (s *Storage) SetResetToken(ctx context.Context, id domain.UserId, tokenHash string, expires time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errUserNotFound
	}
	update := bson.M{"$set": bson.M{"resetPasswordToken": tokenHash, "resetPasswordExpire": expires}}
	if tokenHash == "" {
		update = bson.M{"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpire": ""}}
	}
	return s.updateOne(ctx, bson.M{"_id": oid}, update, errUserNotFound)
}

func (s *Storage) UserByResetToken(ctx context.Context, tokenHash string, now time.Time) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if tokenHash == "" {
		return domain.User{}, errTokenNotFound
	}
	return s.findUser(ctx, bson.M{
		"resetPasswordToken":  tokenHash,
		"resetPasswordExpire": bson.M{"$gt": now},
	}, errTokenNotFound)
}

// ConsumeResetToken sets the password only if the token still matches and
// has not expired, unsetting it in the same write.
func (s *Storage) ConsumeResetToken(ctx context.Context, id domain.UserId, tokenHash string, now time.Time, passHash string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil || tokenHash == "" {
		return errTokenNotFound
	}
	filter := bson.M{
		"_id":                 oid,
		"resetPasswordToken":  tokenHash,
		"resetPasswordExpire": bson.M{"$gt": now},
	}
	update := bson.M{
		"$set":   bson.M{"password": passHash},
		"$unset": bson.M{"resetPasswordToken": "", "resetPasswordExpire": ""},
	}
	return s.updateOne(ctx, filter, update, errTokenNotFound)
}

func (s *Storage) findUser(ctx context.Context, filter bson.M, notFound error) (domain.User, error) {
	var doc userDoc
	if err := s.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, notFound
		}
		return domain.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Storage) updateOne(ctx context.Context, filter, update bson.M, notFound error) error {
	result, err := s.users.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return notFound
	}
	return nil
}
