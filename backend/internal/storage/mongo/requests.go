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
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	errRequestNotFound    = internal_errors.NotFound("Request not found")
	errRequestIdTaken     = internal_errors.Conflict("Request id already exists")
	errRequestNotEditable = internal_errors.Conflict("Only pending requests can be edited")
)

type requestDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	RequestId   string             `bson:"requestId"`
	Subject     string             `bson:"subject"`
	Description string             `bson:"description"`
	Status      string             `bson:"status"`
	Owner       primitive.ObjectID `bson:"user"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d requestDoc) toDomain() domain.Request {
	return domain.Request{
		Id:          d.ID.Hex(),
		RequestId:   d.RequestId,
		Subject:     d.Subject,
		Description: d.Description,
		Status:      d.Status,
		Owner:       d.Owner.Hex(),
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func (s *Storage) CreateRequest(ctx context.Context, request domain.Request) (domain.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	owner, err := primitive.ObjectIDFromHex(request.Owner)
	if err != nil {
		return domain.Request{}, fmt.Errorf("invalid owner id %q: %w", request.Owner, err)
	}
	doc := requestDoc{
		ID:          primitive.NewObjectID(),
		RequestId:   request.RequestId,
		Subject:     request.Subject,
		Description: request.Description,
		Status:      request.Status,
		Owner:       owner,
		CreatedAt:   request.CreatedAt,
		UpdatedAt:   request.UpdatedAt,
	}
	if _, err := s.requests.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Request{}, errRequestIdTaken
		}
		return domain.Request{}, fmt.Errorf("failed to insert request: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Storage) Request(ctx context.Context, id domain.RequestId) (domain.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Request{}, errRequestNotFound
	}
	return s.findRequest(ctx, oid)
}

func (s *Storage) RequestsByOwner(ctx context.Context, owner domain.UserId) ([]domain.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(owner)
	if err != nil {
		return []domain.Request{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.requests.Find(ctx, bson.M{"user": oid}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []requestDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode requests: %w", err)
	}
	requests := make([]domain.Request, 0, len(docs))
	for _, d := range docs {
		requests = append(requests, d.toDomain())
	}
	return requests, nil
}

// UpdateRequest changes subject and description of a pending request owned
// by owner. Ownership and status are part of the filter, so an approval that
// lands in between is never overwritten.
func (s *Storage) UpdateRequest(ctx context.Context, id domain.RequestId, owner domain.UserId, update domain.RequestUpdate, now time.Time) (domain.Request, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.Request{}, errRequestNotFound
	}
	ownerOid, err := primitive.ObjectIDFromHex(owner)
	if err != nil {
		return domain.Request{}, errRequestNotFound
	}

	var doc requestDoc
	err = s.requests.FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "user": ownerOid, "status": domain.StatusPending},
		bson.M{"$set": bson.M{"subject": update.Subject, "description": update.Description, "updatedAt": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Request{}, fmt.Errorf("failed to update request: %w", err)
	}

	// Nothing matched: tell a missing request from a locked one.
	current, err := s.findRequest(ctx, oid)
	if err != nil {
		return domain.Request{}, err
	}
	if current.Owner != owner {
		return domain.Request{}, errRequestNotFound
	}
	return domain.Request{}, errRequestNotEditable
}

func (s *Storage) findRequest(ctx context.Context, oid primitive.ObjectID) (domain.Request, error) {
	var doc requestDoc
	if err := s.requests.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Request{}, errRequestNotFound
		}
		return domain.Request{}, fmt.Errorf("failed to query request: %w", err)
	}
	return doc.toDomain(), nil
}
