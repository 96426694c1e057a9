package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ErrNoRecordFound is returned when a user has no saved signature.
var ErrNoRecordFound = errors.New("no signature record found for user")

// ErrInvalidRecord is returned when a record fails validation before insert.
var ErrInvalidRecord = errors.New("user id and signature path must be non-empty")

// StatusActive marks the record as the user's current reference signature.
const StatusActive = "active"

// timestampLayout is fixed-width: FindLatest sorts the stored strings, and
// RFC3339Nano trims trailing fractional zeros, which breaks lexicographic
// ordering for saves within the same second.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SignatureRecord is the document stored per registered signature. Records
// are append-only: a re-registration inserts a new document rather than
// mutating the old one.
type SignatureRecord struct {
	UserID        string `bson:"user_id"`
	SignaturePath string `bson:"signature_path"`
	Timestamp     string `bson:"timestamp"`
	Status        string `bson:"status"`
}

// NewSignatureRecord validates and assembles a record with a UTC timestamp.
func NewSignatureRecord(userID, signaturePath string) (*SignatureRecord, error) {
	userID = strings.TrimSpace(userID)
	signaturePath = strings.TrimSpace(signaturePath)
	if userID == "" || signaturePath == "" {
		return nil, ErrInvalidRecord
	}
	return &SignatureRecord{
		UserID:        userID,
		SignaturePath: signaturePath,
		Timestamp:     time.Now().UTC().Format(timestampLayout),
		Status:        StatusActive,
	}, nil
}

// SignatureRepository stores signature records in a MongoDB collection.
type SignatureRepository struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

// NewSignatureRepository builds a repository over the given collection.
func NewSignatureRepository(coll *mongo.Collection, logger *zap.Logger) *SignatureRepository {
	return &SignatureRepository{coll: coll, logger: logger.Named("signature_repository")}
}

// Save inserts the record. Existing records for the same user are left
// untouched.
func (r *SignatureRepository) Save(ctx context.Context, record *SignatureRecord) error {
	if record == nil {
		return ErrInvalidRecord
	}
	if strings.TrimSpace(record.UserID) == "" || strings.TrimSpace(record.SignaturePath) == "" {
		return ErrInvalidRecord
	}

	result, err := r.coll.InsertOne(ctx, record)
	if err != nil {
		return err
	}
	r.logger.Info("signature record saved",
		zap.String("user_id", record.UserID),
		zap.Any("inserted_id", result.InsertedID))
	return nil
}

// FindLatest returns the user's most recently inserted record, or
// ErrNoRecordFound.
func (r *SignatureRepository) FindLatest(ctx context.Context, userID string) (*SignatureRecord, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidRecord
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	var record SignatureRecord
	err := r.coll.FindOne(ctx, bson.M{"user_id": userID}, opts).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoRecordFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}
