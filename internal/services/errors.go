package services

import (
	"errors"

	"github.com/zeebo/errs"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	// ErrValidation is returned when input is out of bounds. Nothing is written.
	ErrValidation = errs.Class("validation")
	// ErrNotFound covers both missing entities and entities the caller may
	// not see, so the two cannot be told apart.
	ErrNotFound = errs.Class("not found")
	// ErrInvalidID is returned for malformed ids before any store access.
	ErrInvalidID = errs.Class("invalid id")
)

func parseObjectID(id string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID.New("%q", id)
	}
	return objID, nil
}

// notFound maps a missing document to ErrNotFound and passes other errors on.
func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound.New("%s not found or not yours", what)
	}
	return err
}
