package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/openngo/sitecms/pkg/repository"
)

func setupMongo(t *testing.T) *repository.Database {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI must be set to run MongoDB tests")
	}
	database := os.Getenv("TEST_MONGO_DATABASE")
	if database == "" {
		database = "sitecms_test"
	}

	db, err := repository.NewMongo(context.Background(), repository.MongoConfig{
		URI:      uri,
		Database: database,
	})
	gt.NoError(t, err)
	t.Cleanup(func() {
		gt.NoError(t, db.Close(context.Background()))
	})

	return db
}

func TestMongoLifecycle(t *testing.T) {
	db := setupMongo(t)
	gt.Equal(t, db.Backend(), "mongo")
	testStoreLifecycle(t, db)
	testZeroValueFields(t, db)
}

func TestMongoConfigValidation(t *testing.T) {
	_, err := repository.NewMongo(context.Background(), repository.MongoConfig{Database: "x"})
	gt.Error(t, err)

	_, err = repository.NewMongo(context.Background(), repository.MongoConfig{URI: "mongodb://localhost:27017"})
	gt.Error(t, err)
}
