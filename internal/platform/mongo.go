package platform

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConnection is a hub dealing with the mongo client backing the event
// audit mirror and dead-letter archive, grounded on common/mmongo.
type MongoConnection struct {
	ConnectionStringSource string
	Database               string

	Client    *mongo.Client
	Connected bool
	Logger    Logger
}

// Connect opens and pings the mongo client.
func (mc *MongoConnection) Connect(ctx context.Context) error {
	logger := mc.logger()
	logger.Info("connecting to mongodb")

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mc.ConnectionStringSource))
	if err != nil {
		return fmt.Errorf("connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}

	logger.Info("connected to mongodb")

	mc.Connected = true
	mc.Client = client

	return nil
}

// GetDB returns the mongo client, connecting lazily if necessary.
func (mc *MongoConnection) GetDB(ctx context.Context) (*mongo.Client, error) {
	if mc.Client == nil {
		if err := mc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return mc.Client, nil
}

// Collection returns a handle on a collection in the configured database.
func (mc *MongoConnection) Collection(ctx context.Context, name string) (*mongo.Collection, error) {
	client, err := mc.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	return client.Database(mc.Database).Collection(name), nil
}

func (mc *MongoConnection) logger() Logger {
	if mc.Logger != nil {
		return mc.Logger
	}

	return &NoneLogger{}
}
