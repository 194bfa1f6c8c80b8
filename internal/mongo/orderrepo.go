package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appetiteclub/fulfillment/internal/fulfillment"
	"github.com/appetiteclub/fulfillment/pkg/enums/orderstatus"
)

type OrderRepo struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	logger     apt.Logger
	config     *apt.Config
}

func NewOrderRepo(config *apt.Config, logger apt.Logger) *OrderRepo {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &OrderRepo{
		logger: logger,
		config: config,
	}
}

func (r *OrderRepo) Start(ctx context.Context) error {
	mongoURL, _ := r.config.GetString("db.mongo.url")
	if mongoURL == "" {
		mongoURL = "mongodb://localhost:27017"
	}

	dbName, _ := r.config.GetString("db.mongo.name")
	if dbName == "" {
		dbName = "fulfillment"
	}

	clientOptions := options.Client().ApplyURI(mongoURL).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	r.client = client
	r.db = client.Database(dbName)
	r.collection = r.db.Collection("orders")

	statusIndexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}},
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, statusIndexModel); err != nil {
		return fmt.Errorf("cannot create status index: %w", err)
	}

	createdIndexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}},
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, createdIndexModel); err != nil {
		return fmt.Errorf("cannot create created_at index: %w", err)
	}

	r.logger.Infof("Connected to MongoDB: %s, database: %s, collection: orders", mongoURL, dbName)
	return nil
}

func (r *OrderRepo) Stop(ctx context.Context) error {
	if r.client != nil {
		if err := r.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
		}
		r.logger.Info("Disconnected from MongoDB")
	}
	return nil
}

func (r *OrderRepo) Create(ctx context.Context, order *fulfillment.Order) error {
	_, err := r.collection.InsertOne(ctx, order)
	if err != nil {
		return fmt.Errorf("cannot insert order: %w", err)
	}
	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id fulfillment.OrderID) (*fulfillment.Order, error) {
	var order fulfillment.Order
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fulfillment.ErrNotFound
		}
		return nil, fmt.Errorf("cannot find order: %w", err)
	}
	return &order, nil
}

func (r *OrderRepo) List(ctx context.Context) ([]*fulfillment.Order, error) {
	return r.find(ctx, bson.M{})
}

func (r *OrderRepo) ListActive(ctx context.Context) ([]*fulfillment.Order, error) {
	query := bson.M{"status": bson.M{"$in": []string{
		orderstatus.Statuses.Queued.Code(),
		orderstatus.Statuses.Preparing.Code(),
		orderstatus.Statuses.Ready.Code(),
	}}}
	return r.find(ctx, query)
}

func (r *OrderRepo) ListByStatus(ctx context.Context, status string) ([]*fulfillment.Order, error) {
	return r.find(ctx, bson.M{"status": status})
}

func (r *OrderRepo) find(ctx context.Context, query bson.M) ([]*fulfillment.Order, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot find orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []*fulfillment.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("cannot decode orders: %w", err)
	}

	return orders, nil
}

// UpdateStatus performs the conditional status write: the update only
// matches when the stored status still equals from, which is what turns a
// concurrent writer into ErrConflictOnWrite instead of a silent overwrite.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id fulfillment.OrderID, from, to string) (*fulfillment.Order, error) {
	if orderstatus.ByName(to) == nil {
		return nil, fmt.Errorf("%w: unknown status %q", fulfillment.ErrInvalidTransition, to)
	}

	now := time.Now()
	set := bson.M{"status": to, "updated_at": now}
	switch to {
	case orderstatus.Statuses.Preparing.Code():
		set["prepared_at"] = now
	case orderstatus.Statuses.Ready.Code():
		set["ready_at"] = now
	case orderstatus.Statuses.Completed.Code():
		set["completed_at"] = now
	case orderstatus.Statuses.Cancelled.Code():
		set["cancelled_at"] = now
	}

	filter := bson.M{"_id": id, "status": from}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order fulfillment.Order
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&order)
	if err == nil {
		return &order, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("cannot update order status: %w", err)
	}

	// No match: either the order is gone or another writer moved it first.
	if _, getErr := r.Get(ctx, id); getErr != nil {
		return nil, getErr
	}
	return nil, fmt.Errorf("%w: order %s no longer in %s", fulfillment.ErrConflictOnWrite, id, from)
}
