package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carbidx/auction-engine/internal/core/domain"
	"github.com/carbidx/auction-engine/internal/core/ports"
)

const collectionAuctions = "auctions"

var auctionIndexes = []mongo.IndexModel{
	{Keys: bson.D{{Key: "status", Value: 1}, {Key: "ends_at", Value: 1}}},
	{Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}}},
	{Keys: bson.D{{Key: "created_at", Value: -1}}},
}

// AuctionRepository is the Mongo ports.AuctionStore. Transitions are
// compare-and-swap updates filtered on the stored version.
type AuctionRepository struct {
	col   *mongo.Collection
	clock ports.Clock
}

var _ ports.AuctionStore = (*AuctionRepository)(nil)

func NewAuctionRepository(db *mongo.Database, clock ports.Clock) *AuctionRepository {
	return &AuctionRepository{col: db.Collection(collectionAuctions), clock: clock}
}

type auctionDoc struct {
	ID          string             `bson:"_id"`
	BuyerID     string             `bson:"buyer_id"`
	Title       string             `bson:"title"`
	Description string             `bson:"description,omitempty"`
	Location    string             `bson:"location,omitempty"`
	Vehicle     domain.VehicleSpec `bson:"vehicle"`
	MaxBudget   string             `bson:"max_budget"`
	StartsAt    time.Time          `bson:"starts_at"`
	EndsAt      time.Time          `bson:"ends_at"`
	Status      string             `bson:"status"`
	Version     int64              `bson:"version"`
	BidSeq      int64              `bson:"bid_seq"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d auctionDoc) toDomain() (domain.AuctionRequest, error) {
	budget, err := decimal.NewFromString(d.MaxBudget)
	if err != nil {
		return domain.AuctionRequest{}, fmt.Errorf("auction %s: bad max_budget %q: %w", d.ID, d.MaxBudget, err)
	}
	return domain.AuctionRequest{
		ID:          d.ID,
		BuyerID:     d.BuyerID,
		Title:       d.Title,
		Description: d.Description,
		Location:    d.Location,
		Vehicle:     d.Vehicle,
		MaxBudget:   budget,
		StartsAt:    d.StartsAt.UTC(),
		EndsAt:      d.EndsAt.UTC(),
		Status:      domain.AuctionStatus(d.Status),
		Version:     d.Version,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}, nil
}

func (r *AuctionRepository) Create(ctx context.Context, draft domain.AuctionDraft) (*domain.AuctionRequest, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := r.clock.Now().Truncate(time.Millisecond)
	doc := auctionDoc{
		ID:          uuid.NewString(),
		BuyerID:     draft.BuyerID,
		Title:       draft.Title,
		Description: draft.Description,
		Location:    draft.Location,
		Vehicle:     draft.Vehicle,
		MaxBudget:   domain.RoundMoney(draft.MaxBudget).StringFixed(domain.MonetaryPrecision),
		StartsAt:    draft.StartsAt.UTC().Truncate(time.Millisecond),
		EndsAt:      draft.EndsAt.UTC().Truncate(time.Millisecond),
		Status:      string(domain.AuctionActive),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert auction: %w", err)
	}
	a, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AuctionRepository) Get(ctx context.Context, id string) (*domain.AuctionRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc auctionDoc
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("get auction %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get auction %s: %w", id, err)
	}
	a, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// List returns matching auctions, newest first.
func (r *AuctionRepository) List(ctx context.Context, filter ports.AuctionFilter) ([]domain.AuctionRequest, error) {
	q := bson.M{}
	if filter.Status != "" {
		q["status"] = string(filter.Status)
	}
	if filter.BuyerID != "" {
		q["buyer_id"] = filter.BuyerID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return r.find(ctx, q, opts)
}

func (r *AuctionRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.AuctionRequest, error) {
	q := bson.M{
		"status":  string(domain.AuctionActive),
		"ends_at": bson.M{"$lte": now},
	}
	opts := options.Find().SetSort(bson.D{{Key: "ends_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, q, opts)
}

func (r *AuctionRepository) find(ctx context.Context, q bson.M, opts *options.FindOptions) ([]domain.AuctionRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("find auctions: %w", err)
	}
	var docs []auctionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode auctions: %w", err)
	}

	out := make([]domain.AuctionRequest, 0, len(docs))
	for _, d := range docs {
		a, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *AuctionRepository) Transition(ctx context.Context, id string, expectedVersion int64, status domain.AuctionStatus) (*domain.AuctionRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var from []string
	for _, s := range []domain.AuctionStatus{domain.AuctionActive, domain.AuctionClosed, domain.AuctionCancelled} {
		if s.CanTransitionTo(status) {
			from = append(from, string(s))
		}
	}

	filter := bson.M{
		"_id":     id,
		"version": expectedVersion,
		"status":  bson.M{"$in": from},
	}
	update := bson.M{
		"$set": bson.M{"status": string(status), "updated_at": r.clock.Now().Truncate(time.Millisecond)},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc auctionDoc
	err := r.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		a, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		return &a, nil
	}
	if isConflict(err) {
		return nil, fmt.Errorf("transition auction %s: %w: %v", id, domain.ErrConflict, err)
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("transition auction %s: %w", id, err)
	}

	// Nothing matched: report why.
	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("transition auction %s: expected version %d, stored %d: %w", id, expectedVersion, current.Version, domain.ErrConflict)
	}
	return nil, fmt.Errorf("%w: %s -> %s", domain.ErrState, current.Status, status)
}
