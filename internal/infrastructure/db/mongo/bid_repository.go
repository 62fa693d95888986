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

const collectionBids = "bids"

var bidIndexes = []mongo.IndexModel{
	{
		Keys:    bson.D{{Key: "auction_id", Value: 1}, {Key: "sequence", Value: 1}},
		Options: options.Index().SetUnique(true),
	},
	{Keys: bson.D{{Key: "auction_id", Value: 1}, {Key: "status", Value: 1}, {Key: "price_cents", Value: 1}}},
	{Keys: bson.D{{Key: "dealer_id", Value: 1}, {Key: "created_at", Value: -1}}},
	{Keys: bson.D{{Key: "created_at", Value: 1}}},
}

var liveStatuses = bson.M{"$in": bson.A{string(domain.BidActive), string(domain.BidWinning)}}

// BidRepository is the Mongo ports.BidLedger. Place and MarkFinal run inside a
// multi-document transaction. Place also writes the auction document, so it
// write-conflicts with a concurrent Transition and one of the two is retried.
type BidRepository struct {
	client   *mongo.Client
	col      *mongo.Collection
	auctions *mongo.Collection
}

var _ ports.BidLedger = (*BidRepository)(nil)

func NewBidRepository(db *mongo.Database) *BidRepository {
	return &BidRepository{
		client:   db.Client(),
		col:      db.Collection(collectionBids),
		auctions: db.Collection(collectionAuctions),
	}
}

type bidDoc struct {
	ID         string    `bson:"_id"`
	AuctionID  string    `bson:"auction_id"`
	DealerID   string    `bson:"dealer_id"`
	DealerTier string    `bson:"dealer_tier,omitempty"`
	Price      string    `bson:"price"`
	PriceCents int64     `bson:"price_cents"`
	Message    string    `bson:"message,omitempty"`
	Status     string    `bson:"status"`
	Superseded bool      `bson:"superseded,omitempty"`
	Sequence   int64     `bson:"sequence"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (d bidDoc) toDomain() (domain.Bid, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return domain.Bid{}, fmt.Errorf("bid %s: bad price %q: %w", d.ID, d.Price, err)
	}
	return domain.Bid{
		ID:         d.ID,
		AuctionID:  d.AuctionID,
		DealerID:   d.DealerID,
		DealerTier: domain.DealerTier(d.DealerTier),
		Price:      price,
		Message:    d.Message,
		Status:     domain.BidStatus(d.Status),
		Superseded: d.Superseded,
		Sequence:   d.Sequence,
		CreatedAt:  d.CreatedAt.UTC(),
	}, nil
}

func (r *BidRepository) Place(ctx context.Context, draft domain.BidDraft) (*domain.PlaceResult, error) {
	if draft.AuctionID == "" || draft.DealerID == "" {
		return nil, fmt.Errorf("%w: auction and dealer are required", domain.ErrValidation)
	}
	createdAt := draft.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	createdAt = createdAt.UTC().Truncate(time.Millisecond)
	price := domain.RoundMoney(draft.Price)

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.withTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		seq, err := r.admit(sc, draft.AuctionID, createdAt)
		if err != nil {
			return nil, err
		}

		if _, err := r.col.UpdateMany(sc,
			bson.M{"auction_id": draft.AuctionID, "dealer_id": draft.DealerID, "status": liveStatuses},
			bson.M{"$set": bson.M{"status": string(domain.BidLost), "superseded": true}},
		); err != nil {
			return nil, fmt.Errorf("supersede: %w", err)
		}

		doc := bidDoc{
			ID:         uuid.NewString(),
			AuctionID:  draft.AuctionID,
			DealerID:   draft.DealerID,
			DealerTier: string(draft.DealerTier),
			Price:      price.StringFixed(domain.MonetaryPrecision),
			PriceCents: price.Shift(domain.MonetaryPrecision).IntPart(),
			Message:    draft.Message,
			Status:     string(domain.BidActive),
			Sequence:   seq,
			CreatedAt:  createdAt,
		}
		if _, err := r.col.InsertOne(sc, doc); err != nil {
			return nil, fmt.Errorf("insert bid: %w", err)
		}

		ranked, err := r.rankLive(sc, draft.AuctionID)
		if err != nil {
			return nil, err
		}
		head := ranked[0]
		if err := r.setStatuses(sc, draft.AuctionID, head.ID, domain.BidActive); err != nil {
			return nil, err
		}

		placed, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		if placed.ID == head.ID {
			placed.Status = domain.BidWinning
		}
		return &domain.PlaceResult{Bid: placed, LowPrice: head.Price, LiveCount: len(ranked)}, nil
	})
	if err != nil {
		if isConflict(err) {
			return nil, fmt.Errorf("place bid on auction %s: %w: %v", draft.AuctionID, domain.ErrConflict, err)
		}
		return nil, fmt.Errorf("place bid on auction %s: %w", draft.AuctionID, err)
	}
	return res.(*domain.PlaceResult), nil
}

// admit bumps the auction's version and bid counter if it accepts bids at the
// given instant, and returns the counter as the new bid's sequence.
func (r *BidRepository) admit(sc mongo.SessionContext, auctionID string, at time.Time) (int64, error) {
	filter := bson.M{
		"_id":       auctionID,
		"status":    string(domain.AuctionActive),
		"starts_at": bson.M{"$lte": at},
		"ends_at":   bson.M{"$gt": at},
	}
	update := bson.M{"$inc": bson.M{"version": 1, "bid_seq": 1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc auctionDoc
	err := r.auctions.FindOneAndUpdate(sc, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.BidSeq, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("admit bid: %w", err)
	}

	// Nothing matched: report why.
	if err := r.auctions.FindOne(sc, bson.M{"_id": auctionID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, fmt.Errorf("auction %s: %w", auctionID, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("admit bid: %w", err)
	}
	a, err := doc.toDomain()
	if err != nil {
		return 0, err
	}
	if err := a.AcceptsBidsAt(at); err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("admit bid on auction %s: %w", auctionID, domain.ErrConflict)
}

func (r *BidRepository) ListLive(ctx context.Context, auctionID string) ([]domain.Bid, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return r.rankLive(ctx, auctionID)
}

func (r *BidRepository) ListByAuction(ctx context.Context, auctionID string) ([]domain.Bid, error) {
	opts := options.Find().SetSort(bson.D{{Key: "sequence", Value: -1}})
	return r.find(ctx, bson.M{"auction_id": auctionID}, opts)
}

func (r *BidRepository) ListByDealer(ctx context.Context, dealerID string) ([]domain.Bid, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.find(ctx, bson.M{"dealer_id": dealerID}, opts)
}

func (r *BidRepository) CountByAuction(ctx context.Context, auctionID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	n, err := r.col.CountDocuments(ctx, bson.M{"auction_id": auctionID})
	if err != nil {
		return 0, fmt.Errorf("count bids on auction %s: %w", auctionID, err)
	}
	return n, nil
}

func (r *BidRepository) MarkFinal(ctx context.Context, auctionID, winnerID string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := r.withTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if winnerID != "" {
			err := r.col.FindOne(sc, bson.M{"_id": winnerID, "auction_id": auctionID, "status": liveStatuses}).Err()
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, fmt.Errorf("live bid %s: %w", winnerID, domain.ErrNotFound)
			}
			if err != nil {
				return nil, err
			}
		}
		return nil, r.setStatuses(sc, auctionID, winnerID, domain.BidLost)
	})
	if err != nil {
		if isConflict(err) {
			return fmt.Errorf("mark final on auction %s: %w: %v", auctionID, domain.ErrConflict, err)
		}
		return fmt.Errorf("mark final on auction %s: %w", auctionID, err)
	}
	return nil
}

// setStatuses marks headID winning and every other live bid of the auction as rest.
func (r *BidRepository) setStatuses(ctx context.Context, auctionID, headID string, rest domain.BidStatus) error {
	if _, err := r.col.UpdateMany(ctx,
		bson.M{"auction_id": auctionID, "status": liveStatuses, "_id": bson.M{"$ne": headID}},
		bson.M{"$set": bson.M{"status": string(rest)}},
	); err != nil {
		return fmt.Errorf("rerank: %w", err)
	}
	if headID == "" {
		return nil
	}
	if _, err := r.col.UpdateOne(ctx,
		bson.M{"_id": headID},
		bson.M{"$set": bson.M{"status": string(domain.BidWinning)}},
	); err != nil {
		return fmt.Errorf("mark winner: %w", err)
	}
	return nil
}

func (r *BidRepository) rankLive(ctx context.Context, auctionID string) ([]domain.Bid, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "price_cents", Value: 1},
		{Key: "created_at", Value: 1},
		{Key: "sequence", Value: 1},
	})
	bids, err := r.find(ctx, bson.M{"auction_id": auctionID, "status": liveStatuses}, opts)
	if err != nil {
		return nil, err
	}
	return domain.RankLive(bids), nil
}

func (r *BidRepository) find(ctx context.Context, q bson.M, opts *options.FindOptions) ([]domain.Bid, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	cur, err := r.col.Find(ctx, q, opts)
	if err != nil {
		return nil, fmt.Errorf("find bids: %w", err)
	}
	var docs []bidDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode bids: %w", err)
	}

	out := make([]domain.Bid, 0, len(docs))
	for _, d := range docs {
		b, err := d.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *BidRepository) withTransaction(ctx context.Context, fn func(mongo.SessionContext) (any, error)) (any, error) {
	sess, err := r.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)
	return sess.WithTransaction(ctx, fn)
}
