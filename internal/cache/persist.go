package cache

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nautilus-go/core/pkg/model"
)

// PositionSnapshot is the durable read-model written for one Position.
// The in-memory Cache remains the sole authority for live trading
// decisions; this store exists so a crashed kernel has a recovery log and
// so positions/accounts can be queried without replaying the event stream.
type PositionSnapshot struct {
	PositionId   string  `bson:"position_id"`
	InstrumentId string  `bson:"instrument_id"`
	StrategyId   string  `bson:"strategy_id"`
	Side         string  `bson:"side"`
	SignedQty    string  `bson:"signed_qty"`
	AvgPxOpen    string  `bson:"avg_px_open"`
	AvgPxClose   string  `bson:"avg_px_close"`
	RealizedPnl  string  `bson:"realized_pnl"`
	Commissions  string  `bson:"commissions"`
	TsOpened     int64   `bson:"ts_opened"`
	TsClosed     int64   `bson:"ts_closed"`
	Closed       bool    `bson:"closed"`
}

// AccountSnapshot is the durable read-model written for one Account.
type AccountSnapshot struct {
	AccountId   string            `bson:"account_id"`
	Type        string            `bson:"type"`
	Balances    map[string]string `bson:"balances"` // currency code -> free balance, decimal string
	MarginInit  string            `bson:"margin_init"`
	MarginMaint string            `bson:"margin_maint"`
}

// Store persists Cache snapshots to MongoDB, adapted from
// ndrandal-feed-simulator's persist.Store connection/index lifecycle.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewStore connects to MongoDB. The URI's path component names the
// database; it defaults to "nautilus" when absent.
func NewStore(ctx context.Context, uri string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	dbName := "nautilus"
	if u, err := url.Parse(uri); err == nil {
		if name := strings.TrimPrefix(u.Path, "/"); name != "" {
			dbName = name
		}
	}

	return &Store{client: client, db: client.Database(dbName)}, nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// EnsureIndexes creates the unique indexes snapshot collections rely on for
// idempotent upserts. Safe to call on every startup.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	type idx struct {
		collection string
		model      mongo.IndexModel
	}
	indexes := []idx{
		{"positions", mongo.IndexModel{
			Keys:    bson.D{{Key: "position_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{"accounts", mongo.IndexModel{
			Keys:    bson.D{{Key: "account_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
	}
	for _, i := range indexes {
		if _, err := s.db.Collection(i.collection).Indexes().CreateOne(ctx, i.model); err != nil {
			return fmt.Errorf("create index on %s: %w", i.collection, err)
		}
	}
	return nil
}

// SnapshotPosition upserts pos's current state, keyed by PositionId.
func (s *Store) SnapshotPosition(ctx context.Context, pos *model.Position) error {
	doc := PositionSnapshot{
		PositionId:   pos.PositionId.String(),
		InstrumentId: pos.InstrumentId.String(),
		StrategyId:   pos.StrategyId.String(),
		Side:         pos.Side.String(),
		SignedQty:    pos.SignedQty.String(),
		AvgPxOpen:    pos.AvgPxOpen.String(),
		AvgPxClose:   pos.AvgPxClose.String(),
		RealizedPnl:  pos.RealizedPnl.String(),
		Commissions:  pos.Commissions.String(),
		TsOpened:     pos.TsOpened,
		TsClosed:     pos.TsClosed,
		Closed:       !pos.IsOpen(),
	}

	_, err := s.db.Collection("positions").ReplaceOne(ctx,
		bson.D{{Key: "position_id", Value: doc.PositionId}}, doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("snapshot position %s: %w", doc.PositionId, err)
	}
	return nil
}

// SnapshotAccount upserts acct's current balances, keyed by AccountId.
func (s *Store) SnapshotAccount(ctx context.Context, acct *model.Account) error {
	free := make(map[string]string, len(acct.Balances))
	for ccy, bal := range acct.Balances {
		free[ccy] = bal.Free.String()
	}

	doc := AccountSnapshot{
		AccountId:   acct.AccountId.String(),
		Type:        acct.Type.String(),
		Balances:    free,
		MarginInit:  acct.MarginInit.String(),
		MarginMaint: acct.MarginMaint.String(),
	}

	_, err := s.db.Collection("accounts").ReplaceOne(ctx,
		bson.D{{Key: "account_id", Value: doc.AccountId}}, doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("snapshot account %s: %w", doc.AccountId, err)
	}
	return nil
}

// LoadPositions returns every persisted position snapshot, for recovery or
// external reporting.
func (s *Store) LoadPositions(ctx context.Context) ([]PositionSnapshot, error) {
	cursor, err := s.db.Collection("positions").Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []PositionSnapshot{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return docs, nil
}

// LoadAccounts returns every persisted account snapshot.
func (s *Store) LoadAccounts(ctx context.Context) ([]AccountSnapshot, error) {
	cursor, err := s.db.Collection("accounts").Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []AccountSnapshot{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return docs, nil
}
