// Package mongo provides MongoDB-backed site and submission stores.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JakeFAU/site-enricher/internal/site"
)

// Config controls the Mongo connection and collection names.
type Config struct {
	URI             string
	Database        string
	SitesColl       string
	SubmissionsColl string
	ConnectTimeout  time.Duration
}

// Client owns the driver connection shared by both stores.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
	cfg    Config
}

// Connect dials Mongo, pings it and ensures the unique url indexes.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	c := &Client{client: client, db: client.Database(cfg.Database), cfg: cfg}
	if err := c.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return c, nil
}

func (c *Client) createIndexes(ctx context.Context) error {
	unique := mongo.IndexModel{
		Keys:    bson.D{{Key: "url", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := c.db.Collection(c.cfg.SitesColl).Indexes().CreateOne(ctx, unique); err != nil {
		return fmt.Errorf("create sites url index: %w", err)
	}
	if _, err := c.db.Collection(c.cfg.SubmissionsColl).Indexes().CreateOne(ctx, unique); err != nil {
		return fmt.Errorf("create submissions url index: %w", err)
	}
	pending := mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "submit_time", Value: -1}},
	}
	if _, err := c.db.Collection(c.cfg.SubmissionsColl).Indexes().CreateOne(ctx, pending); err != nil {
		return fmt.Errorf("create pending index: %w", err)
	}
	return nil
}

// Sites returns the site store over the configured collection.
func (c *Client) Sites() *SiteStore {
	return NewSiteStore(c.db.Collection(c.cfg.SitesColl))
}

// Submissions returns the submission store over the configured collection.
func (c *Client) Submissions() *SubmissionStore {
	return NewSubmissionStore(c.db.Collection(c.cfg.SubmissionsColl))
}

// Ping checks that the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}
	return nil
}

// Close disconnects the driver.
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	return nil
}

// SiteStore keeps one document per url.
type SiteStore struct {
	coll *mongo.Collection
}

// NewSiteStore wraps a collection.
func NewSiteStore(coll *mongo.Collection) *SiteStore {
	return &SiteStore{coll: coll}
}

// GetByURL decodes the document for url or returns site.ErrNotFound.
func (s *SiteStore) GetByURL(ctx context.Context, url string) (site.SiteRecord, error) {
	var rec site.SiteRecord
	err := s.coll.FindOne(ctx, bson.M{"url": url}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return site.SiteRecord{}, site.ErrNotFound
	}
	if err != nil {
		return site.SiteRecord{}, fmt.Errorf("find site: %w", err)
	}
	return normalizeSite(rec), nil
}

// UpsertByURL replaces the whole document for rec.URL.
func (s *SiteStore) UpsertByURL(ctx context.Context, rec site.SiteRecord) (site.SiteRecord, error) {
	rec = normalizeSite(rec)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"url": rec.URL}, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return site.SiteRecord{}, fmt.Errorf("replace site: %w", err)
	}
	return rec, nil
}

func normalizeSite(rec site.SiteRecord) site.SiteRecord {
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if rec.Languages == nil {
		rec.Languages = map[string]*string{}
	}
	return rec
}

// SubmissionStore keeps queued submissions; the url index is unique.
type SubmissionStore struct {
	coll *mongo.Collection
}

// NewSubmissionStore wraps a collection.
func NewSubmissionStore(coll *mongo.Collection) *SubmissionStore {
	return &SubmissionStore{coll: coll}
}

// InsertIfAbsent inserts rec or returns site.ErrDuplicate.
func (s *SubmissionStore) InsertIfAbsent(ctx context.Context, rec site.SubmissionRecord) (site.SubmissionRecord, error) {
	if _, err := s.coll.InsertOne(ctx, rec); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return site.SubmissionRecord{}, site.ErrDuplicate
		}
		return site.SubmissionRecord{}, fmt.Errorf("insert submission: %w", err)
	}
	return rec, nil
}

// SelectPending lists pending submissions in the requested order.
func (s *SubmissionStore) SelectPending(ctx context.Context, limit int, order site.PendingOrder) ([]site.SubmissionRecord, error) {
	opts := options.Find().SetSort(pendingSort(order))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.coll.Find(ctx, bson.M{"status": site.SubmissionPending}, opts)
	if err != nil {
		return nil, fmt.Errorf("find pending: %w", err)
	}
	defer cursor.Close(ctx) //nolint:errcheck // read-only cursor

	out := []site.SubmissionRecord{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode pending: %w", err)
	}
	return out, nil
}

// UpdateStatusByURL sets status and returns the updated document.
func (s *SubmissionStore) UpdateStatusByURL(ctx context.Context, url string, status site.SubmissionStatus) (site.SubmissionRecord, error) {
	var rec site.SubmissionRecord
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"url": url},
		bson.M{"$set": bson.M{"status": status}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return site.SubmissionRecord{}, site.ErrNotFound
	}
	if err != nil {
		return site.SubmissionRecord{}, fmt.Errorf("update submission status: %w", err)
	}
	return rec, nil
}

func pendingSort(order site.PendingOrder) bson.D {
	if order == site.OrderPriority {
		return bson.D{{Key: "priority", Value: -1}, {Key: "submit_time", Value: -1}}
	}
	return bson.D{{Key: "submit_time", Value: -1}}
}
