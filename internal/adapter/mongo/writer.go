// Package mongo persists groundwater records with idempotent bulk upserts.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/couchcryptid/groundwater-etl/internal/observability"
)

// Writer upserts batches of normalized records into a collection, keyed on
// (location.stationId, date).
type Writer struct {
	coll    *mongo.Collection
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a bulk upsert writer over the given collection.
func NewWriter(coll *mongo.Collection, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	return &Writer{coll: coll, metrics: metrics, logger: logger}
}

// EnsureIndexes creates the unique compound index enforcing the idempotency
// key. Called once at startup; store unreachability here is a setup error.
func (w *Writer) EnsureIndexes(ctx context.Context) error {
	_, err := w.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "location.stationId", Value: 1},
			{Key: "date", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName("station_date_unique"),
	})
	if err != nil {
		return fmt.Errorf("create station_date_unique index: %w", err)
	}
	w.logger.Info("mongo index ensured", "collection", w.coll.Name(), "index", "station_date_unique")
	return nil
}

// SaveBatch submits one unordered bulk write of upserts, one per record.
// Per-document failures inside the batch are logged and do not fail the
// batch; only a transport-level failure returns an error.
func (w *Writer) SaveBatch(ctx context.Context, records []domain.GroundwaterRecord) (domain.SaveStats, error) {
	if len(records) == 0 {
		return domain.SaveStats{}, nil
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, len(records))
	for i, rec := range records {
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(bson.D{
				{Key: "location.stationId", Value: rec.Location.StationID},
				{Key: "date", Value: rec.Date},
			}).
			SetUpdate(bson.M{
				"$set":         rec,
				"$setOnInsert": bson.M{"createdAt": now},
				"$currentDate": bson.M{"updatedAt": true},
			}).
			SetUpsert(true)
	}

	start := time.Now()
	res, err := w.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	w.metrics.BulkWriteDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		var bwe mongo.BulkWriteException
		if !errors.As(err, &bwe) || res == nil {
			return domain.SaveStats{}, fmt.Errorf("bulk write: %w", err)
		}
		// Unordered batch with partial failures: siblings still landed.
		for _, we := range bwe.WriteErrors {
			w.logger.Warn("bulk write document failed",
				"index", we.Index,
				"code", we.Code,
				"message", we.Message,
			)
		}
	}

	stats := domain.SaveStats{
		Inserted: res.UpsertedCount,
		Updated:  res.ModifiedCount,
	}
	w.metrics.RecordsSaved.Add(float64(stats.Total()))
	return stats, nil
}
