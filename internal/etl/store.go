package etl

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/models"
	"gorm.io/gorm"
)

// ErrConflict is returned by AppendChunk when a chunk collides with the
// (datastream, phenomenon_time) uniqueness constraint. The loader treats
// it as a localized skip, not a run failure.
var ErrConflict = errors.New("observation timestamp conflict")

// Point is one observation to append.
type Point struct {
	Time   time.Time
	Result float64
}

// ObservationStore is the loader's storage boundary. The GORM
// implementation below is the production one; tests substitute stubs to
// exercise conflict and failure paths.
type ObservationStore interface {
	// LatestTime returns the newest phenomenon time recorded for the
	// datastream. ok is false when the stream has no observations yet.
	LatestTime(ctx context.Context, datastreamID uuid.UUID) (t time.Time, ok bool, err error)

	// AppendChunk bulk-inserts one chunk in a single transaction.
	// Uniqueness violations surface as ErrConflict.
	AppendChunk(ctx context.Context, datastreamID uuid.UUID, points []Point) error
}

// GormObservationStore implements ObservationStore on the observations
// table. Each chunk commits independently so a later conflict does not
// roll back earlier, already-visible chunks. After a successful insert it
// refreshes the datastream's rollup fields.
type GormObservationStore struct {
	db *gorm.DB
}

// NewObservationStore creates a GORM-backed observation store.
func NewObservationStore(db *gorm.DB) *GormObservationStore {
	return &GormObservationStore{db: db}
}

// LatestTime reads the newest observation through the model rather than a
// raw MAX() scan so the column's declared time type drives conversion on
// every supported driver.
func (s *GormObservationStore) LatestTime(ctx context.Context, datastreamID uuid.UUID) (time.Time, bool, error) {
	var newest models.Observation
	err := s.db.WithContext(ctx).
		Where("datastream_id = ?", datastreamID).
		Order("phenomenon_time DESC").
		First(&newest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return newest.PhenomenonTime, true, nil
}

func (s *GormObservationStore) AppendChunk(ctx context.Context, datastreamID uuid.UUID, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	obs := make([]models.Observation, len(points))
	for i, p := range points {
		obs[i] = models.Observation{
			DatastreamID:   datastreamID,
			PhenomenonTime: p.Time,
			Result:         p.Result,
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&obs).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrConflict
			}
			return err
		}
		return refreshRollup(tx, datastreamID)
	})
}

// refreshRollup recomputes the datastream's value count and phenomenon
// window from the observations table. The window bounds are read through
// the model so time conversion stays with the driver.
func refreshRollup(tx *gorm.DB, datastreamID uuid.UUID) error {
	byStream := func() *gorm.DB {
		return tx.Where("datastream_id = ?", datastreamID)
	}

	var count int64
	if err := byStream().Model(&models.Observation{}).Count(&count).Error; err != nil {
		return err
	}

	updates := map[string]interface{}{
		"value_count":           count,
		"phenomenon_begin_time": nil,
		"phenomenon_end_time":   nil,
	}
	if count > 0 {
		var oldest, newest models.Observation
		if err := byStream().Order("phenomenon_time ASC").First(&oldest).Error; err != nil {
			return err
		}
		if err := byStream().Order("phenomenon_time DESC").First(&newest).Error; err != nil {
			return err
		}
		updates["phenomenon_begin_time"] = oldest.PhenomenonTime
		updates["phenomenon_end_time"] = newest.PhenomenonTime
	}

	return tx.Model(&models.Datastream{}).
		Where("id = ?", datastreamID).
		Updates(updates).Error
}
