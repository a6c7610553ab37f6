package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hydroserve/hydroserve/internal/etl"
	"github.com/hydroserve/hydroserve/internal/models"
	"github.com/hydroserve/hydroserve/internal/permissions"
	"gorm.io/gorm"
)

// ObservationService reads and appends time-series points. Observations
// have no workspace column of their own; access is scoped through the
// owning datastream.
type ObservationService struct {
	db    *gorm.DB
	store etl.ObservationStore
}

// NewObservationService creates a new ObservationService.
func NewObservationService(db *gorm.DB) *ObservationService {
	return &ObservationService{db: db, store: etl.NewObservationStore(db)}
}

// List returns observations for a datastream in phenomenon-time order,
// optionally restricted to a time window.
func (s *ObservationService) List(p permissions.Principal, datastreamID uuid.UUID, from, to *time.Time, limit int) ([]models.Observation, error) {
	if err := s.checkStream(p, datastreamID); err != nil {
		return nil, err
	}

	query := s.db.Where("datastream_id = ?", datastreamID).
		Order("phenomenon_time ASC")
	if from != nil {
		query = query.Where("phenomenon_time >= ?", *from)
	}
	if to != nil {
		query = query.Where("phenomenon_time < ?", *to)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var obs []models.Observation
	if err := query.Find(&obs).Error; err != nil {
		return nil, err
	}
	return obs, nil
}

// Append bulk-inserts points into a datastream. Any timestamp already
// recorded for the stream makes the whole batch a conflict.
func (s *ObservationService) Append(ctx context.Context, p permissions.Principal, datastreamID uuid.UUID, points []ObservationPoint) (int, error) {
	stream, err := s.loadStream(datastreamID)
	if err != nil {
		return 0, err
	}
	ws, err := workspaceFor(s.db, stream.WorkspaceID)
	if err != nil {
		return 0, err
	}
	if err := requireAction(s.db, p, ws, permissions.ResourceObservation, permissions.ActionEdit); err != nil {
		return 0, err
	}
	if len(points) == 0 {
		return 0, &ValidationError{Message: "no observations in request"}
	}

	parsed := make([]etl.Point, len(points))
	for i, pt := range points {
		t, err := time.Parse(time.RFC3339, pt.PhenomenonTime)
		if err != nil {
			return 0, &ValidationError{Message: fmt.Sprintf("observation %d: bad phenomenon_time %q", i, pt.PhenomenonTime)}
		}
		parsed[i] = etl.Point{Time: t.UTC(), Result: pt.Result}
	}

	if err := s.store.AppendChunk(ctx, datastreamID, parsed); err != nil {
		if errors.Is(err, etl.ErrConflict) {
			return 0, &ConflictError{Message: "one or more phenomenon times already exist for this datastream"}
		}
		return 0, fmt.Errorf("append observations: %w", err)
	}
	return len(parsed), nil
}

// checkStream verifies the principal may view the datastream (and so its
// observations).
func (s *ObservationService) checkStream(p permissions.Principal, datastreamID uuid.UUID) error {
	var stream models.Datastream
	err := s.db.Scopes(permissions.VisibleScope(p, permissions.ResourceDatastream)).
		First(&stream, "id = ?", datastreamID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *ObservationService) loadStream(datastreamID uuid.UUID) (*models.Datastream, error) {
	var stream models.Datastream
	if err := s.db.First(&stream, "id = ?", datastreamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &stream, nil
}
