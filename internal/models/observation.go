package models

import (
	"time"

	"github.com/google/uuid"
)

// Observation is one immutable time-series point. The composite unique
// index on (datastream_id, phenomenon_time) is what keeps overlapping ETL
// runs from double-inserting; violations surface as conflict errors.
// Observations are never soft-deleted.
type Observation struct {
	ID             uint64     `gorm:"primarykey" json:"id"`
	DatastreamID   uuid.UUID  `gorm:"type:text;not null;uniqueIndex:idx_observations_stream_time" json:"datastream_id"`
	PhenomenonTime time.Time  `gorm:"not null;uniqueIndex:idx_observations_stream_time" json:"phenomenon_time"`
	Result         float64    `gorm:"not null" json:"result"`
	ResultTime     *time.Time `json:"result_time,omitempty"`
	QualityCode    *string    `json:"quality_code,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
