package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportLogEntry captures a rejected row or a job level failure for later inspection.
type ImportLogEntry struct {
	ID           uuid.UUID `json:"id"`
	JobID        uuid.UUID `json:"job_id"`
	CompanyID    uuid.UUID `json:"company_id"`
	RowNumber    *int      `json:"row_number,omitempty"`
	Kind         string    `json:"kind"`
	Column       string    `json:"column,omitempty"`
	ErrorMessage string    `json:"error_message"`
	CreatedAt    time.Time `json:"created_at"`
}
