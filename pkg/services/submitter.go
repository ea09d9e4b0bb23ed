package services

import (
	"context"

	"telbill/pkg/models"
)

// Submitter delivers the final reconciled table to a downstream system
type Submitter interface {
	// Submit writes the aggregated rows. Implementations write models.TableColumns as header
	// and render each record with AggregatedRecord.Row or AggregatedRecord.Cells.
	Submit(ctx context.Context, records []models.AggregatedRecord) error

	// Target describes where the rows went (file path, sheet URL)
	Target() string
}
