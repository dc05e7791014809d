package ports

import (
	"context"

	"gocast/domain/core"
	"gocast/domain/panel"
)

// PanelStore persists panels of (entity, time, target) observations.
// Implementations must return observations grouped by entity in time order.
type PanelStore interface {
	// LoadPanel materializes the full panel for a dataset
	LoadPanel(ctx context.Context, dataset core.DatasetID) (*panel.Panel, error)

	// AppendObservations appends new observations to a dataset
	AppendObservations(ctx context.Context, dataset core.DatasetID, obs []panel.Observation) error

	// ListDatasets returns the known dataset identifiers
	ListDatasets(ctx context.Context) ([]core.DatasetID, error)
}
