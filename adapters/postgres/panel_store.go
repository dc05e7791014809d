// Package postgres persists panel observations in PostgreSQL.
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"gocast/domain/core"
	"gocast/domain/panel"
	"gocast/ports"
)

// Connect opens a pooled connection and verifies it
func Connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// panelStore implements the PanelStore interface
type panelStore struct {
	db *sqlx.DB
}

// NewPanelStore creates a new panel store
func NewPanelStore(db *sqlx.DB) ports.PanelStore {
	return &panelStore{db: db}
}

// EnsureSchema creates the observation table if it does not exist
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	query := `CREATE TABLE IF NOT EXISTS panel_observations (
		dataset_id TEXT NOT NULL,
		entity_id  TEXT NOT NULL,
		ts         BIGINT NOT NULL,
		target     DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (dataset_id, entity_id, ts)
	)`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create panel_observations table: %w", err)
	}
	return nil
}

// LoadPanel materializes the full panel for a dataset. Rows come back
// ordered by entity then time, so entity insertion order is deterministic.
func (s *panelStore) LoadPanel(ctx context.Context, dataset core.DatasetID) (*panel.Panel, error) {
	query := `SELECT entity_id, ts, target
	FROM panel_observations
	WHERE dataset_id = $1
	ORDER BY entity_id, ts`

	rows, err := s.db.QueryContext(ctx, query, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var obs []panel.Observation
	for rows.Next() {
		var o panel.Observation
		if err := rows.Scan(&o.Entity, &o.Time, &o.Target); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read observations: %w", err)
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("dataset %s: %w", dataset, core.ErrEmptyPanel)
	}

	return panel.FromObservations(obs)
}

// AppendObservations appends new observations to a dataset. Duplicate
// (entity, ts) rows are rejected by the primary key, matching the panel
// invariant that timestamps are unique per entity.
func (s *panelStore) AppendObservations(ctx context.Context, dataset core.DatasetID, obs []panel.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO panel_observations (dataset_id, entity_id, ts, target)
	VALUES ($1, $2, $3, $4)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, o := range obs {
		if _, err := stmt.ExecContext(ctx, dataset, o.Entity, o.Time, o.Target); err != nil {
			return fmt.Errorf("failed to insert observation for %s at %d: %w", o.Entity, o.Time, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit observations: %w", err)
	}
	return nil
}

// ListDatasets returns the known dataset identifiers
func (s *panelStore) ListDatasets(ctx context.Context) ([]core.DatasetID, error) {
	query := `SELECT DISTINCT dataset_id FROM panel_observations ORDER BY dataset_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	var datasets []core.DatasetID
	for rows.Next() {
		var id core.DatasetID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan dataset id: %w", err)
		}
		datasets = append(datasets, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dataset ids: %w", err)
	}

	return datasets, nil
}
