package usage

import (
	"context"

	"github.com/egile-labs/egile-marketing/internal/models"
	"github.com/egile-labs/egile-marketing/internal/services/database"
)

// Store adapts the database layer to the Writer interface.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WriteUsage(ctx context.Context, record *models.RequestUsage) error {
	return s.db.WithContext(ctx).Create(record).Error
}
