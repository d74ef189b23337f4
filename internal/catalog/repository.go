package catalog

import (
	"context"

	"github.com/fekuna/omnipos-workshop-service/internal/model"
)

// Repository reads the service and part catalog. Missing rows yield nil, nil.
type Repository interface {
	FindService(ctx context.Context, id int64) (*model.CatalogService, error)
	FindPart(ctx context.Context, id int64) (*model.CatalogPart, error)
}
