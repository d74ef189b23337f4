package catalog

import (
	"context"

	"github.com/fekuna/omnipos-workshop-service/internal/model"
)

// UseCase is the read-only catalog lookup used by the work-order engine.
// Unknown or inactive entries are reported as not found.
type UseCase interface {
	GetService(ctx context.Context, id int64) (*model.CatalogService, error)
	GetPart(ctx context.Context, id int64) (*model.CatalogPart, error)
}
