package directory

import (
	"context"

	"github.com/fekuna/omnipos-workshop-service/internal/model"
)

// Repository is the read-only client, vehicle and staff directory. Missing
// rows yield nil, nil.
type Repository interface {
	FindClient(ctx context.Context, id int64) (*model.Client, error)
	FindVehicle(ctx context.Context, id int64) (*model.Vehicle, error)
	FindUser(ctx context.Context, id string) (*model.User, error)
}
