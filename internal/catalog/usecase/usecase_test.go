package usecase

import (
	"context"
	"testing"

	"github.com/fekuna/omnipos-workshop-service/internal/apperror"
	"github.com/fekuna/omnipos-workshop-service/internal/catalog/repository"
	"github.com/fekuna/omnipos-workshop-service/internal/testutil"
	"github.com/fekuna/omnipos-workshop-service/pkg/logger"
	"github.com/shopspring/decimal"
)

func TestCatalogLookups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	uc := NewCatalogUseCase(repository.NewPGRepository(db), nil, 0, logger.NewNop())
	ctx := context.Background()

	serviceID := testutil.SeedService(t, db, "Brake job", 300, true)
	partID := testutil.SeedPart(t, db, "BRK-PAD", 40)
	retired := testutil.SeedPart(t, db, "OLD-PAD", 10)
	if _, err := db.Exec(`UPDATE catalog_parts SET is_active = 0 WHERE id = ?`, retired); err != nil {
		t.Fatalf("retire part: %v", err)
	}

	svc, err := uc.GetService(ctx, serviceID)
	if err != nil {
		t.Fatalf("GetService: %v", err)
	}
	if !svc.RequiresParts || !svc.Price.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("service = %+v", svc)
	}

	part, err := uc.GetPart(ctx, partID)
	if err != nil {
		t.Fatalf("GetPart: %v", err)
	}
	if part.SKU != "BRK-PAD" || !part.Price.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("part = %+v", part)
	}

	if _, err := uc.GetPart(ctx, retired); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("retired part: %v", err)
	}
	if _, err := uc.GetService(ctx, 999); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("unknown service: %v", err)
	}
}
