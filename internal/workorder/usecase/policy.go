package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-workshop-service/internal/apperror"
	"github.com/fekuna/omnipos-workshop-service/internal/auth"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder/dto"
	"github.com/shopspring/decimal"
)

// CodePartsRecommended asks the caller to confirm an order whose services
// usually need parts but which lists none.
const CodePartsRecommended = "PARTS_RECOMMENDED"

// buildLines resolves line input against the catalog and fills default
// prices. It also returns the catalog services the lines reference.
func (uc *workOrderUseCase) buildLines(ctx context.Context, in []dto.LineInput) ([]model.OrderLine, []*model.CatalogService, error) {
	lines := make([]model.OrderLine, 0, len(in))
	var services []*model.CatalogService
	fields := map[string]string{}

	for i, li := range in {
		key := fmt.Sprintf("lines[%d]", i)
		line := model.OrderLine{
			Kind:        li.Kind,
			Quantity:    li.Quantity,
			Description: strings.TrimSpace(li.Description),
		}
		if li.UnitPrice != nil {
			if li.UnitPrice.IsNegative() {
				fields[key+".unit_price"] = "gte"
				continue
			}
			line.UnitPrice = *li.UnitPrice
		}

		switch li.Kind {
		case model.LineKindService:
			if li.ServiceID == nil || li.PartID != nil || li.EstimatedCost != nil {
				fields[key] = "service lines need service_id only"
				continue
			}
			svc, err := uc.catalog.GetService(ctx, *li.ServiceID)
			if err != nil {
				return nil, nil, err
			}
			services = append(services, svc)
			line.ServiceID = li.ServiceID
			if line.Description == "" {
				line.Description = svc.Name
			}
			if li.UnitPrice == nil {
				line.UnitPrice = svc.Price
			}

		case model.LineKindPart:
			if li.ServiceID != nil || (li.PartID == nil) == (line.Description == "") {
				fields[key] = "part lines need either part_id or description"
				continue
			}
			if li.EstimatedCost != nil {
				if li.EstimatedCost.IsNegative() {
					fields[key+".estimated_cost"] = "gte"
					continue
				}
				line.EstimatedCost = decimal.NewNullDecimal(*li.EstimatedCost)
			}
			if li.PartID != nil {
				part, err := uc.catalog.GetPart(ctx, *li.PartID)
				if err != nil {
					return nil, nil, err
				}
				line.PartID = li.PartID
				if li.UnitPrice == nil {
					line.UnitPrice = part.Price
				}
			} else if li.UnitPrice == nil {
				fields[key+".unit_price"] = "required"
				continue
			}

		default:
			fields[key+".kind"] = "oneof"
			continue
		}
		lines = append(lines, line)
	}

	if len(fields) > 0 {
		return nil, nil, apperror.ValidationFields("invalid order lines", fields)
	}
	return lines, services, nil
}

// partsWarning applies the soft parts rule. It never blocks an acknowledged order.
func partsWarning(services []*model.CatalogService, lines []model.OrderLine, clientSupplied, acknowledged bool) error {
	if acknowledged || clientSupplied {
		return nil
	}
	for _, l := range lines {
		if l.Kind == model.LineKindPart {
			return nil
		}
	}
	var needy []string
	for _, s := range services {
		if s.RequiresParts {
			needy = append(needy, s.Name)
		}
	}
	if len(needy) == 0 {
		return nil
	}
	return apperror.ConfirmationRequired(CodePartsRecommended,
		fmt.Sprintf("%s usually needs parts but the order lists none; resubmit with acknowledge_warnings to continue", strings.Join(needy, ", ")))
}

// checkParties verifies the client, the vehicle and an optional technician.
func (uc *workOrderUseCase) checkParties(ctx context.Context, clientID, vehicleID int64, technicianID *string) error {
	client, err := uc.directory.FindClient(ctx, clientID)
	if err != nil {
		return apperror.Internal("look up client", err)
	}
	if client == nil {
		return apperror.NotFound("client", clientID)
	}

	vehicle, err := uc.directory.FindVehicle(ctx, vehicleID)
	if err != nil {
		return apperror.Internal("look up vehicle", err)
	}
	if vehicle == nil {
		return apperror.NotFound("vehicle", vehicleID)
	}
	if vehicle.ClientID != clientID {
		return apperror.ValidationFields("vehicle does not belong to client", map[string]string{"vehicle_id": "client"})
	}

	if technicianID != nil && *technicianID != "" {
		return uc.checkTechnician(ctx, *technicianID)
	}
	return nil
}

func (uc *workOrderUseCase) checkTechnician(ctx context.Context, id string) error {
	u, err := uc.directory.FindUser(ctx, id)
	if err != nil {
		return apperror.Internal("look up technician", err)
	}
	if u == nil || !u.IsActive {
		return apperror.NotFound("technician", id)
	}
	if auth.Role(u.Role) != auth.RoleTechnician {
		return apperror.ValidationFields(fmt.Sprintf("user %s is not a technician", id), map[string]string{"technician_id": "role"})
	}
	return nil
}
