package dto

import "github.com/fekuna/omnipos-workshop-service/internal/model"

type OrderFilters struct {
	State        model.State `json:"state,omitempty" form:"state"`
	TechnicianID string      `json:"technician_id,omitempty" form:"technician_id"`
	ClientID     int64       `json:"client_id,omitempty" form:"client_id"`
	Limit        int         `json:"limit,omitempty" form:"limit"`
}
