package auth

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleCashier    Role = "cashier"
	RoleTechnician Role = "technician"
)

type Action string

const (
	ActionCreateOrder          Action = "order.create"
	ActionUpdateOrder          Action = "order.update"
	ActionViewOrder            Action = "order.view"
	ActionAssignTechnician     Action = "order.assign_technician"
	ActionRequestAuthorization Action = "order.request_authorization"
	ActionAuthorize            Action = "order.authorize"
	ActionStart                Action = "order.start"
	ActionFinish               Action = "order.finish"
	ActionDeliver              Action = "order.deliver"
	ActionCancel               Action = "order.cancel"
	ActionCreateSale           Action = "order.create_sale"
	ActionViewStock            Action = "inventory.view"
	ActionReceiveStock         Action = "inventory.receive"
	ActionAdjustStock          Action = "inventory.adjust"
)

var allRoles = []Role{RoleAdmin, RoleManager, RoleCashier, RoleTechnician}

var permissions = map[Action][]Role{
	ActionCreateOrder:          allRoles,
	ActionUpdateOrder:          {RoleAdmin, RoleManager, RoleCashier},
	ActionViewOrder:            allRoles,
	ActionAssignTechnician:     {RoleAdmin, RoleManager, RoleTechnician},
	ActionRequestAuthorization: allRoles,
	// Only two roles may sign off an order.
	ActionAuthorize:    {RoleAdmin, RoleManager},
	ActionStart:        {RoleAdmin, RoleManager, RoleTechnician},
	ActionFinish:       {RoleAdmin, RoleManager, RoleTechnician},
	ActionDeliver:      {RoleAdmin, RoleManager, RoleCashier},
	ActionCancel:       {RoleAdmin, RoleManager, RoleCashier},
	ActionCreateSale:   {RoleAdmin, RoleManager, RoleCashier},
	ActionViewStock:    allRoles,
	ActionReceiveStock: {RoleAdmin, RoleManager},
	ActionAdjustStock:  {RoleAdmin, RoleManager},
}

func (r Role) Valid() bool {
	for _, known := range allRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Can reports whether role may perform action. Unknown actions are denied.
func Can(role Role, action Action) bool {
	for _, allowed := range permissions[action] {
		if role == allowed {
			return true
		}
	}
	return false
}
