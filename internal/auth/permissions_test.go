package auth

import (
	"context"
	"testing"

	"google.golang.org/grpc/metadata"
)

func TestCan(t *testing.T) {
	tests := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleAdmin, ActionAuthorize, true},
		{RoleManager, ActionAuthorize, true},
		{RoleCashier, ActionAuthorize, false},
		{RoleTechnician, ActionAuthorize, false},
		{RoleTechnician, ActionStart, true},
		{RoleCashier, ActionStart, false},
		{RoleCashier, ActionDeliver, true},
		{RoleTechnician, ActionCancel, false},
		{Role("guest"), ActionViewOrder, false},
		{RoleAdmin, Action("order.unknown"), false},
	}
	for _, tt := range tests {
		if got := Can(tt.role, tt.action); got != tt.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tt.role, tt.action, got, tt.want)
		}
	}
}

func TestGetUserFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-user-id", "u-7", "x-user-role", "technician"))
	u := GetUser(ctx)
	if u.UserID != "u-7" || u.Role != RoleTechnician {
		t.Fatalf("GetUser = %+v", u)
	}

	ctx = WithUser(ctx, UserContext{UserID: "u-1", Role: RoleAdmin})
	if u := GetUser(ctx); u.UserID != "u-1" || u.Role != RoleAdmin {
		t.Fatalf("context user should win over metadata, got %+v", u)
	}
}
