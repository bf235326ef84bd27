package authz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestEnforceOperatorWithRolePolicy(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("ops", "/admin/login-guard/:phone", "GET"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}
	if err := svc.SetOperatorRoles(1, []string{"ops"}); err != nil {
		t.Fatalf("set operator roles failed: %v", err)
	}

	allow, err := svc.EnforceOperator(1, "/api/v1/admin/login-guard/+243812345678", "get")
	if err != nil {
		t.Fatalf("enforce allow failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow=true")
	}

	allow, err = svc.EnforceOperator(1, "/api/v1/admin/login-guard/+243812345678", "POST")
	if err != nil {
		t.Fatalf("enforce deny failed: %v", err)
	}
	if allow {
		t.Fatalf("expected allow=false")
	}
}

func TestSetOperatorRolesOverride(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("auditor", "/admin/login-logs", "GET"); err != nil {
		t.Fatalf("grant auditor policy failed: %v", err)
	}
	if err := svc.GrantRolePolicy("helpdesk", "/admin/otp/sessions", "GET"); err != nil {
		t.Fatalf("grant helpdesk policy failed: %v", err)
	}

	if err := svc.SetOperatorRoles(2, []string{"auditor"}); err != nil {
		t.Fatalf("set first role failed: %v", err)
	}
	roles, err := svc.GetOperatorRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:auditor" {
		t.Fatalf("roles want [role:auditor], got=%v", roles)
	}

	if err := svc.SetOperatorRoles(2, []string{"helpdesk"}); err != nil {
		t.Fatalf("set second role failed: %v", err)
	}
	allow, err := svc.EnforceOperator(2, "/admin/login-logs", "GET")
	if err != nil {
		t.Fatalf("enforce old role failed: %v", err)
	}
	if allow {
		t.Fatalf("expected old role permission removed")
	}
	allow, err = svc.EnforceOperator(2, "/admin/otp/sessions", "GET")
	if err != nil {
		t.Fatalf("enforce new role failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected new role permission granted")
	}

	policies, err := svc.GetOperatorPolicies(2)
	if err != nil {
		t.Fatalf("get operator policies failed: %v", err)
	}
	if len(policies) != 1 || policies[0].Object != "/admin/otp/sessions" {
		t.Fatalf("unexpected effective policies %+v", policies)
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/login-logs", want: "/admin/login-logs"},
		{in: "/admin/login-guard/:phone", want: "/admin/login-guard/:phone"},
		{in: "admin/otp/sessions", want: "/admin/otp/sessions"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	wantRoles := map[string]bool{
		"role:readonly_auditor": true,
		"role:support":          true,
		"role:security_admin":   true,
	}
	for _, role := range roles {
		delete(wantRoles, role)
	}
	if len(wantRoles) != 0 {
		t.Fatalf("builtin roles missing: %v", wantRoles)
	}

	if err := svc.SetOperatorRoles(3, []string{"readonly_auditor"}); err != nil {
		t.Fatalf("set auditor roles failed: %v", err)
	}
	if err := svc.SetOperatorRoles(4, []string{"support"}); err != nil {
		t.Fatalf("set support roles failed: %v", err)
	}

	cases := []struct {
		operator uint
		path     string
		method   string
		want     bool
	}{
		{operator: 3, path: "/admin/login-logs", method: "GET", want: true},
		{operator: 3, path: "/admin/login-guard/:phone/unlock", method: "POST", want: false},
		{operator: 4, path: "/admin/otp/sessions", method: "GET", want: true},
		{operator: 4, path: "/admin/login-guard/:phone/unlock", method: "POST", want: true},
	}
	for _, tc := range cases {
		allow, err := svc.EnforceOperator(tc.operator, tc.path, tc.method)
		if err != nil {
			t.Fatalf("enforce %s %s failed: %v", tc.method, tc.path, err)
		}
		if allow != tc.want {
			t.Fatalf("operator %d %s %s want %v got %v", tc.operator, tc.method, tc.path, tc.want, allow)
		}
	}
}
