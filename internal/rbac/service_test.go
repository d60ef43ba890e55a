package rbac

import (
	"os/user"
	"testing"

	"github.com/google/uuid"

	"github.com/r3dlight/couic/common"
)

// currentOwnerGroup resolves to the test process's own user/group names,
// so security.SetOwnerGroupPerms's chown is a same-uid no-op and these
// tests need no special privilege.
func currentOwnerGroup(t *testing.T) (string, string) {
	t.Helper()
	u, err := user.Current()
	if err != nil {
		t.Skipf("cannot resolve current user: %v", err)
	}
	g, err := user.LookupGroupId(u.Gid)
	if err != nil {
		t.Skipf("cannot resolve current group: %v", err)
	}
	return u.Username, g.Name
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	owner, group := currentOwnerGroup(t)
	dir := t.TempDir()
	svc, err := New(dir, owner, group, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestNewBootstrapsDefaultAdmin(t *testing.T) {
	svc := newTestService(t)
	admin, ok := svc.GetClientByName(common.DefaultAdminClientName)
	if !ok {
		t.Fatal("expected a bootstrapped admin client")
	}
	if admin.Group != common.GroupAdmin {
		t.Fatalf("got group %v, want GroupAdmin", admin.Group)
	}
}

func TestAddClientRejectsDuplicateName(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.AddClient("ops", common.GroupClientRw); err != nil {
		t.Fatalf("AddClient: %v", err)
	}
	if _, err := svc.AddClient("ops", common.GroupClientRw); err == nil {
		t.Fatal("expected Conflict on duplicate client name")
	}
}

func TestCheckAuthorizationMatchesGroupScopes(t *testing.T) {
	svc := newTestService(t)
	client, err := svc.AddClient("reader", common.GroupClientRo)
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}
	roScope := common.Scope{Resource: common.ResourcePolicy, Verb: common.VerbList}
	if _, ok := svc.CheckAuthorization(client.Token, roScope); !ok {
		t.Fatal("expected client_ro to be authorized to list policy entries")
	}
	writeScope := common.Scope{Resource: common.ResourcePolicy, Verb: common.VerbCreate}
	if _, ok := svc.CheckAuthorization(client.Token, writeScope); ok {
		t.Fatal("expected client_ro NOT to be authorized to create policy entries")
	}
}

func TestCheckAuthorizationUnknownTokenFails(t *testing.T) {
	svc := newTestService(t)
	if _, ok := svc.CheckAuthorization(uuid.New(), common.Scope{Resource: common.ResourcePolicy, Verb: common.VerbList}); ok {
		t.Fatal("expected an unregistered token to fail authorization")
	}
}

func TestDeleteClientByNameRefusesDefaultAdmin(t *testing.T) {
	svc := newTestService(t)
	if err := svc.DeleteClientByName(common.DefaultAdminClientName); err == nil {
		t.Fatal("expected deleting the default admin client to be refused")
	}
}

func TestDeleteClientByNameRemovesClient(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.AddClient("temp", common.GroupMonitoring); err != nil {
		t.Fatalf("AddClient: %v", err)
	}
	if err := svc.DeleteClientByName("temp"); err != nil {
		t.Fatalf("DeleteClientByName: %v", err)
	}
	if _, ok := svc.GetClientByName("temp"); ok {
		t.Fatal("expected client to be gone after delete")
	}
}

func TestDeleteClientByNameNotFound(t *testing.T) {
	svc := newTestService(t)
	if err := svc.DeleteClientByName("does-not-exist"); err == nil {
		t.Fatal("expected NotFound for an unknown client")
	}
}

func TestPersistsAcrossReload(t *testing.T) {
	owner, group := currentOwnerGroup(t)
	dir := t.TempDir()
	svc1, err := New(dir, owner, group, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	client, err := svc1.AddClient("reloaded", common.GroupPeering)
	if err != nil {
		t.Fatalf("AddClient: %v", err)
	}

	svc2, err := New(dir, owner, group, nil)
	if err != nil {
		t.Fatalf("reload New: %v", err)
	}
	reloaded, ok := svc2.GetClientByName("reloaded")
	if !ok {
		t.Fatal("expected client to survive a reload from disk")
	}
	if reloaded.Token != client.Token {
		t.Fatalf("got token %s, want %s", reloaded.Token, client.Token)
	}
}
