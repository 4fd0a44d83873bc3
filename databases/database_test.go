// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package databases

import (
	"context"
	"testing"
	"time"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/dispatch"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
	"github.com/vellum-project/vellum/lib/testutil"
)

func TestLoadUnloadLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	db := f.createDataBase(t, "sales")

	// Item operations require Loaded.
	_, err := db.AddNewItem(ctx, f.admin, KindTable, ref.RootPath, ref.MustName("accounts"), "")
	if !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("mutation while unloaded: got %v, want InvalidOperation", err)
	}

	if _, err := db.Load(ctx, f.admin); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, err = db.Load(ctx, f.admin)
	if !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("double load: got %v, want InvalidOperation", err)
	}

	info, err := db.GetInfo(ctx, f.admin)
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if info.State != StateLoaded {
		t.Errorf("State = %v, want Loaded", info.State)
	}

	if _, err := db.Unload(ctx, f.admin); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	_, err = db.Unload(ctx, f.admin)
	if !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("double unload: got %v, want InvalidOperation", err)
	}
}

func TestItemOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	db := f.loadDataBase(t, "sales")

	if _, err := db.AddNewItemCategory(ctx, f.admin, KindTable, ref.RootPath, ref.MustName("ledger")); err != nil {
		t.Fatalf("AddNewItemCategory: %v", err)
	}
	if _, err := db.AddNewItem(ctx, f.admin, KindTable, ref.MustPath("/ledger/"), ref.MustName("accounts"), "gl"); err != nil {
		t.Fatalf("AddNewItem: %v", err)
	}
	_, err := db.AddNewItem(ctx, f.admin, KindTable, ref.MustPath("/ledger/"), ref.MustName("accounts"), "")
	if !fault.Is(err, fault.ArgumentInvalid) {
		t.Errorf("duplicate item: got %v, want ArgumentInvalid", err)
	}

	if _, err := db.RenameItem(ctx, f.admin, KindTable, ref.MustPath("/ledger/accounts"), ref.MustName("gl")); err != nil {
		t.Fatalf("RenameItem: %v", err)
	}
	if _, err := db.MoveItem(ctx, f.admin, KindTable, ref.MustPath("/ledger/gl"), ref.RootPath); err != nil {
		t.Fatalf("MoveItem: %v", err)
	}
	info, err := db.GetItemInfo(ctx, f.admin, KindTable, ref.MustPath("/gl"))
	if err != nil {
		t.Fatalf("GetItemInfo: %v", err)
	}
	if info.Comment != "gl" || info.Kind != KindTable {
		t.Errorf("item info = %+v", info)
	}

	// Every successful mutation appends one revision.
	log, err := db.GetLog(ctx, f.admin, 0)
	if err != nil {
		t.Fatalf("GetLog: %v", err)
	}
	if len(log) != 5 {
		t.Errorf("len(log) = %d, want 5", len(log))
	}
	dbInfo, err := db.GetInfo(ctx, f.admin)
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if dbInfo.Revision != log[len(log)-1].Number {
		t.Errorf("Revision = %d, log tail = %d", dbInfo.Revision, log[len(log)-1].Number)
	}

	if _, err := db.DeleteItem(ctx, f.admin, KindTable, ref.MustPath("/gl")); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	found, err := db.ContainsItem(ctx, f.admin, KindTable, ref.MustPath("/gl"))
	if err != nil {
		t.Fatalf("ContainsItem: %v", err)
	}
	if found {
		t.Error("item still present after delete")
	}
}

func TestItemKindsAreSeparateNamespaces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	db := f.loadDataBase(t, "sales")

	if _, err := db.AddNewItem(ctx, f.admin, KindTable, ref.RootPath, ref.MustName("currency"), ""); err != nil {
		t.Fatalf("add table: %v", err)
	}
	if _, err := db.AddNewItem(ctx, f.admin, KindType, ref.RootPath, ref.MustName("currency"), ""); err != nil {
		t.Fatalf("add type with same name: %v", err)
	}
	_, infos, err := db.GetItemMetaData(ctx, f.admin, KindType)
	if err != nil {
		t.Fatalf("GetItemMetaData: %v", err)
	}
	if len(infos) != 1 || infos[0].Path != ref.MustPath("/currency") {
		t.Errorf("type items = %+v", infos)
	}
}

func TestPrivateDataBaseMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	db := f.loadDataBase(t, "sales")

	f.addUser(t, "bob", []byte("bob-secret"), access.AuthorityMember)
	f.addUser(t, "carol", []byte("carol-secret"), access.AuthorityMember)
	bob := f.login(t, ref.MustUserID("bob"), []byte("bob-secret"))
	carol := f.login(t, ref.MustUserID("carol"), []byte("carol-secret"))

	if _, err := db.SetPrivate(ctx, f.admin); err != nil {
		t.Fatalf("SetPrivate: %v", err)
	}
	_, err := db.SetPrivate(ctx, f.admin)
	if !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("double SetPrivate: got %v, want InvalidOperation", err)
	}

	// Non-members cannot even enter a private data base.
	if err := db.Enter(ctx, bob); !fault.Is(err, fault.PermissionDenied) {
		t.Errorf("enter by non-member: got %v, want PermissionDenied", err)
	}

	if _, err := db.AddAccessMember(ctx, f.admin, ref.MustUserID("bob"), access.AccessEditor); err != nil {
		t.Fatalf("AddAccessMember: %v", err)
	}
	if err := db.Enter(ctx, bob); err != nil {
		t.Fatalf("enter by member: %v", err)
	}
	if err := db.Enter(ctx, carol); !fault.Is(err, fault.PermissionDenied) {
		t.Errorf("enter by carol: got %v, want PermissionDenied", err)
	}

	// Editor tier does not reach structural changes.
	_, err = db.AddNewItem(ctx, bob, KindTable, ref.RootPath, ref.MustName("accounts"), "")
	if !fault.Is(err, fault.PermissionDenied) {
		t.Errorf("structural change by editor: got %v, want PermissionDenied", err)
	}
	if _, err := db.SetAccessMember(ctx, f.admin, ref.MustUserID("bob"), access.AccessDeveloper); err != nil {
		t.Fatalf("SetAccessMember: %v", err)
	}
	if _, err := db.AddNewItem(ctx, bob, KindTable, ref.RootPath, ref.MustName("accounts"), ""); err != nil {
		t.Fatalf("structural change by developer: %v", err)
	}

	if _, err := db.RemoveAccessMember(ctx, f.admin, ref.MustUserID("bob")); err != nil {
		t.Fatalf("RemoveAccessMember: %v", err)
	}
	_, err = db.AddNewItem(ctx, bob, KindTable, ref.RootPath, ref.MustName("orders"), "")
	if !fault.Is(err, fault.PermissionDenied) {
		t.Errorf("change after removal: got %v, want PermissionDenied", err)
	}

	// Back to public, authority implies the tier again.
	if _, err := db.SetPublic(ctx, f.admin); err != nil {
		t.Fatalf("SetPublic: %v", err)
	}
	if _, err := db.AddNewItem(ctx, bob, KindTable, ref.RootPath, ref.MustName("orders"), ""); err != nil {
		t.Fatalf("change on public data base: %v", err)
	}
}

func TestLockGating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	db := f.loadDataBase(t, "sales")

	f.addUser(t, "bob", []byte("bob-secret"), access.AuthorityMember)
	bob := f.login(t, ref.MustUserID("bob"), []byte("bob-secret"))

	// A public data base lets a member make structural changes.
	if _, err := db.AddNewItem(ctx, bob, KindTable, ref.RootPath, ref.MustName("accounts"), ""); err != nil {
		t.Fatalf("AddNewItem before lock: %v", err)
	}

	if _, err := db.Lock(ctx, f.admin, "maintenance"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	_, err := db.Lock(ctx, f.admin, "again")
	if !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("double lock: got %v, want InvalidOperation", err)
	}

	// The lock blocks everyone but the locker and admins.
	_, err = db.AddNewItem(ctx, bob, KindTable, ref.RootPath, ref.MustName("orders"), "")
	if !fault.Is(err, fault.PermissionDenied) {
		t.Errorf("mutation under lock: got %v, want PermissionDenied", err)
	}
	// Reads stay open.
	if err := db.Enter(ctx, bob); err != nil {
		t.Fatalf("Enter under lock: %v", err)
	}
	if _, err := db.GetLog(ctx, bob, 0); err != nil {
		t.Fatalf("GetLog under lock: %v", err)
	}
	// The locker keeps working.
	if _, err := db.AddNewItem(ctx, f.admin, KindTable, ref.RootPath, ref.MustName("invoices"), ""); err != nil {
		t.Fatalf("mutation by locker: %v", err)
	}

	// Only the locker or an admin can unlock.
	_, err = db.Unlock(ctx, bob)
	if !fault.Is(err, fault.PermissionDenied) {
		t.Errorf("unlock by bystander: got %v, want PermissionDenied", err)
	}
	if _, err := db.Unlock(ctx, f.admin); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	_, err = db.Unlock(ctx, f.admin)
	if !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("unlock of unlocked: got %v, want InvalidOperation", err)
	}

	if _, err := db.AddNewItem(ctx, bob, KindTable, ref.RootPath, ref.MustName("orders"), ""); err != nil {
		t.Fatalf("mutation after unlock: %v", err)
	}
}

func TestEnterLeave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	db := f.loadDataBase(t, "sales")

	f.addUser(t, "bob", []byte("bob-secret"), access.AuthorityMember)
	bob := f.login(t, ref.MustUserID("bob"), []byte("bob-secret"))

	if err := db.Enter(ctx, bob); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := db.Enter(ctx, bob); !fault.Is(err, fault.ArgumentInvalid) {
		t.Errorf("double enter: got %v, want ArgumentInvalid", err)
	}
	in, err := db.IsEntered(ctx, f.admin, ref.MustUserID("bob"))
	if err != nil || !in {
		t.Errorf("IsEntered = %v, %v", in, err)
	}

	if err := db.Leave(ctx, bob); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	if err := db.Leave(ctx, bob); !fault.Is(err, fault.NotFound) {
		t.Errorf("double leave: got %v, want NotFound", err)
	}
}

func TestLogoutForcesExit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	db := f.loadDataBase(t, "sales")

	f.addUser(t, "bob", []byte("bob-secret"), access.AuthorityMember)
	bob := f.login(t, ref.MustUserID("bob"), []byte("bob-secret"))

	subscriber := dispatch.New("observer")
	defer subscriber.Close()
	left := make(chan SessionEvent, 4)
	err := db.Dispatcher().Invoke(func() {
		if _, err := db.AuthenticationLeft().Subscribe(subscriber, func(e SessionEvent) {
			left <- e
		}); err != nil {
			t.Errorf("Subscribe: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if err := db.Enter(ctx, bob); err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if err := f.users.Logout(ctx, bob); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	event := testutil.RequireReceive(t, left, time.Second, "left event")
	if event.User != ref.MustUserID("bob") {
		t.Errorf("left event user = %s", event.User)
	}
	in, err := db.IsEntered(ctx, f.admin, ref.MustUserID("bob"))
	if err != nil {
		t.Fatalf("IsEntered: %v", err)
	}
	if in {
		t.Error("bob still entered after logout")
	}
}

func TestUnloadForcesSessionsOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	db := f.loadDataBase(t, "sales")

	f.addUser(t, "bob", []byte("bob-secret"), access.AuthorityMember)
	bob := f.login(t, ref.MustUserID("bob"), []byte("bob-secret"))
	if err := db.Enter(ctx, bob); err != nil {
		t.Fatalf("Enter: %v", err)
	}

	if _, err := db.Unload(ctx, f.admin); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	in, err := db.IsEntered(ctx, f.admin, ref.MustUserID("bob"))
	if err != nil {
		t.Fatalf("IsEntered: %v", err)
	}
	if in {
		t.Error("bob still entered after unload")
	}
	// The session itself survives; only the entry is gone.
	if err := bob.Verify(); err != nil {
		t.Errorf("Verify after unload: %v", err)
	}
}

func TestEditSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	db := f.loadDataBase(t, "sales")
	table := ref.MustPath("/accounts")
	if _, err := db.AddNewItem(ctx, f.admin, KindTable, ref.RootPath, ref.MustName("accounts"), ""); err != nil {
		t.Fatalf("AddNewItem: %v", err)
	}

	if err := db.CheckEnterEdit(ctx, f.admin, KindTable, ref.MustPath("/ghost")); !fault.Is(err, fault.NotFound) {
		t.Errorf("edit of unknown item: got %v, want NotFound", err)
	}

	rows, err := db.AttachEditor(ctx, f.admin, KindTable, table)
	if err != nil {
		t.Fatalf("AttachEditor: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("fresh table rows = %v", rows)
	}
	_, err = db.AttachEditor(ctx, f.admin, KindTable, table)
	if !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("second editor: got %v, want InvalidOperation", err)
	}

	// An open edit session pins the item and the data base.
	_, err = db.DeleteItem(ctx, f.admin, KindTable, table)
	if !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("delete of edited item: got %v, want InvalidOperation", err)
	}
	_, err = db.Unload(ctx, f.admin)
	if !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("unload with open edit: got %v, want InvalidOperation", err)
	}

	if _, err := db.ApplyRows(ctx, f.admin, KindTable, table, map[string]RowFields{
		"acct-100": {"name": "Cash", "type": "asset"},
	}); err != nil {
		t.Fatalf("ApplyRows: %v", err)
	}
	if err := db.DetachEditor(ctx, KindTable, table); err != nil {
		t.Fatalf("DetachEditor: %v", err)
	}
	if err := db.DetachEditor(ctx, KindTable, table); !fault.Is(err, fault.NotFound) {
		t.Errorf("double detach: got %v, want NotFound", err)
	}

	info, err := db.GetItemInfo(ctx, f.admin, KindTable, table)
	if err != nil {
		t.Fatalf("GetItemInfo: %v", err)
	}
	if info.RowCount != 1 {
		t.Errorf("RowCount = %d, want 1", info.RowCount)
	}

	if _, err := db.DeleteItem(ctx, f.admin, KindTable, table); err != nil {
		t.Fatalf("DeleteItem after detach: %v", err)
	}
}
