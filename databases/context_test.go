// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package databases

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vellum-project/vellum/lib/access"
	"github.com/vellum-project/vellum/lib/clock"
	"github.com/vellum-project/vellum/lib/dispatch"
	"github.com/vellum-project/vellum/lib/fault"
	"github.com/vellum-project/vellum/lib/ref"
	"github.com/vellum-project/vellum/lib/testutil"
	"github.com/vellum-project/vellum/storage"
	"github.com/vellum-project/vellum/users"
)

var adminSecret = []byte("admin-secret")

type fixture struct {
	users     *users.Context
	databases *Context
	store     *storage.FileStore
	clock     *clock.FakeClock
	admin     *users.Authentication
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return openFixture(t, store)
}

func openFixture(t *testing.T, store *storage.FileStore) *fixture {
	t.Helper()
	fake := clock.Fake(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accounts, err := users.NewContext(users.Options{
		Store:       store,
		Clock:       fake,
		Logger:      logger,
		SessionTTL:  time.Hour,
		AdminSecret: adminSecret,
	})
	if err != nil {
		t.Fatalf("users.NewContext: %v", err)
	}
	if err := accounts.Open(context.Background()); err != nil {
		t.Fatalf("users.Open: %v", err)
	}
	t.Cleanup(accounts.Stop)

	databases, err := NewContext(Options{Store: store, Clock: fake, Logger: logger})
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if err := databases.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(databases.Stop)

	f := &fixture{users: accounts, databases: databases, store: store, clock: fake}
	f.admin = f.login(t, ref.AdminID, adminSecret)
	return f
}

func (f *fixture) login(t *testing.T, id ref.UserID, secret []byte) *users.Authentication {
	t.Helper()
	token, err := f.users.Login(context.Background(), id, secret)
	if err != nil {
		t.Fatalf("Login(%s): %v", id, err)
	}
	auth, err := f.users.Authenticate(context.Background(), token)
	if err != nil {
		t.Fatalf("Authenticate(%s): %v", id, err)
	}
	return auth
}

func (f *fixture) addUser(t *testing.T, id string, secret []byte, authority access.Authority) ref.UserID {
	t.Helper()
	userID := ref.MustUserID(id)
	_, err := f.users.AddNewUser(context.Background(), f.admin, ref.RootPath, userID, secret, id, authority)
	if err != nil {
		t.Fatalf("AddNewUser(%s): %v", id, err)
	}
	return userID
}

func (f *fixture) createDataBase(t *testing.T, name string) *DataBase {
	t.Helper()
	dbName := ref.MustName(name)
	if _, err := f.databases.AddNewDataBase(context.Background(), f.admin, dbName, "test data base"); err != nil {
		t.Fatalf("AddNewDataBase(%s): %v", name, err)
	}
	db, err := f.databases.GetDataBase(context.Background(), f.admin, dbName)
	if err != nil {
		t.Fatalf("GetDataBase(%s): %v", name, err)
	}
	return db
}

func (f *fixture) loadDataBase(t *testing.T, name string) *DataBase {
	t.Helper()
	db := f.createDataBase(t, name)
	if _, err := db.Load(context.Background(), f.admin); err != nil {
		t.Fatalf("Load(%s): %v", name, err)
	}
	return db
}

func TestAddNewDataBase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	db := f.createDataBase(t, "sales")

	info, err := db.GetInfo(ctx, f.admin)
	if err != nil {
		t.Fatalf("GetInfo: %v", err)
	}
	if info.Name != ref.MustName("sales") || info.State != StateNone || info.Revision != 1 {
		t.Errorf("info = %+v, want sales at revision 1, unloaded", info)
	}
	if !info.Access.Public {
		t.Error("a fresh data base is public")
	}

	_, err = f.databases.AddNewDataBase(ctx, f.admin, ref.MustName("sales"), "again")
	if !fault.Is(err, fault.ArgumentInvalid) {
		t.Errorf("duplicate name: got %v, want ArgumentInvalid", err)
	}
	_, err = f.databases.AddNewDataBase(ctx, f.admin, ref.Name{}, "")
	if !fault.Is(err, fault.ArgumentNull) {
		t.Errorf("zero name: got %v, want ArgumentNull", err)
	}

	f.addUser(t, "bob", []byte("bob-secret"), access.AuthorityMember)
	bob := f.login(t, ref.MustUserID("bob"), []byte("bob-secret"))
	_, err = f.databases.AddNewDataBase(ctx, bob, ref.MustName("shadow"), "")
	if !fault.Is(err, fault.PermissionDenied) {
		t.Errorf("create by member: got %v, want PermissionDenied", err)
	}

	found, err := f.databases.Contains(ctx, f.admin, ref.MustName("sales"))
	if err != nil || !found {
		t.Errorf("Contains(sales) = %v, %v", found, err)
	}
}

func TestRenameDataBase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createDataBase(t, "sales")
	f.createDataBase(t, "billing")

	_, err := f.databases.RenameDataBase(ctx, f.admin, ref.MustName("sales"), ref.MustName("billing"))
	if !fault.Is(err, fault.ArgumentInvalid) {
		t.Errorf("rename to existing name: got %v, want ArgumentInvalid", err)
	}
	_, err = f.databases.RenameDataBase(ctx, f.admin, ref.MustName("ghost"), ref.MustName("x"))
	if !fault.Is(err, fault.NotFound) {
		t.Errorf("rename of unknown: got %v, want NotFound", err)
	}

	// A loaded data base cannot be renamed.
	db, _ := f.databases.GetDataBase(ctx, f.admin, ref.MustName("sales"))
	if _, err := db.Load(ctx, f.admin); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_, err = f.databases.RenameDataBase(ctx, f.admin, ref.MustName("sales"), ref.MustName("ledger"))
	if !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("rename while loaded: got %v, want InvalidOperation", err)
	}
	if _, err := db.Unload(ctx, f.admin); err != nil {
		t.Fatalf("Unload: %v", err)
	}

	if _, err := f.databases.RenameDataBase(ctx, f.admin, ref.MustName("sales"), ref.MustName("ledger")); err != nil {
		t.Fatalf("RenameDataBase: %v", err)
	}
	if _, err := f.databases.GetDataBase(ctx, f.admin, ref.MustName("sales")); !fault.Is(err, fault.NotFound) {
		t.Errorf("old name still resolves: %v", err)
	}
	renamed, err := f.databases.GetDataBase(ctx, f.admin, ref.MustName("ledger"))
	if err != nil {
		t.Fatalf("GetDataBase(ledger): %v", err)
	}
	if renamed.ID() != db.ID() {
		t.Error("rename changed the data base identity")
	}
}

func TestDeleteDataBase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	db := f.loadDataBase(t, "sales")

	_, err := f.databases.DeleteDataBase(ctx, f.admin, ref.MustName("sales"))
	if !fault.Is(err, fault.InvalidOperation) {
		t.Errorf("delete while loaded: got %v, want InvalidOperation", err)
	}
	if _, err := db.Unload(ctx, f.admin); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if _, err := f.databases.DeleteDataBase(ctx, f.admin, ref.MustName("sales")); err != nil {
		t.Fatalf("DeleteDataBase: %v", err)
	}
	found, err := f.databases.Contains(ctx, f.admin, ref.MustName("sales"))
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if found {
		t.Error("data base still present after delete")
	}
	_, err = f.databases.DeleteDataBase(ctx, f.admin, ref.MustName("sales"))
	if !fault.Is(err, fault.NotFound) {
		t.Errorf("double delete: got %v, want NotFound", err)
	}
}

func TestCopyDataBase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	db := f.loadDataBase(t, "sales")
	if _, err := db.AddNewItem(ctx, f.admin, KindTable, ref.RootPath, ref.MustName("accounts"), ""); err != nil {
		t.Fatalf("AddNewItem: %v", err)
	}

	if _, err := f.databases.CopyDataBase(ctx, f.admin, ref.MustName("sales"), ref.MustName("sales-2026"), "year copy"); err != nil {
		t.Fatalf("CopyDataBase: %v", err)
	}
	copied, err := f.databases.GetDataBase(ctx, f.admin, ref.MustName("sales-2026"))
	if err != nil {
		t.Fatalf("GetDataBase: %v", err)
	}
	if _, err := copied.Load(ctx, f.admin); err != nil {
		t.Fatalf("Load of copy: %v", err)
	}
	found, err := copied.ContainsItem(ctx, f.admin, KindTable, ref.MustPath("/accounts"))
	if err != nil {
		t.Fatalf("ContainsItem: %v", err)
	}
	if !found {
		t.Error("copy is missing the source's table")
	}

	// The copy starts its own revision history.
	log, err := copied.GetLog(ctx, f.admin, 0)
	if err != nil {
		t.Fatalf("GetLog: %v", err)
	}
	if len(log) != 1 || log[0].Number != 1 {
		t.Errorf("copy log = %+v, want a single revision 1", log)
	}

	_, err = f.databases.CopyDataBase(ctx, f.admin, ref.MustName("ghost"), ref.MustName("x"), "")
	if !fault.Is(err, fault.NotFound) {
		t.Errorf("copy of unknown source: got %v, want NotFound", err)
	}
	_, err = f.databases.CopyDataBase(ctx, f.admin, ref.MustName("sales"), ref.MustName("sales-2026"), "")
	if !fault.Is(err, fault.ArgumentInvalid) {
		t.Errorf("copy onto existing target: got %v, want ArgumentInvalid", err)
	}
}

func TestGetDataBaseInfosSorted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"zulu", "alpha", "mike"} {
		f.createDataBase(t, name)
	}
	infos, err := f.databases.GetDataBaseInfos(ctx, f.admin)
	if err != nil {
		t.Fatalf("GetDataBaseInfos: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("len(infos) = %d, want 3", len(infos))
	}
	for i, want := range []string{"alpha", "mike", "zulu"} {
		if infos[i].Name != ref.MustName(want) {
			t.Errorf("infos[%d].Name = %s, want %s", i, infos[i].Name, want)
		}
	}
}

func TestCollectionPersistenceAcrossRestart(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	f := openFixture(t, store)
	ctx := context.Background()

	db := f.loadDataBase(t, "sales")
	if _, err := db.AddNewItemCategory(ctx, f.admin, KindTable, ref.RootPath, ref.MustName("ledger")); err != nil {
		t.Fatalf("AddNewItemCategory: %v", err)
	}
	if _, err := db.AddNewItem(ctx, f.admin, KindTable, ref.MustPath("/ledger/"), ref.MustName("accounts"), "gl"); err != nil {
		t.Fatalf("AddNewItem: %v", err)
	}
	if _, err := db.Unload(ctx, f.admin); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if err := f.databases.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	f.databases.Stop()
	if err := f.users.Close(ctx); err != nil {
		t.Fatalf("users.Close: %v", err)
	}
	f.users.Stop()

	g := openFixture(t, store)
	infos, err := g.databases.GetDataBaseInfos(ctx, g.admin)
	if err != nil {
		t.Fatalf("GetDataBaseInfos after restart: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != ref.MustName("sales") || infos[0].Revision != 3 {
		t.Errorf("infos after restart = %+v, want sales at revision 3", infos)
	}
	restored, err := g.databases.GetDataBase(ctx, g.admin, ref.MustName("sales"))
	if err != nil {
		t.Fatalf("GetDataBase after restart: %v", err)
	}
	if _, err := restored.Load(ctx, g.admin); err != nil {
		t.Fatalf("Load after restart: %v", err)
	}
	found, err := restored.ContainsItem(ctx, g.admin, KindTable, ref.MustPath("/ledger/accounts"))
	if err != nil {
		t.Fatalf("ContainsItem: %v", err)
	}
	if !found {
		t.Error("table lost across restart")
	}
}

func TestCollectionEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	subscriber := dispatch.New("observer")
	defer subscriber.Close()
	created := make(chan DataBasesEvent, 4)
	renamed := make(chan DataBasesEvent, 4)
	err := f.databases.Dispatcher().Invoke(func() {
		if _, err := f.databases.ItemsCreated().Subscribe(subscriber, func(e DataBasesEvent) {
			created <- e
		}); err != nil {
			t.Errorf("Subscribe: %v", err)
		}
		if _, err := f.databases.ItemsRenamed().Subscribe(subscriber, func(e DataBasesEvent) {
			renamed <- e
		}); err != nil {
			t.Errorf("Subscribe: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	f.createDataBase(t, "sales")
	event := testutil.RequireReceive(t, created, time.Second, "created event")
	if len(event.DataBases) != 1 || event.DataBases[0].Info.Name != ref.MustName("sales") {
		t.Errorf("created event = %+v", event.DataBases)
	}

	if _, err := f.databases.RenameDataBase(ctx, f.admin, ref.MustName("sales"), ref.MustName("ledger")); err != nil {
		t.Fatalf("RenameDataBase: %v", err)
	}
	event = testutil.RequireReceive(t, renamed, time.Second, "renamed event")
	if len(event.DataBases) != 1 || event.DataBases[0].OldName != ref.MustName("sales") {
		t.Errorf("renamed event = %+v", event.DataBases)
	}
	if event.DataBases[0].Info.Name != ref.MustName("ledger") {
		t.Errorf("renamed event info = %+v", event.DataBases[0].Info)
	}
}
