package store

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustUser(t *testing.T, db *DB, name string) *User {
	t.Helper()
	u, err := db.UpsertUser(name)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestMigrateAppliesOnFreshDB(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "fresh.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if !result.Changed() || result.From != 0 || result.To != 1 {
		t.Errorf("fresh Migrate() = %+v, want 0 -> 1", result)
	}

	result, err = db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed() {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.To != 1 {
		t.Errorf("version = %d, want 1", result.To)
	}
}

func TestUpsertUserStableID(t *testing.T) {
	db := testDB(t)

	a := mustUser(t, db, "ana")
	again := mustUser(t, db, "ana")
	if a.ID != again.ID {
		t.Errorf("id changed on second upsert: %q vs %q", a.ID, again.ID)
	}

	got, err := db.GetUser(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "ana" {
		t.Errorf("name = %q, want ana", got.Name)
	}

	if _, err := db.GetUser("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEnsureConversationIdempotent(t *testing.T) {
	db := testDB(t)
	ana := mustUser(t, db, "ana")
	loja := mustUser(t, db, "loja")

	c, err := db.EnsureConversation("k1", ana.ID, loja.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.CounterpartName != "loja" {
		t.Errorf("counterpart name = %q, want loja", c.CounterpartName)
	}

	// The seller opening the same key does not swap participants.
	c, err = db.EnsureConversation("k1", loja.ID, ana.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.InitiatorID != ana.ID || c.CounterpartID != loja.ID {
		t.Errorf("participants = %q/%q, want %q/%q", c.InitiatorID, c.CounterpartID, ana.ID, loja.ID)
	}
	if c.CounterpartName != "ana" {
		t.Errorf("counterpart name for seller = %q, want ana", c.CounterpartName)
	}
}

func TestInsertMessageCreatesConversation(t *testing.T) {
	db := testDB(t)
	ana := mustUser(t, db, "ana")
	loja := mustUser(t, db, "loja")

	m, err := db.InsertMessage("k1", ana.ID, "oi")
	if err != nil {
		t.Fatal(err)
	}
	if m.ID == "" || m.AuthorName != "ana" {
		t.Errorf("got %+v", m)
	}

	// Participants recorded implicitly are completed by a later ensure.
	if _, err := db.EnsureConversation("k1", ana.ID, loja.ID); err != nil {
		t.Fatal(err)
	}
	ids, err := db.Participants("k1")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != ana.ID || ids[1] != loja.ID {
		t.Errorf("participants = %v", ids)
	}

	convs, err := db.ListConversations(loja.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 {
		t.Fatalf("got %d conversations, want 1", len(convs))
	}
	if convs[0].LastMessageBody != "oi" || convs[0].LastMessageAt != m.CreatedAt {
		t.Errorf("preview = %q@%d", convs[0].LastMessageBody, convs[0].LastMessageAt)
	}
	if convs[0].CounterpartName != "ana" {
		t.Errorf("counterpart = %q, want ana", convs[0].CounterpartName)
	}

	if _, err := db.Participants("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListMessagesReturnsLatestAscending(t *testing.T) {
	db := testDB(t)
	ana := mustUser(t, db, "ana")

	for i := 0; i < 5; i++ {
		if _, err := db.InsertMessage("k1", ana.ID, fmt.Sprintf("m%d", i)); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := db.ListMessages("k1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	for i, want := range []string{"m2", "m3", "m4"} {
		if msgs[i].Body != want {
			t.Errorf("msgs[%d] = %q, want %q", i, msgs[i].Body, want)
		}
	}

	empty, err := db.ListMessages("nothing", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d messages for unknown key", len(empty))
	}
}

func TestMarkReadSkipsOwnMessages(t *testing.T) {
	db := testDB(t)
	ana := mustUser(t, db, "ana")
	loja := mustUser(t, db, "loja")

	if _, err := db.InsertMessage("k1", ana.ID, "oi"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertMessage("k1", loja.ID, "ola"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertMessage("k1", loja.ID, "tudo bem?"); err != nil {
		t.Fatal(err)
	}

	n, err := db.MarkRead("k1", ana.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("marked %d, want 2", n)
	}

	// Already read rows are not stamped again.
	n, err = db.MarkRead("k1", ana.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("second mark = %d, want 0", n)
	}

	msgs, err := db.ListMessages("k1", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, m := range msgs {
		read := m.ReadAt != 0
		if want := m.AuthorID != ana.ID; read != want {
			t.Errorf("%q read = %v, want %v", m.Body, read, want)
		}
	}
}

func TestEnsureAfterCounterpartSentFirst(t *testing.T) {
	db := testDB(t)
	ana := mustUser(t, db, "ana")
	loja := mustUser(t, db, "loja")

	if _, err := db.InsertMessage("k1", loja.ID, "bem-vinda"); err != nil {
		t.Fatal(err)
	}
	c, err := db.EnsureConversation("k1", ana.ID, loja.ID)
	if err != nil {
		t.Fatal(err)
	}
	if c.InitiatorID != loja.ID || c.CounterpartID != ana.ID {
		t.Errorf("participants = %q/%q", c.InitiatorID, c.CounterpartID)
	}
	if c.CounterpartName != "loja" {
		t.Errorf("counterpart for ana = %q, want loja", c.CounterpartName)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	db := testDB(t)
	boom := errors.New("boom")

	err := db.inTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO users (id, name, created_at) VALUES ('u1', 'ana', 0)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if _, err := db.GetUser("u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("user survived rollback: %v", err)
	}
}
