package postgres

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tapstand/kiosk/internal/domain"
	"github.com/tapstand/kiosk/internal/interfaces"
)

type fakeTag int64

func (t fakeTag) RowsAffected() int64 { return int64(t) }

type fakeRow struct {
	scan func(dest ...any) error
}

func (r *fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakeDB struct {
	execSQL      []string
	execArgs     [][]any
	rowsAffected int64
	row          *fakeRow
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (CommandTag, error) {
	f.execSQL = append(f.execSQL, sql)
	f.execArgs = append(f.execArgs, args)
	return fakeTag(f.rowsAffected), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (Rows, error) {
	panic("query not expected")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) Row { return f.row }

func (f *fakeDB) Begin(context.Context) (Tx, error) { panic("begin not expected") }

func (f *fakeDB) Close() {}

func TestUpsertNeverPersistsPushedVerifiedFlag(t *testing.T) {
	db := &fakeDB{rowsAffected: 1}
	repo := NewSessionRepository(db)

	proj := interfaces.SessionProjection{
		Token:    "kiosk-1",
		Screen:   domain.ScreenPayment,
		Verified: true,
	}
	if err := repo.Upsert(context.Background(), proj); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if len(db.execArgs) != 1 {
		t.Fatalf("expected one exec, got %d", len(db.execArgs))
	}
	if !strings.Contains(db.execSQL[0], "FALSE") {
		t.Errorf("insert must hardcode verified = FALSE, got query %q", db.execSQL[0])
	}
	for _, arg := range db.execArgs[0] {
		if b, ok := arg.(bool); ok && b {
			t.Errorf("pushed verified flag leaked into exec args: %v", db.execArgs[0])
		}
	}

	body, ok := db.execArgs[0][1].([]byte)
	if !ok {
		t.Fatalf("expected state body as second arg, got %T", db.execArgs[0][1])
	}
	var stored interfaces.SessionProjection
	if err := json.Unmarshal(body, &stored); err != nil {
		t.Fatalf("stored body is not valid JSON: %v", err)
	}
	if stored.Verified {
		t.Error("pushed verified flag leaked into stored state body")
	}
}

func TestFindReturnsColumnVerifiedNotBodyVerified(t *testing.T) {
	body, err := json.Marshal(interfaces.SessionProjection{
		Token:  "kiosk-1",
		Screen: domain.ScreenPayment,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	db := &fakeDB{row: &fakeRow{scan: func(dest ...any) error {
		*dest[0].(*[]byte) = body
		*dest[1].(*bool) = true
		return nil
	}}}
	repo := NewSessionRepository(db)

	proj, found, err := repo.Find(context.Background(), "kiosk-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !found {
		t.Fatal("expected session to be found")
	}
	if !proj.Verified {
		t.Error("verified column must drive the loaded projection")
	}
}

func TestSetVerifiedRequiresExistingSession(t *testing.T) {
	db := &fakeDB{rowsAffected: 0}
	repo := NewSessionRepository(db)

	if err := repo.SetVerified(context.Background(), "missing", 25); err == nil {
		t.Error("expected error when no session row matched")
	}
}
