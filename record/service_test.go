package record

import (
	"context"
	"errors"
	"testing"
	"time"

	"contractdesk/access"
	"contractdesk/audit"
)

var techActor = access.Actor{Role: access.RoleTechnician, Username: "tech"}

func newTestService() (*Service, *audit.MemoryLedger) {
	ledger := audit.NewMemoryLedger()
	svc := NewService(NewMemoryRepository(), ledger)
	return svc, ledger
}

func TestService_UpsertAndFind(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	phone := "0611223344"
	rec, err := svc.Upsert(ctx, UpsertParams{
		Contract: "CTR-2024-001",
		Nom:      "Alice Dupont",
		CIN:      strPtr("AB123456"),
		Phone:    &phone,
	}, techActor)
	if err != nil {
		t.Fatalf("upsert: unexpected error: %v", err)
	}
	if rec.ID == 0 {
		t.Fatal("upsert: expected assigned id")
	}
	if rec.PhoneUpdateCount != 0 {
		t.Fatalf("upsert: expected phoneUpdateCount 0 got %d", rec.PhoneUpdateCount)
	}
	if rec.CreatedAt.IsZero() || rec.LastModifiedAt.IsZero() {
		t.Fatal("upsert: expected timestamps to be stamped")
	}
	if rec.LastModifiedBy != "tech" {
		t.Fatalf("upsert: expected lastModifiedBy tech got %q", rec.LastModifiedBy)
	}

	found, err := svc.FindByContract(ctx, "  ctr-2024-001 ")
	if err != nil {
		t.Fatalf("find: unexpected error: %v", err)
	}
	if found.ID != rec.ID || found.Nom != "Alice Dupont" {
		t.Fatalf("find: got %+v", found)
	}
}

func TestService_UpsertMergePreservesAbsentFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	phone := "0611223344"
	rec, err := svc.Upsert(ctx, UpsertParams{
		Contract: "CTR-2024-001",
		Nom:      "Alice Dupont",
		CIN:      strPtr("AB123456"),
		Phone:    &phone,
	}, techActor)
	if err != nil {
		t.Fatalf("seed upsert: %v", err)
	}

	updated, err := svc.Upsert(ctx, UpsertParams{
		ID:       rec.ID,
		Contract: "CTR-2024-001",
		Nom:      "Alice Martin",
	}, techActor)
	if err != nil {
		t.Fatalf("merge upsert: %v", err)
	}
	if updated.Nom != "Alice Martin" {
		t.Fatalf("expected nom overwritten, got %q", updated.Nom)
	}
	if updated.CIN != "AB123456" {
		t.Fatalf("expected cin preserved, got %q", updated.CIN)
	}
	if updated.Phone == nil || *updated.Phone != phone {
		t.Fatalf("expected phone preserved, got %v", updated.Phone)
	}
	if updated.CreatedAt != rec.CreatedAt {
		t.Fatal("expected createdAt unchanged on update")
	}
}

func TestService_UpsertDuplicateContract(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	if _, err := svc.Upsert(ctx, UpsertParams{Contract: "CTR-A", Nom: "First"}, techActor); err != nil {
		t.Fatalf("seed: %v", err)
	}
	second, err := svc.Upsert(ctx, UpsertParams{Contract: "CTR-B", Nom: "Second"}, techActor)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Same contract, different id: conflict regardless of case.
	if _, err := svc.Upsert(ctx, UpsertParams{ID: second.ID, Contract: "ctr-a", Nom: "Second"}, techActor); !errors.Is(err, ErrContractTaken) {
		t.Fatalf("expected ErrContractTaken, got %v", err)
	}

	// Store unchanged after the failed upsert.
	unchanged, err := svc.FindByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if unchanged.Contract != "CTR-B" {
		t.Fatalf("expected store unchanged, got contract %q", unchanged.Contract)
	}
}

func TestService_UpsertValidation(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.Upsert(context.Background(), UpsertParams{Contract: "  ", Nom: "X"}, techActor); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Upsert(context.Background(), UpsertParams{Contract: "CTR-A"}, techActor); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing nom, got %v", err)
	}
}

func TestService_Delete(t *testing.T) {
	svc, ledger := newTestService()
	ctx := context.Background()

	rec, err := svc.Upsert(ctx, UpsertParams{Contract: "CTR-A", Nom: "X"}, techActor)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := svc.Delete(ctx, rec.ID, techActor); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(ctx, rec.ID, techActor); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}

	entries, _ := ledger.List(ctx)
	if len(entries) == 0 || entries[0].Action != audit.UserDeleted {
		t.Fatalf("expected USER_DELETED as newest audit entry, got %+v", entries)
	}
}

func TestService_ImportBatchRowIsolation(t *testing.T) {
	svc, ledger := newTestService()
	ctx := context.Background()

	result, err := svc.ImportBatch(ctx, []ImportRow{
		{Contract: "A", Nom: "X"},
		{Contract: "A", Nom: "Y"}, // duplicate within batch
		{Contract: "", Nom: "Z"},  // missing contract
		{Contract: "B", Nom: "W", Phone: "0612345678"},
	}, techActor)
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	if result.Imported != 2 || result.Failed != 2 {
		t.Fatalf("expected imported=2 failed=2, got %+v", result)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 row errors, got %v", result.Errors)
	}

	imported, err := svc.FindByContract(ctx, "B")
	if err != nil {
		t.Fatalf("find imported: %v", err)
	}
	if imported.PhoneVerified || imported.PhoneUpdateCount != 0 {
		t.Fatalf("imported rows must start unverified with zero count, got %+v", imported)
	}

	entries, _ := ledger.List(ctx)
	var batchEntries int
	for _, e := range entries {
		if e.Action == audit.BatchImport {
			batchEntries++
			if e.Details != "Imported 2 users via CSV" {
				t.Fatalf("unexpected batch details %q", e.Details)
			}
		}
	}
	if batchEntries != 1 {
		t.Fatalf("expected one BATCH_IMPORT entry, got %d", batchEntries)
	}
}

func TestService_ImportBatchDuplicateAgainstStore(t *testing.T) {
	svc, ledger := newTestService()
	ctx := context.Background()

	if _, err := svc.Upsert(ctx, UpsertParams{Contract: "CTR-X", Nom: "Seed"}, techActor); err != nil {
		t.Fatalf("seed: %v", err)
	}

	result, err := svc.ImportBatch(ctx, []ImportRow{{Contract: "ctr-x", Nom: "Dup"}}, techActor)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Imported != 0 || result.Failed != 1 {
		t.Fatalf("expected all rows rejected, got %+v", result)
	}

	// No BATCH_IMPORT entry when nothing was imported.
	entries, _ := ledger.List(ctx)
	for _, e := range entries {
		if e.Action == audit.BatchImport {
			t.Fatalf("unexpected BATCH_IMPORT entry: %+v", e)
		}
	}
}

func TestService_ApplyVerifiedPhoneCountsClientOnly(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	rec, err := svc.Upsert(ctx, UpsertParams{Contract: "CTR-A", Nom: "X"}, techActor)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	asClient, err := svc.ApplyVerifiedPhone(ctx, rec.ID, "0612345678", access.ClientActor)
	if err != nil {
		t.Fatalf("apply client: %v", err)
	}
	if asClient.PhoneUpdateCount != 1 || !asClient.PhoneVerified {
		t.Fatalf("expected count=1 verified, got %+v", asClient)
	}
	if asClient.LastVerifiedAt == nil {
		t.Fatal("expected lastVerifiedAt stamped")
	}
	if asClient.LastModifiedBy != "client" {
		t.Fatalf("expected lastModifiedBy client, got %q", asClient.LastModifiedBy)
	}

	asStaff, err := svc.ApplyVerifiedPhone(ctx, rec.ID, "0699887766", techActor)
	if err != nil {
		t.Fatalf("apply staff: %v", err)
	}
	if asStaff.PhoneUpdateCount != 1 {
		t.Fatalf("staff verification must not move the quota, got count %d", asStaff.PhoneUpdateCount)
	}
	if *asStaff.Phone != "0699887766" {
		t.Fatalf("expected phone replaced, got %q", *asStaff.Phone)
	}
}

func TestService_ClockInjection(t *testing.T) {
	svc, _ := newTestService()
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return fixed })

	rec, err := svc.Upsert(context.Background(), UpsertParams{Contract: "CTR-A", Nom: "X"}, techActor)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !rec.CreatedAt.Equal(fixed) {
		t.Fatalf("expected createdAt %v got %v", fixed, rec.CreatedAt)
	}
}

func strPtr(v string) *string { return &v }
