package contract

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"contractdesk/access"
	"contractdesk/audit"
	"contractdesk/notify"
	"contractdesk/record"
	"contractdesk/verify"
)

var (
	adminActor = access.Actor{Role: access.RoleAdmin, Username: "admin"}
	techActor  = access.Actor{Role: access.RoleTechnician, Username: "tech"}
)

type captureNotifier struct {
	lastPhone string
	lastCode  string
}

func (c *captureNotifier) AttemptSend(_ context.Context, phone, code string) (notify.DeliveryResult, error) {
	c.lastPhone = phone
	c.lastCode = code
	return notify.DeliveryResult{MessageID: "m-1", Delivered: true}, nil
}

type facadeFixture struct {
	svc      *Service
	records  *record.Service
	notifier *captureNotifier
	ledger   *audit.MemoryLedger
}

func newFacade(t *testing.T) facadeFixture {
	t.Helper()

	ledger := audit.NewMemoryLedger()
	notifier := &captureNotifier{}

	records := record.NewService(record.NewMemoryRepository(), ledger)
	verifier := verify.NewService(verify.NewMemoryStore(), notifier, ledger, nil)
	accessSvc := access.NewService(access.NewMemoryStaffRepository(), access.NewMemoryCredentialStore(""), ledger, "test-secret")
	if err := accessSvc.EnsureAdminSeed(context.Background(), ""); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	return facadeFixture{
		svc:      NewService(records, verifier, accessSvc, ledger, nil),
		records:  records,
		notifier: notifier,
		ledger:   ledger,
	}
}

func (f facadeFixture) seedRecord(t *testing.T, params record.UpsertParams) record.Record {
	t.Helper()
	rec, err := f.records.Upsert(context.Background(), params, adminActor)
	if err != nil {
		t.Fatalf("seed record: %v", err)
	}
	return rec
}

func TestClientSelfServiceScenario(t *testing.T) {
	f := newFacade(t)
	ctx := context.Background()

	f.seedRecord(t, record.UpsertParams{Contract: "CTR-2024-002", Nom: "Bob Martin"})

	resp := f.svc.RequestVerification(ctx, "CTR-2024-002", "0712345678")
	if !resp.Success {
		t.Fatalf("request verification failed: %+v", resp)
	}
	if f.notifier.lastCode == "" {
		t.Fatal("expected a code handed to the notifier")
	}

	confirm := f.svc.ConfirmVerification(ctx, "CTR-2024-002", f.notifier.lastCode, "0712345678")
	if !confirm.Success {
		t.Fatalf("confirm failed: %+v", confirm)
	}
	rec := confirm.Data
	if !rec.PhoneVerified || rec.Phone == nil || *rec.Phone != "0712345678" {
		t.Fatalf("expected verified phone applied, got %+v", rec)
	}
	if rec.PhoneUpdateCount != 1 {
		t.Fatalf("expected quota counter at 1, got %d", rec.PhoneUpdateCount)
	}
	if rec.LastModifiedBy != "client" {
		t.Fatalf("expected lastModifiedBy client, got %q", rec.LastModifiedBy)
	}

	// Quota exhausted: no new code may even be issued.
	again := f.svc.RequestVerification(ctx, "CTR-2024-002", "0799999999")
	if again.Success || again.Kind != KindUpdateNotAllowed {
		t.Fatalf("expected update_not_allowed, got %+v", again)
	}
}

func TestStaffAssistedVerificationBypassesQuota(t *testing.T) {
	f := newFacade(t)
	ctx := context.Background()

	phone := "0611111111"
	rec := f.seedRecord(t, record.UpsertParams{Contract: "CTR-1", Nom: "Alice", Phone: &phone})
	if _, err := f.records.ApplyVerifiedPhone(ctx, rec.ID, phone, access.ClientActor); err != nil {
		t.Fatalf("exhaust quota: %v", err)
	}

	// Client is locked out...
	blocked := f.svc.RequestVerification(ctx, "CTR-1", "0722222222")
	if blocked.Success || blocked.Kind != KindUpdateNotAllowed {
		t.Fatalf("expected client gate, got %+v", blocked)
	}

	// ...but the technician-assisted path still works and leaves the
	// counter untouched.
	sent := f.svc.SendVerificationCode(ctx, "CTR-1", "0722222222", techActor)
	if !sent.Success {
		t.Fatalf("staff send failed: %+v", sent)
	}
	verified := f.svc.VerifyCode(ctx, "CTR-1", f.notifier.lastCode, "0722222222", techActor)
	if !verified.Success {
		t.Fatalf("staff verify failed: %+v", verified)
	}
	if verified.Data.PhoneUpdateCount != 1 {
		t.Fatalf("staff path must not move the quota, got %d", verified.Data.PhoneUpdateCount)
	}
	if *verified.Data.Phone != "0722222222" {
		t.Fatalf("expected phone replaced, got %q", *verified.Data.Phone)
	}
}

func TestVerificationFailureEnvelopes(t *testing.T) {
	f := newFacade(t)
	ctx := context.Background()

	f.seedRecord(t, record.UpsertParams{Contract: "CTR-1", Nom: "Alice"})

	if resp := f.svc.RequestVerification(ctx, "CTR-1", "12345"); resp.Success || resp.Kind != KindValidation {
		t.Fatalf("expected validation failure, got %+v", resp)
	}
	if resp := f.svc.ConfirmVerification(ctx, "CTR-1", "123456", "0712345678"); resp.Success || resp.Kind != KindNotFound {
		t.Fatalf("expected no-session failure, got %+v", resp)
	}
	if resp := f.svc.Lookup(ctx, "CTR-MISSING"); resp.Success || resp.Message != "Contract not found." {
		t.Fatalf("expected contract-not-found message, got %+v", resp)
	}

	f.svc.RequestVerification(ctx, "CTR-1", "0712345678")
	if resp := f.svc.ConfirmVerification(ctx, "CTR-1", "000000", "0712345678"); resp.Success || resp.Kind != KindInvalidCode {
		t.Fatalf("expected invalid_code, got %+v", resp)
	}
}

func TestRoleGating(t *testing.T) {
	f := newFacade(t)
	ctx := context.Background()

	if resp := f.svc.SaveRecord(ctx, record.UpsertParams{Contract: "C", Nom: "N"}, access.ClientActor); resp.Success || resp.Kind != KindForbidden {
		t.Fatalf("client must not upsert, got %+v", resp)
	}
	if resp := f.svc.ListTechnicians(ctx, techActor); resp.Success || resp.Kind != KindForbidden {
		t.Fatalf("technician must not list staff, got %+v", resp)
	}
	if resp := f.svc.AuditLog(ctx, techActor); resp.Success || resp.Kind != KindForbidden {
		t.Fatalf("technician must not read audit, got %+v", resp)
	}
	if resp := f.svc.ChangePassword(ctx, "someone-else", "secret1", techActor); resp.Success || resp.Kind != KindForbidden {
		t.Fatalf("technician must not rotate others, got %+v", resp)
	}
	if resp := f.svc.ChangePassword(ctx, "admin", "newpass1", adminActor); !resp.Success {
		t.Fatalf("admin rotation failed: %+v", resp)
	}
}

func TestLoginEnvelope(t *testing.T) {
	f := newFacade(t)
	ctx := context.Background()

	good := f.svc.Login(ctx, "admin", access.DefaultAdminPassword)
	if !good.Success || good.Data.Identity.Role != access.RoleAdmin || good.Data.Token == "" {
		t.Fatalf("expected admin login, got %+v", good)
	}
	bad := f.svc.Login(ctx, "admin", "nope")
	if bad.Success || bad.Kind != KindInvalidCredentials {
		t.Fatalf("expected invalid credentials envelope, got %+v", bad)
	}
}

func TestImportCSV(t *testing.T) {
	f := newFacade(t)
	ctx := context.Background()

	csvPayload := strings.Join([]string{
		"Contract,Nom,CIN,Phone",
		"CTR-1,Alice,AB123,0611111111",
		"orphan", // fewer than two columns: dropped before the engine
		"CTR-2,Bob",
		"CTR-1,Duplicate,XX,0622222222",
	}, "\n")

	resp := f.svc.ImportCSV(ctx, strings.NewReader(csvPayload), techActor)
	if !resp.Success {
		t.Fatalf("import failed: %+v", resp)
	}
	if resp.Data.Imported != 2 || resp.Data.Failed != 1 {
		t.Fatalf("expected imported=2 failed=1, got %+v", resp.Data)
	}

	lookup := f.svc.Lookup(ctx, "CTR-1")
	if !lookup.Success || lookup.Data.Nom != "Alice" {
		t.Fatalf("expected imported record, got %+v", lookup)
	}
}

func TestExportCSV(t *testing.T) {
	f := newFacade(t)
	ctx := context.Background()

	phone := "0611223344"
	f.seedRecord(t, record.UpsertParams{Contract: "CTR-1", Nom: "Alice", CIN: strPtr("AB123456"), Phone: &phone})

	var buf bytes.Buffer
	if err := f.svc.ExportCSV(ctx, &buf, adminActor); err != nil {
		t.Fatalf("export: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "ID,Contract,Nom,CIN,Phone,Verified,Modifie_Par" {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if len(lines) != 2 || !strings.Contains(lines[1], "CTR-1,Alice,AB123456,0611223344,Non,admin") {
		t.Fatalf("unexpected rows %v", lines)
	}

	if err := f.svc.ExportCSV(ctx, &buf, techActor); err == nil {
		t.Fatal("expected export to be admin-only")
	}
}

func TestExportXLSX(t *testing.T) {
	f := newFacade(t)
	ctx := context.Background()

	f.seedRecord(t, record.UpsertParams{Contract: "CTR-1", Nom: "Alice"})

	raw, err := f.svc.ExportXLSX(ctx, adminActor)
	if err != nil {
		t.Fatalf("export xlsx: %v", err)
	}

	wb, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header + one row, got %d", len(rows))
	}
	if rows[0][1] != "Contract" || rows[1][1] != "CTR-1" {
		t.Fatalf("unexpected sheet content %v", rows)
	}
}

func TestAuditLogNewestFirst(t *testing.T) {
	f := newFacade(t)
	ctx := context.Background()

	f.seedRecord(t, record.UpsertParams{Contract: "CTR-1", Nom: "Alice"})
	f.svc.RequestVerification(ctx, "CTR-1", "0712345678")

	resp := f.svc.AuditLog(ctx, adminActor)
	if !resp.Success || len(resp.Data) < 2 {
		t.Fatalf("expected audit entries, got %+v", resp)
	}
	if resp.Data[0].Action != audit.VerificationSent {
		t.Fatalf("expected newest entry first, got %s", resp.Data[0].Action)
	}
	for i := 1; i < len(resp.Data); i++ {
		if resp.Data[i-1].ID < resp.Data[i].ID {
			t.Fatal("audit entries must be newest first")
		}
	}
}

func TestMaskCIN(t *testing.T) {
	cases := map[string]string{
		"AB123456": "******56",
		"AB":       "AB",
		"":         "",
		"A1C":      "*1C",
	}
	for in, want := range cases {
		if got := MaskCIN(in); got != want {
			t.Fatalf("MaskCIN(%q) = %q, want %q", in, got, want)
		}
	}
}

func strPtr(v string) *string { return &v }
