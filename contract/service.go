// Package contract is the facade composing the record store, the
// verification engine, access control and the audit ledger into the
// operations consumed by client, technician and admin interfaces.
// Every domain error is recovered here and translated into the
// response envelope; none escapes to the caller as a raw error.
package contract

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"contractdesk/access"
	"contractdesk/audit"
	"contractdesk/record"
	"contractdesk/verify"
)

type Service struct {
	records  *record.Service
	verifier *verify.Service
	access   *access.Service
	ledger   audit.Ledger
	log      *zap.Logger
}

func NewService(records *record.Service, verifier *verify.Service, accessSvc *access.Service, ledger audit.Ledger, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		records:  records,
		verifier: verifier,
		access:   accessSvc,
		ledger:   ledger,
		log:      log,
	}
}

// --- Client flow ---

// Lookup resolves a contract number for the self-service client.
func (s *Service) Lookup(ctx context.Context, contract string) Response[record.Record] {
	rec, err := s.records.FindByContract(ctx, contract)
	if err != nil {
		return failure[record.Record](err)
	}
	return ok(rec)
}

// RequestVerification starts the client self-service phone update. The
// quota gate runs before any code is issued: a client whose phone is
// already set and whose update count reached 1 is refused.
func (s *Service) RequestVerification(ctx context.Context, contract, phone string) Response[struct{}] {
	rec, err := s.records.FindByContract(ctx, contract)
	if err != nil {
		return failure[struct{}](err)
	}
	if !canClientUpdatePhone(rec) {
		return failure[struct{}](ErrUpdateNotAllowed)
	}
	if _, err := s.verifier.Issue(ctx, rec.ID, rec.Contract, phone, access.ClientActor); err != nil {
		return failure[struct{}](err)
	}
	return okMsg(struct{}{}, "Code sent via SMS!")
}

// ConfirmVerification redeems the client's code and applies the phone
// update: phone set and verified, quota counter incremented.
func (s *Service) ConfirmVerification(ctx context.Context, contract, code, phone string) Response[record.Record] {
	return s.redeemAndApply(ctx, contract, code, phone, access.ClientActor)
}

// --- Technician / admin flow ---

// SaveRecord creates or updates a record with full staff access.
func (s *Service) SaveRecord(ctx context.Context, params record.UpsertParams, actor access.Actor) Response[record.Record] {
	if resp := requireStaff[record.Record](actor); resp != nil {
		return *resp
	}
	rec, err := s.records.Upsert(ctx, params, actor)
	if err != nil {
		return failure[record.Record](err)
	}
	return ok(rec)
}

// DeleteRecord removes a record by id.
func (s *Service) DeleteRecord(ctx context.Context, id int64, actor access.Actor) Response[struct{}] {
	if resp := requireStaff[struct{}](actor); resp != nil {
		return *resp
	}
	if err := s.records.Delete(ctx, id, actor); err != nil {
		return failure[struct{}](err)
	}
	return ok(struct{}{})
}

// ListRecords returns every record for staff screens.
func (s *Service) ListRecords(ctx context.Context, actor access.Actor) Response[[]record.Record] {
	if resp := requireStaff[[]record.Record](actor); resp != nil {
		return *resp
	}
	recs, err := s.records.ListAll(ctx)
	if err != nil {
		return failure[[]record.Record](err)
	}
	return ok(recs)
}

// ImportRecords runs a batch import with per-row failure isolation.
func (s *Service) ImportRecords(ctx context.Context, rows []record.ImportRow, actor access.Actor) Response[record.ImportResult] {
	if resp := requireStaff[record.ImportResult](actor); resp != nil {
		return *resp
	}
	result, err := s.records.ImportBatch(ctx, rows, actor)
	if err != nil {
		return failure[record.ImportResult](err)
	}
	return ok(result)
}

// SendVerificationCode is the staff-assisted path. Unlike the client
// path it is not gated by the phone update quota.
func (s *Service) SendVerificationCode(ctx context.Context, contract, phone string, actor access.Actor) Response[struct{}] {
	if resp := requireStaff[struct{}](actor); resp != nil {
		return *resp
	}
	rec, err := s.records.FindByContract(ctx, contract)
	if err != nil {
		return failure[struct{}](err)
	}
	if _, err := s.verifier.Issue(ctx, rec.ID, rec.Contract, phone, actor); err != nil {
		return failure[struct{}](err)
	}
	return okMsg(struct{}{}, "Code sent via SMS!")
}

// VerifyCode redeems a staff-assisted verification. The record is
// marked verified but the client quota counter does not move.
func (s *Service) VerifyCode(ctx context.Context, contract, code, phone string, actor access.Actor) Response[record.Record] {
	if resp := requireStaff[record.Record](actor); resp != nil {
		return *resp
	}
	return s.redeemAndApply(ctx, contract, code, phone, actor)
}

// --- Admin-only ---

// Login authenticates staff credentials and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) Response[access.LoginResult] {
	result, err := s.access.Login(ctx, username, password)
	if err != nil {
		return failure[access.LoginResult](err)
	}
	return ok(result)
}

// ChangePassword rotates a credential. Admins may rotate anyone;
// technicians only themselves.
func (s *Service) ChangePassword(ctx context.Context, username, newPassword string, actor access.Actor) Response[struct{}] {
	if actor.Role != access.RoleAdmin && actor.Username != username {
		return failure[struct{}](ErrForbidden)
	}
	if err := s.access.ChangePassword(ctx, username, newPassword); err != nil {
		return failure[struct{}](err)
	}
	return ok(struct{}{})
}

// ListTechnicians returns all staff accounts.
func (s *Service) ListTechnicians(ctx context.Context, actor access.Actor) Response[[]access.Technician] {
	if resp := requireAdmin[[]access.Technician](actor); resp != nil {
		return *resp
	}
	techs, err := s.access.ListTechnicians(ctx)
	if err != nil {
		return failure[[]access.Technician](err)
	}
	return ok(techs)
}

// SaveTechnician creates or updates a staff account.
func (s *Service) SaveTechnician(ctx context.Context, params access.StaffParams, actor access.Actor) Response[access.Technician] {
	if resp := requireAdmin[access.Technician](actor); resp != nil {
		return *resp
	}
	tech, err := s.access.SaveTechnician(ctx, params, actor)
	if err != nil {
		return failure[access.Technician](err)
	}
	return ok(tech)
}

// DeleteTechnician removes a staff account.
func (s *Service) DeleteTechnician(ctx context.Context, id int64, actor access.Actor) Response[struct{}] {
	if resp := requireAdmin[struct{}](actor); resp != nil {
		return *resp
	}
	if err := s.access.DeleteTechnician(ctx, id, actor); err != nil {
		return failure[struct{}](err)
	}
	return ok(struct{}{})
}

// AuditLog returns the full ledger, newest first.
func (s *Service) AuditLog(ctx context.Context, actor access.Actor) Response[[]audit.Entry] {
	if resp := requireAdmin[[]audit.Entry](actor); resp != nil {
		return *resp
	}
	entries, err := s.ledger.List(ctx)
	if err != nil {
		return failure[[]audit.Entry](err)
	}
	return ok(entries)
}

// --- internals ---

func (s *Service) redeemAndApply(ctx context.Context, contract, code, phone string, actor access.Actor) Response[record.Record] {
	rec, err := s.records.FindByContract(ctx, contract)
	if err != nil {
		return failure[record.Record](err)
	}
	if err := s.verifier.Redeem(ctx, rec.ID, code); err != nil {
		return failure[record.Record](err)
	}
	updated, err := s.records.ApplyVerifiedPhone(ctx, rec.ID, phone, actor)
	if err != nil {
		return failure[record.Record](err)
	}
	return ok(updated)
}

// canClientUpdatePhone mirrors the self-service quota: allowed while
// the phone is unset, or while the client has never updated it.
func canClientUpdatePhone(rec record.Record) bool {
	if rec.Phone == nil || *rec.Phone == "" {
		return true
	}
	return rec.PhoneUpdateCount < 1
}

func requireStaff[T any](actor access.Actor) *Response[T] {
	if actor.Role == access.RoleTechnician || actor.Role == access.RoleAdmin {
		return nil
	}
	resp := failure[T](ErrForbidden)
	return &resp
}

func requireAdmin[T any](actor access.Actor) *Response[T] {
	if actor.Role == access.RoleAdmin {
		return nil
	}
	resp := failure[T](ErrForbidden)
	return &resp
}

// failure maps a domain error to its user-facing message and stable
// machine-readable kind.
func failure[T any](err error) Response[T] {
	var (
		message string
		kind    Kind
	)
	switch {
	case errors.Is(err, record.ErrNotFound):
		message, kind = "Contract not found.", KindNotFound
	case errors.Is(err, record.ErrContractTaken):
		message, kind = "Contract ID must be unique.", KindConflict
	case errors.Is(err, record.ErrInvalidInput):
		message, kind = "Contract and name are required.", KindValidation
	case errors.Is(err, access.ErrInvalidInput):
		message, kind = "Invalid staff account details.", KindValidation
	case errors.Is(err, access.ErrNotFound):
		message, kind = "User not found.", KindNotFound
	case errors.Is(err, access.ErrUsernameTaken):
		message, kind = "Username already taken.", KindConflict
	case errors.Is(err, access.ErrInvalidCredentials):
		message, kind = "Invalid credentials.", KindInvalidCredentials
	case errors.Is(err, access.ErrWeakPassword):
		message, kind = "Password too short.", KindValidation
	case errors.Is(err, verify.ErrInvalidPhone):
		message, kind = "Invalid phone format. Use 10 digits.", KindValidation
	case errors.Is(err, verify.ErrNoSession):
		message, kind = "No verification pending.", KindNotFound
	case errors.Is(err, verify.ErrAlreadyUsed):
		message, kind = "Code already used.", KindAlreadyUsed
	case errors.Is(err, verify.ErrExpired):
		message, kind = "Code expired.", KindExpired
	case errors.Is(err, verify.ErrInvalidCode):
		message, kind = "Invalid code.", KindInvalidCode
	case errors.Is(err, ErrUpdateNotAllowed):
		message, kind = "Phone update limit reached.", KindUpdateNotAllowed
	case errors.Is(err, ErrForbidden):
		message, kind = "Not authorized.", KindForbidden
	default:
		message, kind = "Operation failed. Please try again.", KindInternal
	}
	return Response[T]{Success: false, Message: message, Kind: kind}
}
