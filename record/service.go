package record

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contractdesk/access"
	"contractdesk/audit"
)

// Service applies the record mutation rules on top of a Repository:
// merge-or-insert upserts, contract uniqueness, batch import row
// isolation, and audit side-effects.
type Service struct {
	repo   Repository
	ledger audit.Ledger
	now    func() time.Time
}

func NewService(repo Repository, ledger audit.Ledger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		now:    time.Now,
	}
}

// WithClock overrides the timestamp source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// FindByContract resolves a contract number to its record. Matching is
// trimmed and case-insensitive.
func (s *Service) FindByContract(ctx context.Context, contract string) (Record, error) {
	return s.repo.FindByContract(ctx, strings.TrimSpace(contract))
}

func (s *Service) FindByID(ctx context.Context, id int64) (Record, error) {
	return s.repo.FindByID(ctx, id)
}

// ListAll returns every record. Ordering is not part of the contract;
// presentation layers sort.
func (s *Service) ListAll(ctx context.Context) ([]Record, error) {
	return s.repo.ListAll(ctx)
}

// Upsert inserts a new record or merges the given fields into an
// existing one. Nil pointer fields in params are preserved on update.
// Fails with ErrContractTaken when another record already holds the
// contract value.
func (s *Service) Upsert(ctx context.Context, params UpsertParams, actor access.Actor) (Record, error) {
	contract := strings.TrimSpace(params.Contract)
	if contract == "" {
		return Record{}, ErrInvalidInput
	}
	if params.ID == 0 && strings.TrimSpace(params.Nom) == "" {
		return Record{}, ErrInvalidInput
	}

	// Uniqueness is checked on every upsert; the unique index in the
	// Postgres repository backstops races.
	if existing, err := s.repo.FindByContract(ctx, contract); err == nil && existing.ID != params.ID {
		return Record{}, ErrContractTaken
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}

	now := s.now().UTC()

	if params.ID != 0 {
		if existing, err := s.repo.FindByID(ctx, params.ID); err == nil {
			merged := mergeRecord(existing, params, contract)
			merged.LastModifiedBy = actor.String()
			merged.LastModifiedAt = now

			saved, err := s.repo.Update(ctx, merged)
			if err != nil {
				return Record{}, err
			}
			s.appendAudit(ctx, audit.UserUpdated, fmt.Sprintf("Updated details for %s", saved.Contract), actor)
			return saved, nil
		} else if !errors.Is(err, ErrNotFound) {
			return Record{}, err
		}
	}

	rec := Record{
		Contract:         contract,
		Nom:              strings.TrimSpace(params.Nom),
		PhoneUpdateCount: 0,
		LastModifiedBy:   actor.String(),
		LastModifiedAt:   now,
		CreatedAt:        now,
	}
	if params.CIN != nil {
		rec.CIN = *params.CIN
	}
	rec.Phone = params.Phone
	rec.Phone2 = params.Phone2
	if params.PhoneVerified != nil {
		rec.PhoneVerified = *params.PhoneVerified
	}

	saved, err := s.repo.Insert(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.appendAudit(ctx, audit.UserCreated, fmt.Sprintf("Created user %s", saved.Contract), actor)
	return saved, nil
}

// Delete removes a record by id.
func (s *Service) Delete(ctx context.Context, id int64, actor access.Actor) error {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.appendAudit(ctx, audit.UserDeleted, fmt.Sprintf("Deleted user %s", rec.Contract), actor)
	return nil
}

// ImportBatch inserts each row independently: a bad row collects an
// error message and never aborts the rest of the batch. Duplicate
// contracts are rejected against both the store and rows already
// imported in this batch.
func (s *Service) ImportBatch(ctx context.Context, rows []ImportRow, actor access.Actor) (ImportResult, error) {
	result := ImportResult{Errors: []string{}}
	seen := map[string]bool{}
	now := s.now().UTC()

	for _, row := range rows {
		contract := strings.TrimSpace(row.Contract)
		if contract == "" || strings.TrimSpace(row.Nom) == "" {
			result.Failed++
			result.Errors = append(result.Errors, "Row missing contract or name.")
			continue
		}

		key := normalizeContract(contract)
		duplicate := seen[key]
		if !duplicate {
			if _, err := s.repo.FindByContract(ctx, contract); err == nil {
				duplicate = true
			} else if !errors.Is(err, ErrNotFound) {
				return result, err
			}
		}
		if duplicate {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("Contract %s already exists.", contract))
			continue
		}

		rec := Record{
			Contract:         contract,
			Nom:              strings.TrimSpace(row.Nom),
			CIN:              row.CIN,
			Phone:            optional(row.Phone),
			Phone2:           optional(row.Phone2),
			PhoneVerified:    false,
			PhoneUpdateCount: 0,
			LastModifiedBy:   actor.String(),
			LastModifiedAt:   now,
			CreatedAt:        now,
		}
		if _, err := s.repo.Insert(ctx, rec); err != nil {
			if errors.Is(err, ErrContractTaken) {
				result.Failed++
				result.Errors = append(result.Errors, fmt.Sprintf("Contract %s already exists.", contract))
				continue
			}
			return result, err
		}
		seen[key] = true
		result.Imported++
	}

	if result.Imported > 0 {
		s.appendAudit(ctx, audit.BatchImport, fmt.Sprintf("Imported %d users via CSV", result.Imported), actor)
	}
	return result, nil
}

// ApplyVerifiedPhone commits a redeemed phone verification to the
// record: the phone is set and marked verified, and the self-service
// quota counter moves only for client actors.
func (s *Service) ApplyVerifiedPhone(ctx context.Context, id int64, phone string, actor access.Actor) (Record, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Record{}, err
	}

	now := s.now().UTC()
	rec.Phone = &phone
	rec.PhoneVerified = true
	if actor.Role == access.RoleClient {
		rec.PhoneUpdateCount++
	}
	rec.LastVerifiedAt = &now
	rec.LastModifiedBy = actor.String()
	rec.LastModifiedAt = now

	saved, err := s.repo.Update(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.appendAudit(ctx, audit.PhoneVerified,
		fmt.Sprintf("Phone verified for %s to %s (Updates: %d)", saved.Contract, phone, saved.PhoneUpdateCount), actor)
	return saved, nil
}

func mergeRecord(existing Record, params UpsertParams, contract string) Record {
	merged := existing
	merged.Contract = contract
	if strings.TrimSpace(params.Nom) != "" {
		merged.Nom = strings.TrimSpace(params.Nom)
	}
	if params.CIN != nil {
		merged.CIN = *params.CIN
	}
	if params.Phone != nil {
		merged.Phone = params.Phone
	}
	if params.Phone2 != nil {
		merged.Phone2 = params.Phone2
	}
	if params.PhoneVerified != nil {
		merged.PhoneVerified = *params.PhoneVerified
	}
	return merged
}

func (s *Service) appendAudit(ctx context.Context, action, details string, actor access.Actor) {
	if s.ledger == nil {
		return
	}
	_ = s.ledger.Append(ctx, action, details, actor.String())
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
