package record

import "time"

// Record is the domain representation of a client service contract.
// CIN is stored unmasked; masking is strictly a presentation concern.
type Record struct {
	ID               int64
	Contract         string
	Nom              string
	CIN              string
	Phone            *string
	Phone2           *string
	PhoneVerified    bool
	PhoneUpdateCount int
	LastVerifiedAt   *time.Time
	LastModifiedBy   string
	LastModifiedAt   time.Time
	CreatedAt        time.Time
}

// UpsertParams carries create/update input. Nil pointer fields are
// preserved from the existing record on update; non-nil fields
// overwrite.
type UpsertParams struct {
	ID            int64
	Contract      string
	Nom           string
	CIN           *string
	Phone         *string
	Phone2        *string
	PhoneVerified *bool
}

// ImportRow is one line of a batch import, already split into fields.
type ImportRow struct {
	Contract string
	Nom      string
	CIN      string
	Phone    string
	Phone2   string
}

// ImportResult reports the outcome of a batch import. Errors holds one
// message per failed row.
type ImportResult struct {
	Imported int
	Failed   int
	Errors   []string
}
