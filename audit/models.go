package audit

import "time"

// Action tags recorded by mutating operations across the system.
const (
	UserCreated      = "USER_CREATED"
	UserUpdated      = "USER_UPDATED"
	UserDeleted      = "USER_DELETED"
	BatchImport      = "BATCH_IMPORT"
	VerificationSent = "VERIFICATION_SENT"
	PhoneVerified    = "PHONE_VERIFIED"
	StaffCreated     = "STAFF_CREATED"
	StaffUpdated     = "STAFF_UPDATED"
	StaffDeleted     = "STAFF_DELETED"
)

// Entry is a single immutable line in the audit ledger.
type Entry struct {
	ID        int64
	Action    string
	Details   string
	Actor     string
	Timestamp time.Time
}
