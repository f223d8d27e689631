package verify

import "time"

// Purpose tags what a code proves. Phone update is the only purpose
// today; the tag keeps future flows from redeeming each other's codes.
type Purpose string

const PurposePhoneUpdate Purpose = "phone_update"

// Session is a live one-time code bound to a user id. At most one
// session exists per user; issuing a new code overwrites any prior
// session for that user.
type Session struct {
	UserID    int64     `json:"user_id"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	Purpose   Purpose   `json:"purpose"`
}

// checkRedeem applies the redemption checks in their fixed order:
// already used, then expired, then code mismatch. Stores call it while
// holding their exclusion over the session so check and mark commit
// together.
func (s Session) checkRedeem(code string, now time.Time) error {
	if s.Used {
		return ErrAlreadyUsed
	}
	if now.After(s.ExpiresAt) {
		return ErrExpired
	}
	if s.Code != code {
		return ErrInvalidCode
	}
	return nil
}
