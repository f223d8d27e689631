package verify

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"contractdesk/access"
	"contractdesk/audit"
	"contractdesk/notify"
)

var (
	// ErrInvalidPhone signals a phone that is not exactly 10 digits
	// after stripping whitespace.
	ErrInvalidPhone = errors.New("verify: invalid phone format")
	// ErrAlreadyUsed signals a code that was already redeemed.
	ErrAlreadyUsed = errors.New("verify: code already used")
	// ErrExpired signals a code past its 10-minute lifetime.
	ErrExpired = errors.New("verify: code expired")
	// ErrInvalidCode signals a code mismatch.
	ErrInvalidCode = errors.New("verify: invalid code")
)

// CodeTTL is the lifetime of an issued code.
const CodeTTL = 10 * time.Minute

// CodeLength is the fixed rendered length of every code. Codes are
// drawn from [100000,999999], so a rendered code never carries a
// leading zero.
const CodeLength = 6

// Service issues and redeems one-time codes. Codes are single-use,
// expire lazily at redemption time, and at most one is live per user.
type Service struct {
	sessions SessionStore
	notifier notify.Notifier
	ledger   audit.Ledger
	log      *zap.Logger
	now      func() time.Time
	codeGen  func() string
}

func NewService(sessions SessionStore, notifier notify.Notifier, ledger audit.Ledger, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		sessions: sessions,
		notifier: notifier,
		ledger:   ledger,
		log:      log,
		now:      time.Now,
		codeGen:  randomCode,
	}
}

// WithClock overrides the time source for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithCodeGenerator overrides code generation for tests.
func (s *Service) WithCodeGenerator(gen func() string) *Service {
	s.codeGen = gen
	return s
}

// Issue validates the phone, stores a fresh session for the user
// (silently replacing any prior one) and hands the code to the
// notifier. Delivery failure is logged, never surfaced: the session
// stays valid and the caller sees success.
func (s *Service) Issue(ctx context.Context, userID int64, contract, phone string, actor access.Actor) (string, error) {
	normalized := normalizePhone(phone)
	if !isTenDigits(normalized) {
		return "", ErrInvalidPhone
	}

	code := s.codeGen()
	session := Session{
		UserID:    userID,
		Code:      code,
		ExpiresAt: s.now().Add(CodeTTL),
		Used:      false,
		Purpose:   PurposePhoneUpdate,
	}
	if err := s.sessions.Put(ctx, session); err != nil {
		return "", err
	}

	if s.ledger != nil {
		_ = s.ledger.Append(ctx, audit.VerificationSent,
			fmt.Sprintf("SMS Code sent to %s for contract %s", normalized, contract), actor.String())
	}

	result, err := s.notifier.AttemptSend(ctx, normalized, code)
	switch {
	case err != nil:
		s.log.Warn("otp delivery attempt failed",
			zap.String("contract", contract),
			zap.String("phone", normalized),
			zap.Error(err),
		)
	case !result.Delivered:
		s.log.Warn("otp delivery rejected by gateway",
			zap.String("contract", contract),
			zap.String("phone", normalized),
			zap.String("detail", result.Detail),
		)
	default:
		s.log.Info("otp delivery attempted",
			zap.String("contract", contract),
			zap.String("message_id", result.MessageID),
		)
	}

	return code, nil
}

// Redeem checks the input against the user's live session. Check and
// mark happen atomically inside the store, so at most one caller wins
// a given code; the rest see ErrAlreadyUsed.
func (s *Service) Redeem(ctx context.Context, userID int64, inputCode string) error {
	return s.sessions.Redeem(ctx, userID, strings.TrimSpace(inputCode), s.now())
}

func normalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phone)
}

func isTenDigits(phone string) bool {
	if len(phone) != 10 {
		return false
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func randomCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		panic(fmt.Sprintf("verify: random source: %v", err))
	}
	return strconv.FormatInt(n.Int64()+100000, 10)
}
