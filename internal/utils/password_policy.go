package utils

import "unicode"

// StrengthResult is the outcome of a password policy check. Reason is a
// client-safe explanation and is empty when Valid is true.
type StrengthResult struct {
	Valid  bool
	Reason string
}

// PasswordPolicy decides whether a password is acceptable for a new account.
type PasswordPolicy interface {
	Check(password string) StrengthResult
}

// CharClassPolicy enforces a byte-length window plus one of each character
// class.
type CharClassPolicy struct {
	MinLen int
	MaxLen int
}

func DefaultPolicy() CharClassPolicy { return CharClassPolicy{MinLen: 8, MaxLen: 128} }

func (p CharClassPolicy) Check(password string) StrengthResult {
	if password == "" {
		return StrengthResult{Reason: "password is required"}
	}
	if len(password) < p.MinLen {
		return StrengthResult{Reason: "password is too short"}
	}
	if p.MaxLen > 0 && len(password) > p.MaxLen {
		return StrengthResult{Reason: "password is too long"}
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	switch {
	case !upper:
		return StrengthResult{Reason: "password must contain an uppercase letter"}
	case !lower:
		return StrengthResult{Reason: "password must contain a lowercase letter"}
	case !digit:
		return StrengthResult{Reason: "password must contain a digit"}
	case !symbol:
		return StrengthResult{Reason: "password must contain a symbol"}
	}
	return StrengthResult{Valid: true}
}
