package domain

// Session is an immutable snapshot of the operator's wallet context
// It is read once at call start and fixed for the duration of a run
type Session struct {
	Account       string // empty when no account is accessible
	TokenAddress  string
	ChainID       int64
	TokenDecimals int32
}

// HasAccount reports whether an account is accessible
func (s Session) HasAccount() bool {
	return s.Account != ""
}
