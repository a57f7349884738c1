package errors

// ContractViolationError reports that a storage collaborator returned data
// breaking its contract, such as an authorization code record without an
// expiry. It is the fatal error tier: never shown to clients, never mapped
// to an OAuth2Error, and never recovered from within the exchange.
type ContractViolationError struct {
	Violation string
}

func (e *ContractViolationError) Error() string {
	return "storage contract violation: " + e.Violation
}

// NewContractViolation builds a ContractViolationError describing the broken
// contract.
func NewContractViolation(violation string) *ContractViolationError {
	return &ContractViolationError{Violation: violation}
}
