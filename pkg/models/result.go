package models

// Status is the terminal state of a verification
type Status string

const (
	StatusVerified      Status = "Verified"
	StatusFalsePositive Status = "False Positive"
	StatusManual        Status = "Manual Check Required"
	// StatusDryRun is only produced when verification is skipped with --dry-run
	StatusDryRun Status = "Not Verified (Dry Run)"
)

// Dir returns the evidence directory name for the status
func (s Status) Dir() string {
	switch s {
	case StatusVerified:
		return "verified"
	case StatusFalsePositive:
		return "false_positive"
	case StatusDryRun:
		return "not_verified"
	default:
		return "manual"
	}
}

// VerificationResult is the outcome of verifying a single finding
type VerificationResult struct {
	Status       Status `json:"status"`
	EvidencePath string `json:"evidence_path"`
}

// Row pairs a finding with its verification result
type Row struct {
	Finding Finding            `json:"finding"`
	Result  VerificationResult `json:"result"`
}
