package domain

// NotificationSeverity grades a notification for display purposes.
type NotificationSeverity string

const (
	SeverityInfo     NotificationSeverity = "info"
	SeverityWarning  NotificationSeverity = "warning"
	SeverityCritical NotificationSeverity = "critical"
)

// Notification types emitted by the core operations.
const (
	NotifyMissedDeposit  = "missed_deposit"
	NotifySurplus        = "surplus"
	NotifyLoanRequested  = "loan_requested"
	NotifyLoanApproved   = "loan_approved"
	NotifyLoanDeclined   = "loan_declined"
	NotifyLoanDisbursed  = "loan_disbursed"
	NotifyLoanRepayment  = "loan_repayment"
	NotifyLoanRepaid     = "loan_repaid"
	NotifyLoanOverdue    = "loan_overdue"
	NotifyLoanRefunded   = "loan_refunded"
	NotifyLoanWrittenOff = "loan_written_off"
)

// Notification is a post-commit event describing a fire-and-forget message to a
// user. Operations collect these and return them; a dispatcher delivers them
// after the primary mutation has succeeded, so delivery failures can never abort
// the operation that produced them.
type Notification struct {
	UserID    string               `json:"userID"`
	Type      string               `json:"type"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	RelatedID string               `json:"relatedID,omitempty"`
	Severity  NotificationSeverity `json:"severity"`
	Meta      map[string]string    `json:"meta,omitempty"`
}
