package model

// Status tags the result of processing a message.
type Status string

// Processing statuses.
const (
	StatusAccepted           Status = "ACCEPTED"
	StatusNeedsClarification Status = "NEEDS_CLARIFICATION"
	StatusRejected           Status = "REJECTED"
	StatusCommitError        Status = "COMMIT_ERROR"
	StatusCancelled          Status = "CANCELLED"
)

// Outcome is the Validator's decision. Exactly one of the variants applies:
// Accepted carries Record; NeedsClarification carries Reasons and the
// surviving Candidates; Rejected carries Reasons; Cancelled carries nothing.
type Outcome struct {
	Record     *Record
	Status     Status
	Reasons    []string
	Candidates Candidates
}

// Accepted builds an accepted outcome.
func Accepted(record Record) Outcome {
	return Outcome{Status: StatusAccepted, Record: &record}
}

// NeedsClarification builds an outcome asking the sender to disambiguate.
func NeedsClarification(reasons []string, candidates Candidates) Outcome {
	return Outcome{Status: StatusNeedsClarification, Reasons: reasons, Candidates: candidates}
}

// Cancelled builds the outcome of a message that withdraws the sender's
// latest entry.
func Cancelled() Outcome {
	return Outcome{Status: StatusCancelled}
}

// Rejected builds a rejected outcome.
func Rejected(reasons ...string) Outcome {
	return Outcome{Status: StatusRejected, Reasons: reasons}
}

// Reply is returned to the chat collaborator.
type Reply struct {
	LedgerRef    *LedgerRef `json:"ledger_ref,omitempty"`
	Record       *Record    `json:"-"`
	Status       Status     `json:"status"`
	HumanMessage string     `json:"message"`
	Duplicate    bool       `json:"duplicate,omitempty"`
}
