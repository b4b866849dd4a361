package models

// JobStatus is the fixed application-status enum. Free-form status words from
// user text are mapped onto these values before anything is persisted.
type JobStatus string

const (
	StatusApplied   JobStatus = "applied"
	StatusScreening JobStatus = "screening"
	StatusInterview JobStatus = "interview"
	StatusTechnical JobStatus = "technical"
	StatusFinal     JobStatus = "final"
	StatusOffer     JobStatus = "offer"
	StatusRejected  JobStatus = "rejected"
	StatusWithdrawn JobStatus = "withdrawn"
)

// AllStatuses lists every valid status in pipeline order.
var AllStatuses = []JobStatus{
	StatusApplied,
	StatusScreening,
	StatusInterview,
	StatusTechnical,
	StatusFinal,
	StatusOffer,
	StatusRejected,
	StatusWithdrawn,
}

func (s JobStatus) IsValid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (s JobStatus) String() string {
	return string(s)
}
