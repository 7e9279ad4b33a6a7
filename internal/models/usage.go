package models

import (
	"time"
)

// UsageCounter is one ledger row: admitted requests for one user on one
// calendar day. Rows are created lazily on the first request of the day
// and only ever incremented until an administrative wipe.
type UsageCounter struct {
	Username string    `gorm:"type:varchar(255);primaryKey" json:"username"`
	Date     time.Time `gorm:"type:date;primaryKey" json:"date"`
	Count    int       `gorm:"not null;default:0" json:"count"`
}

func (UsageCounter) TableName() string {
	return "usage_counters"
}

type AdmitStatus string

const (
	AdmitAllowed       AdmitStatus = "allowed"
	AdmitDeniedPerUser AdmitStatus = "per_user_limit_exceeded"
	AdmitDeniedGlobal  AdmitStatus = "global_limit_exceeded"
)

// Admission is the outcome of one quota decision. Denials are values, not
// errors: callers branch on Status. Count is the user's counter after the
// decision (unchanged on deny, zero for exempt admins).
type Admission struct {
	Status AdmitStatus `json:"status"`
	Count  int         `json:"count"`
	Limit  int         `json:"limit"`
}

func (a Admission) Allowed() bool {
	return a.Status == AdmitAllowed
}

// Day truncates t to its calendar date, dropping the time of day. All
// ledger keys go through this so that "today" is uniform across the code.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
