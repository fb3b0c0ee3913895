package messaging

import "time"

// PrincipalType identifies which side of the console an actor belongs to.
type PrincipalType string

const (
	PrincipalAdmin    PrincipalType = "admin"
	PrincipalCustomer PrincipalType = "customer"
)

func (p PrincipalType) Valid() bool {
	return p == PrincipalAdmin || p == PrincipalCustomer
}

// ParticipantRole expresses the role within a thread.
type ParticipantRole string

const (
	RoleAdmin  ParticipantRole = "admin"
	RoleMember ParticipantRole = "member"
)

// Participant is one principal's membership in one thread. At most one
// active row exists per (thread, principal) pair; leaving deactivates the
// row instead of deleting it so history survives.
type Participant struct {
	ThreadID      string          `db:"thread_id"`
	PrincipalID   string          `db:"principal_id"`
	PrincipalType PrincipalType   `db:"principal_type"`
	Role          ParticipantRole `db:"role"`
	JoinedAt      time.Time       `db:"joined_at"`
	LeftAt        *time.Time      `db:"left_at"`
	LastReadAt    *time.Time      `db:"last_read_at"`
	IsActive      bool            `db:"is_active"`
}
