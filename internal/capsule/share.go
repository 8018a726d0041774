package capsule

// ShareStatus is a recipient's answer to a shared capsule.
type ShareStatus string

const (
	SharePending  ShareStatus = "pending"
	ShareAccepted ShareStatus = "accepted"
	ShareDeclined ShareStatus = "declined"
)

// Valid reports whether s is one of the enumerated statuses.
func (s ShareStatus) Valid() bool {
	switch s {
	case SharePending, ShareAccepted, ShareDeclined:
		return true
	}
	return false
}

// ParseShareStatus normalizes user input into a ShareStatus. The result may
// be invalid; callers validate with Valid.
func ParseShareStatus(s string) ShareStatus {
	return ShareStatus(Normalize(s))
}
