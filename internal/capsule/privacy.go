package capsule

// Privacy is the visibility of a created capsule.
type Privacy string

const (
	PrivacyPrivate Privacy = "private"
	PrivacyFriends Privacy = "friends"
	PrivacyPublic  Privacy = "public"
)

// PrivacyLevels lists the accepted privacy values in display order.
var PrivacyLevels = []Privacy{PrivacyPrivate, PrivacyFriends, PrivacyPublic}

// Valid reports whether p is one of the enumerated levels. The zero value is not.
func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPrivate, PrivacyFriends, PrivacyPublic:
		return true
	}
	return false
}

// ParsePrivacy normalizes user input into a Privacy. The result may be invalid;
// callers validate with Valid.
func ParsePrivacy(s string) Privacy {
	return Privacy(Normalize(s))
}
