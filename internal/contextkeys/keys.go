package contextkeys

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

const (
	// AccountID is the context key for the authenticated account's ID.
	AccountID contextKey = "accountID"
	// AccountEmail is the context key for the authenticated account's email.
	AccountEmail contextKey = "accountEmail"
	// AccountRole is the context key for the authenticated account's role.
	AccountRole contextKey = "accountRole"
)
