package models

// Credentials is the bearer material issued on pairing. Exactly one record
// exists per paired device; absence means "not paired".
type Credentials struct {
	UserID    string `json:"user_id"`
	PairID    string `json:"pair_id"`
	PairToken string `json:"pair_token"`
}

// Complete reports whether every field is set.
func (c *Credentials) Complete() bool {
	return c != nil && c.UserID != "" && c.PairID != "" && c.PairToken != ""
}

// String never prints the token.
func (c Credentials) String() string {
	return "Credentials{user=" + c.UserID + " pair=" + c.PairID + " token=<redacted>}"
}
