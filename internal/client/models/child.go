package models

import "github.com/dmitrijs2005/gophguard/internal/common"

// Child is a roster entry. The PIN is held only as a salted hash.
type Child struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	PinHash   string `json:"pin_hash,omitempty"`
	PinSalt   string `json:"pin_salt,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// HasPin reports whether the child has a PIN configured.
func (c *Child) HasPin() bool {
	return c.PinHash != "" && c.PinSalt != ""
}

// IsParent reports whether c is the guardian/controller identity.
func (c *Child) IsParent() bool {
	return c.ID == common.ParentID
}

// Roster is the ordered child list received on pairing.
type Roster []Child

// Find returns the child with the given id.
func (r Roster) Find(id int64) (*Child, bool) {
	for i := range r {
		if r[i].ID == id {
			c := r[i]
			return &c, true
		}
	}
	return nil, false
}

// Children returns the entries that are not the parent identity.
func (r Roster) Children() Roster {
	out := make(Roster, 0, len(r))
	for _, c := range r {
		if !c.IsParent() {
			out = append(out, c)
		}
	}
	return out
}
