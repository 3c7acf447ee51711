// Package metadata persists small non-sensitive engine state as key/value
// pairs: the enabled flag, current child id, cached roster, device token and
// last check timestamp. Credential material never goes here; it lives in the
// credential store's separate trust domain.
package metadata
