// Package credstore is the credential custody layer. The engine only needs a
// put/get/delete capability; platform keychains implement Store in the host,
// and this package ships a sealed-file backend plus an in-memory one.
//
// Values are never logged.
package credstore
