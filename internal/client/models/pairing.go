package models

import "time"

// Transport selects how the guardian's device picks up the pairing session.
type Transport string

const (
	TransportQR  Transport = "qr"
	TransportPIN Transport = "pin"
)

// Valid reports whether t is a known transport.
func (t Transport) Valid() bool {
	return t == TransportQR || t == TransportPIN
}

// PairingStatus is a state of the pairing session machine.
type PairingStatus string

const (
	PairingIdle       PairingStatus = "idle"
	PairingInitiating PairingStatus = "initiating"
	PairingPending    PairingStatus = "pending"
	PairingScanned    PairingStatus = "scanned"
	PairingCompleting PairingStatus = "completing"
	PairingCompleted  PairingStatus = "completed"
	PairingFailed     PairingStatus = "failed"
	PairingCancelled  PairingStatus = "cancelled"
	PairingExpired    PairingStatus = "expired"
)

// Terminal reports whether no further transition is possible.
func (s PairingStatus) Terminal() bool {
	switch s {
	case PairingCompleted, PairingFailed, PairingCancelled, PairingExpired:
		return true
	}
	return false
}

// PairingSession is one pairing attempt.
type PairingSession struct {
	ID        string
	Transport Transport
	QRPayload string
	PinCode   string
	CreatedAt time.Time
	ExpiresAt time.Time
	Status    PairingStatus
}

// PairingOutcome is what a completed session yields.
type PairingOutcome struct {
	Credentials Credentials
	Roster      Roster
}
