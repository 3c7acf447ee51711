package client

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
)

// Client is the guardian service API used by the engine.
type Client interface {
	InitPairing(ctx context.Context, t models.Transport, deviceName, deviceToken string) (*models.PairingSession, error)
	PairingStatus(ctx context.Context, t models.Transport, sessionID string) (*PairingUpdate, error)
	Check(ctx context.Context, req CheckRequest) (*CheckOutcome, error)
	CreateRequest(ctx context.Context, req TimeRequest) (string, error)
}

// PairingUpdate is a validated status poll answer. Outcome is set only for a
// successful completion.
type PairingUpdate struct {
	Status  models.PairingStatus
	Outcome *models.PairingOutcome
}

// CheckRequest is everything a policy check sends.
type CheckRequest struct {
	Credentials models.Credentials
	ChildID     int64
	Activities  []models.ActivityID
	Timezone    string
	Log         []models.UsageEntry
	Deficit     int64
}

// CheckOutcome is a validated check answer plus the policy subset used to
// seed the offline snapshot.
type CheckOutcome struct {
	Result       models.CheckResult
	Windows      []models.TimeWindow
	HomeTimezone string
}

// TimeRequest asks the guardian for more time.
type TimeRequest struct {
	Credentials models.Credentials
	ChildID     int64
	Activity    models.ActivityID
	Seconds     int64
	Reason      string
}

// Clock lets tests pin FetchedAt.
type Clock func() time.Time
