package client

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/common"
)

// Wire bodies. Pointer fields are required on decode; a nil one means the
// server omitted it and the response is rejected.

type InitPairingBody struct {
	DeviceName  string `json:"deviceName"`
	DeviceToken string `json:"deviceToken"`
}

type InitPairingResponseBody struct {
	SessionID *string `json:"sessionId"`
	QRPayload string  `json:"qrPayload,omitempty"`
	PinCode   string  `json:"pinCode,omitempty"`
	ExpiresIn int64   `json:"expiresIn,omitempty"`
}

type ChildBody struct {
	ID        *int64 `json:"id"`
	Name      string `json:"name"`
	PinHash   string `json:"pinHash,omitempty"`
	PinSalt   string `json:"pinSalt,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

type PairingStatusResponseBody struct {
	Status    *string     `json:"status"`
	Success   bool        `json:"success,omitempty"`
	UserID    string      `json:"userId,omitempty"`
	PairID    string      `json:"pairId,omitempty"`
	PairToken string      `json:"pairToken,omitempty"`
	Children  []ChildBody `json:"children,omitempty"`
}

type UsageBody struct {
	Date     string `json:"date"`
	Activity string `json:"activity"`
	Seconds  int64  `json:"seconds"`
}

type CheckRequestBody struct {
	UserID     string      `json:"userId"`
	PairID     string      `json:"pairId"`
	PairToken  string      `json:"pairToken"`
	ChildID    int64       `json:"childId"`
	Activities []string    `json:"activities"`
	TZ         string      `json:"tz"`
	Log        []UsageBody `json:"log,omitempty"`
	Deficit    int64       `json:"deficit,omitempty"`
}

type BlockBody struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

type ActivityBody struct {
	RemainingSeconds *int64     `json:"remainingSeconds"`
	ExpiresAt        *time.Time `json:"expiresAt,omitempty"`
	Banned           bool       `json:"banned,omitempty"`
	ScheduledBlock   *BlockBody `json:"scheduledBlock,omitempty"`
}

type TimeWindowBody struct {
	Activity string   `json:"activity"`
	Days     []int    `json:"days,omitempty"`
	DayTypes []string `json:"dayTypes,omitempty"`
	Start    *int     `json:"start"`
	End      *int     `json:"end"`
}

type CheckResponseBody struct {
	Allowed         *bool                   `json:"allowed"`
	Activities      map[string]ActivityBody `json:"activities"`
	TodayDayType    string                  `json:"todayDayType,omitempty"`
	TomorrowDayType string                  `json:"tomorrowDayType,omitempty"`
	TimeWindows     []TimeWindowBody        `json:"timeWindows,omitempty"`
	HomeTimezone    string                  `json:"homeTimezone,omitempty"`
}

type CreateRequestBody struct {
	UserID    string `json:"userId"`
	PairID    string `json:"pairId"`
	PairToken string `json:"pairToken"`
	ChildID   int64  `json:"childId"`
	Activity  string `json:"activity"`
	Seconds   int64  `json:"seconds"`
	Reason    string `json:"reason,omitempty"`
}

type CreateRequestResponseBody struct {
	RequestID *string `json:"requestId"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), common.ErrMalformedResponse)
}

func (b *InitPairingResponseBody) toSession(t models.Transport, now time.Time, defaultTTL time.Duration) (*models.PairingSession, error) {
	if b.SessionID == nil || *b.SessionID == "" {
		return nil, malformed("pairing init: missing sessionId")
	}
	switch t {
	case models.TransportQR:
		if b.QRPayload == "" {
			return nil, malformed("pairing init: missing qrPayload")
		}
	case models.TransportPIN:
		if b.PinCode == "" {
			return nil, malformed("pairing init: missing pinCode")
		}
	}

	ttl := defaultTTL
	if b.ExpiresIn > 0 {
		ttl = time.Duration(b.ExpiresIn) * time.Second
	}

	return &models.PairingSession{
		ID:        *b.SessionID,
		Transport: t,
		QRPayload: b.QRPayload,
		PinCode:   b.PinCode,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Status:    models.PairingPending,
	}, nil
}

func (b *PairingStatusResponseBody) toUpdate() (*PairingUpdate, error) {
	if b.Status == nil {
		return nil, malformed("pairing status: missing status")
	}

	st := models.PairingStatus(*b.Status)
	switch st {
	case models.PairingPending, models.PairingScanned, models.PairingExpired,
		models.PairingFailed, models.PairingCancelled:
		return &PairingUpdate{Status: st}, nil
	case models.PairingCompleted:
	default:
		return nil, malformed("pairing status: unknown status %q", *b.Status)
	}

	if !b.Success {
		return &PairingUpdate{Status: models.PairingFailed}, nil
	}

	creds := models.Credentials{UserID: b.UserID, PairID: b.PairID, PairToken: b.PairToken}
	if !creds.Complete() {
		return nil, malformed("pairing status: incomplete credentials")
	}
	if len(b.Children) == 0 {
		return nil, malformed("pairing status: empty roster")
	}

	roster := make(models.Roster, 0, len(b.Children))
	for i, c := range b.Children {
		if c.ID == nil {
			return nil, malformed("pairing status: child %d has no id", i)
		}
		roster = append(roster, models.Child{
			ID:        *c.ID,
			Name:      c.Name,
			PinHash:   c.PinHash,
			PinSalt:   c.PinSalt,
			AvatarURL: c.AvatarURL,
		})
	}

	return &PairingUpdate{
		Status:  models.PairingCompleted,
		Outcome: &models.PairingOutcome{Credentials: creds, Roster: roster},
	}, nil
}

func newCheckRequestBody(r CheckRequest) CheckRequestBody {
	acts := make([]string, 0, len(r.Activities))
	for _, a := range r.Activities {
		acts = append(acts, string(a))
	}
	log := make([]UsageBody, 0, len(r.Log))
	for _, e := range r.Log {
		log = append(log, UsageBody{Date: e.Day, Activity: string(e.Activity), Seconds: e.Seconds})
	}
	return CheckRequestBody{
		UserID:     r.Credentials.UserID,
		PairID:     r.Credentials.PairID,
		PairToken:  r.Credentials.PairToken,
		ChildID:    r.ChildID,
		Activities: acts,
		TZ:         r.Timezone,
		Log:        log,
		Deficit:    r.Deficit,
	}
}

func (b *CheckResponseBody) toOutcome(childID int64, now time.Time, defaultTTL time.Duration) (*CheckOutcome, error) {
	if b.Allowed == nil {
		return nil, malformed("check: missing allowed")
	}

	res := models.CheckResult{
		ChildID:         childID,
		Allowed:         *b.Allowed,
		Activities:      make(map[models.ActivityID]models.ActivityStatus, len(b.Activities)),
		TodayDayType:    b.TodayDayType,
		TomorrowDayType: b.TomorrowDayType,
		FetchedAt:       now,
	}

	for name, a := range b.Activities {
		id := models.ActivityID(name)
		if !id.Valid() {
			continue
		}
		if a.RemainingSeconds == nil {
			return nil, malformed("check: activity %s has no remainingSeconds", name)
		}
		st := models.ActivityStatus{RemainingSeconds: *a.RemainingSeconds, Banned: a.Banned}
		if st.RemainingSeconds < 0 {
			st.RemainingSeconds = models.Unlimited
		}
		if a.ExpiresAt != nil {
			st.ExpiresAt = *a.ExpiresAt
		}
		if a.ScheduledBlock != nil {
			if a.ScheduledBlock.Start == nil || a.ScheduledBlock.End == nil {
				return nil, malformed("check: activity %s has an incomplete scheduledBlock", name)
			}
			st.ScheduledBlock = &models.Block{Start: *a.ScheduledBlock.Start, End: *a.ScheduledBlock.End}
		}
		res.Activities[id] = st
	}
	res.ComputeExpiry(defaultTTL)
	if !res.ExpiresAt.After(now) {
		res.ExpiresAt = now.Add(defaultTTL)
	}

	windows := make([]models.TimeWindow, 0, len(b.TimeWindows))
	for i, w := range b.TimeWindows {
		id := models.ActivityID(w.Activity)
		if !id.Valid() {
			continue
		}
		if w.Start == nil || w.End == nil {
			return nil, malformed("check: time window %d has no start/end", i)
		}
		if *w.Start < 0 || *w.Start >= 24*60 || *w.End < 0 || *w.End > 24*60 {
			return nil, malformed("check: time window %d out of range", i)
		}
		windows = append(windows, models.TimeWindow{
			Activity: id,
			Days:     w.Days,
			DayTypes: w.DayTypes,
			Start:    *w.Start,
			End:      *w.End,
		})
	}

	return &CheckOutcome{Result: res, Windows: windows, HomeTimezone: b.HomeTimezone}, nil
}
