package guardiantest

import (
	"time"

	"github.com/dmitrijs2005/gophguard/internal/client/client"
	"github.com/dmitrijs2005/gophguard/internal/client/models"
)

// LastSessionID returns the most recently initiated session.
func (s *Server) LastSessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSession
}

func (s *Server) setStatus(id, status string, mutate func(*client.PairingStatusResponseBody)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.status = client.PairingStatusResponseBody{Status: &status}
	if mutate != nil {
		mutate(&sess.status)
	}
}

// Scan marks a session as scanned by the guardian's device.
func (s *Server) Scan(id string) { s.setStatus(id, "scanned", nil) }

// Expire marks a session as expired server-side.
func (s *Server) Expire(id string) { s.setStatus(id, "expired", nil) }

// Fail completes a session unsuccessfully.
func (s *Server) Fail(id string) { s.setStatus(id, "completed", nil) }

// Complete approves a session with the given credentials and roster.
func (s *Server) Complete(id string, creds models.Credentials, roster models.Roster) {
	s.setStatus(id, "completed", func(b *client.PairingStatusResponseBody) {
		b.Success = true
		b.UserID = creds.UserID
		b.PairID = creds.PairID
		b.PairToken = creds.PairToken
		for _, c := range roster {
			id := c.ID
			b.Children = append(b.Children, client.ChildBody{
				ID: &id, Name: c.Name, PinHash: c.PinHash, PinSalt: c.PinSalt, AvatarURL: c.AvatarURL,
			})
		}
	})
}

// Polls reports how many status polls arrived.
func (s *Server) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

// FailInit makes pairing init answer with status code.
func (s *Server) FailInit(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initStatus = code
}

// SetCheck replaces the check answer.
func (s *Server) SetCheck(resp client.CheckResponseBody) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkResp = resp
	s.checkRaw = ""
	s.checkStatus = 0
}

// SetCheckRaw makes /check answer with a literal JSON body.
func (s *Server) SetCheckRaw(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkRaw = raw
}

// SetCheckStatus makes /check answer with status code and no body.
// Zero restores normal answers.
func (s *Server) SetCheckStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkStatus = code
}

// SetCheckDelay holds every /check answer for d.
func (s *Server) SetCheckDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkDelay = d
}

// Revoke makes every endpoint answer 401.
func (s *Server) Revoke() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = true
}

// Checks returns the check requests received so far.
func (s *Server) Checks() []client.CheckRequestBody {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]client.CheckRequestBody(nil), s.checks...)
}

// CheckCalls reports how many check requests arrived.
func (s *Server) CheckCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.checks)
}

// TimeRequests returns the more-time requests received so far.
func (s *Server) TimeRequests() []client.CreateRequestBody {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]client.CreateRequestBody(nil), s.requests...)
}

// Limited builds a check answer where every listed activity has remaining
// seconds left.
func Limited(remaining int64, acts ...models.ActivityID) client.CheckResponseBody {
	allowed := remaining != 0
	resp := client.CheckResponseBody{Allowed: &allowed, Activities: map[string]client.ActivityBody{}}
	for _, a := range acts {
		r := remaining
		resp.Activities[string(a)] = client.ActivityBody{RemainingSeconds: &r}
	}
	return resp
}
