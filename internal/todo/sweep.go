package todo

import "time"

// Action is the reminder outcome for one active member.
type Action struct {
	UserID    string
	Ping      bool
	StripRole bool
}

// Evaluate decides, for each active member, whether the hourly sweep should
// ping them or strip the active role. lastSubmit maps user ID to the latest
// submission time; members missing from the map have never submitted and get
// a ping, but the role is only stripped once a known submission has gone
// stale past the strip threshold.
func Evaluate(active []string, lastSubmit map[string]time.Time, now time.Time, pingAfter, stripAfter time.Duration) []Action {
	var actions []Action
	for _, userID := range active {
		submitted, ok := lastSubmit[userID]
		if !ok {
			actions = append(actions, Action{UserID: userID, Ping: true})
			continue
		}
		age := now.Sub(submitted)
		if age >= stripAfter {
			actions = append(actions, Action{UserID: userID, Ping: true, StripRole: true})
			continue
		}
		if age >= pingAfter {
			actions = append(actions, Action{UserID: userID, Ping: true})
		}
	}
	return actions
}
