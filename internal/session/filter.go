package session

import "time"

// Transcript is a candidate transcript chunk considered for delivery into a
// session's prompt section (B).
type Transcript struct {
	ID        string
	Content   string
	CreatedAt time.Time
}

// FilterNew returns the candidates whose fingerprint is not already in
// sess.Delivered, in input order, along with the fingerprints to record for
// them. Candidates sharing a fingerprint with an earlier candidate in the
// same call are also dropped, so the result is safe to pass straight to
// AddDelivered. Calling FilterNew twice with the same session state (i.e.
// before AddDelivered is applied) and the same candidates returns the same
// result both times; once AddDelivered has been applied, a second call
// against the same candidates returns nothing — this is the idempotence
// property the fingerprint filter is required to have.
func FilterNew(sess *Session, candidates []Transcript) ([]Transcript, []string) {
	seen := make(map[string]struct{}, len(sess.Delivered)+len(candidates))
	for _, fp := range sess.Delivered {
		seen[fp] = struct{}{}
	}

	fresh := make([]Transcript, 0, len(candidates))
	fingerprints := make([]string, 0, len(candidates))
	for _, c := range candidates {
		fp := Fingerprint(c.Content)
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		fresh = append(fresh, c)
		fingerprints = append(fingerprints, fp)
	}
	return fresh, fingerprints
}
