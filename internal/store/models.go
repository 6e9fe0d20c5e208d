package store

import "github.com/ibeckermayer/clap4me/internal/types"

// SessionReport is one run with everything it did, ready for rendering.
type SessionReport struct {
	Stats       types.SessionStats
	Engagements []types.Engagement
}

// Report loads a session's statistics and engagements.
func (s *Store) Report(id string) (*SessionReport, error) {
	stats, err := s.SessionStats(id)
	if err != nil {
		return nil, err
	}
	engagements, err := s.SessionEngagements(id)
	if err != nil {
		return nil, err
	}
	return &SessionReport{Stats: stats, Engagements: engagements}, nil
}
