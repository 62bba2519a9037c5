package common

import "sync/atomic"

// Switches are the moderation "panic" flags. They are explicit shared state
// checked at handler entry points, never ambient globals.
type Switches struct {
	BlockLogins           atomic.Bool
	BlockSubmissions      atomic.Bool
	BlockUserActions      atomic.Bool
	BlockModeratorActions atomic.Bool
}

// CheckAllowLogins returns ErrTemporarilyBlocked if logins are disabled.
func (s *Switches) CheckAllowLogins() error {
	if err := s.CheckAllowUserActions(); err != nil {
		return err
	}
	if s.BlockLogins.Load() {
		return ErrTemporarilyBlocked
	}
	return nil
}

// CheckAllowSubmissions returns ErrTemporarilyBlocked if solve submissions
// are disabled.
func (s *Switches) CheckAllowSubmissions() error {
	if err := s.CheckAllowUserActions(); err != nil {
		return err
	}
	if s.BlockSubmissions.Load() {
		return ErrTemporarilyBlocked
	}
	return nil
}

func (s *Switches) CheckAllowUserActions() error {
	if s.BlockUserActions.Load() {
		return ErrTemporarilyBlocked
	}
	return nil
}

func (s *Switches) CheckAllowModeratorActions() error {
	if s.BlockModeratorActions.Load() {
		return ErrTemporarilyBlocked
	}
	return nil
}
