package models

import "encoding/json"

// VoterSet holds the identifiers of everyone who voted on a card. It keeps
// first-vote order for display and serialises as a plain JSON array.
type VoterSet struct {
	order []string
	index map[string]struct{}
}

func NewVoterSet(voters ...string) VoterSet {
	var s VoterSet
	for _, v := range voters {
		s.add(v)
	}
	return s
}

func (s *VoterSet) add(voter string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{}, len(s.order)+1)
	}
	if _, ok := s.index[voter]; ok {
		return false
	}
	s.index[voter] = struct{}{}
	s.order = append(s.order, voter)
	return true
}

func (s VoterSet) Has(voter string) bool {
	_, ok := s.index[voter]
	return ok
}

func (s VoterSet) Len() int {
	return len(s.order)
}

// Voters returns a copy of the voters in the order they voted.
func (s VoterSet) Voters() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Toggle adds the voter if absent and removes it otherwise. It reports
// whether the voter is present afterwards.
func (s *VoterSet) Toggle(voter string) bool {
	if !s.Has(voter) {
		return s.add(voter)
	}
	delete(s.index, voter)
	kept := make([]string, 0, len(s.order)-1)
	for _, v := range s.order {
		if v != voter {
			kept = append(kept, v)
		}
	}
	s.order = kept
	return false
}

func (s VoterSet) MarshalJSON() ([]byte, error) {
	if s.order == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.order)
}

func (s *VoterSet) UnmarshalJSON(data []byte) error {
	var voters []string
	if err := json.Unmarshal(data, &voters); err != nil {
		return err
	}
	*s = NewVoterSet(voters...)
	return nil
}
