package domain

// IDSet holds track identifiers the caller already owns
type IDSet map[string]struct{}

func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Has is safe on a nil set
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

func (s IDSet) AddTracks(tracks []Track) {
	for _, t := range tracks {
		s.Add(t.ID)
	}
}

// Merge copies every id of other into s
func (s IDSet) Merge(other IDSet) {
	for id := range other {
		s.Add(id)
	}
}
