package detector

// AlertedSet records which keys already fired a one-shot alert. Its lifecycle
// is independent of the tracker state it guards.
type AlertedSet struct {
	keys map[string]struct{}
}

// NewAlertedSet creates an empty set.
func NewAlertedSet() *AlertedSet {
	return &AlertedSet{keys: make(map[string]struct{})}
}

// TryMark marks key and reports true if it was not already marked.
func (s *AlertedSet) TryMark(key string) bool {
	if _, ok := s.keys[key]; ok {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

// Has reports whether key already alerted.
func (s *AlertedSet) Has(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of marked keys.
func (s *AlertedSet) Len() int {
	return len(s.keys)
}

// Reset clears every mark.
func (s *AlertedSet) Reset() {
	s.keys = make(map[string]struct{})
}
