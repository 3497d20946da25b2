package llm

import "context"

// Stub is a scripted Client for use in tests of components that depend on
// llm.Client, avoiding a live provider.
type Stub struct {
	Responses []string
	Err       error
	calls     int
	Captured  []struct {
		System      string
		Messages    []Message
		Temperature float64
	}
}

func (s *Stub) Complete(_ context.Context, system string, messages []Message, temperature float64) (string, error) {
	s.Captured = append(s.Captured, struct {
		System      string
		Messages    []Message
		Temperature float64
	}{system, messages, temperature})

	if s.Err != nil {
		return "", s.Err
	}
	if s.calls >= len(s.Responses) {
		s.calls++
		if len(s.Responses) == 0 {
			return "", nil
		}
		return s.Responses[len(s.Responses)-1], nil
	}
	resp := s.Responses[s.calls]
	s.calls++
	return resp, nil
}
