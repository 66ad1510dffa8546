package domain

import "fmt"

// SLAConfig maps priorities to resolution windows in hours.
type SLAConfig struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// DefaultSLAConfig returns the stock resolution windows.
func DefaultSLAConfig() SLAConfig {
	return SLAConfig{Critical: 4, High: 24, Medium: 48, Low: 72}
}

// Hours returns the window for priority p.
func (c SLAConfig) Hours(p TicketPriority) (int, error) {
	switch p {
	case TicketPriorityCritical:
		return c.Critical, nil
	case TicketPriorityHigh:
		return c.High, nil
	case TicketPriorityMedium:
		return c.Medium, nil
	case TicketPriorityLow:
		return c.Low, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPriority, p)
}

// Validate rejects non-positive windows.
func (c SLAConfig) Validate() error {
	for name, hours := range map[string]int{
		"critical": c.Critical,
		"high":     c.High,
		"medium":   c.Medium,
		"low":      c.Low,
	} {
		if hours <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidSLAConfig, name, hours)
		}
	}
	return nil
}

// SLAConfigPatch is a partial update; nil fields keep their current value.
type SLAConfigPatch struct {
	Critical *int `json:"critical,omitempty"`
	High     *int `json:"high,omitempty"`
	Medium   *int `json:"medium,omitempty"`
	Low      *int `json:"low,omitempty"`
}

// Apply merges the patch into c and returns the result.
func (p SLAConfigPatch) Apply(c SLAConfig) SLAConfig {
	if p.Critical != nil {
		c.Critical = *p.Critical
	}
	if p.High != nil {
		c.High = *p.High
	}
	if p.Medium != nil {
		c.Medium = *p.Medium
	}
	if p.Low != nil {
		c.Low = *p.Low
	}
	return c
}
