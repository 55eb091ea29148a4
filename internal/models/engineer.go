package models

import (
	"fmt"
)

// Availability represents whether an engineer can take a new assignment
type Availability string

const (
	Available Availability = "available"
	Busy      Availability = "busy"
)

// IsValid returns true if the availability is a known value
func (a Availability) IsValid() bool {
	return a == Available || a == Busy
}

// Engineer represents a field engineer who can be assigned tasks
type Engineer struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Expertise       []string     `json:"expertise"`
	Location        string       `json:"location"`
	Availability    Availability `json:"availability"`
	HourlyRate      float64      `json:"hourly_rate"`
	ExperienceYears float64      `json:"experience_years"`
	Rating          float64      `json:"rating"`
	Certifications  []string     `json:"certifications,omitempty"`
	Schedule        []string     `json:"schedule,omitempty"`

	// Proximity to the task under consideration, in km. Nil when no
	// travel data is available; sorts after every known proximity.
	Proximity *float64 `json:"proximity,omitempty"`
}

// Validate checks that an engineer record is well formed
func (e *Engineer) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("engineer id is required")
	}
	if len(e.Expertise) == 0 {
		return fmt.Errorf("engineer %s has no expertise", e.ID)
	}
	if !e.Availability.IsValid() {
		return fmt.Errorf("invalid availability: %q", e.Availability)
	}
	if e.HourlyRate <= 0 {
		return fmt.Errorf("engineer %s hourly rate must be positive, got %v", e.ID, e.HourlyRate)
	}
	if e.ExperienceYears < 0 {
		return fmt.Errorf("engineer %s experience years must be non-negative, got %v", e.ID, e.ExperienceYears)
	}
	if e.Rating < 0 || e.Rating > 5 {
		return fmt.Errorf("engineer %s rating must be within [0, 5], got %v", e.ID, e.Rating)
	}
	return nil
}

// HasTrade returns true if the engineer is qualified for the trade
func (e *Engineer) HasTrade(trade string) bool {
	for _, t := range e.Expertise {
		if t == trade {
			return true
		}
	}
	return false
}

// HasCertification returns true if the engineer holds the certification
func (e *Engineer) HasCertification(cert string) bool {
	for _, c := range e.Certifications {
		if c == cert {
			return true
		}
	}
	return false
}
