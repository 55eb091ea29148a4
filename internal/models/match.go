package models

// Sentinel values used when the travel-time lookup degrades.
const (
	SentinelDistanceKm       = 999.0
	SentinelTravelTimeMinute = 999.0
)

// FeatureCount is the width of a candidate feature vector.
const FeatureCount = 6

// Feature vector indices, in scoring order.
const (
	FeatureDistance = iota
	FeatureTravelTime
	FeatureDynamicRate
	FeatureSpecialization
	FeatureTimeSlotMatch
	FeatureRating
)

// MatchCandidate is one scored task/engineer pair. Created per ranking
// pass and never mutated after scoring.
type MatchCandidate struct {
	TaskID         string  `json:"task_id"`
	EngineerID     string  `json:"engineer_id"`
	Distance       float64 `json:"distance"`
	TravelTime     float64 `json:"travel_time"`
	DynamicRate    float64 `json:"dynamic_rate"`
	Specialization float64 `json:"specialization_score"`
	TimeSlotMatch  float64 `json:"time_slot_match"`
	Rating         float64 `json:"rating"`
	MLScore        float64 `json:"ml_score"`
	RLAdjustment   float64 `json:"rl_adjustment"`
	FinalScore     float64 `json:"final_score"`
}

// Features returns the raw feature vector in scoring order.
func (c *MatchCandidate) Features() [FeatureCount]float64 {
	return [FeatureCount]float64{
		c.Distance,
		c.TravelTime,
		c.DynamicRate,
		c.Specialization,
		c.TimeSlotMatch,
		c.Rating,
	}
}

// Assignment records a task handed to an engineer
type Assignment struct {
	TaskID     string `json:"task_id"`
	EngineerID string `json:"engineer_id"`
}

// MatchRequest asks the engine to rank engineers for a set of tasks
type MatchRequest struct {
	TaskIDs []string `json:"task_ids"`
}
