package models

// Statistics summarises a learner's knowledge at a point in time
type Statistics struct {
	TotalConcepts    int     `json:"total_concepts"`
	DueConcepts      int     `json:"due_concepts"`
	StrongConcepts   int     `json:"strong_concepts"` // retention >= 0.8
	WeakConcepts     int     `json:"weak_concepts"`   // retention < 0.4
	AverageRetention float64 `json:"average_retention"`
	ReviewsLastWeek  int     `json:"reviews_last_week"`
	DecayCoefficient float64 `json:"decay_coefficient"`
}
