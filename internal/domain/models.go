package domain

import "time"

// Question is the multiple-choice payload handed to an answer provider.
type Question struct {
	Text   string
	A      string
	B      string
	C      string
	D      string
	Domain Domain
}

// Options returns the option texts in letter order.
func (q Question) Options() []string {
	return []string{q.A, q.B, q.C, q.D}
}

// Request is an inbound evaluation request.
type Request struct {
	Question      string `json:"question"`
	A             string `json:"a"`
	B             string `json:"b"`
	C             string `json:"c"`
	D             string `json:"d"`
	CorrectAnswer string `json:"correctAnswer"`
	Domain        string `json:"domain"`
}

// Answer is what a provider produced for a question.
type Answer struct {
	Letter    string
	ElapsedMs int64
}

// Outcome is the scored result returned to the caller.
type Outcome struct {
	Answer       string `json:"answer"`
	IsCorrect    bool   `json:"isCorrect"`
	ResponseTime int64  `json:"responseTime"`
	Domain       Domain `json:"domain"`
}

// Record is one persisted evaluation. Records are never updated.
type Record struct {
	QuestionName   string    `json:"questionName"`
	CorrectBoolean bool      `json:"correctBoolean"`
	ResponseTimeMs int64     `json:"responseTimeMs"`
	Domain         Domain    `json:"domain"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Tally is a correctness count.
type Tally struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Total     int `json:"total"`
}

// NewTally fills Total from the two counts.
func NewTally(correct, incorrect int) Tally {
	return Tally{Correct: correct, Incorrect: incorrect, Total: correct + incorrect}
}

// DomainReport aggregates one domain collection.
type DomainReport struct {
	Domain Domain `json:"domain"`
	Tally
	ResponseTimes []int64 `json:"responseTimes"`
}

// OverallReport aggregates every domain collection.
type OverallReport struct {
	ByDomain      map[Domain]Tally `json:"byDomain"`
	Overall       Tally            `json:"overall"`
	ResponseTimes []int64          `json:"responseTimes"`
}
