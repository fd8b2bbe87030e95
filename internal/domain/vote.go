package domain

import "time"

// ValidatorType identifies the role behind a validation vote.
type ValidatorType string

const (
	// ValidatorCommunity is a general community member.
	ValidatorCommunity ValidatorType = "community"
	// ValidatorStaff is a staff reviewer.
	ValidatorStaff ValidatorType = "staff"
	// ValidatorElder is a cultural knowledge holder.
	ValidatorElder ValidatorType = "elder"
	// ValidatorExpert is a subject-matter expert.
	ValidatorExpert ValidatorType = "expert"
	// ValidatorAutomated is a machine judgment.
	ValidatorAutomated ValidatorType = "automated"
)

// ValidValidatorType reports whether t is a recognized validator role.
func ValidValidatorType(t ValidatorType) bool {
	switch t {
	case ValidatorCommunity, ValidatorStaff, ValidatorElder, ValidatorExpert, ValidatorAutomated:
		return true
	default:
		return false
	}
}

// ValidationVote is one judgment on a content record or chunk.
// Votes are immutable once written; corrections are new votes.
type ValidationVote struct {
	ID              string        `db:"id" json:"id"`
	ContentRecordID string        `db:"content_record_id" json:"content_record_id"`
	ChunkID         *string       `db:"chunk_id" json:"chunk_id,omitempty"`
	ValidatorType   ValidatorType `db:"validator_type" json:"validator_type"`
	VoteScore       int           `db:"vote_score" json:"vote_score"`
	Confidence      float64       `db:"confidence" json:"confidence"`
	Rationale       string        `db:"rationale" json:"rationale,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
}

// ConsensusScore is the derived, weighted agreement over a chunk's votes.
// It is recomputed from the vote history and never stored as a source
// of truth.
type ConsensusScore struct {
	ChunkID   string             `json:"chunk_id"`
	PerType   map[string]float64 `json:"per_type"`
	Overall   float64            `json:"overall"`
	VoteCount int                `json:"vote_count"`
}
