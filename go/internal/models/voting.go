package models

import (
	"time"
)

// Submission is a competition entry as returned by the submissions API.
type Submission struct {
	ID                  int       `json:"id"`
	UserID              int       `json:"user_id,omitempty"`
	DesignImage         string    `json:"design_image"`
	FigmaLink           string    `json:"figma_link,omitempty"`
	TargetUserAndGoal   string    `json:"target_user_and_goal"`
	LayoutExplanation   string    `json:"layout_explanation"`
	StyleInterpretation string    `json:"style_interpretation"`
	KeyTradeOff         string    `json:"key_trade_off"`
	FutureImprovements  string    `json:"future_improvements,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// VoteAssignment links a voter to a submission they have to score.
type VoteAssignment struct {
	ID           int       `json:"id"`
	UserID       int       `json:"user_id"`
	SubmissionID int       `json:"submission_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VoteParams holds the per-criterion scores for one submission.
type VoteParams struct {
	SubmissionID             int `json:"submission_id"`
	ProblemFitScore          int `json:"problem_fit_score"`
	ClarityScore             int `json:"clarity_score"`
	StyleInterpretationScore int `json:"style_interpretation_score"`
	OriginalityScore         int `json:"originality_score"`
	OverallQualityScore      int `json:"overall_quality_score"`
}

// Vote is a persisted vote.
type Vote struct {
	ID                       int       `json:"id"`
	UserID                   int       `json:"user_id"`
	SubmissionID             int       `json:"submission_id"`
	ProblemFitScore          int       `json:"problem_fit_score"`
	ClarityScore             int       `json:"clarity_score"`
	StyleInterpretationScore int       `json:"style_interpretation_score"`
	OriginalityScore         int       `json:"originality_score"`
	OverallQualityScore      int       `json:"overall_quality_score"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// AssignedSubmission combines an assignment with its submission and the caller's vote, if any.
type AssignedSubmission struct {
	Assignment   VoteAssignment `json:"assignment"`
	Submission   Submission     `json:"submission"`
	ExistingVote *Vote          `json:"existing_vote,omitempty"`
}

// HasVoted reports whether the caller already scored this submission.
func (a AssignedSubmission) HasVoted() bool {
	return a.ExistingVote != nil
}

// LeaderboardEntry is the aggregated score of one submission.
type LeaderboardEntry struct {
	ID                       int       `json:"id"`
	SubmissionID             int       `json:"submission_id"`
	ProblemFitScore          int       `json:"problem_fit_score"`
	VisualClarityScore       int       `json:"visual_clarity_score"`
	StyleInterpretationScore int       `json:"style_interpretation_score"`
	OriginalityScore         int       `json:"originality_score"`
	OverallQualityScore      int       `json:"overall_quality_score"`
	FinalScore               int       `json:"final_score"`
	UserName                 string    `json:"user_name"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// RankedEntry is a leaderboard entry joined with its submission.
type RankedEntry struct {
	Rank       int              `json:"rank"`
	Score      LeaderboardEntry `json:"score"`
	Submission Submission       `json:"submission"`
}
