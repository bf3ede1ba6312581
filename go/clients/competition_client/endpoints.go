package competition_client

const (
	// API Endpoints
	StatusEndpoint      = "/api/competition/status"
	AssignmentsEndpoint = "/api/vote_assignments/mine"
	MyVotesEndpoint     = "/api/votes/mine"
	VotesEndpoint       = "/api/votes"
	SubmissionEndpoint  = "/api/submissions/%d"
	ScoresEndpoint      = "/api/scores"

	// Vote score range, inclusive
	MinScore = 0
	MaxScore = 5
)
