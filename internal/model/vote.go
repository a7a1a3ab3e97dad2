package model

import "time"

// Vote values as published by the legislature.
const (
	VoteYes         = "Sim"
	VoteNo          = "Não"
	VoteAbstention  = "Abstenção"
	VoteObstruction = "Obstrução"
	VoteArticle17   = "Artigo 17"
)

// Vote is a single deputy's vote in a roll-call.
type Vote struct {
	VotedAt       time.Time
	PropositionID *int64
	VotingID      string
	Vote          string
	DeputyID      int64
}
