package domain

import "time"

type TeamStatus string

const (
	TeamStatusForming  TeamStatus = "forming"
	TeamStatusComplete TeamStatus = "complete"
)

// MaxLevel is the highest level reachable through team completion.
const MaxLevel = 5

type Team struct {
	ID          int64      `json:"id"`
	LeaderID    int64      `json:"leader_id"`
	Status      TeamStatus `json:"status"`
	Members     []int64    `json:"members"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TeamProgress describes what a joining order did to the sponsor's teams.
type TeamProgress struct {
	LeaderID   int64 `json:"leader_id"`
	TeamID     int64 `json:"team_id"`
	Members    int   `json:"members"`
	Completed  bool  `json:"completed"`
	TotalTeams int   `json:"total_teams"`
	Level      int   `json:"level"`
}
