package model

import "time"

type Puzzle struct {
	ID                  int64     `json:"id"`
	CanonicalID         string    `json:"canonical_id"` // identifier used by the analyzer program
	Name                string    `json:"name"`
	Slug                string    `json:"slug"`
	LeaderboardEligible bool      `json:"leaderboard_eligible"`
	PrimaryFilters      bool      `json:"primary_filters"`
	PrimaryMacros       bool      `json:"primary_macros"`
	CreatedAt           time.Time `json:"created_at"`
}

type Variant struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Program struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}
