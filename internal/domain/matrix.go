package domain

import "time"

// MatrixFanout is the maximum number of children per matrix node.
const MatrixFanout = 3

type MatrixNode struct {
	UserID    int64     `json:"user_id"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Position  *int      `json:"position,omitempty"`
	Depth     int       `json:"depth"`
	CreatedAt time.Time `json:"created_at"`
}

// Placement is the result of placing a user into the matrix.
type Placement struct {
	UserID   int64  `json:"user_id"`
	ParentID *int64 `json:"parent_id,omitempty"`
	Position int    `json:"position"`
	Depth    int    `json:"depth"`
	Existing bool   `json:"existing"`
}

// HierarchyRow is one closure-table triple.
type HierarchyRow struct {
	AncestorID   int64 `json:"ancestor_id"`
	DescendantID int64 `json:"descendant_id"`
	Depth        int   `json:"depth"`
}
