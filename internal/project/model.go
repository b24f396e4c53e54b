package project

import "time"

// Project represents a row in the projects table.
type Project struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Member is a membership row connecting a user to a project.
type Member struct {
	UserID    int64
	ProjectID int64
	IsOwner   bool
	CreatedAt time.Time
}
