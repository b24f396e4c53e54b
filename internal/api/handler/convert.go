package handler

import (
	"time"

	"github.com/snowballr/snowballr-api/internal/author"
	"github.com/snowballr/snowballr-api/internal/paper"
	"github.com/snowballr/snowballr-api/internal/project"
	"github.com/snowballr/snowballr-api/internal/user"
)

// userResponse never carries the password hash.
type userResponse struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	IsAdmin   bool   `json:"isAdmin"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type paperResponse struct {
	ID              int64  `json:"id"`
	DOI             string `json:"doi"`
	Title           string `json:"title"`
	Abstract        string `json:"abstract"`
	Year            *int   `json:"year"`
	Publisher       string `json:"publisher"`
	PublicationType string `json:"publicationType"`
	OpenAccess      bool   `json:"openAccess"`
	Status          string `json:"status,omitempty"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

type authorResponse struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	ORCID     string `json:"orcid"`
	Status    string `json:"status,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type memberResponse struct {
	UserID    int64  `json:"userId"`
	ProjectID int64  `json:"projectId"`
	IsOwner   bool   `json:"isOwner"`
	CreatedAt string `json:"createdAt"`
}

type projectResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toUserResponse(u *user.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsAdmin:   u.IsAdmin,
		Status:    u.Status,
		CreatedAt: formatTime(u.CreatedAt),
		UpdatedAt: formatTime(u.UpdatedAt),
	}
}

func toUserResponses(users []user.User) []userResponse {
	out := make([]userResponse, 0, len(users))
	for i := range users {
		out = append(out, toUserResponse(&users[i]))
	}
	return out
}

func toPaperResponse(p *paper.Paper, status string) paperResponse {
	return paperResponse{
		ID:              p.ID,
		DOI:             p.DOI,
		Title:           p.Title,
		Abstract:        p.Abstract,
		Year:            p.Year,
		Publisher:       p.Publisher,
		PublicationType: p.PublicationType,
		OpenAccess:      p.OpenAccess,
		Status:          status,
		CreatedAt:       formatTime(p.CreatedAt),
		UpdatedAt:       formatTime(p.UpdatedAt),
	}
}

func toPaperResponses(papers []paper.Paper) []paperResponse {
	out := make([]paperResponse, 0, len(papers))
	for i := range papers {
		out = append(out, toPaperResponse(&papers[i], ""))
	}
	return out
}

func toAuthorResponse(a *author.Author, status string) authorResponse {
	return authorResponse{
		ID:        a.ID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		ORCID:     a.ORCID,
		Status:    status,
		CreatedAt: formatTime(a.CreatedAt),
		UpdatedAt: formatTime(a.UpdatedAt),
	}
}

func toAuthorResponses(authors []author.Author) []authorResponse {
	out := make([]authorResponse, 0, len(authors))
	for i := range authors {
		out = append(out, toAuthorResponse(&authors[i], ""))
	}
	return out
}

func toMemberResponses(members []project.Member) []memberResponse {
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, memberResponse{
			UserID:    m.UserID,
			ProjectID: m.ProjectID,
			IsOwner:   m.IsOwner,
			CreatedAt: formatTime(m.CreatedAt),
		})
	}
	return out
}

func toProjectResponse(p *project.Project) projectResponse {
	return projectResponse{ID: p.ID, Name: p.Name, CreatedAt: formatTime(p.CreatedAt)}
}
