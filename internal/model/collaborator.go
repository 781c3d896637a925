package model

// Collaborator is a member of a project, as returned by the project API.
type Collaborator struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Project is the metadata record for a workspace project.
type Project struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Users []Collaborator `json:"users"`
}
