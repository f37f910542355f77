package model

import (
	"encoding/json"
	"strconv"
)

// Scope is the personal (no project) view or a single project.
type Scope struct {
	projectID int64
	isProject bool
}

func Personal() Scope { return Scope{} }

func ProjectScope(id int64) Scope { return Scope{projectID: id, isProject: true} }

// ScopeOf builds a scope from a nullable project id.
func ScopeOf(projectID *int64) Scope {
	if projectID == nil {
		return Personal()
	}
	return ProjectScope(*projectID)
}

func (s Scope) IsPersonal() bool { return !s.isProject }

// ProjectID returns the project id and whether the scope is a project.
func (s Scope) ProjectID() (int64, bool) { return s.projectID, s.isProject }

// ProjectIDPtr is the scope as the nullable proyecto_id the API uses.
func (s Scope) ProjectIDPtr() *int64 {
	if !s.isProject {
		return nil
	}
	id := s.projectID
	return &id
}

// Matches reports whether a proyecto_id value belongs to this scope.
func (s Scope) Matches(projectID *int64) bool {
	if projectID == nil {
		return !s.isProject
	}
	return s.isProject && *projectID == s.projectID
}

// QueryValue renders the scope for the proyectoId query parameter.
func (s Scope) QueryValue() string {
	if !s.isProject {
		return "null"
	}
	return strconv.FormatInt(s.projectID, 10)
}

func (s Scope) String() string {
	if !s.isProject {
		return "personal"
	}
	return "project:" + strconv.FormatInt(s.projectID, 10)
}

func (s Scope) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ProjectIDPtr())
}

func (s *Scope) UnmarshalJSON(b []byte) error {
	var id *int64
	if err := json.Unmarshal(b, &id); err != nil {
		return err
	}
	*s = ScopeOf(id)
	return nil
}
