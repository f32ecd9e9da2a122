package models

import "time"

// Project is a construction project synced from the accounting system.
// NetvisorProjectKey and Code are unique. Name, Address and IsActive are
// refreshed on every sync; historical invoice references never change.
type Project struct {
	ID                  int64
	NetvisorProjectKey  int64
	Code                string
	Name                string
	Address             string
	ProjectManagerEmail string
	StartDate           *time.Time
	EndDate             *time.Time
	IsActive            bool
	CreatedAt           time.Time
	UpdatedAt           *time.Time
}
