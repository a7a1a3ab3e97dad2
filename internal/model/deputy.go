// Package model defines the core data structures for the civic application.
package model

import "time"

// Deputy is a member of the legislature.
type Deputy struct {
	BirthDate *time.Time
	Name      string
	CivilName string
	Party     string
	State     string
	Sex       string
	Email     string
	ID        int64
}
