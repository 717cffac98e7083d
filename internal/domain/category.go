package domain

import "time"

// Category is a user-defined grouping for notes. Names are unique per owner,
// not globally; two users can both have a "Work" category.
type Category struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
}
