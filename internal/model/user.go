package model

type Client struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type Vehicle struct {
	ID       int64  `db:"id" json:"id"`
	ClientID int64  `db:"client_id" json:"client_id"`
	Plate    string `db:"plate" json:"plate"`
}

// User is a shop employee as seen by the technician directory.
type User struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Role     string `db:"role" json:"role"`
	IsActive bool   `db:"is_active" json:"is_active"`
}
