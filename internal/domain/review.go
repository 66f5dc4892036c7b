package domain

import "time"

type Review struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Rating   int       `json:"rating"`
	Comment  string    `json:"comment"`
	Date     time.Time `json:"date"`
	Image    string    `json:"image,omitempty"`
	Position string    `json:"position,omitempty"`
}
