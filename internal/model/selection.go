package model

import (
	"fmt"
	"strings"
)

// SelectionKey identifies a question set: the subject, year and examining
// board picked on the selection screens. The values are opaque slugs such as
// "physics-1st", "2023" and "dhaka".
type SelectionKey struct {
	Subject string `json:"subject" form:"subject" binding:"omitempty,max=100,slug"`
	Year    string `json:"year" form:"year" binding:"omitempty,max=20,slug"`
	Board   string `json:"board" form:"board" binding:"omitempty,max=100,slug"`
}

// Complete reports whether all three fields are present.
func (k SelectionKey) Complete() bool {
	return strings.TrimSpace(k.Subject) != "" &&
		strings.TrimSpace(k.Year) != "" &&
		strings.TrimSpace(k.Board) != ""
}

func (k SelectionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Subject, k.Year, k.Board)
}

// CatalogSubject is one entry of the selection catalog: a subject with the
// years available for it, and the boards available per year.
type CatalogSubject struct {
	Subject string        `json:"subject"`
	Name    string        `json:"name"`
	Years   []CatalogYear `json:"years"`
}

// CatalogYear lists the boards that have questions for a subject and year.
type CatalogYear struct {
	Year   string   `json:"year"`
	Boards []string `json:"boards"`
}
