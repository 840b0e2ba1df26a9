package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// Program is one of the organization's programs highlighted on the site.
type Program struct {
	Meta `bson:",inline"`

	Title       string `json:"title" firestore:"title" bson:"title"`
	Summary     string `json:"summary,omitempty" firestore:"summary" bson:"summary"`
	Description string `json:"description,omitempty" firestore:"description" bson:"description"`
	Image       string `json:"image,omitempty" firestore:"image" bson:"image"`
	Featured    bool   `json:"featured,omitempty" firestore:"featured" bson:"featured"`
}

func (x *Program) Normalize() {
	x.Title = strings.TrimSpace(x.Title)
}

func (x *Program) Validate() error {
	if x.Title == "" {
		return goerr.Wrap(ErrValidation, "title is required")
	}
	return nil
}

func (x *Program) Matches(q string) bool {
	return containsFold(q, x.Title, x.Summary)
}

func (x *Program) ImageURL() string       { return x.Image }
func (x *Program) SetImageURL(url string) { x.Image = url }
func (x *Program) ImageField() string     { return "image" }
func (x *Program) Label() string          { return x.Title }
