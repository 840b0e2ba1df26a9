package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// SocialLinks are the contact links shown on a team member card.
type SocialLinks struct {
	Email    string `json:"email,omitempty" firestore:"email" bson:"email"`
	LinkedIn string `json:"linkedin,omitempty" firestore:"linkedin" bson:"linkedin"`
	Twitter  string `json:"twitter,omitempty" firestore:"twitter" bson:"twitter"`
}

// TeamMember is a person shown on the team page.
type TeamMember struct {
	Meta `bson:",inline"`

	Name   string      `json:"name" firestore:"name" bson:"name"`
	Role   string      `json:"role" firestore:"role" bson:"role"`
	Bio    string      `json:"bio,omitempty" firestore:"bio" bson:"bio"`
	Image  string      `json:"image,omitempty" firestore:"image" bson:"image"`
	Social SocialLinks `json:"social,omitzero" firestore:"social" bson:"social"`
	Order  int         `json:"order,omitempty" firestore:"order" bson:"order"`
}

func (x *TeamMember) Normalize() {
	x.Name = strings.TrimSpace(x.Name)
	x.Role = strings.TrimSpace(x.Role)
}

func (x *TeamMember) Validate() error {
	if x.Name == "" || x.Role == "" {
		return goerr.Wrap(ErrValidation, "name and role are required")
	}
	return nil
}

// Matches reports whether the member name or role contains q, ignoring case.
func (x *TeamMember) Matches(q string) bool {
	return containsFold(q, x.Name, x.Role)
}

func (x *TeamMember) ImageURL() string       { return x.Image }
func (x *TeamMember) SetImageURL(url string) { x.Image = url }
func (x *TeamMember) ImageField() string     { return "image" }
func (x *TeamMember) Label() string          { return x.Name }
