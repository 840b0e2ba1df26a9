package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// EventDateLayout is the stored format of Event.Date.
const EventDateLayout = "2006-01-02"

// Event is an upcoming or past event listed on the website.
type Event struct {
	Meta `bson:",inline"`

	Title           string `json:"title" firestore:"title" bson:"title"`
	Description     string `json:"description,omitempty" firestore:"description" bson:"description"`
	Date            string `json:"date" firestore:"date" bson:"date"`
	Time            string `json:"time,omitempty" firestore:"time" bson:"time"`
	Location        string `json:"location,omitempty" firestore:"location" bson:"location"`
	Image           string `json:"image,omitempty" firestore:"image" bson:"image"`
	RegistrationURL string `json:"registrationUrl,omitempty" firestore:"registrationUrl" bson:"registrationUrl"`
}

func (x *Event) Normalize() {
	x.Title = strings.TrimSpace(x.Title)
	x.Date = strings.TrimSpace(x.Date)
}

func (x *Event) Validate() error {
	if x.Title == "" || x.Date == "" {
		return goerr.Wrap(ErrValidation, "title and date are required")
	}
	if _, err := time.Parse(EventDateLayout, x.Date); err != nil {
		return goerr.Wrap(ErrValidation, "date must be YYYY-MM-DD", goerr.V("date", x.Date))
	}
	return nil
}

// Matches reports whether the event title or location contains q, ignoring case.
func (x *Event) Matches(q string) bool {
	return containsFold(q, x.Title, x.Location)
}

func (x *Event) ImageURL() string       { return x.Image }
func (x *Event) SetImageURL(url string) { x.Image = url }
func (x *Event) ImageField() string     { return "image" }
func (x *Event) Label() string          { return x.Title }
