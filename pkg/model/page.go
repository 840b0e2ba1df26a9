package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

type PageStatus string

const (
	PageStatusDraft     PageStatus = "draft"
	PageStatusPublished PageStatus = "published"
)

// Validate checks if the status is known
func (s PageStatus) Validate() error {
	switch s {
	case PageStatusDraft, PageStatusPublished:
		return nil
	default:
		return goerr.Wrap(ErrValidation, "invalid page status", goerr.V("status", s))
	}
}

// Page is a website page edited in the admin panel.
type Page struct {
	Meta `bson:",inline"`

	Title         string     `json:"title" firestore:"title" bson:"title"`
	Path          string     `json:"path" firestore:"path" bson:"path"`
	Content       string     `json:"content,omitempty" firestore:"content" bson:"content"`
	FeaturedImage string     `json:"featuredImage,omitempty" firestore:"featuredImage" bson:"featuredImage"`
	Status        PageStatus `json:"status,omitempty" firestore:"status" bson:"status"`
}

// NormalizePagePath returns p with exactly one leading slash.
func NormalizePagePath(p string) string {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

// Normalize fills defaults before the page is stored.
func (x *Page) Normalize() {
	x.Title = strings.TrimSpace(x.Title)
	if x.Path != "" {
		x.Path = NormalizePagePath(x.Path)
	}
	if x.Status == "" {
		x.Status = PageStatusPublished
	}
}

func (x *Page) Validate() error {
	if x.Title == "" || x.Path == "" {
		return goerr.Wrap(ErrValidation, "title and path are required")
	}
	return x.Status.Validate()
}

// Matches reports whether the page title or path contains q, ignoring case.
func (x *Page) Matches(q string) bool {
	return containsFold(q, x.Title, x.Path)
}

func (x *Page) ImageURL() string       { return x.FeaturedImage }
func (x *Page) SetImageURL(url string) { x.FeaturedImage = url }
func (x *Page) ImageField() string     { return "featuredImage" }

// Label is the text shown for the page in activity lists.
func (x *Page) Label() string { return x.Title }

func containsFold(q string, values ...string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}
