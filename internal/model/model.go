package model

import "time"

// DefaultCollection is used when no collection is named.
const DefaultCollection = "team"

// RankUnset is the sentinel for "not yet assigned".
const RankUnset = 0

type Member struct {
	ID         string `json:"id"`
	Collection string `json:"collection"`

	// Rank is the display position within the collection (lower sorts first).
	Rank int `json:"rank"`

	Name      string         `json:"name"`
	JobTitle  string         `json:"jobTitle,omitempty"`
	Seniority string         `json:"seniority,omitempty"`
	ImageURL  string         `json:"imageUrl,omitempty"`
	Bio       string         `json:"bio,omitempty"`
	Image     ImagePlacement `json:"image"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasRank reports whether the member carries an assigned (positive) rank.
func (m Member) HasRank() bool { return m.Rank > RankUnset }

type ImageFit string

const (
	ImageFitCover   ImageFit = "cover"
	ImageFitContain ImageFit = "contain"
	ImageFitFill    ImageFit = "fill"
	ImageFitNone    ImageFit = "none"
)

const (
	MinImageScale = 0.5
	MaxImageScale = 2.0
)

// ImagePlacement positions a member photo inside its (round) frame.
// X and Y are pixel offsets; Scale is a zoom factor.
type ImagePlacement struct {
	Fit   ImageFit `json:"fit"`
	X     int      `json:"x"`
	Y     int      `json:"y"`
	Scale float64  `json:"scale"`
}

func DefaultImagePlacement() ImagePlacement {
	return ImagePlacement{Fit: ImageFitCover, Scale: 1}
}

// Normalize fills zero values with defaults.
func (p ImagePlacement) Normalize() ImagePlacement {
	if p.Fit == "" {
		p.Fit = ImageFitCover
	}
	if p.Scale == 0 {
		p.Scale = 1
	}
	return p
}

func (p ImagePlacement) Validate() error {
	switch p.Fit {
	case ImageFitCover, ImageFitContain, ImageFitFill, ImageFitNone:
	default:
		return ValidationError{Field: "image.fit", Reason: "expected cover|contain|fill|none"}
	}
	if p.Scale < MinImageScale || p.Scale > MaxImageScale {
		return ValidationError{Field: "image.scale", Reason: "must be between 0.5 and 2"}
	}
	return nil
}
