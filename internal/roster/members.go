package roster

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"roster-cli/internal/model"
	"roster-cli/internal/store"
)

// MemberInput carries the profile fields of a new member.
type MemberInput struct {
	Name      string                `json:"name"`
	JobTitle  string                `json:"jobTitle,omitempty"`
	Seniority string                `json:"seniority,omitempty"`
	ImageURL  string                `json:"imageUrl,omitempty"`
	Bio       string                `json:"bio,omitempty"`
	Image     *model.ImagePlacement `json:"image,omitempty"`
}

// MemberPatch updates only the fields that are set.
type MemberPatch struct {
	Name      *string               `json:"name,omitempty"`
	JobTitle  *string               `json:"jobTitle,omitempty"`
	Seniority *string               `json:"seniority,omitempty"`
	ImageURL  *string               `json:"imageUrl,omitempty"`
	Bio       *string               `json:"bio,omitempty"`
	Image     *model.ImagePlacement `json:"image,omitempty"`
}

func (p MemberPatch) Empty() bool {
	return p.Name == nil && p.JobTitle == nil && p.Seniority == nil &&
		p.ImageURL == nil && p.Bio == nil && p.Image == nil
}

// Create adds a member with an unset rank; the next read appends it at the end.
func (s *Service) Create(ctx context.Context, collection string, in MemberInput) (m model.Member, err error) {
	defer s.observe("create", time.Now(), &err)
	col, err := s.collection(collection)
	if err != nil {
		return model.Member{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Member{}, model.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	img := model.DefaultImagePlacement()
	if in.Image != nil {
		img = in.Image.Normalize()
	}
	if err := img.Validate(); err != nil {
		return model.Member{}, err
	}

	now := s.now().UTC()
	m = model.Member{
		ID:         store.NewMemberID(now),
		Collection: col,
		Rank:       model.RankUnset,
		Name:       name,
		JobTitle:   strings.TrimSpace(in.JobTitle),
		Seniority:  strings.TrimSpace(in.Seniority),
		ImageURL:   strings.TrimSpace(in.ImageURL),
		Bio:        in.Bio,
		Image:      img,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	unlock := s.lock(col)
	defer unlock()
	if err := s.store.PutMember(ctx, m); err != nil {
		return model.Member{}, err
	}
	s.log.Debug("member created", zap.String("collection", col), zap.String("id", m.ID))
	s.publish(Event{Collection: col, Op: "create", IDs: []string{m.ID}})
	return m, nil
}

// Get returns one member. Its rank may still be unset if the collection has not
// been read since the member was created.
func (s *Service) Get(ctx context.Context, collection, id string) (m model.Member, err error) {
	defer s.observe("get", time.Now(), &err)
	col, err := s.collection(collection)
	if err != nil {
		return model.Member{}, err
	}
	return s.store.GetMember(ctx, col, strings.TrimSpace(id))
}

func (s *Service) Update(ctx context.Context, collection, id string, patch MemberPatch) (m model.Member, err error) {
	defer s.observe("update", time.Now(), &err)
	col, err := s.collection(collection)
	if err != nil {
		return model.Member{}, err
	}
	if patch.Empty() {
		return model.Member{}, model.ValidationError{Field: "patch", Reason: "nothing to update"}
	}

	unlock := s.lock(col)
	defer unlock()
	m, err = s.store.GetMember(ctx, col, strings.TrimSpace(id))
	if err != nil {
		return model.Member{}, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return model.Member{}, model.ValidationError{Field: "name", Reason: "must not be empty"}
		}
		m.Name = name
	}
	if patch.JobTitle != nil {
		m.JobTitle = strings.TrimSpace(*patch.JobTitle)
	}
	if patch.Seniority != nil {
		m.Seniority = strings.TrimSpace(*patch.Seniority)
	}
	if patch.ImageURL != nil {
		m.ImageURL = strings.TrimSpace(*patch.ImageURL)
	}
	if patch.Bio != nil {
		m.Bio = *patch.Bio
	}
	if patch.Image != nil {
		img := patch.Image.Normalize()
		if err := img.Validate(); err != nil {
			return model.Member{}, err
		}
		m.Image = img
	}
	m.UpdatedAt = s.now().UTC()
	if err := s.store.PutMember(ctx, m); err != nil {
		return model.Member{}, err
	}
	s.publish(Event{Collection: col, Op: "update", IDs: []string{m.ID}})
	return m, nil
}

// Delete removes a member. The remaining ranks keep their gap.
func (s *Service) Delete(ctx context.Context, collection, id string) (err error) {
	defer s.observe("delete", time.Now(), &err)
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	unlock := s.lock(col)
	defer unlock()
	if err := s.store.DeleteMember(ctx, col, id); err != nil {
		return err
	}
	s.log.Debug("member deleted", zap.String("collection", col), zap.String("id", id))
	s.publish(Event{Collection: col, Op: "delete", IDs: []string{id}})
	return nil
}
