package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/manwarsd/dreamboard/internal/events"
	"github.com/manwarsd/dreamboard/internal/story"
)

// Track names a scene's candidate list.
type Track string

const (
	TrackImage Track = "image"
	TrackVideo Track = "video"
)

// SelectOp is a user action on a scene's selection cursor.
type SelectOp string

const (
	SelectNext  SelectOp = "next"
	SelectPrev  SelectOp = "prev"
	SelectKey   SelectOp = "select"
	SelectClear SelectOp = "clear"
)

// FileKind is what an uploaded file is used for.
type FileKind string

const (
	FileKindReference FileKind = "reference"
	FileKindSeed      FileKind = "seed"
)

type StoryService interface {
	CreateStory(ctx context.Context, title, description string) (*story.Story, error)
	GetStory(ctx context.Context, id string) (*story.Story, error)
	ListStories(ctx context.Context) ([]*StoryInfo, error)
	CountStories(ctx context.Context) (int, error)
	UpdateStory(ctx context.Context, id string, title, description *string) (*story.Story, error)
	DeleteStory(ctx context.Context, id string) error
	AddScene(ctx context.Context, storyID string, patch ScenePatch) (*story.Scene, error)
	UpdateScene(ctx context.Context, storyID, sceneID string, patch ScenePatch) (*story.Scene, error)
	RemoveScene(ctx context.Context, storyID, sceneID string) (*story.Story, error)
	MoveScene(ctx context.Context, storyID, sceneID string, number int) (*story.Story, error)
	Select(ctx context.Context, storyID, sceneID string, track Track, op SelectOp, key string) (*story.Scene, error)
	AttachImage(ctx context.Context, storyID, sceneID string, kind FileKind, img story.Image, refType story.ReferenceType, description string) (*story.Scene, error)
}

type Service struct {
	repo     Repository
	events   events.Publisher
	logger   *slog.Logger
	defaults ScenePatch
}

func NewService(repo Repository, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, events: publisher, logger: logger}
}

// SetSceneDefaults sets the patch every new scene starts from, before the
// caller's own edits.
func (s *Service) SetSceneDefaults(p ScenePatch) error {
	if err := p.Apply(story.NewScene(1)); err != nil {
		return err
	}
	s.defaults = p
	return nil
}

func (s *Service) CreateStory(ctx context.Context, title, description string) (*story.Story, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	st := story.NewStory(title, strings.TrimSpace(description))
	if err := s.repo.CreateStory(ctx, st); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info("story created", "story_id", st.ID, "title", st.Title)
	}
	s.publish(events.StoryUpdated, st.ID, "created")
	return st, nil
}

func (s *Service) GetStory(ctx context.Context, id string) (*story.Story, error) {
	st, err := s.repo.GetStory(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, ErrStoryNotFound
	}
	return st, nil
}

func (s *Service) ListStories(ctx context.Context) ([]*StoryInfo, error) {
	return s.repo.ListStories(ctx)
}

func (s *Service) CountStories(ctx context.Context) (int, error) {
	return s.repo.CountStories(ctx)
}

func (s *Service) UpdateStory(ctx context.Context, id string, title, description *string) (*story.Story, error) {
	if title != nil && strings.TrimSpace(*title) == "" {
		return nil, fmt.Errorf("%w: title must not be empty", ErrInvalidInput)
	}
	st, err := s.repo.UpdateStory(ctx, id, func(st *story.Story) error {
		if title != nil {
			st.Title = strings.TrimSpace(*title)
		}
		if description != nil {
			st.Description = strings.TrimSpace(*description)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.StoryUpdated, id, "story edited")
	return st, nil
}

func (s *Service) DeleteStory(ctx context.Context, id string) error {
	st, err := s.repo.GetStory(ctx, id)
	if err != nil {
		return err
	}
	if st == nil {
		return ErrStoryNotFound
	}
	if err := s.repo.DeleteStory(ctx, id); err != nil {
		return err
	}
	if s.logger != nil {
		s.logger.Info("story deleted", "story_id", id)
	}
	s.publish(events.StoryDeleted, id, "")
	return nil
}

func (s *Service) AddScene(ctx context.Context, storyID string, patch ScenePatch) (*story.Scene, error) {
	var added *story.Scene
	_, err := s.repo.UpdateStory(ctx, storyID, func(st *story.Story) error {
		sc := story.NewScene(len(st.Scenes) + 1)
		if err := s.defaults.Apply(sc); err != nil {
			return err
		}
		if err := patch.Apply(sc); err != nil {
			return err
		}
		st.Scenes = append(st.Scenes, sc)
		story.Renumber(st)
		added = sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.StoryUpdated, storyID, fmt.Sprintf("scene %d added", added.Number))
	return added, nil
}

func (s *Service) UpdateScene(ctx context.Context, storyID, sceneID string, patch ScenePatch) (*story.Scene, error) {
	var updated *story.Scene
	_, err := s.repo.UpdateStory(ctx, storyID, func(st *story.Story) error {
		sc := st.Scene(sceneID)
		if sc == nil {
			return ErrSceneNotFound
		}
		if err := patch.Apply(sc); err != nil {
			return err
		}
		updated = sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.StoryUpdated, storyID, fmt.Sprintf("scene %d edited", updated.Number))
	return updated, nil
}

// RemoveScene deletes a scene and renumbers the rest. Removing the last
// scene resets the story to a fresh empty one.
func (s *Service) RemoveScene(ctx context.Context, storyID, sceneID string) (*story.Story, error) {
	st, err := s.repo.UpdateStory(ctx, storyID, func(st *story.Story) error {
		if !story.RemoveScene(st, sceneID) {
			return ErrSceneNotFound
		}
		if len(st.Scenes) == 0 {
			st.Reset()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.StoryUpdated, storyID, "scene removed")
	return st, nil
}

func (s *Service) MoveScene(ctx context.Context, storyID, sceneID string, number int) (*story.Story, error) {
	if number < 1 {
		return nil, fmt.Errorf("%w: number must be positive", ErrInvalidInput)
	}
	st, err := s.repo.UpdateStory(ctx, storyID, func(st *story.Story) error {
		if !story.MoveScene(st, sceneID, number) {
			return ErrSceneNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.StoryUpdated, storyID, "scene moved")
	return st, nil
}

// Select drives a scene's image or video selection cursor.
func (s *Service) Select(ctx context.Context, storyID, sceneID string, track Track, op SelectOp, key string) (*story.Scene, error) {
	var updated *story.Scene
	_, err := s.repo.UpdateStory(ctx, storyID, func(st *story.Story) error {
		sc := st.Scene(sceneID)
		if sc == nil {
			return ErrSceneNotFound
		}
		switch track {
		case TrackImage:
			if err := applySelect(sc.ImageSelection(), op, key); err != nil {
				return err
			}
		case TrackVideo:
			if err := applySelect(sc.VideoSelection(), op, key); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: unknown track %q", ErrInvalidInput, track)
		}
		updated = sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.StoryUpdated, storyID, fmt.Sprintf("scene %d %s selection changed", updated.Number, track))
	return updated, nil
}

func applySelect[T story.Candidate](sel story.Selection[T], op SelectOp, key string) error {
	switch op {
	case SelectNext:
		sel.Next()
	case SelectPrev:
		sel.Prev()
	case SelectClear:
		sel.Clear()
	case SelectKey:
		if !sel.SelectByKey(key) {
			return fmt.Errorf("%w: no candidate with key %q", ErrInvalidInput, key)
		}
	default:
		return fmt.Errorf("%w: unknown selection op %q", ErrInvalidInput, op)
	}
	return nil
}

// AttachImage stores an uploaded image on a scene. A seed image joins the
// scene's image candidates and becomes the selected one; a reference image
// is added to the reference set.
func (s *Service) AttachImage(ctx context.Context, storyID, sceneID string, kind FileKind, img story.Image, refType story.ReferenceType, description string) (*story.Scene, error) {
	var updated *story.Scene
	_, err := s.repo.UpdateStory(ctx, storyID, func(st *story.Story) error {
		sc := st.Scene(sceneID)
		if sc == nil {
			return ErrSceneNotFound
		}
		switch kind {
		case FileKindSeed:
			sel := sc.ImageSelection()
			sel.Append(img)
			sel.SelectIndex(sel.Len() - 1)
		case FileKindReference:
			if refType == "" {
				refType = story.ReferenceRaw
			}
			if err := sc.AddReferenceImage(img, refType, description); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidInput, err)
			}
		default:
			return fmt.Errorf("%w: unknown file kind %q", ErrInvalidInput, kind)
		}
		updated = sc
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.StoryUpdated, storyID, fmt.Sprintf("%s image attached to scene %d", kind, updated.Number))
	return updated, nil
}

func (s *Service) publish(t events.Type, storyID, msg string) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.Event{Type: t, StoryID: storyID, Message: msg})
}
