package service

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"

	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

type memoryCacheRepo struct {
	mu          sync.Mutex
	items       map[string][]byte
	invalidated []string
	deleteErr   error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated = append(m.invalidated, pattern)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for key := range m.items {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.items, key)
		}
	}
	return nil
}

type fakeTrackRepo struct {
	tracks       []models.Track
	requirements []models.TrackRequirementDetail
	err          error
}

func (f *fakeTrackRepo) FindByNames(_ context.Context, names []string) ([]models.Track, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Track
	for _, t := range f.tracks {
		for _, n := range names {
			if t.Name == n {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeTrackRepo) ListRequirements(_ context.Context, trackIDs []int64) ([]models.TrackRequirementDetail, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.TrackRequirementDetail
	for _, r := range f.requirements {
		for _, id := range trackIDs {
			if r.TrackID == id {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

type fakeCourseRepo struct {
	courses       []models.Course
	prerequisites []models.CoursePrerequisite
	descriptions  map[string]string
}

func (f *fakeCourseRepo) FindByCode(_ context.Context, code string) (*models.Course, error) {
	for _, c := range f.courses {
		if c.Code == code {
			course := c
			return &course, nil
		}
	}
	return nil, errNoRows
}

func (f *fakeCourseRepo) FindByCodes(_ context.Context, codes []string) ([]models.Course, error) {
	var out []models.Course
	for _, c := range f.courses {
		for _, code := range codes {
			if c.Code == code {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeCourseRepo) FindByNames(_ context.Context, names []string) ([]models.Course, error) {
	var out []models.Course
	for _, c := range f.courses {
		for _, name := range names {
			if c.Name == name {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeCourseRepo) ListAll(context.Context) ([]models.Course, error) {
	return f.courses, nil
}

func (f *fakeCourseRepo) ListPrerequisites(_ context.Context, ids []int64) ([]models.CoursePrerequisite, error) {
	var out []models.CoursePrerequisite
	for _, e := range f.prerequisites {
		for _, id := range ids {
			if e.CourseID == id {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeCourseRepo) UpdateDescription(_ context.Context, code, description string) error {
	for _, c := range f.courses {
		if c.Code == code {
			if f.descriptions == nil {
				f.descriptions = make(map[string]string)
			}
			f.descriptions[code] = description
			return nil
		}
	}
	return errNoRows
}
