// Package lesson provides lesson script source implementations.
package lesson

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/purelyricky/aitutor/internal/domain"
	"github.com/purelyricky/aitutor/internal/logger"
)

// Compile-time interface check.
var _ domain.ScriptSource = (*MemorySource)(nil)

// MemorySource holds lesson scripts in memory. Safe for concurrent use.
type MemorySource struct {
	mu      sync.RWMutex
	lessons map[string]*domain.LessonScript
	log     *logger.Logger
}

// NewMemorySource creates a script source preloaded with built-in lessons.
func NewMemorySource(log *logger.Logger) *MemorySource {
	src := &MemorySource{
		lessons: make(map[string]*domain.LessonScript),
		log:     log,
	}
	src.seed()
	return src
}

// List returns summaries of all available lessons.
func (s *MemorySource) List(ctx context.Context) ([]domain.LessonSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.log.Debug("listing all lessons, count=%d", len(s.lessons))

	out := make([]domain.LessonSummary, 0, len(s.lessons))
	for _, l := range s.lessons {
		out = append(out, domain.LessonSummary{
			ID:          l.ID,
			Topic:       l.Topic,
			Description: l.Description,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Topic < out[j].Topic })
	return out, nil
}

// Get returns a lesson script by ID.
func (s *MemorySource) Get(ctx context.Context, id string) (*domain.LessonScript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lessons[id]
	if !ok {
		s.log.Debug("lesson not found: %s", id)
		return nil, domain.ErrNotFound
	}
	return l, nil
}

// Add installs a lesson script, typically one generated upstream.
// Overwrites any lesson with the same ID.
func (s *MemorySource) Add(ctx context.Context, lesson *domain.LessonScript) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lessons[lesson.ID] = lesson
	s.log.Info("lesson added: %s (%s)", lesson.ID, lesson.Topic)
	return nil
}

// Search returns lessons whose topic or description contain the query.
func (s *MemorySource) Search(ctx context.Context, query string) ([]domain.LessonSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(query)
	s.log.Debug("searching lessons for: %s", q)

	var out []domain.LessonSummary
	for _, l := range s.lessons {
		if strings.Contains(strings.ToLower(l.Topic), q) ||
			strings.Contains(strings.ToLower(l.Description), q) {
			out = append(out, domain.LessonSummary{
				ID:          l.ID,
				Topic:       l.Topic,
				Description: l.Description,
			})
		}
	}
	return out, nil
}

// seed populates the source with built-in demo lessons.
func (s *MemorySource) seed() {
	lessons := []*domain.LessonScript{
		s.pythagoreanTheorem(),
		s.photosynthesis(),
	}
	for _, l := range lessons {
		s.lessons[l.ID] = l
	}
	s.log.Debug("seeded %d lessons", len(lessons))
}

func (s *MemorySource) pythagoreanTheorem() *domain.LessonScript {
	return &domain.LessonScript{
		ID:          "pythagorean-theorem",
		Topic:       "The Pythagorean Theorem",
		Description: "Right triangles, squares on sides, and why a2 plus b2 equals c2.",
		Script: `[00:00] Hi there. Today we're going to look at one of the oldest and most useful results in all of geometry. {write: "The Pythagorean Theorem"}
[00:06] Everything starts with a right triangle, so let me put one on the board. {draw:right_triangle}
[00:12] The two shorter sides are called the legs. {highlight: "legs"} We usually label them a and b. {write: "a, b = legs"}
[00:20] The longest side, the one opposite the right angle, is the hypotenuse. {write: "c = hypotenuse"}
[00:28] Here's the claim. If you square both legs and add them, you get exactly the square of the hypotenuse. {write: "a^2 + b^2 = c^2"}
[00:38] Let's see it with real numbers. Take a triangle with legs three and four. {write: "3^2 + 4^2 = 9 + 16 = 25"}
[00:48] Twenty five is five squared, so the hypotenuse is exactly five. {highlight: "25"} {write: "c = 5"}
[00:56] That 3-4-5 triangle shows up everywhere, from carpentry to satellite navigation.
[01:04] Let me clear the board and show you why it's true, not just that it's true. {newpage}
[01:10] Picture a big square built from four copies of our triangle arranged around a tilted inner square. {draw:proof_square}
[01:20] The area of the big square can be counted two ways, and setting those equal gives the theorem. {write: "(a+b)^2 = 4(ab/2) + c^2"}
[01:32] Expand the left side, cancel the two a b terms, and the identity falls right out. {highlight: "c^2"}
[01:40] And that's the whole proof. Next time you see a right triangle, you know its sides are never independent.`,
	}
}

func (s *MemorySource) photosynthesis() *domain.LessonScript {
	return &domain.LessonScript{
		ID:          "photosynthesis",
		Topic:       "Photosynthesis",
		Description: "How plants turn light, water, and carbon dioxide into sugar and oxygen.",
		Script: `[00:00] Let's talk about how plants eat, because they don't, really. They build their food from scratch. {write: "Photosynthesis"}
[00:08] The whole process happens inside a tiny green compartment called the chloroplast. {draw:chloroplast}
[00:16] Plants take in three ingredients. Sunlight, water from the roots, and carbon dioxide from the air. {write: "light + H2O + CO2"}
[00:26] Out the other end come two products. {write: "-> C6H12O6 + O2"}
[00:34] The sugar is the plant's fuel and building material. The oxygen is, from the plant's point of view, waste. {highlight: "O2"}
[00:44] That waste happens to be the thing you're breathing right now.
[00:50] Let me redraw this as a balanced equation. {newpage} {write: "6CO2 + 6H2O -> C6H12O6 + 6O2"}
[01:00] Notice the sixes. Carbon, hydrogen, and oxygen atoms all balance perfectly on both sides. {highlight: "6"}
[01:10] Inside the chloroplast this actually runs in two stages, the light reactions and the Calvin cycle. {draw:two_stage_diagram}
[01:20] The light reactions capture energy. The Calvin cycle spends it to stitch carbon atoms into sugar.
[01:28] So the next time you see a leaf in the sun, remember, it's running a chemical factory powered entirely by light.`,
	}
}
