package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/jinford/study-rag/internal/core/apperr"
	"github.com/jinford/study-rag/internal/core/document"
	"github.com/jinford/study-rag/internal/core/embedding"
	"github.com/jinford/study-rag/internal/core/question"
)

type state struct {
	subjects      map[uuid.UUID]*document.Subject
	subjectOrder  []uuid.UUID
	documents     map[uuid.UUID]*document.Document
	documentOrder []uuid.UUID
	fragments     []*document.Fragment
	questions     map[uuid.UUID]*question.Question
	questionOrder []uuid.UUID
}

func newState() *state {
	return &state{
		subjects:  make(map[uuid.UUID]*document.Subject),
		documents: make(map[uuid.UUID]*document.Document),
		questions: make(map[uuid.UUID]*question.Question),
	}
}

// clone はトランザクション用に状態を複製する。要素は不変なのでポインタを共有する
func (s *state) clone() *state {
	c := &state{
		subjects:      make(map[uuid.UUID]*document.Subject, len(s.subjects)),
		subjectOrder:  append([]uuid.UUID(nil), s.subjectOrder...),
		documents:     make(map[uuid.UUID]*document.Document, len(s.documents)),
		documentOrder: append([]uuid.UUID(nil), s.documentOrder...),
		fragments:     append([]*document.Fragment(nil), s.fragments...),
		questions:     make(map[uuid.UUID]*question.Question, len(s.questions)),
		questionOrder: append([]uuid.UUID(nil), s.questionOrder...),
	}
	for k, v := range s.subjects {
		c.subjects[k] = v
	}
	for k, v := range s.documents {
		c.documents[k] = v
	}
	for k, v := range s.questions {
		c.questions[k] = v
	}
	return c
}

// Store はプロセス内で完結するストア。テストとオフライン実行で使う
type Store struct {
	writeMu   sync.Mutex // 書き込みとトランザクションを直列化する
	mu        sync.RWMutex
	st        *state
	dimension int
	now       func() time.Time
}

// NewStore は指定次元のベクトルを受け付ける Store を作成する
func NewStore(dimension int) *Store {
	return &Store{
		st:        newState(),
		dimension: dimension,
		now:       time.Now,
	}
}

var (
	_ document.Repository = (*Store)(nil)
	_ document.UnitOfWork = (*Store)(nil)
	_ question.Repository = (*Store)(nil)
)

// Do は fn を状態のコピーに対して実行し、成功した場合のみ反映する
func (s *Store) Do(ctx context.Context, fn func(document.Repository) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	tx := &Store{st: s.st.clone(), dimension: s.dimension, now: s.now}
	s.mu.RUnlock()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.st = tx.st
	s.mu.Unlock()
	return nil
}

// write は書き込みを直列化して実行する
func (s *Store) write(fn func(st *state) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) read(fn func(st *state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

// === Subject ===

func (s *Store) CreateSubject(_ context.Context, name string) (*document.Subject, error) {
	subject := &document.Subject{ID: uuid.New(), Name: name, CreatedAt: s.now()}
	err := s.write(func(st *state) error {
		st.subjects[subject.ID] = subject
		st.subjectOrder = append(st.subjectOrder, subject.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subject, nil
}

func (s *Store) ListSubjects(_ context.Context) ([]*document.Subject, error) {
	var out []*document.Subject
	s.read(func(st *state) {
		for _, id := range st.subjectOrder {
			out = append(out, st.subjects[id])
		}
	})
	return out, nil
}

// === Document ===

func (s *Store) CreateDocument(_ context.Context, doc *document.Document) (*document.Document, error) {
	created := *doc
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	created.CreatedAt = s.now()

	err := s.write(func(st *state) error {
		if _, ok := st.subjects[created.SubjectID]; !ok {
			return fmt.Errorf("%w: subject not found: %s", apperr.ErrPersistence, created.SubjectID)
		}
		if _, ok := st.documents[created.ID]; ok {
			return fmt.Errorf("%w: duplicate document id: %s", apperr.ErrPersistence, created.ID)
		}
		st.documents[created.ID] = &created
		st.documentOrder = append(st.documentOrder, created.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetDocument(_ context.Context, id uuid.UUID) (mo.Option[*document.Document], error) {
	result := mo.None[*document.Document]()
	s.read(func(st *state) {
		if doc, ok := st.documents[id]; ok {
			result = mo.Some(doc)
		}
	})
	return result, nil
}

func (s *Store) ListDocumentsBySubject(_ context.Context, subjectID uuid.UUID) ([]*document.Document, error) {
	var out []*document.Document
	s.read(func(st *state) {
		for _, id := range st.documentOrder {
			if doc := st.documents[id]; doc.SubjectID == subjectID {
				out = append(out, doc)
			}
		}
	})
	return out, nil
}

// === Fragment ===

func (s *Store) PutFragment(_ context.Context, f *document.Fragment) (uuid.UUID, error) {
	if err := embedding.CheckDimension(f.Embedding, s.dimension); err != nil {
		return uuid.Nil, err
	}

	created := *f
	if created.ID == uuid.Nil {
		created.ID = uuid.New()
	}
	created.Embedding = append([]float32(nil), f.Embedding...)
	created.CreatedAt = s.now()

	err := s.write(func(st *state) error {
		doc, ok := st.documents[created.DocumentID]
		if !ok {
			return fmt.Errorf("%w: document not found: %s", apperr.ErrPersistence, created.DocumentID)
		}
		if doc.SubjectID != created.SubjectID {
			return fmt.Errorf("%w: fragment subject %s does not match document subject %s",
				apperr.ErrPersistence, created.SubjectID, doc.SubjectID)
		}
		st.fragments = append(st.fragments, &created)
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return created.ID, nil
}

func (s *Store) ListFragmentsByDocument(_ context.Context, documentID uuid.UUID) ([]*document.Fragment, error) {
	var out []*document.Fragment
	s.read(func(st *state) {
		for _, f := range st.fragments {
			if f.DocumentID == documentID {
				out = append(out, f)
			}
		}
	})
	return out, nil
}

// SearchBySimilarity はコサイン類似度が閾値を超えるフラグメントを科目内から降順で返す
func (s *Store) SearchBySimilarity(ctx context.Context, q document.SimilarityQuery) ([]*document.ScoredFragment, error) {
	subjectID, err := document.ParseSubjectID(q.SubjectID)
	if err != nil {
		return nil, err
	}
	if err := embedding.CheckDimension(q.Vector, s.dimension); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrServiceUnavailable, err)
	}

	var results []*document.ScoredFragment
	s.read(func(st *state) {
		for _, f := range st.fragments {
			if f.SubjectID != subjectID {
				continue
			}
			score := cosineSimilarity(q.Vector, f.Embedding)
			if score <= q.Threshold {
				continue
			}
			results = append(results, &document.ScoredFragment{
				ID:           f.ID.String(),
				DocumentID:   f.DocumentID.String(),
				SubjectID:    f.SubjectID.String(),
				SectionTitle: f.SectionTitle,
				PageNumber:   f.PageNumber,
				Content:      f.Content,
				Score:        score,
			})
		}
	})

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit := q.EffectiveLimit(); len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// === Question ===

func (s *Store) CreateQuestions(_ context.Context, questions []*question.Question) ([]*question.Question, error) {
	created := make([]*question.Question, 0, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrPersistence, err)
		}
		c := *q
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.CreatedAt = s.now()
		created = append(created, &c)
	}

	err := s.write(func(st *state) error {
		for _, q := range created {
			doc, ok := st.documents[q.DocumentID]
			if !ok {
				return fmt.Errorf("%w: document not found: %s", apperr.ErrPersistence, q.DocumentID)
			}
			if doc.SubjectID != q.SubjectID {
				return fmt.Errorf("%w: question subject does not match document subject", apperr.ErrPersistence)
			}
		}
		for _, q := range created {
			st.questions[q.ID] = q
			st.questionOrder = append(st.questionOrder, q.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) ListBySubject(_ context.Context, subjectID uuid.UUID) ([]*question.Question, error) {
	var out []*question.Question
	s.read(func(st *state) {
		for _, id := range st.questionOrder {
			if q, ok := st.questions[id]; ok && q.SubjectID == subjectID {
				out = append(out, q)
			}
		}
	})
	return out, nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (mo.Option[*question.Question], error) {
	result := mo.None[*question.Question]()
	s.read(func(st *state) {
		if q, ok := st.questions[id]; ok {
			result = mo.Some(q)
		}
	})
	return result, nil
}

func (s *Store) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	deleted := false
	err := s.write(func(st *state) error {
		if _, ok := st.questions[id]; !ok {
			return nil
		}
		delete(st.questions, id)
		deleted = true
		return nil
	})
	return deleted, err
}
