package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/cloo-solutions/aura/internal/domain"
	"github.com/cloo-solutions/aura/internal/pagination"
	"github.com/stretchr/testify/mock"
)

var errTransient = errors.New("transient failure")

// MockUUIDGenerator hands out the given ids in order, then "default-uuid".
type MockUUIDGenerator struct {
	mu        sync.Mutex
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.callCount < len(m.uuids) {
		id := m.uuids[m.callCount]
		m.callCount++
		return id
	}
	return "default-uuid"
}

// fakeEmbedder maps known texts to fixed vectors.
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
	mu      sync.Mutex
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEmbedder) ModelID() string { return "test-model" }
func (f *fakeEmbedder) Dimension() int  { return 3 }

type storedVector struct {
	vector []float32
	meta   domain.VectorMetadata
}

// fakeVectorIndex is a brute-force cosine index.
type fakeVectorIndex struct {
	mu        sync.Mutex
	vectors   map[string]storedVector
	upserts   int
	failQuery int
	failWrite int
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{vectors: map[string]storedVector{}}
}

func (f *fakeVectorIndex) Upsert(ctx context.Context, chunkID string, vector []float32, meta domain.VectorMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite > 0 {
		f.failWrite--
		return errTransient
	}
	f.upserts++
	f.vectors[chunkID] = storedVector{vector: vector, meta: meta}
	return nil
}

func (f *fakeVectorIndex) Query(ctx context.Context, vector []float32, k int, filter domain.VectorFilter) ([]domain.VectorMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failQuery > 0 {
		f.failQuery--
		return nil, errTransient
	}
	var out []domain.VectorMatch
	for id, sv := range f.vectors {
		if !filter.Matches(sv.meta) {
			continue
		}
		out = append(out, domain.VectorMatch{ChunkID: id, Score: cosine(vector, sv.vector), Metadata: sv.meta})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeVectorIndex) ExistingIDs(ctx context.Context, chunkIDs []string, modelID string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]bool{}
	for _, id := range chunkIDs {
		if sv, ok := f.vectors[id]; ok && sv.meta.ModelID == modelID {
			out[id] = true
		}
	}
	return out, nil
}

func (f *fakeVectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, sv := range f.vectors {
		if sv.meta.DocumentID == documentID {
			delete(f.vectors, id)
		}
	}
	return nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

type fakeChunkRepo struct {
	mu     sync.Mutex
	chunks map[string]domain.Chunk
}

func newFakeChunkRepo() *fakeChunkRepo {
	return &fakeChunkRepo{chunks: map[string]domain.Chunk{}}
}

func (f *fakeChunkRepo) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range chunks {
		f.chunks[c.ID] = c
	}
	return nil
}

func (f *fakeChunkRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Chunk
	for _, id := range ids {
		if c, ok := f.chunks[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeChunkRepo) DeleteByDocument(ctx context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, c := range f.chunks {
		if c.DocumentID == documentID {
			delete(f.chunks, id)
		}
	}
	return nil
}

// fakeConversationStore is a versioned map. conflicts makes the next n saves
// fail as if another writer got there first.
type fakeConversationStore struct {
	mu        sync.Mutex
	sessions  map[string]*domain.ConversationSession
	conflicts int
	saves     int
}

func newFakeConversationStore() *fakeConversationStore {
	return &fakeConversationStore{sessions: map[string]*domain.ConversationSession{}}
}

func (f *fakeConversationStore) Get(ctx context.Context, sessionID string) (*domain.ConversationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (f *fakeConversationStore) Save(ctx context.Context, session *domain.ConversationSession, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts > 0 {
		f.conflicts--
		return domain.ErrVersionConflict
	}
	var current int64
	if s, ok := f.sessions[session.SessionID]; ok {
		current = s.Version
	}
	if current != expectedVersion {
		return domain.ErrVersionConflict
	}
	stored := session.Clone()
	stored.Version = expectedVersion + 1
	f.sessions[session.SessionID] = stored
	f.saves++
	return nil
}

type fakeMasteryRepo struct {
	mu        sync.Mutex
	records   map[string]*domain.MasteryRecord
	conflicts int
}

func newFakeMasteryRepo() *fakeMasteryRepo {
	return &fakeMasteryRepo{records: map[string]*domain.MasteryRecord{}}
}

func (f *fakeMasteryRepo) key(userID, topicID string) string {
	return userID + "/" + topicID
}

func (f *fakeMasteryRepo) Get(ctx context.Context, userID, topicID string) (*domain.MasteryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[f.key(userID, topicID)]
	if !ok {
		return nil, domain.ErrMasteryNotFound
	}
	return rec.Clone(), nil
}

func (f *fakeMasteryRepo) Save(ctx context.Context, rec *domain.MasteryRecord, expectedVersion int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflicts > 0 {
		f.conflicts--
		return domain.ErrVersionConflict
	}
	k := f.key(rec.UserID, rec.TopicID)
	var current int64
	if existing, ok := f.records[k]; ok {
		current = existing.Version
	}
	if current != expectedVersion {
		return domain.ErrVersionConflict
	}
	stored := rec.Clone()
	stored.Version = expectedVersion + 1
	f.records[k] = stored
	return nil
}

func (f *fakeMasteryRepo) ListByUserWithCursor(ctx context.Context, userID string, cursor *pagination.Cursor, limit int) (*MasteryPageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*domain.MasteryRecord
	for _, rec := range f.records {
		if rec.UserID == userID {
			items = append(items, rec.Clone())
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].TopicID < items[j].TopicID })
	result := &MasteryPageResult{Items: items}
	if len(items) > limit {
		result.Items = items[:limit]
		result.HasMore = true
	}
	return result, nil
}

func (f *fakeMasteryRepo) ListDue(ctx context.Context, userID string, asOf time.Time) ([]*domain.MasteryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.MasteryRecord
	for _, rec := range f.records {
		if rec.UserID == userID && !rec.NextReviewDate.After(asOf) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// recordingNotifier keeps every event and the repository state seen at enqueue time.
type recordingNotifier struct {
	mu      sync.Mutex
	repo    *fakeMasteryRepo
	events  []domain.QuizResultEvent
	visible []bool
}

func (n *recordingNotifier) Enqueue(event domain.QuizResultEvent) bool {
	committed := false
	if n.repo != nil {
		_, err := n.repo.Get(context.Background(), event.UserID, event.TopicID)
		committed = err == nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	n.visible = append(n.visible, committed)
	return true
}

type fakeDocumentRepo struct {
	mu   sync.Mutex
	docs map[string]*domain.Document
	err  error
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: map[string]*domain.Document{}}
}

func (f *fakeDocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cp := *doc
	f.docs[doc.ID] = &cp
	return nil
}

func (f *fakeDocumentRepo) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocumentRepo) FindLatestByOwnerAndFilename(ctx context.Context, ownerID, filename string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.Document
	for _, d := range f.docs {
		if d.OwnerID != ownerID || d.Filename != filename {
			continue
		}
		if latest == nil || d.CreatedAt.After(latest.CreatedAt) {
			latest = d
		}
	}
	if latest == nil {
		return nil, domain.ErrDocumentNotFound
	}
	cp := *latest
	return &cp, nil
}

type fakeIngestJobRepo struct {
	mu   sync.Mutex
	jobs []*domain.IngestJob
}

func (f *fakeIngestJobRepo) Create(ctx context.Context, job *domain.IngestJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs = append(f.jobs, &cp)
	return nil
}

func (f *fakeIngestJobRepo) GetLatestByDocument(ctx context.Context, documentID string) (*domain.IngestJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.jobs) - 1; i >= 0; i-- {
		if f.jobs[i].DocumentID == documentID {
			cp := *f.jobs[i]
			return &cp, nil
		}
	}
	return nil, domain.ErrIngestJobNotFound
}

type fakeQuizRepo struct {
	mu      sync.Mutex
	quizzes map[string]*domain.Quiz
}

func newFakeQuizRepo() *fakeQuizRepo {
	return &fakeQuizRepo{quizzes: map[string]*domain.Quiz{}}
}

func (f *fakeQuizRepo) Create(ctx context.Context, quiz *domain.Quiz) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quizzes[quiz.ID] = quiz
	return nil
}

func (f *fakeQuizRepo) GetByID(ctx context.Context, id string) (*domain.Quiz, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quizzes[id]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	return q, nil
}

// MockObjectStorage is a mock implementation of ObjectStorage
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) PutObject(ctx context.Context, key string, data []byte, contentType string) error {
	args := m.Called(ctx, key, data, contentType)
	return args.Error(0)
}

func (m *MockObjectStorage) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockObjectStorage) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// MockLanguageModel is a mock implementation of LanguageModel
type MockLanguageModel struct {
	mock.Mock
	name string
}

func (m *MockLanguageModel) Name() string {
	return m.name
}

func (m *MockLanguageModel) Generate(ctx context.Context, payload domain.ContextPayload, question string) (string, error) {
	args := m.Called(ctx, payload, question)
	return args.String(0), args.Error(1)
}

// testTxRunner hands fn the repositories it was built with and records the call.
type testTxRunner struct {
	repos  *testTxRepos
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}

type testTxRepos struct {
	documents  DocumentRepository
	ingestJobs IngestJobRepository
}

func (t *testTxRepos) Documents() DocumentRepository   { return t.documents }
func (t *testTxRepos) IngestJobs() IngestJobRepository { return t.ingestJobs }
