package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/snowballr/snowballr-api/internal/api/validation"
	"github.com/snowballr/snowballr-api/internal/auth"
	"github.com/snowballr/snowballr-api/internal/author"
	"github.com/snowballr/snowballr-api/internal/mail"
	"github.com/snowballr/snowballr-api/internal/paper"
	"github.com/snowballr/snowballr-api/internal/project"
	"github.com/snowballr/snowballr-api/internal/source"
	"github.com/snowballr/snowballr-api/internal/user"
)

const testSiteURL = "https://snowballr.example.org"

// --- In-memory users ---

type memUsers struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*user.User
}

func newMemUsers() *memUsers {
	return &memUsers{rows: make(map[int64]*user.User)}
}

func (m *memUsers) Create(_ context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range m.rows {
		if existing.Email == u.Email {
			return user.ErrDuplicateEmail
		}
	}
	if u.Status == "" {
		u.Status = user.StatusUnregistered
	}
	m.nextID++
	u.ID = m.nextID
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	m.rows[u.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id int64) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.rows[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.rows {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *memUsers) List(_ context.Context) ([]user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]user.User, 0, len(m.rows))
	for _, u := range m.rows {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) Update(_ context.Context, id int64, f user.UpdateFields) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.rows[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	if f.Email != nil {
		u.Email = strings.ToLower(*f.Email)
	}
	if f.PasswordHash != nil {
		u.PasswordHash = *f.PasswordHash
	}
	if f.FirstName != nil {
		u.FirstName = *f.FirstName
	}
	if f.LastName != nil {
		u.LastName = *f.LastName
	}
	if f.IsAdmin != nil {
		u.IsAdmin = *f.IsAdmin
	}
	if f.Status != nil {
		u.Status = *f.Status
	}
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

// --- In-memory tokens ---

type memTokens struct {
	mu   sync.Mutex
	rows map[string]auth.TokenRecord
}

func newMemTokens() *memTokens {
	return &memTokens{rows: make(map[string]auth.TokenRecord)}
}

func (m *memTokens) Create(_ context.Context, rec *auth.TokenRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.CreatedAt = time.Now().UTC()
	m.rows[rec.Token] = *rec
	return nil
}

func (m *memTokens) Exists(_ context.Context, token string, kind auth.Kind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[token]
	return ok && rec.Kind == kind, nil
}

func (m *memTokens) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[token]; !ok {
		return auth.ErrTokenNotFound
	}
	delete(m.rows, token)
	return nil
}

func (m *memTokens) DeleteByUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, rec := range m.rows {
		if rec.UserID == userID {
			delete(m.rows, k)
		}
	}
	return nil
}

func (m *memTokens) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for tok, rec := range m.rows {
		if rec.CreatedAt.Before(cutoff) {
			delete(m.rows, tok)
			n++
		}
	}
	return n, nil
}

func (m *memTokens) countKind(kind auth.Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.rows {
		if rec.Kind == kind {
			n++
		}
	}
	return n
}

// --- In-memory projects ---

type memProjects struct {
	mu      sync.Mutex
	users   *memUsers
	nextID  int64
	rows    map[int64]*project.Project
	members map[[2]int64]project.Member
}

func newMemProjects(users *memUsers) *memProjects {
	return &memProjects{
		users:   users,
		rows:    make(map[int64]*project.Project),
		members: make(map[[2]int64]project.Member),
	}
}

func (m *memProjects) Create(_ context.Context, p *project.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now().UTC()
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memProjects) GetByID(_ context.Context, id int64) (*project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, project.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProjects) OwnsAnyProject(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mem := range m.members {
		if mem.UserID == userID && mem.IsOwner {
			return true, nil
		}
	}
	return false, nil
}

func (m *memProjects) IsOwner(_ context.Context, userID, projectID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, ok := m.members[[2]int64{projectID, userID}]
	return ok && mem.IsOwner, nil
}

func (m *memProjects) IsMember(_ context.Context, userID, projectID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.members[[2]int64{projectID, userID}]
	return ok, nil
}

func (m *memProjects) ListMembers(_ context.Context, projectID int64) ([]project.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []project.Member{}
	for _, mem := range m.members {
		if mem.ProjectID == projectID {
			out = append(out, mem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *memProjects) AddMember(ctx context.Context, mem *project.Member) error {
	if _, err := m.users.GetByID(ctx, mem.UserID); err != nil {
		return project.ErrUnknownReference
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[mem.ProjectID]; !ok {
		return project.ErrUnknownReference
	}
	mem.CreatedAt = time.Now().UTC()
	m.members[[2]int64{mem.ProjectID, mem.UserID}] = *mem
	return nil
}

func (m *memProjects) RemoveMember(_ context.Context, projectID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{projectID, userID}
	if _, ok := m.members[key]; !ok {
		return project.ErrMemberNotFound
	}
	delete(m.members, key)
	return nil
}

// --- In-memory papers ---

type memPapers struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]*paper.Paper
	projects  map[int64][]int64
	citations map[int64][]int64 // citing -> cited
	byAuthor  map[int64][]int64
	updateErr error
}

func newMemPapers() *memPapers {
	return &memPapers{
		rows:      make(map[int64]*paper.Paper),
		projects:  make(map[int64][]int64),
		citations: make(map[int64][]int64),
		byAuthor:  make(map[int64][]int64),
	}
}

func (m *memPapers) Create(_ context.Context, p *paper.Paper) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.rows[p.ID] = &cp
	return nil
}

func (m *memPapers) GetByID(_ context.Context, id int64) (*paper.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, paper.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPapers) collect(ids []int64) []paper.Paper {
	out := []paper.Paper{}
	for _, id := range ids {
		if p, ok := m.rows[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

func (m *memPapers) List(_ context.Context) ([]paper.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return m.collect(ids), nil
}

func (m *memPapers) ListByProject(_ context.Context, projectID int64) ([]paper.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collect(m.projects[projectID]), nil
}

func (m *memPapers) ListByAuthor(_ context.Context, authorID int64) ([]paper.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collect(m.byAuthor[authorID]), nil
}

func (m *memPapers) Update(_ context.Context, id int64, f paper.UpdateFields) (*paper.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	p, ok := m.rows[id]
	if !ok {
		return nil, paper.ErrNotFound
	}
	if f.DOI != nil {
		p.DOI = *f.DOI
	}
	if f.Title != nil {
		p.Title = *f.Title
	}
	if f.Abstract != nil {
		p.Abstract = *f.Abstract
	}
	if f.Year != nil {
		p.Year = f.Year
	}
	if f.Publisher != nil {
		p.Publisher = *f.Publisher
	}
	if f.PublicationType != nil {
		p.PublicationType = *f.PublicationType
	}
	if f.OpenAccess != nil {
		p.OpenAccess = *f.OpenAccess
	}
	cp := *p
	return &cp, nil
}

func (m *memPapers) AddToProject(_ context.Context, projectID, paperID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[paperID]; !ok {
		return paper.ErrUnknownReference
	}
	m.projects[projectID] = append(m.projects[projectID], paperID)
	return nil
}

func (m *memPapers) AddCitation(_ context.Context, citingID, citedID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[citingID]; !ok {
		return paper.ErrUnknownReference
	}
	if _, ok := m.rows[citedID]; !ok {
		return paper.ErrUnknownReference
	}
	m.citations[citingID] = append(m.citations[citingID], citedID)
	return nil
}

func (m *memPapers) Citations(_ context.Context, id int64) ([]paper.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var citing []int64
	for from, cited := range m.citations {
		for _, c := range cited {
			if c == id {
				citing = append(citing, from)
			}
		}
	}
	sort.Slice(citing, func(i, j int) bool { return citing[i] < citing[j] })
	return m.collect(citing), nil
}

func (m *memPapers) References(_ context.Context, id int64) ([]paper.Paper, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.collect(m.citations[id]), nil
}

// --- In-memory authors ---

type memAuthors struct {
	mu      sync.Mutex
	papers  *memPapers
	nextID  int64
	rows    map[int64]*author.Author
	byPaper map[int64][]int64
}

func newMemAuthors(papers *memPapers) *memAuthors {
	return &memAuthors{
		papers:  papers,
		rows:    make(map[int64]*author.Author),
		byPaper: make(map[int64][]int64),
	}
}

func (m *memAuthors) Create(_ context.Context, a *author.Author) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.rows[a.ID] = &cp
	return nil
}

func (m *memAuthors) GetByID(_ context.Context, id int64) (*author.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, author.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAuthors) List(_ context.Context) ([]author.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]author.Author, 0, len(m.rows))
	for _, a := range m.rows {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memAuthors) Update(_ context.Context, id int64, f author.UpdateFields) (*author.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[id]
	if !ok {
		return nil, author.ErrNotFound
	}
	if f.FirstName != nil {
		a.FirstName = *f.FirstName
	}
	if f.LastName != nil {
		a.LastName = *f.LastName
	}
	if f.ORCID != nil {
		a.ORCID = *f.ORCID
	}
	cp := *a
	return &cp, nil
}

func (m *memAuthors) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return author.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *memAuthors) ListByPaper(_ context.Context, paperID int64) ([]author.Author, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []author.Author{}
	for _, id := range m.byPaper[paperID] {
		if a, ok := m.rows[id]; ok {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAuthors) LinkPaper(ctx context.Context, paperID, authorID int64, _ int) error {
	if _, err := m.papers.GetByID(ctx, paperID); err != nil {
		return author.ErrUnknownReference
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[authorID]; !ok {
		return author.ErrUnknownReference
	}
	m.byPaper[paperID] = append(m.byPaper[paperID], authorID)

	m.papers.mu.Lock()
	m.papers.byAuthor[authorID] = append(m.papers.byAuthor[authorID], paperID)
	m.papers.mu.Unlock()
	return nil
}

// --- Mailer ---

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.sent...)
}

var errBoom = errors.New("boom")

// --- Fixture ---

type fixture struct {
	users         *memUsers
	tokens        *memTokens
	projects      *memProjects
	papers        *memPapers
	authors       *memAuthors
	paperSources  *source.MemoryStore
	authorSources *source.MemoryStore
	mailer        *recordingMailer
	auth          *auth.Service
	v             *validation.Validator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	issuer, err := auth.NewIssuer("handler-test-secret", time.Hour)
	require.NoError(t, err)

	users := newMemUsers()
	tokens := newMemTokens()
	projects := newMemProjects(users)
	papers := newMemPapers()

	return &fixture{
		users:         users,
		tokens:        tokens,
		projects:      projects,
		papers:        papers,
		authors:       newMemAuthors(papers),
		paperSources:  source.NewMemoryStore(),
		authorSources: source.NewMemoryStore(),
		mailer:        &recordingMailer{},
		auth:          auth.NewService(users, tokens, issuer, bcrypt.MinCost),
		v:             validation.NewValidator(auth.NewAuthorizer(projects)),
	}
}

// addUser creates a user with the given status. Registered and active users
// get the password "password123".
func (f *fixture) addUser(t *testing.T, email, status string, admin bool) *user.User {
	t.Helper()
	u := &user.User{Email: email, Status: status, IsAdmin: admin}
	if status == user.StatusRegistered || status == user.StatusActive {
		hash, err := f.auth.HashPassword("password123")
		require.NoError(t, err)
		u.PasswordHash = hash
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) addProject(t *testing.T, name string) *project.Project {
	t.Helper()
	p := &project.Project{Name: name}
	require.NoError(t, f.projects.Create(context.Background(), p))
	return p
}

func (f *fixture) addMember(t *testing.T, projectID, userID int64, owner bool) {
	t.Helper()
	require.NoError(t, f.projects.AddMember(context.Background(), &project.Member{
		UserID: userID, ProjectID: projectID, IsOwner: owner,
	}))
}

// --- Request helpers ---

func makeChiRequest(method, path string, body []byte, params map[string]string) (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()

	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	return req, w
}

func as(req *http.Request, u *user.User) *http.Request {
	return req.WithContext(auth.ContextWithPrincipal(req.Context(), auth.PrincipalFromUser(u)))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func parseBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &body)
	require.NoError(t, err, "failed to parse response body")
	return body
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	msg, _ := parseBody(t, w)["error"].(string)
	return msg
}
