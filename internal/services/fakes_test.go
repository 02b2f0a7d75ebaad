package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/providers/payments"
	pgrepo "github.com/yoockh/erasreview/internal/repositories/postgres"
	"github.com/yoockh/erasreview/internal/utils"
)

// ==========================
// In-memory Store
// ==========================

type memStore struct {
	mu sync.Mutex

	users     map[string]*models.User
	apps      map[string]*models.Application
	exps      map[string]*models.Experience
	docs      map[string]*models.Document
	reviews   map[string]*models.Review
	payments  map[string]*models.Payment
	events    map[string]bool
	statusLog []models.StatusEvent

	failNext error // consumed by the next user Create/GetByID, application Save or document Insert

	rowLocks map[string]*sync.Mutex
	onLocked func(externalID string) // called after a payment row lock is taken

	beforeReviewCreate func(m *memStore) // runs once, with mu held, ahead of the next review insert
	beforeStatusWrite  func(m *memStore) // runs once, with mu held, ahead of the next status update
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]*models.User{},
		apps:     map[string]*models.Application{},
		exps:     map[string]*models.Experience{},
		docs:     map[string]*models.Document{},
		reviews:  map[string]*models.Review{},
		payments: map[string]*models.Payment{},
		events:   map[string]bool{},
		rowLocks: map[string]*sync.Mutex{},
	}
}

func (m *memStore) Users() pgrepo.UserRepository               { return memUsers{m} }
func (m *memStore) Applications() pgrepo.ApplicationRepository { return memApps{m} }
func (m *memStore) Reviews() pgrepo.ReviewRepository           { return memReviews{m} }
func (m *memStore) Payments() pgrepo.PaymentRepository         { return memPayments{m: m} }
func (m *memStore) Documents() pgrepo.DocumentRepository       { return memDocs{m} }

// WithinTx releases row locks taken through the tx when fn returns, like a
// commit or rollback would. Writes are not rolled back.
func (m *memStore) WithinTx(_ context.Context, fn func(tx pgrepo.Store) error) error {
	tx := &memTx{memStore: m, held: map[string]*sync.Mutex{}}
	defer tx.release()
	return fn(tx)
}

func (m *memStore) rowLock(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.rowLocks[key]
	if !ok {
		l = &sync.Mutex{}
		m.rowLocks[key] = l
	}
	return l
}

type memTx struct {
	*memStore
	held map[string]*sync.Mutex
}

func (t *memTx) Payments() pgrepo.PaymentRepository { return memPayments{m: t.memStore, tx: t} }

func (t *memTx) lock(key string) {
	if _, ok := t.held[key]; ok {
		return
	}
	l := t.rowLock(key)
	l.Lock()
	t.held[key] = l
}

func (t *memTx) release() {
	for _, l := range t.held {
		l.Unlock()
	}
}

func (m *memStore) fail() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memStore) addUser(id, email string, role models.UserRole) *models.User {
	u := &models.User{ID: id, Email: email, Role: role}
	m.users[id] = u
	return u
}

func (m *memStore) addApp(a models.Application) *models.Application {
	if a.PackageTier == "" {
		a.PackageTier = models.TierEssential
	}
	m.apps[a.ID] = &a
	return &a
}

func (m *memStore) reviewCount(appID, reviewerID string) int {
	n := 0
	for _, r := range m.reviews {
		if r.ApplicationID == appID && r.ReviewerID == reviewerID {
			n++
		}
	}
	return n
}

// ---- users

type memUsers struct{ m *memStore }

func (r memUsers) Create(_ context.Context, u *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail(); err != nil {
		return err
	}
	for _, x := range r.m.users {
		if x.Email == u.Email {
			return utils.ErrConflict
		}
	}
	cp := *u
	r.m.users[u.ID] = &cp
	return nil
}

func (r memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail(); err != nil {
		return nil, err
	}
	u, ok := r.m.users[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r memUsers) SetRole(_ context.Context, id string, role models.UserRole) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return utils.ErrNotFound
	}
	u.Role = role
	return nil
}

func (r memUsers) LockForUpdate(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.users[id]; !ok {
		return utils.ErrNotFound
	}
	return nil
}

// ---- applications

type memApps struct{ m *memStore }

func (r memApps) Create(_ context.Context, a *models.Application) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *a
	r.m.apps[a.ID] = &cp
	return nil
}

func (r memApps) GetOwned(_ context.Context, id, userID string) (*models.Application, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.apps[id]
	if !ok || a.UserID != userID {
		return nil, utils.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r memApps) GetDetailed(_ context.Context, id string) (*models.Application, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.apps[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *a
	cp.Experiences = nil
	for _, e := range r.m.exps {
		if e.ApplicationID == id {
			cp.Experiences = append(cp.Experiences, *e)
		}
	}
	sort.Slice(cp.Experiences, func(i, j int) bool { return cp.Experiences[i].Position < cp.Experiences[j].Position })
	for _, d := range r.m.docs {
		if d.ApplicationID == id {
			cp.Documents = append(cp.Documents, *d)
		}
	}
	return &cp, nil
}

func (r memApps) ListByUser(_ context.Context, userID string) ([]models.Application, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Application
	for _, a := range r.m.apps {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r memApps) List(_ context.Context, f pgrepo.ApplicationFilter) ([]models.Application, int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Application
	for _, a := range r.m.apps {
		if (f.Status == "" || a.Status == f.Status) && (f.UserID == "" || a.UserID == f.UserID) {
			out = append(out, *a)
		}
	}
	return out, int64(len(out)), nil
}

func (r memApps) FindPendingByUser(_ context.Context, userID, excludeID string) (*models.Application, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.apps {
		if a.UserID == userID && a.ID != excludeID && a.Status.IsPending() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r memApps) Save(_ context.Context, a *models.Application) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail(); err != nil {
		return err
	}
	cp := *a
	cp.Experiences, cp.Documents = nil, nil
	r.m.apps[a.ID] = &cp
	return nil
}

func (r memApps) UpdateStatus(_ context.Context, a *models.Application, from models.ApplicationStatus) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if hook := r.m.beforeStatusWrite; hook != nil {
		r.m.beforeStatusWrite = nil
		hook(r.m)
	}
	cur, ok := r.m.apps[a.ID]
	if !ok || cur.Status != from {
		return utils.ErrConflict
	}
	if a.Status.IsPending() {
		// partial unique index: one pending application per user
		for _, x := range r.m.apps {
			if x.ID != a.ID && x.UserID == cur.UserID && x.Status.IsPending() {
				return utils.ErrConflict
			}
		}
	}
	cur.Status = a.Status
	cur.SubmittedAt, cur.ReviewedAt, cur.CompletedAt = a.SubmittedAt, a.ReviewedAt, a.CompletedAt
	cur.UpdatedAt = a.UpdatedAt
	return nil
}

func (r memApps) InsertStatusEvent(_ context.Context, ev *models.StatusEvent) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.statusLog = append(r.m.statusLog, *ev)
	return nil
}

func (r memApps) Delete(_ context.Context, id string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.apps[id]; !ok {
		return utils.ErrNotFound
	}
	delete(r.m.apps, id)
	for k, e := range r.m.exps {
		if e.ApplicationID == id {
			delete(r.m.exps, k)
		}
	}
	for k, d := range r.m.docs {
		if d.ApplicationID == id {
			delete(r.m.docs, k)
		}
	}
	for k, rv := range r.m.reviews {
		if rv.ApplicationID == id {
			delete(r.m.reviews, k)
		}
	}
	return nil
}

func (r memApps) CountExperiences(_ context.Context, appID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, e := range r.m.exps {
		if e.ApplicationID == appID {
			n++
		}
	}
	return n, nil
}

func (r memApps) CountMostMeaningful(_ context.Context, appID, excludeID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, e := range r.m.exps {
		if e.ApplicationID == appID && e.MostMeaningful && e.ID != excludeID {
			n++
		}
	}
	return n, nil
}

func (r memApps) ListExperiences(_ context.Context, appID string) ([]models.Experience, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Experience
	for _, e := range r.m.exps {
		if e.ApplicationID == appID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r memApps) GetExperience(_ context.Context, appID, expID string) (*models.Experience, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.exps[expID]
	if !ok || e.ApplicationID != appID {
		return nil, utils.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r memApps) CreateExperience(_ context.Context, e *models.Experience) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *e
	r.m.exps[e.ID] = &cp
	return nil
}

func (r memApps) SaveExperience(_ context.Context, e *models.Experience) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *e
	r.m.exps[e.ID] = &cp
	return nil
}

func (r memApps) DeleteExperience(_ context.Context, appID, expID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	e, ok := r.m.exps[expID]
	if !ok || e.ApplicationID != appID {
		return utils.ErrNotFound
	}
	delete(r.m.exps, expID)
	return nil
}

// ---- reviews

type memReviews struct{ m *memStore }

func (r memReviews) GetByAppAndReviewer(_ context.Context, appID, reviewerID string) (*models.Review, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, rv := range r.m.reviews {
		if rv.ApplicationID == appID && rv.ReviewerID == reviewerID {
			cp := *rv
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r memReviews) Create(_ context.Context, rv *models.Review) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if hook := r.m.beforeReviewCreate; hook != nil {
		r.m.beforeReviewCreate = nil
		hook(r.m)
	}
	if r.m.reviewCount(rv.ApplicationID, rv.ReviewerID) > 0 {
		return utils.ErrConflict
	}
	cp := *rv
	r.m.reviews[rv.ID] = &cp
	return nil
}

func (r memReviews) Save(_ context.Context, rv *models.Review) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *rv
	cp.UpdatedAt = time.Now()
	r.m.reviews[rv.ID] = &cp
	return nil
}

func (r memReviews) LatestForApplication(_ context.Context, appID string) (*models.Review, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var best *models.Review
	for _, rv := range r.m.reviews {
		if rv.ApplicationID == appID && (best == nil || rv.UpdatedAt.After(best.UpdatedAt)) {
			best = rv
		}
	}
	if best == nil {
		return nil, utils.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r memReviews) ListForApplication(_ context.Context, appID string) ([]models.Review, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Review
	for _, rv := range r.m.reviews {
		if rv.ApplicationID == appID {
			out = append(out, *rv)
		}
	}
	return out, nil
}

// ---- payments

type memPayments struct {
	m  *memStore
	tx *memTx // nil outside WithinTx
}

func (r memPayments) Create(_ context.Context, p *models.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, x := range r.m.payments {
		if x.ExternalID == p.ExternalID {
			return utils.ErrConflict
		}
	}
	cp := *p
	r.m.payments[p.ID] = &cp
	return nil
}

func (r memPayments) GetByExternalID(_ context.Context, externalID string) (*models.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.payments {
		if p.ExternalID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r memPayments) LockByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	if r.tx != nil {
		r.tx.lock("payment:" + externalID)
	}
	if r.m.onLocked != nil {
		r.m.onLocked(externalID)
	}
	return r.GetByExternalID(ctx, externalID)
}

func (r memPayments) Save(_ context.Context, p *models.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *p
	r.m.payments[p.ID] = &cp
	return nil
}

func (r memPayments) FindUnlinkedSucceeded(_ context.Context, userID string) (*models.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.payments {
		if p.UserID == userID && p.Status == models.PaymentSucceeded && p.ApplicationID == nil {
			cp := *p
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r memPayments) ListByUser(_ context.Context, userID string) ([]models.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Payment
	for _, p := range r.m.payments {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r memPayments) RecordEvent(_ context.Context, eventID, _ string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.events[eventID] {
		return false, nil
	}
	r.m.events[eventID] = true
	return true, nil
}

// ---- documents

type memDocs struct{ m *memStore }

func (r memDocs) Insert(_ context.Context, d *models.Document) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.fail(); err != nil {
		return err
	}
	cp := *d
	r.m.docs[d.ID] = &cp
	return nil
}

func (r memDocs) ListByApplication(_ context.Context, appID string) ([]models.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []models.Document
	for _, d := range r.m.docs {
		if d.ApplicationID == appID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r memDocs) Get(_ context.Context, appID, docID string) (*models.Document, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, ok := r.m.docs[docID]
	if !ok || d.ApplicationID != appID {
		return nil, utils.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r memDocs) Delete(_ context.Context, appID, docID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, ok := r.m.docs[docID]
	if !ok || d.ApplicationID != appID {
		return utils.ErrNotFound
	}
	delete(r.m.docs, docID)
	return nil
}

// ==========================
// Other collaborators
// ==========================

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
}

func (n *recordingNotifier) kinds() []models.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []models.NotificationKind
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) GetJSON(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) SetJSON(_ context.Context, key string, val any, _ time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *memCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) DelPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

type fakeProcessor struct {
	sessions map[string]*payments.CheckoutSession
	event    *payments.Event
	parseErr error
	created  []payments.CheckoutInput
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, in payments.CheckoutInput) (*payments.CheckoutSession, error) {
	f.created = append(f.created, in)
	return &payments.CheckoutSession{ID: "cs_new", URL: "https://checkout.example/cs_new", UserID: in.UserID, Tier: in.Tier}, nil
}

func (f *fakeProcessor) GetCheckoutSession(_ context.Context, id string) (*payments.CheckoutSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, errors.New("no such session")
	}
	return s, nil
}

func (f *fakeProcessor) ParseWebhook([]byte, string) (*payments.Event, error) {
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	return f.event, nil
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string]string
	deleted []string
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string]string{}} }

func (b *memBlobs) Upload(_ context.Context, objectName, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	path := "mem://" + objectName
	b.objects[path] = string(data)
	return path, nil
}

func (b *memBlobs) Delete(_ context.Context, storedPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, storedPath)
	b.deleted = append(b.deleted, storedPath)
	return nil
}

type stubLLM struct {
	reply string
	err   error
	calls int
}

func (l *stubLLM) Generate(context.Context, string) (string, error) {
	l.calls++
	return l.reply, l.err
}

func (l *stubLLM) Close() error { return nil }

type memBlogRepo struct {
	mu    sync.Mutex
	posts map[string]*models.BlogPost
}

func newMemBlogRepo() *memBlogRepo { return &memBlogRepo{posts: map[string]*models.BlogPost{}} }

func (r *memBlogRepo) Insert(_ context.Context, p *models.BlogPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[p.Slug]; ok {
		return utils.ErrConflict
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	r.posts[p.Slug] = &cp
	return nil
}

func (r *memBlogRepo) GetBySlug(_ context.Context, slug string) (*models.BlogPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[slug]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memBlogRepo) ExistsBySlug(_ context.Context, slug string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.posts[slug]
	return ok, nil
}

func (r *memBlogRepo) ListPublished(_ context.Context, _, _ int64) ([]models.BlogPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.BlogPost
	for _, p := range r.posts {
		if p.Status == models.BlogStatusPublished {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memBlogRepo) ListAll(_ context.Context, _, _ int64) ([]models.BlogPost, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.BlogPost
	for _, p := range r.posts {
		out = append(out, *p)
	}
	return out, nil
}

func (r *memBlogRepo) Update(_ context.Context, slug string, p *models.BlogPost) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[slug]; !ok {
		return utils.ErrNotFound
	}
	cp := *p
	r.posts[slug] = &cp
	return nil
}

func (r *memBlogRepo) Publish(_ context.Context, slug string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[slug]
	if !ok {
		return utils.ErrNotFound
	}
	p.Status = models.BlogStatusPublished
	p.PublishedAt = &at
	return nil
}

func (r *memBlogRepo) Delete(_ context.Context, slug string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[slug]; !ok {
		return utils.ErrNotFound
	}
	delete(r.posts, slug)
	return nil
}

type stubIndexer struct{ err error }

func (s stubIndexer) SubmitURL(context.Context, string) error { return s.err }

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context, string) error { return s.err }

type stubTokens struct{}

func (stubTokens) Generate(userID, _ string) (string, time.Time, error) {
	return "token-" + userID, time.Now().Add(time.Hour), nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func paidFor(m *memStore, userID string, tier models.PackageTier) *models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &models.Payment{
		ID:          fmt.Sprintf("pay-%d", len(m.payments)+1),
		UserID:      userID,
		PackageTier: tier,
		Status:      models.PaymentSucceeded,
		ExternalID:  fmt.Sprintf("cs_paid_%d", len(m.payments)+1),
	}
	m.payments[p.ID] = p
	return p
}
