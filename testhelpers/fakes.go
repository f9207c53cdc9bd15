package testhelpers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"stitchmart/internal/models"
	"stitchmart/internal/repositories"
	"stitchmart/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// clock hands out strictly increasing timestamps so ordering by creation time is deterministic.
type clock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := time.Now().UTC()
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

// Faults lets a test make a named store method fail.
type Faults struct {
	mu   sync.Mutex
	errs map[string]error
}

func (f *Faults) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errs == nil {
		f.errs = map[string]error{}
	}
	f.errs[method] = err
}

func (f *Faults) Clear(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.errs, method)
}

func (f *Faults) err(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[method]
}

// DesignStore is an in-memory repositories.DesignRepository.
type DesignStore struct {
	Faults
	mu      sync.RWMutex
	clock   clock
	designs map[uuid.UUID]*models.Design
}

func NewDesignStore() *DesignStore {
	return &DesignStore{designs: map[uuid.UUID]*models.Design{}}
}

var _ repositories.DesignRepository = (*DesignStore)(nil)

func cloneDesign(d *models.Design) *models.Design {
	out := *d
	out.Images = append([]models.Image{}, d.Images...)
	out.DesignFiles = make(map[models.Format]string, len(d.DesignFiles))
	for k, v := range d.DesignFiles {
		out.DesignFiles[k] = v
	}
	out.CategoryIDs = append([]uuid.UUID{}, d.CategoryIDs...)
	out.Formats = append([]models.Format{}, d.Formats...)
	out.Tags = append([]string{}, d.Tags...)
	out.Categories = nil
	return &out
}

func (s *DesignStore) Create(_ context.Context, d *models.Design) error {
	if err := s.err("Create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.designs[d.ID]; ok {
		return repositories.ErrConflict
	}
	now := s.clock.now()
	d.CreatedAt, d.UpdatedAt = now, now
	s.designs[d.ID] = cloneDesign(d)
	return nil
}

// Put stores d as is, keeping any timestamps the test set.
func (s *DesignStore) Put(d *models.Design) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.clock.now()
		d.UpdatedAt = d.CreatedAt
	}
	s.designs[d.ID] = cloneDesign(d)
}

// Len counts every stored design regardless of asset state.
func (s *DesignStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.designs)
}

func (s *DesignStore) GetByID(_ context.Context, id uuid.UUID) (*models.Design, error) {
	if err := s.err("GetByID"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.designs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneDesign(d), nil
}

func (s *DesignStore) matching(filter models.DesignFilter) []*models.Design {
	var out []*models.Design
	for _, d := range s.designs {
		if filter.Matches(d) {
			out = append(out, cloneDesign(d))
		}
	}
	// Map iteration is random; start from a stable order before the requested sort.
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

func (s *DesignStore) Find(_ context.Context, filter models.DesignFilter) ([]*models.Design, error) {
	if err := s.err("Find"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.matching(filter)
	filter.SortDesigns(out)
	if filter.Skip >= len(out) {
		return []*models.Design{}, nil
	}
	out = out[filter.Skip:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *DesignStore) Count(_ context.Context, filter models.DesignFilter) (int, error) {
	if err := s.err("Count"); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matching(filter)), nil
}

func (s *DesignStore) Update(_ context.Context, d *models.Design) error {
	if err := s.err("Update"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.designs[d.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	next := cloneDesign(d)
	next.Downloads, next.Sales, next.Rating = stored.Downloads, stored.Sales, stored.Rating
	next.AssetState, next.CreatedAt = stored.AssetState, stored.CreatedAt
	next.UpdatedAt = s.clock.now()
	d.UpdatedAt = next.UpdatedAt
	s.designs[d.ID] = next
	return nil
}

func (s *DesignStore) SetAssets(_ context.Context, id uuid.UUID, images []models.Image, files map[models.Format]string, state models.AssetState) error {
	if err := s.err("SetAssets"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.designs[id]
	if !ok {
		return repositories.ErrNotFound
	}
	tmp := cloneDesign(&models.Design{Images: images, DesignFiles: files})
	d.Images, d.DesignFiles, d.AssetState = tmp.Images, tmp.DesignFiles, state
	d.UpdatedAt = s.clock.now()
	return nil
}

func (s *DesignStore) SetFlag(_ context.Context, id uuid.UUID, flag string, value bool) (*models.Design, error) {
	if err := s.err("SetFlag"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.designs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	switch flag {
	case "featured":
		d.Featured = value
	case "popular":
		d.Popular = value
	default:
		return nil, fmt.Errorf("unknown design flag %q", flag)
	}
	d.UpdatedAt = s.clock.now()
	return cloneDesign(d), nil
}

func (s *DesignStore) Delete(_ context.Context, id uuid.UUID) error {
	if err := s.err("Delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.designs[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.designs, id)
	return nil
}

func (s *DesignStore) IncrementSales(_ context.Context, id uuid.UUID) error {
	if err := s.err("IncrementSales"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.designs[id]
	if !ok {
		return repositories.ErrNotFound
	}
	d.Sales++
	return nil
}

func (s *DesignStore) Summaries(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.DesignSummary, error) {
	if err := s.err("Summaries"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[uuid.UUID]models.DesignSummary{}
	for _, id := range ids {
		if d, ok := s.designs[id]; ok {
			out[id] = cloneDesign(d).Summary()
		}
	}
	return out, nil
}

func (s *DesignStore) ListPendingBefore(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	if err := s.err("ListPendingBefore"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []uuid.UUID
	for id, d := range s.designs {
		if d.AssetState == models.AssetStatePending && d.CreatedAt.Before(cutoff) {
			out = append(out, id)
		}
	}
	return out, nil
}

// CategoryStore is an in-memory repositories.CategoryRepository with a unique slug index.
type CategoryStore struct {
	Faults
	mu         sync.RWMutex
	clock      clock
	categories map[uuid.UUID]*models.Category
}

func NewCategoryStore() *CategoryStore {
	return &CategoryStore{categories: map[uuid.UUID]*models.Category{}}
}

var _ repositories.CategoryRepository = (*CategoryStore)(nil)

func cloneCategory(c *models.Category) *models.Category {
	out := *c
	out.SubcategoryIDs = append([]uuid.UUID{}, c.SubcategoryIDs...)
	out.Subcategories = nil
	if c.ParentID != nil {
		p := *c.ParentID
		out.ParentID = &p
	}
	return &out
}

func (s *CategoryStore) slugTaken(slug string, except uuid.UUID) bool {
	for id, c := range s.categories {
		if id != except && c.Slug == slug {
			return true
		}
	}
	return false
}

func (s *CategoryStore) Create(_ context.Context, c *models.Category) error {
	if err := s.err("Create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slugTaken(c.Slug, c.ID) {
		return fmt.Errorf("%w: categories_slug_key", repositories.ErrConflict)
	}
	now := s.clock.now()
	c.CreatedAt, c.UpdatedAt = now, now
	s.categories[c.ID] = cloneCategory(c)
	return nil
}

func (s *CategoryStore) GetByID(_ context.Context, id uuid.UUID) (*models.Category, error) {
	if err := s.err("GetByID"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneCategory(c), nil
}

func (s *CategoryStore) Update(_ context.Context, c *models.Category) error {
	if err := s.err("Update"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.categories[c.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	if s.slugTaken(c.Slug, c.ID) {
		return fmt.Errorf("%w: categories_slug_key", repositories.ErrConflict)
	}
	stored.Name, stored.Description, stored.Slug, stored.Image = c.Name, c.Description, c.Slug, c.Image
	stored.ParentID = cloneCategory(c).ParentID
	stored.UpdatedAt = s.clock.now()
	c.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *CategoryStore) ListRootCategories(_ context.Context) ([]*models.Category, error) {
	if err := s.err("ListRootCategories"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*models.Category{}
	for _, c := range s.categories {
		if c.ParentID == nil {
			out = append(out, cloneCategory(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *CategoryStore) Summaries(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.CategorySummary, error) {
	if err := s.err("Summaries"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[uuid.UUID]models.CategorySummary{}
	for _, id := range ids {
		if c, ok := s.categories[id]; ok {
			out[id] = c.Summary()
		}
	}
	return out, nil
}

func (s *CategoryStore) SetParent(_ context.Context, childID uuid.UUID, parentID *uuid.UUID) error {
	if err := s.err("SetParent"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[childID]
	if !ok {
		return repositories.ErrNotFound
	}
	c.ParentID = cloneCategory(&models.Category{ParentID: parentID}).ParentID
	return nil
}

func (s *CategoryStore) AddSubcategory(_ context.Context, parentID, childID uuid.UUID) error {
	if err := s.err("AddSubcategory"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.categories[parentID]
	if !ok {
		return repositories.ErrNotFound
	}
	for _, id := range p.SubcategoryIDs {
		if id == childID {
			return nil
		}
	}
	p.SubcategoryIDs = append(p.SubcategoryIDs, childID)
	return nil
}

// UserStore is an in-memory repositories.UserRepository.
type UserStore struct {
	Faults
	mu    sync.RWMutex
	clock clock
	users map[uuid.UUID]*models.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: map[uuid.UUID]*models.User{}}
}

var _ repositories.UserRepository = (*UserStore)(nil)

func cloneUser(u *models.User) *models.User {
	out := *u
	out.Favorites = append([]uuid.UUID{}, u.Favorites...)
	return &out
}

func (s *UserStore) taken(username, email string, except uuid.UUID) bool {
	for id, u := range s.users {
		if id != except && (u.Username == username || u.Email == email) {
			return true
		}
	}
	return false
}

func (s *UserStore) Create(_ context.Context, u *models.User) error {
	if err := s.err("Create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.taken(u.Username, u.Email, u.ID) {
		return repositories.ErrConflict
	}
	now := s.clock.now()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if err := s.err("GetByID"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if err := s.err("GetByEmail"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = models.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *UserStore) UpdateProfile(_ context.Context, u *models.User) error {
	if err := s.err("UpdateProfile"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[u.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	if s.taken(u.Username, u.Email, u.ID) {
		return repositories.ErrConflict
	}
	stored.Username, stored.Email = u.Username, u.Email
	stored.UpdatedAt = s.clock.now()
	return nil
}

func (s *UserStore) SetFavorites(_ context.Context, id uuid.UUID, favorites []uuid.UUID) error {
	if err := s.err("SetFavorites"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.Favorites = append([]uuid.UUID{}, favorites...)
	return nil
}

func (s *UserStore) Exists(_ context.Context, username, email string, excludeID *uuid.UUID) (bool, error) {
	if err := s.err("Exists"); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	except := uuid.Nil
	if excludeID != nil {
		except = *excludeID
	}
	return s.taken(username, models.NormalizeEmail(email), except), nil
}

func (s *UserStore) Usernames(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[uuid.UUID]string{}
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u.Username
		}
	}
	return out, nil
}

func (s *UserStore) Count(_ context.Context) (int, error) {
	if err := s.err("Count"); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// TransactionStore is an in-memory repositories.TransactionRepository.
type TransactionStore struct {
	Faults
	mu    sync.RWMutex
	clock clock
	txs   map[uuid.UUID]*models.Transaction
}

func NewTransactionStore() *TransactionStore {
	return &TransactionStore{txs: map[uuid.UUID]*models.Transaction{}}
}

var _ repositories.TransactionRepository = (*TransactionStore)(nil)

func cloneTx(t *models.Transaction) *models.Transaction {
	out := *t
	return &out
}

func (s *TransactionStore) Create(_ context.Context, t *models.Transaction) error {
	if err := s.err("Create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.now()
	t.CreatedAt, t.UpdatedAt = now, now
	s.txs[t.ID] = cloneTx(t)
	return nil
}

func (s *TransactionStore) GetByID(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	return s.find(func(t *models.Transaction) bool { return t.ID == id })
}

func (s *TransactionStore) GetByPaymentID(_ context.Context, paymentID string) (*models.Transaction, error) {
	return s.find(func(t *models.Transaction) bool { return t.PaymentID != nil && *t.PaymentID == paymentID })
}

func (s *TransactionStore) GetByToken(_ context.Context, token string) (*models.Transaction, error) {
	return s.find(func(t *models.Transaction) bool { return t.Token != nil && *t.Token == token })
}

func (s *TransactionStore) find(match func(*models.Transaction) bool) (*models.Transaction, error) {
	if err := s.err("Get"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.txs {
		if match(t) {
			return cloneTx(t), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s *TransactionStore) UpdateStatus(_ context.Context, t *models.Transaction) error {
	if err := s.err("UpdateStatus"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.txs[t.ID]
	if !ok || stored.Status != models.TransactionPending {
		return repositories.ErrNotFound
	}
	next := cloneTx(t)
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = s.clock.now()
	s.txs[t.ID] = next
	return nil
}

func (s *TransactionStore) list(match func(*models.Transaction) bool, limit int) []*models.Transaction {
	out := []*models.Transaction{}
	for _, t := range s.txs {
		if match(t) {
			out = append(out, cloneTx(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *TransactionStore) ListByUser(_ context.Context, userID uuid.UUID, status models.TransactionStatus) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(t *models.Transaction) bool { return t.UserID == userID && t.Status == status }, 0), nil
}

func (s *TransactionStore) ListRecent(_ context.Context, status models.TransactionStatus, limit int) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.list(func(t *models.Transaction) bool { return t.Status == status }, limit), nil
}

func (s *TransactionStore) Totals(_ context.Context, status models.TransactionStatus) (int, decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count, sum := 0, decimal.Zero
	for _, t := range s.txs {
		if t.Status == status {
			count++
			sum = sum.Add(t.Amount)
		}
	}
	return count, sum, nil
}

// AssetStore is an in-memory storage.AssetStore.
type AssetStore struct {
	mu     sync.Mutex
	Prefix string
	dirs   map[string]bool
	blobs  map[string][]byte

	// FailWrite, when set, is consulted before each write.
	FailWrite  func(area storage.Area, name string) error
	FailEnsure error
	FailRemove error
}

func NewAssetStore() *AssetStore {
	return &AssetStore{Prefix: "/uploads/designs", dirs: map[string]bool{}, blobs: map[string][]byte{}}
}

var _ storage.AssetStore = (*AssetStore)(nil)

func assetKey(id uuid.UUID, area storage.Area, name string) string {
	return id.String() + "/" + string(area) + "/" + name
}

func (s *AssetStore) EnsureDir(_ context.Context, id uuid.UUID, area storage.Area) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailEnsure != nil {
		return s.FailEnsure
	}
	s.dirs[id.String()+"/"+string(area)] = true
	return nil
}

func (s *AssetStore) Write(_ context.Context, id uuid.UUID, area storage.Area, name string, r io.Reader, _ int64, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirs[id.String()+"/"+string(area)] {
		return "", errors.New("directory does not exist")
	}
	if s.FailWrite != nil {
		if err := s.FailWrite(area, name); err != nil {
			return "", err
		}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	key := assetKey(id, area, name)
	s.blobs[key] = buf.Bytes()
	return strings.TrimRight(s.Prefix, "/") + "/" + key, nil
}

func (s *AssetStore) RemoveAll(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailRemove != nil {
		return s.FailRemove
	}
	prefix := id.String() + "/"
	for k := range s.blobs {
		if strings.HasPrefix(k, prefix) {
			delete(s.blobs, k)
		}
	}
	for k := range s.dirs {
		if strings.HasPrefix(k, prefix) {
			delete(s.dirs, k)
		}
	}
	return nil
}

// Blob returns the stored bytes for a key of the form "<id>/<area>/<name>".
func (s *AssetStore) Blob(id uuid.UUID, area storage.Area, name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[assetKey(id, area, name)]
	return b, ok
}

// Count returns how many assets are stored for a design.
func (s *AssetStore) Count(id uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.blobs {
		if strings.HasPrefix(k, id.String()+"/") {
			n++
		}
	}
	return n
}
