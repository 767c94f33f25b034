package service

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"textile-store/internal/domain"
	"textile-store/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memData backs an in-memory repository.Store. Rows are stored by value so
// WithTx can snapshot and restore the maps on rollback. Transactions are
// serialized.
type memData struct {
	txMu       sync.Mutex
	mu         sync.Mutex
	users      map[uuid.UUID]domain.User
	refresh    map[string]domain.RefreshToken
	links      map[string]domain.LoginLink
	categories map[uuid.UUID]domain.Category
	fabrics    map[uuid.UUID]domain.Fabric
	cart       map[uuid.UUID]map[uuid.UUID]int
	favorites  map[uuid.UUID][]uuid.UUID
	discounts  map[uuid.UUID]domain.DiscountCode
	orders     map[uuid.UUID]domain.Order
	reviews    map[uuid.UUID]domain.Review
}

type memStore struct {
	d    *memData
	inTx bool
}

func newMemStore() *memStore {
	return &memStore{d: &memData{
		users:      map[uuid.UUID]domain.User{},
		refresh:    map[string]domain.RefreshToken{},
		links:      map[string]domain.LoginLink{},
		categories: map[uuid.UUID]domain.Category{},
		fabrics:    map[uuid.UUID]domain.Fabric{},
		cart:       map[uuid.UUID]map[uuid.UUID]int{},
		favorites:  map[uuid.UUID][]uuid.UUID{},
		discounts:  map[uuid.UUID]domain.DiscountCode{},
		orders:     map[uuid.UUID]domain.Order{},
		reviews:    map[uuid.UUID]domain.Review{},
	}}
}

func (s *memStore) Users() repository.UserRepository          { return memUsers{s.d} }
func (s *memStore) Categories() repository.CategoryRepository { return memCategories{s.d} }
func (s *memStore) Fabrics() repository.FabricRepository      { return memFabrics{s.d} }
func (s *memStore) Cart() repository.CartRepository           { return memCart{s.d} }
func (s *memStore) Favorites() repository.FavoriteRepository  { return memFavorites{s.d} }
func (s *memStore) Discounts() repository.DiscountRepository  { return memDiscounts{s.d} }
func (s *memStore) Orders() repository.OrderRepository        { return memOrders{s.d} }
func (s *memStore) Reviews() repository.ReviewRepository      { return memReviews{s.d} }

func (s *memStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.d.txMu.Lock()
	defer s.d.txMu.Unlock()

	s.d.mu.Lock()
	snapshot := memData{
		users:      maps.Clone(s.d.users),
		refresh:    maps.Clone(s.d.refresh),
		links:      maps.Clone(s.d.links),
		categories: maps.Clone(s.d.categories),
		fabrics:    maps.Clone(s.d.fabrics),
		cart:       map[uuid.UUID]map[uuid.UUID]int{},
		favorites:  map[uuid.UUID][]uuid.UUID{},
		discounts:  maps.Clone(s.d.discounts),
		orders:     maps.Clone(s.d.orders),
		reviews:    maps.Clone(s.d.reviews),
	}
	for k, v := range s.d.cart {
		snapshot.cart[k] = maps.Clone(v)
	}
	for k, v := range s.d.favorites {
		snapshot.favorites[k] = append([]uuid.UUID(nil), v...)
	}
	s.d.mu.Unlock()

	if err := fn(&memStore{d: s.d, inTx: true}); err != nil {
		s.d.mu.Lock()
		s.d.users, s.d.refresh, s.d.links = snapshot.users, snapshot.refresh, snapshot.links
		s.d.categories, s.d.fabrics = snapshot.categories, snapshot.fabrics
		s.d.cart, s.d.favorites = snapshot.cart, snapshot.favorites
		s.d.discounts, s.d.orders, s.d.reviews = snapshot.discounts, snapshot.orders, snapshot.reviews
		s.d.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) addFabric(name string, stock int, ngn int64) *domain.Fabric {
	f := domain.Fabric{
		ID:       uuid.New(),
		Name:     name,
		Slug:     Slugify(name),
		PriceNGN: decimal.NewFromInt(ngn),
		Images:   []string{},
		Stock:    stock,
		IsActive: true,
	}
	s.d.fabrics[f.ID] = f
	return &f
}

func (s *memStore) addUser(first, last string) *domain.User {
	u := domain.User{ID: uuid.New(), Email: strings.ToLower(first) + "@example.com", FirstName: first, LastName: last, Role: domain.RoleUser}
	s.d.users[u.ID] = u
	return &u
}

func (s *memStore) stock(id uuid.UUID) int {
	return s.d.fabrics[id].Stock
}

type memUsers struct{ d *memData }

func (m memUsers) Create(_ context.Context, user *domain.User) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	for _, u := range m.d.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrUserAlreadyExists
		}
	}
	m.d.users[user.ID] = *user
	return nil
}

func (m memUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	for _, u := range m.d.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m memUsers) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	u, ok := m.d.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (m memUsers) Update(_ context.Context, user *domain.User) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if _, ok := m.d.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	m.d.users[user.ID] = *user
	return nil
}

func (m memUsers) List(_ context.Context, role string, _, _ int) ([]*domain.User, int, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	var out []*domain.User
	for _, u := range m.d.users {
		if role == "" || u.Role == role {
			out = append(out, &u)
		}
	}
	return out, len(out), nil
}

type memRefresh struct{ d *memData }

func (m memRefresh) Create(_ context.Context, t *domain.RefreshToken) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	m.d.refresh[t.Token] = *t
	return nil
}

func (m memRefresh) FindByToken(_ context.Context, token string) (*domain.RefreshToken, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	t, ok := m.d.refresh[token]
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if t.RevokedAt != nil {
		return nil, repository.ErrRefreshTokenRevoked
	}
	return &t, nil
}

func (m memRefresh) Revoke(_ context.Context, token string, at time.Time) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	t, ok := m.d.refresh[token]
	if !ok || t.RevokedAt != nil {
		return repository.ErrRefreshTokenNotFound
	}
	t.RevokedAt = &at
	m.d.refresh[token] = t
	return nil
}

func (m memRefresh) RevokeAllForUser(_ context.Context, userID uuid.UUID, at time.Time) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	for k, t := range m.d.refresh {
		if t.UserID == userID && t.RevokedAt == nil {
			t.RevokedAt = &at
			m.d.refresh[k] = t
		}
	}
	return nil
}

func (m memRefresh) DeleteExpiredForUser(_ context.Context, userID uuid.UUID, cutoff time.Time) (int64, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	var n int64
	for k, t := range m.d.refresh {
		if t.UserID == userID && t.ExpiresAt.Before(cutoff) {
			delete(m.d.refresh, k)
			n++
		}
	}
	return n, nil
}

type memLinks struct{ d *memData }

func (m memLinks) Create(_ context.Context, link *domain.LoginLink) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	m.d.links[link.Token] = *link
	return nil
}

func (m memLinks) FindByToken(_ context.Context, token string) (*domain.LoginLink, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	l, ok := m.d.links[token]
	if !ok {
		return nil, repository.ErrLoginLinkNotFound
	}
	return &l, nil
}

func (m memLinks) MarkUsed(_ context.Context, token string, at time.Time) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	l, ok := m.d.links[token]
	if !ok || l.UsedAt != nil {
		return repository.ErrLoginLinkUsed
	}
	l.UsedAt = &at
	m.d.links[token] = l
	return nil
}

type memCategories struct{ d *memData }

func (m memCategories) Create(_ context.Context, c *domain.Category) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	for _, existing := range m.d.categories {
		if existing.Slug == c.Slug {
			return repository.ErrCategoryAlreadyExists
		}
	}
	m.d.categories[c.ID] = *c
	return nil
}

func (m memCategories) Update(_ context.Context, c *domain.Category) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if _, ok := m.d.categories[c.ID]; !ok {
		return repository.ErrCategoryNotFound
	}
	m.d.categories[c.ID] = *c
	return nil
}

func (m memCategories) Delete(_ context.Context, id uuid.UUID) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if _, ok := m.d.categories[id]; !ok {
		return repository.ErrCategoryNotFound
	}
	delete(m.d.categories, id)
	return nil
}

func (m memCategories) List(_ context.Context) ([]*domain.Category, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	out := []*domain.Category{}
	for _, c := range m.d.categories {
		out = append(out, &c)
	}
	return out, nil
}

func (m memCategories) FindByID(_ context.Context, id uuid.UUID) (*domain.Category, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	c, ok := m.d.categories[id]
	if !ok {
		return nil, repository.ErrCategoryNotFound
	}
	return &c, nil
}

func (m memCategories) FindBySlug(_ context.Context, slug string) (*domain.Category, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	for _, c := range m.d.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, repository.ErrCategoryNotFound
}

type memFabrics struct{ d *memData }

func (m memFabrics) Create(_ context.Context, f *domain.Fabric) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	for _, existing := range m.d.fabrics {
		if existing.Slug == f.Slug {
			return repository.ErrFabricSlugTaken
		}
	}
	m.d.fabrics[f.ID] = *f
	return nil
}

func (m memFabrics) Update(_ context.Context, f *domain.Fabric) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if _, ok := m.d.fabrics[f.ID]; !ok {
		return repository.ErrFabricNotFound
	}
	for _, existing := range m.d.fabrics {
		if existing.ID != f.ID && existing.Slug == f.Slug {
			return repository.ErrFabricSlugTaken
		}
	}
	f.Images = append([]string(nil), f.Images...)
	m.d.fabrics[f.ID] = *f
	return nil
}

func (m memFabrics) Delete(_ context.Context, id uuid.UUID) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if _, ok := m.d.fabrics[id]; !ok {
		return repository.ErrFabricNotFound
	}
	delete(m.d.fabrics, id)
	return nil
}

func (m memFabrics) FindByID(_ context.Context, id uuid.UUID) (*domain.Fabric, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	f, ok := m.d.fabrics[id]
	if !ok {
		return nil, repository.ErrFabricNotFound
	}
	f.Images = append([]string(nil), f.Images...)
	return &f, nil
}

func (m memFabrics) FindBySlug(_ context.Context, slug string) (*domain.Fabric, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	for _, f := range m.d.fabrics {
		if f.Slug == slug {
			return &f, nil
		}
	}
	return nil, repository.ErrFabricNotFound
}

func (m memFabrics) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Fabric, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	out := make(map[uuid.UUID]*domain.Fabric, len(ids))
	for _, id := range ids {
		if f, ok := m.d.fabrics[id]; ok {
			out[id] = &f
		}
	}
	return out, nil
}

func (m memFabrics) List(_ context.Context, filter repository.FabricFilter) ([]*domain.Fabric, int, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	out := []*domain.Fabric{}
	for _, f := range m.d.fabrics {
		if filter.ActiveOnly && !f.IsActive {
			continue
		}
		if filter.MaxStock != nil && f.Stock > *filter.MaxStock {
			continue
		}
		out = append(out, &f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stock < out[j].Stock })
	return out, len(out), nil
}

func (m memFabrics) DecrementStock(_ context.Context, id uuid.UUID, qty int) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	f, ok := m.d.fabrics[id]
	if !ok || !f.IsActive || f.Stock < qty {
		return repository.ErrInsufficientStock
	}
	f.Stock -= qty
	m.d.fabrics[id] = f
	return nil
}

func (m memFabrics) IncrementStock(_ context.Context, id uuid.UUID, qty int) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	f, ok := m.d.fabrics[id]
	if !ok {
		return repository.ErrFabricNotFound
	}
	f.Stock += qty
	m.d.fabrics[id] = f
	return nil
}

func (m memFabrics) BulkUpdate(_ context.Context, ids []uuid.UUID, patch repository.FabricPatch) (int64, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	var n int64
	for _, id := range ids {
		f, ok := m.d.fabrics[id]
		if !ok {
			continue
		}
		if patch.PriceNGN != nil {
			f.PriceNGN = *patch.PriceNGN
		}
		if patch.PriceUSD != nil {
			f.PriceUSD = *patch.PriceUSD
		}
		if patch.Stock != nil {
			f.Stock = *patch.Stock
		}
		if patch.CategoryID != nil {
			f.CategoryID = patch.CategoryID
		}
		if patch.IsActive != nil {
			f.IsActive = *patch.IsActive
		}
		if patch.IsFeatured != nil {
			f.IsFeatured = *patch.IsFeatured
		}
		m.d.fabrics[id] = f
		n++
	}
	return n, nil
}

func (m memFabrics) BulkDelete(_ context.Context, ids []uuid.UUID) (int64, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := m.d.fabrics[id]; ok {
			delete(m.d.fabrics, id)
			n++
		}
	}
	return n, nil
}

func (m memFabrics) Count(_ context.Context) (int, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	return len(m.d.fabrics), nil
}

type memCart struct{ d *memData }

func (m memCart) List(_ context.Context, userID uuid.UUID) ([]*domain.CartItem, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	out := []*domain.CartItem{}
	for fabricID, qty := range m.d.cart[userID] {
		out = append(out, &domain.CartItem{UserID: userID, FabricID: fabricID, Quantity: qty})
	}
	return out, nil
}

func (m memCart) Add(_ context.Context, userID, fabricID uuid.UUID, qty int) (int, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if _, ok := m.d.fabrics[fabricID]; !ok {
		return 0, repository.ErrFabricNotFound
	}
	if m.d.cart[userID] == nil {
		m.d.cart[userID] = map[uuid.UUID]int{}
	}
	m.d.cart[userID][fabricID] += qty
	return m.d.cart[userID][fabricID], nil
}

func (m memCart) SetQuantity(_ context.Context, userID, fabricID uuid.UUID, qty int) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if m.d.cart[userID] == nil {
		m.d.cart[userID] = map[uuid.UUID]int{}
	}
	m.d.cart[userID][fabricID] = qty
	return nil
}

func (m memCart) Remove(_ context.Context, userID, fabricID uuid.UUID) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if _, ok := m.d.cart[userID][fabricID]; !ok {
		return repository.ErrCartItemNotFound
	}
	delete(m.d.cart[userID], fabricID)
	return nil
}

func (m memCart) Clear(_ context.Context, userID uuid.UUID) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	delete(m.d.cart, userID)
	return nil
}

type memFavorites struct{ d *memData }

func (m memFavorites) List(_ context.Context, userID uuid.UUID) ([]*domain.Favorite, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	out := []*domain.Favorite{}
	for _, id := range m.d.favorites[userID] {
		out = append(out, &domain.Favorite{UserID: userID, FabricID: id})
	}
	return out, nil
}

func (m memFavorites) Add(_ context.Context, userID, fabricID uuid.UUID) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if _, ok := m.d.fabrics[fabricID]; !ok {
		return repository.ErrFabricNotFound
	}
	for _, id := range m.d.favorites[userID] {
		if id == fabricID {
			return nil
		}
	}
	m.d.favorites[userID] = append([]uuid.UUID{fabricID}, m.d.favorites[userID]...)
	return nil
}

func (m memFavorites) Remove(_ context.Context, userID, fabricID uuid.UUID) (bool, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	ids := m.d.favorites[userID]
	for i, id := range ids {
		if id == fabricID {
			m.d.favorites[userID] = append(ids[:i:i], ids[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m memFavorites) Exists(_ context.Context, userID, fabricID uuid.UUID) (bool, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	for _, id := range m.d.favorites[userID] {
		if id == fabricID {
			return true, nil
		}
	}
	return false, nil
}

type memDiscounts struct{ d *memData }

func (m memDiscounts) Create(_ context.Context, c *domain.DiscountCode) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	for _, existing := range m.d.discounts {
		if existing.Code == c.Code {
			return repository.ErrDiscountExists
		}
	}
	m.d.discounts[c.ID] = *c
	return nil
}

func (m memDiscounts) Update(_ context.Context, c *domain.DiscountCode) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if _, ok := m.d.discounts[c.ID]; !ok {
		return repository.ErrDiscountNotFound
	}
	m.d.discounts[c.ID] = *c
	return nil
}

func (m memDiscounts) Delete(_ context.Context, id uuid.UUID) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if _, ok := m.d.discounts[id]; !ok {
		return repository.ErrDiscountNotFound
	}
	delete(m.d.discounts, id)
	return nil
}

func (m memDiscounts) FindByID(_ context.Context, id uuid.UUID) (*domain.DiscountCode, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	c, ok := m.d.discounts[id]
	if !ok {
		return nil, repository.ErrDiscountNotFound
	}
	return &c, nil
}

func (m memDiscounts) FindByCode(_ context.Context, code string) (*domain.DiscountCode, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	for _, c := range m.d.discounts {
		if c.Code == domain.NormalizeCode(code) {
			return &c, nil
		}
	}
	return nil, repository.ErrDiscountNotFound
}

func (m memDiscounts) List(_ context.Context) ([]*domain.DiscountCode, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	out := []*domain.DiscountCode{}
	for _, c := range m.d.discounts {
		out = append(out, &c)
	}
	return out, nil
}

func (m memDiscounts) IncrementUses(_ context.Context, id uuid.UUID) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	c, ok := m.d.discounts[id]
	if !ok || c.Exhausted() {
		return repository.ErrDiscountExhausted
	}
	c.Uses++
	m.d.discounts[id] = c
	return nil
}

type memOrders struct{ d *memData }

func (m memOrders) Create(_ context.Context, o *domain.Order) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	for _, existing := range m.d.orders {
		if existing.Reference == o.Reference {
			return repository.ErrOrderReferenceUsed
		}
	}
	for i := range o.Items {
		o.Items[i].ID = uuid.New()
		o.Items[i].OrderID = o.ID
	}
	stored := *o
	stored.Items = append([]domain.OrderItem(nil), o.Items...)
	m.d.orders[o.ID] = stored
	return nil
}

func (m memOrders) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	o, ok := m.d.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (m memOrders) FindByReference(_ context.Context, reference string) (*domain.Order, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	for _, o := range m.d.orders {
		if o.Reference == strings.ToUpper(reference) {
			return &o, nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m memOrders) List(_ context.Context, filter repository.OrderFilter) ([]*domain.Order, int, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	out := []*domain.Order{}
	for _, o := range m.d.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.UserID != nil && (o.UserID == nil || *o.UserID != *filter.UserID) {
			continue
		}
		out = append(out, &o)
	}
	return out, len(out), nil
}

func (m memOrders) UpdateStatus(_ context.Context, id uuid.UUID, status domain.OrderStatus) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	o, ok := m.d.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	m.d.orders[id] = o
	return nil
}

func (m memOrders) Delete(_ context.Context, id uuid.UUID) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if _, ok := m.d.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	delete(m.d.orders, id)
	return nil
}

func (m memOrders) StatusCounts(_ context.Context) (map[domain.OrderStatus]int, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	counts := map[domain.OrderStatus]int{}
	for _, s := range domain.OrderStatuses {
		counts[s] = 0
	}
	for _, o := range m.d.orders {
		counts[o.Status]++
	}
	return counts, nil
}

func (m memOrders) Revenue(_ context.Context) (map[string]decimal.Decimal, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	out := map[string]decimal.Decimal{}
	for _, o := range m.d.orders {
		if o.Status == domain.OrderStatusCancelled {
			continue
		}
		out[o.Currency] = out[o.Currency].Add(o.Total)
	}
	return out, nil
}

type memReviews struct{ d *memData }

func (m memReviews) Create(_ context.Context, r *domain.Review) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if _, ok := m.d.fabrics[r.FabricID]; !ok {
		return repository.ErrFabricNotFound
	}
	for _, existing := range m.d.reviews {
		if existing.UserID == r.UserID && existing.FabricID == r.FabricID {
			return repository.ErrReviewExists
		}
	}
	m.d.reviews[r.ID] = *r
	return nil
}

func (m memReviews) ListByFabric(_ context.Context, fabricID uuid.UUID, approvedOnly bool) ([]*domain.Review, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	out := []*domain.Review{}
	for _, r := range m.d.reviews {
		if r.FabricID == fabricID && (!approvedOnly || r.Approved) {
			out = append(out, &r)
		}
	}
	return out, nil
}

func (m memReviews) ListPending(_ context.Context) ([]*domain.Review, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	out := []*domain.Review{}
	for _, r := range m.d.reviews {
		if !r.Approved {
			out = append(out, &r)
		}
	}
	return out, nil
}

func (m memReviews) List(_ context.Context, filter repository.ReviewFilter) ([]*domain.Review, int, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	out := []*domain.Review{}
	for _, r := range m.d.reviews {
		if filter.Approved != nil && r.Approved != *filter.Approved {
			continue
		}
		if filter.FabricID != nil && r.FabricID != *filter.FabricID {
			continue
		}
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, len(out), nil
}

func (m memReviews) Approve(_ context.Context, id uuid.UUID) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	r, ok := m.d.reviews[id]
	if !ok {
		return repository.ErrReviewNotFound
	}
	r.Approved = true
	m.d.reviews[id] = r
	return nil
}

func (m memReviews) Delete(_ context.Context, id uuid.UUID) error {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	if _, ok := m.d.reviews[id]; !ok {
		return repository.ErrReviewNotFound
	}
	delete(m.d.reviews, id)
	return nil
}

func (m memReviews) Summary(_ context.Context, fabricID uuid.UUID) (*domain.RatingSummary, error) {
	m.d.mu.Lock()
	defer m.d.mu.Unlock()
	s := &domain.RatingSummary{FabricID: fabricID}
	total := 0
	for _, r := range m.d.reviews {
		if r.FabricID == fabricID && r.Approved {
			total += r.Rating
			s.Count++
		}
	}
	if s.Count > 0 {
		s.Average = float64(total) / float64(s.Count)
	}
	return s, nil
}
