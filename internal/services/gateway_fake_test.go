package services

import (
	"context"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/temcen/recoengine/pkg/models"
)

type userRow struct {
	id        string
	clicks    []string
	purchases []string
}

// memoryGateway is an in-memory DataGateway. Setting an entry in errs makes
// the named method fail; setting panics makes it panic.
type memoryGateway struct {
	users    []userRow
	products []models.Product
	errs     map[string]error
	panics   map[string]bool
	calls    map[string]int

	// categoryOf assigns categories to ids that have no product row
	categoryOf map[string]string
}

func newMemoryGateway() *memoryGateway {
	return &memoryGateway{
		errs:   make(map[string]error),
		panics: make(map[string]bool),
		calls:  make(map[string]int),
	}
}

func (g *memoryGateway) withUser(id string, clicks, purchases []string) *memoryGateway {
	g.users = append(g.users, userRow{id: id, clicks: clicks, purchases: purchases})
	return g
}

func (g *memoryGateway) withProduct(id, category string, sales float64, boughtTogether ...string) *memoryGateway {
	g.products = append(g.products, models.Product{
		ProductID:      id,
		CategoryName:   category,
		TotalSales:     sales,
		InStock:        true,
		BoughtTogether: boughtTogether,
	})
	return g
}

func (g *memoryGateway) enter(method string) error {
	g.calls[method]++
	if g.panics[method] {
		panic(method + " exploded")
	}
	return g.errs[method]
}

func (g *memoryGateway) profile(row userRow) models.UserProfile {
	return models.UserProfile{
		UserID:    row.id,
		Clicks:    models.NewIDSet(row.clicks...),
		Purchases: models.NewIDSet(row.purchases...),
	}
}

func (g *memoryGateway) FetchUserProfile(_ context.Context, userID string) (*models.UserProfile, error) {
	if err := g.enter("FetchUserProfile"); err != nil {
		return nil, err
	}
	for _, row := range g.users {
		if row.id == userID {
			p := g.profile(row)
			return &p, nil
		}
	}
	return nil, nil
}

func (g *memoryGateway) FetchOtherUserProfiles(_ context.Context, excludingUserID string, maxRows int) ([]models.UserProfile, error) {
	if err := g.enter("FetchOtherUserProfiles"); err != nil {
		return nil, err
	}
	var profiles []models.UserProfile
	for _, row := range g.users {
		if row.id == excludingUserID {
			continue
		}
		if len(profiles) >= maxRows {
			break
		}
		profiles = append(profiles, g.profile(row))
	}
	return profiles, nil
}

func (g *memoryGateway) FetchProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	if err := g.enter("FetchProductsByIDs"); err != nil {
		return nil, err
	}
	wanted := models.NewIDSet(ids...)
	var products []models.Product
	for _, p := range g.products {
		if wanted.Contains(p.ProductID) {
			products = append(products, p)
		}
	}
	return products, nil
}

func (g *memoryGateway) bySales(filter func(models.Product) bool, limit int) []models.Product {
	var products []models.Product
	for _, p := range g.products {
		if filter(p) {
			products = append(products, p)
		}
	}
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].TotalSales > products[j].TotalSales
	})
	if len(products) > limit {
		products = products[:limit]
	}
	return products
}

func (g *memoryGateway) FetchProductsByCategory(_ context.Context, category string, limit int) ([]models.Product, error) {
	if err := g.enter("FetchProductsByCategory"); err != nil {
		return nil, err
	}
	return g.bySales(func(p models.Product) bool { return p.CategoryName == category }, limit), nil
}

func (g *memoryGateway) FetchProductsByCategories(_ context.Context, categories []string, limit int) ([]models.Product, error) {
	if err := g.enter("FetchProductsByCategories"); err != nil {
		return nil, err
	}
	wanted := models.NewIDSet(categories...)
	return g.bySales(func(p models.Product) bool { return wanted.Contains(p.CategoryName) }, limit), nil
}

func (g *memoryGateway) FetchGlobalPopular(_ context.Context, limit int) ([]models.Product, error) {
	if err := g.enter("FetchGlobalPopular"); err != nil {
		return nil, err
	}
	return g.bySales(func(models.Product) bool { return true }, limit), nil
}

func (g *memoryGateway) FetchBoughtTogether(_ context.Context, productID string) (mapset.Set[string], error) {
	if err := g.enter("FetchBoughtTogether"); err != nil {
		return nil, err
	}
	for _, p := range g.products {
		if p.ProductID == productID {
			return models.NewIDSet(p.BoughtTogether...), nil
		}
	}
	return models.NewIDSet(), nil
}

func (g *memoryGateway) FetchCategoriesForProducts(_ context.Context, ids []string) ([]string, error) {
	if err := g.enter("FetchCategoriesForProducts"); err != nil {
		return nil, err
	}
	wanted := models.NewIDSet(ids...)
	seen := models.NewIDSet()
	var categories []string
	for _, id := range ids {
		if name, ok := g.categoryOf[id]; ok && !seen.Contains(name) {
			seen.Add(name)
			categories = append(categories, name)
		}
	}
	for _, p := range g.products {
		if wanted.Contains(p.ProductID) && p.CategoryName != "" && !seen.Contains(p.CategoryName) {
			seen.Add(p.CategoryName)
			categories = append(categories, p.CategoryName)
		}
	}
	return categories, nil
}

// MockEventPublisher records published events.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishRecommendationServed(ctx context.Context, event models.RecommendationServedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

func productIDs(products []models.Product) []string {
	return models.ProductIDs(products)
}
