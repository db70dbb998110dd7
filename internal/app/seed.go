package app

import (
	"context"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
)

type seedProduct struct {
	name     string
	category string
	price    string
	stock    int64
	image    string
}

// demoCatalog — витрина кофейни для первого запуска.
var demoCatalog = []seedProduct{
	{"Café Latte", "Bebidas", "4.50", 50, "/products/cafe_latte.png"},
	{"Croissant de Almendras", "Panadería", "3.75", 24, "https://images.unsplash.com/photo-1555507036-ab1f4038808a?auto=format&fit=crop&w=300&q=80"},
	{"Té Matcha", "Bebidas", "5.00", 30, "/products/matcha_tea.png"},
	{"Cheesecake de Fresa", "Postres", "6.50", 15, "https://images.unsplash.com/photo-1565958011703-44f9829ba187?auto=format&fit=crop&w=300&q=80"},
	{"Sandwich de Pavo", "Comida", "8.50", 20, "https://images.unsplash.com/photo-1528735602780-2552fd46c7af?auto=format&fit=crop&w=300&q=80"},
	{"Jugo de Naranja", "Bebidas", "4.00", 40, "https://images.unsplash.com/photo-1613478223719-2ab802602423?auto=format&fit=crop&w=300&q=80"},
}

func demoDrafts() []domain.ProductDraft {
	drafts := make([]domain.ProductDraft, 0, len(demoCatalog))
	for _, p := range demoCatalog {
		price := decimal.RequireFromString(p.price)
		stock := decimal.NewFromInt(p.stock)
		drafts = append(drafts, domain.ProductDraft{
			Name:     p.name,
			Category: p.category,
			Price:    &price,
			Stock:    &stock,
			Image:    p.image,
		})
	}
	return drafts
}

// seedCatalog заполняет пустой каталог демо-товарами.
func seedCatalog(ctx context.Context, svc *catalog.Service, logger *log.Entry) error {
	created, err := svc.Seed(ctx, demoDrafts())
	if err != nil {
		return err
	}
	if created > 0 {
		logger.WithField("products", created).Info("catalog seeded with demo products")
	}
	return nil
}
