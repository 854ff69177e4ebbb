package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/fjod/food_cart/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

type SQLiteCatalog struct {
	db *sql.DB
}

func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func (r *SQLiteCatalog) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *SQLiteCatalog) Close() error {
	return r.db.Close()
}

var restaurantColumns = []string{
	"r.id", "r.name", "r.rating", "r.review_count", "r.delivery_time", "r.delivery_fee",
	"r.min_order", "r.is_open", "r.is_pure_veg", "r.is_featured", "r.address",
}

func (r *SQLiteCatalog) GetRestaurant(ctx context.Context, id string) (*domain.Restaurant, error) {
	query, args, err := sq.Select(restaurantColumns...).
		From("restaurants r").
		Where(sq.Eq{"r.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build restaurant query: %w", err)
	}

	rest, err := scanRestaurant(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRestaurantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get restaurant: %w", err)
	}

	if rest.Cuisines, err = r.cuisines(ctx, rest.ID); err != nil {
		return nil, err
	}
	if rest.Offers, err = r.offersFor(ctx, rest.ID); err != nil {
		return nil, err
	}
	return rest, nil
}

func (r *SQLiteCatalog) ListRestaurants(ctx context.Context, f domain.RestaurantFilters) ([]*domain.Restaurant, error) {
	b := sq.Select(restaurantColumns...).From("restaurants r")

	if len(f.Cuisines) > 0 {
		sub, subArgs, err := sq.Select("1").
			From("restaurant_cuisines rc").
			Where("rc.restaurant_id = r.id").
			Where(sq.Eq{"rc.cuisine": f.Cuisines}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build cuisine filter: %w", err)
		}
		b = b.Where(sq.Expr("EXISTS ("+sub+")", subArgs...))
	}
	if f.VegOnly {
		b = b.Where(sq.Eq{"r.is_pure_veg": 1})
	}
	if f.MinRating != nil {
		b = b.Where(sq.GtOrEq{"r.rating": *f.MinRating})
	}
	if f.MaxDeliveryFee != nil {
		b = b.Where(sq.LtOrEq{"r.delivery_fee": f.MaxDeliveryFee.InexactFloat64()})
	}
	if f.WithOffers {
		b = b.Where("EXISTS (SELECT 1 FROM offers o WHERE o.restaurant_id = r.id)")
	}

	switch f.SortBy {
	case domain.SortRating:
		b = b.OrderBy("r.rating DESC", "r.id")
	case domain.SortDeliveryTime:
		b = b.OrderBy("r.delivery_time_min ASC", "r.id")
	case domain.SortCostLowToHigh:
		b = b.OrderBy("r.cost_for_two ASC", "r.id")
	case domain.SortCostHighToLow:
		b = b.OrderBy("r.cost_for_two DESC", "r.id")
	default:
		b = b.OrderBy("r.is_featured DESC", "r.rating DESC", "r.id")
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build restaurants query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query restaurants: %w", err)
	}
	defer rows.Close()

	var restaurants []*domain.Restaurant
	for rows.Next() {
		rest, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan restaurant: %w", err)
		}
		restaurants = append(restaurants, rest)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	for _, rest := range restaurants {
		if rest.Cuisines, err = r.cuisines(ctx, rest.ID); err != nil {
			return nil, err
		}
	}
	return restaurants, nil
}

func (r *SQLiteCatalog) GetMenu(ctx context.Context, restaurantID string) ([]domain.MenuCategory, error) {
	if _, err := r.GetRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}

	query, args, err := menuItemQuery().
		Where(sq.Eq{"m.restaurant_id": restaurantID}).
		OrderBy("m.category_order", "m.sort_order", "m.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build menu query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu: %w", err)
	}
	defer rows.Close()

	var menu []domain.MenuCategory
	for rows.Next() {
		category, item, err := scanMenuItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		if n := len(menu); n == 0 || menu[n-1].Name != category {
			menu = append(menu, domain.MenuCategory{Name: category})
		}
		menu[len(menu)-1].Items = append(menu[len(menu)-1].Items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return menu, nil
}

func (r *SQLiteCatalog) GetMenuItem(ctx context.Context, restaurantID, itemID string) (*domain.MenuItem, error) {
	query, args, err := menuItemQuery().
		Where(sq.Eq{"m.restaurant_id": restaurantID, "m.id": itemID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build menu item query: %w", err)
	}

	_, item, err := scanMenuItem(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMenuItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get menu item: %w", err)
	}
	return item, nil
}

func (r *SQLiteCatalog) GetOffer(ctx context.Context, code string) (*domain.Offer, error) {
	query, args, err := offerQuery().
		Where(sq.Eq{"o.code": strings.ToUpper(code)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build offer query: %w", err)
	}

	offer, err := scanOffer(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOfferNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return offer, nil
}

func (r *SQLiteCatalog) cuisines(ctx context.Context, restaurantID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT cuisine FROM restaurant_cuisines WHERE restaurant_id = ? ORDER BY position`, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cuisines: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan cuisine: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteCatalog) offersFor(ctx context.Context, restaurantID string) ([]domain.Offer, error) {
	query, args, err := offerQuery().
		Where(sq.Or{sq.Eq{"o.restaurant_id": restaurantID}, sq.Eq{"o.restaurant_id": nil}}).
		OrderBy("o.code").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build offers query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query offers: %w", err)
	}
	defer rows.Close()

	var offers []domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, *o)
	}
	return offers, rows.Err()
}

func menuItemQuery() sq.SelectBuilder {
	return sq.Select(
		"m.category", "m.id", "m.restaurant_id", "m.name", "m.description", "m.price",
		"m.original_price", "m.is_veg", "m.is_bestseller", "m.is_available",
	).From("menu_items m")
}

func offerQuery() sq.SelectBuilder {
	return sq.Select(
		"o.id", "o.code", "o.restaurant_id", "o.title", "o.description", "o.discount_type",
		"o.discount_value", "o.max_discount", "o.min_order", "o.valid_till",
	).From("offers o")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRestaurant(s scanner) (*domain.Restaurant, error) {
	rest := &domain.Restaurant{}
	err := s.Scan(
		&rest.ID,
		&rest.Name,
		&rest.Rating,
		&rest.ReviewCount,
		&rest.DeliveryTime,
		&rest.DeliveryFee,
		&rest.MinOrder,
		&rest.IsOpen,
		&rest.IsPureVeg,
		&rest.IsFeatured,
		&rest.Address,
	)
	if err != nil {
		return nil, err
	}
	return rest, nil
}

func scanMenuItem(s scanner) (string, *domain.MenuItem, error) {
	var (
		category string
		original decimal.NullDecimal
		item     domain.MenuItem
	)
	err := s.Scan(
		&category,
		&item.ID,
		&item.RestaurantID,
		&item.Name,
		&item.Description,
		&item.Price,
		&original,
		&item.IsVeg,
		&item.IsBestSeller,
		&item.IsAvailable,
	)
	if err != nil {
		return "", nil, err
	}
	if original.Valid {
		item.OriginalPrice = &original.Decimal
	}
	return category, &item, nil
}

func scanOffer(s scanner) (*domain.Offer, error) {
	var (
		o            domain.Offer
		restaurantID sql.NullString
		discountType string
		maxDiscount  decimal.NullDecimal
		validTill    sql.NullString
	)
	err := s.Scan(
		&o.ID,
		&o.Code,
		&restaurantID,
		&o.Title,
		&o.Description,
		&discountType,
		&o.DiscountValue,
		&maxDiscount,
		&o.MinOrder,
		&validTill,
	)
	if err != nil {
		return nil, err
	}

	o.RestaurantID = restaurantID.String
	o.DiscountType = domain.DiscountType(discountType)
	if maxDiscount.Valid {
		o.MaxDiscount = &maxDiscount.Decimal
	}
	if validTill.Valid && validTill.String != "" {
		t, err := time.Parse(time.RFC3339, validTill.String)
		if err != nil {
			return nil, fmt.Errorf("invalid valid_till %q: %w", validTill.String, err)
		}
		o.ValidTill = &t
	}
	return &o, nil
}
