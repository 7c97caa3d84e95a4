package catalog

import (
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// productModel — строка таблицы catalog_products.
type productModel struct {
	ID          string `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Category    string `gorm:"not null;index"`
	Material    string `gorm:"not null;default:''"`
	Description string `gorm:"not null;default:''"`
	PriceMinor  int64  `gorm:"not null"`
	Image       string `gorm:"not null;default:''"`
	Position    int    `gorm:"not null;default:0"`
}

func (productModel) TableName() string {
	return "catalog_products"
}

func (m productModel) toDomain() domain.Product {
	return domain.Product{
		ID:          m.ID,
		Name:        m.Name,
		Category:    m.Category,
		Material:    m.Material,
		Description: m.Description,
		PriceMinor:  m.PriceMinor,
		Image:       m.Image,
	}
}

// GormRepository — каталог в PostgreSQL, доступ через gorm. Только чтение, кроме Seed.
type GormRepository struct {
	db *gorm.DB
}

// OpenGorm оборачивает существующий пул соединений в gorm.DB.
func OpenGorm(sqlDB *sql.DB) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}
	return db, nil
}

// NewGormRepository создаёт каталог поверх gorm.DB.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// List возвращает товары, прошедшие фильтр, в порядке каталога.
func (r *GormRepository) List(filter domain.ProductFilter) ([]domain.Product, error) {
	query := r.db.Model(&productModel{})
	if filter.Category != "" && filter.Category != domain.FilterAll {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Material != "" && filter.Material != domain.FilterAll {
		query = query.Where("material = ?", filter.Material)
	}

	var rows []productModel
	if err := query.Order("position, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list catalog products: %w", err)
	}

	products := make([]domain.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toDomain())
	}
	return products, nil
}

// Get возвращает товар или ErrProductNotFound.
func (r *GormRepository) Get(id string) (domain.Product, error) {
	var row productModel
	if err := r.db.Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("get catalog product: %w", err)
	}
	return row.toDomain(), nil
}

// Categories возвращает категории в порядке первого появления в каталоге.
func (r *GormRepository) Categories() ([]string, error) {
	return r.distinct("category")
}

// Materials возвращает материалы в порядке первого появления в каталоге.
func (r *GormRepository) Materials() ([]string, error) {
	return r.distinct("material")
}

// Seed записывает товары в таблицу, сохраняя их порядок. Существующие записи обновляются.
func (r *GormRepository) Seed(products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	rows := make([]productModel, 0, len(products))
	for i, p := range products {
		if errs := p.Validate(); len(errs) > 0 {
			return fmt.Errorf("seed product %q: %w", p.ID, errors.Join(errs...))
		}
		rows = append(rows, productModel{
			ID:          p.ID,
			Name:        p.Name,
			Category:    p.Category,
			Material:    p.Material,
			Description: p.Description,
			PriceMinor:  p.PriceMinor,
			Image:       p.Image,
			Position:    i,
		})
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("seed catalog products: %w", err)
	}
	return nil
}

func (r *GormRepository) distinct(column string) ([]string, error) {
	var values []string
	err := r.db.Model(&productModel{}).
		Where(column+" <> ''").
		Group(column).
		Order("MIN(position), "+column).
		Pluck(column, &values).Error
	if err != nil {
		return nil, fmt.Errorf("list catalog %s values: %w", column, err)
	}
	return values, nil
}

var _ domain.CatalogProvider = (*GormRepository)(nil)
