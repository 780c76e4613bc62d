package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bitfantasy/nimo-repair/internal/repair/entity"
)

// OrderRepository 维修单仓库
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func byCreated(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }

// withAggregate preloads everything derived fields and audit labels need.
func withAggregate(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Customer").
		Preload("State").Preload("State.PublicState").
		Preload("CustomerState").
		Preload("WorkType").
		Preload("Term").
		Preload("Loaner").
		Preload("Category").Preload("Brand").Preload("Model").Preload("Variant").
		Preload("DeviceLines", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC, created_at ASC") }).
		Preload("Credentials", byCreated).
		Preload("Accessories", byCreated).
		Preload("ExternalLabs", byCreated).Preload("ExternalLabs.LabPartner").
		Preload("SoftwareLines", byCreated).Preload("SoftwareLines.Software").
		Preload("Components", byCreated).Preload("Components.Product")
}

func (r *OrderRepository) Create(ctx context.Context, o *entity.RepairOrder) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(o).Error)
}

// Save writes the order row only; children are written separately.
func (r *OrderRepository) Save(ctx context.Context, o *entity.RepairOrder) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(o).Error)
}

// FindByID 加载完整维修单
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*entity.RepairOrder, error) {
	var o entity.RepairOrder
	if err := withAggregate(r.db.WithContext(ctx)).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

// Lock takes the row lock on the order for the enclosing transaction.
func (r *OrderRepository) Lock(ctx context.Context, id string) error {
	var o entity.RepairOrder
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").Where("id = ?", id).First(&o).Error
	return translate(err)
}

func (r *OrderRepository) FindByToken(ctx context.Context, token string) (*entity.RepairOrder, error) {
	var o entity.RepairOrder
	if err := withAggregate(r.db.WithContext(ctx)).Where("token = ?", token).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *OrderRepository) FindByNumber(ctx context.Context, number string) (*entity.RepairOrder, error) {
	var o entity.RepairOrder
	if err := withAggregate(r.db.WithContext(ctx)).Where("number = ?", number).
		Order("created_at DESC").First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

type OrderListParams struct {
	StateID      string
	AssignedToID string
	CustomerID   string
	Keyword      string
	Archived     bool
	Closed       *bool
	Page         int
	Size         int
}

func (r *OrderRepository) List(ctx context.Context, params OrderListParams) ([]entity.RepairOrder, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.RepairOrder{}).Where("active = ?", !params.Archived)
	if params.StateID != "" {
		query = query.Where("state_id = ?", params.StateID)
	}
	if params.AssignedToID != "" {
		query = query.Where("assigned_to_id = ?", params.AssignedToID)
	}
	if params.CustomerID != "" {
		query = query.Where("customer_id = ?", params.CustomerID)
	}
	if params.Closed != nil {
		if *params.Closed {
			query = query.Where("close_date IS NOT NULL")
		} else {
			query = query.Where("close_date IS NULL")
		}
	}
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("number ILIKE ? OR device_summary ILIKE ? OR serial_number ILIKE ? OR problem_description ILIKE ?",
			kw, kw, kw, kw)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []entity.RepairOrder
	offset, limit := paginate(params.Page, params.Size)
	err := query.Preload("Customer").Preload("State").Preload("WorkType").
		Order("open_date DESC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}

// FindRenewalDue lists active orders with a customer whose renewal date is
// day and whose reminder has not been sent.
func (r *OrderRepository) FindRenewalDue(ctx context.Context, day time.Time) ([]entity.RepairOrder, error) {
	var items []entity.RepairOrder
	err := withAggregate(r.db.WithContext(ctx)).
		Where("renewal_date = ? AND customer_id IS NOT NULL AND reminder_sent = ? AND active = ?",
			entity.DateOnly(day).Format("2006-01-02"), false, true).
		Order("number ASC").
		Find(&items).Error
	return items, err
}

// MarkReminderSent sets the flag only if it is still clear and reports
// whether this call set it.
func (r *OrderRepository) MarkReminderSent(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&entity.RepairOrder{}).
		Where("id = ? AND reminder_sent = ?", id, false).
		Update("reminder_sent", true)
	return result.RowsAffected == 1, result.Error
}

// ReplaceChildren makes the rows of T owned by orderID equal to items: rows
// missing from items are deleted, the rest are upserted.
func ReplaceChildren[T any](ctx context.Context, db *gorm.DB, orderID string, items []T, idOf func(*T) string) error {
	keep := make([]string, 0, len(items))
	for i := range items {
		if id := idOf(&items[i]); id != "" {
			keep = append(keep, id)
		}
	}
	del := db.WithContext(ctx).Where("repair_order_id = ?", orderID)
	if len(keep) > 0 {
		del = del.Where("id NOT IN ?", keep)
	}
	if err := del.Delete(new(T)).Error; err != nil {
		return err
	}
	for i := range items {
		if err := db.WithContext(ctx).Omit(clause.Associations).Save(&items[i]).Error; err != nil {
			return translate(err)
		}
	}
	return nil
}

func (r *OrderRepository) ReplaceCredentials(ctx context.Context, orderID string, items []entity.Credential) error {
	return ReplaceChildren(ctx, r.db, orderID, items, func(c *entity.Credential) string { return c.ID })
}

func (r *OrderRepository) ReplaceAccessories(ctx context.Context, orderID string, items []entity.Accessory) error {
	return ReplaceChildren(ctx, r.db, orderID, items, func(a *entity.Accessory) string { return a.ID })
}

func (r *OrderRepository) ReplaceExternalLabs(ctx context.Context, orderID string, items []entity.ExternalLab) error {
	return ReplaceChildren(ctx, r.db, orderID, items, func(l *entity.ExternalLab) string { return l.ID })
}

func (r *OrderRepository) ReplaceSoftwareLines(ctx context.Context, orderID string, items []entity.SoftwareLine) error {
	return ReplaceChildren(ctx, r.db, orderID, items, func(l *entity.SoftwareLine) string { return l.ID })
}

func (r *OrderRepository) ReplaceComponents(ctx context.Context, orderID string, items []entity.Component) error {
	return ReplaceChildren(ctx, r.db, orderID, items, func(c *entity.Component) string { return c.ID })
}

// CreateDeviceLine inserts a device line; the unique index on the inventory
// item keeps one item from being bound twice.
func (r *OrderRepository) CreateDeviceLine(ctx context.Context, l *entity.DeviceLine) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(l).Error)
}

func (r *OrderRepository) SaveDeviceLine(ctx context.Context, l *entity.DeviceLine) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(l).Error)
}

func (r *OrderRepository) DeleteDeviceLine(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.DeviceLine{}).Error
}

// NextDeviceSequence returns the next line sequence for an order.
func (r *OrderRepository) NextDeviceSequence(ctx context.Context, orderID string) (int, error) {
	var last int
	err := r.db.WithContext(ctx).Model(&entity.DeviceLine{}).
		Select("COALESCE(MAX(sequence), 0)").
		Where("repair_order_id = ?", orderID).
		Scan(&last).Error
	return last + 10, err
}
