package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kendall-kelly/delivery-marketplace-api/logger"
	"github.com/kendall-kelly/delivery-marketplace-api/models"
	"github.com/kendall-kelly/delivery-marketplace-api/policy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// requestNumberAttempts bounds retries when a generated request number is taken
const requestNumberAttempts = 5

// Status notification messages, keyed by the status the order moved to
var (
	customerStatusMessages = map[models.OrderStatus]string{
		models.StatusPending:    "A driver has been assigned to your order.",
		models.StatusInProgress: "Your order is now in progress.",
		models.StatusPickedUp:   "Your order has been picked up and is on its way.",
		models.StatusDelivered:  "Your order has been delivered successfully.",
		models.StatusCancelled:  "Your order has been cancelled.",
	}
	driverStatusMessages = map[models.OrderStatus]string{
		models.StatusPending:    "You have been assigned a new order.",
		models.StatusInProgress: "The order is now in progress.",
		models.StatusPickedUp:   "The order has been marked as picked up.",
		models.StatusDelivered:  "The order has been marked as delivered.",
		models.StatusCancelled:  "An order assigned to you has been cancelled.",
	}
)

// driverSettableStatuses are the only statuses a driver may move an order to
var driverSettableStatuses = map[models.OrderStatus]bool{
	models.StatusInProgress: true,
	models.StatusPickedUp:   true,
	models.StatusDelivered:  true,
}

// AddressInput is one end of a delivery as submitted by clients
type AddressInput struct {
	Street     string  `json:"street" validate:"required,max=255"`
	City       string  `json:"city" validate:"required,max=100"`
	PostalCode string  `json:"postal_code" validate:"max=20"`
	Latitude   float64 `json:"latitude" validate:"latitude"`
	Longitude  float64 `json:"longitude" validate:"longitude"`
}

func (a AddressInput) toModel() models.Address {
	return models.Address{
		Street:     a.Street,
		City:       a.City,
		PostalCode: a.PostalCode,
		Latitude:   a.Latitude,
		Longitude:  a.Longitude,
	}
}

// LocationInput holds the pickup and dropoff addresses
type LocationInput struct {
	Pickup  AddressInput `json:"pickup"`
	Dropoff AddressInput `json:"dropoff"`
}

func (l LocationInput) toModel() models.Location {
	return models.Location{Pickup: l.Pickup.toModel(), Dropoff: l.Dropoff.toModel()}
}

// CreateOrderInput is the order schema accepted on creation
type CreateOrderInput struct {
	CustomerID          string        `json:"customer_id"`
	DriverID            *string       `json:"driver_id"`
	ServiceID           string        `json:"service_id" validate:"required,max=64"`
	SubcategoryID       *string       `json:"subcategory_id" validate:"omitempty,max=64"`
	Location            LocationInput `json:"location"`
	Notes               *string       `json:"notes" validate:"omitempty,max=2000"`
	AdminNotesDisplayed *string       `json:"admin_notes_displayed" validate:"omitempty,max=4000"`
}

// OrderPatch is a partial order update; nil fields are left untouched
type OrderPatch struct {
	ServiceID           *string             `json:"service_id" validate:"omitempty,min=1,max=64"`
	SubcategoryID       *string             `json:"subcategory_id" validate:"omitempty,max=64"`
	Location            *LocationInput      `json:"location"`
	Notes               *string             `json:"notes" validate:"omitempty,max=2000"`
	AdminNotesDisplayed *string             `json:"admin_notes_displayed" validate:"omitempty,max=4000"`
	DriverID            *string             `json:"driver_id"`
	Status              *models.OrderStatus `json:"status"`
}

// ListOrdersFilter narrows a role-scoped order listing
type ListOrdersFilter struct {
	Status models.OrderStatus
}

// OrderService owns order records and the status state machine
type OrderService struct {
	db            *gorm.DB
	log           logger.Logger
	notifications *NotificationService
	images        ProofImageStore
	validate      *validator.Validate
	newRequestNo  func() string
}

// NewOrderService creates an order service. images may be nil when no bucket is configured.
func NewOrderService(db *gorm.DB, log logger.Logger, notifications *NotificationService, images ProofImageStore) *OrderService {
	return &OrderService{
		db:            db,
		log:           log,
		notifications: notifications,
		images:        images,
		validate:      newValidator(),
		newRequestNo:  GenerateRequestNumber,
	}
}

// WithRequestNumberGenerator replaces the request number source
func (s *OrderService) WithRequestNumberGenerator(gen func() string) *OrderService {
	s.newRequestNo = gen
	return s
}

// GenerateRequestNumber returns a human readable code like REQ-20260301-4F9A1C
func GenerateRequestNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("REQ-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}

// CreateOrder validates and stores a new order.
// Callers that may create orders for anyone pass CustomerID and optionally DriverID;
// a driver on creation is the auto-accept path and the order starts as pending.
func (s *OrderService) CreateOrder(ctx context.Context, caller policy.Caller, in CreateOrderInput) (*models.Order, error) {
	onBehalf := caller.Can(policy.OrdersCreateAny) && in.CustomerID != ""
	if !onBehalf {
		if !caller.Can(policy.OrdersCreateOwn) {
			return nil, models.ErrForbidden
		}
		if in.CustomerID != "" && in.CustomerID != caller.UserID {
			return nil, models.ErrForbidden
		}
		in.CustomerID = caller.UserID
		in.DriverID = nil
		in.AdminNotesDisplayed = nil
	}

	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}

	if onBehalf {
		if err := s.requireRole(ctx, in.CustomerID, models.RoleCustomer, "customer_id"); err != nil {
			return nil, err
		}
	}

	status := models.StatusNew
	if in.DriverID != nil {
		if err := s.requireRole(ctx, *in.DriverID, models.RoleDriver, "driver_id"); err != nil {
			return nil, err
		}
		status = models.StatusPending
	}

	requestNumber, err := s.uniqueRequestNumber(ctx)
	if err != nil {
		return nil, err
	}

	adminNotes := in.AdminNotesDisplayed
	if in.SubcategoryID != nil {
		injected, err := s.activeAdminNotes(ctx, *in.SubcategoryID)
		if err != nil {
			return nil, err
		}
		if injected != "" {
			adminNotes = &injected
		}
	}

	order := models.Order{
		RequestNumber:       requestNumber,
		CustomerID:          in.CustomerID,
		DriverID:            in.DriverID,
		ServiceID:           in.ServiceID,
		SubcategoryID:       in.SubcategoryID,
		Status:              status,
		Location:            in.Location.toModel(),
		Notes:               in.Notes,
		AdminNotesDisplayed: adminNotes,
	}
	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.log.Info("order created",
		logger.String("order_id", order.ID),
		logger.String("request_number", order.RequestNumber),
		logger.String("customer_id", order.CustomerID),
		logger.String("status", string(order.Status)),
	)

	if order.DriverID != nil {
		s.notifyStatus(ctx, &order, order.Status)
	}

	return s.GetOrder(ctx, order.ID)
}

func (s *OrderService) requireRole(ctx context.Context, userID, role, field string) error {
	var user models.User
	err := s.db.WithContext(ctx).Select("id", "role").Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewValidationError(field, fmt.Sprintf("%s does not reference an existing user", field))
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.Role != role {
		return models.NewValidationError(field, fmt.Sprintf("%s must reference a %s", field, role))
	}
	return nil
}

func (s *OrderService) uniqueRequestNumber(ctx context.Context) (string, error) {
	for i := 0; i < requestNumberAttempts; i++ {
		candidate := s.newRequestNo()

		var count int64
		err := s.db.WithContext(ctx).Model(&models.Order{}).
			Where("request_number = ?", candidate).
			Count(&count).Error
		if err != nil {
			return "", fmt.Errorf("failed to check request number: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique request number after %d attempts", requestNumberAttempts)
}

// activeAdminNotes renders the subcategory's active notes, highest priority first
func (s *OrderService) activeAdminNotes(ctx context.Context, subcategoryID string) (string, error) {
	var notes []models.SubcategoryNote
	err := s.db.WithContext(ctx).
		Where("subcategory_id = ? AND is_active = ?", subcategoryID, true).
		Order("priority DESC").Order("created_at").
		Find(&notes).Error
	if err != nil {
		return "", fmt.Errorf("failed to load subcategory notes: %w", err)
	}

	rendered := make([]string, 0, len(notes))
	for _, n := range notes {
		rendered = append(rendered, fmt.Sprintf("%s: %s", n.Title, n.Content))
	}
	return strings.Join(rendered, "\n\n"), nil
}

// GetOrder loads an order with its customer and driver
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Customer").Preload("Driver").Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	s.attachProofURL(ctx, &order)
	return &order, nil
}

// GetOrderFor loads an order the caller is allowed to see
func (s *OrderService) GetOrderFor(ctx context.Context, caller policy.Caller, id string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(caller, order) {
		return nil, models.ErrForbidden
	}
	return order, nil
}

func canSee(caller policy.Caller, order *models.Order) bool {
	switch {
	case caller.Can(policy.OrdersReadAll):
		return true
	case caller.Can(policy.OrdersReadOwn) && order.CustomerID == caller.UserID:
		return true
	case caller.Can(policy.OrdersReadAssigned) && order.AssignedTo(caller.UserID):
		return true
	}
	return false
}

// ListOrders returns the orders visible to the caller, newest first
func (s *OrderService) ListOrders(ctx context.Context, caller policy.Caller, filter ListOrdersFilter) ([]models.Order, error) {
	query := s.db.WithContext(ctx).Preload("Customer").Preload("Driver")

	switch {
	case caller.Can(policy.OrdersReadAll):
	case caller.Can(policy.OrdersReadOwn):
		query = query.Where("customer_id = ?", caller.UserID)
	case caller.Can(policy.OrdersReadAssigned):
		query = query.Where("driver_id = ?", caller.UserID)
	default:
		return nil, models.ErrForbidden
	}

	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, models.NewValidationError("status", fmt.Sprintf("unknown order status %q", filter.Status))
		}
		query = query.Where("status = ?", filter.Status)
	}

	orders := []models.Order{}
	if err := query.Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	for i := range orders {
		s.attachProofURL(ctx, &orders[i])
	}
	return orders, nil
}

// UpdateOrder applies a patch. Customers may edit their own orders but the
// status, driver_id and admin_notes_displayed fields of their patch are dropped
// without error. Admins route driver_id through AssignDriver and status
// through UpdateOrderStatus.
func (s *OrderService) UpdateOrder(ctx context.Context, caller policy.Caller, id string, patch OrderPatch) (*models.Order, error) {
	admin := caller.Can(policy.OrdersUpdateAny)
	if !admin && !caller.Can(policy.OrdersUpdateOwn) {
		return nil, models.ErrForbidden
	}

	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if !admin {
		if order.CustomerID != caller.UserID {
			return nil, models.ErrForbidden
		}
		patch.Status = nil
		patch.DriverID = nil
		patch.AdminNotesDisplayed = nil
	}

	if err := validateStruct(s.validate, patch); err != nil {
		return nil, err
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, models.NewValidationError("status", fmt.Sprintf("unknown order status %q", *patch.Status))
	}

	// driver and status are checked before anything is written
	from, hasDriver := order.Status, order.DriverID != nil
	if patch.DriverID != nil {
		if _, err := s.loadDriver(ctx, *patch.DriverID); err != nil {
			return nil, err
		}
		if order.Status.Terminal() {
			return nil, fmt.Errorf("%w: order is %s", models.ErrInvalidState, order.Status)
		}
		from, hasDriver = models.StatusPending, true
	}
	if patch.Status != nil && *patch.Status != from {
		if err := checkTransition(from, hasDriver, *patch.Status); err != nil {
			return nil, err
		}
	}

	changed := false
	if patch.ServiceID != nil {
		order.ServiceID = *patch.ServiceID
		changed = true
	}
	if patch.SubcategoryID != nil {
		order.SubcategoryID = patch.SubcategoryID
		changed = true
	}
	if patch.Location != nil {
		order.Location = patch.Location.toModel()
		changed = true
	}
	if patch.Notes != nil {
		order.Notes = patch.Notes
		changed = true
	}
	if patch.AdminNotesDisplayed != nil {
		order.AdminNotesDisplayed = patch.AdminNotesDisplayed
		changed = true
	}

	if changed {
		if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(order).Error; err != nil {
			return nil, fmt.Errorf("failed to update order: %w", err)
		}
	}

	if patch.DriverID != nil {
		if _, err := s.AssignDriver(ctx, id, *patch.DriverID); err != nil {
			return nil, err
		}
	}
	if patch.Status != nil {
		current, err := s.findOrder(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status != *patch.Status {
			if _, err := s.UpdateOrderStatus(ctx, id, *patch.Status); err != nil {
				return nil, err
			}
		}
	}

	return s.GetOrder(ctx, id)
}

// UpdateOrderStatus moves an order along a documented edge and notifies the
// customer and, if assigned, the driver
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("status", fmt.Sprintf("unknown order status %q", status))
	}

	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, order, status, nil); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

// AdvanceStatus is the status action path. Drivers move their assigned orders
// to in_progress, picked_up or delivered; callers with orders:status:any may
// take any documented edge.
func (s *OrderService) AdvanceStatus(ctx context.Context, caller policy.Caller, id string, status models.OrderStatus, proofImageKey *string) (*models.Order, error) {
	if !status.Valid() {
		return nil, models.NewValidationError("status", fmt.Sprintf("unknown order status %q", status))
	}

	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case caller.Can(policy.OrdersStatusAny):
	case caller.Can(policy.OrdersStatusAssigned):
		if !order.AssignedTo(caller.UserID) {
			return nil, models.ErrForbidden
		}
		if !driverSettableStatuses[status] {
			return nil, models.ErrForbidden
		}
	default:
		return nil, models.ErrForbidden
	}

	if proofImageKey != nil && !IsProofKeyFor(*proofImageKey, order.ID) {
		return nil, models.NewValidationError("proof_image_key", "proof_image_key was not issued for this order")
	}

	if err := s.transition(ctx, order, status, proofImageKey); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

// AssignDriver sets the driver and forces the order back to pending.
// Any non-terminal order can be (re)assigned.
func (s *OrderService) AssignDriver(ctx context.Context, orderID, driverID string) (*models.Order, error) {
	driver, err := s.loadDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}

	order, err := s.findOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return nil, fmt.Errorf("%w: order is %s", models.ErrInvalidState, order.Status)
	}

	err = s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", order.ID).
		Updates(map[string]interface{}{"driver_id": driver.ID, "status": models.StatusPending}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to assign driver: %w", err)
	}

	s.log.Info("driver assigned",
		logger.String("order_id", order.ID),
		logger.String("driver_id", driver.ID),
		logger.String("previous_status", string(order.Status)),
	)

	order.DriverID = &driver.ID
	order.Status = models.StatusPending
	s.notifyStatus(ctx, order, models.StatusPending)

	return s.GetOrder(ctx, orderID)
}

func (s *OrderService) loadDriver(ctx context.Context, driverID string) (*models.User, error) {
	var driver models.User
	err := s.db.WithContext(ctx).Where("id = ?", driverID).First(&driver).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("driver %s: %w", driverID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load driver: %w", err)
	}
	if driver.Role != models.RoleDriver {
		return nil, models.NewValidationError("driver_id", "driver_id must reference a driver")
	}
	return &driver, nil
}

// CancelOrder cancels an order. Customers may cancel their own orders while
// they are new or pending; callers with orders:status:any may cancel any
// non-terminal order.
func (s *OrderService) CancelOrder(ctx context.Context, caller policy.Caller, id string) (*models.Order, error) {
	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	switch {
	case caller.Can(policy.OrdersStatusAny):
	case caller.Can(policy.OrdersCancelOwn) && order.CustomerID == caller.UserID:
		if order.Status != models.StatusNew && order.Status != models.StatusPending {
			return nil, fmt.Errorf("%w: order can no longer be cancelled by the customer", models.ErrInvalidState)
		}
	default:
		return nil, models.ErrForbidden
	}

	if err := s.transition(ctx, order, models.StatusCancelled, nil); err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

// ProofUploadURL issues a presigned upload URL for the assigned driver (or an admin)
func (s *OrderService) ProofUploadURL(ctx context.Context, caller policy.Caller, id string) (key string, url string, err error) {
	if s.images == nil {
		return "", "", fmt.Errorf("%w: proof image storage is not configured", models.ErrInvalidState)
	}

	order, err := s.findOrder(ctx, id)
	if err != nil {
		return "", "", err
	}
	if !caller.Can(policy.OrdersStatusAny) && !(caller.Can(policy.OrdersStatusAssigned) && order.AssignedTo(caller.UserID)) {
		return "", "", models.ErrForbidden
	}
	if order.Status.Terminal() {
		return "", "", fmt.Errorf("%w: order is %s", models.ErrInvalidState, order.Status)
	}

	return s.images.PresignUpload(ctx, order.ID)
}

func (s *OrderService) findOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

// checkTransition guards the status paths. Pending is entered only through
// AssignDriver and no working status is reachable without a driver.
func checkTransition(from models.OrderStatus, hasDriver bool, to models.OrderStatus) error {
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}
	if to == models.StatusPending {
		return fmt.Errorf("%w: an order becomes pending when a driver is assigned", models.ErrInvalidTransition)
	}
	if to.NeedsDriver() && !hasDriver {
		return fmt.Errorf("%w: %s requires an assigned driver", models.ErrInvalidTransition, to)
	}
	return nil
}

// transition writes a status change. Concurrent writers race, last write wins.
func (s *OrderService) transition(ctx context.Context, order *models.Order, status models.OrderStatus, proofImageKey *string) error {
	if err := checkTransition(order.Status, order.DriverID != nil, status); err != nil {
		return err
	}

	updates := map[string]interface{}{"status": status}
	if proofImageKey != nil {
		updates["proof_image_key"] = *proofImageKey
	}
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	s.log.Info("order status changed",
		logger.String("order_id", order.ID),
		logger.String("from", string(order.Status)),
		logger.String("to", string(status)),
	)

	order.Status = status
	s.notifyStatus(ctx, order, status)
	return nil
}

// notifyStatus is best-effort: failures are logged, never returned
func (s *OrderService) notifyStatus(ctx context.Context, order *models.Order, status models.OrderStatus) {
	if s.notifications == nil {
		return
	}
	title := fmt.Sprintf("Order %s", order.RequestNumber)

	if msg, ok := customerStatusMessages[status]; ok {
		s.notifyOne(ctx, order, order.CustomerID, NotificationPayload{
			Title: title, Message: msg, Type: models.NotificationTypeOrderStatus,
		})
	}
	if order.DriverID == nil {
		return
	}
	if msg, ok := driverStatusMessages[status]; ok {
		s.notifyOne(ctx, order, *order.DriverID, NotificationPayload{
			Title: title, Message: msg, Type: models.NotificationTypeOrderStatus,
		})
	}
}

func (s *OrderService) notifyOne(ctx context.Context, order *models.Order, userID string, p NotificationPayload) {
	result, err := s.notifications.SendToUser(ctx, userID, p)
	if err != nil || result.Failed > 0 {
		s.log.Warn("order status notification not delivered",
			logger.String("order_id", order.ID),
			logger.String("user_id", userID),
			logger.Error(err),
		)
	}
}

func (s *OrderService) attachProofURL(ctx context.Context, order *models.Order) {
	if s.images == nil || order.ProofImageKey == nil || *order.ProofImageKey == "" {
		return
	}
	url, err := s.images.PresignDownload(ctx, *order.ProofImageKey)
	if err != nil {
		s.log.Warn("failed to presign proof image",
			logger.String("order_id", order.ID),
			logger.Error(err),
		)
		return
	}
	order.ProofImageURL = &url
}
