// Package checkout turns the cart into a sale and reports the outcome.
package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sitsofe/pos-terminal/cart"
	"github.com/sitsofe/pos-terminal/models"
	"github.com/sitsofe/pos-terminal/notify"
	"github.com/sitsofe/pos-terminal/observable"
)

const (
	MsgSaleCompleted = "Sale completed"
	MsgSaleFailed    = "Failed to complete sale"

	DefaultPaymentMethod = "cash"

	submitTimeout = time.Minute
)

// SaleSubmitter sends a sale to the backend.
type SaleSubmitter interface {
	SubmitSale(ctx context.Context, req models.SaleRequest) (models.SaleResult, error)
}

// Cart is the part of the cart checkout reads and clears.
type Cart interface {
	Snapshot() cart.Snapshot
	Lines(ctx context.Context, snap cart.Snapshot) ([]models.CartLine, []string, error)
	Clear()
}

// Input is what the operator chose on the checkout screen.
type Input struct {
	Internal bool             `json:"internal"`
	Customer *models.Customer `json:"customer,omitempty"`
	Notes    *string          `json:"notes,omitempty"`
}

// Reconciler builds a sale from the current cart and the catalog cache, validates it and
// submits it. One checkout runs at a time.
type Reconciler struct {
	cart          Cart
	submitter     SaleSubmitter
	notifier      notify.Notifier
	log           *logrus.Entry
	validate      *validator.Validate
	paymentMethod string

	busy     atomic.Bool
	busyFlag *observable.Value[bool]

	mu      sync.Mutex
	pending *pendingSale
}

// pendingSale remembers the request id of a failed submission so that retrying the very
// same sale reuses it.
type pendingSale struct {
	fingerprint string
	requestID   string
}

func NewReconciler(c Cart, submitter SaleSubmitter, notifier notify.Notifier, paymentMethod string, log *logrus.Entry) *Reconciler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if strings.TrimSpace(paymentMethod) == "" {
		paymentMethod = DefaultPaymentMethod
	}
	return &Reconciler{
		cart:          c,
		submitter:     submitter,
		notifier:      notifier,
		log:           log,
		validate:      validator.New(),
		paymentMethod: paymentMethod,
		busyFlag:      observable.NewValue(false),
	}
}

// Busy is true while a checkout is being submitted.
func (r *Reconciler) Busy() *observable.Value[bool] { return r.busyFlag }

// BuildLines prices every cart entry against the catalog cache as it is now. Entries
// whose product no longer exists are left out and returned in dropped.
func (r *Reconciler) BuildLines(ctx context.Context, snap cart.Snapshot) (lines []models.SaleLine, dropped []string, err error) {
	priced, dropped, err := r.cart.Lines(ctx, snap)
	if err != nil {
		return nil, nil, err
	}
	if len(dropped) > 0 {
		r.log.WithField("product_ids", dropped).Warn("⚠️ [CHECKOUT] cart lines no longer in catalog, dropped")
	}
	lines = make([]models.SaleLine, 0, len(priced))
	for _, l := range priced {
		lines = append(lines, models.SaleLine{
			ProductID: l.Product.ID,
			Quantity:  l.Quantity,
			UnitPrice: l.Product.Price,
			Name:      l.Product.Name,
		})
	}
	return lines, dropped, nil
}

// Validate checks the checkout preconditions.
func (r *Reconciler) Validate(internal bool, customer *models.Customer, lines []models.SaleLine) error {
	if len(lines) == 0 {
		return ErrEmptyCart
	}
	if !internal && (customer == nil || strings.TrimSpace(customer.Phone) == "") {
		return ErrNoRecipient
	}
	return nil
}

// Submit sends req to the backend.
func (r *Reconciler) Submit(ctx context.Context, req models.SaleRequest) (models.SaleResult, error) {
	if err := r.validate.Struct(req); err != nil {
		return models.SaleResult{}, &ValidationError{Code: "invalid_sale", Message: "Sale is incomplete", Err: err}
	}
	return r.submitter.SubmitSale(ctx, req)
}

// Checkout builds, validates and submits a sale for the current cart. On success the cart
// is cleared; on failure it is left untouched so the operator can retry. The submission
// is not cancelled when ctx is.
func (r *Reconciler) Checkout(ctx context.Context, in Input) (models.SaleOutcome, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return models.SaleOutcome{}, ErrCheckoutInProgress
	}
	r.busyFlag.Set(true)
	defer func() {
		r.busy.Store(false)
		r.busyFlag.Set(false)
	}()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submitTimeout)
	defer cancel()

	lines, dropped, err := r.BuildLines(ctx, r.cart.Snapshot())
	if err != nil {
		r.log.WithError(err).Error("❌ [CHECKOUT] could not price cart")
		r.notify(notify.LevelError, MsgSaleFailed)
		return models.SaleOutcome{}, err
	}
	if err := r.Validate(in.Internal, in.Customer, lines); err != nil {
		r.notify(notify.LevelWarning, err.Error())
		return models.SaleOutcome{}, err
	}

	req := r.newRequest(in, lines)
	res, err := r.Submit(ctx, req)
	if err != nil {
		if IsValidation(err) {
			r.notify(notify.LevelWarning, err.Error())
			return models.SaleOutcome{}, err
		}
		r.remember(req)
		r.log.WithError(err).WithField("request_id", req.RequestID).Error("❌ [CHECKOUT] sale failed")
		r.notify(notify.LevelError, MsgSaleFailed)
		return models.SaleOutcome{}, &CheckoutError{RequestID: req.RequestID, Err: err}
	}

	r.forget()
	r.cart.Clear()

	msg := MsgSaleCompleted
	if res.Message != nil && strings.TrimSpace(*res.Message) != "" {
		msg = *res.Message
	}
	out := models.SaleOutcome{
		RequestID: req.RequestID,
		Message:   msg,
		Total:     req.Total(),
		Lines:     req.Items,
		Dropped:   dropped,
	}
	if res.ID != nil {
		out.SaleID = *res.ID
	}

	r.log.WithFields(logrus.Fields{
		"request_id": out.RequestID,
		"sale_id":    out.SaleID,
		"lines":      len(out.Lines),
		"total":      out.Total.StringFixed(2),
	}).Info("✅ [CHECKOUT] sale completed")
	r.notify(notify.LevelInfo, msg)
	return out, nil
}

func (r *Reconciler) newRequest(in Input, lines []models.SaleLine) models.SaleRequest {
	req := models.SaleRequest{
		CustomerType:  models.CustomerTypeRegular,
		PaymentMethod: r.paymentMethod,
		Items:         lines,
	}
	if in.Internal {
		req.CustomerType = models.CustomerTypeInternal
	} else if in.Customer != nil {
		phone := strings.TrimSpace(in.Customer.Phone)
		req.CustomerPhone = &phone
	}
	if in.Notes != nil {
		if notes := strings.TrimSpace(*in.Notes); notes != "" {
			req.Condition = &notes
		}
	}

	fp := fingerprint(req)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending != nil && r.pending.fingerprint == fp {
		req.RequestID = r.pending.requestID
	} else {
		req.RequestID = uuid.NewString()
	}
	return req
}

func (r *Reconciler) remember(req models.SaleRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = &pendingSale{fingerprint: fingerprint(req), requestID: req.RequestID}
}

func (r *Reconciler) forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil
}

func (r *Reconciler) notify(level notify.Level, msg string) {
	if r.notifier == nil {
		return
	}
	switch level {
	case notify.LevelError:
		r.notifier.Error(msg)
	case notify.LevelWarning:
		r.notifier.Warn(msg)
	default:
		r.notifier.Info(msg)
	}
}

// fingerprint identifies a sale by everything except its request id.
func fingerprint(req models.SaleRequest) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|", req.CustomerType, deref(req.CustomerPhone), req.PaymentMethod)
	for _, l := range req.Items {
		fmt.Fprintf(h, "%s:%d:%s;", l.ProductID, l.Quantity, l.UnitPrice.String())
	}
	fmt.Fprintf(h, "|%s", deref(req.Condition))
	return hex.EncodeToString(h.Sum(nil))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
