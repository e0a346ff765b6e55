package shell

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/ampshell/internal/gateway"
	"github.com/MarkoPoloResearchLab/ampshell/internal/session"
)

const (
	ModalKindNewOrder       = "new_order"
	ModalKindOrderDetails   = "order_details"
	modalTitleNewOrder      = "Create new order"
	modalTitleOrderFormat   = "Order #%s"
	alertOrderCreated       = "Order created successfully!"
	alertValidationPrefix   = "Please check the form: "
	fieldCustomerName       = "customerName"
	fieldAddress            = "address"
	fieldPhone              = "phone"
	fieldDescription        = "description"
	payloadOrderID          = "orderId"
	logEventOrderCreated    = "order_created"
	logEventOrderInvalid    = "order_form_invalid"
	logEventRevenueReport   = "revenue_report_requested"
	logEventModalClosed     = "modal_closed"
	validationRequiredTag   = "required"
	validationFieldSeparate = "; "
)

// NewOrderForm is the flat field set posted by the order creation form.
type NewOrderForm struct {
	CustomerName string `validate:"required"`
	Address      string `validate:"required"`
	Phone        string `validate:"required"`
	Description  string
}

func newOrderFormFromFields(fields map[string]string) NewOrderForm {
	return NewOrderForm{
		CustomerName: strings.TrimSpace(fields[fieldCustomerName]),
		Address:      strings.TrimSpace(fields[fieldAddress]),
		Phone:        strings.TrimSpace(fields[fieldPhone]),
		Description:  strings.TrimSpace(fields[fieldDescription]),
	}
}

var validationFieldNames = map[string]string{
	"CustomerName": fieldCustomerName,
	"Address":      fieldAddress,
	"Phone":        fieldPhone,
	"Description":  fieldDescription,
}

// ModalController owns the session's single overlay and the forms shown in it.
type ModalController struct {
	composer *Composer
	router   *Router
	callers  CallerFactory
	validate *validator.Validate
	logger   *zap.Logger
}

func NewModalController(logger *zap.Logger, callers CallerFactory, composer *Composer, router *Router) *ModalController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModalController{
		composer: composer,
		router:   router,
		callers:  callers,
		validate: validator.New(),
		logger:   logger,
	}
}

// Open shows the overlay with the given content.
func (controller *ModalController) Open(shellSession *session.Session, kind string, title string, body template.HTML) {
	shellSession.OpenModal(kind, title, body)
}

// Close hides the overlay and discards its body so no form state carries over.
func (controller *ModalController) Close(shellSession *session.Session) {
	shellSession.CloseModal()
	controller.logger.Debug(logEventModalClosed, zap.String(logFieldSession, shellSession.ID))
}

// OpenNewOrder shows the order creation form.
func (controller *ModalController) OpenNewOrder(shellSession *session.Session) {
	controller.Open(shellSession, ModalKindNewOrder, modalTitleNewOrder, controller.composer.NewOrderForm(nil))
}

// OpenRevenueReport is the installer quick action. Revenue reporting has no behavior yet,
// so it leaves the session untouched.
func (controller *ModalController) OpenRevenueReport(shellSession *session.Session) {
	controller.logger.Debug(logEventRevenueReport, zap.String(logFieldSession, shellSession.ID))
}

// OpenOrderDetails fetches an order and shows it. Nothing opens when the call fails.
func (controller *ModalController) OpenOrderDetails(ctx context.Context, shellSession *session.Session, orderID string) bool {
	if shellSession.CurrentIdentity() == nil {
		return false
	}
	result := controller.callers(shellSession).Call(ctx, gateway.ActionGetOrderDetails, map[string]any{payloadOrderID: orderID})
	if !result.Success {
		return false
	}
	var order Order
	if decodeErr := result.DecodeData(&order); decodeErr != nil {
		controller.logger.Warn(logEventDecodeData, zap.String(logFieldAction, gateway.ActionGetOrderDetails), zap.Error(decodeErr))
		return false
	}
	controller.Open(shellSession, ModalKindOrderDetails, fmt.Sprintf(modalTitleOrderFormat, order.ID.String()), controller.composer.OrderDetails(order))
	return true
}

// SubmitNewOrder validates the posted fields and sends create_order. On success the modal
// closes, the active view re-renders, and one confirmation alert is queued.
func (controller *ModalController) SubmitNewOrder(ctx context.Context, shellSession *session.Session, fields map[string]string) bool {
	if shellSession.CurrentIdentity() == nil {
		return false
	}
	form := newOrderFormFromFields(fields)
	if validationErr := controller.validateForm(form); validationErr != nil {
		controller.logger.Info(logEventOrderInvalid, zap.String(logFieldSession, shellSession.ID), zap.Error(validationErr))
		shellSession.Alert(alertValidationPrefix + validationErr.Error())
		controller.Open(shellSession, ModalKindNewOrder, modalTitleNewOrder, controller.composer.NewOrderForm(fields))
		return false
	}

	payload := make(map[string]any, len(fields))
	for name, value := range fields {
		payload[name] = value
	}
	result := controller.callers(shellSession).Call(ctx, gateway.ActionCreateOrder, payload)
	if !result.Success {
		return false
	}

	controller.logger.Info(logEventOrderCreated, zap.String(logFieldSession, shellSession.ID))
	controller.Close(shellSession)
	controller.router.Refresh(ctx, shellSession)
	shellSession.Alert(alertOrderCreated)
	return true
}

func (controller *ModalController) validateForm(form NewOrderForm) error {
	validationErr := controller.validate.Struct(form)
	if validationErr == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(validationErr, &fieldErrors) {
		return validationErr
	}
	messages := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		messages = append(messages, describeFieldError(fieldError))
	}
	return errors.New(strings.Join(messages, validationFieldSeparate))
}

func describeFieldError(fieldError validator.FieldError) string {
	fieldName, found := validationFieldNames[fieldError.Field()]
	if !found {
		fieldName = fieldError.Field()
	}
	if fieldError.Tag() == validationRequiredTag {
		return fieldName + " is required"
	}
	return fmt.Sprintf("%s failed validation (%s)", fieldName, fieldError.Tag())
}
