package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/pbtavares/gympay/internal/gateway"
	"github.com/pbtavares/gympay/internal/models"
	"github.com/pbtavares/gympay/internal/report"
	"github.com/pbtavares/gympay/internal/service"
	"github.com/pbtavares/gympay/internal/storage"
)

const dateLayout = "2006-01-02"

// Handler dispatches JSON-RPC methods to the payment core.
type Handler struct {
	payments   *service.PaymentService
	reconciler *service.Reconciler
	reports    *report.Builder
	validate   *validator.Validate
}

// NewHandler creates a Handler over the given services.
func NewHandler(payments *service.PaymentService, reconciler *service.Reconciler, reports *report.Builder) *Handler {
	return &Handler{
		payments:   payments,
		reconciler: reconciler,
		reports:    reports,
		validate:   validator.New(),
	}
}

// RegisterRoutes mounts the RPC endpoint on the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /rpc", h.handleRequest)
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.send(w, NewRPCErrorResponse(nil, RPCError{Code: CodeInvalidRequest, Message: "malformed request"}))
		return
	}

	result, rpcErr := h.dispatch(r.Context(), req)
	if rpcErr != nil {
		h.send(w, NewRPCErrorResponse(req.ID, *rpcErr))
		return
	}
	h.send(w, NewRPCSuccessResponse(req.ID, result))
}

func (h *Handler) dispatch(ctx context.Context, req RPCRequest) (interface{}, *RPCError) {
	switch req.Method {
	case "payment.create":
		return h.handleCreate(ctx, req.Params)
	case "payment.payWithCard":
		return h.handlePayWithCard(ctx, req.Params)
	case "payment.confirm":
		return h.handleConfirm(ctx, req.Params)
	case "payment.cancel":
		return h.handleCancel(ctx, req.Params)
	case "payment.get":
		return h.handleGet(ctx, req.Params)
	case "payment.listByStudent":
		return h.handleListByStudent(ctx, req.Params)
	case "subscription.create":
		return h.handleCreateSubscription(ctx, req.Params)
	case "reconcile.run":
		return h.handleReconcile(ctx, req.Params)
	case "stats.student":
		return h.handleStudentStats(ctx, req.Params)
	case "report.financial":
		return h.handleFinancialReport(ctx, req.Params)
	default:
		return nil, &RPCError{Code: CodeMethodNotFound, Message: "unknown method " + req.Method}
	}
}

// decodeParams unmarshals and validates method params.
func (h *Handler) decodeParams(raw json.RawMessage, dst interface{}) *RPCError {
	if len(raw) == 0 {
		return &RPCError{Code: CodeInvalidParams, Message: "params are required"}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &RPCError{Code: CodeInvalidParams, Message: "malformed params"}
	}
	if err := h.validate.Struct(dst); err != nil {
		return &RPCError{Code: CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

type createPaymentParams struct {
	AcademyID   string `json:"academy_id" validate:"required"`
	StudentID   string `json:"student_id" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description"`
	DueDate     string `json:"due_date" validate:"required"`
	Method      string `json:"method" validate:"required"`
}

func (h *Handler) handleCreate(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p createPaymentParams
	if rpcErr := h.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}

	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "amount must be a decimal string"}
	}
	due, err := time.Parse(dateLayout, p.DueDate)
	if err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "due_date must be YYYY-MM-DD"}
	}

	rec, err := h.payments.CreateInstantPayment(ctx, p.AcademyID, service.CreatePaymentInput{
		StudentID:   p.StudentID,
		Amount:      amount,
		Description: p.Description,
		DueDate:     due,
		Method:      models.Method(p.Method),
	})
	if err != nil {
		return nil, mapError(err)
	}
	return paymentView(rec), nil
}

type cardParams struct {
	Number     string `json:"number" validate:"required"`
	HolderName string `json:"holder_name"`
	Cvv        string `json:"cvv" validate:"required"`
	Expiry     string `json:"expiry" validate:"required"`
}

type payWithCardParams struct {
	AcademyID string     `json:"academy_id" validate:"required"`
	PaymentID string     `json:"payment_id" validate:"required"`
	Method    string     `json:"method"`
	Card      cardParams `json:"card" validate:"required"`
}

func (h *Handler) handlePayWithCard(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p payWithCardParams
	if rpcErr := h.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}

	rec, err := h.payments.PayWithCard(ctx, p.AcademyID, p.PaymentID, gateway.CardDetails{
		Number:     p.Card.Number,
		HolderName: p.Card.HolderName,
		Cvv:        p.Card.Cvv,
		Expiry:     p.Card.Expiry,
	}, models.Method(p.Method))
	if err != nil {
		return nil, mapError(err)
	}
	return paymentView(rec), nil
}

type paymentRefParams struct {
	AcademyID string `json:"academy_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
}

func (h *Handler) handleConfirm(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p paymentRefParams
	if rpcErr := h.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}

	rec, err := h.payments.ConfirmPayment(ctx, p.AcademyID, p.PaymentID)
	if err != nil {
		return nil, mapError(err)
	}
	return paymentView(rec), nil
}

type cancelParams struct {
	AcademyID string `json:"academy_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Reason    string `json:"reason" validate:"required"`
}

func (h *Handler) handleCancel(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p cancelParams
	if rpcErr := h.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}

	rec, err := h.payments.CancelPayment(ctx, p.AcademyID, p.PaymentID, p.Reason)
	if err != nil {
		return nil, mapError(err)
	}
	return paymentView(rec), nil
}

func (h *Handler) handleGet(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p paymentRefParams
	if rpcErr := h.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}

	rec, err := h.payments.GetPayment(ctx, p.AcademyID, p.PaymentID)
	if err != nil {
		return nil, mapError(err)
	}
	return paymentView(rec), nil
}

type studentParams struct {
	AcademyID string `json:"academy_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
}

func (h *Handler) handleListByStudent(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p studentParams
	if rpcErr := h.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}

	records, err := h.payments.ListStudentPayments(ctx, p.AcademyID, p.StudentID)
	if err != nil {
		return nil, mapError(err)
	}
	views := make([]*PaymentView, 0, len(records))
	for _, rec := range records {
		views = append(views, paymentView(rec))
	}
	return map[string]interface{}{"payments": views}, nil
}

type createSubscriptionParams struct {
	AcademyID    string `json:"academy_id" validate:"required"`
	StudentID    string `json:"student_id" validate:"required"`
	Amount       string `json:"amount" validate:"required"`
	Description  string `json:"description"`
	StartDate    string `json:"start_date" validate:"required"`
	Installments int    `json:"installments" validate:"gte=0"`
}

func (h *Handler) handleCreateSubscription(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p createSubscriptionParams
	if rpcErr := h.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}

	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "amount must be a decimal string"}
	}
	start, err := time.Parse(dateLayout, p.StartDate)
	if err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "start_date must be YYYY-MM-DD"}
	}

	records, err := h.payments.GenerateSchedule(ctx, p.AcademyID, service.ScheduleInput{
		StudentID:    p.StudentID,
		Amount:       amount,
		Description:  p.Description,
		StartDate:    start,
		Installments: p.Installments,
	})
	if err != nil {
		return nil, mapError(err)
	}

	views := make([]*PaymentView, 0, len(records))
	for _, rec := range records {
		views = append(views, paymentView(rec))
	}
	return map[string]interface{}{
		"recurring_id": records[0].RecurringID,
		"installments": views,
	}, nil
}

type reconcileParams struct {
	AcademyID string `json:"academy_id" validate:"required"`
	Date      string `json:"date"`
}

func (h *Handler) handleReconcile(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p reconcileParams
	if rpcErr := h.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}

	today := time.Now().UTC()
	if p.Date != "" {
		var err error
		today, err = time.Parse(dateLayout, p.Date)
		if err != nil {
			return nil, &RPCError{Code: CodeInvalidParams, Message: "date must be YYYY-MM-DD"}
		}
	}

	count, err := h.reconciler.Reconcile(ctx, p.AcademyID, today)
	if err != nil {
		return nil, mapError(err)
	}
	return map[string]int{"transitioned": count}, nil
}

func (h *Handler) handleStudentStats(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p studentParams
	if rpcErr := h.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}

	s, err := h.payments.StudentStats(ctx, p.AcademyID, p.StudentID)
	if err != nil {
		return nil, mapError(err)
	}
	return statsView(s), nil
}

type reportParams struct {
	AcademyID string `json:"academy_id" validate:"required"`
	From      string `json:"from" validate:"required"`
	To        string `json:"to" validate:"required"`
	CSV       bool   `json:"csv"`
}

func (h *Handler) handleFinancialReport(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var p reportParams
	if rpcErr := h.decodeParams(raw, &p); rpcErr != nil {
		return nil, rpcErr
	}

	from, err := time.Parse(dateLayout, p.From)
	if err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "from must be YYYY-MM-DD"}
	}
	to, err := time.Parse(dateLayout, p.To)
	if err != nil {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "to must be YYYY-MM-DD"}
	}

	r, err := h.reports.Build(ctx, p.AcademyID, from, to)
	if err != nil {
		return nil, mapError(err)
	}
	if p.CSV {
		var buf bytes.Buffer
		if err := r.WriteCSV(&buf); err != nil {
			return nil, mapError(err)
		}
		return map[string]string{"csv": buf.String()}, nil
	}
	return reportView(r), nil
}

func (h *Handler) send(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode rpc response", "error", err)
	}
}

// mapError translates domain errors into stable RPC codes so the client
// never has to inspect message strings.
func mapError(err error) *RPCError {
	var (
		verr *service.ValidationError
		serr *service.MissingScopeError
		derr *service.GatewayDeniedError
		cerr *service.ConflictError
		rerr report.MissingScopeError
	)
	switch {
	case errors.As(err, &verr):
		return &RPCError{Code: CodeValidation, Message: verr.Error()}
	case errors.As(err, &serr):
		return &RPCError{Code: CodeMissingScope, Message: serr.Error()}
	case errors.As(err, &rerr):
		return &RPCError{Code: CodeMissingScope, Message: rerr.Error()}
	case errors.As(err, &derr):
		return &RPCError{Code: CodeGatewayDenied, Message: derr.Error()}
	case errors.As(err, &cerr):
		return &RPCError{Code: CodeConflict, Message: cerr.Error()}
	case errors.Is(err, service.ErrGatewayUnavailable):
		return &RPCError{Code: CodeGatewayUnavailable, Message: "payment gateway unavailable, try again"}
	case errors.Is(err, storage.ErrNotFound):
		return &RPCError{Code: CodeNotFound, Message: "payment not found"}
	default:
		slog.Error("rpc internal error", "error", err)
		return &RPCError{Code: CodeInternal, Message: "internal error"}
	}
}
