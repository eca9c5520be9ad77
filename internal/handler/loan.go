package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/internal/service"
	customError "github.com/kobofin/loan-engine/pkg/errors"
	"github.com/kobofin/loan-engine/pkg/response"
)

// LoanHandler exposes the engine's operations over HTTP. The org ID rides in
// the path on every route; there is no ambient tenant state.
type LoanHandler struct {
	schedules       *service.ScheduleService
	payments        *service.PaymentService
	classifications *service.ClassificationService
	validator       *validator.Validate
}

func NewLoanHandler(
	schedules *service.ScheduleService,
	payments *service.PaymentService,
	classifications *service.ClassificationService,
) *LoanHandler {
	return &LoanHandler{
		schedules:       schedules,
		payments:        payments,
		classifications: classifications,
		validator:       validator.New(),
	}
}

// Register mounts the engine routes on an /api/v1 subrouter.
func (h *LoanHandler) Register(api *mux.Router) {
	api.HandleFunc("/orgs/{orgId}/loans", h.CreateLoan).Methods("POST")
	api.HandleFunc("/orgs/{orgId}/loans/{loanId}", h.GetLoan).Methods("GET")
	api.HandleFunc("/orgs/{orgId}/loans/{loanId}/payoff", h.PayoffQuote).Methods("GET")
	api.HandleFunc("/orgs/{orgId}/loans/{loanId}/payments", h.AllocatePayment).Methods("POST")
	api.HandleFunc("/orgs/{orgId}/loans/{loanId}/transactions", h.GetTransactions).Methods("GET")
	api.HandleFunc("/orgs/{orgId}/loans/{loanId}/recalculate", h.Recalculate).Methods("POST")
	api.HandleFunc("/orgs/{orgId}/loans/{loanId}/arrears", h.GetArrears).Methods("GET")
	api.HandleFunc("/orgs/{orgId}/loans/{loanId}/classification", h.ClassifyLoan).Methods("POST")
	api.HandleFunc("/orgs/{orgId}/classifications", h.ClassifyPortfolio).Methods("POST")
	api.HandleFunc("/orgs/{orgId}/transactions/{transactionId}/reverse", h.ReverseTransaction).Methods("POST")
	api.HandleFunc("/orgs/{orgId}/reports/par", h.PortfolioAtRisk).Methods("GET")
}

func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathUUID(w, r, "orgId")
	if !ok {
		return
	}

	var request domain.CreateLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	loan, schedule, err := h.schedules.CreateLoan(r.Context(), orgID, &request)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Created(w, &domain.CreateLoanResponse{Loan: loan, Schedule: schedule})
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	orgID, loanID, ok := pathOrgLoan(w, r)
	if !ok {
		return
	}

	loan, schedule, err := h.schedules.GetLoan(r.Context(), orgID, loanID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}

	response.Success(w, &domain.CreateLoanResponse{Loan: loan, Schedule: schedule})
}

func (h *LoanHandler) PayoffQuote(w http.ResponseWriter, r *http.Request) {
	orgID, loanID, ok := pathOrgLoan(w, r)
	if !ok {
		return
	}
	asOf, ok := asOfDate(w, r)
	if !ok {
		return
	}

	quote, err := h.schedules.PayoffQuote(r.Context(), orgID, loanID, asOf)
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	response.Success(w, quote)
}

func (h *LoanHandler) AllocatePayment(w http.ResponseWriter, r *http.Request) {
	orgID, loanID, ok := pathOrgLoan(w, r)
	if !ok {
		return
	}

	var request domain.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	transaction, err := h.payments.AllocatePayment(r.Context(), orgID, loanID, &request)
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	response.Created(w, transaction)
}

func (h *LoanHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	orgID, loanID, ok := pathOrgLoan(w, r)
	if !ok {
		return
	}

	transactions, err := h.payments.GetTransactions(r.Context(), orgID, loanID)
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	response.Success(w, transactions)
}

func (h *LoanHandler) ReverseTransaction(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathUUID(w, r, "orgId")
	if !ok {
		return
	}
	transactionID, ok := pathUUID(w, r, "transactionId")
	if !ok {
		return
	}

	var request domain.ReversalRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	reversal, err := h.payments.ReverseTransaction(r.Context(), orgID, transactionID, request.Reason)
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	response.Created(w, reversal)
}

func (h *LoanHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
	orgID, loanID, ok := pathOrgLoan(w, r)
	if !ok {
		return
	}

	var request domain.RecalculationRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		response.BadRequest(w, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&request); err != nil {
		response.BadRequest(w, "validation failed", err)
		return
	}

	schedule, err := h.schedules.Recalculate(r.Context(), orgID, loanID,
		request.PivotDate, domain.RecalculationMode(request.Mode))
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	response.Success(w, &domain.ScheduleResponse{LoanID: loanID, Schedule: schedule})
}

func (h *LoanHandler) GetArrears(w http.ResponseWriter, r *http.Request) {
	orgID, loanID, ok := pathOrgLoan(w, r)
	if !ok {
		return
	}
	asOf, ok := asOfDate(w, r)
	if !ok {
		return
	}

	state, err := h.classifications.GetArrearsState(r.Context(), orgID, loanID, asOf)
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	response.Success(w, state)
}

func (h *LoanHandler) ClassifyLoan(w http.ResponseWriter, r *http.Request) {
	orgID, loanID, ok := pathOrgLoan(w, r)
	if !ok {
		return
	}
	asOf, ok := asOfDate(w, r)
	if !ok {
		return
	}

	record, err := h.classifications.ClassifyLoan(r.Context(), orgID, loanID, asOf)
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	response.Success(w, record)
}

func (h *LoanHandler) ClassifyPortfolio(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathUUID(w, r, "orgId")
	if !ok {
		return
	}
	asOf, ok := asOfDate(w, r)
	if !ok {
		return
	}

	summary, records, err := h.classifications.ClassifyPortfolio(r.Context(), orgID, asOf)
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	response.Success(w, map[string]interface{}{
		"summary": summary,
		"records": records,
	})
}

func (h *LoanHandler) PortfolioAtRisk(w http.ResponseWriter, r *http.Request) {
	orgID, ok := pathUUID(w, r, "orgId")
	if !ok {
		return
	}
	asOf, ok := asOfDate(w, r)
	if !ok {
		return
	}

	report, err := h.classifications.PortfolioAtRisk(r.Context(), orgID, asOf,
		r.URL.Query().Get("branch"), r.URL.Query().Get("officer"))
	if err != nil {
		writeBusinessError(w, err)
		return
	}
	response.Success(w, report)
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		response.BadRequest(w, "invalid "+name, err)
		return uuid.Nil, false
	}
	return id, true
}

func pathOrgLoan(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	orgID, ok := pathUUID(w, r, "orgId")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	loanID, ok := pathUUID(w, r, "loanId")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return orgID, loanID, true
}

// asOfDate reads the as_of query parameter (YYYY-MM-DD), defaulting to today.
func asOfDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return time.Now().UTC(), true
	}
	asOf, err := time.Parse("2006-01-02", raw)
	if err != nil {
		response.BadRequest(w, "as_of must be YYYY-MM-DD", err)
		return time.Time{}, false
	}
	return asOf, true
}

func writeBusinessError(w http.ResponseWriter, err error) {
	var businessErr *customError.BusinessError
	if !errors.As(err, &businessErr) {
		response.InternalServerError(w, "internal error", err)
		return
	}

	status := http.StatusInternalServerError
	switch businessErr.Code {
	case customError.ErrCodeInvalidScheduleInput:
		status = http.StatusBadRequest
	case customError.ErrCodeLoanNotFound, customError.ErrCodeTransactionNotFound:
		status = http.StatusNotFound
	case customError.ErrCodeLoanClosed,
		customError.ErrCodeNoOutstandingBalance,
		customError.ErrCodeAlreadyReversed,
		customError.ErrCodeRecalculationConflict,
		customError.ErrCodeReversalConflict,
		customError.ErrCodeLoanLocked:
		status = http.StatusConflict
	}

	response.ErrorWithCode(w, status, businessErr.Code, businessErr.Message, businessErr.Err)
}
