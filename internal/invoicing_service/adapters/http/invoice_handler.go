package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ticketshop/invoicing-gateway/internal/invoicing_service/domain"
)

// issuanceFailureMessage is the user-facing error for any provider-side
// issuance failure; credential and configuration details stay in the logs.
const issuanceFailureMessage = "could not create the invoice, check provider configuration"

// InvoiceIssuer is the issuance capability consumed by the handler.
type InvoiceIssuer interface {
	Issue(ctx context.Context, req domain.InvoiceRequest) (*domain.IssuedInvoice, error)
}

type issueInvoiceRequestDTO struct {
	ItemLabel   string `json:"item_label" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
	GuildID     string `json:"guild_id"`
	ChannelID   string `json:"channel_id" validate:"required"`
	RequesterID string `json:"requester_id"`
}

type issueInvoiceResponseDTO struct {
	InvoiceID     string `json:"invoice_id"`
	PayableLink   string `json:"payable_link"`
	LinkConfirmed bool   `json:"link_confirmed"`
}

type InvoiceHandler struct {
	issuer   InvoiceIssuer
	logger   *slog.Logger
	validate *validator.Validate
}

func NewInvoiceHandler(issuer InvoiceIssuer, logger *slog.Logger, validate *validator.Validate) *InvoiceHandler {
	return &InvoiceHandler{
		issuer:   issuer,
		logger:   logger.With("component", "invoice_handler"),
		validate: validate,
	}
}

// IssueInvoice handles POST /invoices.
func (h *InvoiceHandler) IssueInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := chi_middleware.GetReqID(ctx)
	logger := h.logger.With("request_id", requestID)

	var reqDTO issueInvoiceRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		logger.ErrorContext(ctx, "Failed to decode issue invoice request body", "error", err)
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if err := h.validate.StructCtx(ctx, reqDTO); err != nil {
		logger.WarnContext(ctx, "Validation failed for issue invoice request", "error", err)
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(reqDTO.Amount)
	if err != nil {
		logger.WarnContext(ctx, "Unparseable amount in issue invoice request", "amount", reqDTO.Amount)
		http.Error(w, "Invalid amount: "+reqDTO.Amount, http.StatusBadRequest)
		return
	}

	issued, err := h.issuer.Issue(ctx, domain.InvoiceRequest{
		ItemLabel: reqDTO.ItemLabel,
		Amount:    amount,
		Origin: domain.OriginContext{
			GuildID:     reqDTO.GuildID,
			ChannelID:   reqDTO.ChannelID,
			RequesterID: reqDTO.RequesterID,
		},
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			logger.WarnContext(ctx, "Issue invoice request rejected", "error", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.ErrorContext(ctx, "Invoice issuance failed", "error", err)
		http.Error(w, issuanceFailureMessage, http.StatusBadGateway)
		return
	}

	logger.InfoContext(ctx, "Invoice issued", "invoice_id", issued.InvoiceID, "link_confirmed", issued.LinkConfirmed)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(issueInvoiceResponseDTO{
		InvoiceID:     issued.InvoiceID,
		PayableLink:   issued.PayableLink,
		LinkConfirmed: issued.LinkConfirmed,
	}); err != nil {
		logger.ErrorContext(ctx, "Failed to write issue invoice response", "error", err)
	}
}
