package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openaudit/budgetledger/backend/pkg/apperr"
	"github.com/openaudit/budgetledger/backend/pkg/common"
	"github.com/openaudit/budgetledger/backend/pkg/common/api"
	"github.com/openaudit/budgetledger/backend/pkg/workflow"
	"github.com/openaudit/budgetledger/backend/services/budget-service/models"
)

func (s *Service) CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := common.ClaimsFrom(r.Context())

	var req models.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}

	result, err := s.workflow.CreateTransaction(r.Context(), claims, workflow.CreateTransactionRequest{
		Receiver:    req.Receiver,
		AmountEther: req.AmountEther,
		Purpose:     req.Purpose,
		Comment:     req.Comment,
		Deadline:    req.Deadline,
		Priority:    req.Priority,
	})
	if err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), err)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, result)
}

func (s *Service) ReviewTransactionHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := common.ClaimsFrom(r.Context())
	txID := mux.Vars(r)["txId"]

	var req models.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}

	result, err := s.workflow.Review(r.Context(), claims, txID, req.Decision, req.AuditorComment)
	if err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, result)
}

func (s *Service) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := common.ClaimsFrom(r.Context())

	views, err := s.workflow.ListTransactions(r.Context(), claims.InstitutionID)
	if err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]any{"transactions": views})
}
