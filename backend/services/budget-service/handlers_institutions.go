package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/openaudit/budgetledger/backend/pkg/apperr"
	"github.com/openaudit/budgetledger/backend/pkg/common"
	"github.com/openaudit/budgetledger/backend/pkg/common/api"
	"github.com/openaudit/budgetledger/backend/services/budget-service/models"
)

func (s *Service) RegisterInstitutionHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterInstitutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}

	result, err := s.workflow.RegisterInstitution(r.Context(), req.Name, req.Location, req.AuditorPassword)
	if err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), err)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, result)
}

func (s *Service) DepositHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := common.ClaimsFrom(r.Context())
	institutionID := mux.Vars(r)["institutionId"]

	var req models.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}

	receipt, err := s.workflow.Deposit(r.Context(), claims, institutionID, req.AuditorPassword, req.AmountEther)
	if err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]string{"tx_hash": receipt.TxHash})
}

func (s *Service) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	institutionID := mux.Vars(r)["institutionId"]

	summary, err := s.workflow.Summary(r.Context(), institutionID)
	if err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, summary)
}
