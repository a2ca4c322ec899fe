package main

import (
	"encoding/json"
	"net/http"

	"github.com/openaudit/budgetledger/backend/pkg/apperr"
	"github.com/openaudit/budgetledger/backend/pkg/common"
	"github.com/openaudit/budgetledger/backend/pkg/common/api"
	"github.com/openaudit/budgetledger/backend/services/budget-service/models"
)

func (s *Service) LoginAuditorHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginAuditorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}
	if req.InstitutionID == "" || req.Password == "" {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), apperr.New(apperr.InvalidArgument, "institution id and password required"))
		return
	}

	result, err := s.workflow.LoginAuditor(req.InstitutionID, req.Password)
	if err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, result)
}

func (s *Service) LoginAssociateHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginAssociateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}
	if req.InstitutionID == "" || req.AssociateID == "" || req.Password == "" {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), apperr.New(apperr.InvalidArgument, "institution id, associate id and password required"))
		return
	}

	result, err := s.workflow.LoginAssociate(req.InstitutionID, req.AssociateID, req.Password)
	if err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, result)
}

func (s *Service) CreateAssociateHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := common.ClaimsFrom(r.Context())

	var req models.CreateAssociateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}

	result, err := s.workflow.CreateAssociate(claims, req.Username, req.Password, req.AuditorPassword)
	if err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), err)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, result)
}
