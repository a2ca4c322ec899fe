package main

import (
	"encoding/json"
	"net/http"

	"github.com/openaudit/budgetledger/backend/pkg/apperr"
	"github.com/openaudit/budgetledger/backend/pkg/common"
	"github.com/openaudit/budgetledger/backend/pkg/common/api"
	"github.com/openaudit/budgetledger/backend/services/budget-service/models"
)

func (s *Service) GetThemeHandler(w http.ResponseWriter, r *http.Request) {
	api.WriteSuccess(w, http.StatusOK, map[string]string{"theme": s.workflow.GetTheme()})
}

func (s *Service) SetThemeHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ThemeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), apperr.New(apperr.InvalidArgument, "invalid request body"))
		return
	}

	if err := s.workflow.SetTheme(req.Theme); err != nil {
		api.WriteAppError(w, common.TraceIDFrom(r.Context()), err)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]string{"theme": req.Theme})
}
