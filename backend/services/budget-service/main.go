package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/openaudit/budgetledger/backend/pkg/auth"
	"github.com/openaudit/budgetledger/backend/pkg/common"
	"github.com/openaudit/budgetledger/backend/pkg/ledger"
	"github.com/openaudit/budgetledger/backend/pkg/localstore"
	coremodels "github.com/openaudit/budgetledger/backend/pkg/models"
	"github.com/openaudit/budgetledger/backend/pkg/workflow"
)

// Service binds the workflow to the HTTP surface.
type Service struct {
	workflow *workflow.Service
	log      *zap.Logger
}

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := common.LoadConfig()

	store, err := localstore.Open(cfg.DataDir, cfg.AllowInvalid, log)
	if err != nil {
		log.Fatal("failed to open local store", zap.Error(err))
	}

	ledgerClient, err := ledger.NewFabricClient(ledger.FabricConfig{
		ConnectionProfile: cfg.Ledger.ConnectionProfile,
		ChannelName:       cfg.Ledger.ChannelName,
		ContractName:      cfg.Ledger.ContractName,
		MSPID:             cfg.Ledger.MSPID,
		CertPath:          cfg.Ledger.CertPath,
		KeyPath:           cfg.Ledger.KeyPath,
		WalletDir:         cfg.Ledger.WalletDir,
		FinalityTimeout:   cfg.Ledger.FinalityTimeout,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to ledger", zap.Error(err))
	}
	defer ledgerClient.Close()

	authSvc := auth.NewService(cfg.JWTSecret, cfg.Issuer)
	svc := &Service{
		workflow: workflow.NewService(store, ledgerClient, authSvc, log),
		log:      log,
	}

	r := newRouter(svc, authSvc, log)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Trace-Id"}),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      cors(r),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("budget service running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	if err := store.Flush(); err != nil {
		log.Error("final snapshot flush failed", zap.Error(err))
	}
}

func newRouter(svc *Service, authSvc *auth.Service, log *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(common.TraceMiddleware)
	r.Use(common.RequestLogger(log))

	// Registration three times per hour, logins five per fifteen minutes.
	registerLimit := common.NewRateLimiter(3.0/3600, 3)
	authLimit := common.NewRateLimiter(5.0/900, 5)

	r.HandleFunc("/institutions/register", registerLimit.Wrap(svc.RegisterInstitutionHandler)).Methods("POST")
	r.HandleFunc("/auth/login-auditor", authLimit.Wrap(svc.LoginAuditorHandler)).Methods("POST")
	r.HandleFunc("/auth/login-associate", authLimit.Wrap(svc.LoginAssociateHandler)).Methods("POST")
	r.HandleFunc("/config/theme", svc.GetThemeHandler).Methods("GET")

	authed := r.PathPrefix("/").Subrouter()
	authed.Use(common.AuthMiddleware(authSvc))

	instVar := func(r *http.Request) string { return mux.Vars(r)["institutionId"] }

	authed.HandleFunc("/auth/create-associate",
		common.RequireRole(coremodels.RoleAuditor, authLimit.Wrap(svc.CreateAssociateHandler))).Methods("POST")
	authed.HandleFunc("/institutions/{institutionId}/deposit",
		common.RequireRole(coremodels.RoleAuditor, common.RequireInstitution(instVar, svc.DepositHandler))).Methods("POST")
	authed.HandleFunc("/institutions/{institutionId}/summary",
		common.RequireInstitution(instVar, svc.SummaryHandler)).Methods("GET")
	authed.HandleFunc("/transactions",
		common.RequireRole(coremodels.RoleAssociate, svc.CreateTransactionHandler)).Methods("POST")
	authed.HandleFunc("/transactions/{txId}/review",
		common.RequireRole(coremodels.RoleAuditor, svc.ReviewTransactionHandler)).Methods("POST")
	authed.HandleFunc("/transactions", svc.ListTransactionsHandler).Methods("GET")
	authed.HandleFunc("/config/theme",
		common.RequireRole(coremodels.RoleAuditor, svc.SetThemeHandler)).Methods("POST")

	return r
}
