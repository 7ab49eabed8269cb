package app

import (
	"net/http"

	"github.com/DennisTemoye/propty-os1-sub003/internal/controllers"
	"github.com/DennisTemoye/propty-os1-sub003/internal/middleware"
	"github.com/DennisTemoye/propty-os1-sub003/internal/routes"
	"github.com/gorilla/mux"
)

type Controllers struct {
	Health      *controllers.HealthController
	Units       *controllers.UnitController
	Allocations *controllers.AllocationController
	Commissions *controllers.CommissionController
	Installment *controllers.InstallmentController
}

// NewRouter registers every route. Everything except the health check
// requires an X-Actor-ID header.
func NewRouter(c Controllers) *mux.Router {
	router := mux.NewRouter()

	// Public Routes
	router.HandleFunc(routes.Health, c.Health.HealthCheckHandler).Methods(http.MethodGet)

	secured := router.NewRoute().Subrouter()
	secured.Use(middleware.ActorMiddleware)

	// Units
	secured.HandleFunc(routes.Units, c.Units.CreateUnitHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.Unit, c.Units.DeleteUnitHandler).Methods(http.MethodDelete)
	secured.HandleFunc(routes.UnitArchive, c.Units.ArchiveUnitHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.UnitStatus, c.Units.GetUnitStatusHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.UnitReserve, c.Units.ReserveHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.UnitOffer, c.Units.IssueOfferHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.UnitWithdrawHold, c.Units.WithdrawHoldHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.UnitRelease, c.Units.ReleaseHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.UnitAllocate, c.Allocations.AllocateHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.UnitMarkSold, c.Allocations.MarkSoldHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.UnitRevoke, c.Allocations.RevokeHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.UnitReallocate, c.Allocations.ReallocateHandler).Methods(http.MethodPost)

	// Commission rules; preview before {id} so it is never parsed as an id
	secured.HandleFunc(routes.CommissionPreview, c.Commissions.PreviewHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.CommissionRules, c.Commissions.CreateRuleHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.CommissionRule, c.Commissions.UpdateRuleHandler).Methods(http.MethodPut)
	secured.HandleFunc(routes.CommissionRule, c.Commissions.DeleteRuleHandler).Methods(http.MethodDelete)
	secured.HandleFunc(routes.CommissionRuleDeactivate, c.Commissions.DeactivateRuleHandler).Methods(http.MethodPost)

	// Sales and installments
	secured.HandleFunc(routes.SaleProgress, c.Installment.ProgressHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.SalePlan, c.Installment.PlanHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.PlanSchedule, c.Installment.BuildScheduleHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.PlanInstallments, c.Installment.AddInstallmentHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.InstallmentPayment, c.Installment.RecordPaymentHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.InstallmentReceipt, c.Installment.CorrectReceiptHandler).Methods(http.MethodPut)

	return router
}
