package routes

const (
	Health = "/health"

	// Units
	Units            = "/api/v1/units"
	Unit             = "/api/v1/units/{id}"
	UnitArchive      = "/api/v1/units/{id}/archive"
	UnitStatus       = "/api/v1/units/{id}/status"
	UnitReserve      = "/api/v1/units/{id}/reserve"
	UnitOffer        = "/api/v1/units/{id}/offer"
	UnitAllocate     = "/api/v1/units/{id}/allocate"
	UnitMarkSold     = "/api/v1/units/{id}/sold"
	UnitRevoke       = "/api/v1/units/{id}/revoke"
	UnitRelease      = "/api/v1/units/{id}/release"
	UnitReallocate   = "/api/v1/units/{id}/reallocate"
	UnitWithdrawHold = "/api/v1/units/{id}/withdraw"

	// Commission rules
	CommissionRules          = "/api/v1/commission-rules"
	CommissionRule           = "/api/v1/commission-rules/{id}"
	CommissionRuleDeactivate = "/api/v1/commission-rules/{id}/deactivate"
	CommissionPreview        = "/api/v1/commission-rules/preview"

	// Sales and installments
	SaleProgress       = "/api/v1/sales/{id}/progress"
	SalePlan           = "/api/v1/sales/{id}/plan"
	PlanInstallments   = "/api/v1/installment-plans/{id}/installments"
	PlanSchedule       = "/api/v1/installment-plans/schedule"
	InstallmentPayment = "/api/v1/installments/{id}/payment"
	InstallmentReceipt = "/api/v1/installments/{id}/receipt"
)
