package dtos

type RecordPaymentRequest struct {
	PaidDate      string  `json:"paid_date" validate:"required,datetime=2006-01-02"`
	PaymentMethod string  `json:"payment_method" validate:"required,max=32"`
	ReferenceID   *string `json:"reference_id,omitempty" validate:"omitempty,max=128"`
}

type CorrectReceiptRequest struct {
	PaymentMethod *string `json:"payment_method,omitempty" validate:"omitempty,min=1,max=32"`
	ReferenceID   *string `json:"reference_id,omitempty" validate:"omitempty,max=128"`
}

type AddInstallmentRequest struct {
	StageName   string `json:"stage_name" validate:"required,max=128"`
	AmountMinor int64  `json:"amount_minor" validate:"gt=0,lte=1000000000000000"`
	DueDate     string `json:"due_date" validate:"required,datetime=2006-01-02"`
}

type BuildScheduleRequest struct {
	TotalMinor     int64  `json:"total_minor" validate:"gt=0,lte=1000000000000000"`
	DepositMinor   int64  `json:"deposit_minor" validate:"gte=0,lte=1000000000000000"`
	Installments   int    `json:"installments" validate:"min=1,max=120"`
	FirstDueDate   string `json:"first_due_date" validate:"required,datetime=2006-01-02"`
	IntervalMonths int    `json:"interval_months" validate:"gte=0,lte=12"`
}

type ScheduleStageResponse struct {
	StageName   string `json:"stage_name"`
	AmountMinor int64  `json:"amount_minor"`
	DueDate     string `json:"due_date"`
}

type BuildScheduleResponse struct {
	TotalMinor int64                   `json:"total_minor"`
	Stages     []ScheduleStageResponse `json:"stages"`
}
