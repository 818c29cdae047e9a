package billing

import "time"

type StatusResponse struct {
	Plan          string     `json:"plan"`
	TrialUntil    *time.Time `json:"trial_until"`
	RenewsAt      *time.Time `json:"renews_at"`
	TrialDaysLeft *int       `json:"trial_days_left,omitempty"`
}

type CreateResponse struct {
	InvoiceURL string `json:"invoice_url"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
