package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stripe/stripe-go/v84"
)

// ErrorDump flattens an error chain into loggable fields. Driver and gateway
// details are pulled out of the chain when present.
type ErrorDump struct {
	TopMessage string
	Code       Code
	Chain      []string

	PGCode       string
	PGConstraint string
	PGTable      string
	PGDetail     string

	StripeType        string
	StripeCode        string
	StripeDeclineCode string
	StripeRequestID   string
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgxErr):
		d.PGCode, d.PGConstraint, d.PGTable, d.PGDetail = pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.Detail
	case stdErrors.As(err, &pqErr):
		d.PGCode, d.PGConstraint, d.PGTable, d.PGDetail = string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Detail
	}

	var stripeErr *stripe.Error
	if stdErrors.As(err, &stripeErr) {
		d.StripeType = string(stripeErr.Type)
		d.StripeCode = string(stripeErr.Code)
		d.StripeDeclineCode = string(stripeErr.DeclineCode)
		d.StripeRequestID = stripeErr.RequestID
	}
	return d
}

// Fields returns the non-empty parts of the dump keyed for structured logs.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{"error": d.TopMessage}
	if d.Code != "" {
		fields["error_code"] = d.Code
	}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	for k, v := range map[string]string{
		"pg_code":             d.PGCode,
		"pg_constraint":       d.PGConstraint,
		"pg_table":            d.PGTable,
		"pg_detail":           d.PGDetail,
		"stripe_type":         d.StripeType,
		"stripe_code":         d.StripeCode,
		"stripe_decline_code": d.StripeDeclineCode,
		"stripe_request_id":   d.StripeRequestID,
	} {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}
