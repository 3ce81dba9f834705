// Package validate enforces the structural contract on untrusted records
// returned by the external fact-retrieval API.
package validate

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/quantfolio/fundfacts/internal/model"
)

var (
	once sync.Once
	v    *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		// datefmt constrains date strings to YYYY-MM-DD.
		_ = v.RegisterValidation("datefmt", func(fl validator.FieldLevel) bool {
			_, err := time.Parse("2006-01-02", fl.Field().String())
			return err == nil
		})
	})
	return v
}

// Record validates one candidate FactRecord against the structural
// contract: typed nullable leaves, YYYY-MM-DD dates, the three-value
// confidence enum, and well-formed citation URLs. An empty source list is
// structurally legal; rejecting it is the guardrails' job.
func Record(rec *model.FactRecord) error {
	if rec == nil {
		return eris.New("validate: nil record")
	}
	if err := instance().Struct(rec); err != nil {
		return eris.Wrap(err, "validate: record failed structural contract")
	}
	return nil
}

// Records validates a batch, failing on the first structural mismatch.
func Records(recs []model.FactRecord) error {
	for i := range recs {
		if err := Record(&recs[i]); err != nil {
			return eris.Wrapf(err, "validate: record %d", i)
		}
	}
	return nil
}
