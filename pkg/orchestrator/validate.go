package orchestrator

import (
	"fmt"

	"github.com/kwforge/pipeline/pkg/config"
	"github.com/kwforge/pipeline/pkg/errtax"
	"github.com/kwforge/pipeline/pkg/models"
)

// maxSeeds and minSeeds bound Run.Seeds per the data model's "1..5, unique"
// invariant; the orchestrator enforces this defensively even though callers
// creating a Run are expected to have already validated it.
const (
	minSeeds = 1
	maxSeeds = 5
)

// validateInputs rejects a run before it ever enters Processing: seed
// count, budget floor, and total-keyword ceiling are checked once, up
// front, rather than discovered mid-run.
func validateInputs(run *models.Run, settings config.Settings) error {
	n := len(run.Seeds)
	if n < minSeeds || n > maxSeeds {
		return errtax.New(errtax.KindInputValidation, "orchestrator", fmt.Sprintf("seed count %d outside [%d,%d]", n, minSeeds, maxSeeds))
	}
	seen := make(map[string]bool, n)
	for _, s := range run.Seeds {
		if seen[s] {
			return errtax.New(errtax.KindInputValidation, "orchestrator", "duplicate seed: "+s)
		}
		seen[s] = true
	}

	if settings.BudgetLimit < 10 {
		return errtax.New(errtax.KindInputValidation, "orchestrator", "budget_limit must be >= 10")
	}
	if run.BudgetLimit < 10 {
		return errtax.New(errtax.KindInputValidation, "orchestrator", "run budget_limit must be >= 10")
	}

	if settings.MaxTotalKeywords > 50000 {
		return errtax.New(errtax.KindInputValidation, "orchestrator", "max_total_keywords must be <= 50000")
	}
	if settings.MaxTotalKeywords < 100 {
		return errtax.New(errtax.KindInputValidation, "orchestrator", "max_total_keywords must be >= 100")
	}

	return nil
}
