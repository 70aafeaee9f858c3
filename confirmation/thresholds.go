package confirmation

import (
	"fmt"
	stdmath "math"

	"github.com/pkg/errors"
)

// Thresholds are the adversary assumptions a verdict is conditioned on:
// Byzantine is the assumed fraction of adversarial voting weight, Slashing
// the assumed fraction of weight willing to be slashed to attack safety.
type Thresholds struct {
	Byzantine float64 `json:"byzantine"`
	Slashing  float64 `json:"slashing"`
}

// Validate checks 0 < Byzantine < 1 and 0 <= Slashing < 1.
func (t Thresholds) Validate() error {
	if !(t.Byzantine > 0 && t.Byzantine < 1) {
		return errors.Wrapf(ErrInvalidThresholds, "byzantine threshold %v outside (0, 1)", t.Byzantine)
	}
	if !(t.Slashing >= 0 && t.Slashing < 1) {
		return errors.Wrapf(ErrInvalidThresholds, "slashing threshold %v outside [0, 1)", t.Slashing)
	}
	return nil
}

// String renders the pair for log fields and report file names.
func (t Thresholds) String() string {
	return fmt.Sprintf("b%.2f_s%.2f", t.Byzantine, t.Slashing)
}

// The inequalities are evaluated in integer arithmetic with thresholds
// expressed in basis points.

func (t Thresholds) byzantineBP() uint64 {
	return uint64(stdmath.Round(t.Byzantine * 10000))
}

func (t Thresholds) slashingBP() uint64 {
	return uint64(stdmath.Round(t.Slashing * 10000))
}
