package translator

import (
	"fmt"
	"salus-bridge/internal/domain/model"

	"github.com/Knetic/govaluate"
)

// Calibrator corrects reported current temperatures with per-device
// formulas such as "x - 0.5".
type Calibrator struct {
	formulas map[string]*govaluate.EvaluableExpression
}

func NewCalibrator(formulas map[string]string) (*Calibrator, error) {
	c := &Calibrator{formulas: make(map[string]*govaluate.EvaluableExpression, len(formulas))}
	for id, formula := range formulas {
		expr, err := govaluate.NewEvaluableExpression(formula)
		if err != nil {
			return nil, fmt.Errorf("%w: temperature formula for %s: %v", model.ErrInvalidConfig, id, err)
		}
		c.formulas[id] = expr
	}
	return c, nil
}

// Apply rewrites d.CurrentTemperature when a formula exists for d.
// A nil Calibrator is a no-op.
func (c *Calibrator) Apply(d *model.Device) {
	if c == nil || d.CurrentTemperature == nil {
		return
	}
	expr, ok := c.formulas[d.ID]
	if !ok {
		return
	}
	d.CurrentTemperature = model.Float64(c.evaluate(expr, *d.CurrentTemperature))
}

// evaluate falls back to x when the formula does not produce a number.
func (c *Calibrator) evaluate(expr *govaluate.EvaluableExpression, x float64) float64 {
	result, err := expr.Evaluate(map[string]interface{}{"x": x})
	if err != nil {
		return x
	}
	if val, ok := result.(float64); ok {
		return val
	}
	return x
}
