package evalreport

import (
	"fmt"
	"strconv"
	"strings"
)

// Threshold is a parsed criterion expression such as ">=0.75".
type Threshold struct {
	Operator string
	Value    float64
}

// operators are checked longest first so ">=" is never read as ">".
var operators = []string{">=", "<=", "==", "!=", ">", "<"}

func ParseThreshold(expression string) (Threshold, error) {
	trimmed := strings.TrimSpace(expression)
	for _, operator := range operators {
		if !strings.HasPrefix(trimmed, operator) {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(trimmed[len(operator):]), 64)
		if err != nil {
			return Threshold{}, fmt.Errorf("invalid threshold value in %q: %w", expression, err)
		}
		return Threshold{Operator: operator, Value: value}, nil
	}
	return Threshold{}, fmt.Errorf("invalid threshold format: %q", expression)
}

// Check reports whether score satisfies the threshold.
func (threshold Threshold) Check(score float64) bool {
	switch threshold.Operator {
	case ">":
		return score > threshold.Value
	case "<":
		return score < threshold.Value
	case ">=":
		return score >= threshold.Value
	case "<=":
		return score <= threshold.Value
	case "==":
		return score == threshold.Value
	case "!=":
		return score != threshold.Value
	default:
		return false
	}
}
