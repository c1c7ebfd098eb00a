package conditions

import (
	"strconv"

	"github.com/nathoo/fablecore/engine/state"
	"github.com/nathoo/fablecore/types"
)

// Eval evaluates a single condition against the current state.
// Unknown condition types are false.
func Eval(c types.Condition, s *types.State, defs *state.Defs) bool {
	switch c.Type {
	case "", "flag":
		return Evaluate(c.Expr, func(name string) bool { return state.FlagTruthy(s, name) })

	case "flag_is":
		flag := str(c.Params["flag"])
		if op := str(c.Params["op"]); op != "" {
			return Compare(state.FlagNumber(s, flag), op, Number(c.Params["value"]))
		}
		v, ok := state.GetFlag(s, flag)
		if !ok {
			return c.Params["value"] == nil
		}
		return equal(v, c.Params["value"])

	case "score":
		return Compare(float64(s.Score), str(c.Params["op"]), Number(c.Params["value"]))

	case "achievement":
		return state.HasAchievement(s, str(c.Params["id"]))

	case "path":
		return s.Path == str(c.Params["path"])

	case "factor":
		return Compare(s.Factors[str(c.Params["name"])], str(c.Params["op"]), Number(c.Params["value"]))

	case "time":
		secs := float64(s.Clock) / 1000
		return Compare(secs, str(c.Params["op"]), Number(c.Params["seconds"]))

	case "has_item":
		return state.HasItem(s, str(c.Params["item"]))

	case "in_room":
		return state.PlayerLocation(s) == str(c.Params["room"])

	case "prop_is":
		entity := str(c.Params["entity"])
		prop := str(c.Params["prop"])
		expected := c.Params["value"]
		actual, ok := state.GetEntityProp(s, defs, entity, prop)
		if !ok {
			return expected == nil
		}
		return equal(actual, expected)

	case "puzzle_solved":
		return state.PuzzleState(s, str(c.Params["puzzle"])).Completed

	case "not":
		if c.Inner == nil {
			return false
		}
		return !Eval(*c.Inner, s, defs)

	default:
		return false
	}
}

// All returns true if all conditions pass (AND logic).
// An empty condition list is vacuously true.
func All(conds []types.Condition, s *types.State, defs *state.Defs) bool {
	for _, c := range conds {
		if !Eval(c, s, defs) {
			return false
		}
	}
	return true
}

// Compare applies a comparison operator. An empty operator means ">=".
func Compare(a float64, op string, b float64) bool {
	switch op {
	case ">", "gt":
		return a > b
	case "", ">=", "gte", "at_least":
		return a >= b
	case "<", "lt":
		return a < b
	case "<=", "lte", "at_most":
		return a <= b
	case "==", "=", "eq":
		return a == b
	case "!=", "~=", "ne":
		return a != b
	default:
		return false
	}
}

// Number converts a Lua/JSON number (or numeric string) to float64.
func Number(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

// equal compares values loosely so 3 (int) equals 3.0 (Lua number).
func equal(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		return Number(a) == Number(b)
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	}
	return false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int64, float64:
		return true
	}
	return false
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
