// internal/storage/values.go
package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/google/uuid"
)

// decimalScale is the number of fractional digits decimal columns are
// rendered with.
const decimalScale = 2

// prepareCreate returns the column values of a new row in table order.
// Generated columns are filled in, defaults are applied to omitted fields
// and a database assigned identifier is left out.
func prepareCreate(res *model.Resource, values map[string]any, now time.Time) (*model.Row, error) {
	row := model.NewRow()
	for _, f := range res.Fields {
		switch {
		case f.Name == res.IDField && res.AutoID:
			continue
		case f.AutoUUID:
			row.Set(f.Name, uuid.NewString())
		case f.AutoNow || f.AutoNowAdd:
			row.Set(f.Name, now)
		case f.ReadOnly:
			continue
		default:
			v, ok := values[f.Name]
			if !ok {
				if f.Default == nil {
					continue
				}
				v = f.Default
			}
			cv, err := coerce(f, v)
			if err != nil {
				return nil, err
			}
			row.Set(f.Name, cv)
		}
	}
	if !res.AutoID {
		if v, ok := row.Get(res.IDField); !ok || v == nil {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidValue, res.IDField)
		}
	}
	return row, nil
}

// prepareUpdate returns the columns to change. The identifier is immutable
// and read-only columns other than the modification time are left alone.
func prepareUpdate(res *model.Resource, values map[string]any, now time.Time) (*model.Row, error) {
	row := model.NewRow()
	for _, f := range res.Fields {
		if f.AutoNow {
			row.Set(f.Name, now)
			continue
		}
		if f.ReadOnly || f.Name == res.IDField {
			continue
		}
		v, ok := values[f.Name]
		if !ok {
			continue
		}
		cv, err := coerce(f, v)
		if err != nil {
			return nil, err
		}
		row.Set(f.Name, cv)
	}
	return row, nil
}

// coerce converts a decoded JSON value into the Go type storage uses for
// the field's kind: int64, string, bool, decimal string, UUID string or
// time.Time.
func coerce(f model.Field, v any) (any, error) {
	if v == nil {
		if f.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s may not be null", ErrInvalidValue, f.Name)
	}

	invalid := func() error {
		return fmt.Errorf("%w: %s must be %s, got %v", ErrInvalidValue, f.Name, f.Kind, v)
	}

	switch f.Kind {
	case model.KindInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n != math.Trunc(n) {
				return nil, invalid()
			}
			return int64(n), nil
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, invalid()
			}
			return i, nil
		case string:
			i, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, invalid()
			}
			return i, nil
		}
	case model.KindString:
		if s, ok := v.(string); ok {
			if f.MaxLength > 0 && len([]rune(s)) > f.MaxLength {
				return nil, fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidValue, f.Name, f.MaxLength)
			}
			return s, nil
		}
	case model.KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case model.KindDecimal:
		d, ok := decimal(v)
		if !ok {
			return nil, invalid()
		}
		return d, nil
	case model.KindUUID:
		if s, ok := v.(string); ok {
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, invalid()
			}
			return id.String(), nil
		}
	case model.KindTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, invalid()
			}
			return parsed.UTC(), nil
		}
	}
	return nil, invalid()
}

// decimal renders a number or numeric string with decimalScale digits.
// Values with more fraction digits than that are rejected, not rounded.
func decimal(v any) (string, bool) {
	r := new(big.Rat)
	switch n := v.(type) {
	case string:
		if _, ok := r.SetString(strings.TrimSpace(n)); !ok {
			return "", false
		}
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return "", false
		}
		// the shortest decimal form, so 0.1 stays 0.1
		if _, ok := r.SetString(strconv.FormatFloat(n, 'f', -1, 64)); !ok {
			return "", false
		}
	case json.Number:
		if _, ok := r.SetString(n.String()); !ok {
			return "", false
		}
	case int:
		r.SetInt64(int64(n))
	case int64:
		r.SetInt64(n)
	default:
		return "", false
	}
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(decimalScale), nil)))
	if !scaled.IsInt() {
		return "", false
	}
	return r.FloatString(decimalScale), true
}

// copyRow returns a shallow copy of row.
func copyRow(row *model.Row) *model.Row {
	out := model.NewRow()
	for pair := row.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value)
	}
	return out
}
