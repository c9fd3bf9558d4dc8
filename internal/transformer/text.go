package transformer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"

	"dsextract/pkg/records"
)

// ErrUnexpectedType reports a value whose kind cannot be rendered into the
// target column.
var ErrUnexpectedType = errors.New("unexpected field type")

const (
	listSep   = "; "
	memberSep = ", "
)

// Text renders v as column text. Null and NaN render as "". Binary payloads
// and types the shard reader could not map fail with ErrUnexpectedType.
func Text(v records.Value) (string, error) {
	switch v.Kind {
	case records.KindNull:
		return "", nil
	case records.KindText:
		return cleanText(v.Str), nil
	case records.KindInt:
		return strconv.FormatInt(v.Int, 10), nil
	case records.KindUint:
		return strconv.FormatUint(v.Uint, 10), nil
	case records.KindFloat:
		if math.IsNaN(v.Float) {
			return "", nil
		}
		return strconv.FormatFloat(v.Float, 'f', -1, 64), nil
	case records.KindBool:
		return strconv.FormatBool(v.Bool), nil
	case records.KindTime:
		return v.Time.Format(time.RFC3339Nano), nil
	case records.KindList:
		parts := make([]string, 0, len(v.Items))
		for _, it := range v.Items {
			s, err := Text(it)
			if err != nil {
				return "", err
			}
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, listSep), nil
	case records.KindStruct:
		parts := make([]string, 0, len(v.Fields))
		for _, f := range v.Fields {
			if f.Value.IsNull() {
				continue
			}
			s, err := Text(f.Value)
			if err != nil {
				return "", fmt.Errorf("%s: %w", f.Name, err)
			}
			parts = append(parts, f.Name+": "+s)
		}
		return strings.Join(parts, memberSep), nil
	case records.KindUnsupported:
		return "", fmt.Errorf("%w: %s", ErrUnexpectedType, v.Type)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnexpectedType, v.Kind)
	}
}

// cleanText replaces ill-formed UTF-8 with U+FFFD. Valid text is returned
// byte for byte.
func cleanText(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	out, _, err := transform.String(runes.ReplaceIllFormed(), s)
	if err != nil {
		return strings.ToValidUTF8(s, string(utf8.RuneError))
	}
	return out
}
