// Package collate implements CouchDB's total order over arbitrary JSON
// values and the byte-order-preserving string encoding that lets an
// ordinary byte-sorted key/value store reproduce that order.
//
// Values are represented the way encoding/json decodes into interface{}:
// nil, bool, float64, string, []interface{}, map[string]interface{}.
package collate

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Type ranks, low to high: null, false, true, numbers, strings, arrays,
// objects.
const (
	rankNull   = 1
	rankBool   = 2
	rankNumber = 3
	rankString = 4
	rankArray  = 5
	rankObject = 6
)

func typeRank(v interface{}) int {
	switch vv := v.(type) {
	case nil:
		return rankNull
	case bool:
		return rankBool
	case float64, int, int64, float32:
		_ = vv
		return rankNumber
	case string:
		return rankString
	case []interface{}:
		return rankArray
	case map[string]interface{}:
		return rankObject
	default:
		panic(fmt.Sprintf("collate: unsupported value type %T", v))
	}
}

func asFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		panic(fmt.Sprintf("collate: not a number: %T", v))
	}
}

// Compare implements the total order of §4.3: returns <0 if a sorts before
// b, 0 if equal, >0 if a sorts after b.
func Compare(a, b interface{}) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch ra {
	case rankNull:
		return 0
	case rankBool:
		ab, bb := a.(bool), b.(bool)
		if ab == bb {
			return 0
		}
		if !ab {
			return -1
		}
		return 1
	case rankNumber:
		an, bn := asFloat64(a), asFloat64(b)
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankArray:
		return compareArrays(a.([]interface{}), b.([]interface{}))
	case rankObject:
		return compareObjects(a.(map[string]interface{}), b.(map[string]interface{}))
	}
	return 0
}

func compareArrays(a, b []interface{}) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareLen(len(a), len(b))
}

func compareObjects(a, b map[string]interface{}) int {
	ak, bk := sortedKeys(a), sortedKeys(b)
	for i := 0; i < len(ak) && i < len(bk); i++ {
		if c := strings.Compare(ak[i], bk[i]); c != 0 {
			return c
		}
		if c := Compare(a[ak[i]], b[bk[i]]); c != 0 {
			return c
		}
	}
	return compareLen(len(ak), len(bk))
}

func compareLen(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToIndexableString encodes v into a byte string such that bytewise
// comparison of two encodings reproduces Compare's order.
func ToIndexableString(v interface{}) string {
	var b strings.Builder
	encode(&b, v)
	return b.String()
}

func encode(b *strings.Builder, v interface{}) {
	switch vv := v.(type) {
	case nil:
		b.WriteByte('1')
	case bool:
		b.WriteByte('2')
		if vv {
			b.WriteByte('T')
		} else {
			b.WriteByte('F')
		}
	case float64, float32, int, int64:
		b.WriteByte('3')
		b.WriteString(encodeNumber(asFloat64(v)))
	case string:
		b.WriteByte('4')
		b.WriteString(vv)
	case []interface{}:
		b.WriteByte('5')
		for i, e := range vv {
			if i > 0 {
				b.WriteByte(0)
			}
			encode(b, e)
		}
	case map[string]interface{}:
		b.WriteByte('6')
		keys := sortedKeys(vv)
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(0)
			}
			b.WriteString(k)
			b.WriteByte(0)
			encode(b, vv[k])
		}
	default:
		panic(fmt.Sprintf("collate: unsupported value type %T", v))
	}
}

// encodeNumber implements §4.3's number encoding: a sign/magnitude prefix
// followed by a zero-padded decimal exponent and a decimal mantissa, chosen
// so that bytewise order of the encoded strings matches IEEE-754 value
// order, including across sign.
func encodeNumber(x float64) string {
	if x == 0 {
		return "1"
	}
	neg := x < 0
	mantissa, exp := decompose(math.Abs(x))
	if !neg {
		return "2" + fmt.Sprintf("%05d", exp+10000) + formatMantissa(mantissa)
	}
	return "0" + fmt.Sprintf("%05d", 10000-exp) + formatMantissa(10-mantissa)
}

// decompose writes abs (abs > 0) as mantissa * 10^exp with mantissa in
// [1, 10).
func decompose(abs float64) (mantissa float64, exp int) {
	s := strconv.FormatFloat(abs, 'e', -1, 64)
	parts := strings.SplitN(s, "e", 2)
	mantissa, _ = strconv.ParseFloat(parts[0], 64)
	exp, _ = strconv.Atoi(parts[1])
	return mantissa, exp
}

// formatMantissa renders m (0 < m <= 10) as a decimal string with a
// trailing "." and at least one digit, trimming insignificant trailing
// zeros so equal-prefix mantissas of different precision still compare
// correctly byte-wise.
func formatMantissa(m float64) string {
	s := strconv.FormatFloat(m, 'f', 17, 64)
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}
