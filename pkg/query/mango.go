// Package query implements Mango selector evaluation and map/reduce
// views over an in-memory document set. Both scan every document; no
// persistent index is built.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gocouch/gocouch/pkg/collate"
)

// Selector is a decoded Mango selector: a JSON object interpreted as an
// implicit conjunction of its fields.
type Selector map[string]interface{}

// Match evaluates selector against doc (a decoded document body, not
// including underscore metadata fields).
func Match(selector Selector, doc map[string]interface{}) bool {
	for key, cond := range selector {
		switch key {
		case "$and":
			if !matchAll(cond, doc) {
				return false
			}
		case "$or":
			if !matchAny(cond, doc) {
				return false
			}
		case "$nor":
			if matchAny(cond, doc) {
				return false
			}
		case "$not":
			sub, ok := cond.(map[string]interface{})
			if !ok || Match(Selector(sub), doc) {
				return false
			}
		default:
			if !matchField(key, cond, doc) {
				return false
			}
		}
	}
	return true
}

func matchAll(cond interface{}, doc map[string]interface{}) bool {
	list, ok := cond.([]interface{})
	if !ok {
		return false
	}
	for _, s := range list {
		sub, ok := s.(map[string]interface{})
		if !ok || !Match(Selector(sub), doc) {
			return false
		}
	}
	return true
}

func matchAny(cond interface{}, doc map[string]interface{}) bool {
	list, ok := cond.([]interface{})
	if !ok {
		return false
	}
	for _, s := range list {
		sub, ok := s.(map[string]interface{})
		if ok && Match(Selector(sub), doc) {
			return true
		}
	}
	return false
}

// matchField evaluates one field selector. cond is either a literal
// (implicit $eq), an operator object (every key starting with "$"), or
// a plain nested object compared for exact equality.
func matchField(path string, cond interface{}, doc map[string]interface{}) bool {
	value, exists := getField(doc, path)

	if obj, ok := cond.(map[string]interface{}); ok && isOperatorObject(obj) {
		for op, arg := range obj {
			if !matchOperator(op, arg, value, exists) {
				return false
			}
		}
		return true
	}

	return exists && collate.Compare(value, cond) == 0
}

func isOperatorObject(obj map[string]interface{}) bool {
	if len(obj) == 0 {
		return false
	}
	for k := range obj {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func matchOperator(op string, arg interface{}, value interface{}, exists bool) bool {
	switch op {
	case "$eq":
		return exists && collate.Compare(value, arg) == 0
	case "$ne":
		return !exists || collate.Compare(value, arg) != 0
	case "$gt":
		return exists && collate.Compare(value, arg) > 0
	case "$gte":
		return exists && collate.Compare(value, arg) >= 0
	case "$lt":
		return exists && collate.Compare(value, arg) < 0
	case "$lte":
		return exists && collate.Compare(value, arg) <= 0
	case "$exists":
		want, _ := arg.(bool)
		return exists == want
	case "$in":
		if !exists {
			return false
		}
		list, _ := arg.([]interface{})
		for _, item := range list {
			if collate.Compare(value, item) == 0 {
				return true
			}
		}
		return false
	case "$nin":
		if !exists {
			return true
		}
		list, _ := arg.([]interface{})
		for _, item := range list {
			if collate.Compare(value, item) == 0 {
				return false
			}
		}
		return true
	case "$type":
		return exists && typeName(value) == arg
	case "$regex":
		s, ok := value.(string)
		pattern, okp := arg.(string)
		if !ok || !okp {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(s)
	case "$size":
		arr, ok := value.([]interface{})
		n, okn := toInt(arg)
		return ok && okn && len(arr) == n
	case "$all":
		arr, ok := value.([]interface{})
		want, okw := arg.([]interface{})
		if !ok || !okw {
			return false
		}
		for _, w := range want {
			found := false
			for _, v := range arr {
				if collate.Compare(v, w) == 0 {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case "$elemMatch":
		arr, ok := value.([]interface{})
		sub, oks := arg.(map[string]interface{})
		if !ok || !oks {
			return false
		}
		for _, el := range arr {
			elObj, ok := el.(map[string]interface{})
			if ok && Match(Selector(sub), elObj) {
				return true
			}
		}
		return false
	case "$mod":
		pair, ok := arg.([]interface{})
		if !ok || len(pair) != 2 {
			return false
		}
		divisor, ok1 := toInt(pair[0])
		remainder, ok2 := toInt(pair[1])
		n, ok3 := toInt(value)
		return exists && ok1 && ok2 && ok3 && divisor != 0 && n%divisor == remainder
	case "$and", "$or", "$nor", "$not":
		// Logical operators are scoped to the top level of a selector, not
		// nested under a field path.
		return false
	default:
		return false
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, int, int64:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

// getField resolves a dotted path (e.g. "address.city") against a
// decoded document, descending through nested objects only.
func getField(doc map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = doc
	for _, part := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}
