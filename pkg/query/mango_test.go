package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func doc(fields map[string]interface{}) map[string]interface{} { return fields }

func TestImplicitEquality(t *testing.T) {
	d := doc(map[string]interface{}{"name": "Bob", "age": 30.0})
	assert.True(t, Match(Selector{"name": "Bob"}, d))
	assert.False(t, Match(Selector{"name": "Alice"}, d))
}

func TestExplicitEq(t *testing.T) {
	d := doc(map[string]interface{}{"age": 30.0})
	assert.True(t, Match(Selector{"age": map[string]interface{}{"$eq": 30.0}}, d))
	assert.False(t, Match(Selector{"age": map[string]interface{}{"$eq": 31.0}}, d))
}

func TestComparisonOperators(t *testing.T) {
	d := doc(map[string]interface{}{"score": 75.0})
	assert.True(t, Match(Selector{"score": map[string]interface{}{"$gt": 50.0}}, d))
	assert.True(t, Match(Selector{"score": map[string]interface{}{"$gte": 75.0}}, d))
	assert.False(t, Match(Selector{"score": map[string]interface{}{"$lt": 75.0}}, d))
	assert.True(t, Match(Selector{"score": map[string]interface{}{"$lte": 75.0}}, d))
	assert.True(t, Match(Selector{"score": map[string]interface{}{"$ne": 1.0}}, d))
}

func TestInNin(t *testing.T) {
	d := doc(map[string]interface{}{"color": "red"})
	assert.True(t, Match(Selector{"color": map[string]interface{}{"$in": []interface{}{"red", "blue"}}}, d))
	assert.False(t, Match(Selector{"color": map[string]interface{}{"$in": []interface{}{"green"}}}, d))
	assert.True(t, Match(Selector{"color": map[string]interface{}{"$nin": []interface{}{"green"}}}, d))
}

func TestExists(t *testing.T) {
	d := doc(map[string]interface{}{"a": 1.0})
	assert.True(t, Match(Selector{"a": map[string]interface{}{"$exists": true}}, d))
	assert.True(t, Match(Selector{"b": map[string]interface{}{"$exists": false}}, d))
	assert.False(t, Match(Selector{"b": map[string]interface{}{"$exists": true}}, d))
}

func TestTypeOperator(t *testing.T) {
	d := doc(map[string]interface{}{"tags": []interface{}{"a"}, "n": 1.0, "s": "x", "b": true, "o": map[string]interface{}{}})
	assert.True(t, Match(Selector{"tags": map[string]interface{}{"$type": "array"}}, d))
	assert.True(t, Match(Selector{"n": map[string]interface{}{"$type": "number"}}, d))
	assert.True(t, Match(Selector{"s": map[string]interface{}{"$type": "string"}}, d))
	assert.True(t, Match(Selector{"b": map[string]interface{}{"$type": "boolean"}}, d))
	assert.True(t, Match(Selector{"o": map[string]interface{}{"$type": "object"}}, d))
}

func TestRegex(t *testing.T) {
	d := doc(map[string]interface{}{"name": "Bobby"})
	assert.True(t, Match(Selector{"name": map[string]interface{}{"$regex": "^Bob"}}, d))
	assert.False(t, Match(Selector{"name": map[string]interface{}{"$regex": "^Alice"}}, d))
}

func TestSizeAndAll(t *testing.T) {
	d := doc(map[string]interface{}{"tags": []interface{}{"x", "y", "z"}})
	assert.True(t, Match(Selector{"tags": map[string]interface{}{"$size": 3.0}}, d))
	assert.True(t, Match(Selector{"tags": map[string]interface{}{"$all": []interface{}{"x", "z"}}}, d))
	assert.False(t, Match(Selector{"tags": map[string]interface{}{"$all": []interface{}{"x", "q"}}}, d))
}

func TestElemMatch(t *testing.T) {
	d := doc(map[string]interface{}{"items": []interface{}{
		map[string]interface{}{"sku": "a", "qty": 1.0},
		map[string]interface{}{"sku": "b", "qty": 5.0},
	}})
	sel := Selector{"items": map[string]interface{}{"$elemMatch": map[string]interface{}{"sku": "b", "qty": map[string]interface{}{"$gt": 2.0}}}}
	assert.True(t, Match(sel, d))

	sel2 := Selector{"items": map[string]interface{}{"$elemMatch": map[string]interface{}{"sku": "b", "qty": map[string]interface{}{"$gt": 10.0}}}}
	assert.False(t, Match(sel2, d))
}

func TestModOperator(t *testing.T) {
	d := doc(map[string]interface{}{"n": 10.0})
	assert.True(t, Match(Selector{"n": map[string]interface{}{"$mod": []interface{}{2.0, 0.0}}}, d))
	assert.False(t, Match(Selector{"n": map[string]interface{}{"$mod": []interface{}{3.0, 0.0}}}, d))
}

func TestLogicalAndOrNorNot(t *testing.T) {
	d := doc(map[string]interface{}{"age": 30.0, "active": true})

	assert.True(t, Match(Selector{"$and": []interface{}{
		map[string]interface{}{"age": map[string]interface{}{"$gt": 20.0}},
		map[string]interface{}{"active": true},
	}}, d))

	assert.True(t, Match(Selector{"$or": []interface{}{
		map[string]interface{}{"age": 99.0},
		map[string]interface{}{"active": true},
	}}, d))

	assert.False(t, Match(Selector{"$nor": []interface{}{
		map[string]interface{}{"active": true},
	}}, d))

	assert.True(t, Match(Selector{"$not": map[string]interface{}{"age": 99.0}}, d))
}

func TestDottedPath(t *testing.T) {
	d := doc(map[string]interface{}{"address": map[string]interface{}{"city": "Springfield"}})
	assert.True(t, Match(Selector{"address.city": "Springfield"}, d))
	assert.False(t, Match(Selector{"address.city": "Shelbyville"}, d))
}

func TestNestedObjectExactEquality(t *testing.T) {
	d := doc(map[string]interface{}{"loc": map[string]interface{}{"x": 1.0, "y": 2.0}})
	sel := Selector{"loc": map[string]interface{}{"x": 1.0, "y": 2.0}}
	assert.True(t, Match(sel, d))
}
