package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/portsql/pkg/adapter"
	"github.com/leapstack-labs/portsql/pkg/dialects/oracle"
	"github.com/leapstack-labs/portsql/pkg/dialects/postgres"
)

func TestSplitIn(t *testing.T) {
	conds := []Condition{
		In("id", []int{1, 2, 3, 4, 5}),
		Or(Eq("status", 1), NotIn("type", []string{"a", "b", "c"})),
		In("small", []int{1}),
	}

	got := SplitIn(conds, 2)

	assert.Equal(t, Condition{Group: &Group{Conjunction: "OR", Conditions: []Condition{
		{Field: "id", Op: OpIn, Value: []any{1, 2}},
		{Field: "id", Op: OpIn, Value: []any{3, 4}},
		{Field: "id", Op: OpIn, Value: []any{5}},
	}}}, got[0])

	assert.Equal(t, Condition{Group: &Group{Conjunction: "AND", Conditions: []Condition{
		{Field: "type", Op: OpNotIn, Value: []any{"a", "b"}},
		{Field: "type", Op: OpNotIn, Value: []any{"c"}},
	}}}, got[1].Group.Conditions[1])

	assert.Equal(t, conds[2], got[2])

	// input untouched
	assert.Equal(t, NotIn("type", []string{"a", "b", "c"}), conds[1].Group.Conditions[1])
	assert.Equal(t, conds, SplitIn(conds, 0))
}

func TestSplitIn_ByteSliceIsOneValue(t *testing.T) {
	c := In("hash", []byte("abcdef"))
	assert.Equal(t, []Condition{c}, SplitIn([]Condition{c}, 2))
}

func TestInMaxSize(t *testing.T) {
	assert.Equal(t, 999, InMaxSize(oracle.Oracle))
	assert.Equal(t, 0, InMaxSize(postgres.Postgres))

	t.Setenv(adapter.InMaxSizeEnv, "10")
	assert.Equal(t, 10, InMaxSize(oracle.Oracle))
	assert.Equal(t, 10, InMaxSize(postgres.Postgres))

	t.Setenv(adapter.InMaxSizeEnv, "lots")
	assert.Equal(t, 999, InMaxSize(oracle.Oracle))
}
