package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/derive/internal/doc"
	"github.com/roach88/derive/internal/identity"
	"github.com/roach88/derive/internal/testutil"
)

func loanRules(t *testing.T, logger Logger) Rule {
	return LogTo(logger, Shape(
		F("advance", MaximumValueOf(Path("aquisitionPrice"))),
		F("advancePercent", Chain(
			Computed(func(d doc.Value) (doc.Value, error) {
				return doc.Number(num(t, d, "advance") * 100 / num(t, d, "aquisitionPrice")), nil
			}),
			MaximumValue(100),
		)),
		F("approved", When(Any(changed("advance"), changed("interestRate")), Constant(doc.Bool(false)))),
		F("person", Scope(Shape(
			F("fullName", When(PropertiesChanged(Fields("name", "surname")),
				Computed(func(d doc.Value) (doc.Value, error) {
					name, _ := doc.Get(d, "name")
					surname, _ := doc.Get(d, "surname")
					return doc.String(string(surname.(doc.String)) + " " + string(name.(doc.String))), nil
				}))),
		))),
	))
}

func TestComposed_LoanReadme(t *testing.T) {
	var rec testutil.Recorder[Change]
	rule := loanRules(t, &rec)

	original := testutil.Object(t, `{
		"aquisitionPrice": 100, "interestRate": 0.05, "advance": 10, "approved": true,
		"person": {"name": "Doe", "surname": "John"}
	}`)
	person := original.Lookup("person").(*doc.Object)
	changedModel := original.WithAll(
		doc.P("advance", doc.Int(20)),
		doc.P("person", person.With("name", doc.String("Smith"))),
	)

	result, err := Apply(rule, changedModel, original)
	require.NoError(t, err)

	want := testutil.JSON(t, `{
		"aquisitionPrice": 100, "interestRate": 0.05, "advance": 20, "approved": false,
		"advancePercent": 20,
		"person": {"name": "Smith", "surname": "John", "fullName": "John Smith"}
	}`)
	assert.True(t, doc.Equal(want, result), "got %s", mustJSON(t, result))

	paths := make([]string, 0, rec.Len())
	for _, c := range rec.Entries() {
		paths = append(paths, c.PathString())
	}
	assert.ElementsMatch(t, []string{"advancePercent", "approved", "person.fullName"}, paths)
}

func TestComposed_LoanAdvanceClampedToPrice(t *testing.T) {
	rule := loanRules(t, LoggerFunc(func(Change) {}))
	original := testutil.Object(t, `{"aquisitionPrice": 100, "interestRate": 0.05, "advance": 10, "approved": true, "person": {"name": "a", "surname": "b"}}`)

	result, err := Apply(rule, original.With("advance", doc.Int(250)), original)
	require.NoError(t, err)

	obj := result.(*doc.Object)
	assert.Equal(t, doc.Int(100), obj.Lookup("advance"))
	assert.Equal(t, doc.Int(100), obj.Lookup("advancePercent"), "percent uses the unclamped advance of this pass, then is clamped")
}

func circularRules() Rule {
	return Shape(
		F("a", When(changed("b"), copyOf("b"))),
		F("b", When(changed("a"), copyOf("a"))),
	)
}

func TestComposed_CircularOneFieldChanged(t *testing.T) {
	original := testutil.Object(t, `{"a":1,"b":1}`)

	testCases := []struct {
		name    string
		changed *doc.Object
	}{
		{"a changed", original.With("a", doc.Int(2))},
		{"b changed", original.With("b", doc.Int(2))},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := Apply(circularRules(), tc.changed, original)
			require.NoError(t, err)
			assert.True(t, doc.Equal(testutil.JSON(t, `{"a":2,"b":2}`), result))
		})
	}
}

func TestComposed_CircularNoFieldChanged(t *testing.T) {
	original := testutil.Object(t, `{"a":1,"b":2}`)

	result, err := Apply(circularRules(), original, original)
	require.NoError(t, err)
	assert.Same(t, original, result)

	copied := original.WithAll()
	result, err = Apply(circularRules(), copied, original)
	require.NoError(t, err)
	assert.Same(t, copied, result, "a shallow copy with equal scalars is untouched")
}

func TestComposed_CircularBothFieldsChanged(t *testing.T) {
	original := testutil.Object(t, `{"a":1,"b":1}`)

	result, err := Apply(circularRules(), original.WithAll(doc.P("a", doc.Int(2)), doc.P("b", doc.Int(3))), original)
	require.NoError(t, err)
	assert.True(t, doc.Equal(testutil.JSON(t, `{"a":3,"b":2}`), result), "each field reads the input, not its sibling's new value")
}

func TestComposed_CascadeNeedsSecondPass(t *testing.T) {
	rule := Shape(
		F("a", plus(t, "a", 1)),
		F("b", When(changed("a"), copyOf("a"))),
	)
	original := testutil.Object(t, `{"a":1,"b":0}`)
	changedModel := original.WithAll()

	result, err := Apply(rule, changedModel, original)
	require.NoError(t, err)
	result2, err := Apply(rule, result, changedModel)
	require.NoError(t, err)

	assert.True(t, doc.Equal(testutil.JSON(t, `{"a":2,"b":0}`), result))
	assert.True(t, doc.Equal(testutil.JSON(t, `{"a":3,"b":2}`), result2))
}

func itemRules(t *testing.T) Rule {
	return Items(Scope(Shape(
		F("b", When(changed("a"), plus(t, "a", 100))),
	)))
}

func TestComposed_ItemsWithoutIdentities(t *testing.T) {
	original := testutil.JSON(t, `[{"a":1,"b":2}]`)
	changedModel := doc.NewArray(original.(*doc.Array).At(0).(*doc.Object).With("a", doc.Int(3)))

	result, err := Apply(itemRules(t), changedModel, original)
	require.NoError(t, err)
	assert.True(t, doc.Equal(testutil.JSON(t, `[{"a":3,"b":103}]`), result))
}

func newManager(tokens ...string) *identity.Manager {
	return identity.NewManager(identity.WithGenerator(testutil.NewFixedTokens(tokens...)))
}

func TestComposed_ItemsWithIdentities(t *testing.T) {
	m := newManager("u1")
	original := m.Ensure(testutil.JSON(t, `[{"a":1,"b":2}]`)).(*doc.Array)
	changedModel := doc.NewArray(original.At(0).(*doc.Object).With("a", doc.Int(3)))

	result, err := Apply(itemRules(t), changedModel, original)
	require.NoError(t, err)
	assert.True(t, doc.Equal(testutil.JSON(t, `[{"a":3,"b":103,"_uid":"u1"}]`), result))
}

func TestComposed_ItemsDeleteUnchanged(t *testing.T) {
	m := newManager("u1", "u2")
	original := m.Ensure(testutil.JSON(t, `[{"a":6,"b":7},{"a":1,"b":2}]`)).(*doc.Array)
	second := original.At(1)
	changedModel := doc.NewArray(second)

	result, err := Apply(itemRules(t), changedModel, original)
	require.NoError(t, err)
	assert.Same(t, changedModel, result)
	assert.Same(t, second, result.(*doc.Array).At(0))
}

func TestComposed_ItemsDeleteWithRule(t *testing.T) {
	m := newManager("u1", "u2")
	original := m.Ensure(testutil.JSON(t, `[{"a":6,"b":7},{"a":1,"b":2}]`)).(*doc.Array)
	changedModel := doc.NewArray(original.At(1).(*doc.Object).With("a", doc.Int(2)))

	result, err := Apply(itemRules(t), changedModel, original)
	require.NoError(t, err)
	assert.True(t, doc.Equal(testutil.JSON(t, `[{"a":2,"b":102,"_uid":"u2"}]`), result),
		"matched by identity, not by index 0")
}

func TestComposed_ItemsInsertBeforeTaggedElement(t *testing.T) {
	m := newManager("u1", "u2")
	original := m.Ensure(testutil.JSON(t, `[{"a":6,"b":7}]`)).(*doc.Array)
	old := original.At(0)
	changedModel := m.Ensure(doc.NewArray(testutil.JSON(t, `{"a":1,"b":2}`), old)).(*doc.Array)

	result, err := Apply(itemRules(t), changedModel, original)
	require.NoError(t, err)

	arr := result.(*doc.Array)
	require.Equal(t, 2, arr.Len())
	assert.True(t, doc.Equal(testutil.JSON(t, `{"a":1,"b":101,"_uid":"u2"}`), arr.At(0)))
	assert.Same(t, old, arr.At(1))
}

func mustJSON(t testing.TB, v doc.Value) string {
	t.Helper()
	data, err := doc.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
