package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/derive/internal/doc"
	"github.com/roach88/derive/internal/testutil"
)

func TestApply_NoChangeReturnsSameReference(t *testing.T) {
	rule := Shape(
		F("total", When(changed("price"), copyOf("price"))),
		F("lines", Items(Scope(Shape(
			F("sum", When(changed("qty"), copyOf("qty"))),
		)))),
		F("meta", Scope(Shape(
			F("label", When(changed("name"), copyOf("name"))),
		))),
	)
	d := testutil.JSON(t, `{"price":3,"total":3,"lines":[{"qty":1,"sum":1,"_uid":"l1"}],"meta":{"name":"x"}}`)

	result, err := Apply(rule, d, d)
	require.NoError(t, err)
	assert.Same(t, d, result)
}

func TestApply_ReferencePreservation(t *testing.T) {
	rule := circularRules()

	result, err := Apply(rule, testutil.JSON(t, `{"a":2,"b":1}`), testutil.JSON(t, `{"a":1,"b":1}`))
	require.NoError(t, err)
	assert.True(t, doc.Equal(testutil.JSON(t, `{"a":2,"b":2}`), result))

	same := testutil.JSON(t, `{"a":1,"b":2}`)
	result, err = Apply(rule, same, same)
	require.NoError(t, err)
	assert.Same(t, same, result)
}

func TestApply_UntouchedSiblingsKeepReferences(t *testing.T) {
	rule := Shape(
		F("total", When(changed("price"), copyOf("price"))),
		F("meta", Scope(Shape(F("label", When(changed("name"), copyOf("name")))))),
	)
	prev := testutil.Object(t, `{"price":3,"total":3,"meta":{"name":"x"},"other":{"deep":[1,2]}}`)
	cur := prev.With("price", doc.Int(4))

	result, err := Apply(rule, cur, prev)
	require.NoError(t, err)

	obj := result.(*doc.Object)
	assert.Equal(t, doc.Int(4), obj.Lookup("total"))
	assert.Same(t, prev.Lookup("meta"), obj.Lookup("meta"))
	assert.Same(t, prev.Lookup("other"), obj.Lookup("other"))
	assert.Equal(t, doc.Int(3), cur.Lookup("total"), "input must not be mutated")
}

func TestApply_ShapeFieldReadsAmbientDocument(t *testing.T) {
	rule := Shape(F("sum", Computed(func(d doc.Value) (doc.Value, error) {
		return doc.Number(num(t, d, "x") + num(t, d, "y")), nil
	})))

	result, err := Apply(rule, testutil.JSON(t, `{"x":1,"y":2}`), nil)
	require.NoError(t, err)
	assert.Equal(t, doc.Int(3), result.(*doc.Object).Lookup("sum"))
}

func TestApply_ScopeNarrowsToField(t *testing.T) {
	rule := Shape(F("inner", Scope(Shape(F("y", copyOf("x"))))))

	result, err := Apply(rule, testutil.JSON(t, `{"x":"outer","inner":{"x":"inner"}}`), nil)
	require.NoError(t, err)

	inner := result.(*doc.Object).Lookup("inner").(*doc.Object)
	assert.Equal(t, doc.String("inner"), inner.Lookup("y"))
}

func TestApply_UnscopedNestedShapeKeepsParentDocument(t *testing.T) {
	rule := Shape(F("inner", Shape(F("y", copyOf("x")))))

	result, err := Apply(rule, testutil.JSON(t, `{"x":"outer","inner":{"x":"inner"}}`), nil)
	require.NoError(t, err)

	inner := result.(*doc.Object).Lookup("inner").(*doc.Object)
	assert.Equal(t, doc.String("outer"), inner.Lookup("y"))
}

func TestApply_ScopeSeenThroughLog(t *testing.T) {
	var rec testutil.Recorder[Change]
	rule := Shape(F("inner", LogTo(&rec, Scope(Shape(F("y", copyOf("x")))))))

	result, err := Apply(rule, testutil.JSON(t, `{"x":"outer","inner":{"x":"inner"}}`), nil)
	require.NoError(t, err)

	inner := result.(*doc.Object).Lookup("inner").(*doc.Object)
	assert.Equal(t, doc.String("inner"), inner.Lookup("y"))
	require.Equal(t, 1, rec.Len())
	assert.Equal(t, []string{"inner", "y"}, rec.Entries()[0].Path)
}

func TestApply_WhenFalseKeepsFieldValue(t *testing.T) {
	rule := Shape(F("b", When(changed("a"), Constant(doc.Int(0)))))
	d := testutil.Object(t, `{"a":1,"b":5}`)

	result, err := Apply(rule, d.With("b", doc.Int(6)), d)
	require.NoError(t, err)
	assert.Equal(t, doc.Int(6), result.(*doc.Object).Lookup("b"))
}

func TestApply_NoPreviousDocumentFiresEveryChangePredicate(t *testing.T) {
	rule := Shape(
		F("c", When(changed("a"), Constant(doc.String("fired")))),
		F("d", When(PropertiesChanged(Fields("a", "b")), Constant(doc.String("fired")))),
	)

	result, err := Apply(rule, testutil.JSON(t, `{"a":1,"b":1}`), nil)
	require.NoError(t, err)
	assert.True(t, doc.Equal(testutil.JSON(t, `{"a":1,"b":1,"c":"fired","d":"fired"}`), result))
}

func TestApply_NewKeysAppendInDeclarationOrder(t *testing.T) {
	rule := Shape(F("z", Constant(doc.Int(1))), F("m", Constant(doc.Int(2))))

	result, err := Apply(rule, testutil.JSON(t, `{"a":0}`), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "z", "m"}, result.(*doc.Object).Keys())
}

func TestApply_NilResultRemovesField(t *testing.T) {
	rule := Shape(F("tmp", Constant(nil)))

	result, err := Apply(rule, testutil.JSON(t, `{"a":1,"tmp":2}`), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, result.(*doc.Object).Keys())

	d := testutil.JSON(t, `{"a":1}`)
	result, err = Apply(rule, d, nil)
	require.NoError(t, err)
	assert.Same(t, d, result, "removing an absent field is no change")
}

func TestApply_ShapeOnAbsentFieldBuildsRecord(t *testing.T) {
	rule := Shape(F("summary", Shape(F("count", Constant(doc.Int(1))))))

	result, err := Apply(rule, testutil.JSON(t, `{}`), nil)
	require.NoError(t, err)
	assert.True(t, doc.Equal(testutil.JSON(t, `{"summary":{"count":1}}`), result))
}

func TestApply_ChainPipeline(t *testing.T) {
	rule := Chain(
		Computed(func(d doc.Value) (doc.Value, error) {
			return doc.Number(num(t, d, "x") * 100 / num(t, d, "y")), nil
		}),
		MaximumValue(100),
	)

	testCases := []struct {
		in   string
		want doc.Value
	}{
		{`{"x":20,"y":100}`, doc.Int(20)},
		{`{"x":200,"y":100}`, doc.Int(100)},
		{`{"x":1,"y":8}`, doc.Float(12.5)},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			result, err := Apply(rule, testutil.JSON(t, tc.in), nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, result)
		})
	}
}

func TestApply_ChainLaterStageSeesCandidateAsDocument(t *testing.T) {
	var seen []doc.Value
	rule := Shape(F("v", Chain(
		Constant(doc.Int(7)),
		Computed(func(d doc.Value) (doc.Value, error) {
			seen = append(seen, d)
			return doc.Int(8), nil
		}),
	)))

	result, err := Apply(rule, testutil.JSON(t, `{"v":1}`), nil)
	require.NoError(t, err)
	assert.Equal(t, doc.Int(8), result.(*doc.Object).Lookup("v"))
	assert.Equal(t, []doc.Value{doc.Int(7)}, seen)
}

func TestApply_EmptyChainKeepsValue(t *testing.T) {
	d := testutil.JSON(t, `{"v":1}`)
	result, err := Apply(Shape(F("v", Chain())), d, nil)
	require.NoError(t, err)
	assert.Same(t, d, result)
}

func TestApply_LogOnceForSingleChange(t *testing.T) {
	var rec testutil.Recorder[Change]
	rule := LogTo(&rec, circularRules())

	result, err := Apply(rule, testutil.JSON(t, `{"a":2,"b":1}`), testutil.JSON(t, `{"a":1,"b":1}`))
	require.NoError(t, err)

	require.Equal(t, 1, rec.Len())
	c := rec.Entries()[0]
	assert.Equal(t, "b", c.PathString())
	assert.Equal(t, doc.Int(1), c.Previous)
	assert.Equal(t, doc.Int(2), c.Next)
	assert.True(t, doc.Equal(testutil.JSON(t, `{"a":2,"b":2}`), result))
}

func TestApply_LogDoesNotAlterResult(t *testing.T) {
	cur := testutil.JSON(t, `{"a":2,"b":1}`)
	prev := testutil.JSON(t, `{"a":1,"b":1}`)

	plain, err := Apply(circularRules(), cur, prev)
	require.NoError(t, err)
	logged, err := Apply(LogTo(LoggerFunc(func(Change) {}), circularRules()), cur, prev)
	require.NoError(t, err)
	assert.True(t, doc.Equal(plain, logged))

	var rec testutil.Recorder[Change]
	same, err := Apply(LogTo(&rec, circularRules()), prev, prev)
	require.NoError(t, err)
	assert.Same(t, prev, same)
	assert.Equal(t, 0, rec.Len(), "nothing changed, nothing logged")
}

func TestApply_LogRootChangeWithoutFields(t *testing.T) {
	var rec testutil.Recorder[Change]

	result, err := Apply(LogTo(&rec, Constant(doc.Int(5))), doc.Int(4), nil)
	require.NoError(t, err)
	assert.Equal(t, doc.Int(5), result)
	require.Equal(t, 1, rec.Len())
	assert.Empty(t, rec.Entries()[0].Path)
}

func TestApply_NestedLoggersBothObserve(t *testing.T) {
	var outer, inner testutil.Recorder[Change]
	rule := LogTo(&outer, Shape(F("p", LogTo(&inner, Scope(Shape(F("q", Constant(doc.Int(1)))))))))

	_, err := Apply(rule, testutil.JSON(t, `{"p":{}}`), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, outer.Len())
	assert.Equal(t, 1, inner.Len())
	assert.Equal(t, "p.q", outer.Entries()[0].PathString())
}

func TestApply_ItemsLogPathUsesIdentity(t *testing.T) {
	var rec testutil.Recorder[Change]
	rule := LogTo(&rec, Items(Scope(Shape(F("b", Constant(doc.Int(1)))))))

	_, err := Apply(rule, testutil.JSON(t, `[{"_uid":"u9"},{"x":1}]`), nil)
	require.NoError(t, err)

	var paths []string
	for _, c := range rec.Entries() {
		paths = append(paths, c.PathString())
	}
	assert.Equal(t, []string{"u9.b", "1.b"}, paths)
}

func TestApply_ItemsOrderFollowsCurrent(t *testing.T) {
	prev := testutil.JSON(t, `[{"_uid":"a","v":1},{"_uid":"b","v":2}]`).(*doc.Array)
	cur := doc.NewArray(prev.At(1), prev.At(0))
	rule := Items(Scope(Shape(F("w", When(changed("v"), copyOf("v"))))))

	result, err := Apply(rule, cur, prev)
	require.NoError(t, err)
	assert.Same(t, cur, result, "reordering alone changes nothing")
}

func TestApply_ItemsAbsentArrayStaysAbsent(t *testing.T) {
	d := testutil.JSON(t, `{"a":1}`)
	result, err := Apply(Shape(F("list", Items(Constant(doc.Int(1))))), d, nil)
	require.NoError(t, err)
	assert.Same(t, d, result)
}

func TestApply_Errors(t *testing.T) {
	boom := errors.New("boom")

	testCases := []struct {
		name string
		rule Rule
		doc  string
		code RuleErrorCode
		path []string
	}{
		{
			name: "leaf error",
			rule: Shape(F("a", Computed(func(doc.Value) (doc.Value, error) { return nil, boom }))),
			doc:  `{}`,
			code: ErrCodeRuleFailed,
			path: []string{"a"},
		},
		{
			name: "predicate error",
			rule: Shape(F("a", When(PredicateFunc(func(_, _ doc.Value) (bool, error) { return false, boom }), Constant(doc.Int(1))))),
			doc:  `{}`,
			code: ErrCodePredicateFailed,
			path: []string{"a"},
		},
		{
			name: "shape on scalar",
			rule: Shape(F("a", Scope(Shape(F("b", Constant(doc.Int(1))))))),
			doc:  `{"a":3}`,
			code: ErrCodeNotObject,
			path: []string{"a"},
		},
		{
			name: "items on record",
			rule: Shape(F("a", Items(Constant(doc.Int(1))))),
			doc:  `{"a":{}}`,
			code: ErrCodeNotArray,
			path: []string{"a"},
		},
		{
			name: "duplicate identity",
			rule: Items(Constant(doc.Int(1))),
			doc:  `[{"_uid":"x"},{"_uid":"x"}]`,
			code: ErrCodeDuplicateIdentity,
			path: []string{},
		},
		{
			name: "clamp on string",
			rule: Shape(F("a", MaximumValue(1))),
			doc:  `{"a":"x"}`,
			code: ErrCodeNotNumber,
			path: []string{"a"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Apply(tc.rule, testutil.JSON(t, tc.doc), nil)
			require.Error(t, err)

			var re *RuleError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tc.code, re.Code)
			assert.Equal(t, tc.path, re.Path)
		})
	}
}

func TestApply_LeafErrorIsUnwrappable(t *testing.T) {
	boom := errors.New("boom")
	rule := Items(Scope(Shape(F("a", Computed(func(doc.Value) (doc.Value, error) { return nil, boom })))))

	_, err := Apply(rule, testutil.JSON(t, `[{"_uid":"e1"}]`), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, IsRuleError(err))
	assert.Contains(t, err.Error(), "path=e1.a")
	assert.False(t, IsDuplicateIdentity(err))
}

func TestApply_SharedLeafErrorIsNotMutated(t *testing.T) {
	shared := &RuleError{Code: ErrCodeRuleFailed, Message: "bad"}
	fail := Computed(func(doc.Value) (doc.Value, error) { return nil, shared })

	tests := []struct {
		field string
	}{
		{"a"},
		{"b"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, err := Apply(Shape(F(tt.field, fail)), testutil.JSON(t, `{}`), nil)
			require.Error(t, err)

			var re *RuleError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, []string{tt.field}, re.Path)
			assert.Equal(t, ErrCodeRuleFailed, re.Code)
			assert.Empty(t, shared.Path)
		})
	}
}

func TestApply_SelectorPathErrorSurfaces(t *testing.T) {
	rule := Shape(F("x", When(PropertyChanged(Path("person", "name")), Constant(doc.Int(1)))))
	d := testutil.JSON(t, `{}`)

	_, err := Apply(rule, d, d)
	require.Error(t, err)
	var pe *doc.PathError
	assert.True(t, errors.As(err, &pe))
}

func TestPipe(t *testing.T) {
	var rec testutil.Recorder[Change]
	rule := Shape(F("b", Pipe(copyOf("a"), If(changed("a")), LoggedTo(&rec))))

	prev := testutil.Object(t, `{"a":1,"b":1}`)
	result, err := Apply(rule, prev.With("a", doc.Int(2)), prev)
	require.NoError(t, err)

	assert.Equal(t, doc.Int(2), result.(*doc.Object).Lookup("b"))
	assert.Equal(t, 1, rec.Len())
	assert.IsType(t, LogRule{}, rule.(ShapeRule).Fields[0].Rule)
}
