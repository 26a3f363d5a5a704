package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"pgregory.net/rapid"
)

// sumFunc adds all dependency values.
func sumFunc(args []cty.Value) (cty.Value, error) {
	total := cty.Zero
	for _, a := range args {
		if a.IsNull() {
			return cty.NilVal, errors.New("null input")
		}
		total = total.Add(a)
	}
	return total, nil
}

// attachDerived builds a field holding dv under a fresh container.
func attachDerived(t *testing.T, name string, dv *DerivedValue) *Field {
	t.Helper()
	n := NewFieldNode(nil)
	f := NewField(name)
	require.NoError(t, n.AddField(f))
	require.NoError(t, f.Add(dv))
	return f
}

func TestDerived_LazyComputeAndCache(t *testing.T) {
	base := obsField(t, "mass", "dlazy-a")

	computes := 0
	dv, err := NewDerived(func(args []cty.Value) (cty.Value, error) {
		computes++
		return sumFunc(args)
	}, []Dep{DepField(base)})
	require.NoError(t, err)

	assert.False(t, dv.Valid(), "no computation before first read")
	assert.Equal(t, 0, computes)

	v, err := dv.Value()
	require.NoError(t, err)
	assert.True(t, num(10).RawEquals(v))
	assert.True(t, dv.Valid())

	_, err = dv.Value()
	require.NoError(t, err)
	assert.Equal(t, 1, computes, "second read served from cache")
}

func TestDerived_InvalidatedByUpstreamWrite(t *testing.T) {
	base := obsField(t, "mass", "dinv-a")
	dv, err := NewDerived(sumFunc, []Dep{DepField(base)})
	require.NoError(t, err)

	v, err := dv.Value()
	require.NoError(t, err)
	assert.True(t, num(10).RawEquals(v))

	src := NewSource("dinv-b")
	t.Cleanup(func() { ReleaseSource("dinv-b") })
	require.NoError(t, base.SetCurrent(NewObserved(num(32), src)))

	assert.False(t, dv.Valid(), "upstream write marks the value stale")
	v, err = dv.Value()
	require.NoError(t, err)
	assert.True(t, num(32).RawEquals(v))
}

func TestDerived_InvalidationPropagatesThroughChain(t *testing.T) {
	// base -> doubled -> quadrupled, each derived held by its own field.
	base := obsField(t, "mass", "dchain-a")

	doubled, err := NewDerived(func(args []cty.Value) (cty.Value, error) {
		return args[0].Multiply(cty.NumberIntVal(2)), nil
	}, []Dep{DepField(base)})
	require.NoError(t, err)
	doubledField := attachDerived(t, "doubled", doubled)

	quadrupled, err := NewDerived(func(args []cty.Value) (cty.Value, error) {
		return args[0].Multiply(cty.NumberIntVal(2)), nil
	}, []Dep{DepField(doubledField)})
	require.NoError(t, err)
	attachDerived(t, "quadrupled", quadrupled)

	v, err := quadrupled.Value()
	require.NoError(t, err)
	assert.True(t, num(40).RawEquals(v))

	src := NewSource("dchain-b")
	t.Cleanup(func() { ReleaseSource("dchain-b") })
	require.NoError(t, base.SetCurrent(NewObserved(num(7), src)))

	assert.False(t, doubled.Valid())
	assert.False(t, quadrupled.Valid(), "staleness reaches the second hop")

	v, err = quadrupled.Value()
	require.NoError(t, err)
	assert.True(t, num(28).RawEquals(v))
}

func TestDerived_ExplicitInvalidate(t *testing.T) {
	base := obsField(t, "mass", "dexp-a")
	dv, err := NewDerived(sumFunc, []Dep{DepField(base)})
	require.NoError(t, err)

	_, err = dv.Value()
	require.NoError(t, err)
	require.NoError(t, dv.Invalidate())
	assert.False(t, dv.Valid())
}

func TestDerived_CycleDetected(t *testing.T) {
	// a depends on b's field, b depends on a's field.
	baseA := NewField("a")
	baseB := NewField("b")
	na := NewFieldNode(nil)
	nb := NewFieldNode(nil)
	require.NoError(t, na.AddField(baseA))
	require.NoError(t, nb.AddField(baseB))

	da, err := NewDerived(sumFunc, []Dep{DepField(baseB)})
	require.NoError(t, err)
	require.NoError(t, baseA.Add(da))

	db, err := NewDerived(sumFunc, []Dep{DepField(baseA)})
	require.NoError(t, err)
	require.NoError(t, baseB.Add(db))

	// Resolve both dependency sets so the change subscriptions exist,
	// without reading values (the read itself would recurse).
	require.NoError(t, da.Deps().PopulateReferences())
	require.NoError(t, db.Deps().PopulateReferences())

	err = da.Invalidate()
	require.ErrorIs(t, err, ErrCycle)
}

func TestDerived_FailurePolicies(t *testing.T) {
	boom := errors.New("boom")
	failing := func([]cty.Value) (cty.Value, error) { return cty.NilVal, boom }

	t.Run("raise", func(t *testing.T) {
		dv, err := NewDerived(failing, nil)
		require.NoError(t, err)
		_, err = dv.Value()
		require.ErrorIs(t, err, boom)
		assert.False(t, dv.Valid())
	})

	t.Run("warn and skip stay stale", func(t *testing.T) {
		for _, p := range []FailurePolicy{PolicyWarn, PolicySkip} {
			dv, err := NewDerived(failing, nil, WithPolicy(p))
			require.NoError(t, err)
			v, err := dv.Value()
			require.NoError(t, err, p.String())
			assert.Equal(t, cty.NilVal, v)
			assert.False(t, dv.Valid(), "%s retries on next read", p)
		}
	})

	t.Run("ignore absorbs the failure", func(t *testing.T) {
		calls := 0
		dv, err := NewDerived(func([]cty.Value) (cty.Value, error) {
			calls++
			return cty.NilVal, boom
		}, nil, WithPolicy(PolicyIgnore))
		require.NoError(t, err)

		_, err = dv.Value()
		require.NoError(t, err)
		assert.True(t, dv.Valid())

		_, err = dv.Value()
		require.NoError(t, err)
		assert.Equal(t, 1, calls, "ignored failure is cached until invalidation")
	})
}

func TestParseFailurePolicy(t *testing.T) {
	for _, p := range []FailurePolicy{PolicyRaise, PolicyWarn, PolicySkip, PolicyIgnore} {
		got, err := ParseFailurePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParseFailurePolicy("explode")
	require.Error(t, err)
}

func TestDerived_UnusableOnConstraintViolation(t *testing.T) {
	dv, err := NewDerived(func([]cty.Value) (cty.Value, error) {
		return cty.StringVal("not a number"), nil
	}, nil)
	require.NoError(t, err)

	// Cache a string result, then attach to a numeric field.
	_, err = dv.Value()
	require.NoError(t, err)

	f := NewField("mass", WithConstraint(TypeIs(cty.Number)))
	require.NoError(t, f.Add(dv), "attach succeeds, the value is quarantined instead")

	_, err = dv.Value()
	require.ErrorIs(t, err, ErrUnusable)
}

func TestDerived_SingleOwner(t *testing.T) {
	dv, err := NewDerived(sumFunc, nil)
	require.NoError(t, err)

	f1 := NewField("a")
	require.NoError(t, f1.Add(dv))
	f2 := NewField("b")
	err = f2.Add(dv)
	require.ErrorIs(t, err, ErrDuplicateOwner)

	// Removing from the first owner frees it.
	require.NoError(t, f1.Delete(0))
	require.NoError(t, f2.Add(dv))
	assert.Same(t, f2, dv.Field())
}

func TestDerived_VetoedAttachLeavesValueUnowned(t *testing.T) {
	base := obsField(t, "base", "veto-a")
	dv, err := NewDerived(sumFunc, []Dep{DepField(base)})
	require.NoError(t, err)

	mass := NewField("mass")
	mass.OnChange(func(Change) error { return errors.New("vetoed") })

	require.Error(t, mass.SetCurrent(dv))
	assert.Equal(t, 0, mass.Len())
	assert.Nil(t, dv.Field(), "vetoed attach takes no ownership")

	other := NewField("other")
	require.NoError(t, other.Add(dv))
	assert.Same(t, other, dv.Field())
}

func TestDerived_InvalidateFromSubscriberDuringWrite(t *testing.T) {
	up := obsField(t, "radius", "reent-a")
	dv, err := NewDerived(sumFunc, []Dep{DepField(up)})
	require.NoError(t, err)
	f := attachDerived(t, "mass", dv)

	_, err = dv.Value()
	require.NoError(t, err)

	invalidated := false
	f.OnChange(func(Change) error {
		if invalidated {
			return nil
		}
		invalidated = true
		return dv.Invalidate()
	})
	dead := f.OnChange(func(Change) error { return nil })
	dead.Close()
	tail := 0
	f.OnChange(func(Change) error {
		tail++
		return nil
	})

	src := NewSource("reent-b")
	t.Cleanup(func() { ReleaseSource("reent-b") })
	require.NoError(t, f.SetCurrent(NewObserved(num(42), src)))

	v, err := f.CurrentValue()
	require.NoError(t, err)
	assert.True(t, num(42).RawEquals(v))
	assert.False(t, dv.Valid(), "derived value went stale during the write")
	assert.Equal(t, 2, tail, "both delivery rounds reach the last subscriber")
}

func TestDeps_PathResolution(t *testing.T) {
	// catalog "sky"
	//   └── cluster (typeName "cluster", field n)
	//        ├── star named "alpha" (field mass=5)
	//        └── star named "beta"  (fields mass=7, ratio=derived)
	sky := NewCatalog("sky")
	cluster := NewFieldNode(sky)
	cluster.SetTypeName("cluster")
	cn := NewField("n")
	require.NoError(t, cluster.AddField(cn))
	require.NoError(t, cn.Record("path-n", num(2)))

	alpha := NewFieldNode(cluster)
	alphaName := NewField("name")
	require.NoError(t, alpha.AddField(alphaName))
	require.NoError(t, alphaName.Record("path-an", cty.StringVal("alpha")))
	alphaMass := NewField("mass")
	require.NoError(t, alpha.AddField(alphaMass))
	require.NoError(t, alphaMass.Record("path-am", num(5)))

	beta := NewFieldNode(cluster)
	betaMass := NewField("mass")
	require.NoError(t, beta.AddField(betaMass))
	require.NoError(t, betaMass.Record("path-bm", num(7)))

	for _, key := range []string{"path-n", "path-an", "path-am", "path-bm"} {
		key := key
		t.Cleanup(func() { ReleaseSource(key) })
	}

	t.Run("sibling through parent", func(t *testing.T) {
		// From beta: up one, down to the node named alpha, field mass.
		dv, err := NewDerived(sumFunc, []Dep{DepPath("^.alpha.mass")}, WithPathNode(beta))
		require.NoError(t, err)

		v, err := dv.Value()
		require.NoError(t, err)
		assert.True(t, num(5).RawEquals(v))
	})

	t.Run("up until type match", func(t *testing.T) {
		dv, err := NewDerived(sumFunc, []Dep{DepPath("^cluster.n")}, WithPathNode(beta))
		require.NoError(t, err)
		v, err := dv.Value()
		require.NoError(t, err)
		assert.True(t, num(2).RawEquals(v))

		// An extra caret takes a plain parent step first, so the upward
		// search starts above the cluster and finds nothing.
		dv2, err := NewDerived(sumFunc, []Dep{DepPath("^^cluster.n")}, WithPathNode(beta))
		require.NoError(t, err)
		_, err = dv2.Value()
		require.ErrorIs(t, err, ErrUnresolved)
	})

	t.Run("parent field", func(t *testing.T) {
		dv, err := NewDerived(sumFunc, []Dep{DepPath("^n")}, WithPathNode(beta))
		require.NoError(t, err)
		v, err := dv.Value()
		require.NoError(t, err)
		assert.True(t, num(2).RawEquals(v))
	})

	t.Run("child by index from root", func(t *testing.T) {
		dv, err := NewDerived(sumFunc, []Dep{DepPath("0.1.mass")}, WithPathNode(sky))
		require.NoError(t, err)
		v, err := dv.Value()
		require.NoError(t, err)
		assert.True(t, num(7).RawEquals(v), "cluster's second child is beta")
	})

	t.Run("mixed handle and path", func(t *testing.T) {
		dv, err := NewDerived(sumFunc, []Dep{
			DepField(betaMass),
			DepPath("^.alpha.mass"),
		}, WithPathNode(beta))
		require.NoError(t, err)
		v, err := dv.Value()
		require.NoError(t, err)
		assert.True(t, num(12).RawEquals(v))
	})

	t.Run("unresolvable path", func(t *testing.T) {
		dv, err := NewDerived(sumFunc, []Dep{DepPath("^nosuch.mass")}, WithPathNode(beta))
		require.NoError(t, err)
		_, err = dv.Value()
		var unres *UnresolvedError
		require.ErrorAs(t, err, &unres)
		assert.Equal(t, []int{0}, unres.Indices)
		require.ErrorIs(t, err, ErrUnresolved)
	})
}

func TestDeps_ResolveAgainstOwnerNode(t *testing.T) {
	// A derived value without an explicit origin resolves paths from the
	// container its field joins.
	root := NewCatalog("root")
	parent := NewFieldNode(root)
	pf := NewField("total")
	require.NoError(t, parent.AddField(pf))
	require.NoError(t, pf.Record("own-a", num(100)))
	t.Cleanup(func() { ReleaseSource("own-a") })

	child := NewFieldNode(parent)
	dv, err := NewDerived(sumFunc, []Dep{DepPath("^total")})
	require.NoError(t, err)

	// Unattached and origin-less: resolution fails.
	_, err = dv.Value()
	require.ErrorIs(t, err, ErrUnresolved)

	cf := NewField("share")
	require.NoError(t, child.AddField(cf))
	require.NoError(t, cf.Add(dv))

	v, err := dv.Value()
	require.NoError(t, err)
	assert.True(t, num(100).RawEquals(v))
}

func TestDeps_DeadHandleAfterFieldDetach(t *testing.T) {
	n := NewFieldNode(nil)
	base := NewField("mass")
	require.NoError(t, n.AddField(base))
	require.NoError(t, base.Record("dead-a", num(1)))
	t.Cleanup(func() { ReleaseSource("dead-a") })

	dv, err := NewDerived(sumFunc, []Dep{DepField(base)})
	require.NoError(t, err)
	_, err = dv.Value()
	require.NoError(t, err)

	// Detaching the upstream field kills the handle; a handle-declared
	// slot has no path to re-resolve with.
	require.NoError(t, n.DelField("mass"))
	require.NoError(t, dv.Invalidate())
	_, err = dv.Value()
	require.ErrorIs(t, err, ErrUnresolved)
}

func TestDeps_PathReresolvesAfterTopologyChange(t *testing.T) {
	// A named-child path re-resolves after the alpha node is replaced.
	sky := NewCatalog("sky2")
	cluster := NewFieldNode(sky)

	makeStar := func(name string, mass float64, key string) *FieldNode {
		star := NewFieldNode(cluster)
		nf := NewField("name")
		require.NoError(t, star.AddField(nf))
		require.NoError(t, nf.Record(key+"-n", cty.StringVal(name)))
		mf := NewField("mass")
		require.NoError(t, star.AddField(mf))
		require.NoError(t, mf.Record(key+"-m", num(mass)))
		t.Cleanup(func() {
			ReleaseSource(key + "-n")
			ReleaseSource(key + "-m")
		})
		return star
	}

	alpha1 := makeStar("alpha", 5, "topo1")
	observer := NewFieldNode(cluster)

	dv, err := NewDerived(sumFunc, []Dep{DepPath("^.alpha.mass")}, WithPathNode(observer))
	require.NoError(t, err)

	v, err := dv.Value()
	require.NoError(t, err)
	assert.True(t, num(5).RawEquals(v))

	// Remove alpha's mass field: the resolved handle dies, and the next
	// read re-resolves the path. A second alpha now answers.
	require.NoError(t, alpha1.DelField("mass"))
	require.NoError(t, SetParent(alpha1, nil))
	makeStar("alpha", 9, "topo2")

	require.NoError(t, dv.Invalidate())
	v, err = dv.Value()
	require.NoError(t, err)
	assert.True(t, num(9).RawEquals(v))
}

func TestDeps_SetPathNodeDropsResolution(t *testing.T) {
	skyA := NewCatalog("dropA")
	a := NewFieldNode(skyA)
	af := NewField("mass")
	require.NoError(t, a.AddField(af))
	require.NoError(t, af.Record("drop-a", num(1)))

	skyB := NewCatalog("dropB")
	b := NewFieldNode(skyB)
	bf := NewField("mass")
	require.NoError(t, b.AddField(bf))
	require.NoError(t, bf.Record("drop-b", num(2)))

	t.Cleanup(func() {
		ReleaseSource("drop-a")
		ReleaseSource("drop-b")
	})

	dv, err := NewDerived(sumFunc, []Dep{DepPath("0.mass")}, WithPathNode(skyA))
	require.NoError(t, err)
	v, err := dv.Value()
	require.NoError(t, err)
	assert.True(t, num(1).RawEquals(v))

	dv.SetPathNode(skyB)
	require.NoError(t, dv.Invalidate())
	v, err = dv.Value()
	require.NoError(t, err)
	assert.True(t, num(2).RawEquals(v))
}

func TestDerived_RecomputeMatchesInputs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := NewField("x")
		key := "rapid-base"
		if err := base.Record(key, num(0)); err != nil {
			t.Fatalf("Record: %v", err)
		}
		defer ReleaseSource(key)

		dv, err := NewDerived(func(args []cty.Value) (cty.Value, error) {
			return args[0].Add(cty.NumberIntVal(1)), nil
		}, []Dep{DepField(base)})
		if err != nil {
			t.Fatalf("NewDerived: %v", err)
		}

		writes := rapid.IntRange(1, 20).Draw(t, "writes")
		for i := 0; i < writes; i++ {
			x := rapid.IntRange(-1000, 1000).Draw(t, "x")
			if err := base.Record(key, num(float64(x))); err != nil {
				t.Fatalf("Record: %v", err)
			}
			if rapid.Bool().Draw(t, "read") {
				v, err := dv.Value()
				if err != nil {
					t.Fatalf("Value: %v", err)
				}
				want := num(float64(x + 1))
				if !want.RawEquals(v) {
					t.Fatalf("derived %v, want %v after writing %d", v, want, x)
				}
			}
		}

		// Whatever the interleaving, a final read is exact.
		v, err := dv.Value()
		if err != nil {
			t.Fatalf("final Value: %v", err)
		}
		cur, _ := base.CurrentValue()
		if !cur.Add(cty.NumberIntVal(1)).RawEquals(v) {
			t.Fatalf("final derived %v does not match input %v", v, cur)
		}
	})
}
