package fruit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venscn/fruit"
	"github.com/venscn/fruit/internal/testutil"
)

func realDatabaseComponent() *fruit.Component {
	return fruit.NewComponent("database",
		fruit.Provide(testutil.NewDatabase),
	)
}

func fakeDatabaseComponent() *fruit.Component {
	return fruit.NewComponent("fake-database",
		fruit.Provide(func() *testutil.Database { return &testutil.Database{DSN: "fake://"} }),
	)
}

func loggingComponent() *fruit.Component {
	return fruit.NewComponent("logging",
		fruit.Provide(testutil.NewLogger),
	)
}

func TestInstall_SharedComponentExpandsOnce(t *testing.T) {
	calls := 0
	counted := func() *fruit.Component {
		calls++
		return fruit.NewComponent("counted",
			fruit.Provide(testutil.NewDatabase),
		)
	}

	serviceA := func() *fruit.Component {
		return fruit.NewComponent("a", fruit.Install(counted))
	}
	serviceB := func() *fruit.Component {
		return fruit.NewComponent("b", fruit.Install(counted))
	}

	injector := testutil.NewInjectorBuilder(t).
		With(fruit.Install(serviceA), fruit.Install(serviceB)).
		Build()

	_, err := fruit.Resolve[*testutil.Database](injector)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "a shared component's factory must run once")
}

func TestInstall_Loop(t *testing.T) {
	var componentA, componentB fruit.ComponentFunc

	componentA = func() *fruit.Component {
		return fruit.NewComponent("a", fruit.Install(componentB))
	}
	componentB = func() *fruit.Component {
		return fruit.NewComponent("b", fruit.Install(componentA))
	}

	_, err := fruit.NewInjector(fruit.NewComponent("root", fruit.Install(componentA)))

	var loopErr fruit.InstallationLoopError
	require.ErrorAs(t, err, &loopErr)
	assert.Len(t, loopErr.Path, 3)
}

func TestInstallArgs_LoopOnlyWithEqualArgs(t *testing.T) {
	// Mirrors the original semantics: a component that installs itself with
	// a different argument terminates, with the same argument it loops.
	var counting func(n int) *fruit.Component
	counting = func(n int) *fruit.Component {
		if n == 0 {
			return fruit.NewComponent("leaf", fruit.BindInstance[string]("done"))
		}
		return fruit.NewComponent("level", fruit.InstallArgs(counting, n-1))
	}

	t.Run("different args terminate", func(t *testing.T) {
		injector, err := fruit.NewInjector(fruit.NewComponent("root", fruit.InstallArgs(counting, 3)))
		require.NoError(t, err)

		s, err := fruit.Resolve[string](injector)
		require.NoError(t, err)
		assert.Equal(t, "done", s)
	})

	t.Run("equal args loop", func(t *testing.T) {
		var looping func(n int) *fruit.Component
		looping = func(n int) *fruit.Component {
			return fruit.NewComponent("loop", fruit.InstallArgs(looping, n))
		}

		_, err := fruit.NewInjector(fruit.NewComponent("root", fruit.InstallArgs(looping, 1)))

		var loopErr fruit.InstallationLoopError
		assert.ErrorAs(t, err, &loopErr)
	})
}

func TestReplace_SubstitutesTarget(t *testing.T) {
	injector := testutil.NewInjectorBuilder(t).
		With(
			fruit.Replace(realDatabaseComponent).With(fakeDatabaseComponent),
			fruit.Install(realDatabaseComponent),
		).
		Build()

	db, err := fruit.Resolve[*testutil.Database](injector)
	require.NoError(t, err)
	assert.Equal(t, "fake://", db.DSN)
}

func TestReplace_DoesNotAffectOtherComponents(t *testing.T) {
	injector := testutil.NewInjectorBuilder(t).
		With(
			fruit.Replace(realDatabaseComponent).With(fakeDatabaseComponent),
			fruit.Install(realDatabaseComponent),
			fruit.Install(loggingComponent),
		).
		Build()

	log, err := fruit.Resolve[*testutil.Logger](injector)
	require.NoError(t, err)
	assert.Equal(t, "test", log.Prefix)
}

func TestReplace_AfterInstallFails(t *testing.T) {
	_, err := fruit.NewInjector(fruit.NewComponent("root",
		fruit.Install(realDatabaseComponent),
		fruit.Replace(realDatabaseComponent).With(fakeDatabaseComponent),
	))

	var lateErr fruit.ReplacementAfterExpansionError
	require.ErrorAs(t, err, &lateErr)
}

func TestReplace_WithoutInstallIsDropped(t *testing.T) {
	injector := testutil.NewInjectorBuilder(t).
		With(fruit.Replace(realDatabaseComponent).With(fakeDatabaseComponent)).
		Build()

	_, err := fruit.Resolve[*testutil.Database](injector)
	assert.ErrorIs(t, err, fruit.ErrBindingNotFound)
}

func TestReplace_IncompatibleReplacements(t *testing.T) {
	_, err := fruit.NewInjector(fruit.NewComponent("root",
		fruit.Replace(realDatabaseComponent).With(fakeDatabaseComponent),
		fruit.Replace(realDatabaseComponent).With(loggingComponent),
	))

	var replErr fruit.IncompatibleReplacementsError
	require.ErrorAs(t, err, &replErr)
}

func TestReplace_Chain(t *testing.T) {
	first := func() *fruit.Component {
		return fruit.NewComponent("first", fruit.BindInstance[string]("first"))
	}
	second := func() *fruit.Component {
		return fruit.NewComponent("second", fruit.BindInstance[string]("second"))
	}
	third := func() *fruit.Component {
		return fruit.NewComponent("third", fruit.BindInstance[string]("third"))
	}

	injector := testutil.NewInjectorBuilder(t).
		With(
			fruit.Replace(first).With(second),
			fruit.Replace(second).With(third),
			fruit.Install(first),
		).
		Build()

	s, err := fruit.Resolve[string](injector)
	require.NoError(t, err)
	assert.Equal(t, "third", s, "replacement chains resolve to their fixed point")
}

func TestReplaceArgs_TargetsExactArguments(t *testing.T) {
	paramComponent := func(dsn string) *fruit.Component {
		return fruit.NewComponent("db",
			fruit.Provide(func() *testutil.Database { return &testutil.Database{DSN: dsn} }),
		)
	}

	t.Run("matching args replaced", func(t *testing.T) {
		injector := testutil.NewInjectorBuilder(t).
			With(
				fruit.ReplaceArgs(paramComponent, "real://").With(fakeDatabaseComponent),
				fruit.InstallArgs(paramComponent, "real://"),
			).
			Build()

		db, err := fruit.Resolve[*testutil.Database](injector)
		require.NoError(t, err)
		assert.Equal(t, "fake://", db.DSN)
	})

	t.Run("different args untouched", func(t *testing.T) {
		injector := testutil.NewInjectorBuilder(t).
			With(
				fruit.ReplaceArgs(paramComponent, "real://").With(fakeDatabaseComponent),
				fruit.InstallArgs(paramComponent, "other://"),
			).
			Build()

		db, err := fruit.Resolve[*testutil.Database](injector)
		require.NoError(t, err)
		assert.Equal(t, "other://", db.DSN)
	})
}
