package logging

import (
	"testing"

	"go.viam.com/test"
)

func TestValidatePattern(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		pattern string
		isValid bool
	}{
		{"bridge", true},
		{"bridge.repeater", true},
		{"bridge.*", true},
		{"*.DRAKE_VIEWER_LOAD_ROBOT", true},
		{"*", true},

		{"bridge..repeater", false},
		{"bridge.", false},
		{".bridge", false},
		{"bridge.**", false},
		{"_.bridge", false},
		{"bridge.-", false},
	} {
		err := LoggerPatternConfig{Pattern: tc.pattern, Level: "debug"}.Validate()
		if tc.isValid {
			test.That(t, err, test.ShouldBeNil)
		} else {
			test.That(t, err, test.ShouldNotBeNil)
		}
	}

	err := LoggerPatternConfig{Pattern: "bridge", Level: "chatty"}.Validate()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRegistryUpdate(t *testing.T) {
	t.Parallel()

	registry := newRegistry()
	names := []string{"bridge", "bridge.repeater", "bridge.repeater.DRAKE_VIEWER_DRAW", "lcm"}
	for _, name := range names {
		registry.getOrRegister(name, NewBlankLogger(name))
	}

	err := registry.update([]LoggerPatternConfig{
		{Pattern: "bridge.*", Level: "debug"},
		{Pattern: "*.DRAKE_VIEWER_DRAW", Level: "error"},
	}, INFO)
	test.That(t, err, test.ShouldBeNil)

	expected := map[string]Level{
		"bridge":                            INFO,
		"bridge.repeater":                   DEBUG,
		"bridge.repeater.DRAKE_VIEWER_DRAW": ERROR,
		"lcm":                               INFO,
	}
	for name, level := range expected {
		logger, ok := registry.loggerNamed(name)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, logger.GetLevel(), test.ShouldEqual, level)
	}

	// Loggers registered after the update pick up the patterns.
	late := registry.getOrRegister("bridge.stats", NewBlankLogger("bridge.stats"))
	test.That(t, late.GetLevel(), test.ShouldEqual, DEBUG)

	err = registry.update([]LoggerPatternConfig{{Pattern: "bridge..x", Level: "info"}}, INFO)
	test.That(t, err, test.ShouldNotBeNil)
}
