package logging

import (
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// LoggerPatternConfig sets the level of every named logger matching Pattern.
// Patterns are dot separated logger names where a section may be "*", e.g. "bridge.*".
type LoggerPatternConfig struct {
	Pattern string `json:"pattern"`
	Level   string `json:"level"`
}

const (
	// e.g. "repeater" or "DRAKE_VIEWER_DRAW".
	validLoggerSectionName = `[a-zA-Z0-9]+([_-]*[a-zA-Z0-9]+)*`
	// e.g. "repeater" or "*".
	validLoggerSectionNameWithWildcard = `(` + validLoggerSectionName + `|\*)`
	// e.g. "bridge.*.publisher".
	validLoggerName = `^` + validLoggerSectionNameWithWildcard + `(\.` + validLoggerSectionNameWithWildcard + `)*$`
)

var loggerPatternRegexp = regexp.MustCompile(validLoggerName)

// Validate checks the pattern and level.
func (lpc LoggerPatternConfig) Validate() error {
	if !loggerPatternRegexp.MatchString(lpc.Pattern) {
		return errors.Errorf("invalid logger pattern %q", lpc.Pattern)
	}
	if _, err := LevelFromString(lpc.Level); err != nil {
		return err
	}
	return nil
}

func buildRegexFromPattern(pattern string) string {
	var matcher strings.Builder
	matcher.WriteRune('^')
	for _, ch := range pattern {
		switch ch {
		case '*':
			matcher.WriteString(`.*`)
		case '.':
			matcher.WriteString(`\.`)
		default:
			matcher.WriteRune(ch)
		}
	}
	matcher.WriteRune('$')
	return matcher.String()
}

type compiledPattern struct {
	re    *regexp.Regexp
	level Level
}

func compilePatterns(patterns []LoggerPatternConfig) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, lpc := range patterns {
		if err := lpc.Validate(); err != nil {
			return nil, err
		}
		level, err := LevelFromString(lpc.Level)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(buildRegexFromPattern(lpc.Pattern))
		if err != nil {
			return nil, errors.Wrapf(err, "compiling logger pattern %q", lpc.Pattern)
		}
		compiled = append(compiled, compiledPattern{re, level})
	}
	return compiled, nil
}

// Registry tracks named subloggers so pattern configs can be applied to loggers created
// before and after the config is loaded.
type Registry struct {
	mu       sync.Mutex
	loggers  map[string]Logger
	patterns []compiledPattern
}

var globalLoggerRegistry = newRegistry()

func newRegistry() *Registry {
	return &Registry{loggers: make(map[string]Logger)}
}

// levelFor returns the level of the last matching pattern.
func (lr *Registry) levelFor(name string) (Level, bool) {
	var (
		level Level
		found bool
	)
	for _, p := range lr.patterns {
		if p.re.MatchString(name) {
			level, found = p.level, true
		}
	}
	return level, found
}

// getOrRegister returns the logger already registered under name, or registers logger and
// applies any matching pattern to it.
func (lr *Registry) getOrRegister(name string, logger Logger) Logger {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if existing, ok := lr.loggers[name]; ok {
		return existing
	}
	lr.loggers[name] = logger
	if level, ok := lr.levelFor(name); ok {
		logger.SetLevel(level)
	}
	return logger
}

func (lr *Registry) loggerNamed(name string) (Logger, bool) {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	logger, ok := lr.loggers[name]
	return logger, ok
}

// update replaces the pattern set and re-levels every registered logger. Loggers that no
// longer match anything fall back to defaultLevel.
func (lr *Registry) update(patterns []LoggerPatternConfig, defaultLevel Level) error {
	compiled, err := compilePatterns(patterns)
	if err != nil {
		return err
	}

	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.patterns = compiled
	for name, logger := range lr.loggers {
		level, ok := lr.levelFor(name)
		if !ok {
			level = defaultLevel
		}
		logger.SetLevel(level)
	}
	return nil
}

// UpdateLoggerPatterns applies the pattern configs to every sublogger, current and future.
func UpdateLoggerPatterns(patterns []LoggerPatternConfig, defaultLevel Level) error {
	return globalLoggerRegistry.update(patterns, defaultLevel)
}
