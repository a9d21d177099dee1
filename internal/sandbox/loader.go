package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
	"go.uber.org/zap"
)

// Strategy is how the loader satisfies a require call.
type Strategy int

const (
	StrategyMissing Strategy = iota
	StrategyDeny
	StrategyLocal
	StrategyHost
)

func (s Strategy) String() string {
	switch s {
	case StrategyDeny:
		return "deny"
	case StrategyLocal:
		return "local"
	case StrategyHost:
		return "host"
	default:
		return "missing"
	}
}

// Loader resolves require calls from a table built once per context. Deny
// patterns are consulted first, then the utility index, then the host
// module registry. Loading itself goes through a require.Registry that only
// ever sees indexed utility files and the registered host modules.
type Loader struct {
	deny     []string
	local    map[string]string // module name to file
	files    mapset.Set[string]
	host     map[string]hostModule
	registry *require.Registry
	modules  *require.RequireModule
}

func newLoader(utilsDir string, deny []string) (*Loader, error) {
	for _, pattern := range deny {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid deny pattern %q", pattern)
		}
	}

	local, err := indexUtilities(utilsDir)
	if err != nil {
		return nil, err
	}

	l := &Loader{
		deny:  append([]string(nil), deny...),
		local: local,
		files: mapset.NewThreadUnsafeSet[string](),
		host:  hostModules(),
	}
	for _, file := range local {
		l.files.Add(file)
	}
	l.registry = require.NewRegistry(
		require.WithLoader(l.source),
		require.WithPathResolver(joinPath),
	)
	return l, nil
}

// bind registers the host modules against c and enables the registry on
// its runtime. The registry's own global require is replaced by the
// sandbox binding afterwards.
func (l *Loader) bind(c *Context) {
	for name, build := range l.host {
		l.registry.RegisterNativeModule(name, func(vm *goja.Runtime, module *goja.Object) {
			v, err := build(c)
			if err != nil {
				panic(vm.NewGoError(err))
			}
			if err := module.Set("exports", v); err != nil {
				panic(vm.NewGoError(err))
			}
		})
	}
	l.modules = l.registry.Enable(c.vm)
}

// source feeds the registry. Only indexed utility files can be read, so a
// require never reaches outside the utility directory.
func (l *Loader) source(file string) ([]byte, error) {
	if !l.files.Contains(file) {
		return nil, require.ModuleFileDoesNotExistError
	}
	data, err := os.ReadFile(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, require.ModuleFileDoesNotExistError
	}
	return data, err
}

// joinPath resolves module paths without following symlinks.
func joinPath(base, p string) string {
	return filepath.Join(base, filepath.FromSlash(p))
}

// Resolve returns the strategy require would use for name.
func (l *Loader) Resolve(name string) Strategy {
	for _, pattern := range l.deny {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return StrategyDeny
		}
	}
	if _, ok := l.local[name]; ok {
		return StrategyLocal
	}
	if _, ok := l.host[hostName(name)]; ok {
		return StrategyHost
	}
	return StrategyMissing
}

// Utilities returns the indexed utility module names.
func (l *Loader) Utilities() []string {
	names := make([]string, 0, len(l.local))
	for name := range l.local {
		names = append(names, name)
	}
	return names
}

// require is the sandbox's require binding.
func (c *Context) require(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	strategy := c.loader.Resolve(name)
	c.metrics.RecordRequire(strategy.String())

	switch strategy {
	case StrategyDeny:
		c.console.Log("Module " + name + " is restricted")
		return goja.Null()
	case StrategyMissing:
		c.logger.Debug("module not found", zap.String("module", name))
		c.throwError("Cannot find module '"+name+"'", "MODULE_NOT_FOUND")
	}

	v, err := c.loader.load(name)
	if err != nil {
		c.rethrow(err)
	}

	c.console.Log("required " + name)
	return v
}

// load returns the module value, evaluating it on first use. The registry
// caches successful loads and forgets failed ones. Errors thrown by module
// code are returned untranslated.
func (l *Loader) load(name string) (v goja.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			switch p := r.(type) {
			case error:
				err = p
			case goja.Value:
				err = errors.New(p.String())
			default:
				panic(r)
			}
		}
	}()

	if file, ok := l.local[name]; ok {
		return l.modules.Require(file)
	}
	host := hostName(name)
	if _, ok := l.host[host]; !ok {
		return nil, fmt.Errorf("Cannot find module '%s'", name)
	}
	return l.modules.Require(host)
}

// rethrow propagates a module load failure into the calling script. Script
// exceptions and interrupts pass through unchanged.
func (c *Context) rethrow(err error) {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		panic(interrupted)
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex)
	}
	c.throwError(err.Error(), "")
}

// indexUtilities maps module names to files under dir. A missing directory
// yields an empty index. Symlinks are not followed, so the index never
// points outside dir.
func indexUtilities(dir string) (map[string]string, error) {
	index := make(map[string]string)
	if dir == "" {
		return index, nil
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve utility dir: %w", err)
	}
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return index, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat utility dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("utility path %s is not a directory", dir)
	}

	var mu sync.Mutex
	ranks := make(map[string]int)
	conf := fastwalk.Config{Follow: false}

	err = fastwalk.Walk(&conf, root, func(file string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, file)
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		for _, k := range moduleKeys(filepath.ToSlash(rel)) {
			if rank, taken := ranks[k.name]; taken && rank <= k.rank {
				continue
			}
			ranks[k.name] = k.rank
			index[k.name] = file
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index utilities: %w", err)
	}
	return index, nil
}

type moduleKey struct {
	name string
	rank int
}

// moduleKeys lists the names a utility file answers to. A lower rank wins
// when two files claim the same name: x.js beats x.json beats x/index.js
// beats x/index.json.
func moduleKeys(rel string) []moduleKey {
	ext := path.Ext(rel)
	if ext != ".js" && ext != ".json" {
		return nil
	}
	bare := strings.TrimSuffix(rel, ext)

	jsonPenalty := 0
	if ext == ".json" {
		jsonPenalty = 1
	}

	keys := []moduleKey{{rel, 0}, {bare, 1 + jsonPenalty}}
	if path.Base(bare) == "index" {
		if dir := path.Dir(bare); dir != "." {
			keys = append(keys, moduleKey{dir, 3 + jsonPenalty})
		}
	}
	return keys
}
