package loader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"go.uber.org/multierr"

	"github.com/syntheticore/skip/internal/ast"
	"github.com/syntheticore/skip/internal/host"
	"github.com/syntheticore/skip/internal/interp"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Error codes shared with the CLI.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeInvalidParams = "E101" // params is not a list of names
	ErrCodeInvalidBody   = "E102" // body is not a valid s-expression
	ErrCodeInvalidValue  = "E103" // unsupported CUE value in a tree
	ErrCodeInvalidClass  = "E104" // class without a methods struct
)

// LoadError is an error found while loading definitions.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Class is a named method table.
type Class struct {
	Name    string
	Methods map[string]*ast.Node
}

// MethodNames returns the method names in sorted order.
func (c Class) MethodNames() []string {
	names := make([]string, 0, len(c.Methods))
	for name := range c.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Result contains the definitions loaded from CUE.
type Result struct {
	Functions map[string]*ast.Node
	Classes   map[string]Class
	CUEValue  cue.Value
	FileCount int
}

// FunctionNames returns the loaded function names in sorted order.
func (r *Result) FunctionNames() []string {
	names := make([]string, 0, len(r.Functions))
	for name := range r.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClassNames returns the loaded class names in sorted order.
func (r *Result) ClassNames() []string {
	names := make([]string, 0, len(r.Classes))
	for name := range r.Classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Names lists every function, then every method as Class#method, each
// group in name order. Every name is accepted by Function.
func (r *Result) Names() []string {
	names := r.FunctionNames()
	for _, cn := range r.ClassNames() {
		for _, m := range r.Classes[cn].MethodNames() {
			names = append(names, cn+"#"+m)
		}
	}
	return names
}

// Function looks up a function by name. "Class#method" names a method.
func (r *Result) Function(name string) (*ast.Node, bool) {
	if class, method, ok := strings.Cut(name, "#"); ok {
		c, ok := r.Classes[class]
		if !ok {
			return nil, false
		}
		fn, ok := c.Methods[method]
		return fn, ok
	}
	fn, ok := r.Functions[name]
	return fn, ok
}

// NewFunction wraps the named tree as a host function.
func (r *Result) NewFunction(name string, opts ...interp.Option) (*host.Function, error) {
	tree, ok := r.Function(name)
	if !ok {
		return nil, fmt.Errorf("function %q not found", name)
	}
	return host.NewFunction(tree, opts...)
}

// NewClass builds a host class with every method of the named class.
func (r *Result) NewClass(name string, opts ...interp.Option) (*host.Class, error) {
	c, ok := r.Classes[name]
	if !ok {
		return nil, fmt.Errorf("class %q not found", name)
	}
	class := host.NewClass(name)
	for _, method := range c.MethodNames() {
		fn, err := host.NewFunction(c.Methods[method], opts...)
		if err != nil {
			return nil, fmt.Errorf("%s#%s: %w", name, method, err)
		}
		class.Define(method, fn)
	}
	return class, nil
}

// Combine folds load errors into one error, nil when there are none.
func Combine(errs []error) error {
	return multierr.Combine(errs...)
}

// Load loads every CUE file of dir as one instance.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func Load(dir string, mode LoadMode) (*Result, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("source directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing source directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	result, errs := extract(value, mode)
	if result != nil {
		result.FileCount = len(cueFiles)
	}
	return result, errs
}

// LoadSource loads definitions from a single CUE source.
func LoadSource(filename string, src []byte, mode LoadMode) (*Result, []error) {
	value := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	result, errs := extract(value, mode)
	if result != nil {
		result.FileCount = 1
	}
	return result, errs
}

func extract(value cue.Value, mode LoadMode) (*Result, []error) {
	if err := value.Validate(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err), Pos: value.Pos()}}
	}

	result := &Result{
		Functions: make(map[string]*ast.Node),
		Classes:   make(map[string]Class),
		CUEValue:  value,
	}
	var errs []error
	fail := func(err error) bool {
		errs = append(errs, err)
		return mode == LoadModeFailFast
	}

	funcs := value.LookupPath(cue.ParsePath("func"))
	if funcs.Exists() {
		iter, err := funcs.Fields()
		if err != nil && fail(&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating functions: %v", err), Pos: funcs.Pos()}) {
			return result, errs
		}
		for iter != nil && iter.Next() {
			name := iter.Selector().Unquoted()
			fn, err := decodeFunc(name, iter.Value())
			if err != nil {
				if fail(err) {
					return result, errs
				}
				continue
			}
			result.Functions[name] = fn
		}
	}

	classes := value.LookupPath(cue.ParsePath("class"))
	if classes.Exists() {
		iter, err := classes.Fields()
		if err != nil && fail(&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating classes: %v", err), Pos: classes.Pos()}) {
			return result, errs
		}
		for iter != nil && iter.Next() {
			name := iter.Selector().Unquoted()
			class, classErrs := decodeClass(name, iter.Value(), mode)
			for _, err := range classErrs {
				if fail(err) {
					return result, errs
				}
			}
			if len(classErrs) == 0 {
				result.Classes[name] = class
			}
		}
	}

	if len(result.Functions) == 0 && len(result.Classes) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no functions or classes found", Pos: value.Pos()})
	}
	return result, errs
}

func decodeClass(name string, v cue.Value, mode LoadMode) (Class, []error) {
	class := Class{Name: name, Methods: make(map[string]*ast.Node)}
	methods := v.LookupPath(cue.ParsePath("methods"))
	if !methods.Exists() || methods.Kind() != cue.StructKind {
		return class, []error{&LoadError{Code: ErrCodeInvalidClass, Message: fmt.Sprintf("class %s: methods must be a struct", name), Pos: v.Pos()}}
	}
	iter, err := methods.Fields()
	if err != nil {
		return class, []error{&LoadError{Code: ErrCodeInvalidClass, Message: fmt.Sprintf("class %s: %v", name, err), Pos: methods.Pos()}}
	}
	var errs []error
	for iter.Next() {
		method := iter.Selector().Unquoted()
		fn, err := decodeFunc(method, iter.Value())
		if err != nil {
			errs = append(errs, err)
			if mode == LoadModeFailFast {
				return class, errs
			}
			continue
		}
		class.Methods[method] = fn
	}
	return class, errs
}

// decodeFunc converts {params: [...], body: [...]} to a Func node.
func decodeFunc(name string, v cue.Value) (*ast.Node, error) {
	paramsVal := v.LookupPath(cue.ParsePath("params"))
	var params []string
	if paramsVal.Exists() {
		raw, err := toAny(paramsVal)
		if err != nil {
			return nil, err
		}
		list, ok := raw.([]any)
		if !ok {
			return nil, &LoadError{Code: ErrCodeInvalidParams, Message: fmt.Sprintf("%s: params must be a list of names", name), Pos: paramsVal.Pos()}
		}
		seen := make(map[string]bool, len(list))
		for i, p := range list {
			s, ok := p.(string)
			if !ok || s == "" {
				return nil, &LoadError{Code: ErrCodeInvalidParams, Message: fmt.Sprintf("%s: params[%d] must be a non-empty string", name, i), Pos: paramsVal.Pos()}
			}
			if seen[s] {
				return nil, &LoadError{Code: ErrCodeInvalidParams, Message: fmt.Sprintf("%s: duplicate parameter %q", name, s), Pos: paramsVal.Pos()}
			}
			seen[s] = true
			params = append(params, s)
		}
	}

	bodyVal := v.LookupPath(cue.ParsePath("body"))
	if !bodyVal.Exists() {
		return nil, &LoadError{Code: ErrCodeInvalidBody, Message: fmt.Sprintf("%s: missing body", name), Pos: v.Pos()}
	}
	raw, err := toAny(bodyVal)
	if err != nil {
		return nil, err
	}
	body, err := ast.Decode(raw)
	if err != nil {
		return nil, convertDecodeError(name, bodyVal, err)
	}
	return ast.Func(name, params, body), nil
}

// toAny converts a concrete CUE value to the plain lists, strings and
// numbers ast.Decode accepts. CUE ints stay int64, floats become float64.
func toAny(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &LoadError{Code: ErrCodeInvalidValue, Message: err.Error(), Pos: v.Pos()}
		}
		return n, nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, &LoadError{Code: ErrCodeInvalidValue, Message: err.Error(), Pos: v.Pos()}
		}
		return f, nil
	case cue.StringKind:
		return v.String()
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, &LoadError{Code: ErrCodeInvalidValue, Message: err.Error(), Pos: v.Pos()}
		}
		list := []any{}
		for iter.Next() {
			elem, err := toAny(iter.Value())
			if err != nil {
				return nil, err
			}
			list = append(list, elem)
		}
		return list, nil
	}
	return nil, &LoadError{Code: ErrCodeInvalidValue, Message: fmt.Sprintf("unsupported %s value", v.IncompleteKind()), Pos: v.Pos()}
}

// convertDecodeError attaches the CUE position of the offending element.
func convertDecodeError(name string, body cue.Value, err error) *LoadError {
	var de *ast.DecodeError
	if !errors.As(err, &de) {
		return &LoadError{Code: ErrCodeInvalidBody, Message: fmt.Sprintf("%s: %v", name, err), Pos: body.Pos()}
	}
	pos := body.Pos()
	if sel := indexPath(de.Path); len(sel) > 0 {
		if elem := body.LookupPath(cue.MakePath(sel...)); elem.Exists() {
			pos = elem.Pos()
		}
	}
	where := "body" + de.Path
	return &LoadError{
		Code:    ErrCodeInvalidBody,
		Message: fmt.Sprintf("%s: %s: %s", name, where, de.Message),
		Pos:     pos,
	}
}

// indexPath parses "[2][1]" into list selectors.
func indexPath(path string) []cue.Selector {
	var sel []cue.Selector
	for path != "" {
		if path[0] != '[' {
			return nil
		}
		end := strings.IndexByte(path, ']')
		if end < 0 {
			return nil
		}
		i, err := strconv.Atoi(path[1:end])
		if err != nil {
			return nil
		}
		sel = append(sel, cue.Index(i))
		path = path[end+1:]
	}
	return sel
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
