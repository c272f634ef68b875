// Package transform implements the Transformer Host: it turns a textual
// transformer body into a callable evaluated under a restricted,
// enumerated global environment, and caches the compiled form per source
// text. Grounded on the original's programmability/handler.py
// ExecutionHandler (allowed_globals dict + exec-based transform/generate_transformer),
// reimplemented without exec by compiling each body as a
// github.com/expr-lang/expr program — a sandboxed-expression-language
// counterpart that serves as an acceptable isolation boundary.
package transform

import (
	"bytes"
	"compress/zlib"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pepegiallo/sqlite-odai"
)

// Lookups supplies the name/id resolution globals a transformer body may
// call: get_class, get_attribute, get_reference, get_object. They close
// over whichever structure/object engine is hosting this transformer.
type Lookups struct {
	GetClass     func(name string) (any, error)
	GetAttribute func(name string) (any, error)
	GetReference func(name string) (any, error)
	GetObject    func(id int64) (any, error)
}

// Host compiles and evaluates transformer source under a fixed, enumerated
// set of globals. One Host is shared by every datatype and attribute
// assignment transformer in a store.
type Host struct {
	logger  *slog.Logger
	lookups Lookups

	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewHost returns a Host wired to the given lookups.
func NewHost(lookups Lookups, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{logger: logger, lookups: lookups, cache: make(map[string]*vm.Program)}
}

// globals returns the enumerated allowed-global set bound to this Host's
// lookups plus the value-helper functions. No other identifier resolves.
func (h *Host) globals() map[string]any {
	return map[string]any{
		"get_class":     wrapLookup(h.lookups.GetClass),
		"get_attribute": wrapLookup(h.lookups.GetAttribute),
		"get_reference": wrapLookup(h.lookups.GetReference),
		"get_object":    wrapLookupByID(h.lookups.GetObject),

		"parse_date":         parseDate,
		"format_date":        formatDate,
		"parse_datetime":     parseDatetime,
		"format_datetime":    formatDatetime,
		"decimal_from_units": decimalFromUnits,
		"decimal_to_units":   decimalToUnits,
		"array_to_bytes":     arrayToBytes,
		"bytes_to_array":     bytesToArray,
		"compress":           compressBytes,
		"decompress":         decompressBytes,
	}
}

func wrapLookup(fn func(string) (any, error)) func(string) any {
	return func(name string) any {
		if fn == nil {
			return nil
		}
		v, err := fn(name)
		if err != nil {
			return nil
		}
		return v
	}
}

func wrapLookupByID(fn func(int64) (any, error)) func(int64) any {
	return func(id int64) any {
		if fn == nil {
			return nil
		}
		v, err := fn(id)
		if err != nil {
			return nil
		}
		return v
	}
}

// dedent strips the indentation common to every non-empty line, mirroring
// the original's per-line `f'    {line}'` re-indent.
func dedent(source string) string {
	lines := strings.Split(source, "\n")
	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if common == -1 || indent < common {
			common = indent
		}
	}
	if common <= 0 {
		return strings.TrimSpace(source)
	}
	var out []string
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line[common:])
	}
	return strings.Join(out, "\n")
}

// compile returns the cached program for source, compiling and caching it
// on first use.
func (h *Host) compile(source string, params []string) (*vm.Program, error) {
	key := strings.Join(params, ",") + "\x00" + source
	h.mu.RLock()
	program, ok := h.cache[key]
	h.mu.RUnlock()
	if ok {
		return program, nil
	}

	env := h.globals()
	for _, p := range params {
		env[p] = any(nil)
	}
	program, err := expr.Compile(dedent(source), expr.Env(env), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.cache[key] = program
	h.mu.Unlock()
	return program, nil
}

// Eval compiles (if needed) and runs source with value bound as the first
// parameter and named supplying any additional parameters (e.g. "this" for
// assignment-level transformers). If source is empty, Eval returns value
// unchanged. A thrown error is logged and Eval returns nil, wrapping the
// cause as *odai.TransformError for the caller to inspect if it chooses.
func (h *Host) Eval(source string, value any, named map[string]any) (any, error) {
	if strings.TrimSpace(source) == "" {
		return value, nil
	}

	params := []string{"value"}
	for name := range named {
		params = append(params, name)
	}
	program, err := h.compile(source, params)
	if err != nil {
		wrapped := odai.NewTransformError(source, err)
		h.logger.Error("transformer compilation failed", "error", err)
		return nil, wrapped
	}

	env := h.globals()
	env["value"] = value
	for name, v := range named {
		env[name] = v
	}

	out, err := expr.Run(program, env)
	if err != nil {
		wrapped := odai.NewTransformError(source, err)
		h.logger.Error("transformer evaluation failed", "error", err)
		return nil, wrapped
	}
	return out, nil
}

// -- value helpers exposed to transformer source, grounded on utils.py --

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func parseDatetime(s string) (time.Time, error) {
	return time.Parse("2006-01-02 15:04:05", s)
}

func formatDatetime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// decimalFromUnits converts an integer unit count into a decimal value with
// the given number of fractional digits, e.g. decimalFromUnits(123, 2) == 1.23.
func decimalFromUnits(units int64, digits int) float64 {
	return float64(units) / math.Pow10(digits)
}

// decimalToUnits is the inverse of decimalFromUnits.
func decimalToUnits(value float64, digits int) int64 {
	return int64(math.Round(value * math.Pow10(digits)))
}

func arrayToBytes(arr []any) ([]byte, error) {
	return msgpack.Marshal(arr)
}

func bytesToArray(b []byte) ([]any, error) {
	var out []any
	if err := msgpack.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func compressBytes(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressBytes(b []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
