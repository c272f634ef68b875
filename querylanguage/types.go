package querylanguage

import (
	"database/sql/driver"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// Fielder is a predicate built without a field name yet bound — every
// TypedP[T] constructor below returns one, and Field supplies the column it
// ultimately filters on. Splitting construction from binding lets a single
// typed predicate tree (e.g. one built from a reusable validation rule) be
// applied to more than one attribute.
type Fielder interface {
	Field(name string) P
}

// TypedP is a type-tagged predicate builder: T pins the typed constructors
// (IntEQ, BoolEQ, ...) that may feed it, while the predicate tree itself is
// untyped until Field binds it to a column name.
type TypedP[T any] struct {
	build func(field string) P
}

// Field binds the predicate tree to field, producing a renderable P.
func (p TypedP[T]) Field(field string) P { return p.build(field) }

func cmp[T any](op string, v T, render func(T) string) TypedP[T] {
	return TypedP[T]{build: func(field string) P { return BinaryExpr{Left: field, Op: op, Right: render(v)} }}
}

func isNil[T any]() TypedP[T] {
	return TypedP[T]{build: func(field string) P { return BinaryExpr{Left: field, Op: "==", Right: "nil"} }}
}

func notNil[T any]() TypedP[T] {
	return TypedP[T]{build: func(field string) P { return BinaryExpr{Left: field, Op: "!=", Right: "nil"} }}
}

func typedAnd[T any](preds ...TypedP[T]) TypedP[T] {
	return TypedP[T]{build: func(field string) P {
		children := make([]P, len(preds))
		for i, p := range preds {
			children[i] = p.build(field)
		}
		return NaryExpr{Op: "&&", Children: children}
	}}
}

func typedOr[T any](preds ...TypedP[T]) TypedP[T] {
	return TypedP[T]{build: func(field string) P {
		children := make([]P, len(preds))
		for i, p := range preds {
			children[i] = p.build(field)
		}
		return NaryExpr{Op: "||", Children: children}
	}}
}

func typedNot[T any](p TypedP[T]) TypedP[T] {
	return TypedP[T]{build: func(field string) P { return UnaryExpr{Inner: p.build(field)} }}
}

func renderBool(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func renderBytes(v []byte) string {
	return fmt.Sprintf("%q", base64.StdEncoding.EncodeToString(v))
}

func renderTime(v time.Time) string { return fmt.Sprintf("%q", v.Format(time.RFC3339)) }

func renderString(v string) string { return fmt.Sprintf("%q", v) }

func renderFloat32(v float32) string { return strconv.FormatFloat(float64(v), 'f', -1, 32) }

func renderFloat64(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func renderInt[T interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}](v T) string {
	return fmt.Sprintf("%d", v)
}

// renderValuer renders the placeholder token for a driver.Valuer-backed
// value: these hold arbitrary application types with no literal syntax in
// the predicate language, so the rendered predicate only records the shape
// of the comparison, not the opaque value itself.
func renderValuer(driver.Valuer) string { return "{}" }

// -- Bool -------------------------------------------------------------------

type BoolP = TypedP[bool]

func BoolEQ(v bool) BoolP          { return cmp("==", v, renderBool) }
func BoolNEQ(v bool) BoolP         { return cmp("!=", v, renderBool) }
func BoolNil() BoolP               { return isNil[bool]() }
func BoolNotNil() BoolP            { return notNil[bool]() }
func BoolAnd(preds ...BoolP) BoolP { return typedAnd(preds...) }
func BoolOr(preds ...BoolP) BoolP  { return typedOr(preds...) }
func BoolNot(p BoolP) BoolP        { return typedNot(p) }

// -- Bytes --------------------------------------------------------------

type BytesP = TypedP[[]byte]

func BytesEQ(v []byte) BytesP        { return cmp("==", v, renderBytes) }
func BytesNEQ(v []byte) BytesP       { return cmp("!=", v, renderBytes) }
func BytesNil() BytesP               { return isNil[[]byte]() }
func BytesNotNil() BytesP            { return notNil[[]byte]() }
func BytesAnd(preds ...BytesP) BytesP { return typedAnd(preds...) }
func BytesOr(preds ...BytesP) BytesP  { return typedOr(preds...) }
func BytesNot(p BytesP) BytesP        { return typedNot(p) }

// -- Time -----------------------------------------------------------------

type TimeP = TypedP[time.Time]

func TimeEQ(v time.Time) TimeP    { return cmp("==", v, renderTime) }
func TimeNEQ(v time.Time) TimeP   { return cmp("!=", v, renderTime) }
func TimeLT(v time.Time) TimeP    { return cmp("<", v, renderTime) }
func TimeLTE(v time.Time) TimeP   { return cmp("<=", v, renderTime) }
func TimeGT(v time.Time) TimeP    { return cmp(">", v, renderTime) }
func TimeGTE(v time.Time) TimeP   { return cmp(">=", v, renderTime) }
func TimeNil() TimeP              { return isNil[time.Time]() }
func TimeNotNil() TimeP           { return notNil[time.Time]() }
func TimeAnd(preds ...TimeP) TimeP { return typedAnd(preds...) }
func TimeOr(preds ...TimeP) TimeP  { return typedOr(preds...) }
func TimeNot(p TimeP) TimeP        { return typedNot(p) }

// -- String -----------------------------------------------------------------

type StringP = TypedP[string]

func StringEQ(v string) StringP  { return cmp("==", v, renderString) }
func StringNEQ(v string) StringP { return cmp("!=", v, renderString) }
func StringLT(v string) StringP  { return cmp("<", v, renderString) }
func StringLTE(v string) StringP { return cmp("<=", v, renderString) }
func StringGT(v string) StringP  { return cmp(">", v, renderString) }
func StringGTE(v string) StringP { return cmp(">=", v, renderString) }
func StringNil() StringP         { return isNil[string]() }
func StringNotNil() StringP      { return notNil[string]() }
func StringAnd(preds ...StringP) StringP { return typedAnd(preds...) }
func StringOr(preds ...StringP) StringP  { return typedOr(preds...) }
func StringNot(p StringP) StringP        { return typedNot(p) }

// -- Float32/Float64 ---------------------------------------------------

type Float32P = TypedP[float32]

func Float32EQ(v float32) Float32P  { return cmp("==", v, renderFloat32) }
func Float32NEQ(v float32) Float32P { return cmp("!=", v, renderFloat32) }
func Float32LT(v float32) Float32P  { return cmp("<", v, renderFloat32) }
func Float32LTE(v float32) Float32P { return cmp("<=", v, renderFloat32) }
func Float32GT(v float32) Float32P  { return cmp(">", v, renderFloat32) }
func Float32GTE(v float32) Float32P { return cmp(">=", v, renderFloat32) }
func Float32Nil() Float32P          { return isNil[float32]() }
func Float32NotNil() Float32P       { return notNil[float32]() }
func Float32And(preds ...Float32P) Float32P { return typedAnd(preds...) }
func Float32Or(preds ...Float32P) Float32P  { return typedOr(preds...) }
func Float32Not(p Float32P) Float32P        { return typedNot(p) }

type Float64P = TypedP[float64]

func Float64EQ(v float64) Float64P  { return cmp("==", v, renderFloat64) }
func Float64NEQ(v float64) Float64P { return cmp("!=", v, renderFloat64) }
func Float64LT(v float64) Float64P  { return cmp("<", v, renderFloat64) }
func Float64LTE(v float64) Float64P { return cmp("<=", v, renderFloat64) }
func Float64GT(v float64) Float64P  { return cmp(">", v, renderFloat64) }
func Float64GTE(v float64) Float64P { return cmp(">=", v, renderFloat64) }
func Float64Nil() Float64P          { return isNil[float64]() }
func Float64NotNil() Float64P       { return notNil[float64]() }
func Float64And(preds ...Float64P) Float64P { return typedAnd(preds...) }
func Float64Or(preds ...Float64P) Float64P  { return typedOr(preds...) }
func Float64Not(p Float64P) Float64P        { return typedNot(p) }

// -- signed/unsigned integer widths -----------------------------------------

type IntP = TypedP[int]

func IntEQ(v int) IntP  { return cmp("==", v, renderInt[int]) }
func IntNEQ(v int) IntP { return cmp("!=", v, renderInt[int]) }
func IntLT(v int) IntP  { return cmp("<", v, renderInt[int]) }
func IntLTE(v int) IntP { return cmp("<=", v, renderInt[int]) }
func IntGT(v int) IntP  { return cmp(">", v, renderInt[int]) }
func IntGTE(v int) IntP { return cmp(">=", v, renderInt[int]) }
func IntNil() IntP      { return isNil[int]() }
func IntNotNil() IntP   { return notNil[int]() }
func IntAnd(preds ...IntP) IntP { return typedAnd(preds...) }
func IntOr(preds ...IntP) IntP  { return typedOr(preds...) }
func IntNot(p IntP) IntP        { return typedNot(p) }

type Int8P = TypedP[int8]

func Int8EQ(v int8) Int8P  { return cmp("==", v, renderInt[int8]) }
func Int8NEQ(v int8) Int8P { return cmp("!=", v, renderInt[int8]) }
func Int8LT(v int8) Int8P  { return cmp("<", v, renderInt[int8]) }
func Int8LTE(v int8) Int8P { return cmp("<=", v, renderInt[int8]) }
func Int8GT(v int8) Int8P  { return cmp(">", v, renderInt[int8]) }
func Int8GTE(v int8) Int8P { return cmp(">=", v, renderInt[int8]) }
func Int8Nil() Int8P       { return isNil[int8]() }
func Int8NotNil() Int8P    { return notNil[int8]() }
func Int8And(preds ...Int8P) Int8P { return typedAnd(preds...) }
func Int8Or(preds ...Int8P) Int8P  { return typedOr(preds...) }
func Int8Not(p Int8P) Int8P        { return typedNot(p) }

type Int16P = TypedP[int16]

func Int16EQ(v int16) Int16P  { return cmp("==", v, renderInt[int16]) }
func Int16NEQ(v int16) Int16P { return cmp("!=", v, renderInt[int16]) }
func Int16LT(v int16) Int16P  { return cmp("<", v, renderInt[int16]) }
func Int16LTE(v int16) Int16P { return cmp("<=", v, renderInt[int16]) }
func Int16GT(v int16) Int16P  { return cmp(">", v, renderInt[int16]) }
func Int16GTE(v int16) Int16P { return cmp(">=", v, renderInt[int16]) }
func Int16Nil() Int16P        { return isNil[int16]() }
func Int16NotNil() Int16P     { return notNil[int16]() }
func Int16And(preds ...Int16P) Int16P { return typedAnd(preds...) }
func Int16Or(preds ...Int16P) Int16P  { return typedOr(preds...) }
func Int16Not(p Int16P) Int16P        { return typedNot(p) }

type Int32P = TypedP[int32]

func Int32EQ(v int32) Int32P  { return cmp("==", v, renderInt[int32]) }
func Int32NEQ(v int32) Int32P { return cmp("!=", v, renderInt[int32]) }
func Int32LT(v int32) Int32P  { return cmp("<", v, renderInt[int32]) }
func Int32LTE(v int32) Int32P { return cmp("<=", v, renderInt[int32]) }
func Int32GT(v int32) Int32P  { return cmp(">", v, renderInt[int32]) }
func Int32GTE(v int32) Int32P { return cmp(">=", v, renderInt[int32]) }
func Int32Nil() Int32P        { return isNil[int32]() }
func Int32NotNil() Int32P     { return notNil[int32]() }
func Int32And(preds ...Int32P) Int32P { return typedAnd(preds...) }
func Int32Or(preds ...Int32P) Int32P  { return typedOr(preds...) }
func Int32Not(p Int32P) Int32P        { return typedNot(p) }

type Int64P = TypedP[int64]

func Int64EQ(v int64) Int64P  { return cmp("==", v, renderInt[int64]) }
func Int64NEQ(v int64) Int64P { return cmp("!=", v, renderInt[int64]) }
func Int64LT(v int64) Int64P  { return cmp("<", v, renderInt[int64]) }
func Int64LTE(v int64) Int64P { return cmp("<=", v, renderInt[int64]) }
func Int64GT(v int64) Int64P  { return cmp(">", v, renderInt[int64]) }
func Int64GTE(v int64) Int64P { return cmp(">=", v, renderInt[int64]) }
func Int64Nil() Int64P        { return isNil[int64]() }
func Int64NotNil() Int64P     { return notNil[int64]() }
func Int64And(preds ...Int64P) Int64P { return typedAnd(preds...) }
func Int64Or(preds ...Int64P) Int64P  { return typedOr(preds...) }
func Int64Not(p Int64P) Int64P        { return typedNot(p) }

type UintP = TypedP[uint]

func UintEQ(v uint) UintP  { return cmp("==", v, renderInt[uint]) }
func UintNEQ(v uint) UintP { return cmp("!=", v, renderInt[uint]) }
func UintLT(v uint) UintP  { return cmp("<", v, renderInt[uint]) }
func UintLTE(v uint) UintP { return cmp("<=", v, renderInt[uint]) }
func UintGT(v uint) UintP  { return cmp(">", v, renderInt[uint]) }
func UintGTE(v uint) UintP { return cmp(">=", v, renderInt[uint]) }
func UintNil() UintP       { return isNil[uint]() }
func UintNotNil() UintP    { return notNil[uint]() }
func UintAnd(preds ...UintP) UintP { return typedAnd(preds...) }
func UintOr(preds ...UintP) UintP  { return typedOr(preds...) }
func UintNot(p UintP) UintP        { return typedNot(p) }

type Uint8P = TypedP[uint8]

func Uint8EQ(v uint8) Uint8P  { return cmp("==", v, renderInt[uint8]) }
func Uint8NEQ(v uint8) Uint8P { return cmp("!=", v, renderInt[uint8]) }
func Uint8LT(v uint8) Uint8P  { return cmp("<", v, renderInt[uint8]) }
func Uint8LTE(v uint8) Uint8P { return cmp("<=", v, renderInt[uint8]) }
func Uint8GT(v uint8) Uint8P  { return cmp(">", v, renderInt[uint8]) }
func Uint8GTE(v uint8) Uint8P { return cmp(">=", v, renderInt[uint8]) }
func Uint8Nil() Uint8P        { return isNil[uint8]() }
func Uint8NotNil() Uint8P     { return notNil[uint8]() }
func Uint8And(preds ...Uint8P) Uint8P { return typedAnd(preds...) }
func Uint8Or(preds ...Uint8P) Uint8P  { return typedOr(preds...) }
func Uint8Not(p Uint8P) Uint8P        { return typedNot(p) }

type Uint16P = TypedP[uint16]

func Uint16EQ(v uint16) Uint16P  { return cmp("==", v, renderInt[uint16]) }
func Uint16NEQ(v uint16) Uint16P { return cmp("!=", v, renderInt[uint16]) }
func Uint16LT(v uint16) Uint16P  { return cmp("<", v, renderInt[uint16]) }
func Uint16LTE(v uint16) Uint16P { return cmp("<=", v, renderInt[uint16]) }
func Uint16GT(v uint16) Uint16P  { return cmp(">", v, renderInt[uint16]) }
func Uint16GTE(v uint16) Uint16P { return cmp(">=", v, renderInt[uint16]) }
func Uint16Nil() Uint16P         { return isNil[uint16]() }
func Uint16NotNil() Uint16P      { return notNil[uint16]() }
func Uint16And(preds ...Uint16P) Uint16P { return typedAnd(preds...) }
func Uint16Or(preds ...Uint16P) Uint16P  { return typedOr(preds...) }
func Uint16Not(p Uint16P) Uint16P        { return typedNot(p) }

type Uint32P = TypedP[uint32]

func Uint32EQ(v uint32) Uint32P  { return cmp("==", v, renderInt[uint32]) }
func Uint32NEQ(v uint32) Uint32P { return cmp("!=", v, renderInt[uint32]) }
func Uint32LT(v uint32) Uint32P  { return cmp("<", v, renderInt[uint32]) }
func Uint32LTE(v uint32) Uint32P { return cmp("<=", v, renderInt[uint32]) }
func Uint32GT(v uint32) Uint32P  { return cmp(">", v, renderInt[uint32]) }
func Uint32GTE(v uint32) Uint32P { return cmp(">=", v, renderInt[uint32]) }
func Uint32Nil() Uint32P         { return isNil[uint32]() }
func Uint32NotNil() Uint32P      { return notNil[uint32]() }
func Uint32And(preds ...Uint32P) Uint32P { return typedAnd(preds...) }
func Uint32Or(preds ...Uint32P) Uint32P  { return typedOr(preds...) }
func Uint32Not(p Uint32P) Uint32P        { return typedNot(p) }

type Uint64P = TypedP[uint64]

func Uint64EQ(v uint64) Uint64P  { return cmp("==", v, renderInt[uint64]) }
func Uint64NEQ(v uint64) Uint64P { return cmp("!=", v, renderInt[uint64]) }
func Uint64LT(v uint64) Uint64P  { return cmp("<", v, renderInt[uint64]) }
func Uint64LTE(v uint64) Uint64P { return cmp("<=", v, renderInt[uint64]) }
func Uint64GT(v uint64) Uint64P  { return cmp(">", v, renderInt[uint64]) }
func Uint64GTE(v uint64) Uint64P { return cmp(">=", v, renderInt[uint64]) }
func Uint64Nil() Uint64P         { return isNil[uint64]() }
func Uint64NotNil() Uint64P      { return notNil[uint64]() }
func Uint64And(preds ...Uint64P) Uint64P { return typedAnd(preds...) }
func Uint64Or(preds ...Uint64P) Uint64P  { return typedOr(preds...) }
func Uint64Not(p Uint64P) Uint64P        { return typedNot(p) }

// -- opaque driver.Valuer values ---------------------------------------

type ValueP = TypedP[driver.Valuer]

func ValueEQ(v driver.Valuer) ValueP  { return cmp("==", v, renderValuer) }
func ValueNEQ(v driver.Valuer) ValueP { return cmp("!=", v, renderValuer) }
func ValueNil() ValueP                { return isNil[driver.Valuer]() }
func ValueNotNil() ValueP             { return notNil[driver.Valuer]() }
func ValueAnd(preds ...ValueP) ValueP { return typedAnd(preds...) }
func ValueOr(preds ...ValueP) ValueP  { return typedOr(preds...) }
func ValueNot(p ValueP) ValueP        { return typedNot(p) }

// OtherP is ValueP's twin for driver values that belong to some other
// distinguished semantic domain in a future revision of the object store
// (e.g. geometry or JSON columns); it renders identically for now.
type OtherP = TypedP[driver.Valuer]

func OtherEQ(v driver.Valuer) OtherP  { return cmp("==", v, renderValuer) }
func OtherNEQ(v driver.Valuer) OtherP { return cmp("!=", v, renderValuer) }
func OtherNil() OtherP                { return isNil[driver.Valuer]() }
func OtherNotNil() OtherP             { return notNil[driver.Valuer]() }
func OtherAnd(preds ...OtherP) OtherP { return typedAnd(preds...) }
func OtherOr(preds ...OtherP) OtherP  { return typedOr(preds...) }
func OtherNot(p OtherP) OtherP        { return typedNot(p) }
