// Package ddl implements the DDL Interpreter: a tokenizer that locates
// block-structured `indicator { body }` declarations by counting brace
// nesting, and a small grammar over the body that drives structure.Manager
// calls. Grounded on the original's ddl.py Interpreter (text.find('{')/
// text.find('}') scanning, comma-split bodies, `~ref -> Target` reference
// syntax, `*`-suffix indexing), extended with datatype blocks, inline
// get/set transformer bodies, reference cardinality, and the traced-class
// `*` marker on top of the original's flat attribute-assignment-only DDL.
package ddl

import (
	"context"
	"strconv"
	"strings"

	"github.com/pepegiallo/sqlite-odai"
	"github.com/pepegiallo/sqlite-odai/structure"
)

// Interpreter parses DDL source into structure.Manager calls.
type Interpreter struct {
	schema *structure.Manager
}

// New returns an Interpreter that drives schema.
func New(schema *structure.Manager) *Interpreter {
	return &Interpreter{schema: schema}
}

// Run parses source as a sequence of blocks and applies each to the schema
// manager in order. The first error aborts the run; callers are expected
// to wrap Run in a storage transaction scope.
func (it *Interpreter) Run(ctx context.Context, source string) error {
	pos := 0
	for pos < len(source) {
		indicator, body, next, ok := scanBlock(source, pos)
		if !ok {
			remaining := strings.TrimSpace(source[pos:])
			if remaining == "" {
				break
			}
			return odai.NewSyntaxError("unbalanced braces", remaining)
		}
		if err := it.runBlock(ctx, indicator, body); err != nil {
			return err
		}
		pos = next
	}
	return nil
}

// scanBlock finds the next `indicator { body }` block starting at start,
// matching the closing brace by counting nesting so a block's body may
// itself contain braces (transformer source, nested get/set blocks).
func scanBlock(text string, start int) (indicator, body string, next int, ok bool) {
	rest := text[start:]
	openRel := strings.IndexByte(rest, '{')
	if openRel == -1 {
		return "", "", 0, false
	}
	openIdx := start + openRel
	indicator = strings.TrimSpace(text[start:openIdx])

	depth := 1
	i := openIdx + 1
	for i < len(text) {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return indicator, text[openIdx+1 : i], i + 1, true
			}
		}
		i++
	}
	return "", "", 0, false
}

// runBlock dispatches indicator (case-insensitive, whitespace-collapsed) to
// the attribute-declaration, datatype, or class grammar.
func (it *Interpreter) runBlock(ctx context.Context, indicator, body string) error {
	clean := strings.ToLower(strings.ReplaceAll(indicator, " ", ""))
	switch {
	case clean == "+attributes":
		return it.runAttributeDeclarations(ctx, body)
	case strings.HasPrefix(clean, "#"):
		return it.runDatatype(ctx, indicator, body)
	default:
		return it.runClass(ctx, indicator, body)
	}
}

// splitTopLevel splits body on commas that sit at brace-depth 0, so a
// comma inside a nested get{...}/set{...} transformer body never splits its
// enclosing element.
func splitTopLevel(body string) []string {
	var out []string
	depth := 0
	last := 0
	for i, r := range body {
		switch r {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = append(out, body[last:i])
				last = i + 1
			}
		}
	}
	out = append(out, body[last:])
	var trimmed []string
	for _, e := range out {
		e = strings.TrimSpace(e)
		if e != "" {
			trimmed = append(trimmed, e)
		}
	}
	return trimmed
}

// -- +attributes { name:type, ... } ----------------------------------------

func (it *Interpreter) runAttributeDeclarations(ctx context.Context, body string) error {
	for _, elem := range splitTopLevel(body) {
		parts := strings.SplitN(elem, ":", 2)
		if len(parts) != 2 {
			return odai.NewSyntaxError("attribute declaration requires name:datatype", elem)
		}
		name := strings.TrimSpace(parts[0])
		dtName := strings.TrimSpace(parts[1])
		if name == "" || dtName == "" {
			return odai.NewSyntaxError("attribute declaration requires name:datatype", elem)
		}
		dt, err := it.resolveDatatype(ctx, dtName)
		if err != nil {
			return err
		}
		if _, err := it.schema.CreateAttribute(ctx, name, *dt); err != nil {
			return err
		}
	}
	return nil
}

// -- #name { generator-or-#parent, get { ... }, set { ... } } --------------

func (it *Interpreter) runDatatype(ctx context.Context, indicator, body string) error {
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(indicator), "#"))
	if name == "" {
		return odai.NewSyntaxError("datatype block requires a name", indicator)
	}

	elems := splitTopLevel(body)
	if len(elems) == 0 {
		return odai.NewSyntaxError("missing generator-or-parent in datatype block", indicator+"{"+body+"}")
	}

	var generator *string
	var parent *string
	head := strings.TrimSpace(elems[0])
	switch {
	case strings.HasPrefix(head, "#"):
		p := strings.TrimSpace(strings.TrimPrefix(head, "#"))
		if p == "" {
			return odai.NewSyntaxError("missing generator-or-parent in datatype block", head)
		}
		parent = &p
	case head != "" && !isTransformerKeyword(head):
		generator = &head
	default:
		return odai.NewSyntaxError("missing generator-or-parent in datatype block", head)
	}

	readSrc, writeSrc, err := parseTransformerElements(elems[1:])
	if err != nil {
		return err
	}

	if parent != nil {
		if _, err := it.resolveDatatype(ctx, *parent); err != nil {
			return err
		}
	}

	_, err = it.schema.CreateDatatype(ctx, name, generator, parent, readSrc, writeSrc)
	return err
}

// isTransformerKeyword reports whether elem opens with a "get" or "set"
// keyword block, used to detect a datatype head that was omitted entirely
// (body starts directly with a transformer block).
func isTransformerKeyword(elem string) bool {
	openIdx := strings.IndexByte(elem, '{')
	if openIdx == -1 {
		return false
	}
	keyword := strings.ToLower(strings.TrimSpace(elem[:openIdx]))
	return keyword == "get" || keyword == "set"
}

// parseTransformerElements reads zero or more "get { ... }" / "set { ... }"
// elements, returning the read/write source bodies.
func parseTransformerElements(elems []string) (readSrc, writeSrc string, err error) {
	for _, elem := range elems {
		openIdx := strings.IndexByte(elem, '{')
		closeIdx := strings.LastIndexByte(elem, '}')
		if openIdx == -1 || closeIdx == -1 || closeIdx < openIdx {
			return "", "", odai.NewSyntaxError("expected get{...} or set{...} block", elem)
		}
		keyword := strings.ToLower(strings.TrimSpace(elem[:openIdx]))
		source := elem[openIdx+1 : closeIdx]
		switch keyword {
		case "get":
			readSrc = source
		case "set":
			writeSrc = source
		default:
			return "", "", odai.NewSyntaxError("expected get{...} or set{...} block", elem)
		}
	}
	return readSrc, writeSrc, nil
}

// -- ClassName(Parent)* { elements } -----------------------------------------

func (it *Interpreter) runClass(ctx context.Context, indicator, body string) error {
	name, parentName, traced, err := parseClassIndicator(indicator)
	if err != nil {
		return err
	}

	var parent *string
	if parentName != nil {
		if _, err := it.resolveClass(ctx, *parentName); err != nil {
			return err
		}
		parent = parentName
	}

	class, err := it.schema.CreateClass(ctx, name, parent, traced)
	if err != nil {
		return err
	}

	for _, elem := range splitTopLevel(body) {
		if strings.HasPrefix(elem, "~") {
			if err := it.runReferenceElement(ctx, *class, elem); err != nil {
				return err
			}
			continue
		}
		if err := it.runAttributeAssignmentElement(ctx, *class, elem); err != nil {
			return err
		}
	}
	return nil
}

// parseClassIndicator splits "ClassName(ParentName)*" into its name, optional
// parent, and traced marker.
func parseClassIndicator(indicator string) (name string, parent *string, traced bool, err error) {
	trimmed := strings.TrimSpace(indicator)
	if strings.HasSuffix(trimmed, "*") {
		traced = true
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "*"))
	}
	if openIdx := strings.IndexByte(trimmed, '('); openIdx >= 0 {
		closeIdx := strings.LastIndexByte(trimmed, ')')
		if closeIdx < openIdx {
			return "", nil, false, odai.NewSyntaxError("unbalanced parens in class indicator", indicator)
		}
		name = strings.TrimSpace(trimmed[:openIdx])
		p := strings.TrimSpace(trimmed[openIdx+1 : closeIdx])
		if p == "" {
			return "", nil, false, odai.NewSyntaxError("empty parent class in class indicator", indicator)
		}
		parent = &p
	} else {
		name = trimmed
	}
	if name == "" {
		return "", nil, false, odai.NewSyntaxError("class block requires a name", indicator)
	}
	return name, parent, traced, nil
}

// runReferenceElement handles "~ref_name -> TargetClass" or
// "~ref_name -> TargetClass(k)".
func (it *Interpreter) runReferenceElement(ctx context.Context, origin structure.Class, elem string) error {
	body := strings.TrimSpace(strings.TrimPrefix(elem, "~"))
	parts := strings.SplitN(body, "->", 2)
	if len(parts) != 2 {
		return odai.NewSyntaxError("missing target class in reference", elem)
	}
	refName := strings.TrimSpace(parts[0])
	targetPart := strings.TrimSpace(parts[1])
	if refName == "" || targetPart == "" {
		return odai.NewSyntaxError("missing target class in reference", elem)
	}

	targetName := targetPart
	var cardinality *int
	if openIdx := strings.IndexByte(targetPart, '('); openIdx >= 0 {
		closeIdx := strings.LastIndexByte(targetPart, ')')
		if closeIdx < openIdx {
			return odai.NewSyntaxError("unbalanced parens in reference cardinality", elem)
		}
		targetName = strings.TrimSpace(targetPart[:openIdx])
		cardStr := strings.TrimSpace(targetPart[openIdx+1 : closeIdx])
		n, convErr := strconv.Atoi(cardStr)
		if convErr != nil {
			return odai.NewSyntaxError("invalid reference cardinality", elem)
		}
		cardinality = &n
	}
	if targetName == "" {
		return odai.NewSyntaxError("missing target class in reference", elem)
	}

	target, err := it.resolveClass(ctx, targetName)
	if err != nil {
		return err
	}
	_, err = it.schema.CreateReference(ctx, refName, origin, *target, cardinality)
	return err
}

// runAttributeAssignmentElement handles "attr_name", "attr_name*" (indexed),
// and either form followed by "get { ... }"/"set { ... }" overrides.
func (it *Interpreter) runAttributeAssignmentElement(ctx context.Context, class structure.Class, elem string) error {
	trimmed := strings.TrimSpace(elem)
	i := 0
	for i < len(trimmed) && isIdentChar(trimmed[i]) {
		i++
	}
	name := trimmed[:i]
	if name == "" {
		return odai.NewSyntaxError("expected attribute name", elem)
	}
	rest := strings.TrimSpace(trimmed[i:])

	indexed := false
	if strings.HasPrefix(rest, "*") {
		indexed = true
		rest = strings.TrimSpace(rest[1:])
	}

	var transformerElems []string
	for rest != "" {
		openIdx := strings.IndexByte(rest, '{')
		if openIdx == -1 {
			return odai.NewSyntaxError("expected get{...} or set{...} block", rest)
		}
		depth := 1
		j := openIdx + 1
		for j < len(rest) && depth > 0 {
			switch rest[j] {
			case '{':
				depth++
			case '}':
				depth--
			}
			j++
		}
		if depth != 0 {
			return odai.NewSyntaxError("unbalanced braces in attribute transformer", elem)
		}
		transformerElems = append(transformerElems, rest[:j])
		rest = strings.TrimSpace(rest[j:])
	}

	readSrc, writeSrc, err := parseTransformerElements(transformerElems)
	if err != nil {
		return err
	}

	attr, err := it.resolveAttribute(ctx, name)
	if err != nil {
		return err
	}
	_, err = it.schema.Assign(ctx, class, *attr, indexed, readSrc, writeSrc)
	return err
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// -- name resolution, converting NotFound into the DDL-layer SyntaxError ----

func (it *Interpreter) resolveClass(ctx context.Context, name string) (*structure.Class, error) {
	c, err := it.schema.GetClassByName(ctx, name)
	if err != nil {
		if odai.IsNotFound(err) {
			return nil, odai.NewSyntaxError("unknown class reference", name)
		}
		return nil, err
	}
	return c, nil
}

func (it *Interpreter) resolveDatatype(ctx context.Context, name string) (*structure.Datatype, error) {
	dt, err := it.schema.GetDatatypeByName(ctx, name)
	if err != nil {
		if odai.IsNotFound(err) {
			return nil, odai.NewSyntaxError("unknown datatype reference", name)
		}
		return nil, err
	}
	return dt, nil
}

func (it *Interpreter) resolveAttribute(ctx context.Context, name string) (*structure.Attribute, error) {
	attr, err := it.schema.GetAttributeByName(ctx, name)
	if err != nil {
		if odai.IsNotFound(err) {
			return nil, odai.NewSyntaxError("unknown attribute reference", name)
		}
		return nil, err
	}
	return attr, nil
}
