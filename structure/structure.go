// Package structure implements the Schema Manager and Inheritance Engine:
// datatypes, classes, attributes, attribute assignments and references,
// each backed by one of the structure_* tables, with a Structure Registry
// cache in front of the reads. Grounded on the
// original's control.py (Datatype/Class/Attribute/AttributeAssignment/
// Reference, with @cache-memoised family_tree/assignment_for) and
// interface.py's create_datatype/create_class/create_attribute/assign/
// create_reference, reimplemented with the storage adapter and an explicit
// per-instance memoisation cache instead of Python's @cache decorator.
package structure

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pepegiallo/sqlite-odai"
	"github.com/pepegiallo/sqlite-odai/naming"
	"github.com/pepegiallo/sqlite-odai/registry"
	"github.com/pepegiallo/sqlite-odai/storage"
	"github.com/pepegiallo/sqlite-odai/transform"
)

// Datatype is a storage-engine column specifier, optionally with read/write
// transformer sources and a parent.
type Datatype struct {
	ID          int64
	Name        string
	Generator   string
	ParentID    *int64
	ReadSource  string
	WriteSource string
}

func (d Datatype) RegistryID() int64    { return d.ID }
func (d Datatype) RegistryName() string { return d.Name }

// Class is a node in the single-inheritance class hierarchy.
type Class struct {
	ID       int64
	Name     string
	ParentID *int64
	Traced   bool
}

func (c Class) RegistryID() int64    { return c.ID }
func (c Class) RegistryName() string { return c.Name }

// Attribute names a typed, reusable attribute definition.
type Attribute struct {
	ID         int64
	Name       string
	DatatypeID int64
}

func (a Attribute) RegistryID() int64    { return a.ID }
func (a Attribute) RegistryName() string { return a.Name }

// AttributeAssignment binds an attribute to a class as a materialised
// column, with its own optional read/write transformer overrides.
type AttributeAssignment struct {
	ClassID     int64
	AttributeID int64
	Indexed     bool
	ReadSource  string
	WriteSource string
}

// Reference is a directed, optionally cardinality-bounded edge type between
// two classes.
type Reference struct {
	ID            int64
	Name          string
	OriginClassID int64
	TargetClassID int64
	Cardinality   *int
}

func (r Reference) RegistryID() int64    { return r.ID }
func (r Reference) RegistryName() string { return r.Name }

// Manager is the Schema Manager: it owns the structure_* tables and serves
// cached, composed reads of the class/datatype hierarchies.
type Manager struct {
	db   *storage.Adapter
	host *transform.Host

	datatypes  *registry.Registry[Datatype]
	classes    *registry.Registry[Class]
	attributes *registry.Registry[Attribute]
	references *registry.Registry[Reference]
	all        registry.Registries

	mu              sync.Mutex
	assignments     map[[2]int64]AttributeAssignment // (class_id, attribute_id)
	familyTreeCache map[int64][]Class
	assignmentCache map[[2]any]*AttributeAssignment // (class_id, attribute name)
}

// New returns a Manager backed by db, using host to compile/evaluate
// transformer sources.
func New(db *storage.Adapter, host *transform.Host) *Manager {
	m := &Manager{
		db:              db,
		host:            host,
		datatypes:       registry.New[Datatype](),
		classes:         registry.New[Class](),
		attributes:      registry.New[Attribute](),
		references:      registry.New[Reference](),
		assignments:     make(map[[2]int64]AttributeAssignment),
		familyTreeCache: make(map[int64][]Class),
		assignmentCache: make(map[[2]any]*AttributeAssignment),
	}
	m.all.Register(m.datatypes.Clear)
	m.all.Register(m.classes.Clear)
	m.all.Register(m.attributes.Clear)
	m.all.Register(m.references.Clear)
	m.all.Register(m.clearMemoised)
	return m
}

func (m *Manager) clearMemoised() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = make(map[[2]int64]AttributeAssignment)
	m.familyTreeCache = make(map[int64][]Class)
	m.assignmentCache = make(map[[2]any]*AttributeAssignment)
}

// ClearCache invalidates every registry and memoised composition, cascading
// the way interface.py's clear_cache walks every registered control.
func (m *Manager) ClearCache() { m.all.Clear() }

// -- Datatypes ---------------------------------------------------------

// CreateDatatype records a new datatype. Exactly one of generator or parent
// must be given; otherwise it fails with InvalidDatatype.
func (m *Manager) CreateDatatype(ctx context.Context, name string, generator *string, parent *string, readSrc, writeSrc string) (*Datatype, error) {
	if err := naming.Validate(name); err != nil {
		return nil, err
	}
	if (generator == nil) == (parent == nil) {
		return nil, odai.NewInvalidDatatypeError(name, "exactly one of generator or parent is required")
	}
	if _, ok := m.datatypes.GetByName(name); ok {
		return nil, odai.NewDuplicateNameError("datatype", name)
	}

	var parentID *int64
	if parent != nil {
		pdt, err := m.GetDatatypeByName(ctx, *parent)
		if err != nil {
			return nil, err
		}
		parentID = &pdt.ID
	}
	gen := ""
	if generator != nil {
		gen = *generator
	}

	res, err := m.db.Execute(ctx,
		`INSERT INTO structure_datatype (name, generator, parent_id, read_transformer_source, write_transformer_source) VALUES (?, ?, ?, ?, ?)`,
		name, gen, parentID, readSrc, writeSrc)
	if err != nil {
		return nil, wrapStorageErr("create_datatype", err)
	}
	id, err := m.db.LastInsertID(res)
	if err != nil {
		return nil, wrapStorageErr("create_datatype", err)
	}

	dt := Datatype{ID: id, Name: name, Generator: gen, ParentID: parentID, ReadSource: readSrc, WriteSource: writeSrc}
	m.datatypes.Put(dt)
	return &dt, nil
}

// GetDatatypeByName returns the datatype named name, reading through the
// registry to structure_datatype on a cache miss.
func (m *Manager) GetDatatypeByName(ctx context.Context, name string) (*Datatype, error) {
	if dt, ok := m.datatypes.GetByName(name); ok {
		return &dt, nil
	}
	row, ok, err := m.db.FetchOne(ctx, `SELECT id, name, generator, parent_id, read_transformer_source, write_transformer_source FROM structure_datatype WHERE name = ?`, name)
	if err != nil {
		return nil, wrapStorageErr("get_datatype", err)
	}
	if !ok {
		return nil, odai.NewNotFoundError("datatype", name)
	}
	dt := datatypeFromRow(row)
	m.datatypes.Put(dt)
	return &dt, nil
}

// GetDatatypeByID is the id-keyed counterpart of GetDatatypeByName.
func (m *Manager) GetDatatypeByID(ctx context.Context, id int64) (*Datatype, error) {
	if dt, ok := m.datatypes.GetByID(id); ok {
		return &dt, nil
	}
	row, ok, err := m.db.FetchOne(ctx, `SELECT id, name, generator, parent_id, read_transformer_source, write_transformer_source FROM structure_datatype WHERE id = ?`, id)
	if err != nil {
		return nil, wrapStorageErr("get_datatype", err)
	}
	if !ok {
		return nil, odai.NewNotFoundError("datatype", id)
	}
	dt := datatypeFromRow(row)
	m.datatypes.Put(dt)
	return &dt, nil
}

func datatypeFromRow(row storage.Row) Datatype {
	dt := Datatype{
		ID:          asInt64(row["id"]),
		Name:        asString(row["name"]),
		Generator:   asString(row["generator"]),
		ReadSource:  asString(row["read_transformer_source"]),
		WriteSource: asString(row["write_transformer_source"]),
	}
	if row["parent_id"] != nil {
		pid := asInt64(row["parent_id"])
		dt.ParentID = &pid
	}
	return dt
}

// datatypeChain returns [root, ..., dt] (ancestors first, inclusive).
func (m *Manager) datatypeChain(ctx context.Context, dt Datatype) ([]Datatype, error) {
	chain := []Datatype{dt}
	cur := dt
	for cur.ParentID != nil {
		parent, err := m.GetDatatypeByID(ctx, *cur.ParentID)
		if err != nil {
			return nil, err
		}
		chain = append([]Datatype{*parent}, chain...)
		cur = *parent
	}
	return chain, nil
}

// EffectiveGenerator walks parent links until a root is reached and returns
// its generator.
func (m *Manager) EffectiveGenerator(ctx context.Context, dt Datatype) (string, error) {
	chain, err := m.datatypeChain(ctx, dt)
	if err != nil {
		return "", err
	}
	return chain[0].Generator, nil
}

// ComposeRead returns a function applying dt's read transformer chain
// outer-to-inner along root -> dt, the raw stored value entering at the
// root: read_dt(... read_root(v)).
func (m *Manager) ComposeRead(ctx context.Context, dt Datatype) (func(any) (any, error), error) {
	chain, err := m.datatypeChain(ctx, dt)
	if err != nil {
		return nil, err
	}
	return func(v any) (any, error) {
		cur := v
		for _, level := range chain {
			out, err := m.host.Eval(level.ReadSource, cur, nil)
			if err != nil {
				return nil, err
			}
			cur = out
		}
		return cur, nil
	}, nil
}

// ComposeWrite mirrors ComposeRead, applied inner-to-outer (dt -> root).
func (m *Manager) ComposeWrite(ctx context.Context, dt Datatype) (func(any) (any, error), error) {
	chain, err := m.datatypeChain(ctx, dt)
	if err != nil {
		return nil, err
	}
	return func(v any) (any, error) {
		cur := v
		for i := len(chain) - 1; i >= 0; i-- {
			out, err := m.host.Eval(chain[i].WriteSource, cur, nil)
			if err != nil {
				return nil, err
			}
			cur = out
		}
		return cur, nil
	}, nil
}

// -- Classes -------------------------------------------------------------

// CreateClass creates the physical data_<name> table and records the
// class. A trailing "*" in name marks the class traced (audited); the
// caller is expected to have already stripped it per the DDL grammar and
// pass traced explicitly.
func (m *Manager) CreateClass(ctx context.Context, name string, parent *string, traced bool) (*Class, error) {
	if err := naming.Validate(name); err != nil {
		return nil, err
	}
	if _, ok := m.classes.GetByName(name); ok {
		return nil, odai.NewDuplicateNameError("class", name)
	}

	var parentID *int64
	if parent != nil {
		p, err := m.GetClassByName(ctx, *parent)
		if err != nil {
			return nil, err
		}
		parentID = &p.ID
	}

	table := naming.DataTable(name)
	ddl := fmt.Sprintf(`CREATE TABLE %s (id INTEGER, version INTEGER, created DATETIME DEFAULT CURRENT_TIMESTAMP, PRIMARY KEY(id, version))`, table)
	if _, err := m.db.Execute(ctx, ddl); err != nil {
		return nil, wrapStorageErr("create_class", err)
	}

	res, err := m.db.Execute(ctx, `INSERT INTO structure_class (name, parent_id) VALUES (?, ?)`, name, parentID)
	if err != nil {
		return nil, wrapStorageErr("create_class", err)
	}
	id, err := m.db.LastInsertID(res)
	if err != nil {
		return nil, wrapStorageErr("create_class", err)
	}

	class := Class{ID: id, Name: name, ParentID: parentID, Traced: traced}
	m.classes.Put(class)
	return &class, nil
}

// GetClassByName reads through the registry to structure_class.
func (m *Manager) GetClassByName(ctx context.Context, name string) (*Class, error) {
	if c, ok := m.classes.GetByName(name); ok {
		return &c, nil
	}
	row, ok, err := m.db.FetchOne(ctx, `SELECT id, name, parent_id FROM structure_class WHERE name = ?`, name)
	if err != nil {
		return nil, wrapStorageErr("get_class", err)
	}
	if !ok {
		return nil, odai.NewNotFoundError("class", name)
	}
	c := classFromRow(row)
	m.classes.Put(c)
	return &c, nil
}

// GetClassByID is the id-keyed counterpart of GetClassByName.
func (m *Manager) GetClassByID(ctx context.Context, id int64) (*Class, error) {
	if c, ok := m.classes.GetByID(id); ok {
		return &c, nil
	}
	row, ok, err := m.db.FetchOne(ctx, `SELECT id, name, parent_id FROM structure_class WHERE id = ?`, id)
	if err != nil {
		return nil, wrapStorageErr("get_class", err)
	}
	if !ok {
		return nil, odai.NewNotFoundError("class", id)
	}
	c := classFromRow(row)
	m.classes.Put(c)
	return &c, nil
}

func classFromRow(row storage.Row) Class {
	c := Class{ID: asInt64(row["id"]), Name: asString(row["name"])}
	if row["parent_id"] != nil {
		pid := asInt64(row["parent_id"])
		c.ParentID = &pid
	}
	return c
}

// FamilyTree returns [root, ..., c] (ancestors first, inclusive), memoised.
func (m *Manager) FamilyTree(ctx context.Context, c Class) ([]Class, error) {
	m.mu.Lock()
	if cached, ok := m.familyTreeCache[c.ID]; ok {
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	tree := []Class{c}
	cur := c
	for cur.ParentID != nil {
		parent, err := m.GetClassByID(ctx, *cur.ParentID)
		if err != nil {
			return nil, err
		}
		tree = append([]Class{*parent}, tree...)
		cur = *parent
	}

	m.mu.Lock()
	m.familyTreeCache[c.ID] = tree
	m.mu.Unlock()
	return tree, nil
}

// Children returns the immediate children of c.
func (m *Manager) Children(ctx context.Context, c Class) ([]Class, error) {
	rows, err := m.db.FetchAll(ctx, `SELECT id, name, parent_id FROM structure_class WHERE parent_id = ?`, c.ID)
	if err != nil {
		return nil, wrapStorageErr("children", err)
	}
	out := make([]Class, 0, len(rows))
	for _, row := range rows {
		child := classFromRow(row)
		m.classes.Put(child)
		out = append(out, child)
	}
	return out, nil
}

// Descendants returns the transitive closure of Children.
func (m *Manager) Descendants(ctx context.Context, c Class) ([]Class, error) {
	var out []Class
	queue := []Class{c}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		children, err := m.Children(ctx, cur)
		if err != nil {
			return nil, err
		}
		out = append(out, children...)
		queue = append(queue, children...)
	}
	return out, nil
}

// -- Attributes and assignments -------------------------------------------

// CreateAttribute records a reusable, typed attribute definition.
func (m *Manager) CreateAttribute(ctx context.Context, name string, datatype Datatype) (*Attribute, error) {
	if err := naming.Validate(name); err != nil {
		return nil, err
	}
	if _, ok := m.attributes.GetByName(name); ok {
		return nil, odai.NewDuplicateNameError("attribute", name)
	}
	res, err := m.db.Execute(ctx, `INSERT INTO structure_attribute (name, datatype_id) VALUES (?, ?)`, name, datatype.ID)
	if err != nil {
		return nil, wrapStorageErr("create_attribute", err)
	}
	id, err := m.db.LastInsertID(res)
	if err != nil {
		return nil, wrapStorageErr("create_attribute", err)
	}
	attr := Attribute{ID: id, Name: name, DatatypeID: datatype.ID}
	m.attributes.Put(attr)
	return &attr, nil
}

// GetAttributeByName reads through the registry to structure_attribute.
func (m *Manager) GetAttributeByName(ctx context.Context, name string) (*Attribute, error) {
	if a, ok := m.attributes.GetByName(name); ok {
		return &a, nil
	}
	row, ok, err := m.db.FetchOne(ctx, `SELECT id, name, datatype_id FROM structure_attribute WHERE name = ?`, name)
	if err != nil {
		return nil, wrapStorageErr("get_attribute", err)
	}
	if !ok {
		return nil, odai.NewNotFoundError("attribute", name)
	}
	a := Attribute{ID: asInt64(row["id"]), Name: asString(row["name"]), DatatypeID: asInt64(row["datatype_id"])}
	m.attributes.Put(a)
	return &a, nil
}

// Assign binds attribute to class as a materialised column: it alters
// data_<class> to add the column, optionally indexes it, and records the
// assignment. Fails with DuplicateName if the pair already exists.
func (m *Manager) Assign(ctx context.Context, class Class, attribute Attribute, indexed bool, readSrc, writeSrc string) (*AttributeAssignment, error) {
	key := [2]int64{class.ID, attribute.ID}
	m.mu.Lock()
	_, exists := m.assignments[key]
	m.mu.Unlock()
	if exists {
		return nil, odai.NewDuplicateNameError("attribute assignment", fmt.Sprintf("%s.%s", class.Name, attribute.Name))
	}

	dt, err := m.GetDatatypeByID(ctx, attribute.DatatypeID)
	if err != nil {
		return nil, err
	}
	generator, err := m.EffectiveGenerator(ctx, *dt)
	if err != nil {
		return nil, err
	}

	table := naming.DataTable(class.Name)
	alter := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, attribute.Name, generator)
	if _, err := m.db.Execute(ctx, alter); err != nil {
		return nil, wrapStorageErr("assign", err)
	}
	if indexed {
		idxName := naming.Index(class.Name, attribute.Name)
		createIdx := fmt.Sprintf(`CREATE INDEX %s ON %s (%s)`, idxName, table, attribute.Name)
		if _, err := m.db.Execute(ctx, createIdx); err != nil {
			return nil, wrapStorageErr("assign", err)
		}
	}

	if _, err := m.db.Execute(ctx,
		`INSERT INTO structure_attribute_assignment (class_id, attribute_id, indexed, read_transformer_source, write_transformer_source) VALUES (?, ?, ?, ?, ?)`,
		class.ID, attribute.ID, indexed, readSrc, writeSrc); err != nil {
		return nil, wrapStorageErr("assign", err)
	}

	assignment := AttributeAssignment{ClassID: class.ID, AttributeID: attribute.ID, Indexed: indexed, ReadSource: readSrc, WriteSource: writeSrc}
	m.mu.Lock()
	m.assignments[key] = assignment
	m.mu.Unlock()
	return &assignment, nil
}

// assignmentsForClass returns every assignment directly made on class.ID.
func (m *Manager) assignmentsForClass(ctx context.Context, classID int64) (map[int64]AttributeAssignment, error) {
	out := make(map[int64]AttributeAssignment)
	m.mu.Lock()
	for key, a := range m.assignments {
		if key[0] == classID {
			out[key[1]] = a
		}
	}
	m.mu.Unlock()
	if len(out) > 0 {
		return out, nil
	}
	rows, err := m.db.FetchAll(ctx, `SELECT class_id, attribute_id, indexed, read_transformer_source, write_transformer_source FROM structure_attribute_assignment WHERE class_id = ?`, classID)
	if err != nil {
		return nil, wrapStorageErr("assignments_for_class", err)
	}
	for _, row := range rows {
		a := AttributeAssignment{
			ClassID:     asInt64(row["class_id"]),
			AttributeID: asInt64(row["attribute_id"]),
			Indexed:     asBool(row["indexed"]),
			ReadSource:  asString(row["read_transformer_source"]),
			WriteSource: asString(row["write_transformer_source"]),
		}
		out[a.AttributeID] = a
		m.mu.Lock()
		m.assignments[[2]int64{a.ClassID, a.AttributeID}] = a
		m.mu.Unlock()
	}
	return out, nil
}

// AssignedAttributes returns the Attribute records directly assigned to
// class (not inherited from an ancestor), ordered by name for deterministic
// SQL generation in the Object Engine's class view.
func (m *Manager) AssignedAttributes(ctx context.Context, class Class) ([]Attribute, error) {
	assigned, err := m.assignmentsForClass(ctx, class.ID)
	if err != nil {
		return nil, err
	}
	out := make([]Attribute, 0, len(assigned))
	for attributeID := range assigned {
		attr, err := m.GetAttributeByID(ctx, attributeID)
		if err != nil {
			return nil, err
		}
		out = append(out, *attr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AssignmentFor searches family_tree(class) from class back towards root and
// returns the first match, so a descendant's assignment overrides an
// ancestor's assignment of the same attribute: the descendant wins.
// Memoised.
func (m *Manager) AssignmentFor(ctx context.Context, class Class, attributeName string) (*AttributeAssignment, *Attribute, error) {
	cacheKey := [2]any{class.ID, attributeName}
	m.mu.Lock()
	if cached, ok := m.assignmentCache[cacheKey]; ok {
		m.mu.Unlock()
		if cached == nil {
			return nil, nil, odai.NewUnknownAttributeError(class.Name, attributeName)
		}
		attr, err := m.GetAttributeByID(ctx, cached.AttributeID)
		return cached, attr, err
	}
	m.mu.Unlock()

	attr, err := m.GetAttributeByName(ctx, attributeName)
	if err != nil {
		return nil, nil, odai.NewUnknownAttributeError(class.Name, attributeName)
	}

	tree, err := m.FamilyTree(ctx, class)
	if err != nil {
		return nil, nil, err
	}
	// Walk from class back towards root so a closer (more derived) override
	// wins over an ancestor's assignment of the same attribute.
	for i := len(tree) - 1; i >= 0; i-- {
		ancestor := tree[i]
		assigned, err := m.assignmentsForClass(ctx, ancestor.ID)
		if err != nil {
			return nil, nil, err
		}
		if a, ok := assigned[attr.ID]; ok {
			m.mu.Lock()
			m.assignmentCache[cacheKey] = &a
			m.mu.Unlock()
			return &a, attr, nil
		}
	}

	m.mu.Lock()
	m.assignmentCache[cacheKey] = nil
	m.mu.Unlock()
	return nil, nil, odai.NewUnknownAttributeError(class.Name, attributeName)
}

// GetAttributeByID is the id-keyed counterpart of GetAttributeByName.
func (m *Manager) GetAttributeByID(ctx context.Context, id int64) (*Attribute, error) {
	if a, ok := m.attributes.GetByID(id); ok {
		return &a, nil
	}
	row, ok, err := m.db.FetchOne(ctx, `SELECT id, name, datatype_id FROM structure_attribute WHERE id = ?`, id)
	if err != nil {
		return nil, wrapStorageErr("get_attribute", err)
	}
	if !ok {
		return nil, odai.NewNotFoundError("attribute", id)
	}
	a := Attribute{ID: asInt64(row["id"]), Name: asString(row["name"]), DatatypeID: asInt64(row["datatype_id"])}
	m.attributes.Put(a)
	return &a, nil
}

// -- References ------------------------------------------------------------

// CreateReference creates table reference_<name> and records the
// reference.
func (m *Manager) CreateReference(ctx context.Context, name string, origin, target Class, cardinality *int) (*Reference, error) {
	if err := naming.Validate(name); err != nil {
		return nil, err
	}
	if _, ok := m.references.GetByName(name); ok {
		return nil, odai.NewDuplicateNameError("reference", name)
	}

	table := naming.ReferenceTable(name)
	ddl := fmt.Sprintf(`CREATE TABLE %s (origin_id INTEGER, target_id INTEGER, version INTEGER, created DATETIME DEFAULT CURRENT_TIMESTAMP, PRIMARY KEY(origin_id, target_id, version))`, table)
	if _, err := m.db.Execute(ctx, ddl); err != nil {
		return nil, wrapStorageErr("create_reference", err)
	}

	res, err := m.db.Execute(ctx,
		`INSERT INTO structure_reference (name, origin_class_id, target_class_id, cardinality) VALUES (?, ?, ?, ?)`,
		name, origin.ID, target.ID, cardinality)
	if err != nil {
		return nil, wrapStorageErr("create_reference", err)
	}
	id, err := m.db.LastInsertID(res)
	if err != nil {
		return nil, wrapStorageErr("create_reference", err)
	}

	ref := Reference{ID: id, Name: name, OriginClassID: origin.ID, TargetClassID: target.ID, Cardinality: cardinality}
	m.references.Put(ref)
	return &ref, nil
}

// GetReferenceByName reads through the registry to structure_reference.
func (m *Manager) GetReferenceByName(ctx context.Context, name string) (*Reference, error) {
	if r, ok := m.references.GetByName(name); ok {
		return &r, nil
	}
	row, ok, err := m.db.FetchOne(ctx, `SELECT id, name, origin_class_id, target_class_id, cardinality FROM structure_reference WHERE name = ?`, name)
	if err != nil {
		return nil, wrapStorageErr("get_reference", err)
	}
	if !ok {
		return nil, odai.NewNotFoundError("reference", name)
	}
	r := referenceFromRow(row)
	m.references.Put(r)
	return &r, nil
}

// GetReferenceByID is the id-keyed counterpart of GetReferenceByName.
func (m *Manager) GetReferenceByID(ctx context.Context, id int64) (*Reference, error) {
	if r, ok := m.references.GetByID(id); ok {
		return &r, nil
	}
	row, ok, err := m.db.FetchOne(ctx, `SELECT id, name, origin_class_id, target_class_id, cardinality FROM structure_reference WHERE id = ?`, id)
	if err != nil {
		return nil, wrapStorageErr("get_reference", err)
	}
	if !ok {
		return nil, odai.NewNotFoundError("reference", id)
	}
	r := referenceFromRow(row)
	m.references.Put(r)
	return &r, nil
}

func referenceFromRow(row storage.Row) Reference {
	r := Reference{
		ID:            asInt64(row["id"]),
		Name:          asString(row["name"]),
		OriginClassID: asInt64(row["origin_class_id"]),
		TargetClassID: asInt64(row["target_class_id"]),
	}
	if row["cardinality"] != nil {
		c := int(asInt64(row["cardinality"]))
		r.Cardinality = &c
	}
	return r
}

func wrapStorageErr(op string, err error) error {
	type sqlTexter interface{ SQL() string }
	sqlText := ""
	if st, ok := err.(sqlTexter); ok {
		sqlText = st.SQL()
	}
	return odai.NewStorageError(op, sqlText, err)
}
