package catalog

// Catalog is a named node that acts as the root of an object tree. It never
// takes a parent.
type Catalog struct {
	treeNode
	name string
}

// NewCatalog creates an empty root catalog.
func NewCatalog(name string) *Catalog {
	c := &Catalog{name: name}
	c.init(c)
	c.rootOnly = true
	return c
}

// Name returns the catalog's display name.
func (c *Catalog) Name() string {
	return c.name
}

func (c *Catalog) String() string {
	return "Catalog " + c.name
}
