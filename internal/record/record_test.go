package record_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/jacentio/arbor/internal/record"
	"github.com/jacentio/arbor/sqlexec"
	"github.com/jacentio/arbor/tree"
)

func seed(t *testing.T) *sqlexec.DB {
	t.Helper()

	db, err := sql.Open("sqlite", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE categories (id INTEGER PRIMARY KEY, parent_id INTEGER, name TEXT NOT NULL)`,
		`CREATE TABLE products (sku TEXT PRIMARY KEY, category_id INTEGER NOT NULL, title TEXT NOT NULL)`,
		`INSERT INTO categories VALUES (1, NULL, 'Hardware'), (2, 1, 'Tools'), (3, 1, 'Paint'), (4, 2, 'Saws')`,
		`INSERT INTO products VALUES ('SAW-1', 4, 'Hand saw'), ('SAW-2', 4, 'Hacksaw'), ('PNT-1', 3, 'Primer')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return sqlexec.New(db, tree.SQLite)
}

var products = record.Relation{Name: "products", Table: "products", ForeignKey: "category_id", OrderBy: "sku"}

func TestDecoder(t *testing.T) {
	decode := record.Decoder(tree.NewMapping("categories"))

	root, err := decode(tree.Row{"id": int64(1), "parent_id": nil, "name": "Hardware"})
	require.NoError(t, err)
	assert.Equal(t, "1", root.TreeID())
	_, hasParent := root.TreeParentID()
	assert.False(t, hasParent)

	child, err := decode(tree.Row{"id": int64(2), "parent_id": int64(1), "name": []byte("Tools")})
	require.NoError(t, err)
	parent, hasParent := child.TreeParentID()
	assert.True(t, hasParent)
	assert.Equal(t, "1", parent)
	assert.Equal(t, "Tools", child.Fields["name"])

	_, err = decode(tree.Row{"parent_id": nil})
	assert.Error(t, err)
}

func TestDecoder_UUIDKeys(t *testing.T) {
	id := uuid.New()
	m := tree.Mapping{Table: "org_units", IDColumn: "unit_id", ParentColumn: "parent_unit_id", ChildrenField: "units"}

	r, err := record.Decoder(m)(tree.Row{"unit_id": [16]byte(id), "parent_unit_id": nil})
	require.NoError(t, err)
	assert.Equal(t, id.String(), r.ID)
	assert.Equal(t, id.String(), r.Fields["unit_id"])
}

func TestRelation_Validate(t *testing.T) {
	assert.NoError(t, products.Validate())
	assert.Error(t, record.Relation{Name: "x", Table: "products; --", ForeignKey: "category_id"}.Validate())
	assert.Error(t, record.Relation{Table: "products", ForeignKey: "category_id"}.Validate())
}

func TestLoader(t *testing.T) {
	exec := seed(t)
	load := record.Loader(exec, tree.NewMapping("categories"), products)

	records := []*record.Record{{ID: "3"}, {ID: "4"}, {ID: "1"}}
	require.NoError(t, load(context.Background(), records))

	assert.Len(t, records[0].Relations["products"], 1)
	saws := records[1].Relations["products"]
	require.Len(t, saws, 2)
	assert.Equal(t, "SAW-1", saws[0]["sku"])
	assert.Equal(t, "SAW-2", saws[1]["sku"])
	assert.NotNil(t, records[2].Relations["products"])
	assert.Empty(t, records[2].Relations["products"])

	require.NoError(t, load(context.Background(), nil))
}

func TestNewRepository_Forest(t *testing.T) {
	exec := seed(t)
	m := tree.NewMapping("categories")
	m.ChildrenField = "subcategories"

	repo, err := record.NewRepository(exec, m, []record.Relation{products}, tree.DefaultConfig(), nil)
	require.NoError(t, err)

	trees, err := repo.FindTrees(context.Background(), tree.FindOptions{Relations: []string{"products"}})
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Equal(t, 4, trees[0].Size())

	data, err := json.Marshal(trees[0])
	require.NoError(t, err)

	var decoded struct {
		Name          string `json:"name"`
		Subcategories []struct {
			Name          string           `json:"name"`
			Products      []map[string]any `json:"products"`
			Subcategories []struct {
				Name     string           `json:"name"`
				Products []map[string]any `json:"products"`
			} `json:"subcategories"`
		} `json:"subcategories"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "Hardware", decoded.Name)
	require.Len(t, decoded.Subcategories, 2)
	assert.Equal(t, "Tools", decoded.Subcategories[0].Name)
	assert.Equal(t, "Paint", decoded.Subcategories[1].Name)
	assert.Len(t, decoded.Subcategories[1].Products, 1)
	require.Len(t, decoded.Subcategories[0].Subcategories, 1)
	assert.Len(t, decoded.Subcategories[0].Subcategories[0].Products, 2)
}

func TestNewRepository_InvalidRelation(t *testing.T) {
	exec := seed(t)
	_, err := record.NewRepository(exec, tree.NewMapping("categories"),
		[]record.Relation{{Name: "products", Table: "bad table", ForeignKey: "category_id"}},
		tree.DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestLoader_IntegerIDs(t *testing.T) {
	exec := seed(t)
	m := tree.NewMapping("categories")
	m.IDType = tree.IDInteger

	records := []*record.Record{{ID: "4"}}
	require.NoError(t, record.Loader(exec, m, products)(context.Background(), records))
	assert.Len(t, records[0].Relations["products"], 2)

	err := record.Loader(exec, m, products)(context.Background(), []*record.Record{{ID: "four"}})
	assert.ErrorIs(t, err, tree.ErrInvalidID)
}

func TestRecord_MarshalJSONCollision(t *testing.T) {
	r := &record.Record{
		ID:        "1",
		Fields:    map[string]any{"id": int64(1), "products": "inline"},
		Relations: map[string][]map[string]any{"products": {}},
	}
	_, err := json.Marshal(r)
	assert.ErrorIs(t, err, tree.ErrFieldCollision)
}

func TestNewRepository_RelationNamedLikeChildren(t *testing.T) {
	exec := seed(t)
	rel := products
	rel.Name = "children"
	_, err := record.NewRepository(exec, tree.NewMapping("categories"), []record.Relation{rel}, tree.DefaultConfig(), nil)
	assert.ErrorIs(t, err, tree.ErrFieldCollision)
}

func TestNewRepository_FindByIDSpelledDifferently(t *testing.T) {
	exec := seed(t)
	repo, err := record.NewRepository(exec, tree.NewMapping("categories"), nil, tree.DefaultConfig(), nil)
	require.NoError(t, err)

	found, err := repo.FindByID(context.Background(), "01", tree.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, "1", found.ID)

	sub, err := repo.FindDescendantsTreeByID(context.Background(), "02", tree.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, "2", sub.ID())
	assert.Equal(t, 2, sub.Size())

	_, err = repo.FindByID(context.Background(), "99", tree.FindOptions{})
	assert.ErrorIs(t, err, tree.ErrNotFound)
}

func TestNewRepository_IntegerIDType(t *testing.T) {
	exec := seed(t)
	m := tree.NewMapping("categories")
	m.IDType = tree.IDInteger
	repo, err := record.NewRepository(exec, m, []record.Relation{products}, tree.DefaultConfig(), nil)
	require.NoError(t, err)

	sub, err := repo.FindDescendantsTreeByID(context.Background(), " 2", tree.FindOptions{Relations: []string{"products"}})
	require.NoError(t, err)
	assert.Equal(t, 2, sub.Size())
	assert.Len(t, sub.Children[0].Entity.Relations["products"], 2)

	_, err = repo.FindDescendantsTreeByID(context.Background(), "tools", tree.FindOptions{})
	assert.ErrorIs(t, err, tree.ErrInvalidID)
}

func TestNewRepository_FindByStringID(t *testing.T) {
	exec := seed(t)
	repo, err := record.NewRepository(exec, tree.NewMapping("categories"), nil, tree.DefaultConfig(), nil)
	require.NoError(t, err)

	sub, err := repo.FindDescendantsTreeByID(context.Background(), "2", tree.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, "2", sub.ID())
	assert.Equal(t, 2, sub.Size())
}
