package archive

import (
	"path/filepath"
	"testing"

	"stratalog/internal/filter"
	"stratalog/internal/querylang"
)

// newTestArchive assembles an archive directory with a dictionary over
// values, its companion filter, and one schema with var-id and column
// filters.
func newTestArchive(t *testing.T, values []string) (string, *Reader) {
	t.Helper()
	dir := t.TempDir()

	meta := NewMetadata()
	meta.Schemas = []SchemaInfo{{ID: 1, RecordCount: 100, VarIDCount: uint64(len(values))}}
	if err := meta.Save(dir); err != nil {
		t.Fatalf("save metadata: %v", err)
	}

	w, err := NewDictWriter(filepath.Join(dir, VarDictFileName), filter.Config{Kind: filter.KindBloom, FalsePositiveRate: 1e-9}, nil)
	if err != nil {
		t.Fatalf("new dict writer: %v", err)
	}
	var ids []uint64
	for _, v := range values {
		id, _, err := w.AddEntry(v)
		if err != nil {
			t.Fatalf("add entry: %v", err)
		}
		ids = append(ids, id)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close dict: %v", err)
	}

	if err := WriteSchemaVarFilter(dir, 1, ids, filter.Config{Kind: filter.KindBloom, FalsePositiveRate: 1e-9}); err != nil {
		t.Fatalf("write schema var filter: %v", err)
	}

	intF := NewIntColumnFilter()
	for i := 0; i < 100; i++ {
		intF.AddValue(7, int64(200+i%2)) // values 200, 201
	}
	if err := WriteSchemaIntFilter(dir, 1, intF); err != nil {
		t.Fatalf("write schema int filter: %v", err)
	}

	strF := NewStrColumnFilter()
	for i := 0; i < 100; i++ {
		strF.AddValue(8, "GET")
	}
	if err := WriteSchemaStrFilter(dir, 1, strF); err != nil {
		t.Fatalf("write schema str filter: %v", err)
	}

	r, err := OpenReader(dir, nil)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	return dir, r
}

func parseQuery(t *testing.T, q string) querylang.Expr {
	t.Helper()
	expr, err := querylang.Parse(q)
	if err != nil {
		t.Fatalf("parse %q: %v", q, err)
	}
	return expr
}

func TestFilterPassedAdmitsMember(t *testing.T) {
	_, r := newTestArchive(t, []string{"apple", "banana"})
	if !r.FilterPassed(parseQuery(t, `field == "banana"`), false) {
		t.Errorf("member term rejected the dictionary load")
	}
}

func TestFilterPassedSkipsNonMember(t *testing.T) {
	_, r := newTestArchive(t, []string{"apple", "banana"})
	if r.FilterPassed(parseQuery(t, `field == "cherry"`), false) {
		t.Errorf("non-member term did not skip the dictionary load")
	}
}

func TestFilterPassedIgnoreCaseAdmits(t *testing.T) {
	_, r := newTestArchive(t, []string{"apple", "banana"})
	if !r.FilterPassed(parseQuery(t, `field == "BANANA"`), true) {
		t.Errorf("case-insensitive search must admit")
	}
}

func TestFilterPassedNoTermsAdmits(t *testing.T) {
	_, r := newTestArchive(t, []string{"apple"})
	if !r.FilterPassed(parseQuery(t, `field == "wild*"`), false) {
		t.Errorf("wildcard-only query must admit")
	}
	if !r.FilterPassed(parseQuery(t, `field: *`), false) {
		t.Errorf("existence query must admit")
	}
}

func TestFilterPassedMissingFilterAdmits(t *testing.T) {
	dir := t.TempDir()
	meta := NewMetadata()
	if err := meta.Save(dir); err != nil {
		t.Fatalf("save metadata: %v", err)
	}
	r, err := OpenReader(dir, nil)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	if !r.FilterPassed(parseQuery(t, `field == "anything"`), false) {
		t.Errorf("missing filter must admit")
	}
}

func TestFilterPassedAnyTermAdmits(t *testing.T) {
	// One member and one non-member: any hit admits.
	_, r := newTestArchive(t, []string{"apple"})
	if !r.FilterPassed(parseQuery(t, `a == "cherry" OR b == "apple"`), false) {
		t.Errorf("query with one member term must admit")
	}
}

func TestSchemaFilterCheck(t *testing.T) {
	_, r := newTestArchive(t, []string{"apple", "banana"})
	r.PreloadSchemaFilters([]int32{1})

	if !r.SchemaFilterCheck(1, []uint64{0}) {
		t.Errorf("known var id rejected")
	}
	if r.SchemaFilterCheck(1, []uint64{999999}) {
		t.Errorf("unknown var id admitted")
	}
	if !r.SchemaFilterCheck(1, nil) {
		t.Errorf("empty id set must admit")
	}
	// Unpreloaded schema admits.
	if !r.SchemaFilterCheck(42, []uint64{999999}) {
		t.Errorf("schema without preloaded filter must admit")
	}
}

func TestSchemaIntFilterCheck(t *testing.T) {
	_, r := newTestArchive(t, []string{"apple"})
	r.PreloadSchemaIntFilters([]int32{1})

	if !r.SchemaIntFilterCheck(1, 7, 200) {
		t.Errorf("present value rejected")
	}
	if r.SchemaIntFilterCheck(1, 7, 555) {
		t.Errorf("absent value admitted")
	}
	if !r.SchemaIntFilterCheck(1, 99, 555) {
		t.Errorf("unpersisted column must admit")
	}
}

func TestSchemaStrFilterCheck(t *testing.T) {
	_, r := newTestArchive(t, []string{"apple"})
	r.PreloadSchemaStrFilters([]int32{1})

	if !r.SchemaStrFilterCheck(1, 8, "GET") {
		t.Errorf("present value rejected")
	}
	if r.SchemaStrFilterCheck(1, 8, "DELETE") {
		t.Errorf("absent value admitted")
	}
}

func TestSchemaPasses(t *testing.T) {
	_, r := newTestArchive(t, []string{"apple"})
	r.PreloadSchemaFilters([]int32{1})
	r.PreloadSchemaIntFilters([]int32{1})
	r.PreloadSchemaStrFilters([]int32{1})

	columnIDFor := func(c *querylang.Column) int32 {
		switch c.String() {
		case "status":
			return 7
		case "method":
			return 8
		}
		return -1
	}

	// Present int value: pass.
	if !r.SchemaPasses(1, parseQuery(t, `status == 200`), []uint64{0}, columnIDFor) {
		t.Errorf("schema with matching int value rejected")
	}
	// Absent int value: reject.
	if r.SchemaPasses(1, parseQuery(t, `status == 404`), []uint64{0}, columnIDFor) {
		t.Errorf("schema without the int value admitted")
	}
	// Absent string value: reject.
	if r.SchemaPasses(1, parseQuery(t, `method == "DELETE"`), []uint64{0}, columnIDFor) {
		t.Errorf("schema without the string value admitted")
	}
	// Unknown var id: reject regardless of columns.
	if r.SchemaPasses(1, parseQuery(t, `status == 200`), []uint64{424242}, columnIDFor) {
		t.Errorf("schema without the var id admitted")
	}
	// Disjunctions admit: pruning on one branch could drop matches.
	if !r.SchemaPasses(1, parseQuery(t, `status == 404 OR method == "GET"`), []uint64{0}, columnIDFor) {
		t.Errorf("disjunction must admit")
	}
	// Disabled schema filters admit everything.
	r.SetUseSchemaFilter(false)
	if !r.SchemaPasses(1, parseQuery(t, `status == 404`), []uint64{424242}, columnIDFor) {
		t.Errorf("disabled schema filter must admit")
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	meta := NewMetadata()
	meta.Schemas = []SchemaInfo{{ID: 3, RecordCount: 9, VarIDCount: 4}}
	if err := meta.Save(dir); err != nil {
		t.Fatalf("save: %v", err)
	}
	back, err := LoadMetadata(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if back.ArchiveID != meta.ArchiveID {
		t.Errorf("archive id changed: %q -> %q", meta.ArchiveID, back.ArchiveID)
	}
	if len(back.Schemas) != 1 || back.Schemas[0] != meta.Schemas[0] {
		t.Errorf("schemas = %+v", back.Schemas)
	}
}

func TestOpenReaderMissingMetadata(t *testing.T) {
	if _, err := OpenReader(t.TempDir(), nil); err == nil {
		t.Fatalf("expected error for missing metadata")
	}
}
