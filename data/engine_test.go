package data

import (
	"reflect"
	"testing"
)

// Address and Person model a tiny two-level Sequence/List schema, used
// across these tests the way a real registry entry (see spine/model)
// would define one of the SPINE function types.
type Address struct {
	City    *string
	ZIP     *uint32
	Current *bool
}

var addressCfg = &Cfg{
	Kind: KindSequence,
	Type: reflect.TypeOf((*Address)(nil)),
	Children: []*Cfg{
		{Kind: KindString, Name: "city", Field: "City"},
		{Kind: KindNumeric, Name: "zip", Field: "ZIP"},
		{Kind: KindBool, Name: "current", Field: "Current"},
	},
}

type Person struct {
	Name      *string
	Age       *uint8
	Addresses []*Address
}

var personCfg = &Cfg{
	Kind: KindSequence,
	Type: reflect.TypeOf((*Person)(nil)),
	Children: []*Cfg{
		{Kind: KindString, Name: "name", Field: "Name", Identifier: true},
		{Kind: KindNumeric, Name: "age", Field: "Age"},
		{Kind: KindList, Name: "addresses", Field: "Addresses", Elem: addressCfg},
	},
}

func strp(s string) *string { return &s }
func u8p(v uint8) *uint8    { return &v }
func u32p(v uint32) *uint32 { return &v }
func boolp(v bool) *bool    { return &v }

func TestParsePrintRoundTrip(t *testing.T) {
	const body = `[{"name":"Ada"},{"age":30},{"addresses":[[{"city":"London"},{"zip":1000}]]}]`
	p, err := Parse[Person](personCfg, []byte(body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Name == nil || *p.Name != "Ada" {
		t.Fatalf("unexpected name: %+v", p.Name)
	}
	if p.Age == nil || *p.Age != 30 {
		t.Fatalf("unexpected age: %+v", p.Age)
	}
	if len(p.Addresses) != 1 || p.Addresses[0].City == nil || *p.Addresses[0].City != "London" {
		t.Fatalf("unexpected addresses: %+v", p.Addresses)
	}
	if p.Addresses[0].Current != nil {
		t.Fatalf("expected Current to be absent, got %v", *p.Addresses[0].Current)
	}

	out, err := Print(personCfg, p)
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	reparsed, err := Parse[Person](personCfg, out)
	if err != nil {
		t.Fatalf("Parse(Print(p)): %v", err)
	}
	if !Compare(personCfg, p, reparsed) {
		t.Fatalf("round trip mismatch: %s", out)
	}
}

func TestNumericOverflowRejected(t *testing.T) {
	_, err := Parse[Address](addressCfg, []byte(`[{"zip":99999999999}]`))
	if err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestCopyIsIndependent(t *testing.T) {
	orig := &Address{City: strp("Paris"), ZIP: u32p(75000)}
	cp, err := Copy(addressCfg, orig)
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	*cp.City = "Berlin"
	if *orig.City != "Paris" {
		t.Fatalf("copy aliased original: %q", *orig.City)
	}
	if !Compare(addressCfg, orig, orig) {
		t.Fatalf("self-compare failed")
	}
	if Compare(addressCfg, orig, cp) {
		t.Fatalf("expected mismatch after mutating the copy")
	}
}

func TestIsEmptyAndIsNull(t *testing.T) {
	var nilPerson *Person
	if !IsNull(nilPerson) {
		t.Fatalf("expected nil Person to be null")
	}
	empty := &Person{}
	if IsNull(empty) {
		t.Fatalf("non-nil Person should not be null")
	}
	if !IsEmpty(personCfg, empty) {
		t.Fatalf("expected all-absent Person to be empty")
	}
	nonEmpty := &Person{Name: strp("Grace")}
	if IsEmpty(personCfg, nonEmpty) {
		t.Fatalf("expected Person with Name set to be non-empty")
	}
}

func TestIdentifiersMatch(t *testing.T) {
	a := &Person{Name: strp("Ada"), Age: u8p(10)}
	b := &Person{Name: strp("Ada"), Age: u8p(99)}
	if !IdentifiersMatch(personCfg, a, b) {
		t.Fatalf("expected identifier-only match to succeed despite differing Age")
	}
	c := &Person{Name: strp("Bob")}
	if IdentifiersMatch(personCfg, a, c) {
		t.Fatalf("expected mismatch on differing identifier field")
	}
}

func TestSelectorsMatchTreatsAbsentAsWildcard(t *testing.T) {
	item := &Address{City: strp("Rome"), ZIP: u32p(100)}
	selCityOnly := &Address{City: strp("Rome")}
	if !SelectorsMatch(addressCfg, item, selCityOnly) {
		t.Fatalf("expected selector naming only City to match")
	}
	selWrongZIP := &Address{ZIP: u32p(999)}
	if SelectorsMatch(addressCfg, item, selWrongZIP) {
		t.Fatalf("expected selector with wrong ZIP to fail to match")
	}
	if !SelectorsMatch(addressCfg, item, &Address{}) {
		t.Fatalf("expected all-absent selector to match everything")
	}
}

func TestReadElementsMask(t *testing.T) {
	p := &Person{Name: strp("Ada"), Age: u8p(30)}
	raw, err := ReadElements(personCfg, p, ElementMask{"Name": true})
	if err != nil {
		t.Fatalf("ReadElements: %v", err)
	}
	reparsed, err := Parse[Person](personCfg, raw)
	if err != nil {
		t.Fatalf("Parse(ReadElements): %v", err)
	}
	if reparsed.Name == nil || *reparsed.Name != "Ada" {
		t.Fatalf("expected Name present: %+v", reparsed)
	}
	if reparsed.Age != nil {
		t.Fatalf("expected Age masked out, got %v", *reparsed.Age)
	}
}

func TestWritePartialMergesWithoutClobbering(t *testing.T) {
	var p *Person = &Person{Name: strp("Ada"), Age: u8p(30)}
	if err := WritePartial(personCfg, &p, []byte(`[{"age":31}]`), nil); err != nil {
		t.Fatalf("WritePartial: %v", err)
	}
	if *p.Name != "Ada" {
		t.Fatalf("expected Name untouched, got %q", *p.Name)
	}
	if *p.Age != 31 {
		t.Fatalf("expected Age updated, got %d", *p.Age)
	}
}

func TestWritePartialAllocatesAbsentTarget(t *testing.T) {
	var p *Person
	if err := WritePartial(personCfg, &p, []byte(`[{"name":"New"}]`), nil); err != nil {
		t.Fatalf("WritePartial: %v", err)
	}
	if p == nil || *p.Name != "New" {
		t.Fatalf("expected record allocated with Name set, got %+v", p)
	}
}

func TestDeletePartial(t *testing.T) {
	p := &Person{Name: strp("Ada"), Age: u8p(30)}
	DeletePartial(personCfg, p, ElementMask{"Age": true})
	if p.Age != nil {
		t.Fatalf("expected Age cleared")
	}
	if p.Name == nil || *p.Name != "Ada" {
		t.Fatalf("expected Name untouched")
	}
}

func TestDeleteClearsRoot(t *testing.T) {
	p := &Person{Name: strp("Ada")}
	Delete(&p)
	if p != nil {
		t.Fatalf("expected Delete to nil out the root")
	}
}

func TestFindAndSelectItems(t *testing.T) {
	list := []*Address{
		{City: strp("Rome"), ZIP: u32p(1)},
		{City: strp("Milan"), ZIP: u32p(2)},
	}
	// addressCfg declares no Identifier fields, so FindByIdentifiers falls
	// back to full structural equality per the open-question resolution:
	// a partial key (ZIP absent) won't match any fully-populated entry.
	if idx := FindByIdentifiers(addressCfg, list, &Address{City: strp("Milan")}); idx != -1 {
		t.Fatalf("expected no full-equality match, got index %d", idx)
	}
	if idx := FindByIdentifiers(addressCfg, list, &Address{City: strp("Milan"), ZIP: u32p(2)}); idx != 1 {
		t.Fatalf("expected full-equality match at index 1, got %d", idx)
	}
	selected := SelectItems(addressCfg, list, &Address{City: strp("Rome")})
	if len(selected) != 1 || *selected[0].City != "Rome" {
		t.Fatalf("unexpected selection: %+v", selected)
	}
}
