package contacts

import (
	"testing"
)

func TestUnwrapList_BareArray(t *testing.T) {
	list, err := unwrapList([]byte(`[{"ID": 1, "NAME": "Anna"}]`))
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(list))
	}
}

func TestUnwrapList_ResultWrapper(t *testing.T) {
	list, err := unwrapList([]byte(`{"result": [{"id": 2}]}`))
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(list))
	}
}

func TestUnwrapList_NestedResultItems(t *testing.T) {
	list, err := unwrapList([]byte(`{"result": {"items": [{"Id": 3}, {"Id": 4}]}}`))
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
}

func TestUnwrapList_Unrecognized(t *testing.T) {
	if _, err := unwrapList([]byte(`{"weird": 1}`)); err == nil {
		t.Fatal("expected error for unrecognized envelope")
	}
}

func TestNormalizeContact_ScreamingCaseWithValueObjects(t *testing.T) {
	list, err := unwrapList([]byte(`[{
		"ID": "15",
		"NAME": "Boris Ivanov",
		"EMAIL": [{"VALUE": "boris@example.com", "VALUE_TYPE": "WORK"}],
		"PHONE": [{"VALUE": "+4930123456"}]
	}]`))
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	c, ok := normalizeContact(list[0])
	if !ok {
		t.Fatal("expected contact to normalize")
	}
	if c.ID != 15 || c.Name != "Boris Ivanov" {
		t.Fatalf("unexpected contact: %+v", c)
	}
	if c.Email != "boris@example.com" || c.Phone != "+4930123456" {
		t.Fatalf("unexpected email/phone: %+v", c)
	}
}

func TestNormalizeContact_LowercaseFlatFields(t *testing.T) {
	c, ok := normalizeContact(map[string]any{
		"id":    float64(7),
		"name":  "Mia",
		"email": "mia@example.com",
		"phone": "555-1234",
	})
	if !ok {
		t.Fatal("expected contact to normalize")
	}
	if c.ID != 7 || c.Email != "mia@example.com" || c.Phone != "555-1234" {
		t.Fatalf("unexpected contact: %+v", c)
	}
}

func TestNormalizeContact_NameComposedFromParts(t *testing.T) {
	c, ok := normalizeContact(map[string]any{
		"Id":        "21",
		"FirstName": "Grace",
		"LastName":  "Hopper",
	})
	if !ok {
		t.Fatal("expected contact to normalize")
	}
	if c.Name != "Grace Hopper" {
		t.Fatalf("expected composed name, got %q", c.Name)
	}
}

func TestNormalizeContact_MissingIDRejected(t *testing.T) {
	if _, ok := normalizeContact(map[string]any{"NAME": "No Id"}); ok {
		t.Fatal("contact without id should be rejected")
	}
}

func TestNormalizeSingle_WrappedEntity(t *testing.T) {
	c, ok := normalizeSingle([]byte(`{"result": {"ID": 9, "NAME": "Wrapped"}}`))
	if !ok {
		t.Fatal("expected wrapped entity to normalize")
	}
	if c.ID != 9 || c.Name != "Wrapped" {
		t.Fatalf("unexpected contact: %+v", c)
	}
}
