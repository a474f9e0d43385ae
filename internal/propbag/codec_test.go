package propbag

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/seantiz/topoctl/internal/model"
)

func sampleRecord() model.Record {
	return model.Record{
		"service-information": map[string]any{
			"service-instance-id": "svc-1",
			"subscriber-name":     "",
		},
		"vnfs": map[string]any{
			"vnf": []any{
				map[string]any{"vnf-id": "v0", "vnf-data": map[string]any{"status": "Active"}},
				map[string]any{"vnf-id": "v1"},
			},
		},
		"tags": []any{"a", "b"},
	}
}

func TestFlatten(t *testing.T) {
	got := Flatten(sampleRecord(), "")
	want := Bag{
		"service-information.service-instance-id": "svc-1",
		"service-information.subscriber-name":     "",
		"vnfs.vnf_length":                         "2",
		"vnfs.vnf[0].vnf-id":                      "v0",
		"vnfs.vnf[0].vnf-data.status":             "Active",
		"vnfs.vnf[1].vnf-id":                      "v1",
		"tags_length":                             "2",
		"tags[0]":                                 "a",
		"tags[1]":                                 "b",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Flatten mismatch (-want +got):\n%s", diff)
	}
}

func TestFlattenWithPrefix(t *testing.T) {
	r := model.Record{"oper": map[string]any{"state": "up"}}
	for _, prefix := range []string{"operational-data", "operational-data."} {
		got := Flatten(r, prefix)
		if len(got) != 1 || got["operational-data.oper.state"] != "up" {
			t.Errorf("Flatten(prefix=%q) = %v", prefix, got)
		}
	}
}

func TestFlattenOmitsNil(t *testing.T) {
	r := model.Record{"a": nil, "b": map[string]any{"c": nil}, "d": "x"}
	got := Flatten(r, "")
	if diff := cmp.Diff(Bag{"d": "x"}, got); diff != "" {
		t.Errorf("Flatten mismatch (-want +got):\n%s", diff)
	}
}

func TestFlattenStringifiesScalars(t *testing.T) {
	got := Flatten(model.Record{"n": 3, "b": true}, "")
	if got["n"] != "3" || got["b"] != "true" {
		t.Errorf("Flatten = %v", got)
	}
}

func TestRoundTrip(t *testing.T) {
	records := []model.Record{
		sampleRecord(),
		{},
		{"empty-list": []any{}, "x": "1"},
		{"nested": map[string]any{"items": []any{}}},
		{"matrix": []any{[]any{"a", "b"}, []any{"c"}}},
		{"matrix": []any{[]any{}, []any{[]any{"deep"}}, map[string]any{"k": "v"}}},
	}
	for i, r := range records {
		got := model.Record{}
		Unflatten(Flatten(r, ""), "", got, nil)
		if diff := cmp.Diff(r, got); diff != "" {
			t.Errorf("record %d round trip mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestRoundTripWithPrefix(t *testing.T) {
	r := sampleRecord()
	bag := Flatten(r, "operational-data.")
	bag["unrelated"] = "ignored"
	got := model.Record{}
	Unflatten(bag, "operational-data.", got, nil)
	if diff := cmp.Diff(r, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func randomRecord(rng *rand.Rand, depth int) map[string]any {
	n := 1 + rng.IntN(4)
	m := make(map[string]any, n)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("field-%d", rng.IntN(50))
		switch k := rng.IntN(4); {
		case k == 0 && depth > 0:
			m[name] = randomRecord(rng, depth-1)
		case k == 1 && depth > 0:
			m[name] = randomList(rng, depth-1)
		default:
			m[name] = fmt.Sprintf("value-%d", rng.IntN(1000))
		}
	}
	return m
}

// randomList returns a list of up to three elements mixing strings,
// records and nested lists, possibly empty.
func randomList(rng *rand.Rand, depth int) []any {
	l := make([]any, rng.IntN(4))
	for j := range l {
		switch k := rng.IntN(3); {
		case k == 0 && depth > 0:
			l[j] = randomRecord(rng, depth-1)
		case k == 1 && depth > 0:
			l[j] = randomList(rng, depth-1)
		default:
			l[j] = fmt.Sprintf("item-%d", rng.IntN(100))
		}
	}
	return l
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		r := model.Record(randomRecord(rng, 4))
		got := model.Record{}
		Unflatten(Flatten(r, ""), "", got, nil)
		if diff := cmp.Diff(r, got); diff != "" {
			t.Fatalf("iteration %d round trip mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestUnflattenBoundsListIndices(t *testing.T) {
	target := model.Record{}
	Unflatten(Bag{
		"huge[20000000]":   "x",
		"capped[65536]":    "x",
		"sized_length":     "2",
		"sized[1]":         "kept",
		"sized[2]":         "beyond length",
		"bogus_length":     "999999999",
		"bogus[70000]":     "beyond cap",
		"inner[0][5]":      "beyond inner length",
		"inner[0]_length":  "1",
		"inner[0][0]":      "kept",
		"unsized[3].field": "kept",
	}, "", target, nil)

	want := model.Record{
		"sized":   []any{nil, "kept"},
		"inner":   []any{[]any{"kept"}},
		"unsized": []any{nil, nil, nil, map[string]any{"field": "kept"}},
	}
	if diff := cmp.Diff(want, target); diff != "" {
		t.Errorf("Unflatten mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeIgnoresOutOfRangeIndex(t *testing.T) {
	var v verdict
	if err := Decode(Bag{"error-code": "200", "junk[20000000]": "x", "items[20000000].id": "x"}, "", &v); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v.ErrorCode != "200" || len(v.Items) != 0 {
		t.Errorf("Decode = %+v", v)
	}
}

func TestUnflattenOverwritesInPlace(t *testing.T) {
	working := sampleRecord()
	Unflatten(Bag{
		"vnfs.vnf[1].vnf-id":            "v1-renamed",
		"service-information.new-field": "added",
		"vnfs.vnf[0].vnf-data.status":   "PendingDelete",
	}, "", working, nil)

	checks := map[string]string{
		"vnfs.vnf[1].vnf-id":                      "v1-renamed",
		"vnfs.vnf[0].vnf-data.status":             "PendingDelete",
		"service-information.new-field":           "added",
		"service-information.service-instance-id": "svc-1",
	}
	for path, want := range checks {
		if got, _ := working.Lookup(path); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
}

func TestUnflattenSchemaIgnoresUnknownFields(t *testing.T) {
	target := model.Record{}
	Unflatten(Bag{
		"service-information.service-instance-id": "svc-1",
		"error-code":              "200",
		"ack-final":               "Y",
		"SvcLogic.status":         "success",
		"networks.network_length": "0",
	}, "", target, NewSchema("service-information"))

	want := model.Record{"service-information": map[string]any{"service-instance-id": "svc-1"}}
	if diff := cmp.Diff(want, target); diff != "" {
		t.Errorf("Unflatten mismatch (-want +got):\n%s", diff)
	}
}

func TestUnflattenIgnoresMalformedAndConflictingKeys(t *testing.T) {
	target := model.Record{"a": map[string]any{"b": "1"}, "s": "scalar"}
	Unflatten(Bag{
		"a":       "would clobber a record",
		"s.child": "would clobber a scalar",
		"x[y]":    "bad index",
		"[0]":     "no name",
		"a..b":    "empty segment",
		"a[0]x":   "text after index",
		"s[0]":    "would turn a scalar into a list",
	}, "", target, nil)

	want := model.Record{"a": map[string]any{"b": "1"}, "s": "scalar"}
	if diff := cmp.Diff(want, target); diff != "" {
		t.Errorf("Unflatten mismatch (-want +got):\n%s", diff)
	}
}

func TestSchemaFields(t *testing.T) {
	s := NewSchema("b", "a")
	if diff := cmp.Diff([]string{"a", "b"}, s.Fields()); diff != "" {
		t.Errorf("Fields mismatch (-want +got):\n%s", diff)
	}
	var all Schema
	if !all.Allows("anything") {
		t.Error("nil schema should allow every field")
	}
}

type verdict struct {
	ErrorCode    string `mapstructure:"error-code"`
	ErrorMessage string `mapstructure:"error-message"`
	AckFinal     string `mapstructure:"ack-final"`
	SvcLogic     struct {
		Status string `mapstructure:"status"`
	} `mapstructure:"SvcLogic"`
	Items []struct {
		ID string `mapstructure:"id"`
	} `mapstructure:"items"`
}

func TestDecode(t *testing.T) {
	bag := Bag{
		"error-code":      "500",
		"error-message":   "boom",
		"SvcLogic.status": "failure",
		"items_length":    "2",
		"items[0].id":     "first",
		"items[1].id":     "second",
		"ignored.field":   "x",
	}
	var v verdict
	if err := Decode(bag, "", &v); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v.ErrorCode != "500" || v.ErrorMessage != "boom" || v.AckFinal != "" || v.SvcLogic.Status != "failure" {
		t.Errorf("Decode = %+v", v)
	}
	if len(v.Items) != 2 || v.Items[1].ID != "second" {
		t.Errorf("Decode items = %+v", v.Items)
	}
}

func TestBagHelpers(t *testing.T) {
	b := Bag{"p.a": "1", "p.b": "2", "q": "3"}
	if diff := cmp.Diff(Bag{"a": "1", "b": "2"}, b.WithPrefix("p")); diff != "" {
		t.Errorf("WithPrefix mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"p.a", "p.b", "q"}, b.Keys()); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
	c := b.Clone().Overlay(Bag{"q": "30", "r": "4"})
	if c.Get("q") != "30" || c.Get("r") != "4" || b.Get("q") != "3" {
		t.Errorf("Overlay/Clone: c=%v b=%v", c, b)
	}
	if got := b.LogValue().Group(); len(got) != 3 || got[0].Key != "p.a" {
		t.Errorf("LogValue = %v", got)
	}
}
