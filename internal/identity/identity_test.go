package identity

import (
	"encoding/json"
	"testing"
)

type sample struct {
	Zebra   string         `json:"zebra"`
	Alpha   int            `json:"alpha"`
	Nested  map[string]int `json:"nested"`
	Missing string         `json:"missing,omitempty"`
}

func TestCanonicalize_SortsKeysRegardlessOfStructFieldOrder(t *testing.T) {
	v := sample{Zebra: "z", Alpha: 1, Nested: map[string]int{"b": 2, "a": 1}}
	got, err := Canonicalize(v)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := `{"alpha":1,"nested":{"a":1,"b":2},"zebra":"z"}`
	if string(got) != want {
		t.Fatalf("Canonicalize = %s, want %s", got, want)
	}
}

// TestHash_RoundTripsThroughSerializeParse checks the §8 testable property:
// hash(canon(D)) = hash(canon(serialize(parse(D)))). Marshaling D to JSON and
// unmarshaling it back into a generic map simulates a document crossing a
// serialize/parse boundary; its canonical hash must be unchanged.
func TestHash_RoundTripsThroughSerializeParse(t *testing.T) {
	d := sample{Zebra: "z", Alpha: 7, Nested: map[string]int{"x": 1, "y": 2}}

	want, err := Hash(d)
	if err != nil {
		t.Fatalf("Hash(d): %v", err)
	}

	serialized, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(serialized, &parsed); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}

	got, err := Hash(parsed)
	if err != nil {
		t.Fatalf("Hash(parsed): %v", err)
	}
	if got != want {
		t.Fatalf("hash did not round-trip: hash(canon(D))=%s, hash(canon(serialize(parse(D))))=%s", want, got)
	}
}

func TestHash_IsIdempotent(t *testing.T) {
	d := sample{Zebra: "z", Alpha: 3, Nested: map[string]int{"k": 9}}
	first, err := Hash(d)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	second, err := Hash(d)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if first != second {
		t.Fatalf("Hash is not idempotent: %s != %s", first, second)
	}
}

func TestHash_KeyOrderDoesNotAffectDigest(t *testing.T) {
	a := map[string]interface{}{"a": 1, "b": 2}
	b := map[string]interface{}{"b": 2, "a": 1}
	ha, err := Hash(a)
	if err != nil {
		t.Fatalf("Hash(a): %v", err)
	}
	hb, err := Hash(b)
	if err != nil {
		t.Fatalf("Hash(b): %v", err)
	}
	if ha != hb {
		t.Fatalf("expected map key insertion order to be irrelevant, got %s != %s", ha, hb)
	}
}

func TestHash_DifferentContentDiffers(t *testing.T) {
	h1, err := Hash(sample{Zebra: "z", Alpha: 1})
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := Hash(sample{Zebra: "z", Alpha: 2})
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 == h2 {
		t.Fatal("expected different content to hash differently")
	}
}

func TestChecksumBytes_HasSha256Prefix(t *testing.T) {
	got := ChecksumBytes([]byte("payload"))
	if len(got) < 7 || got[:7] != "sha256:" {
		t.Fatalf("expected sha256: prefix, got %q", got)
	}
}

func TestNormalizeRiotID_NFCNormalizesComposedAndDecomposedForms(t *testing.T) {
	// "é" as a single composed rune (U+00E9) versus "e" + combining acute
	// accent (U+0065 U+0301) must normalize to the same NFC form.
	composed := "Rioté"
	decomposed := "Rioté"
	if composed == decomposed {
		t.Fatal("test fixture error: composed and decomposed forms must differ before normalization")
	}
	if NormalizeRiotID(composed) != NormalizeRiotID(decomposed) {
		t.Fatalf("expected NFC normalization to unify composed and decomposed forms: %q != %q",
			NormalizeRiotID(composed), NormalizeRiotID(decomposed))
	}
}
