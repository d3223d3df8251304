package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("config_digital_out oid=%c pin=%u value=%c default_value=%c max_duration=%u")
	if err != nil {
		t.Fatalf("ParseFormat failed: %v", err)
	}
	want := []Param{
		{Name: "oid", Kind: ParamInt, Unsigned: true},
		{Name: "pin", Kind: ParamInt, Unsigned: true},
		{Name: "value", Kind: ParamInt, Unsigned: true},
		{Name: "default_value", Kind: ParamInt, Unsigned: true},
		{Name: "max_duration", Kind: ParamInt, Unsigned: true},
	}
	if f.Name != "config_digital_out" {
		t.Errorf("Name = %q", f.Name)
	}
	if diff := cmp.Diff(want, f.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"", "cmd oid", "cmd oid=%f", "cmd =%c"} {
		if _, err := ParseFormat(bad); err == nil {
			t.Errorf("ParseFormat(%q) expected error", bad)
		}
	}
}

func TestFormatEncodeDecode(t *testing.T) {
	f, err := ParseFormat("identify_response offset=%u data=%.*s")
	if err != nil {
		t.Fatalf("ParseFormat failed: %v", err)
	}
	payload, err := f.Encode(0, map[string]any{"offset": uint32(200), "data": []byte("{}")})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if diff := cmp.Diff([]byte{0x00, 0x81, 0x48, 0x02, '{', '}'}, payload); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}

	r := NewReader(payload)
	if id, _ := r.Uint(); id != 0 {
		t.Fatalf("id = %d", id)
	}
	args, err := f.Decode(r)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := map[string]any{"offset": int64(200), "data": []byte("{}")}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("args mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatEncodeArgumentKinds(t *testing.T) {
	f, _ := ParseFormat("update_digital_out oid=%c value=%c")
	type pin uint32

	got, err := f.Encode(7, map[string]any{"oid": pin(2), "value": true})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if diff := cmp.Diff([]byte{7, 2, 1}, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}

	tests := map[string]map[string]any{
		"missing":    {"oid": 1},
		"extra":      {"oid": 1, "value": 0, "clock": 5},
		"wrong type": {"oid": 1.5, "value": 0},
	}
	for name, args := range tests {
		if _, err := f.Encode(7, args); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDecodeSignedAndUnsigned(t *testing.T) {
	f, _ := ParseFormat("stats count=%u sum=%i")
	payload := AppendUint(nil, 4000000000)
	payload = AppendInt(payload, -5)
	args, err := f.Decode(NewReader(payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if args["count"] != int64(4000000000) || args["sum"] != int64(-5) {
		t.Errorf("args = %v", args)
	}
}
