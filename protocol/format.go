package protocol

import (
	"fmt"
	"reflect"
	"strings"
)

// ParamKind is how one command argument is encoded.
type ParamKind int

const (
	ParamInt   ParamKind = iota // %c %u %i %hu %hi
	ParamBytes                  // %s %*s %.*s
)

// Param is one "name=%x" pair of a message format.
type Param struct {
	Name     string
	Kind     ParamKind
	Unsigned bool
}

// Format is a parsed message format such as
// "update_digital_out oid=%c value=%c".
type Format struct {
	Name   string
	Params []Param
	raw    string
}

// ParseFormat parses a dictionary command or response format.
func ParseFormat(s string) (Format, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Format{}, fmt.Errorf("empty message format")
	}
	f := Format{Name: fields[0], raw: s}
	for _, field := range fields[1:] {
		name, verb, ok := strings.Cut(field, "=")
		if !ok || name == "" {
			return Format{}, fmt.Errorf("format %q: bad parameter %q", s, field)
		}
		p := Param{Name: name}
		switch verb {
		case "%c", "%u", "%hu":
			p.Kind = ParamInt
			p.Unsigned = true
		case "%i", "%hi":
			p.Kind = ParamInt
		case "%s", "%*s", "%.*s":
			p.Kind = ParamBytes
		default:
			return Format{}, fmt.Errorf("format %q: unsupported verb %q", s, verb)
		}
		f.Params = append(f.Params, p)
	}
	return f, nil
}

func (f Format) String() string { return f.raw }

// Encode builds the payload for message id with the named arguments.
// Integer arguments may be any integer or bool kind; byte arguments are
// strings or byte slices.
func (f Format) Encode(id int, args map[string]any) ([]byte, error) {
	out := AppendUint(nil, uint32(id))
	for _, p := range f.Params {
		v, ok := args[p.Name]
		if !ok {
			return nil, fmt.Errorf("%s: missing argument %s", f.Name, p.Name)
		}
		var err error
		out, err = appendArg(out, p, v)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %s: %w", f.Name, p.Name, err)
		}
	}
	if len(args) > len(f.Params) {
		return nil, fmt.Errorf("%s: %d arguments for %d parameters", f.Name, len(args), len(f.Params))
	}
	return out, nil
}

func appendArg(out []byte, p Param, v any) ([]byte, error) {
	rv := reflect.ValueOf(v)
	switch p.Kind {
	case ParamInt:
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return AppendInt(out, int32(rv.Int())), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return AppendUint(out, uint32(rv.Uint())), nil
		case reflect.Bool:
			if rv.Bool() {
				return AppendInt(out, 1), nil
			}
			return AppendInt(out, 0), nil
		}
	case ParamBytes:
		switch x := v.(type) {
		case string:
			return AppendString(out, x), nil
		case []byte:
			return AppendBytes(out, x), nil
		}
	}
	return nil, fmt.Errorf("cannot encode %T", v)
}

// Decode parses the arguments following the message id. Integers decode
// to int64 (unsigned verbs are reinterpreted as uint32 first), byte
// strings to []byte.
func (f Format) Decode(r *Reader) (map[string]any, error) {
	args := make(map[string]any, len(f.Params))
	for _, p := range f.Params {
		switch p.Kind {
		case ParamInt:
			v, err := r.Int()
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", f.Name, p.Name, err)
			}
			if p.Unsigned {
				args[p.Name] = int64(uint32(v))
			} else {
				args[p.Name] = int64(v)
			}
		case ParamBytes:
			b, err := r.Bytes()
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", f.Name, p.Name, err)
			}
			args[p.Name] = b
		}
	}
	return args, nil
}
