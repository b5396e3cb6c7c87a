package datalog

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

type sqliteMarshal struct {
	FieldType string
	Marshal   func(v reflect.Value) string
}

func boolMarshal(v reflect.Value) string {
	if v.Bool() {
		return "1"
	}
	return "0"
}

func intMarshal(v reflect.Value) string {
	return strconv.FormatInt(v.Int(), 10)
}

func uintMarshal(v reflect.Value) string {
	return strconv.FormatUint(v.Uint(), 10)
}

func floatMarshal(v reflect.Value) string {
	return strconv.FormatFloat(v.Float(), 'f', 10, 64)
}

func stringMarshal(v reflect.Value) string {
	return v.String()
}

// structMarshal stores structs with a String method as text.
func structMarshal(v reflect.Value) string {
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	return ""
}

var sqliteMarshalFunctions = map[string]sqliteMarshal{
	"bool":   {FieldType: "INTEGER", Marshal: boolMarshal},
	"int":    {FieldType: "INTEGER", Marshal: intMarshal},
	"uint":   {FieldType: "INTEGER", Marshal: uintMarshal},
	"float":  {FieldType: "REAL", Marshal: floatMarshal},
	"string": {FieldType: "TEXT", Marshal: stringMarshal},
	"struct": {FieldType: "TEXT", Marshal: structMarshal},
}

var sqlTypeMap = map[reflect.Kind]string{
	reflect.Bool:    "bool",
	reflect.Int:     "int",
	reflect.Int8:    "int",
	reflect.Int16:   "int",
	reflect.Int32:   "int",
	reflect.Int64:   "int",
	reflect.Uint:    "uint",
	reflect.Uint8:   "uint",
	reflect.Uint16:  "uint",
	reflect.Uint32:  "uint",
	reflect.Uint64:  "uint",
	reflect.Float32: "float",
	reflect.Float64: "float",
	reflect.String:  "string",
	reflect.Struct:  "struct",
}

type column struct {
	name  string
	alias string
	index int
}

// columns lists the exported fields of the struct type t that can be stored.
// Other kinds, and structs without a String method, are skipped.
func columns(t reflect.Type) []column {
	stringer := reflect.TypeOf((*fmt.Stringer)(nil)).Elem()

	var cols []column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		alias, ok := sqlTypeMap[f.Type.Kind()]
		if !ok {
			continue
		}
		if alias == "struct" && !f.Type.Implements(stringer) {
			continue
		}
		cols = append(cols, column{name: f.Name, alias: alias, index: i})
	}
	return cols
}

func createStatement(tbl string, cols []column) string {
	fields := make([]string, len(cols))
	for i, c := range cols {
		fields[i] = c.name + " " + sqliteMarshalFunctions[c.alias].FieldType
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT, %s)", tbl, strings.Join(fields, ", "))
}

func insertStatement(tbl string, cols []column) string {
	keys := make([]string, len(cols))
	for i, c := range cols {
		keys[i] = c.name
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES(%s)", tbl, strings.Join(keys, ","),
		strings.Join(strings.Split(strings.Repeat("?", len(keys)), ""), ","))
}

func marshalRow(val reflect.Value, cols []column) []interface{} {
	values := make([]interface{}, len(cols))
	for i, c := range cols {
		values[i] = sqliteMarshalFunctions[c.alias].Marshal(val.Field(c.index))
	}
	return values
}
